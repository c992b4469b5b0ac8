package runtime

import (
	"fmt"
	"io"
	"sync"
)

// HostCallback is a registered host function invoked from compiled
// code. It receives the instruction's operand values and returns the
// declared result values. For ordered effects the runtime invokes
// callbacks strictly in token order; the callback itself never sees the
// token.
type HostCallback func(args []Value) ([]Value, error)

// CallbackRegistry resolves callback ids referenced by lowered host
// calls. Registration happens at setup time.
//
// A callback may register a keepalive: a resource that must stay alive
// for the lifetime of any compiled artifact referencing the callback
// (captured buffers, file handles). Compiled functions retain the
// keepalive and release it on Close.
type CallbackRegistry struct {
	mu sync.RWMutex
	m  map[string]*callbackEntry
}

type callbackEntry struct {
	fn        HostCallback
	keepalive io.Closer
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{m: make(map[string]*callbackEntry)}
}

// Register installs a callback under id.
func (r *CallbackRegistry) Register(id string, fn HostCallback) {
	r.RegisterWithKeepalive(id, fn, nil)
}

// RegisterWithKeepalive installs a callback together with a resource
// tied to the lifetime of compiled artifacts that reference it.
func (r *CallbackRegistry) RegisterWithKeepalive(id string, fn HostCallback, keepalive io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id] = &callbackEntry{fn: fn, keepalive: keepalive}
}

func (r *CallbackRegistry) lookup(id string) (*callbackEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[id]
	if !ok {
		return nil, fmt.Errorf("no host callback registered under %q", id)
	}
	return e, nil
}
