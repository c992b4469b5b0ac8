package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fennecml/fennec/internal/effects"
)

// ExecContext identifies one independent stream of compiled-function
// calls (typically one per caller goroutine). Contexts are explicit
// handles threaded by the caller; the runtime never infers one from
// ambient state.
//
// Uses github.com/google/uuid UUIDv7 so ids sort by creation time in
// journal output.
type ExecContext struct {
	id string
}

// NewExecContext creates a fresh execution context.
func NewExecContext() ExecContext {
	return ExecContext{id: uuid.Must(uuid.NewV7()).String()}
}

// ID returns the context id.
func (ec ExecContext) ID() string { return ec.id }

// TokenStore holds, per (ordered effect, execution context), the most
// recently produced token. Entries are created lazily on first
// effectful execution and overwritten on each subsequent one.
//
// Each context owns an independent map behind its own lock, so
// concurrent contexts read and update without cross-context
// interference or lost updates; there is no single global lock on the
// per-call path.
type TokenStore struct {
	mu       sync.RWMutex
	contexts map[string]*contextTokens
}

type contextTokens struct {
	mu sync.Mutex
	m  map[effects.Effect]*Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{contexts: make(map[string]*contextTokens)}
}

// Get returns the last token recorded for the effect under the context,
// or false on first use.
func (s *TokenStore) Get(e effects.Effect, ec ExecContext) (*Token, bool) {
	ct := s.contextFor(ec, false)
	if ct == nil {
		return nil, false
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	t, ok := ct.m[e]
	return t, ok
}

// Update overwrites the stored token for the effect under the context.
func (s *TokenStore) Update(e effects.Effect, ec ExecContext, t *Token) {
	ct := s.contextFor(ec, true)
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.m[e] = t
}

// Clear resets all stored tokens. For use between independent test or
// benchmark runs, never during steady-state operation.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = make(map[string]*contextTokens)
}

// BlockUntilReady blocks until every outstanding completion represented
// by currently stored tokens has resolved, and returns the first
// resolution error encountered. This is the explicit barrier callers
// use to make side effects observable before inspecting results.
func (s *TokenStore) BlockUntilReady(ctx context.Context) error {
	var snapshot []*Token
	s.mu.RLock()
	for _, ct := range s.contexts {
		ct.mu.Lock()
		for _, t := range ct.m {
			snapshot = append(snapshot, t)
		}
		ct.mu.Unlock()
	}
	s.mu.RUnlock()

	var first error
	for _, t := range snapshot {
		if err := t.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *TokenStore) contextFor(ec ExecContext, create bool) *contextTokens {
	s.mu.RLock()
	ct, ok := s.contexts[ec.id]
	s.mu.RUnlock()
	if ok || !create {
		return ct
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ct, ok := s.contexts[ec.id]; ok {
		return ct
	}
	ct = &contextTokens{m: make(map[effects.Effect]*Token)}
	s.contexts[ec.id] = ct
	return ct
}
