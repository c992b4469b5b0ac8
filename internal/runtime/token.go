package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Token is a live synchronization handle for one ordered effect in one
// execution context. It resolves when the effect occurrence it guards
// has completed on the host.
//
// Tokens are identity objects: every compiled call produces fresh
// successor tokens, never reusing a resolved one.
type Token struct {
	id   string
	once sync.Once
	done chan struct{}
	err  error
}

// NewToken creates an unresolved token.
func NewToken() *Token {
	return &Token{
		id:   uuid.Must(uuid.NewV7()).String(),
		done: make(chan struct{}),
	}
}

// ResolvedToken creates a token that is already complete. Used as the
// chain head on an effect's first use in a context.
func ResolvedToken() *Token {
	t := NewToken()
	t.Resolve(nil)
	return t
}

// ID returns the token's unique id.
func (t *Token) ID() string { return t.id }

// Resolve marks the guarded effect occurrence complete. The first call
// wins; later calls are no-ops.
func (t *Token) Resolve(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done returns a channel closed on resolution.
func (t *Token) Done() <-chan struct{} { return t.done }

// Wait blocks until the token resolves or ctx is cancelled, returning
// the resolution error.
func (t *Token) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the resolution error. Only meaningful after Done.
func (t *Token) Err() error { return t.err }
