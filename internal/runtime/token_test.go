package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennecml/fennec/internal/runtime"
	"github.com/fennecml/fennec/internal/testutil"
)

func TestTokenResolveOnce(t *testing.T) {
	tok := runtime.NewToken()
	select {
	case <-tok.Done():
		t.Fatal("fresh token is already resolved")
	default:
	}

	tok.Resolve(errors.New("first"))
	tok.Resolve(nil) // loses: first resolution wins

	<-tok.Done()
	require.Error(t, tok.Err())
	assert.Equal(t, "first", tok.Err().Error())
}

func TestTokenWaitContextCancel(t *testing.T) {
	tok := runtime.NewToken()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tok.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolvedToken(t *testing.T) {
	tok := runtime.ResolvedToken()
	require.NoError(t, tok.Wait(context.Background()))
	assert.NotEmpty(t, tok.ID())
	assert.NotEqual(t, tok.ID(), runtime.ResolvedToken().ID())
}

func TestTokenStorePerContextIsolation(t *testing.T) {
	reg := testutil.Registry()
	log := reg.Intern(testutil.EffLog)

	store := runtime.NewTokenStore()
	ecA := runtime.NewExecContext()
	ecB := runtime.NewExecContext()

	_, ok := store.Get(log, ecA)
	assert.False(t, ok)

	tokA := runtime.NewToken()
	store.Update(log, ecA, tokA)

	got, ok := store.Get(log, ecA)
	require.True(t, ok)
	assert.Same(t, tokA, got)

	// The other context still sees first use.
	_, ok = store.Get(log, ecB)
	assert.False(t, ok)
}

func TestTokenStoreOverwrite(t *testing.T) {
	reg := testutil.Registry()
	log := reg.Intern(testutil.EffLog)

	store := runtime.NewTokenStore()
	ec := runtime.NewExecContext()

	first := runtime.NewToken()
	second := runtime.NewToken()
	store.Update(log, ec, first)
	store.Update(log, ec, second)

	got, ok := store.Get(log, ec)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestTokenStoreClear(t *testing.T) {
	reg := testutil.Registry()
	log := reg.Intern(testutil.EffLog)

	store := runtime.NewTokenStore()
	ec := runtime.NewExecContext()
	store.Update(log, ec, runtime.ResolvedToken())

	store.Clear()
	_, ok := store.Get(log, ec)
	assert.False(t, ok)
}

func TestBlockUntilReadyWaitsForResolution(t *testing.T) {
	reg := testutil.Registry()
	log := reg.Intern(testutil.EffLog)

	store := runtime.NewTokenStore()
	ec := runtime.NewExecContext()
	tok := runtime.NewToken()
	store.Update(log, ec, tok)

	resolved := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(resolved)
		tok.Resolve(nil)
	}()

	require.NoError(t, store.BlockUntilReady(context.Background()))
	select {
	case <-resolved:
	default:
		t.Fatal("BlockUntilReady returned before the token resolved")
	}
}

func TestBlockUntilReadySurfacesError(t *testing.T) {
	reg := testutil.Registry()
	log := reg.Intern(testutil.EffLog)

	store := runtime.NewTokenStore()
	ec := runtime.NewExecContext()
	tok := runtime.NewToken()
	tok.Resolve(errors.New("callback failed"))
	store.Update(log, ec, tok)

	err := store.BlockUntilReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback failed")
}

func TestClockSequence(t *testing.T) {
	clock := runtime.NewClock()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())
}
