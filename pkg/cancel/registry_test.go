package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenIsCancelledReflectsSignal(t *testing.T) {
	reg := NewRegistry()
	tok := reg.Register(context.Background(), 1)

	require.False(t, tok.IsCancelled())
	require.NoError(t, tok.ThrowIfCancelled())

	reg.Signal(1)

	require.True(t, tok.IsCancelled())
	require.ErrorIs(t, tok.ThrowIfCancelled(), ErrCancelled)
}

func TestSignalIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	tok := reg.Register(context.Background(), 1)

	reg.Signal(1)
	require.NotPanics(t, func() { reg.Signal(1) })
	require.True(t, tok.IsCancelled())
}

func TestSignalOnUnknownRunIDIsNoop(t *testing.T) {
	reg := NewRegistry()
	require.NotPanics(t, func() { reg.Signal(999) })
}

func TestContextIsCancelledWhenTokenSignals(t *testing.T) {
	reg := NewRegistry()
	tok := reg.Register(context.Background(), 1)

	reg.Signal(1)

	select {
	case <-tok.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("token's context was not cancelled")
	}
}

func TestObserveReturnsRegisteredToken(t *testing.T) {
	reg := NewRegistry()
	tok := reg.Register(context.Background(), 42)

	got, ok := reg.Observe(42)
	require.True(t, ok)
	require.Same(t, tok, got)

	_, ok = reg.Observe(7)
	require.False(t, ok)
}

func TestReleaseRemovesToken(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), 1)
	reg.Release(1)

	_, ok := reg.Observe(1)
	require.False(t, ok)
}

func TestRegisterDerivesFromParentContext(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	reg := NewRegistry()
	tok := reg.Register(parent, 1)

	cancelParent()

	select {
	case <-tok.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("token should observe parent cancellation")
	}
}
