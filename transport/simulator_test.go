package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func echoHandler(_ context.Context, s string) (string, error) {
	return s, nil
}

// TestCall_Reliable covers the reliable configuration: with Unreliable
// false, no call ever sees a dropped message, even with DropRate set to 1.
func TestCall_Reliable(t *testing.T) {
	sim := NewSimulator(Config{Unreliable: false, DropRate: 1})

	for i := 0; i < 50; i++ {
		rep, err := Call(context.Background(), sim, "hello", echoHandler)
		require.NoError(t, err)
		assert.Equal(t, "hello", rep)
	}
}

// TestCall_AlwaysDrops covers the drop-rate = 1.0 boundary behavior:
// every call is reported dropped.
func TestCall_AlwaysDrops(t *testing.T) {
	sim := NewSimulator(Config{Unreliable: true, DropRate: 1})

	for i := 0; i < 50; i++ {
		_, err := Call(context.Background(), sim, "hello", echoHandler)
		require.Truef(t, IsDropped(err), "iteration %d: err = %v, want dropped", i, err)
		assert.Equalf(t, codes.Unavailable, status.Code(err), "iteration %d", i)
	}
}

// TestCall_RequestDroppedNeverRunsHandler asserts the distinction between
// the two drop points matters: a request-side drop never touches the
// handler.
func TestCall_RequestDroppedNeverRunsHandler(t *testing.T) {
	sim := NewSimulator(Config{Unreliable: true, DropRate: 1})

	ran := false
	_, err := Call(context.Background(), sim, "x", func(ctx context.Context, s string) (string, error) {
		ran = true
		return s, nil
	})
	require.True(t, IsDropped(err))
	assert.False(t, ran, "handler ran despite request-direction drop probability of 1.0")
}

// TestCall_ReplyDroppedStillRunsHandler asserts that a reply-side drop
// still executes the handler's side effects - this is the crux of why
// dedup matters to a caller retrying over an unreliable transport.
func TestCall_ReplyDroppedStillRunsHandler(t *testing.T) {
	calls := 0
	// deliver the request, drop the reply
	sim := scriptedSimulator([]bool{false, true})

	_, err := Call(context.Background(), sim, "x", func(ctx context.Context, s string) (string, error) {
		calls++
		return s, nil
	})
	require.True(t, IsDropped(err))
	assert.Equal(t, 1, calls, "reply-direction drop should still run the handler once")
}

func TestCall_CanceledContext_SkipsHandler(t *testing.T) {
	sim := NewSimulator(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := Call(ctx, sim, "x", func(ctx context.Context, s string) (string, error) {
		ran = true
		return s, nil
	})
	require.Error(t, err)
	assert.False(t, ran, "handler ran despite canceled context")
}

// scriptedSimulator lets tests force a specific drop sequence across
// successive calls, rather than relying on RNG tail probabilities.
func scriptedSimulator(pattern []bool) *Simulator {
	i := 0
	s := &Simulator{cfg: Config{Unreliable: true, DropRate: 0.5}}
	s.randFloat64 = func() float64 {
		v := pattern[i%len(pattern)]
		i++
		if v {
			return 0 // < DropRate => dropped
		}
		return 1 // >= DropRate => delivered
	}
	return s
}

// TestCall_ScriptedDropThenDeliver reproduces a dropped-reply-then-retry
// sequence: the first attempt's reply is dropped after the handler ran,
// the second attempt (a fresh Call, as the clerk would issue on retry)
// delivers cleanly.
func TestCall_ScriptedDropThenDeliver(t *testing.T) {
	// pattern consumed as: req-drop?, reply-drop?, req-drop?, reply-drop?, ...
	sim := scriptedSimulator([]bool{false, true, false, false})

	calls := 0
	handler := func(ctx context.Context, s string) (string, error) {
		calls++
		return s, nil
	}

	_, err := Call(context.Background(), sim, "v", handler)
	require.True(t, IsDropped(err), "first attempt should be dropped")

	rep, err := Call(context.Background(), sim, "v", handler)
	require.NoError(t, err)
	assert.Equal(t, "v", rep)
	assert.Equal(t, 2, calls)
}
