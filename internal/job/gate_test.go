package job

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Transitions(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []State
	)
	g := NewGate(func(s State, _ Outcome) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	assert.False(t, g.Pause(), "cannot pause an idle gate")
	require.True(t, g.Begin())
	assert.False(t, g.Begin(), "begin twice")
	assert.True(t, g.Pause())
	assert.False(t, g.Pause())
	assert.Equal(t, Running, g.Toggle())
	assert.Equal(t, Paused, g.Toggle())
	assert.True(t, g.Resume())

	g.Stop()
	g.Stop()
	s, _ := g.State()
	assert.Equal(t, Running, s, "stop only requests cancellation")
	assert.Equal(t, Running, g.Toggle(), "toggle ignored while stopping")

	g.Finish(Cancelled)
	g.Finish(Completed)
	s, o := g.State()
	assert.Equal(t, Stopped, s)
	assert.Equal(t, Cancelled, o)

	assert.Equal(t, []State{Running, Paused, Running, Paused, Running, Stopped}, seen)
}

func TestGate_StopIdle(t *testing.T) {
	g := NewGate(nil)
	g.Stop()
	s, o := g.State()
	assert.Equal(t, Stopped, s)
	assert.Equal(t, Cancelled, o)
	assert.False(t, g.Begin())
}

func TestGate_CheckBlocksWhilePaused(t *testing.T) {
	g := NewGate(nil)
	require.True(t, g.Begin())
	require.NoError(t, g.Check())
	require.True(t, g.Pause())

	released := make(chan error, 1)
	go func() { released <- g.Check() }()

	select {
	case <-released:
		t.Fatal("Check returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, g.Resume())
	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Check did not return after resume")
	}
}

func TestGate_StopWakesPaused(t *testing.T) {
	g := NewGate(nil)
	require.True(t, g.Begin())
	require.True(t, g.Pause())

	released := make(chan error, 1)
	go func() { released <- g.Check() }()
	time.Sleep(20 * time.Millisecond)
	g.Stop()

	select {
	case err := <-released:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not wake the paused goroutine")
	}
	select {
	case <-g.Done():
	default:
		t.Fatal("done channel not closed")
	}
}
