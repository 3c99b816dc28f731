package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	t.Parallel()

	ctx := func(t *testing.T) context.Context {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		t.Cleanup(cancel)
		return ctx
	}

	t.Run("runs after the delay", func(t *testing.T) {
		clock := quartz.NewMock(t)
		s := NewScheduler(clock, testLogger())

		var fired atomic.Int32
		s.Schedule("room", "nextRound", 5*time.Second, func() { fired.Add(1) })

		name, ok := s.Pending("room")
		require.True(t, ok)
		assert.Equal(t, "nextRound", name)

		clock.Advance(4 * time.Second).MustWait(ctx(t))
		assert.Zero(t, fired.Load())

		clock.Advance(time.Second).MustWait(ctx(t))
		assert.Equal(t, int32(1), fired.Load())
		assert.Zero(t, s.Len())
	})

	t.Run("replacing a task stops the old one", func(t *testing.T) {
		clock := quartz.NewMock(t)
		s := NewScheduler(clock, testLogger())

		var first, second atomic.Int32
		s.Schedule("room", "nextRound", 5*time.Second, func() { first.Add(1) })
		s.Schedule("room", "reclaim", 10*time.Second, func() { second.Add(1) })
		assert.Equal(t, 1, s.Len())

		d, w := clock.AdvanceNext()
		w.MustWait(ctx(t))
		assert.Equal(t, 10*time.Second, d)
		assert.Zero(t, first.Load())
		assert.Equal(t, int32(1), second.Load())
	})

	t.Run("cancel", func(t *testing.T) {
		clock := quartz.NewMock(t)
		s := NewScheduler(clock, testLogger())

		var fired atomic.Int32
		s.Schedule("a", "nextRound", time.Second, func() { fired.Add(1) })
		s.Schedule("b", "nextRound", 2*time.Second, func() { fired.Add(10) })

		assert.True(t, s.Cancel("a"))
		assert.False(t, s.Cancel("a"))

		clock.Advance(2 * time.Second).MustWait(ctx(t))
		assert.Equal(t, int32(10), fired.Load())
	})

	t.Run("stop refuses new tasks", func(t *testing.T) {
		clock := quartz.NewMock(t)
		s := NewScheduler(clock, testLogger())

		s.Schedule("a", "nextRound", time.Second, func() {})
		s.Stop()
		assert.Zero(t, s.Len())

		s.Schedule("b", "nextRound", time.Second, func() {})
		assert.Zero(t, s.Len())
	})

	t.Run("stale fire does not clobber a newer task", func(t *testing.T) {
		s := NewScheduler(quartz.NewMock(t), testLogger())
		s.Schedule("room", "reclaim", time.Minute, func() {})

		// A timer from an earlier schedule that raced past Stop.
		assert.False(t, s.claim("room", 0))
		name, ok := s.Pending("room")
		require.True(t, ok)
		assert.Equal(t, "reclaim", name)
	})
}
