package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func counter(n *int32) Task {
	return func(context.Context) error {
		atomic.AddInt32(n, 1)
		return nil
	}
}

func TestAddTicker_Fires(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("lore_refresh", 20*time.Millisecond, counter(&count))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, 10*time.Millisecond)
}

func TestAddTicker_ZeroIntervalDisabled(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("off", 0, counter(&count))
	assert.Empty(t, s.ListTickers())
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, counter(&count1))
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, counter(&count2))
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
}

func TestAddDelay_FiresOnce(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("warmup", 30*time.Millisecond, counter(&count))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestAddDelay_ReplacesCancelsOld(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("d", 500*time.Millisecond, func(context.Context) error { atomic.AddInt32(&count, 1); return nil })
	s.AddDelay("d", 30*time.Millisecond, func(context.Context) error { atomic.AddInt32(&count, 10); return nil })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestRemove_Ticker(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("task", 20*time.Millisecond, counter(&count))
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count), "ticker must stop after Remove")
}

func TestRemove_Delay(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("d", 100*time.Millisecond, counter(&count))
	s.Remove("d")
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestRemove_NonExistent(t *testing.T) {
	s := New(newNop())
	defer s.Stop()
	s.Remove("nope")
}

func TestStop_StopsAllTasks(t *testing.T) {
	s := New(newNop())

	var c1, c2, d int32
	s.AddTicker("a", 20*time.Millisecond, counter(&c1))
	s.AddTicker("b", 20*time.Millisecond, counter(&c2))
	s.AddDelay("later", 200*time.Millisecond, counter(&d))
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	time.Sleep(30 * time.Millisecond)
	snap1, snap2 := atomic.LoadInt32(&c1), atomic.LoadInt32(&c2)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&c1))
	assert.Equal(t, snap2, atomic.LoadInt32(&c2))
	assert.Zero(t, atomic.LoadInt32(&d))
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := New(newNop())
	started := make(chan struct{})
	done := make(chan error, 1)
	s.AddDelay("block", 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return nil
	})
	<-started
	s.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task context not cancelled")
	}
}

func TestStop_Idempotent(t *testing.T) {
	s := New(newNop())
	s.Stop()
	s.Stop()
}

func TestListTickers(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	require.Empty(t, s.ListTickers())
	s.AddTicker("beta", time.Hour, counter(new(int32)))
	s.AddTicker("alpha", time.Hour, counter(new(int32)))
	assert.Equal(t, []string{"alpha", "beta"}, s.ListTickers())

	s.Remove("alpha")
	assert.Equal(t, []string{"beta"}, s.ListTickers())
}

func TestStatus_CountsFailuresAndPanics(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	s.AddTicker("metrics_sample", 15*time.Millisecond, func(context.Context) error {
		return errors.New("db down")
	})
	s.AddTicker("panic", 15*time.Millisecond, func(context.Context) error {
		panic("oops")
	})
	s.AddTicker("idle", time.Hour, counter(new(int32)))

	assert.Eventually(t, func() bool {
		st := s.Status()
		return len(st) == 3 && st[1].Failures >= 2 && st[2].Failures >= 1
	}, time.Second, 10*time.Millisecond)

	st := s.Status()
	assert.Equal(t, "idle", st[0].Name)
	assert.Equal(t, "metrics_sample", st[1].Name)
	assert.Equal(t, "panic", st[2].Name)
	assert.Equal(t, "db down", st[1].LastError)
	assert.NotNil(t, st[1].LastRun)
	assert.Contains(t, st[2].LastError, "oops")
	assert.Nil(t, st[0].LastRun)
	assert.Equal(t, "1h0m0s", st[0].Interval)
}
