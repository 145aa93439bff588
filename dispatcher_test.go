package jsbind_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
)

func startQueue(t *testing.T, q *jsbind.DispatcherQueue) {
	t.Helper()
	go func() {
		assert.NoError(t, q.Run())
	}()
}

func waitDone(t *testing.T, q *jsbind.DispatcherQueue) {
	t.Helper()
	select {
	case <-q.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher queue did not complete")
	}
}

// TestDispatcherQueueFIFO tests that actions run in enqueue order
func TestDispatcherQueueFIFO(t *testing.T) {
	q := jsbind.NewDispatcherQueue()
	require.Equal(t, jsbind.QueueCreated, q.State())

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, q.TryEnqueue(func() { got = append(got, i) }))
	}
	// work enqueued by an action runs after everything already queued
	require.True(t, q.TryEnqueue(func() {
		q.TryEnqueue(func() { got = append(got, 1000) })
	}))
	q.Shutdown()

	startQueue(t, q)
	waitDone(t, q)

	require.Len(t, got, 101)
	for i := 0; i < 100; i++ {
		require.Equal(t, i, got[i])
	}
	require.Equal(t, 1000, got[100])
	require.Equal(t, jsbind.QueueCompleted, q.State())
}

// TestDispatcherQueueScenario tests an action and a timer draining before shutdown completes
func TestDispatcherQueueScenario(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	var seq []string
	q.TryEnqueue(func() { seq = append(seq, "1") })

	timer := q.CreateTimer()
	timer.SetInterval(5 * time.Millisecond)
	timer.OnTick(func(*jsbind.Timer) { seq = append(seq, "2") })
	timer.Start()

	done := q.Shutdown()
	startQueue(t, q)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	require.Equal(t, []string{"1", "2"}, seq)
	require.False(t, timer.IsRunning())
}

// TestDispatcherQueueTryEnqueueAfterCompletion tests that a completed queue drops new work
func TestDispatcherQueueTryEnqueueAfterCompletion(t *testing.T) {
	q := jsbind.NewDispatcherQueue()
	startQueue(t, q)
	<-q.Shutdown()

	require.False(t, q.TryEnqueue(func() { t.Error("action ran after completion") }))

	// shutdown after completion is immediately done
	select {
	case <-q.Shutdown():
	case <-time.After(time.Second):
		t.Fatal("Shutdown after completion blocked")
	}

	// a queue runs only once
	require.Error(t, q.Run())
}

// TestDispatcherQueueDoubleShutdown tests that concurrent shutdown requests all complete
func TestDispatcherQueueDoubleShutdown(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	var starting atomic.Int32
	q.OnShutdownStarting(func(*jsbind.ShutdownStartingEvent) { starting.Add(1) })

	first := q.Shutdown()
	second := q.Shutdown()
	startQueue(t, q)

	<-first
	<-second
	require.EqualValues(t, 1, starting.Load())
}

// TestDispatcherQueueDeferral tests that an outstanding deferral holds off completion
func TestDispatcherQueueDeferral(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	var (
		deferral  atomic.Pointer[jsbind.Deferral]
		completed atomic.Bool
		events    []string
	)
	q.OnShutdownStarting(func(ev *jsbind.ShutdownStartingEvent) {
		events = append(events, "starting")
		deferral.Store(ev.GetDeferral())
	})
	q.OnShutdownCompleted(func() {
		events = append(events, "completed")
		completed.Store(true)
	})
	startQueue(t, q)

	done := q.Shutdown()
	require.Eventually(t, func() bool { return deferral.Load() != nil }, time.Second, time.Millisecond)

	// still draining while the deferral is outstanding
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.ShutdownContext(ctx), context.DeadlineExceeded)
	require.False(t, completed.Load())
	require.Equal(t, jsbind.QueueDraining, q.State())

	// work is still accepted during draining
	ran := make(chan struct{})
	require.True(t, q.TryEnqueue(func() { close(ran) }))
	<-ran

	d := deferral.Load()
	d.Complete()
	d.Complete()

	<-done
	require.True(t, completed.Load())
	require.Equal(t, []string{"starting", "completed"}, events)
}

// TestDispatcherQueueDeferralBeforeShutdown tests a deferral taken while running
func TestDispatcherQueueDeferralBeforeShutdown(t *testing.T) {
	q := jsbind.NewDispatcherQueue()
	d := q.CreateDeferral()
	startQueue(t, q)

	done := q.Shutdown()
	select {
	case <-done:
		t.Fatal("shutdown completed with an outstanding deferral")
	case <-time.After(20 * time.Millisecond):
	}

	go d.Complete()
	waitDone(t, q)
}

// TestDispatcherQueuePanicHandler tests that a panicking action does not stop the queue
func TestDispatcherQueuePanicHandler(t *testing.T) {
	var recovered atomic.Value
	q := jsbind.NewDispatcherQueue(jsbind.WithQueuePanicHandler(func(r interface{}) {
		recovered.Store(r)
	}))

	var after bool
	q.TryEnqueue(func() { panic("boom") })
	q.TryEnqueue(func() { after = true })
	q.Shutdown()
	startQueue(t, q)
	waitDone(t, q)

	require.Equal(t, "boom", recovered.Load())
	require.True(t, after)
}

// TestDispatcherQueueThreadAccess tests queue ownership and the current queue
func TestDispatcherQueueThreadAccess(t *testing.T) {
	q := jsbind.NewDispatcherQueue()
	require.False(t, q.HasThreadAccess())
	require.ErrorIs(t, q.CheckAccess(), jsbind.ErrInvalidThreadAccess)
	require.Nil(t, jsbind.CurrentDispatcherQueue())

	var (
		inside  bool
		current *jsbind.DispatcherQueue
		state   jsbind.QueueState
	)
	q.TryEnqueue(func() {
		inside = q.HasThreadAccess() && q.CheckAccess() == nil
		current = jsbind.CurrentDispatcherQueue()
		state = q.State()
	})
	q.Shutdown()
	startQueue(t, q)
	waitDone(t, q)

	require.True(t, inside)
	require.Same(t, q, current)
	require.Equal(t, jsbind.QueueRunning, state)
	require.False(t, q.HasThreadAccess())
}

// TestQueueStateString tests the readable queue state names
func TestQueueStateString(t *testing.T) {
	require.Equal(t, "created", jsbind.QueueCreated.String())
	require.Equal(t, "running", jsbind.QueueRunning.String())
	require.Equal(t, "shutdown-requested", jsbind.QueueShutdownRequested.String())
	require.Equal(t, "draining", jsbind.QueueDraining.String())
	require.Equal(t, "completed", jsbind.QueueCompleted.String())
	require.Equal(t, "unknown", jsbind.QueueState(42).String())
}
