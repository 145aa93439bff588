package jsbind_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buke/jsbind"
)

// TestTimerOrdering tests that the timer due first ticks first regardless of start order
func TestTimerOrdering(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	var order []string
	q.TryEnqueue(func() {
		t1 := q.CreateTimer()
		t1.SetInterval(10 * time.Millisecond)
		t1.OnTick(func(*jsbind.Timer) { order = append(order, "T1") })

		t2 := q.CreateTimer()
		t2.SetInterval(5 * time.Millisecond)
		t2.OnTick(func(*jsbind.Timer) { order = append(order, "T2") })

		t1.Start()
		t2.Start()
	})
	q.Shutdown()
	startQueue(t, q)
	waitDone(t, q)

	require.Equal(t, []string{"T2", "T1"}, order)
}

// TestTimerStop tests that a stopped timer never ticks and does not hold off shutdown
func TestTimerStop(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	ticked := false
	timer := q.CreateTimer()
	timer.SetInterval(time.Hour)
	timer.OnTick(func(*jsbind.Timer) { ticked = true })
	timer.Start()
	require.True(t, timer.IsRunning())
	timer.Stop()
	require.False(t, timer.IsRunning())

	q.Shutdown()
	startQueue(t, q)
	waitDone(t, q)
	require.False(t, ticked)
}

// TestTimerRepeatingStopsOnShutdown tests that a repeating timer ends once shutdown is requested
func TestTimerRepeatingStopsOnShutdown(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	ticks := 0
	timer := q.CreateTimer()
	timer.SetInterval(time.Millisecond)
	timer.SetRepeating(true)
	require.True(t, timer.IsRepeating())
	timer.OnTick(func(*jsbind.Timer) {
		ticks++
		if ticks == 3 {
			q.Shutdown()
		}
	})
	timer.Start()
	startQueue(t, q)
	waitDone(t, q)

	// the tick that requested shutdown rescheduled once before the request ran
	require.GreaterOrEqual(t, ticks, 3)
	require.False(t, timer.IsRunning())
}

// TestTimerStopFromTick tests stopping a repeating timer inside its own tick handler
func TestTimerStopFromTick(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	ticks := 0
	timer := q.CreateTimer()
	timer.SetInterval(time.Millisecond)
	timer.SetRepeating(true)
	timer.OnTick(func(tm *jsbind.Timer) {
		ticks++
		if ticks == 2 {
			tm.Stop()
			q.Shutdown()
		}
	})
	timer.Start()
	startQueue(t, q)
	waitDone(t, q)

	require.Equal(t, 2, ticks)
}

// TestTimerSetIntervalRestarts tests that changing the interval of a running timer restarts it
func TestTimerSetIntervalRestarts(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	var fired time.Time
	timer := q.CreateTimer()
	timer.SetInterval(time.Hour)
	timer.OnTick(func(*jsbind.Timer) { fired = time.Now() })

	start := time.Now()
	timer.Start()
	timer.SetInterval(5 * time.Millisecond)
	require.Equal(t, 5*time.Millisecond, timer.Interval())
	require.True(t, timer.IsRunning())

	q.Shutdown()
	startQueue(t, q)
	waitDone(t, q)

	require.False(t, fired.IsZero())
	require.GreaterOrEqual(t, fired.Sub(start), 5*time.Millisecond)
}

// TestTimerWithoutHandler tests that a timer with no tick handler does not start
func TestTimerWithoutHandler(t *testing.T) {
	q := jsbind.NewDispatcherQueue()
	timer := q.CreateTimer()
	timer.Start()
	require.False(t, timer.IsRunning())
}

// TestTimerStartAfterCompletion tests that a timer on a completed queue stays stopped
func TestTimerStartAfterCompletion(t *testing.T) {
	q := jsbind.NewDispatcherQueue()
	startQueue(t, q)
	<-q.Shutdown()
	waitDone(t, q)

	timer := q.CreateTimer()
	timer.OnTick(func(*jsbind.Timer) {})
	timer.Start()
	require.False(t, timer.IsRunning())
}

// TestTimerStopFromOtherGoroutine tests that stopping a timer off the queue goroutine while
// the loop waits on it lets shutdown complete right away
func TestTimerStopFromOtherGoroutine(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	timer := q.CreateTimer()
	timer.SetInterval(time.Hour)
	timer.OnTick(func(*jsbind.Timer) { t.Error("stopped timer ticked") })
	timer.Start()

	startQueue(t, q)
	done := q.Shutdown()
	require.Eventually(t, func() bool { return q.State() == jsbind.QueueDraining }, 5*time.Second, time.Millisecond)

	timer.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown still blocked after the only timer was stopped, state=%s", q.State())
	}
	require.Equal(t, jsbind.QueueCompleted, q.State())
}

// TestTimerRestartFromOtherGoroutine tests that shortening a waiting timer's interval off the
// queue goroutine replaces the long wait
func TestTimerRestartFromOtherGoroutine(t *testing.T) {
	q := jsbind.NewDispatcherQueue()

	ticked := make(chan struct{})
	timer := q.CreateTimer()
	timer.SetInterval(time.Hour)
	timer.OnTick(func(*jsbind.Timer) { close(ticked) })
	timer.Start()

	startQueue(t, q)
	done := q.Shutdown()
	require.Eventually(t, func() bool { return q.State() == jsbind.QueueDraining }, 5*time.Second, time.Millisecond)

	timer.SetInterval(time.Millisecond)
	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("restarted timer did not tick")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown blocked by the replaced job")
	}
}
