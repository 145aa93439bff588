package jsbind

import (
	"sync"
	"sync/atomic"
	"time"
)

// timerJob is one scheduled firing of a Timer. due and timer never change after creation.
type timerJob struct {
	due       time.Time
	seq       uint64
	timer     *Timer
	cancelled atomic.Bool
}

func (j *timerJob) invoke() {
	if j.cancelled.Load() {
		return
	}
	j.timer.fire(j)
}

// timerHeap orders jobs by due time; jobs due at the same instant fire in start order.
type timerHeap []*timerJob

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerJob)) }

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// Timer fires a tick handler on its queue's goroutine after an interval, once or repeatedly.
type Timer struct {
	q *DispatcherQueue

	mu        sync.Mutex
	interval  time.Duration
	repeating bool
	running   bool
	job       *timerJob
	tick      func(*Timer)
}

// CreateTimer returns a stopped timer bound to q.
func (q *DispatcherQueue) CreateTimer() *Timer {
	return &Timer{q: q}
}

// Interval returns the delay between start and the first tick, and between repeats.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetInterval changes the interval, restarting the timer if it is running.
func (t *Timer) SetInterval(d time.Duration) {
	t.mu.Lock()
	t.interval = d
	old, job := t.restartLocked()
	t.mu.Unlock()
	t.unschedule(old)
	t.schedule(job)
}

// IsRepeating reports whether the timer reschedules itself after each tick.
func (t *Timer) IsRepeating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repeating
}

// SetRepeating changes repetition, restarting the timer if it is running.
func (t *Timer) SetRepeating(repeating bool) {
	t.mu.Lock()
	t.repeating = repeating
	old, job := t.restartLocked()
	t.mu.Unlock()
	t.unschedule(old)
	t.schedule(job)
}

// OnTick sets the tick handler. A timer without a handler does not start.
func (t *Timer) OnTick(h func(*Timer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick = h
}

// IsRunning reports whether a tick is scheduled.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start schedules the first tick at now+Interval. It is a no-op while running.
func (t *Timer) Start() {
	t.mu.Lock()
	job := t.startLocked()
	t.mu.Unlock()
	t.schedule(job)
}

// Stop cancels the pending tick, if any. The job leaves the timer heap on the queue
// goroutine, so a stopped timer no longer holds off shutdown.
func (t *Timer) Stop() {
	t.mu.Lock()
	job := t.stopLocked()
	t.mu.Unlock()
	t.unschedule(job)
}

func (t *Timer) startLocked() *timerJob {
	if t.running || t.tick == nil {
		return nil
	}
	t.running = true
	t.job = &timerJob{due: time.Now().Add(t.interval), timer: t}
	return t.job
}

// stopLocked cancels the current job and returns it.
func (t *Timer) stopLocked() *timerJob {
	job := t.job
	if job != nil {
		job.cancelled.Store(true)
		t.job = nil
	}
	t.running = false
	return job
}

// restartLocked returns the cancelled job and its replacement.
func (t *Timer) restartLocked() (old, job *timerJob) {
	if !t.running {
		return nil, nil
	}
	old = t.stopLocked()
	return old, t.startLocked()
}

// unschedule removes a cancelled job from the heap. Off the queue goroutine the removal
// goes through TryEnqueue, which also wakes a waiting loop.
func (t *Timer) unschedule(job *timerJob) {
	if job == nil {
		return
	}
	remove := func() {
		t.q.lock()
		t.q.removeTimerLocked(job)
		t.q.unlock()
	}
	if t.q.HasThreadAccess() {
		remove()
		return
	}
	t.q.TryEnqueue(remove)
}

// schedule hands job to the queue goroutine, which owns the timer heap.
func (t *Timer) schedule(job *timerJob) {
	if job == nil {
		return
	}
	ok := t.q.TryEnqueue(func() {
		if job.cancelled.Load() {
			return
		}
		t.q.lock()
		t.q.pushTimerLocked(job)
		t.q.unlock()
	})
	if !ok {
		t.mu.Lock()
		if t.job == job {
			_ = t.stopLocked()
		}
		t.mu.Unlock()
	}
}

func (t *Timer) fire(job *timerJob) {
	t.mu.Lock()
	if t.job != job {
		t.mu.Unlock()
		return
	}
	tick := t.tick
	if !t.repeating {
		t.running = false
		t.job = nil
	}
	t.mu.Unlock()

	tick(t)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job != job {
		// stopped or restarted by the handler
		return
	}
	t.q.lock()
	defer t.q.unlock()
	if t.q.shutdownRequested {
		t.job = nil
		t.running = false
		return
	}
	t.job = &timerJob{due: time.Now().Add(t.interval), timer: t}
	t.q.pushTimerLocked(t.job)
}
