package jsbind

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// QueueState is the lifecycle stage of a DispatcherQueue.
type QueueState int32

const (
	QueueCreated QueueState = iota
	QueueRunning
	QueueShutdownRequested
	QueueDraining
	QueueCompleted
)

func (s QueueState) String() string {
	switch s {
	case QueueCreated:
		return "created"
	case QueueRunning:
		return "running"
	case QueueShutdownRequested:
		return "shutdown-requested"
	case QueueDraining:
		return "draining"
	case QueueCompleted:
		return "completed"
	}
	return "unknown"
}

// DispatcherQueue is a single-goroutine cooperative work queue. Any goroutine may enqueue
// work; only the goroutine that calls Run executes it.
//
// The writer list, the timer heap, the deferral counter and the shutdown bookkeeping are
// guarded by mu. The reader list belongs to the running goroutine and is drained without
// holding mu, so actions may enqueue more work freely.
type DispatcherQueue struct {
	mu     sync.Mutex
	writer []func()
	reader []func()
	timers timerHeap
	seq    uint64

	deferrals         int
	shutdownRequested bool
	shutdownWaiters   []chan struct{}
	completed         bool

	onStarting  []func(*ShutdownStartingEvent)
	onCompleted []func()

	wake  chan struct{}
	done  chan struct{}
	owner atomic.Int64
	state atomic.Int32

	log          zerolog.Logger
	panicHandler func(interface{})

	debugLockOwner atomic.Int64
}

// QueueOption configures a DispatcherQueue.
type QueueOption func(*DispatcherQueue)

// WithQueueLogger sets the logger used for lifecycle events and recovered panics.
func WithQueueLogger(log zerolog.Logger) QueueOption {
	return func(q *DispatcherQueue) {
		q.log = log.With().Str("component", "dispatcher").Logger()
	}
}

// WithQueuePanicHandler receives values recovered from panicking actions.
func WithQueuePanicHandler(h func(interface{})) QueueOption {
	return func(q *DispatcherQueue) {
		q.panicHandler = h
	}
}

// NewDispatcherQueue creates a detached queue. It binds to a goroutine when Run is called.
func NewDispatcherQueue(opts ...QueueOption) *DispatcherQueue {
	q := &DispatcherQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *DispatcherQueue) lock() {
	q.mu.Lock()
	debugLockAcquired(&q.debugLockOwner)
}

func (q *DispatcherQueue) unlock() {
	debugLockReleased(&q.debugLockOwner)
	q.mu.Unlock()
}

// State returns the current lifecycle stage.
func (q *DispatcherQueue) State() QueueState {
	return QueueState(q.state.Load())
}

// Done is closed once the queue has completed.
func (q *DispatcherQueue) Done() <-chan struct{} {
	return q.done
}

// HasThreadAccess reports whether the caller runs on the queue's goroutine.
func (q *DispatcherQueue) HasThreadAccess() bool {
	owner := q.owner.Load()
	return owner != 0 && owner == goid.Get()
}

// CheckAccess returns ErrInvalidThreadAccess off the queue's goroutine.
func (q *DispatcherQueue) CheckAccess() error {
	if !q.HasThreadAccess() {
		return ErrInvalidThreadAccess
	}
	return nil
}

// TryEnqueue appends action to the queue. It returns false once the queue has completed;
// the action is then dropped.
func (q *DispatcherQueue) TryEnqueue(action func()) bool {
	q.lock()
	defer q.unlock()
	return q.tryEnqueueLocked(action)
}

func (q *DispatcherQueue) tryEnqueueLocked(action func()) bool {
	debugAssertLockHeld(&q.debugLockOwner, "tryEnqueueLocked")
	if q.completed {
		return false
	}
	q.writer = append(q.writer, action)
	q.signal()
	return true
}

func (q *DispatcherQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue on the calling goroutine until shutdown completes. It returns an
// error if the queue was already run.
func (q *DispatcherQueue) Run() error {
	if !q.owner.CompareAndSwap(0, goid.Get()) {
		return errors.New("jsbind: dispatcher queue already running")
	}
	prev := currentQueue.get()
	currentQueue.set(q)
	defer currentQueue.set(prev)

	q.state.Store(int32(QueueRunning))
	q.log.Debug().Msg("dispatcher queue running")

	for {
		debugAssertLockNotHeld(&q.debugLockOwner, "run actions")
		for _, action := range q.reader {
			q.invoke(action)
		}
		clear(q.reader)
		q.reader = q.reader[:0]

		if q.idle() {
			break
		}
	}

	q.lock()
	handlers := q.onCompleted
	waiters := q.shutdownWaiters
	q.shutdownWaiters = nil
	q.unlock()

	for _, h := range handlers {
		q.invoke(h)
	}
	q.state.Store(int32(QueueCompleted))
	for _, w := range waiters {
		close(w)
	}
	close(q.done)
	q.log.Debug().Msg("dispatcher queue completed")
	return nil
}

// idle swaps in new work and due timers or waits for them. Due timers run after the work
// that was already queued when they came due. It returns true once the queue has completed.
func (q *DispatcherQueue) idle() bool {
	for {
		q.lock()
		q.reader, q.writer = q.writer, q.reader
		// due timers go after the work queued before them so they cannot starve it
		timeout := q.collectDueLocked(time.Now())
		if len(q.reader) > 0 {
			q.unlock()
			return false
		}
		if q.shutdownRequested {
			if q.deferrals == 0 && !q.hasLiveTimersLocked() {
				q.completed = true
				q.unlock()
				return true
			}
			q.state.Store(int32(QueueDraining))
		}
		q.unlock()
		q.wait(timeout)
	}
}

// collectDueLocked moves due timer jobs into the reader list in firing order. It returns
// the time until the next pending job, or a negative duration when none remain.
func (q *DispatcherQueue) collectDueLocked(now time.Time) time.Duration {
	debugAssertLockHeld(&q.debugLockOwner, "collectDueLocked")
	for q.timers.Len() > 0 {
		next := q.timers[0]
		if next.cancelled.Load() {
			heap.Pop(&q.timers)
			continue
		}
		if next.due.After(now) {
			return next.due.Sub(now)
		}
		heap.Pop(&q.timers)
		q.reader = append(q.reader, next.invoke)
	}
	return -1
}

// hasLiveTimersLocked reports whether any job in the heap has not been cancelled.
func (q *DispatcherQueue) hasLiveTimersLocked() bool {
	debugAssertLockHeld(&q.debugLockOwner, "hasLiveTimersLocked")
	for _, job := range q.timers {
		if !job.cancelled.Load() {
			return true
		}
	}
	return false
}

// removeTimerLocked drops job from the heap if it is still there.
func (q *DispatcherQueue) removeTimerLocked(job *timerJob) {
	debugAssertLockHeld(&q.debugLockOwner, "removeTimerLocked")
	for i, j := range q.timers {
		if j == job {
			heap.Remove(&q.timers, i)
			return
		}
	}
}

func (q *DispatcherQueue) wait(timeout time.Duration) {
	if timeout < 0 {
		<-q.wake
		return
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-q.wake:
	case <-t.C:
	}
}

func (q *DispatcherQueue) invoke(action func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("dispatcher action panicked")
			if q.panicHandler != nil {
				q.panicHandler(r)
			}
		}
	}()
	action()
}

func (q *DispatcherQueue) pushTimerLocked(job *timerJob) {
	debugAssertLockHeld(&q.debugLockOwner, "pushTimerLocked")
	q.seq++
	job.seq = q.seq
	heap.Push(&q.timers, job)
}

// CreateDeferral returns a token that holds off shutdown completion until completed.
func (q *DispatcherQueue) CreateDeferral() *Deferral {
	q.lock()
	defer q.unlock()
	return q.createDeferralLocked()
}

func (q *DispatcherQueue) createDeferralLocked() *Deferral {
	debugAssertLockHeld(&q.debugLockOwner, "createDeferralLocked")
	q.deferrals++
	d := &Deferral{q: q}
	trackLeak(d, "deferral", q.log, (*Deferral).isCompleted)
	return d
}

func (q *DispatcherQueue) releaseDeferral() {
	debugAssertLockNotHeld(&q.debugLockOwner, "releaseDeferral")
	q.lock()
	q.deferrals--
	q.unlock()
}

// OnShutdownStarting registers a handler run on the queue goroutine when shutdown begins.
func (q *DispatcherQueue) OnShutdownStarting(h func(*ShutdownStartingEvent)) {
	q.lock()
	defer q.unlock()
	q.onStarting = append(q.onStarting, h)
}

// OnShutdownCompleted registers a handler run on the queue goroutine after the last
// action, before shutdown waiters are released.
func (q *DispatcherQueue) OnShutdownCompleted(h func()) {
	q.lock()
	defer q.unlock()
	q.onCompleted = append(q.onCompleted, h)
}

// Shutdown asks the queue to finish once all queued work, pending timers and outstanding
// deferrals are done. The returned channel is closed at completion. Calling Shutdown again,
// even after completion, is safe.
func (q *DispatcherQueue) Shutdown() <-chan struct{} {
	waiter := make(chan struct{})
	ok := q.TryEnqueue(func() {
		q.lock()
		q.shutdownWaiters = append(q.shutdownWaiters, waiter)
		if q.shutdownRequested {
			q.unlock()
			return
		}
		q.shutdownRequested = true
		handlers := q.onStarting
		q.unlock()

		q.state.Store(int32(QueueShutdownRequested))
		q.log.Debug().Msg("dispatcher queue shutting down")
		ev := &ShutdownStartingEvent{q: q}
		for _, h := range handlers {
			q.invoke(func() { h(ev) })
		}
	})
	if !ok {
		close(waiter)
	}
	return waiter
}

// ShutdownContext requests shutdown and waits for completion or ctx expiry.
func (q *DispatcherQueue) ShutdownContext(ctx context.Context) error {
	select {
	case <-q.Shutdown():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownStartingEvent is passed to shutdown-starting handlers.
type ShutdownStartingEvent struct {
	q *DispatcherQueue
}

// GetDeferral postpones shutdown completion until the returned deferral completes.
func (e *ShutdownStartingEvent) GetDeferral() *Deferral {
	return e.q.CreateDeferral()
}

// Deferral holds off shutdown completion while outstanding.
type Deferral struct {
	q         *DispatcherQueue
	completed atomic.Bool
}

func (d *Deferral) isCompleted() bool {
	return d.completed.Load()
}

// Complete releases the deferral. Only the first call has an effect.
func (d *Deferral) Complete() {
	if !d.completed.CompareAndSwap(false, true) {
		return
	}
	d.q.TryEnqueue(d.q.releaseDeferral)
}
