package jsbind

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Runtime runs an Environment on a dedicated goroutine, locked to its OS thread, driven by
// a DispatcherQueue. It is safe for concurrent use: work is posted to the runtime goroutine
// and runs there one action at a time.
type Runtime struct {
	queue           *DispatcherQueue
	env             *Environment
	log             zerolog.Logger
	shutdownTimeout time.Duration
}

// NewRuntime starts the runtime goroutine and creates its environment there.
func NewRuntime(opts ...Option) (*Runtime, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	q := NewDispatcherQueue(WithQueueLogger(o.log), WithQueuePanicHandler(o.panicHandler))
	rt := &Runtime{
		queue:           q,
		log:             o.log.With().Str("component", "runtime").Logger(),
		shutdownTimeout: o.shutdownTimeout,
	}

	ready := make(chan error, 1)
	q.TryEnqueue(func() {
		env, err := NewEnvironment(opts...)
		if err != nil {
			ready <- err
			q.Shutdown()
			return
		}
		rt.env = env
		q.OnShutdownCompleted(func() {
			if err := env.Close(); err != nil {
				rt.log.Error().Err(err).Msg("closing environment failed")
			}
		})
		ready <- nil
	})

	go func() {
		runtime.LockOSThread() // the engine is bound to one thread for its whole life
		defer runtime.UnlockOSThread()
		if err := q.Run(); err != nil {
			rt.log.Error().Err(err).Msg("dispatcher queue stopped")
		}
	}()

	if err := <-ready; err != nil {
		<-q.Done()
		return nil, err
	}
	return rt, nil
}

// Queue returns the runtime's dispatcher queue.
func (rt *Runtime) Queue() *DispatcherQueue {
	return rt.queue
}

// Environment returns the runtime's environment. It may only be used on the runtime
// goroutine, that is from inside Post and Do actions.
func (rt *Runtime) Environment() *Environment {
	return rt.env
}

// Post schedules fn on the runtime goroutine inside a fresh handle scope, followed by a
// microtask checkpoint. It returns false once the runtime has shut down.
func (rt *Runtime) Post(fn func(s *Scope)) bool {
	return rt.queue.TryEnqueue(func() {
		if err := rt.run(func(s *Scope) error {
			fn(s)
			return nil
		}); err != nil {
			rt.log.Error().Err(err).Msg("posted action failed")
		}
	})
}

// Do runs fn like Post and waits for its result. Called from the runtime goroutine, fn
// runs immediately.
func (rt *Runtime) Do(ctx context.Context, fn func(s *Scope) error) error {
	if rt.queue.HasThreadAccess() {
		return rt.run(fn)
	}
	done := make(chan error, 1)
	if !rt.queue.TryEnqueue(func() { done <- rt.run(fn) }) {
		return ErrQueueCompleted
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *Runtime) run(fn func(s *Scope) error) error {
	scope, err := rt.env.OpenScope(ScopeHandle)
	if err != nil {
		return err
	}
	err = func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("jsbind: action panicked: %v", r)
			}
		}()
		return fn(scope)
	}()
	if cerr := rt.env.RunMicrotasks(); cerr != nil && err == nil {
		err = cerr
	}
	scope.Close()
	return err
}

// Close shuts the runtime down once queued work, pending timers and deferrals are done,
// then closes the environment on the runtime goroutine. Without a deadline on ctx it waits
// at most the configured shutdown timeout. Closing twice is safe.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.queue.HasThreadAccess() {
		// waiting here would block the goroutine that has to finish the shutdown
		rt.queue.Shutdown()
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && rt.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.shutdownTimeout)
		defer cancel()
	}
	if err := rt.queue.ShutdownContext(ctx); err != nil {
		return errors.Wrap(err, "jsbind: runtime shutdown")
	}
	return nil
}
