package jsbind

import (
	"math"
	"time"
)

// hostTimers backs the setTimeout family on top of the environment's dispatcher queue.
type hostTimers struct {
	env    *Environment
	nextID int64
	active map[int64]*hostTimer
}

type hostTimer struct {
	timer    *Timer
	repeat   bool
	callback *Reference
	args     []*Reference
}

func (e *Environment) installTimers() error {
	ht := &hostTimers{env: e, active: make(map[int64]*hostTimer)}
	global, err := e.root.Global()
	if err != nil {
		return err
	}
	funcs := map[string]HostFunc{
		"setTimeout":    func(a *CallbackArgs) (Value, error) { return ht.set(a, false) },
		"setInterval":   func(a *CallbackArgs) (Value, error) { return ht.set(a, true) },
		"clearTimeout":  ht.clear,
		"clearInterval": ht.clear,
	}
	for name, fn := range funcs {
		f, err := e.root.Function(name, fn)
		if err != nil {
			return err
		}
		if err := global.Set(Key(name), f); err != nil {
			return err
		}
	}
	e.timers = ht
	return nil
}

func (ht *hostTimers) set(a *CallbackArgs, repeat bool) (Value, error) {
	fn := a.Arg(0)
	if !fn.IsFunction() {
		return Value{}, &Error{Name: "TypeError", Message: "callback must be a function"}
	}
	delay := 0.0
	if d := a.Arg(1); d.IsNumber() {
		delay, _ = d.ToFloat64()
	}
	if math.IsNaN(delay) || delay < 0 {
		delay = 0
	}

	cb, err := NewReference(fn)
	if err != nil {
		return Value{}, err
	}
	t := &hostTimer{callback: cb, repeat: repeat}
	if len(a.Args) > 2 {
		for _, arg := range a.Args[2:] {
			if !arg.IsBound() {
				t.args = append(t.args, nil)
				continue
			}
			ref, err := NewReference(arg)
			if err != nil {
				t.release()
				return Value{}, err
			}
			t.args = append(t.args, ref)
		}
	}

	ht.nextID++
	id := ht.nextID
	t.timer = ht.env.queue.CreateTimer()
	t.timer.SetInterval(time.Duration(delay * float64(time.Millisecond)))
	t.timer.SetRepeating(repeat)
	t.timer.OnTick(func(*Timer) { ht.fire(id) })
	ht.active[id] = t
	t.timer.Start()

	return a.Scope.Int(id)
}

func (ht *hostTimers) clear(a *CallbackArgs) (Value, error) {
	if !a.Arg(0).IsNumber() {
		return Value{}, nil
	}
	id, err := a.Arg(0).ToInt64()
	if err != nil {
		return Value{}, err
	}
	if t, ok := ht.active[id]; ok {
		delete(ht.active, id)
		t.timer.Stop()
		t.release()
	}
	return Value{}, nil
}

func (ht *hostTimers) fire(id int64) {
	t, ok := ht.active[id]
	if !ok {
		return
	}
	if !t.repeat {
		delete(ht.active, id)
		defer t.release()
	}

	e := ht.env
	scope, err := e.OpenScope(ScopeHandle)
	if err != nil {
		e.log.Error().Err(err).Int64("timer", id).Msg("opening timer scope failed")
		return
	}
	defer e.checkpoint()
	defer scope.Close()

	fn, err := t.callback.Value()
	if err != nil {
		e.log.Error().Err(err).Int64("timer", id).Msg("timer callback unavailable")
		return
	}
	args := make([]Value, len(t.args))
	for i, ref := range t.args {
		if ref == nil {
			continue
		}
		if args[i], err = ref.Value(); err != nil {
			e.log.Error().Err(err).Int64("timer", id).Msg("timer argument unavailable")
			return
		}
	}
	if _, err := fn.Call(Value{}, args...); err != nil {
		e.log.Error().Err(err).Int64("timer", id).Msg("uncaught exception in timer callback")
	}
}

func (ht *hostTimers) stopAll() {
	for id, t := range ht.active {
		t.timer.Stop()
		t.release()
		delete(ht.active, id)
	}
}

func (t *hostTimer) release() {
	t.callback.Release()
	for _, ref := range t.args {
		if ref != nil {
			ref.Release()
		}
	}
}
