package jsbind

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/buke/jsbind/native"
)

type options struct {
	log              zerolog.Logger
	level            *zerolog.Level
	engineName       string
	engine           native.Factory
	maxCallStackSize int
	timers           bool
	console          bool
	panicHandler     func(interface{})
	shutdownTimeout  time.Duration
}

// Option configures NewEnvironment and NewRuntime.
type Option func(*options) error

func newOptions(opts []Option) (*options, error) {
	cfg := DefaultConfig()
	o := &options{
		log:             zerolog.Nop(),
		engineName:      cfg.Engine,
		shutdownTimeout: cfg.ShutdownTimeout.Duration,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.level != nil {
		o.log = o.log.Level(*o.level)
	}
	if o.engine == nil {
		f, err := lookupEngine(o.engineName)
		if err != nil {
			return nil, err
		}
		o.engine = f
	}
	return o, nil
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) error {
		o.log = log
		return nil
	}
}

// WithEngine uses factory to create the engine environment.
func WithEngine(name string, factory native.Factory) Option {
	return func(o *options) error {
		o.engineName, o.engine = name, factory
		return nil
	}
}

// WithEngineName picks a registered engine by name.
func WithEngineName(name string) Option {
	return func(o *options) error {
		f, err := lookupEngine(name)
		if err != nil {
			return err
		}
		o.engineName, o.engine = name, f
		return nil
	}
}

// WithMaxCallStackSize limits script recursion depth.
func WithMaxCallStackSize(size int) Option {
	return func(o *options) error {
		o.maxCallStackSize = size
		return nil
	}
}

// WithTimers installs setTimeout, setInterval, clearTimeout and clearInterval.
func WithTimers(enabled bool) Option {
	return func(o *options) error {
		o.timers = enabled
		return nil
	}
}

// WithConsole installs a console global that writes to the logger.
func WithConsole(enabled bool) Option {
	return func(o *options) error {
		o.console = enabled
		return nil
	}
}

// WithPanicHandler receives values recovered from panicking queue actions.
func WithPanicHandler(h func(interface{})) Option {
	return func(o *options) error {
		o.panicHandler = h
		return nil
	}
}

// WithShutdownTimeout bounds how long Runtime.Close waits when its context has no deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.shutdownTimeout = d
		return nil
	}
}

// WithConfig applies every setting of cfg.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		if cfg.Engine != "" {
			f, err := lookupEngine(cfg.Engine)
			if err != nil {
				return err
			}
			o.engineName, o.engine = cfg.Engine, f
		}
		if cfg.LogLevel != "" {
			lvl, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				return errors.Wrapf(err, "jsbind: log level %q", cfg.LogLevel)
			}
			o.level = &lvl
		}
		o.maxCallStackSize = cfg.MaxCallStackSize
		o.timers = cfg.Timers
		o.console = cfg.Console
		if cfg.ShutdownTimeout.Duration > 0 {
			o.shutdownTimeout = cfg.ShutdownTimeout.Duration
		}
		return nil
	}
}
