package jsbind

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Duration is a time.Duration read from strings such as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds the file-configurable settings of an environment or runtime.
type Config struct {
	Engine           string   `toml:"engine"`
	MaxCallStackSize int      `toml:"max_call_stack_size"`
	Timers           bool     `toml:"timers"`
	Console          bool     `toml:"console"`
	LogLevel         string   `toml:"log_level"`
	ShutdownTimeout  Duration `toml:"shutdown_timeout"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Engine:          DefaultEngine,
		Timers:          true,
		Console:         true,
		LogLevel:        "info",
		ShutdownTimeout: Duration{5 * time.Second},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "jsbind: loading config %s", path)
	}
	return cfg, nil
}

// ParseConfig reads TOML text on top of DefaultConfig.
func ParseConfig(text string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "jsbind: parsing config")
	}
	return cfg, nil
}
