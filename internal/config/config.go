// Package config loads signal-filter settings from defaults, an optional
// YAML file and SIGNALFILTER_* environment variables, in that order of
// precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/GuilhermeSoares009/signal-filter/internal/observability"
	"github.com/GuilhermeSoares009/signal-filter/internal/ratelimit"
)

const envPrefix = "SIGNALFILTER"

// Metrics exporters.
const (
	ExporterStdout     = observability.ExporterStdout
	ExporterPrometheus = observability.ExporterPrometheus
	ExporterNone       = observability.ExporterNone
)

type Config struct {
	Filter   FilterConfig   `mapstructure:"filter"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Simulate SimulateConfig `mapstructure:"simulate"`
}

type FilterConfig struct {
	Algorithm string        `mapstructure:"algorithm"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Exporter string        `mapstructure:"exporter"`
	Interval time.Duration `mapstructure:"interval"`
}

// SimulateConfig drives the producer harness of the simulate command.
type SimulateConfig struct {
	Producers int           `mapstructure:"producers"`
	Signals   int           `mapstructure:"signals"`
	MaxPause  time.Duration `mapstructure:"max_pause"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("filter.algorithm", string(ratelimit.AlgorithmSlotArray))
	v.SetDefault("filter.limit", 100)
	v.SetDefault("filter.window", time.Minute)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Second)
	v.SetDefault("server.idle_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("metrics.exporter", ExporterStdout)
	v.SetDefault("metrics.interval", 15*time.Second)

	v.SetDefault("simulate.producers", 3)
	v.SetDefault("simulate.signals", 100)
	v.SetDefault("simulate.max_pause", 100*time.Millisecond)
}

// New returns a viper instance with defaults and environment bindings applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ratelimit.ParseAlgorithm(c.Filter.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("filter.algorithm: %w", err))
	}
	if c.Filter.Limit <= 0 {
		errs = append(errs, errors.New("filter.limit must be greater than 0"))
	}
	if c.Filter.Window < time.Millisecond {
		errs = append(errs, errors.New("filter.window must be at least 1ms"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	switch c.Metrics.Exporter {
	case ExporterStdout, ExporterPrometheus, ExporterNone:
	default:
		errs = append(errs, fmt.Errorf("metrics.exporter must be one of stdout, prometheus, none: got %q", c.Metrics.Exporter))
	}
	if c.Metrics.Exporter == ExporterStdout && c.Metrics.Interval <= 0 {
		errs = append(errs, errors.New("metrics.interval must be positive"))
	}

	if c.Simulate.Producers <= 0 {
		errs = append(errs, errors.New("simulate.producers must be greater than 0"))
	}
	if c.Simulate.Signals < 0 {
		errs = append(errs, errors.New("simulate.signals must not be negative"))
	}
	if c.Simulate.MaxPause < 0 {
		errs = append(errs, errors.New("simulate.max_pause must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Algorithm returns the validated filter algorithm.
func (c *Config) Algorithm() ratelimit.Algorithm {
	alg, _ := ratelimit.ParseAlgorithm(c.Filter.Algorithm)
	return alg
}
