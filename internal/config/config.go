package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danielpatrickdp/projector-align/internal/strategy"
	"gopkg.in/yaml.v3"
)

// #region types
// Config holds the user-tunable parameters of the aligner.
type Config struct {
	Tag                string        `yaml:"tag"`
	Strategy           string        `yaml:"strategy"`
	MaxSteps           int           `yaml:"max_steps"`
	ForceAcceptPercent int           `yaml:"force_accept_percent"`
	OffsetMovePercent  int           `yaml:"offset_move_percent"`
	ForceApplyRate     float64       `yaml:"force_apply_rate"`
	MutationRate       float64       `yaml:"mutation_rate"`
	StallThreshold     int           `yaml:"stall_threshold"`
	TickInterval       time.Duration `yaml:"tick_interval"`

	Store   StoreConfig   `yaml:"store"`
	Device  DeviceConfig  `yaml:"device"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // sqlite | redis | postgres | memory
	DSN     string `yaml:"dsn"`
}

// DeviceConfig points at the gRPC device host.
type DeviceConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// #endregion types

// #region defaults
// Default returns the documented defaults.
func Default() Config {
	p := strategy.DefaultParams()
	return Config{
		Tag:                "RPA",
		Strategy:           string(strategy.RandomWalk),
		MaxSteps:           p.MaxSteps,
		ForceAcceptPercent: p.ForceAcceptPercent,
		OffsetMovePercent:  p.OffsetMovePercent,
		ForceApplyRate:     p.ForceApplyRate,
		MutationRate:       p.MutationRate,
		StallThreshold:     p.StallThreshold,
		TickInterval:       100 * time.Millisecond,
		Store:              StoreConfig{Backend: "sqlite", DSN: "aligner.db"},
		Device:             DeviceConfig{Addr: "localhost:50061"},
		Log:                LogConfig{Level: "info", Format: "console"},
	}
}

// #endregion defaults

// #region load
// Load reads the YAML file at path over the defaults, then applies ALIGNER_* environment
// overrides. A missing file or key keeps the default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	float := func(key string, dst *float64) error {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = f
		}
		return nil
	}

	str("ALIGNER_TAG", &cfg.Tag)
	str("ALIGNER_STRATEGY", &cfg.Strategy)
	str("ALIGNER_STORE_BACKEND", &cfg.Store.Backend)
	str("ALIGNER_STORE_DSN", &cfg.Store.DSN)
	str("ALIGNER_DEVICE_ADDR", &cfg.Device.Addr)
	str("ALIGNER_LOG_LEVEL", &cfg.Log.Level)
	str("ALIGNER_LOG_FORMAT", &cfg.Log.Format)
	str("ALIGNER_METRICS_ADDR", &cfg.Metrics.Addr)

	for _, e := range []error{
		integer("ALIGNER_MAX_STEPS", &cfg.MaxSteps),
		integer("ALIGNER_FORCE_ACCEPT_PERCENT", &cfg.ForceAcceptPercent),
		integer("ALIGNER_OFFSET_MOVE_PERCENT", &cfg.OffsetMovePercent),
		integer("ALIGNER_STALL_THRESHOLD", &cfg.StallThreshold),
		float("ALIGNER_FORCE_APPLY_RATE", &cfg.ForceApplyRate),
		float("ALIGNER_MUTATION_RATE", &cfg.MutationRate),
	} {
		if e != nil {
			return e
		}
	}
	if v := os.Getenv("ALIGNER_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env ALIGNER_TICK_INTERVAL: %w", err)
		}
		cfg.TickInterval = d
	}
	return nil
}

// #endregion load

// #region validate
// Validate rejects values no strategy can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Tag == "" {
		errs = append(errs, errors.New("tag is empty"))
	}
	if _, err := strategy.New(strategy.ID(c.Strategy), c.Params()); err != nil {
		errs = append(errs, err)
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps %d is negative", c.MaxSteps))
	}
	if c.StallThreshold < 0 {
		errs = append(errs, fmt.Errorf("stall_threshold %d is negative", c.StallThreshold))
	}
	for name, v := range map[string]int{
		"force_accept_percent": c.ForceAcceptPercent,
		"offset_move_percent":  c.OffsetMovePercent,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s %d outside [0,100]", name, v))
		}
	}
	for name, v := range map[string]float64{
		"force_apply_rate": c.ForceApplyRate,
		"mutation_rate":    c.MutationRate,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %g outside [0,1]", name, v))
		}
	}
	switch c.Store.Backend {
	case "sqlite", "redis", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick_interval %s is negative", c.TickInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// #endregion validate

// #region params
// Params converts the strategy knobs.
func (c Config) Params() strategy.Params {
	return strategy.Params{
		MaxSteps:           c.MaxSteps,
		ForceAcceptPercent: c.ForceAcceptPercent,
		OffsetMovePercent:  c.OffsetMovePercent,
		ForceApplyRate:     c.ForceApplyRate,
		MutationRate:       c.MutationRate,
		StallThreshold:     c.StallThreshold,
	}
}

// #endregion params
