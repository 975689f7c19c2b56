// Package config loads estimation settings from a TOML file, a .env file and
// COREG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"sar-coreg/internal/alignment"
	"sar-coreg/pkg/geometry"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the complete command configuration.
type Config struct {
	Estimation EstimationConfig `toml:"estimation"`
	Workers    int              `toml:"workers"`
	LogLevel   string           `toml:"log_level"`
}

// EstimationConfig mirrors alignment.Options in file form.
type EstimationConfig struct {
	Degree        int                 `toml:"degree"`
	MaxIterations int                 `toml:"max_iterations"`
	CriticalValue float64             `toml:"critical_value"`
	Alpha         float64             `toml:"alpha"` // used when critical_value is unset
	Weighting     alignment.Weighting `toml:"weighting"`
	Window        *geometry.Window    `toml:"window"`
	Debug         bool                `toml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Estimation: EstimationConfig{
			Degree:        2,
			MaxIterations: 20,
			CriticalValue: alignment.DefaultCriticalValue,
			Weighting:     alignment.WeightNone,
		},
		LogLevel: "INFO",
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path, an optional .env file in the working directory and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown keys %v", path, undecoded)
		}
		// An alpha in the file replaces the default critical value unless
		// the file also sets critical_value.
		if md.IsDefined("estimation", "alpha") && !md.IsDefined("estimation", "critical_value") {
			cfg.Estimation.CriticalValue = 0
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	e := &c.Estimation
	if e.Degree, err = getEnvIntOrDefault("COREG_DEGREE", e.Degree); err != nil {
		return err
	}
	if e.MaxIterations, err = getEnvIntOrDefault("COREG_MAX_ITERATIONS", e.MaxIterations); err != nil {
		return err
	}
	if v := os.Getenv("COREG_ALPHA"); v != "" {
		if e.Alpha, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("COREG_ALPHA: %w", err)
		}
		e.CriticalValue = 0
	}
	if e.CriticalValue, err = getEnvFloatOrDefault("COREG_CRITICAL_VALUE", e.CriticalValue); err != nil {
		return err
	}
	if v := os.Getenv("COREG_WEIGHTING"); v != "" {
		if err := e.Weighting.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("COREG_WEIGHTING: %w", err)
		}
	}
	if c.Workers, err = getEnvIntOrDefault("COREG_WORKERS", c.Workers); err != nil {
		return err
	}
	c.LogLevel = getEnvOrDefault("COREG_LOG_LEVEL", c.LogLevel)
	return nil
}

// Options converts the estimation settings into alignment.Options. A
// non-nil window overrides the configured one.
func (c *Config) Options(window *geometry.Window) (alignment.Options, error) {
	e := c.Estimation
	opts := alignment.Options{
		Degree:        e.Degree,
		MaxIterations: e.MaxIterations,
		CriticalValue: e.CriticalValue,
		Weighting:     e.Weighting,
		Debug:         e.Debug,
	}

	if opts.CriticalValue == 0 {
		if e.Alpha == 0 {
			return opts, fmt.Errorf("estimation: neither critical_value nor alpha set")
		}
		cv, err := alignment.CriticalValueFromAlpha(e.Alpha)
		if err != nil {
			return opts, fmt.Errorf("estimation.alpha: %w", err)
		}
		opts.CriticalValue = cv
	}

	switch {
	case window != nil:
		opts.Window = *window
	case e.Window != nil:
		opts.Window = *e.Window
	default:
		return opts, fmt.Errorf("estimation: no normalization window")
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloatOrDefault(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
