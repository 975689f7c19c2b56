// Package alignment estimates the coregistration polynomial between a master
// and a slave raster from matched point pairs, rejecting outliers by data
// snooping.
package alignment

import (
	"fmt"
	"math"
	"strings"

	"sar-coreg/pkg/geometry"

	"gonum.org/v1/gonum/stat/distuv"
)

// A priori standard deviations of the point-pair offsets, in pixels.
const (
	SigmaRow = 0.15 // line (azimuth) direction
	SigmaCol = 0.10 // pixel (range) direction
)

// Supported polynomial degrees.
const (
	MinDegree = 1
	MaxDegree = 3
)

// DefaultCriticalValue is the two-sided w-test critical value for a
// significance level of 0.001.
const DefaultCriticalValue = 3.2905267314919

// Weighting selects how per-pair quality scores become observation weights.
type Weighting int

const (
	WeightNone      Weighting = iota // every pair weighs 1
	WeightLinear                     // quality, rescaled to mean 1
	WeightQuadratic                  // quality², rescaled to mean 1
)

func (w Weighting) String() string {
	switch w {
	case WeightNone:
		return "none"
	case WeightLinear:
		return "linear"
	case WeightQuadratic:
		return "quadratic"
	default:
		return fmt.Sprintf("Weighting(%d)", int(w))
	}
}

// ParseWeighting parses a weighting mode name, ignoring case.
func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return WeightNone, nil
	case "linear":
		return WeightLinear, nil
	case "quadratic":
		return WeightQuadratic, nil
	default:
		return WeightNone, fmt.Errorf("unknown weighting %q (want none, linear or quadratic)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (w Weighting) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Weighting) UnmarshalText(text []byte) error {
	parsed, err := ParseWeighting(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Options configures one estimation run.
type Options struct {
	Degree        int             // Polynomial degree, MinDegree..MaxDegree
	MaxIterations int             // Maximum number of outlier removals
	CriticalValue float64         // w-test rejection threshold
	Weighting     Weighting       // Weighting mode
	Window        geometry.Window // Master extent used for coordinate normalization
	Debug         bool            // Trace every iteration through the estimator's logger
}

// DefaultOptions returns default estimation options for the given master window.
func DefaultOptions(window geometry.Window) Options {
	return Options{
		Degree:        2,
		MaxIterations: 20,
		CriticalValue: DefaultCriticalValue,
		Weighting:     WeightNone,
		Window:        window,
	}
}

// Validate checks the options before any work is done.
func (o Options) Validate() error {
	if o.Degree < MinDegree || o.Degree > MaxDegree {
		return fmt.Errorf("%w: degree %d outside [%d, %d]", ErrInvalidOptions, o.Degree, MinDegree, MaxDegree)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations %d is negative", ErrInvalidOptions, o.MaxIterations)
	}
	if !(o.CriticalValue > 0) || math.IsInf(o.CriticalValue, 0) {
		return fmt.Errorf("%w: critical value %g must be positive and finite", ErrInvalidOptions, o.CriticalValue)
	}
	switch o.Weighting {
	case WeightNone, WeightLinear, WeightQuadratic:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOptions, o.Weighting)
	}
	if err := o.Window.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// CriticalValueFromAlpha returns the two-sided standard normal critical
// value for significance level alpha (0.05 gives 1.96, 0.001 gives 3.29).
func CriticalValueFromAlpha(alpha float64) (float64, error) {
	if !(alpha > 0 && alpha < 1) {
		return 0, fmt.Errorf("significance level %g outside (0, 1)", alpha)
	}
	return distuv.UnitNormal.Quantile(1 - alpha/2), nil
}
