package alignment

import (
	"fmt"

	"sar-coreg/internal/poly"
	"sar-coreg/pkg/geometry"

	"github.com/montanaflynn/stats"
)

// Termination records why the iteration loop stopped.
type Termination int

const (
	TerminatedAligned       Termination = iota // offsets negligible, no estimation
	TerminatedAccepted                         // every w-test below the critical value
	TerminatedNoRedundancy                     // as many observations as coefficients
	TerminatedMaxIterations                    // removal budget spent
)

func (t Termination) String() string {
	switch t {
	case TerminatedAligned:
		return "already aligned"
	case TerminatedAccepted:
		return "all tests accepted"
	case TerminatedNoRedundancy:
		return "no redundancy"
	case TerminatedMaxIterations:
		return "max iterations reached"
	default:
		return fmt.Sprintf("Termination(%d)", int(t))
	}
}

// Removal is an observation rejected by data snooping.
type Removal struct {
	Observation
	Iteration int     // 1-based solve after which it was removed
	Combined  float64 // WRow² + WCol² at removal
}

// Statistics summarizes the residuals of the surviving observations.
type Statistics struct {
	RowMean, RowStd float64
	ColMean, ColStd float64
	RMSMean, RMSStd float64

	MaxWRow, MaxWCol           float64
	ModelTestRow, ModelTestCol float64
	MaxDeviation               float64

	// Coverage is the fraction of the window inside the convex hull of the
	// surviving master positions.
	Coverage float64
}

// Result is the outcome of one estimation run.
//
// Row and Col are the offset polynomials (slave − master) over normalized
// master coordinates, in canonical term order. Use Offset, RawRow/RawCol or
// Warp to evaluate them in raw pixel coordinates. They are offsets, not the
// mapping itself: for already aligned input both are zero, and the identity
// mapping is only obtained through Warp.
type Result struct {
	Degree int
	Row    poly.Polynomial
	Col    poly.Polynomial

	Iterations  int // number of solves performed
	Converged   bool
	Termination Termination

	Observations []Observation // survivors, in input order
	Removed      []Removal     // in removal order
	Statistics   Statistics
	Diagnostics  []Diagnostic

	normalizer poly.Normalizer
}

// Window returns the normalization window the polynomials refer to.
func (r *Result) Window() geometry.Window {
	return r.normalizer.Window()
}

// Surviving returns the input indices of the observations kept in the final fit.
func (r *Result) Surviving() []int {
	idx := make([]int, len(r.Observations))
	for i, o := range r.Observations {
		idx[i] = o.Index
	}
	return idx
}

// RemovedIndices returns the input indices of the rejected observations, in removal order.
func (r *Result) RemovedIndices() []int {
	idx := make([]int, len(r.Removed))
	for i, o := range r.Removed {
		idx[i] = o.Index
	}
	return idx
}

// Offset evaluates the fitted slave − master offset at a raw master position.
func (r *Result) Offset(master geometry.Pixel) geometry.Pixel {
	x, y := r.normalizer.Apply(master)
	return geometry.Pixel{Row: r.Row.Eval(x, y), Col: r.Col.Eval(x, y)}
}

// Map returns the slave position matching a raw master position.
func (r *Result) Map(master geometry.Pixel) geometry.Pixel {
	return master.Add(r.Offset(master))
}

// RawRow returns the row offset polynomial over raw master coordinates.
func (r *Result) RawRow() poly.Polynomial {
	return r.normalizer.ToRaw(r.Row)
}

// RawCol returns the column offset polynomial over raw master coordinates.
func (r *Result) RawCol() poly.Polynomial {
	return r.normalizer.ToRaw(r.Col)
}

// Warp returns the absolute mapping master → slave over raw coordinates,
// the form expected by plain polynomial warp evaluators.
func (r *Result) Warp() (poly.Polynomial, poly.Polynomial, error) {
	idRow, idCol, err := poly.Identity(r.Degree)
	if err != nil {
		return poly.Polynomial{}, poly.Polynomial{}, fmt.Errorf("warp: %w", err)
	}
	return r.RawRow().Add(idRow), r.RawCol().Add(idCol), nil
}

// Affine returns the warp of a degree 1 result as an affine transform on (row, col).
func (r *Result) Affine() (geometry.AffineTransform, error) {
	if r.Degree != 1 {
		return geometry.AffineTransform{}, fmt.Errorf("affine form needs degree 1, got %d", r.Degree)
	}
	row, col, err := r.Warp()
	if err != nil {
		return geometry.AffineTransform{}, err
	}
	return geometry.AffineTransform{
		A: row.Coefficients[1], B: row.Coefficients[2], TX: row.Coefficients[0],
		C: col.Coefficients[1], D: col.Coefficients[2], TY: col.Coefficients[0],
	}, nil
}

// residualStatistics computes mean and population standard deviation of the
// residuals per axis and of the per-point RMS.
func residualStatistics(obs []Observation) (Statistics, error) {
	var s Statistics
	if len(obs) == 0 {
		return s, nil
	}
	rows := make(stats.Float64Data, len(obs))
	cols := make(stats.Float64Data, len(obs))
	rms := make(stats.Float64Data, len(obs))
	for i, o := range obs {
		rows[i] = o.Residual.Row
		cols[i] = o.Residual.Col
		rms[i] = o.RMS()
	}

	var err error
	if s.RowMean, s.RowStd, err = meanStd(rows); err != nil {
		return s, fmt.Errorf("row residuals: %w", err)
	}
	if s.ColMean, s.ColStd, err = meanStd(cols); err != nil {
		return s, fmt.Errorf("column residuals: %w", err)
	}
	if s.RMSMean, s.RMSStd, err = meanStd(rms); err != nil {
		return s, fmt.Errorf("rms: %w", err)
	}
	return s, nil
}

func meanStd(data stats.Float64Data) (float64, float64, error) {
	mean, err := data.Mean()
	if err != nil {
		return 0, 0, err
	}
	std, err := data.StandardDeviationPopulation()
	if err != nil {
		return 0, 0, err
	}
	return mean, std, nil
}
