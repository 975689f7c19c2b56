package alignment

import (
	"fmt"

	"sar-coreg/internal/logging"
	"sar-coreg/internal/poly"
)

// Logger receives debug traces when Options.Debug is set.
type Logger interface {
	Printf(format string, args ...any)
}

// Estimator runs the iterative coregistration polynomial estimation.
// An Estimator holds no run state and may be shared between goroutines.
type Estimator struct {
	opts       Options
	normalizer poly.Normalizer
	logger     Logger
}

// NewEstimator validates the options and returns an Estimator.
func NewEstimator(opts Options) (*Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	normalizer, err := poly.NewNormalizer(opts.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return &Estimator{opts: opts, normalizer: normalizer, logger: logging.New()}, nil
}

// WithLogger returns a copy of the estimator tracing to l.
func (e *Estimator) WithLogger(l Logger) *Estimator {
	c := *e
	c.logger = l
	return &c
}

// Options returns the options of the estimator.
func (e *Estimator) Options() Options {
	return e.opts
}

// Estimate fits the coregistration polynomial to the point pairs.
func Estimate(pairs []PointPair, opts Options) (*Result, error) {
	e, err := NewEstimator(opts)
	if err != nil {
		return nil, err
	}
	return e.Estimate(pairs)
}

func (e *Estimator) debugf(format string, args ...any) {
	if e.opts.Debug && e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Estimate fits the coregistration polynomial to the point pairs. Fatal
// failures return no result; warnings are collected in Result.Diagnostics.
func (e *Estimator) Estimate(pairs []PointPair) (*Result, error) {
	degree := e.opts.Degree
	unknowns := poly.NumberOfCoefficients(degree)

	if len(pairs) < unknowns {
		return nil, fmt.Errorf("%w: %d point pairs for %d coefficients of degree %d",
			ErrInsufficientRedundancy, len(pairs), unknowns, degree)
	}

	obs, err := newObservations(pairs, e.opts.Weighting)
	if err != nil {
		return nil, err
	}

	if alreadyAligned(obs) {
		e.debugf("Estimate: master and slave coincide (%d pairs), using identity mapping", len(obs))
		return e.alignedResult(obs)
	}

	normalizeObservations(obs, e.normalizer)

	res := &Result{Degree: degree, normalizer: e.normalizer}
	for {
		iteration := res.Iterations + 1
		w := assignWeights(obs, e.opts.Weighting)
		A, err := designMatrix(obs, degree)
		if err != nil {
			return nil, &EstimationError{Iteration: iteration, Observations: len(obs), Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
		}
		yRow, yCol := offsetVectors(obs)

		sol, err := solveNormalEquations(A, w, yRow, yCol)
		if err != nil {
			return nil, &EstimationError{Iteration: iteration, Observations: len(obs), Err: err}
		}
		res.Iterations = iteration

		if err := res.recordStability(iteration, sol.MaxDeviation); err != nil {
			return nil, &EstimationError{Iteration: iteration, Observations: len(obs), Err: err}
		}

		st := snoop(obs, w, sol, yRow, yCol)
		e.debugf("Estimate: iteration %d, %d observations, deviation %.3g, max w-test row %.3f (obs %d) col %.3f (obs %d), OMT row %.3f col %.3f",
			iteration, len(obs), sol.MaxDeviation,
			st.MaxRow, obs[st.MaxRowIdx].Index, st.MaxCol, obs[st.MaxColIdx].Index,
			st.ModelTestRow, st.ModelTestCol)

		term, done := e.terminate(len(obs), unknowns, st, len(res.Removed))
		if done {
			return e.finish(res, obs, sol, st, term)
		}

		worst := obs[st.Worst]
		e.debugf("Estimate: removing observation %d (id %d), combined w-test %.3f",
			worst.Index, worst.ID, st.WorstValue)
		res.Removed = append(res.Removed, Removal{Observation: worst, Iteration: iteration, Combined: st.WorstValue})
		obs = removeObservation(obs, st.Worst)
	}
}

// terminate applies the stop conditions in order: redundancy, acceptance,
// removal budget.
func (e *Estimator) terminate(n, unknowns int, st testStatistics, removals int) (Termination, bool) {
	switch {
	case n <= unknowns:
		return TerminatedNoRedundancy, true
	case st.MaxW() <= e.opts.CriticalValue:
		return TerminatedAccepted, true
	case removals >= e.opts.MaxIterations:
		return TerminatedMaxIterations, true
	default:
		return 0, false
	}
}

func (e *Estimator) finish(res *Result, obs []Observation, sol *normalSolution, st testStatistics, term Termination) (*Result, error) {
	res.Termination = term
	res.Converged = term == TerminatedAccepted
	res.Row = poly.Polynomial{Degree: res.Degree, Coefficients: append([]float64(nil), sol.Row.RawVector().Data...)}
	res.Col = poly.Polynomial{Degree: res.Degree, Coefficients: append([]float64(nil), sol.Col.RawVector().Data...)}
	res.Observations = append([]Observation(nil), obs...)

	s, err := residualStatistics(obs)
	if err != nil {
		return nil, err
	}
	s.MaxWRow, s.MaxWCol = st.MaxRow, st.MaxCol
	s.ModelTestRow, s.ModelTestCol = st.ModelTestRow, st.ModelTestCol
	s.MaxDeviation = sol.MaxDeviation
	s.Coverage = coverage(obs, e.normalizer.Window())
	res.Statistics = s

	if st.ModelTestRow > modelTestWarning {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind: PoorModelFit, Iteration: res.Iterations, Axis: AxisRow, Value: st.ModelTestRow, Index: -1,
		})
	}
	if st.ModelTestCol > modelTestWarning {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind: PoorModelFit, Iteration: res.Iterations, Axis: AxisCol, Value: st.ModelTestCol, Index: -1,
		})
	}
	if st.MaxW() > wTestRecommend {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind: LargeWTest, Iteration: res.Iterations, Axis: AxisBoth, Value: st.MaxW(), Index: obs[st.Worst].Index,
		})
	}

	e.debugf("Estimate: done after %d iterations (%s), %d kept, %d removed",
		res.Iterations, term, len(res.Observations), len(res.Removed))
	return res, nil
}

// alignedResult short-circuits estimation when master and slave already
// coincide: the offset is zero everywhere and the warp is the identity.
func (e *Estimator) alignedResult(obs []Observation) (*Result, error) {
	degree := e.opts.Degree
	normalizeObservations(obs, e.normalizer)
	for i := range obs {
		obs[i].Residual = obs[i].Offset
	}
	s, err := residualStatistics(obs)
	if err != nil {
		return nil, err
	}
	s.Coverage = coverage(obs, e.normalizer.Window())
	return &Result{
		Degree:       degree,
		Row:          poly.Zero(degree),
		Col:          poly.Zero(degree),
		Converged:    true,
		Termination:  TerminatedAligned,
		Observations: obs,
		Statistics:   s,
		normalizer:   e.normalizer,
	}, nil
}
