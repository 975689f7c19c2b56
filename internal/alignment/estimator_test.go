package alignment

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"sar-coreg/internal/poly"
	"sar-coreg/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWindow = geometry.NewWindow(0, 30, 0, 100)

// gridPairs builds pairs on the master grid rows × cols with slave = master + offset(master).
func gridPairs(rows, cols []float64, offset func(r, c float64) (float64, float64)) []PointPair {
	var pairs []PointPair
	for _, r := range rows {
		for _, c := range cols {
			dr, dc := offset(r, c)
			pairs = append(pairs, PointPair{
				ID:     len(pairs) + 1,
				Master: geometry.NewPixel(r, c),
				Slave:  geometry.NewPixel(r+dr, c+dc),
			})
		}
	}
	return pairs
}

func linearOffset(r, c float64) (float64, float64) {
	return 2 + 0.1*r, -1 + 0.05*c
}

func smallGrid() []PointPair {
	return gridPairs([]float64{0, 10, 20, 30}, []float64{0, 50, 100}, linearOffset)
}

func testOptions(degree int) Options {
	opts := DefaultOptions(testWindow)
	opts.Degree = degree
	return opts
}

func assertCoefficients(t *testing.T, want []float64, p poly.Polynomial, delta float64) {
	t.Helper()
	require.Len(t, p.Coefficients, len(want))
	for i := range want {
		assert.InDelta(t, want[i], p.Coefficients[i], delta, "coefficient %d", i)
	}
}

func TestEstimateInsufficientRedundancy(t *testing.T) {
	pairs := smallGrid()[:5]

	res, err := Estimate(pairs, testOptions(2))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientRedundancy))
}

func TestEstimateAlreadyAligned(t *testing.T) {
	for degree := MinDegree; degree <= MaxDegree; degree++ {
		t.Run(fmt.Sprintf("degree%d", degree), func(t *testing.T) {
			pairs := gridPairs([]float64{0, 10, 20, 30}, []float64{0, 25, 50, 75, 100},
				func(r, c float64) (float64, float64) { return 0, 0 })

			res, err := Estimate(pairs, testOptions(degree))
			require.NoError(t, err)

			assert.Equal(t, TerminatedAligned, res.Termination)
			assert.True(t, res.Converged)
			assert.Equal(t, 0, res.Iterations)
			assert.Empty(t, res.Removed)
			assert.Len(t, res.Observations, len(pairs))

			wantRow, wantCol, err := poly.Identity(degree)
			require.NoError(t, err)
			gotRow, gotCol, err := res.Warp()
			require.NoError(t, err)
			assert.Equal(t, wantRow.Coefficients, gotRow.Coefficients)
			assert.Equal(t, wantCol.Coefficients, gotCol.Coefficients)

			off := res.Offset(geometry.NewPixel(12, 34))
			assert.Equal(t, 0.0, off.Row)
			assert.Equal(t, 0.0, off.Col)
		})
	}
}

func TestEstimateExactLinearGrid(t *testing.T) {
	pairs := smallGrid()

	res, err := Estimate(pairs, testOptions(1))
	require.NoError(t, err)

	assert.Equal(t, TerminatedAccepted, res.Termination)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Removed)
	assert.Len(t, res.Observations, len(pairs))
	assert.Empty(t, res.Diagnostics)

	assertCoefficients(t, []float64{2, 0.1, 0}, res.RawRow(), 1e-9)
	assertCoefficients(t, []float64{-1, 0, 0.05}, res.RawCol(), 1e-9)

	for _, p := range pairs {
		got := res.Map(p.Master)
		assert.InDelta(t, p.Slave.Row, got.Row, 1e-9)
		assert.InDelta(t, p.Slave.Col, got.Col, 1e-9)
	}
	assert.InDelta(t, 0.0, res.Statistics.RMSMean, 1e-9)
	assert.InDelta(t, 1.0, res.Statistics.Coverage, 1e-12)
}

func TestEstimateHigherDegreeRecoversLinearOffset(t *testing.T) {
	rows := []float64{0, 7.5, 15, 22.5, 30}
	cols := []float64{0, 25, 50, 75, 100}
	for _, degree := range []int{2, 3} {
		t.Run(fmt.Sprintf("degree%d", degree), func(t *testing.T) {
			res, err := Estimate(gridPairs(rows, cols, linearOffset), testOptions(degree))
			require.NoError(t, err)
			assert.Equal(t, TerminatedAccepted, res.Termination)

			u := poly.NumberOfCoefficients(degree)
			wantRow := make([]float64, u)
			wantCol := make([]float64, u)
			wantRow[0], wantRow[1] = 2, 0.1
			wantCol[0], wantCol[2] = -1, 0.05
			assertCoefficients(t, wantRow, res.RawRow(), 1e-8)
			assertCoefficients(t, wantCol, res.RawCol(), 1e-8)
		})
	}
}

func TestEstimateQuadraticOffset(t *testing.T) {
	rows := []float64{0, 7.5, 15, 22.5, 30}
	cols := []float64{0, 25, 50, 75, 100}
	pairs := gridPairs(rows, cols, func(r, c float64) (float64, float64) {
		return 0.5 + 0.01*r*c/100, -0.25 + 0.002*c*c/100
	})

	res, err := Estimate(pairs, testOptions(2))
	require.NoError(t, err)
	assert.Equal(t, TerminatedAccepted, res.Termination)
	assertCoefficients(t, []float64{0.5, 0, 0, 0, 0.0001, 0}, res.RawRow(), 1e-9)
	assertCoefficients(t, []float64{-0.25, 0, 0, 0, 0, 0.00002}, res.RawCol(), 1e-9)
}

func outlierGrid() []PointPair {
	pairs := smallGrid()
	pairs[4].Slave.Col += 50
	return pairs
}

func TestEstimateRemovesOutlier(t *testing.T) {
	res, err := Estimate(outlierGrid(), testOptions(1))
	require.NoError(t, err)

	assert.Equal(t, TerminatedAccepted, res.Termination)
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []int{4}, res.RemovedIndices())
	assert.Equal(t, 1, res.Removed[0].Iteration)
	assert.Len(t, res.Observations, 11)
	assert.NotContains(t, res.Surviving(), 4)

	assertCoefficients(t, []float64{2, 0.1, 0}, res.RawRow(), 1e-6)
	assertCoefficients(t, []float64{-1, 0, 0.05}, res.RawCol(), 1e-6)

	// the rejected pair dominated the first solve, the final one is clean
	first := math.Sqrt(res.Removed[0].Combined)
	final := math.Max(res.Statistics.MaxWRow, res.Statistics.MaxWCol)
	assert.Greater(t, first, DefaultCriticalValue)
	assert.LessOrEqual(t, final, first)
	assert.LessOrEqual(t, final, DefaultCriticalValue)
}

func TestEstimateIsIdempotentOnSurvivors(t *testing.T) {
	opts := testOptions(1)
	first, err := Estimate(outlierGrid(), opts)
	require.NoError(t, err)

	survivors := make([]PointPair, len(first.Observations))
	for i, o := range first.Observations {
		survivors[i] = o.Pair()
	}

	second, err := Estimate(survivors, opts)
	require.NoError(t, err)
	assert.Empty(t, second.Removed)
	assert.Equal(t, 1, second.Iterations)
	assertCoefficients(t, first.Row.Coefficients, second.Row, 1e-9)
	assertCoefficients(t, first.Col.Coefficients, second.Col, 1e-9)
}

func TestEstimateRemovalBudget(t *testing.T) {
	opts := testOptions(1)
	opts.MaxIterations = 0

	res, err := Estimate(outlierGrid(), opts)
	require.NoError(t, err)

	assert.Equal(t, TerminatedMaxIterations, res.Termination)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Removed)
	assert.Len(t, res.Observations, 12)

	var large *Diagnostic
	for i := range res.Diagnostics {
		if res.Diagnostics[i].Kind == LargeWTest {
			large = &res.Diagnostics[i]
		}
	}
	require.NotNil(t, large, "diagnostics: %v", res.Diagnostics)
	assert.Equal(t, 4, large.Index)
	assert.Greater(t, large.Value, wTestRecommend)
}

func TestEstimatePoorModelFit(t *testing.T) {
	pairs := smallGrid()
	for i := range pairs {
		if i%2 == 0 {
			pairs[i].Slave.Row++
		} else {
			pairs[i].Slave.Row--
		}
	}
	opts := testOptions(1)
	opts.MaxIterations = 0

	res, err := Estimate(pairs, opts)
	require.NoError(t, err)

	assert.Greater(t, res.Statistics.ModelTestRow, modelTestWarning)
	assert.Less(t, res.Statistics.ModelTestCol, 1.0)

	var kinds []string
	for _, d := range res.Diagnostics {
		if d.Kind == PoorModelFit {
			kinds = append(kinds, d.Axis.String())
		}
	}
	assert.Equal(t, []string{"row"}, kinds)
}

func TestEstimateNoRedundancy(t *testing.T) {
	pairs := []PointPair{
		{ID: 1, Master: geometry.NewPixel(0, 0), Slave: geometry.NewPixel(1, 2)},
		{ID: 2, Master: geometry.NewPixel(30, 0), Slave: geometry.NewPixel(31.5, 2)},
		{ID: 3, Master: geometry.NewPixel(0, 100), Slave: geometry.NewPixel(1, 101)},
	}

	res, err := Estimate(pairs, testOptions(1))
	require.NoError(t, err)

	assert.Equal(t, TerminatedNoRedundancy, res.Termination)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.True(t, math.IsNaN(res.Statistics.ModelTestRow))
	assert.True(t, math.IsNaN(res.Statistics.ModelTestCol))
	for _, p := range pairs {
		got := res.Map(p.Master)
		assert.InDelta(t, p.Slave.Row, got.Row, 1e-9)
		assert.InDelta(t, p.Slave.Col, got.Col, 1e-9)
	}
}

func TestEstimateSingularGeometry(t *testing.T) {
	// every master row sits on the window center, so x is identically zero
	var pairs []PointPair
	for i, c := range []float64{0, 20, 40, 60, 80, 100} {
		pairs = append(pairs, PointPair{
			ID:     i,
			Master: geometry.NewPixel(15, c),
			Slave:  geometry.NewPixel(16, c+0.5),
		})
	}

	res, err := Estimate(pairs, testOptions(1))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularSystem), "got %v", err)

	var estErr *EstimationError
	require.True(t, errors.As(err, &estErr))
	assert.Equal(t, 1, estErr.Iteration)
	assert.Equal(t, 6, estErr.Observations)
}

func TestEstimateInvalidInput(t *testing.T) {
	pairs := smallGrid()
	pairs[3].Quality, pairs[3].HasQuality = 1.5, true
	_, err := Estimate(pairs, testOptions(1))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	pairs = smallGrid()
	pairs[2].Slave.Row = math.NaN()
	_, err = Estimate(pairs, testOptions(1))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestEstimateGeometricOffset(t *testing.T) {
	pairs := smallGrid()
	for i := range pairs {
		g := geometry.NewPixel(0.02*pairs[i].Master.Col, -0.5)
		pairs[i].Geometric = g
		pairs[i].Slave = pairs[i].Slave.Add(g)
	}

	res, err := Estimate(pairs, testOptions(1))
	require.NoError(t, err)
	assertCoefficients(t, []float64{2, 0.1, 0}, res.RawRow(), 1e-9)
	assertCoefficients(t, []float64{-1, 0, 0.05}, res.RawCol(), 1e-9)

	back := res.Observations[5].Pair()
	assert.InDelta(t, pairs[5].Slave.Row, back.Slave.Row, 1e-12)
	assert.InDelta(t, pairs[5].Slave.Col, back.Slave.Col, 1e-12)
}

func TestEstimateWeighting(t *testing.T) {
	for _, mode := range []Weighting{WeightNone, WeightLinear, WeightQuadratic} {
		t.Run(mode.String(), func(t *testing.T) {
			pairs := smallGrid()
			for i := range pairs {
				pairs[i].Quality, pairs[i].HasQuality = 0.3+0.05*float64(i), true
			}
			opts := testOptions(1)
			opts.Weighting = mode

			res, err := Estimate(pairs, opts)
			require.NoError(t, err)
			assertCoefficients(t, []float64{2, 0.1, 0}, res.RawRow(), 1e-9)

			var sum float64
			for _, o := range res.Observations {
				sum += o.Weight
			}
			assert.InDelta(t, 1.0, sum/float64(len(res.Observations)), 1e-12)
			if mode == WeightNone {
				assert.Equal(t, 1.0, res.Observations[0].Weight)
			} else {
				assert.Less(t, res.Observations[0].Weight, res.Observations[11].Weight)
			}
		})
	}
}

func TestEstimateZeroQuality(t *testing.T) {
	grid := func() []PointPair {
		pairs := smallGrid()
		for i := range pairs {
			pairs[i].Quality, pairs[i].HasQuality = 0.5, true
		}
		pairs[4].Quality = 0
		return pairs
	}

	for _, mode := range []Weighting{WeightLinear, WeightQuadratic} {
		t.Run(mode.String(), func(t *testing.T) {
			opts := testOptions(1)
			opts.Weighting = mode
			res, err := Estimate(grid(), opts)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}

	// without quality weighting the score is irrelevant
	res, err := Estimate(grid(), testOptions(1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Observations[4].Weight)
	assert.Equal(t, 0.0, res.Observations[4].Pair().Quality)
	assert.True(t, res.Observations[4].Pair().HasQuality)
}

func TestEstimateMissingQualityWeighsLikeOne(t *testing.T) {
	pairs := smallGrid()
	for i := range pairs {
		pairs[i].Quality, pairs[i].HasQuality = 0.5, true
	}
	pairs[4].Quality, pairs[4].HasQuality = 0, false

	opts := testOptions(1)
	opts.Weighting = WeightLinear
	res, err := Estimate(pairs, opts)
	require.NoError(t, err)

	// eleven pairs at 0.5 and one at 1, rescaled to mean 1
	mean := (11*0.5 + 1) / 12
	assert.InDelta(t, 0.5/mean, res.Observations[0].Weight, 1e-12)
	assert.InDelta(t, 1/mean, res.Observations[4].Weight, 1e-12)
	assert.False(t, res.Observations[4].Pair().HasQuality)
}

func TestResultAffine(t *testing.T) {
	pairs := smallGrid()
	res, err := Estimate(pairs, testOptions(1))
	require.NoError(t, err)

	tr, err := res.Affine()
	require.NoError(t, err)
	assert.InDelta(t, 1.1, tr.A, 1e-9)
	assert.InDelta(t, 1.05, tr.D, 1e-9)
	for _, p := range pairs {
		got := tr.Apply(p.Master)
		assert.InDelta(t, p.Slave.Row, got.Row, 1e-9)
		assert.InDelta(t, p.Slave.Col, got.Col, 1e-9)
	}

	inv, err := tr.Inverse()
	require.NoError(t, err)
	for _, p := range pairs {
		back := inv.Apply(p.Slave)
		assert.InDelta(t, p.Master.Row, back.Row, 1e-9)
		assert.InDelta(t, p.Master.Col, back.Col, 1e-9)
	}

	res2, err := Estimate(gridPairs([]float64{0, 10, 20, 30}, []float64{0, 25, 50, 75, 100}, linearOffset), testOptions(2))
	require.NoError(t, err)
	_, err = res2.Affine()
	assert.Error(t, err)

	var zero Result
	_, _, err = zero.Warp()
	assert.Error(t, err)
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestEstimatorDebugTrace(t *testing.T) {
	opts := testOptions(1)
	quiet := &recordingLogger{}
	e, err := NewEstimator(opts)
	require.NoError(t, err)
	_, err = e.WithLogger(quiet).Estimate(outlierGrid())
	require.NoError(t, err)
	assert.Empty(t, quiet.lines)

	opts.Debug = true
	traced := &recordingLogger{}
	e, err = NewEstimator(opts)
	require.NoError(t, err)
	_, err = e.WithLogger(traced).Estimate(outlierGrid())
	require.NoError(t, err)
	assert.NotEmpty(t, traced.lines)
}
