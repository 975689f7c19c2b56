package alignment

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// testStatistics is the outcome of data snooping over one solve.
type testStatistics struct {
	WRow, WCol []float64 // w-test per observation
	Combined   []float64 // WRow² + WCol²

	MaxRow, MaxCol       float64 // max |w| per axis
	MaxRowIdx, MaxColIdx int

	Worst      int     // argmax Combined, the outlier candidate
	WorstValue float64 // Combined[Worst]

	ModelTestRow, ModelTestCol float64 // overall model test, NaN without redundancy
}

// MaxW returns the larger of the two per-axis maxima.
func (t testStatistics) MaxW() float64 {
	return math.Max(t.MaxRow, t.MaxCol)
}

// snoop computes residuals, w-tests and overall model tests for the active
// observations, writing residuals and w-tests back into obs.
func snoop(obs []Observation, w []float64, sol *normalSolution, yRow, yCol *mat.VecDense) testStatistics {
	n, u := sol.A.Dims()

	var fitRow, fitCol mat.VecDense
	fitRow.MulVec(sol.A, sol.Row)
	fitCol.MulVec(sol.A, sol.Col)

	st := testStatistics{
		WRow:     make([]float64, n),
		WCol:     make([]float64, n),
		Combined: make([]float64, n),
	}

	var omtRow, omtCol float64
	for i := 0; i < n; i++ {
		eRow := yRow.AtVec(i) - fitRow.AtVec(i)
		eCol := yCol.AtVec(i) - fitCol.AtVec(i)
		obs[i].Residual.Row = eRow
		obs[i].Residual.Col = eCol

		omtRow += eRow * eRow * w[i]
		omtCol += eCol * eCol * w[i]

		// diagonal of Qê = W⁻¹ − A·Qx·Aᵗ, one entry at a time
		a := sol.A.RowView(i)
		qe := 1/w[i] - mat.Inner(a, sol.Qx, a)

		var wRow, wCol float64
		if qe > 0 {
			s := math.Sqrt(qe)
			wRow = eRow / (s * SigmaRow)
			wCol = eCol / (s * SigmaCol)
		}
		// qe <= 0: the observation alone determines its fitted value, the
		// residual is zero up to rounding and carries no test information.

		st.WRow[i], st.WCol[i] = wRow, wCol
		st.Combined[i] = wRow*wRow + wCol*wCol
		obs[i].WRow, obs[i].WCol = wRow, wCol

		if math.Abs(wRow) > st.MaxRow {
			st.MaxRow, st.MaxRowIdx = math.Abs(wRow), i
		}
		if math.Abs(wCol) > st.MaxCol {
			st.MaxCol, st.MaxColIdx = math.Abs(wCol), i
		}
		if st.Combined[i] > st.WorstValue {
			st.Worst, st.WorstValue = i, st.Combined[i]
		}
	}

	if redundancy := n - u; redundancy > 0 {
		st.ModelTestRow = omtRow / (SigmaRow * SigmaRow) / float64(redundancy)
		st.ModelTestCol = omtCol / (SigmaCol * SigmaCol) / float64(redundancy)
	} else {
		st.ModelTestRow, st.ModelTestCol = math.NaN(), math.NaN()
	}
	return st
}
