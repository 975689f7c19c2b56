package alignment

import (
	"errors"
	"fmt"
	"math"

	"sar-coreg/internal/poly"

	"gonum.org/v1/gonum/mat"
)

// normalSolution is one weighted least-squares solve shared by both axes.
type normalSolution struct {
	A            *mat.Dense    // design matrix, n×u
	N            *mat.SymDense // normal matrix Aᵗ·W·A
	Qx           *mat.SymDense // N⁻¹, covariance of the coefficients up to σ²
	Row          *mat.VecDense // row-axis coefficients
	Col          *mat.VecDense // column-axis coefficients
	MaxDeviation float64       // max|N·N⁻¹ − I|
}

// designMatrix builds the design matrix of the active observations over
// their normalized master coordinates.
func designMatrix(obs []Observation, degree int) (*mat.Dense, error) {
	xs := make([]float64, len(obs))
	ys := make([]float64, len(obs))
	for i, o := range obs {
		xs[i], ys[i] = o.Norm.Row, o.Norm.Col
	}
	return poly.DesignMatrix(xs, ys, degree)
}

// offsetVectors returns the observed row and column offsets as vectors.
func offsetVectors(obs []Observation) (*mat.VecDense, *mat.VecDense) {
	yRow := mat.NewVecDense(len(obs), nil)
	yCol := mat.NewVecDense(len(obs), nil)
	for i, o := range obs {
		yRow.SetVec(i, o.Offset.Row)
		yCol.SetVec(i, o.Offset.Col)
	}
	return yRow, yCol
}

// solveNormalEquations solves Aᵗ·W·A·c = Aᵗ·W·y for both targets with one
// Cholesky factorization, inverts N and checks the inverse.
func solveNormalEquations(A *mat.Dense, w []float64, yRow, yCol *mat.VecDense) (*normalSolution, error) {
	n, u := A.Dims()
	if len(w) != n || yRow.Len() != n || yCol.Len() != n {
		return nil, fmt.Errorf("dimension mismatch: A %dx%d, w %d, y %d/%d", n, u, len(w), yRow.Len(), yCol.Len())
	}

	// W·A: every row of A scaled by its weight
	var WA mat.Dense
	WA.Apply(func(i, _ int, v float64) float64 { return w[i] * v }, A)

	var full mat.Dense
	full.Mul(A.T(), &WA)
	N := mat.NewSymDense(u, nil)
	for i := 0; i < u; i++ {
		for j := i; j < u; j++ {
			N.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(N); !ok {
		return nil, fmt.Errorf("%w: normal matrix is not positive definite", ErrSingularSystem)
	}

	row, err := solveRHS(&chol, &WA, yRow)
	if err != nil {
		return nil, err
	}
	col, err := solveRHS(&chol, &WA, yCol)
	if err != nil {
		return nil, err
	}

	Qx := mat.NewSymDense(u, nil)
	if err := chol.InverseTo(Qx); err != nil && !isCondition(err) {
		return nil, fmt.Errorf("%w: invert normal matrix: %v", ErrSingularSystem, err)
	}

	return &normalSolution{
		A:            A,
		N:            N,
		Qx:           Qx,
		Row:          row,
		Col:          col,
		MaxDeviation: maxDeviation(N, Qx),
	}, nil
}

// solveRHS forms Aᵗ·W·y (as (W·A)ᵗ·y) and solves against the factorization.
func solveRHS(chol *mat.Cholesky, WA *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	var rhs mat.VecDense
	rhs.MulVec(WA.T(), y)

	var c mat.VecDense
	if err := chol.SolveVecTo(&c, &rhs); err != nil && !isCondition(err) {
		return nil, fmt.Errorf("%w: solve normal equations: %v", ErrSingularSystem, err)
	}
	return &c, nil
}

// isCondition reports whether err is only gonum's ill-conditioning notice.
// The result is still computed; the stability check decides its fate.
func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}

// maxDeviation returns max|N·Qx − I| over all entries.
func maxDeviation(N, Qx mat.Matrix) float64 {
	var P mat.Dense
	P.Mul(N, Qx)
	r, c := P.Dims()
	var dev float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := P.At(i, j)
			if i == j {
				v--
			}
			if math.IsNaN(v) {
				return math.Inf(1)
			}
			dev = math.Max(dev, math.Abs(v))
		}
	}
	return dev
}

// recordStability checks the deviation of one solve: above 0.01 it is fatal,
// above 0.001 an IllConditioned diagnostic is attached to r.
func (r *Result) recordStability(iteration int, dev float64) error {
	if dev > deviationFatal {
		return fmt.Errorf("%w: maximum deviation N*inv(N) from unity = %g, larger than %g",
			ErrSingularSystem, dev, deviationFatal)
	}
	if dev > deviationWarning {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Kind: IllConditioned, Iteration: iteration, Axis: AxisBoth, Value: dev, Index: -1,
		})
	}
	return nil
}
