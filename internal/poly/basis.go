// Package poly builds the 2D polynomial basis used for coregistration fits.
//
// Terms are the monomials x^(l-k)·y^k for l = 0..degree and k = 0..l,
// ordered by increasing l and then increasing k:
//
//	degree 1: 1, x, y
//	degree 2: 1, x, y, x², xy, y²
//	degree 3: 1, x, y, x², xy, y², x³, x²y, xy², y³
//
// Coefficients are matched to terms by position, so every producer and
// consumer of coefficients in this module goes through BuildRow or Eval.
package poly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NumberOfCoefficients returns the number of terms of a full polynomial of the given degree.
func NumberOfCoefficients(degree int) int {
	return (degree + 1) * (degree + 2) / 2
}

// DegreeFromCoefficientCount recovers the degree from a coefficient count.
// Counts that are not triangular numbers are rejected.
func DegreeFromCoefficientCount(count int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("invalid coefficient count %d", count)
	}
	// count = (d+1)(d+2)/2  =>  d = (sqrt(8*count+1) - 3) / 2
	d := int(math.Round((math.Sqrt(float64(8*count+1)) - 3) / 2))
	if NumberOfCoefficients(d) != count {
		return 0, fmt.Errorf("coefficient count %d is not a full 2D polynomial", count)
	}
	return d, nil
}

// BuildRow evaluates every basis term at (x, y) in canonical order.
func BuildRow(x, y float64, degree int) []float64 {
	return buildRowInto(make([]float64, NumberOfCoefficients(degree)), x, y, degree)
}

func buildRowInto(row []float64, x, y float64, degree int) []float64 {
	i := 0
	for l := 0; l <= degree; l++ {
		for k := 0; k <= l; k++ {
			row[i] = math.Pow(x, float64(l-k)) * math.Pow(y, float64(k))
			i++
		}
	}
	return row
}

// Exponents returns the (x, y) exponents of term i.
func Exponents(i int) (int, int) {
	l := 0
	for NumberOfCoefficients(l) <= i {
		l++
	}
	k := i - NumberOfCoefficients(l-1)
	return l - k, k
}

// DesignMatrix builds the n×u matrix whose rows are BuildRow(xs[i], ys[i], degree).
func DesignMatrix(xs, ys []float64, degree int) (*mat.Dense, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("coordinate count mismatch: %d vs %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("no coordinates")
	}
	if degree < 0 {
		return nil, fmt.Errorf("negative degree %d", degree)
	}

	u := NumberOfCoefficients(degree)
	A := mat.NewDense(len(xs), u, nil)
	row := make([]float64, u)
	for i := range xs {
		A.SetRow(i, buildRowInto(row, xs[i], ys[i], degree))
	}
	return A, nil
}
