package poly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// Polynomial is a full 2D polynomial with coefficients in canonical term order.
type Polynomial struct {
	Degree       int       `json:"degree"`
	Coefficients []float64 `json:"coefficients"`
}

// NewPolynomial wraps coefficients, deriving the degree from their count.
func NewPolynomial(coeffs []float64) (Polynomial, error) {
	degree, err := DegreeFromCoefficientCount(len(coeffs))
	if err != nil {
		return Polynomial{}, err
	}
	return Polynomial{Degree: degree, Coefficients: append([]float64(nil), coeffs...)}, nil
}

// Zero returns the polynomial of the given degree with all coefficients zero.
func Zero(degree int) Polynomial {
	return Polynomial{Degree: degree, Coefficients: make([]float64, NumberOfCoefficients(degree))}
}

// Identity returns the pair of polynomials mapping (x, y) onto itself:
// the x polynomial has only its x term set, the y polynomial only its y term.
func Identity(degree int) (Polynomial, Polynomial, error) {
	if degree < 1 {
		return Polynomial{}, Polynomial{}, fmt.Errorf("identity needs degree >= 1, got %d", degree)
	}
	px, py := Zero(degree), Zero(degree)
	px.Coefficients[TermIndex(1, 0)] = 1
	py.Coefficients[TermIndex(0, 1)] = 1
	return px, py, nil
}

// TermIndex returns the canonical position of the term x^i·y^j.
func TermIndex(i, j int) int {
	return NumberOfCoefficients(i+j-1) + j
}

// Eval evaluates the polynomial at (x, y).
func (p Polynomial) Eval(x, y float64) float64 {
	var sum float64
	i := 0
	for l := 0; l <= p.Degree; l++ {
		for k := 0; k <= l; k++ {
			sum += p.Coefficients[i] * math.Pow(x, float64(l-k)) * math.Pow(y, float64(k))
			i++
		}
	}
	return sum
}

// Add returns the term-wise sum of two polynomials, widened to the larger degree.
func (p Polynomial) Add(q Polynomial) Polynomial {
	out := Zero(max(p.Degree, q.Degree))
	for i, c := range p.Coefficients {
		out.Coefficients[i] += c
	}
	for i, c := range q.Coefficients {
		out.Coefficients[i] += c
	}
	return out
}

// Substitute returns q(X, Y) = p((X-cx)/sx, (Y-cy)/sy).
func (p Polynomial) Substitute(cx, sx, cy, sy float64) Polynomial {
	out := Zero(p.Degree)
	for t, c := range p.Coefficients {
		if c == 0 {
			continue
		}
		a, b := Exponents(t)
		scale := c / (math.Pow(sx, float64(a)) * math.Pow(sy, float64(b)))
		// expand (X-cx)^a (Y-cy)^b binomially
		for i := 0; i <= a; i++ {
			ti := float64(combin.Binomial(a, i)) * math.Pow(-cx, float64(a-i))
			for j := 0; j <= b; j++ {
				tj := float64(combin.Binomial(b, j)) * math.Pow(-cy, float64(b-j))
				out.Coefficients[TermIndex(i, j)] += scale * ti * tj
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (p Polynomial) Clone() Polynomial {
	return Polynomial{Degree: p.Degree, Coefficients: append([]float64(nil), p.Coefficients...)}
}
