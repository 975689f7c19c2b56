package alignment

import (
	"fmt"
	"math"

	"sar-coreg/internal/poly"
	"sar-coreg/pkg/geometry"
)

// alignedThreshold is the summed absolute offset below which master and
// slave are taken to coincide already.
const alignedThreshold = 0.01

// PointPair is one matched position in the master and the slave raster.
type PointPair struct {
	ID     int            // caller label, reported back unchanged
	Master geometry.Pixel // position in the master raster
	Slave  geometry.Pixel // matched position in the slave raster

	// Quality is the coherence or correlation score in [0, 1], used only
	// when HasQuality is set. Pairs without a score weigh like quality 1.
	Quality    float64
	HasQuality bool

	// Geometric is an offset already explained by terrain (from a DEM),
	// subtracted from the raw offset before fitting.
	Geometric geometry.Pixel
}

// Observation is a point pair as seen by the estimator.
type Observation struct {
	Index      int            // position in the input slice, stable across removals
	ID         int            // PointPair.ID
	Master     geometry.Pixel // raw master position
	Slave      geometry.Pixel // slave position with the geometric offset removed
	Offset     geometry.Pixel // Slave − Master, the fitted quantity
	Quality    float64        // effective quality, 1 when not supplied
	HasQuality bool
	Geometric  geometry.Pixel
	Weight     float64 // weight used in the last solve
	Norm       geometry.Pixel
	Residual   geometry.Pixel // observed − fitted offset after the last solve
	WRow       float64        // w-test statistic, row axis
	WCol       float64        // w-test statistic, column axis
}

// RMS returns the length of the residual vector.
func (o Observation) RMS() float64 {
	return math.Hypot(o.Residual.Row, o.Residual.Col)
}

// Pair returns the point pair the observation was built from.
func (o Observation) Pair() PointPair {
	p := PointPair{
		ID:        o.ID,
		Master:    o.Master,
		Slave:     o.Slave.Add(o.Geometric),
		Geometric: o.Geometric,
	}
	if o.HasQuality {
		p.Quality, p.HasQuality = o.Quality, true
	}
	return p
}

// newObservations validates the pairs. Quality weighting cannot use a
// score of 0, which would give the pair no weight at all.
func newObservations(pairs []PointPair, mode Weighting) ([]Observation, error) {
	obs := make([]Observation, len(pairs))
	for i, p := range pairs {
		if !finite(p.Master.Row, p.Master.Col, p.Slave.Row, p.Slave.Col, p.Geometric.Row, p.Geometric.Col) {
			return nil, fmt.Errorf("%w: pair %d (id %d) has non-finite coordinates", ErrInvalidInput, i, p.ID)
		}
		q := 1.0
		if p.HasQuality {
			q = p.Quality
			if !(q >= 0 && q <= 1) {
				return nil, fmt.Errorf("%w: pair %d (id %d) quality %g outside [0, 1]", ErrInvalidInput, i, p.ID, q)
			}
			if q == 0 && mode != WeightNone {
				return nil, fmt.Errorf("%w: pair %d (id %d) has quality 0, unusable with %s weighting",
					ErrInvalidInput, i, p.ID, mode)
			}
		}
		slave := p.Slave.Sub(p.Geometric)
		obs[i] = Observation{
			Index:      i,
			ID:         p.ID,
			Master:     p.Master,
			Slave:      slave,
			Offset:     slave.Sub(p.Master),
			Quality:    q,
			HasQuality: p.HasQuality,
			Geometric:  p.Geometric,
			Weight:     1,
		}
	}
	return obs, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// alreadyAligned reports whether the summed absolute offsets are negligible.
func alreadyAligned(obs []Observation) bool {
	var sum float64
	for _, o := range obs {
		sum += math.Abs(o.Offset.Row) + math.Abs(o.Offset.Col)
	}
	return sum < alignedThreshold
}

func normalizeObservations(obs []Observation, n poly.Normalizer) {
	for i := range obs {
		x, y := n.Apply(obs[i].Master)
		obs[i].Norm = geometry.Pixel{Row: x, Col: y}
	}
}

// assignWeights fills Weight for the active set. Linear and quadratic
// weights are rescaled to mean 1 so they do not bias the variance factor.
func assignWeights(obs []Observation, mode Weighting) []float64 {
	w := make([]float64, len(obs))
	var sum float64
	for i, o := range obs {
		switch mode {
		case WeightLinear:
			w[i] = o.Quality
		case WeightQuadratic:
			w[i] = o.Quality * o.Quality
		default:
			w[i] = 1
		}
		sum += w[i]
	}
	if mode != WeightNone {
		mean := sum / float64(len(w))
		for i := range w {
			w[i] /= mean
		}
	}
	for i := range obs {
		obs[i].Weight = w[i]
	}
	return w
}

// coverage returns the share of the window spanned by the master positions.
func coverage(obs []Observation, window geometry.Window) float64 {
	masters := make([]geometry.Pixel, len(obs))
	for i, o := range obs {
		masters[i] = o.Master
	}
	return geometry.Coverage(masters, window)
}

// removeObservation drops obs[i], keeping the remaining order.
func removeObservation(obs []Observation, i int) []Observation {
	return append(obs[:i], obs[i+1:]...)
}
