package poly

import (
	"sar-coreg/pkg/geometry"
)

// Normalize maps raw onto roughly [-2, 2] for the extent [lo, hi].
func Normalize(raw, lo, hi float64) float64 {
	return (raw - 0.5*(lo+hi)) / (0.25 * (hi - lo))
}

// Denormalize is the inverse of Normalize.
func Denormalize(v, lo, hi float64) float64 {
	return v*0.25*(hi-lo) + 0.5*(lo+hi)
}

// Normalizer rescales master coordinates with one fixed reference window.
// Higher degree fits on raw pixel coordinates (values in the thousands
// raised to the third power) give normal matrices too ill-conditioned to
// invert, so every fit runs on normalized coordinates.
type Normalizer struct {
	window geometry.Window
}

// NewNormalizer returns a Normalizer for the given window.
func NewNormalizer(window geometry.Window) (Normalizer, error) {
	if err := window.Validate(); err != nil {
		return Normalizer{}, err
	}
	return Normalizer{window: window}, nil
}

// Window returns the reference window.
func (n Normalizer) Window() geometry.Window {
	return n.window
}

// Apply normalizes a raw master position. The line coordinate becomes the
// basis x, the pixel coordinate the basis y.
func (n Normalizer) Apply(p geometry.Pixel) (x, y float64) {
	return Normalize(p.Row, n.window.LineLo, n.window.LineHi),
		Normalize(p.Col, n.window.PixLo, n.window.PixHi)
}

// Invert maps normalized coordinates back to a raw master position.
func (n Normalizer) Invert(x, y float64) geometry.Pixel {
	return geometry.Pixel{
		Row: Denormalize(x, n.window.LineLo, n.window.LineHi),
		Col: Denormalize(y, n.window.PixLo, n.window.PixHi),
	}
}

// ToRaw rewrites a polynomial over normalized coordinates as the equivalent
// polynomial over raw master coordinates.
func (n Normalizer) ToRaw(p Polynomial) Polynomial {
	w := n.window
	return p.Substitute(
		0.5*(w.LineLo+w.LineHi), 0.25*(w.LineHi-w.LineLo),
		0.5*(w.PixLo+w.PixHi), 0.25*(w.PixHi-w.PixLo),
	)
}
