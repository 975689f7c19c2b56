// Package geometry provides basic raster geometry types shared by the estimator and its callers.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Pixel is a raster position in line (row, azimuth) and pixel (column, range) coordinates.
type Pixel struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// NewPixel creates a new Pixel.
func NewPixel(row, col float64) Pixel {
	return Pixel{Row: row, Col: col}
}

// Add returns the sum of two positions.
func (p Pixel) Add(other Pixel) Pixel {
	return Pixel{Row: p.Row + other.Row, Col: p.Col + other.Col}
}

// Sub returns the difference of two positions.
func (p Pixel) Sub(other Pixel) Pixel {
	return Pixel{Row: p.Row - other.Row, Col: p.Col - other.Col}
}

// Window is a raster extent given by its first and last line and pixel.
type Window struct {
	LineLo float64 `json:"line_lo" toml:"line_lo"`
	LineHi float64 `json:"line_hi" toml:"line_hi"`
	PixLo  float64 `json:"pix_lo" toml:"pix_lo"`
	PixHi  float64 `json:"pix_hi" toml:"pix_hi"`
}

// NewWindow creates a new Window.
func NewWindow(lineLo, lineHi, pixLo, pixHi float64) Window {
	return Window{LineLo: lineLo, LineHi: lineHi, PixLo: pixLo, PixHi: pixHi}
}

// WindowFromBounds returns the window covering every pixel of an image rectangle.
func WindowFromBounds(r image.Rectangle) Window {
	return Window{
		LineLo: float64(r.Min.Y),
		LineHi: float64(r.Max.Y - 1),
		PixLo:  float64(r.Min.X),
		PixHi:  float64(r.Max.X - 1),
	}
}

// Lines returns the extent of the window along the line axis.
func (w Window) Lines() float64 {
	return w.LineHi - w.LineLo
}

// Pixels returns the extent of the window along the pixel axis.
func (w Window) Pixels() float64 {
	return w.PixHi - w.PixLo
}

// Contains returns true if the position lies inside the window.
func (w Window) Contains(p Pixel) bool {
	return p.Row >= w.LineLo && p.Row <= w.LineHi &&
		p.Col >= w.PixLo && p.Col <= w.PixHi
}

// Validate reports an error when the window has no extent along either axis.
func (w Window) Validate() error {
	if !(w.LineHi > w.LineLo) {
		return fmt.Errorf("window lines [%g, %g] have no extent", w.LineLo, w.LineHi)
	}
	if !(w.PixHi > w.PixLo) {
		return fmt.Errorf("window pixels [%g, %g] have no extent", w.PixLo, w.PixHi)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%g:%g, %g:%g]", w.LineLo, w.LineHi, w.PixLo, w.PixHi)
}

// BoundingWindow computes the smallest window containing every position.
func BoundingWindow(pixels []Pixel) Window {
	if len(pixels) == 0 {
		return Window{}
	}
	w := Window{
		LineLo: pixels[0].Row, LineHi: pixels[0].Row,
		PixLo: pixels[0].Col, PixHi: pixels[0].Col,
	}
	for _, p := range pixels[1:] {
		w.LineLo = math.Min(w.LineLo, p.Row)
		w.LineHi = math.Max(w.LineHi, p.Row)
		w.PixLo = math.Min(w.PixLo, p.Col)
		w.PixHi = math.Max(w.PixHi, p.Col)
	}
	return w
}

// AffineTransform represents a 2x3 affine transformation matrix acting on (row, col).
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Apply applies the transform to a position.
func (t AffineTransform) Apply(p Pixel) Pixel {
	return Pixel{
		Row: t.A*p.Row + t.B*p.Col + t.TX,
		Col: t.C*p.Row + t.D*p.Col + t.TY,
	}
}

// Inverse returns the transform mapping Apply's output back to its input.
// A determinant that is negligible against the linear part is an error.
func (t AffineTransform) Inverse() (AffineTransform, error) {
	det := t.A*t.D - t.B*t.C
	scale := math.Max(math.Abs(t.A)+math.Abs(t.B), math.Abs(t.C)+math.Abs(t.D))
	if scale == 0 || math.Abs(det) <= 1e-12*scale*scale {
		return AffineTransform{}, fmt.Errorf("affine transform is singular (det %g)", det)
	}
	a, b := t.D/det, -t.B/det
	c, d := -t.C/det, t.A/det
	return AffineTransform{
		A: a, B: b, TX: -(a*t.TX + b*t.TY),
		C: c, D: d, TY: -(c*t.TX + d*t.TY),
	}, nil
}
