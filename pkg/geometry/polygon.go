package geometry

import (
	"math"
	"sort"
)

// Polygons here are vertex lists in the (Col, Row) plane, Col horizontal.
// ConvexHull returns them counter-clockwise, which ClipToWindow relies on.

// ConvexHull computes the convex hull of a set of positions (monotone chain).
// Fewer than three distinct positions, or collinear ones, give no area and
// are returned as the degenerate hull.
func ConvexHull(pixels []Pixel) []Pixel {
	pts := make([]Pixel, len(pixels))
	copy(pts, pixels)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Col != pts[j].Col {
			return pts[i].Col < pts[j].Col
		}
		return pts[i].Row < pts[j].Row
	})
	if len(pts) < 3 {
		return pts
	}

	hull := make([]Pixel, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// Area returns the unsigned area of a simple polygon.
func Area(polygon []Pixel) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	for i, p := range polygon {
		q := polygon[(i+1)%len(polygon)]
		sum += p.Col*q.Row - q.Col*p.Row
	}
	return math.Abs(sum) / 2
}

// Corners returns the window outline counter-clockwise.
func (w Window) Corners() []Pixel {
	return []Pixel{
		{Row: w.LineLo, Col: w.PixLo},
		{Row: w.LineLo, Col: w.PixHi},
		{Row: w.LineHi, Col: w.PixHi},
		{Row: w.LineHi, Col: w.PixLo},
	}
}

// ClipToWindow intersects a convex counter-clockwise polygon with the
// window (Sutherland-Hodgman). Returns nil when nothing with area remains.
func ClipToWindow(polygon []Pixel, w Window) []Pixel {
	if len(polygon) < 3 {
		return nil
	}
	out := append([]Pixel(nil), polygon...)
	clip := w.Corners()
	for i := range clip {
		if len(out) == 0 {
			return nil
		}
		out = clipByEdge(out, clip[i], clip[(i+1)%len(clip)])
	}
	if len(out) < 3 {
		return nil
	}
	return out
}

func clipByEdge(polygon []Pixel, a, b Pixel) []Pixel {
	var clipped []Pixel
	for i, cur := range polygon {
		next := polygon[(i+1)%len(polygon)]
		curIn := cross(a, b, cur) >= 0
		nextIn := cross(a, b, next) >= 0

		if curIn {
			clipped = append(clipped, cur)
		}
		if curIn != nextIn {
			if p, ok := intersect(cur, next, a, b); ok {
				clipped = append(clipped, p)
			}
		}
	}
	return clipped
}

// intersect returns where segment p1-p2 crosses the line through e1-e2.
func intersect(p1, p2, e1, e2 Pixel) (Pixel, bool) {
	denom := (p1.Col-p2.Col)*(e1.Row-e2.Row) - (p1.Row-p2.Row)*(e1.Col-e2.Col)
	if math.Abs(denom) < 1e-12 {
		return Pixel{}, false
	}
	t := ((p1.Col-e1.Col)*(e1.Row-e2.Row) - (p1.Row-e1.Row)*(e1.Col-e2.Col)) / denom
	return Pixel{
		Row: p1.Row + t*(p2.Row-p1.Row),
		Col: p1.Col + t*(p2.Col-p1.Col),
	}, true
}

// Coverage returns the fraction of the window covered by the convex hull of
// the positions, in [0, 1]. Polynomials evaluated outside that hull are
// extrapolated.
func Coverage(pixels []Pixel, w Window) float64 {
	total := w.Lines() * w.Pixels()
	if total <= 0 {
		return 0
	}
	return math.Min(1, Area(ClipToWindow(ConvexHull(pixels), w))/total)
}

// cross is the z component of (a-o)×(b-o) in the (Col, Row) plane; positive
// when o→a→b turns counter-clockwise.
func cross(o, a, b Pixel) float64 {
	return (a.Col-o.Col)*(b.Row-o.Row) - (a.Row-o.Row)*(b.Col-o.Col)
}
