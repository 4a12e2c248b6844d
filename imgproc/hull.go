package imgproc

import (
	"sort"

	"github.com/golang/geo/r2"
)

// ConvexHull computes the convex hull of a contour with Andrew's monotone
// chain, returning the hull vertices in clockwise order for image
// coordinates (y growing downward). Collinear points are dropped.
func ConvexHull(contour Contour) []r2.Point {
	pts := make([]r2.Point, 0, len(contour))
	seen := make(map[[2]int]struct{}, len(contour))
	for _, p := range contour {
		key := [2]int{p.X, p.Y}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pts = append(pts, r2.Point{X: float64(p.X), Y: float64(p.Y)})
	}
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]r2.Point, 0, 2*len(pts))
	// Lower chain.
	for _, p := range pts {
		for len(hull) >= 2 && crossZ(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// Upper chain.
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && crossZ(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// crossZ is the z component of (b-a) x (c-a).
func crossZ(a, b, c r2.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
