package imgproc

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// MinEnclosingTriangle approximates the minimum-area triangle enclosing a
// convex polygon by searching triangles bounded by triples of the polygon's
// edge lines. When no bounded triple encloses the polygon (near-degenerate
// rings) it falls back to the maximum-area triangle inscribed in the
// polygon's vertices.
func MinEnclosingTriangle(poly []r2.Point) ([3]r2.Point, error) {
	var tri [3]r2.Point
	if len(poly) < 3 {
		return tri, errors.Errorf("enclosing triangle needs at least 3 vertices, got %d", len(poly))
	}
	if len(poly) == 3 {
		copy(tri[:], poly)
		return tri, nil
	}

	n := len(poly)
	dirs := make([]r2.Point, n)
	for i := range poly {
		dirs[i] = poly[(i+1)%n].Sub(poly[i])
	}

	bestArea := math.Inf(1)
	found := false
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				t1, ok1 := lineIntersection(poly[i], dirs[i], poly[j], dirs[j])
				t2, ok2 := lineIntersection(poly[j], dirs[j], poly[k], dirs[k])
				t3, ok3 := lineIntersection(poly[k], dirs[k], poly[i], dirs[i])
				if !ok1 || !ok2 || !ok3 {
					continue
				}
				area := math.Abs(crossZ(t1, t2, t3)) / 2
				if area <= 1e-9 || area >= bestArea {
					continue
				}
				if !triangleContains(t1, t2, t3, poly) {
					continue
				}
				bestArea = area
				tri = [3]r2.Point{t1, t2, t3}
				found = true
			}
		}
	}
	if found {
		return tri, nil
	}
	return maxInscribedTriangle(poly)
}

// lineIntersection intersects the lines a+t*da and b+s*db.
func lineIntersection(a, da, b, db r2.Point) (r2.Point, bool) {
	den := da.X*db.Y - da.Y*db.X
	if math.Abs(den) < 1e-12*(1+da.Norm()*db.Norm()) {
		return r2.Point{}, false
	}
	diff := b.Sub(a)
	t := (diff.X*db.Y - diff.Y*db.X) / den
	p := a.Add(r2.Point{X: t * da.X, Y: t * da.Y})
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return r2.Point{}, false
	}
	return p, true
}

func triangleContains(t1, t2, t3 r2.Point, pts []r2.Point) bool {
	orient := crossZ(t1, t2, t3)
	if orient == 0 {
		return false
	}
	tol := 1e-6 * (1 + math.Abs(orient))
	sameSide := func(a, b, p r2.Point) bool {
		c := crossZ(a, b, p)
		if orient > 0 {
			return c >= -tol
		}
		return c <= tol
	}
	for _, p := range pts {
		if !sameSide(t1, t2, p) || !sameSide(t2, t3, p) || !sameSide(t3, t1, p) {
			return false
		}
	}
	return true
}

func maxInscribedTriangle(poly []r2.Point) ([3]r2.Point, error) {
	var tri [3]r2.Point
	bestArea := -1.0
	n := len(poly)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				area := math.Abs(crossZ(poly[i], poly[j], poly[k])) / 2
				if area > bestArea {
					bestArea = area
					tri = [3]r2.Point{poly[i], poly[j], poly[k]}
				}
			}
		}
	}
	if bestArea <= 0 {
		return tri, errors.New("polygon is degenerate, no triangle found")
	}
	return tri, nil
}
