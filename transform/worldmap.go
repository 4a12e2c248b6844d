package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// MatchResult couples the accepted correspondences with the estimated
// homography and the projected outline of the query view on the reference
// map.
type MatchResult struct {
	Pairs   []PointPair
	Inliers []PointPair
	H       *Homography
	Corners [4]r2.Point
}

// ProjectCorners projects the four corners of a query view of the given
// dimensions onto the reference map. It fails when any corner projects to a
// non-finite location.
func ProjectCorners(dims image.Point, h *Homography) ([4]r2.Point, error) {
	w, ht := float64(dims.X), float64(dims.Y)
	corners := [4]r2.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: ht}, {X: 0, Y: ht}}
	var projected [4]r2.Point
	for i, c := range corners {
		p := h.Apply(c)
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return projected, ErrDegenerateHomography
		}
		projected[i] = p
	}
	return projected, nil
}

// QuadCentroid returns the mean of the four corner points.
func QuadCentroid(corners [4]r2.Point) r2.Point {
	var c r2.Point
	for _, p := range corners {
		c.X += p.X / 4
		c.Y += p.Y / 4
	}
	return c
}

// MapToWorld converts a position in reference-map pixels to world
// coordinates. The scale is linear and independent per axis, anchored at
// the world region's minimum corner.
func MapToWorld(p r2.Point, refDims image.Point, world image.Rectangle) r2.Point {
	sx := float64(world.Dx()) / float64(refDims.X)
	sy := float64(world.Dy()) / float64(refDims.Y)
	return r2.Point{
		X: float64(world.Min.X) + p.X*sx,
		Y: float64(world.Min.Y) + p.Y*sy,
	}
}
