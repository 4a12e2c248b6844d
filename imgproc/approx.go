package imgproc

import (
	"math"

	"github.com/golang/geo/r2"
)

// ApproxContourDP simplifies a polyline with the Ramer-Douglas-Peucker
// algorithm, keeping every point farther than epsilon from the simplified
// chain. End points are always kept.
func ApproxContourDP(points []r2.Point, epsilon float64) []r2.Point {
	if len(points) <= 2 {
		return append([]r2.Point{}, points...)
	}
	maxDist := 0.0
	index := 0
	for i := 1; i < len(points)-1; i++ {
		d := perpendicularDistance(points[i], points[0], points[len(points)-1])
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist <= epsilon {
		return []r2.Point{points[0], points[len(points)-1]}
	}
	left := ApproxContourDP(points[:index+1], epsilon)
	right := ApproxContourDP(points[index:], epsilon)
	return append(left[:len(left)-1], right...)
}

// SimplifyClosed simplifies a closed polygon down to at most maxVertices by
// raising the Douglas-Peucker tolerance until the ring is small enough. The
// ring is split at its two mutually farthest vertices so both chains keep
// stable anchors.
func SimplifyClosed(ring []r2.Point, maxVertices int) []r2.Point {
	if maxVertices < 3 {
		maxVertices = 3
	}
	if len(ring) <= maxVertices {
		return ring
	}
	ai, bi := farthestPair(ring)
	if ai > bi {
		ai, bi = bi, ai
	}
	chain1 := append([]r2.Point{}, ring[ai:bi+1]...)
	chain2 := append([]r2.Point{}, ring[bi:]...)
	chain2 = append(chain2, ring[:ai+1]...)

	eps := 0.5
	for i := 0; i < 64; i++ {
		s1 := ApproxContourDP(chain1, eps)
		s2 := ApproxContourDP(chain2, eps)
		// Chains share both end points.
		merged := append(append([]r2.Point{}, s1...), s2[1:len(s2)-1]...)
		if len(merged) <= maxVertices {
			return merged
		}
		eps *= 2
	}
	return []r2.Point{ring[ai], ring[bi]}
}

func farthestPair(pts []r2.Point) (int, int) {
	ai, bi := 0, 0
	best := -1.0
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			d := pts[i].Sub(pts[j]).Norm()
			if d > best {
				best = d
				ai, bi = i, j
			}
		}
	}
	return ai, bi
}

// perpendicularDistance is the distance from p to the line through a and b.
func perpendicularDistance(p, a, b r2.Point) float64 {
	ab := b.Sub(a)
	length := ab.Norm()
	if length == 0 {
		return p.Sub(a).Norm()
	}
	return math.Abs(ab.X*(a.Y-p.Y)-(a.X-p.X)*ab.Y) / length
}
