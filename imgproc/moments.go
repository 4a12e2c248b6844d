package imgproc

import (
	"math"

	"github.com/golang/geo/r2"
)

// Moments holds the raw polygon moments of a closed contour, computed with
// Green's theorem over the boundary. M00 is the signed area.
type Moments struct {
	M00 float64
	M10 float64
	M01 float64
}

// PolygonMoments computes the raw moments of a closed contour. The polygon
// is implicitly closed between the last and first points.
func PolygonMoments(contour Contour) Moments {
	var m Moments
	n := len(contour)
	if n < 3 {
		return m
	}
	for i := 0; i < n; i++ {
		x0 := float64(contour[i].X)
		y0 := float64(contour[i].Y)
		x1 := float64(contour[(i+1)%n].X)
		y1 := float64(contour[(i+1)%n].Y)
		cross := x0*y1 - x1*y0
		m.M00 += cross
		m.M10 += (x0 + x1) * cross
		m.M01 += (y0 + y1) * cross
	}
	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6
	return m
}

// Centroid returns the centroid of the contour, or false when the contour
// area is too small to define one.
func (m Moments) Centroid() (r2.Point, bool) {
	if math.Abs(m.M00) < 1e-9 {
		return r2.Point{}, false
	}
	return r2.Point{X: m.M10 / m.M00, Y: m.M01 / m.M00}, true
}

// ContourArea returns the unsigned polygon area enclosed by the contour.
func ContourArea(contour Contour) float64 {
	return math.Abs(PolygonMoments(contour).M00)
}
