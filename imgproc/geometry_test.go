package imgproc

import (
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestConvexHull(t *testing.T) {
	contour := Contour{
		{X: 5, Y: 0}, {X: 10, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 5},
		// Interior points must not survive.
		{X: 5, Y: 5}, {X: 4, Y: 5}, {X: 6, Y: 5},
	}
	hull := ConvexHull(contour)
	test.That(t, len(hull), test.ShouldEqual, 4)
	for _, want := range []r2.Point{{X: 5, Y: 0}, {X: 10, Y: 5}, {X: 5, Y: 10}, {X: 0, Y: 5}} {
		test.That(t, containsPoint(hull, want, 1e-9), test.ShouldBeTrue)
	}
}

func TestConvexHullCollinear(t *testing.T) {
	contour := Contour{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}}
	hull := ConvexHull(contour)
	test.That(t, len(hull), test.ShouldEqual, 2)
}

func TestApproxContourDP(t *testing.T) {
	chain := []r2.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.1}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	approx := ApproxContourDP(chain, 0.2)
	test.That(t, approx, test.ShouldResemble, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})

	// A large tolerance collapses everything to the end points.
	approx = ApproxContourDP(chain, 10)
	test.That(t, approx, test.ShouldResemble, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}})
}

func TestSimplifyClosed(t *testing.T) {
	// A dense ring around a square simplifies to its corners.
	var ring []r2.Point
	for i := 0; i <= 20; i++ {
		ring = append(ring, r2.Point{X: float64(i), Y: 0})
	}
	for i := 1; i <= 20; i++ {
		ring = append(ring, r2.Point{X: 20, Y: float64(i)})
	}
	for i := 19; i >= 0; i-- {
		ring = append(ring, r2.Point{X: float64(i), Y: 20})
	}
	for i := 19; i >= 1; i-- {
		ring = append(ring, r2.Point{X: 0, Y: float64(i)})
	}
	simplified := SimplifyClosed(ring, 12)
	test.That(t, len(simplified), test.ShouldBeLessThanOrEqualTo, 12)
	test.That(t, len(simplified), test.ShouldBeGreaterThanOrEqualTo, 3)
}

func TestMinEnclosingTriangleExact(t *testing.T) {
	// A triangle sampled with edge midpoints must recover itself.
	poly := []r2.Point{
		{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0},
		{X: 5, Y: 5}, {X: 0, Y: 10}, {X: 0, Y: 5},
	}
	tri, err := MinEnclosingTriangle(poly)
	test.That(t, err, test.ShouldBeNil)
	area := math.Abs(crossZ(tri[0], tri[1], tri[2])) / 2
	test.That(t, area, test.ShouldAlmostEqual, 50, 1e-6)
	for _, want := range []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}} {
		test.That(t, containsPoint(tri[:], want, 1e-6), test.ShouldBeTrue)
	}
}

func TestMinEnclosingTrianglePassthrough(t *testing.T) {
	poly := []r2.Point{{X: 0, Y: 0}, {X: 4, Y: 1}, {X: 2, Y: 6}}
	tri, err := MinEnclosingTriangle(poly)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tri[:], test.ShouldResemble, poly)
}

func TestMinEnclosingTriangleDegenerate(t *testing.T) {
	_, err := MinEnclosingTriangle([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPolygonMomentsSquare(t *testing.T) {
	square := Contour{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}
	m := PolygonMoments(square)
	test.That(t, math.Abs(m.M00), test.ShouldAlmostEqual, 16, 1e-9)
	c, ok := m.Centroid()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c.X, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, c.Y, test.ShouldAlmostEqual, 2, 1e-9)
}

func TestPolygonMomentsDegenerate(t *testing.T) {
	line := Contour{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 9, Y: 0}}
	_, ok := PolygonMoments(line).Centroid()
	test.That(t, ok, test.ShouldBeFalse)

	_, ok = PolygonMoments(Contour{{X: 1, Y: 1}}).Centroid()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestWhiteBandMask(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	fillRGBA(img, image.Rect(0, 0, 8, 8), 80, 80, 80)
	fillRGBA(img, image.Rect(2, 2, 5, 5), 240, 240, 240)
	// A pixel with one channel out of band must not pass.
	fillRGBA(img, image.Rect(6, 6, 7, 7), 240, 240, 200)

	mask := WhiteBandMask(img, 226, 255)
	count := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if mask.GrayAt(x, y).Y != 0 {
				count++
			}
		}
	}
	test.That(t, count, test.ShouldEqual, 9)
	test.That(t, mask.GrayAt(3, 3).Y, test.ShouldEqual, uint8(255))
	test.That(t, mask.GrayAt(6, 6).Y, test.ShouldEqual, uint8(0))
}

func TestWhiteBandMaskUpperBound(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	fillRGBA(img, image.Rect(0, 0, 1, 1), 255, 255, 255)
	fillRGBA(img, image.Rect(1, 0, 2, 1), 240, 240, 240)

	// With an upper bound of 253, pure white is excluded.
	mask := WhiteBandMask(img, 226, 253)
	test.That(t, mask.GrayAt(0, 0).Y, test.ShouldEqual, uint8(0))
	test.That(t, mask.GrayAt(1, 0).Y, test.ShouldEqual, uint8(255))
}

func containsPoint(pts []r2.Point, want r2.Point, tol float64) bool {
	for _, p := range pts {
		if math.Abs(p.X-want.X) <= tol && math.Abs(p.Y-want.Y) <= tol {
			return true
		}
	}
	return false
}

func fillRGBA(img *image.RGBA, r image.Rectangle, cr, cg, cb uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = cr
			img.Pix[i+1] = cg
			img.Pix[i+2] = cb
			img.Pix[i+3] = 255
		}
	}
}
