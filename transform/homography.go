// Package transform estimates the planar projective transform between a
// captured view and a reference map, and converts positions between pixel
// and world coordinate frames.
package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PointPair is a correspondence between a point in the query view and a
// point in the reference map.
type PointPair struct {
	Query r2.Point
	Ref   r2.Point
}

// Homography is a 3x3 planar projective transform mapping query coordinates
// to reference coordinates.
type Homography struct {
	matrix *mat.Dense
}

// NewHomography creates a homography from 9 row-major values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("a homography needs 9 values, got %d", len(vals))
	}
	return &Homography{matrix: mat.NewDense(3, 3, vals)}, nil
}

// At returns the entry at row r, column c.
func (h *Homography) At(r, c int) float64 {
	return h.matrix.At(r, c)
}

// Apply transforms a point through the homography. The result can be
// non-finite when the point lands on the plane at infinity.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	w := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / w, Y: y / w}
}

// IsDegenerate reports whether the homography cannot be used to project
// points: non-finite entries or a near-zero determinant.
func (h *Homography) IsDegenerate() bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := h.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return math.Abs(mat.Det(h.matrix)) < 1e-12
}

// EstimateExactHomography estimates a homography from at least 4
// correspondences with the normalized direct linear transform. All pairs
// are treated as exact; for noisy correspondence sets use
// EstimateHomographyRANSAC.
func EstimateExactHomography(pairs []PointPair) (*Homography, error) {
	n := len(pairs)
	if n < 4 {
		return nil, errors.Wrapf(ErrInsufficientMatches, "got %d pairs, need at least 4", n)
	}
	queries := make([]r2.Point, n)
	refs := make([]r2.Point, n)
	for i, p := range pairs {
		queries[i] = p.Query
		refs[i] = p.Ref
	}
	qNorm, tQuery, err := normalizePoints(queries)
	if err != nil {
		return nil, err
	}
	rNorm, tRef, err := normalizePoints(refs)
	if err != nil {
		return nil, err
	}

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := qNorm[i].X, qNorm[i].Y
		u, v := rNorm[i].X, rNorm[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	vMat, err := performSVD(a)
	if err != nil {
		return nil, err
	}
	hNorm := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			hNorm.Set(r, c, vMat.At(3*r+c, 8))
		}
	}

	// Undo the normalization: H = Tref^-1 * Hnorm * Tquery.
	var tRefInv mat.Dense
	if err := tRefInv.Inverse(tRef); err != nil {
		return nil, errors.Wrap(err, "cannot invert reference normalization")
	}
	var tmp, full mat.Dense
	tmp.Mul(hNorm, tQuery)
	full.Mul(&tRefInv, &tmp)

	if s := full.At(2, 2); math.Abs(s) > 1e-12 {
		full.Scale(1/s, &full)
	}
	h := &Homography{matrix: &full}
	if h.IsDegenerate() {
		return nil, ErrDegenerateHomography
	}
	return h, nil
}

// normalizePoints translates the points to their centroid and scales them so
// the mean distance from the origin is sqrt(2), returning the transformed
// points and the similarity transform that produced them.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, error) {
	n := float64(len(pts))
	var cx, cy float64
	for _, p := range pts {
		cx += p.X / n
		cy += p.Y / n
	}
	var meanDist float64
	for _, p := range pts {
		dx := p.X - cx
		dy := p.Y - cy
		meanDist += math.Hypot(dx, dy) / n
	}
	if meanDist < 1e-12 {
		return nil, nil, errors.New("points are coincident, cannot normalize")
	}
	s := math.Sqrt2 / meanDist
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return out, t, nil
}

// performSVD returns the right singular vectors of m.
func performSVD(m mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("could not factorize the matrix")
	}
	var v mat.Dense
	svd.VTo(&v)
	return &v, nil
}
