//go:build opencv

package feature

import (
	"image"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/stormsight/stormsight/transform"
)

func init() {
	Register(BackendOpenCV, func(cfg *Config, logger golog.Logger) (Backend, error) {
		return NewOpenCV(cfg, logger)
	})
}

// opencvSet holds SIFT keypoints with their float descriptors. The
// descriptor mat lives as long as the set, which for cached reference maps
// is the lifetime of the cache entry.
type opencvSet struct {
	points []gocv.KeyPoint
	descs  gocv.Mat
}

func (s *opencvSet) Len() int { return len(s.points) }

// OpenCV is the accelerated backend built on SIFT features and OpenCV's
// RANSAC homography solver.
type OpenCV struct {
	cfg    *Config
	logger golog.Logger
}

// NewOpenCV creates the OpenCV-backed backend. A nil logger is replaced
// with a no-op one.
func NewOpenCV(cfg *Config, logger golog.Logger) (*OpenCV, error) {
	if cfg == nil {
		return nil, errors.New("feature config is required")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &OpenCV{cfg: cfg, logger: logger}, nil
}

// Name implements Backend.
func (o *OpenCV) Name() string { return BackendOpenCV }

// Extract implements Backend.
func (o *OpenCV) Extract(img *image.Gray) (Set, error) {
	if img == nil {
		return nil, errors.New("cannot extract features from a nil image")
	}
	src, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert image")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			o.logger.Debugw("closing source mat", "error", cerr)
		}
	}()

	sift := gocv.NewSIFT()
	defer func() {
		if cerr := sift.Close(); cerr != nil {
			o.logger.Debugw("closing sift", "error", cerr)
		}
	}()
	mask := gocv.NewMat()
	defer func() {
		if cerr := mask.Close(); cerr != nil {
			o.logger.Debugw("closing mask mat", "error", cerr)
		}
	}()
	kps, descs := sift.DetectAndCompute(src, mask)
	return &opencvSet{points: kps, descs: descs}, nil
}

// Match implements Backend.
func (o *OpenCV) Match(query, ref Set) ([]transform.PointPair, error) {
	q, ok := query.(*opencvSet)
	if !ok {
		return nil, errForeignSet(BackendOpenCV)
	}
	r, ok := ref.(*opencvSet)
	if !ok {
		return nil, errForeignSet(BackendOpenCV)
	}
	if len(q.points) == 0 || len(r.points) < 2 {
		return nil, nil
	}

	matcher := gocv.NewBFMatcher()
	defer func() {
		if cerr := matcher.Close(); cerr != nil {
			o.logger.Debugw("closing matcher", "error", cerr)
		}
	}()
	knn := matcher.KnnMatch(q.descs, r.descs, 2)

	var pairs []transform.PointPair
	for _, nn := range knn {
		if len(nn) < 2 {
			continue
		}
		if nn[0].Distance < o.cfg.Matching.Ratio*nn[1].Distance {
			qp := q.points[nn[0].QueryIdx]
			rp := r.points[nn[0].TrainIdx]
			pairs = append(pairs, transform.PointPair{
				Query: r2.Point{X: qp.X, Y: qp.Y},
				Ref:   r2.Point{X: rp.X, Y: rp.Y},
			})
		}
	}
	return pairs, nil
}

// EstimateHomography implements Backend.
func (o *OpenCV) EstimateHomography(pairs []transform.PointPair) (*transform.Homography, []transform.PointPair, error) {
	n := len(pairs)
	if n < 4 {
		return nil, nil, errors.Wrapf(transform.ErrInsufficientMatches, "got %d pairs, need at least 4", n)
	}

	srcPts := make([]gocv.Point2f, n)
	dstPts := make([]gocv.Point2f, n)
	for i, p := range pairs {
		srcPts[i] = gocv.Point2f{X: float32(p.Query.X), Y: float32(p.Query.Y)}
		dstPts[i] = gocv.Point2f{X: float32(p.Ref.X), Y: float32(p.Ref.Y)}
	}
	srcVec := gocv.NewPoint2fVectorFromPoints(srcPts)
	dstVec := gocv.NewPoint2fVectorFromPoints(dstPts)
	src := srcVec.ToMat()
	dst := dstVec.ToMat()
	mask := gocv.NewMat()
	defer func() {
		srcVec.Close()
		dstVec.Close()
		for _, m := range []*gocv.Mat{&src, &dst, &mask} {
			if cerr := m.Close(); cerr != nil {
				o.logger.Debugw("closing mat", "error", cerr)
			}
		}
	}()

	hMat := gocv.FindHomography(
		src, &dst,
		gocv.HomograpyMethodRANSAC,
		o.cfg.RANSAC.ReprojThreshold,
		&mask,
		o.cfg.RANSAC.MaxIterations,
		o.cfg.RANSAC.Confidence,
	)
	defer func() {
		if cerr := hMat.Close(); cerr != nil {
			o.logger.Debugw("closing homography mat", "error", cerr)
		}
	}()
	if hMat.Empty() {
		return nil, nil, errors.Wrap(transform.ErrDegenerateHomography, "solver returned no model")
	}

	vals := make([]float64, 0, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			vals = append(vals, hMat.GetDoubleAt(r, c))
		}
	}
	h, err := transform.NewHomography(vals)
	if err != nil {
		return nil, nil, err
	}
	if h.IsDegenerate() {
		return nil, nil, transform.ErrDegenerateHomography
	}

	var inliers []transform.PointPair
	for i := 0; i < n && i < mask.Rows(); i++ {
		if mask.GetUCharAt(i, 0) != 0 {
			inliers = append(inliers, pairs[i])
		}
	}
	if len(inliers) < 4 {
		return nil, nil, errors.Wrap(transform.ErrDegenerateHomography, "solver consensus too small")
	}
	return h, inliers, nil
}
