package feature

import (
	"image"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/stormsight/stormsight/keypoints"
	"github.com/stormsight/stormsight/transform"
)

func init() {
	Register(BackendCPU, func(cfg *Config, logger golog.Logger) (Backend, error) {
		return NewCPU(cfg, logger)
	})
}

// cpuSet pairs ORB keypoints with their binary descriptors.
type cpuSet struct {
	points keypoints.KeyPoints
	descs  keypoints.Descriptors
}

func (s *cpuSet) Len() int { return len(s.points) }

// CPU is the pure-Go backend: ORB keypoints with BRIEF descriptors, ratio
// test matching and RANSAC homography estimation. The BRIEF sample pairs
// are generated once per backend so descriptors from different images stay
// comparable.
type CPU struct {
	cfg    *Config
	sp     *keypoints.SamplePairs
	logger golog.Logger
}

// NewCPU creates the pure-Go backend.
func NewCPU(cfg *Config, logger golog.Logger) (*CPU, error) {
	if cfg == nil {
		return nil, errors.New("feature config is required")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &CPU{
		cfg:    cfg,
		sp:     keypoints.GenerateSamplePairs(cfg.ORB.BRIEFConf),
		logger: logger,
	}, nil
}

// Name implements Backend.
func (c *CPU) Name() string { return BackendCPU }

// Extract implements Backend.
func (c *CPU) Extract(img *image.Gray) (Set, error) {
	if img == nil {
		return nil, errors.New("cannot extract features from a nil image")
	}
	descs, points, err := keypoints.ComputeORBKeypoints(img, c.sp, c.cfg.ORB)
	if err != nil {
		return nil, errors.Wrap(err, "orb extraction failed")
	}
	return &cpuSet{points: points, descs: descs}, nil
}

// Match implements Backend.
func (c *CPU) Match(query, ref Set) ([]transform.PointPair, error) {
	q, ok := query.(*cpuSet)
	if !ok {
		return nil, errForeignSet(BackendCPU)
	}
	r, ok := ref.(*cpuSet)
	if !ok {
		return nil, errForeignSet(BackendCPU)
	}
	matches := keypoints.MatchDescriptors(q.descs, r.descs, c.cfg.Matching, c.logger)
	qPts, rPts, err := keypoints.GetMatchingKeyPoints(matches, q.points, r.points)
	if err != nil {
		return nil, err
	}
	pairs := make([]transform.PointPair, len(matches))
	for i := range matches {
		pairs[i] = transform.PointPair{
			Query: r2.Point{X: float64(qPts[i].X), Y: float64(qPts[i].Y)},
			Ref:   r2.Point{X: float64(rPts[i].X), Y: float64(rPts[i].Y)},
		}
	}
	return pairs, nil
}

// EstimateHomography implements Backend.
func (c *CPU) EstimateHomography(pairs []transform.PointPair) (*transform.Homography, []transform.PointPair, error) {
	return transform.EstimateHomographyRANSAC(pairs, c.cfg.RANSAC, c.logger)
}
