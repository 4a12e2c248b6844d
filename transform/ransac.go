package transform

import (
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// RANSACConfig holds the parameters for robust homography estimation.
type RANSACConfig struct {
	// ReprojThreshold is the reprojection distance in reference pixels
	// below which a correspondence counts as an inlier.
	ReprojThreshold float64 `json:"reproj_threshold"`
	MaxIterations   int     `json:"max_iterations"`
	Confidence      float64 `json:"confidence"`
	Seed            int64   `json:"seed"`
}

// DefaultRANSACConfig returns the estimation parameters used when a
// configuration file does not override them.
func DefaultRANSACConfig() *RANSACConfig {
	return &RANSACConfig{
		ReprojThreshold: 5.0,
		MaxIterations:   2000,
		Confidence:      0.995,
		Seed:            1,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *RANSACConfig) Validate(path string) error {
	if cfg.ReprojThreshold <= 0 {
		return utils.NewConfigValidationError(path, errors.New("reproj_threshold must be positive"))
	}
	if cfg.MaxIterations < 1 {
		return utils.NewConfigValidationError(path, errors.New("max_iterations must be at least 1"))
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		return utils.NewConfigValidationError(path, errors.New("confidence must be in (0, 1)"))
	}
	return nil
}

// EstimateHomographyRANSAC estimates the homography mapping query points to
// reference points from correspondences that may contain outliers. It
// samples minimal 4-pair subsets, keeps the model with the largest
// consensus, refits it on all of its inliers and returns the refit
// homography with the final inlier set.
func EstimateHomographyRANSAC(
	pairs []PointPair,
	cfg *RANSACConfig,
	logger golog.Logger,
) (*Homography, []PointPair, error) {
	n := len(pairs)
	if n < 4 {
		return nil, nil, errors.Wrapf(ErrInsufficientMatches, "got %d pairs, need at least 4", n)
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	maxIter := cfg.MaxIterations
	var bestInliers []int
	for iter := 0; iter < maxIter; iter++ {
		sampleIdx := rnd.Perm(n)[:4]
		sample := make([]PointPair, 4)
		for i, idx := range sampleIdx {
			sample[i] = pairs[idx]
		}
		if sampleDegenerate(sample) {
			continue
		}
		h, err := EstimateExactHomography(sample)
		if err != nil {
			continue
		}
		inliers := consensus(pairs, h, cfg.ReprojThreshold)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			// With a better consensus, fewer iterations are needed to hit
			// the confidence target.
			w := float64(len(inliers)) / float64(n)
			if adaptive := requiredIterations(w, cfg.Confidence); adaptive < maxIter {
				maxIter = adaptive
			}
		}
	}
	if len(bestInliers) < 4 {
		return nil, nil, errors.Wrap(ErrDegenerateHomography, "no consensus among correspondences")
	}

	refitPairs := make([]PointPair, len(bestInliers))
	for i, idx := range bestInliers {
		refitPairs[i] = pairs[idx]
	}
	h, err := EstimateExactHomography(refitPairs)
	if err != nil {
		return nil, nil, err
	}
	finalIdx := consensus(pairs, h, cfg.ReprojThreshold)
	if len(finalIdx) < 4 {
		return nil, nil, errors.Wrap(ErrDegenerateHomography, "refit lost its consensus")
	}
	final := make([]PointPair, len(finalIdx))
	for i, idx := range finalIdx {
		final[i] = pairs[idx]
	}
	if logger != nil {
		logger.Debugw("homography estimated", "pairs", n, "inliers", len(final))
	}
	return h, final, nil
}

// consensus returns the indices of the pairs whose reference points lie
// within threshold of their projected query points.
func consensus(pairs []PointPair, h *Homography, threshold float64) []int {
	var inliers []int
	for i, p := range pairs {
		proj := h.Apply(p.Query)
		d := math.Hypot(proj.X-p.Ref.X, proj.Y-p.Ref.Y)
		if !math.IsNaN(d) && d <= threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// sampleDegenerate reports whether any three of the four sampled pairs are
// collinear on either side, which makes the minimal problem unsolvable.
func sampleDegenerate(sample []PointPair) bool {
	for i := 0; i < 2; i++ {
		for j := i + 1; j < 3; j++ {
			for k := j + 1; k < 4; k++ {
				q1, q2, q3 := sample[i].Query, sample[j].Query, sample[k].Query
				if math.Abs((q2.X-q1.X)*(q3.Y-q1.Y)-(q2.Y-q1.Y)*(q3.X-q1.X)) < 1e-9 {
					return true
				}
				r1, r2p, r3 := sample[i].Ref, sample[j].Ref, sample[k].Ref
				if math.Abs((r2p.X-r1.X)*(r3.Y-r1.Y)-(r2p.Y-r1.Y)*(r3.X-r1.X)) < 1e-9 {
					return true
				}
			}
		}
	}
	return false
}

// requiredIterations is the standard RANSAC iteration bound for an inlier
// ratio w and a target confidence, with a 4-point minimal sample.
func requiredIterations(w, confidence float64) int {
	if w <= 0 {
		return math.MaxInt32
	}
	pAllInliers := math.Pow(w, 4)
	if pAllInliers >= 1 {
		return 1
	}
	needed := math.Log(1-confidence) / math.Log(1-pAllInliers)
	if math.IsNaN(needed) || math.IsInf(needed, 0) || needed > math.MaxInt32 {
		return math.MaxInt32
	}
	if needed < 1 {
		return 1
	}
	return int(math.Ceil(needed))
}
