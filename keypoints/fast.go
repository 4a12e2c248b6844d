package keypoints

import (
	"image"
	"math"
	"sort"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// FASTConfig holds the parameters for FAST keypoint detection.
type FASTConfig struct {
	NMatchesCircle int  `json:"n_matches_circle"`
	NMSWinSize     int  `json:"nms_win_size"`
	Threshold      int  `json:"threshold"`
	Oriented       bool `json:"oriented"`
	MaxKeypoints   int  `json:"max_keypoints"`
}

// DefaultFASTConfig returns the FAST parameters used when a configuration
// file does not override them.
func DefaultFASTConfig() *FASTConfig {
	return &FASTConfig{
		NMatchesCircle: 9,
		NMSWinSize:     7,
		Threshold:      20,
		Oriented:       true,
		MaxKeypoints:   1000,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *FASTConfig) Validate(path string) error {
	if cfg.NMatchesCircle < 1 || cfg.NMatchesCircle > 16 {
		return utils.NewConfigValidationError(path, errors.New("n_matches_circle must be in [1, 16]"))
	}
	if cfg.NMSWinSize < 1 {
		return utils.NewConfigValidationError(path, errors.New("nms_win_size must be at least 1"))
	}
	if cfg.Threshold < 1 || cfg.Threshold > 255 {
		return utils.NewConfigValidationError(path, errors.New("threshold must be in [1, 255]"))
	}
	return nil
}

// circlePoints is the Bresenham circle of radius 3 around a candidate
// corner, listed clockwise from the top.
var circlePoints = [16]image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// orientationHalfWidths gives, for each |dy| from the keypoint center, the
// half width of the radius-15 disc used for intensity-centroid orientation.
var orientationHalfWidths = [16]int{15, 15, 15, 15, 14, 14, 14, 13, 13, 12, 11, 10, 9, 8, 6, 3}

type scoredPoint struct {
	p     image.Point
	score int
}

// NewFASTKeypointsFromImage detects corners in a grayscale image and, when
// cfg.Oriented is set, computes an intensity-centroid orientation for each.
func NewFASTKeypointsFromImage(img *image.Gray, cfg *FASTConfig) *FASTKeypoints {
	points := detectCorners(img, cfg)
	kps := &FASTKeypoints{Points: points}
	if cfg.Oriented {
		kps.Orientations = computeKeypointsOrientations(img, points)
	}
	return kps
}

// detectCorners runs the segment test on every pixel far enough from the
// border, suppresses non-maxima and keeps the MaxKeypoints strongest.
func detectCorners(img *image.Gray, cfg *FASTConfig) KeyPoints {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	var candidates []scoredPoint
	for y := 3; y < h-3; y++ {
		for x := 3; x < w-3; x++ {
			if score, ok := segmentTest(img, x, y, cfg); ok {
				candidates = append(candidates, scoredPoint{p: image.Point{X: x, Y: y}, score: score})
			}
		}
	}
	candidates = nonMaxSuppression(candidates, cfg.NMSWinSize)
	if cfg.MaxKeypoints > 0 && len(candidates) > cfg.MaxKeypoints {
		candidates = candidates[:cfg.MaxKeypoints]
	}
	// Detection order must not depend on scores.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].p.Y != candidates[j].p.Y {
			return candidates[i].p.Y < candidates[j].p.Y
		}
		return candidates[i].p.X < candidates[j].p.X
	})
	points := make(KeyPoints, len(candidates))
	for i, c := range candidates {
		points[i] = c.p
	}
	return points
}

// segmentTest checks for a contiguous arc of at least NMatchesCircle circle
// pixels that are all brighter or all darker than the center by Threshold.
// It returns a corner score for non-max suppression.
func segmentTest(img *image.Gray, x, y int, cfg *FASTConfig) (int, bool) {
	center := int(img.GrayAt(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).Y)
	var brighter, darker [32]bool
	score := 0
	for i, cp := range circlePoints {
		v := int(img.GrayAt(img.Bounds().Min.X+x+cp.X, img.Bounds().Min.Y+y+cp.Y).Y)
		diff := v - center
		if diff > cfg.Threshold {
			brighter[i], brighter[i+16] = true, true
		} else if diff < -cfg.Threshold {
			darker[i], darker[i+16] = true, true
		}
		if diff < 0 {
			diff = -diff
		}
		if diff > cfg.Threshold {
			score += diff
		}
	}
	if longestRun(brighter) >= cfg.NMatchesCircle || longestRun(darker) >= cfg.NMatchesCircle {
		return score, true
	}
	return 0, false
}

func longestRun(flags [32]bool) int {
	best, run := 0, 0
	for _, f := range flags {
		if !f {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	if best > 16 {
		best = 16
	}
	return best
}

// nonMaxSuppression keeps only the strongest candidate within any winSize
// Chebyshev neighborhood, strongest first.
func nonMaxSuppression(candidates []scoredPoint, winSize int) []scoredPoint {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].p.Y != candidates[j].p.Y {
			return candidates[i].p.Y < candidates[j].p.Y
		}
		return candidates[i].p.X < candidates[j].p.X
	})
	var kept []scoredPoint
	for _, c := range candidates {
		suppressed := false
		for _, k := range kept {
			dx := c.p.X - k.p.X
			dy := c.p.Y - k.p.Y
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}
			if dx < winSize && dy < winSize {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// computeKeypointsOrientations returns the intensity-centroid angle of the
// radius-15 disc around each keypoint. Samples outside the image are
// skipped, which keeps the computation identical for any image sharing the
// same interior pixels.
func computeKeypointsOrientations(img *image.Gray, points KeyPoints) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	orientations := make([]float64, len(points))
	for i, p := range points {
		var m10, m01 float64
		for dy := -15; dy <= 15; dy++ {
			ady := dy
			if ady < 0 {
				ady = -ady
			}
			halfWidth := orientationHalfWidths[ady]
			for dx := -halfWidth; dx <= halfWidth; dx++ {
				x, y := p.X+dx, p.Y+dy
				if x < 0 || y < 0 || x >= w || y >= h {
					continue
				}
				v := float64(img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
				m10 += float64(dx) * v
				m01 += float64(dy) * v
			}
		}
		orientations[i] = math.Atan2(m01, m10)
	}
	return orientations
}
