package transform

import "github.com/pkg/errors"

var (
	// ErrInsufficientMatches is returned when fewer correspondences are
	// available than a homography estimate needs.
	ErrInsufficientMatches = errors.New("not enough matches to estimate a homography")
	// ErrDegenerateHomography is returned when the estimated homography
	// collapses, has non-finite entries, or no consensus supports it.
	ErrDegenerateHomography = errors.New("estimated homography is degenerate")
)
