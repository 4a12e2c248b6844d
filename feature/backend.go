// Package feature abstracts image feature extraction, matching and
// homography estimation behind interchangeable backends. The pure-Go CPU
// backend is always available; accelerated backends register themselves at
// init when their build tag is enabled, and the default selection prefers
// them.
package feature

import (
	"image"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/stormsight/stormsight/keypoints"
	"github.com/stormsight/stormsight/transform"
)

// Set is an opaque collection of image features produced by a Backend. Sets
// are only meaningful to the backend that produced them.
type Set interface {
	Len() int
}

// Backend extracts features from images, matches feature sets and estimates
// the homography between matched views. Implementations must be safe for
// concurrent use.
type Backend interface {
	Name() string
	Extract(img *image.Gray) (Set, error)
	Match(query, ref Set) ([]transform.PointPair, error)
	EstimateHomography(pairs []transform.PointPair) (*transform.Homography, []transform.PointPair, error)
}

// Config aggregates the extraction, matching and estimation parameters
// shared by all backends.
type Config struct {
	// Backend selects a registered backend by name; empty picks the best
	// one available.
	Backend  string                    `json:"backend,omitempty"`
	ORB      *keypoints.ORBConfig      `json:"orb"`
	Matching *keypoints.MatchingConfig `json:"matching"`
	RANSAC   *transform.RANSACConfig   `json:"ransac"`
}

// DefaultConfig returns the feature parameters used when a configuration
// file does not override them.
func DefaultConfig() *Config {
	return &Config{
		ORB:      keypoints.DefaultORBConfig(),
		Matching: keypoints.DefaultMatchingConfig(),
		RANSAC:   transform.DefaultRANSACConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ORB == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "orb")
	}
	if err := cfg.ORB.Validate(path + ".orb"); err != nil {
		return err
	}
	if cfg.Matching == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "matching")
	}
	if err := cfg.Matching.Validate(path + ".matching"); err != nil {
		return err
	}
	if cfg.RANSAC == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "ransac")
	}
	return cfg.RANSAC.Validate(path + ".ransac")
}

// errForeignSet is returned when a backend receives a Set it did not
// produce.
func errForeignSet(backend string) error {
	return errors.Errorf("feature set was not produced by the %q backend", backend)
}
