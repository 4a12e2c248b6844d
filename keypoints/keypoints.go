// Package keypoints implements scale- and rotation-aware binary image
// features: FAST corner detection with intensity-centroid orientation, BRIEF
// descriptors sampled over a blurred patch, an ORB-style pyramid combination
// of the two, and ratio-test matching between descriptor sets.
package keypoints

import (
	"image"
)

// KeyPoints is a set of pixel locations in image coordinates.
type KeyPoints []image.Point

// FASTKeypoints stores FAST keypoint locations and, when detection ran in
// oriented mode, one orientation angle in radians per keypoint.
type FASTKeypoints struct {
	Points       KeyPoints
	Orientations []float64
}

// IsOriented returns true if the keypoints carry orientations.
func (kps *FASTKeypoints) IsOriented() bool {
	return kps.Orientations != nil && len(kps.Orientations) == len(kps.Points)
}

// Len returns the number of keypoints.
func (kps *FASTKeypoints) Len() int {
	return len(kps.Points)
}
