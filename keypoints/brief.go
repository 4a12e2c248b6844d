package keypoints

import (
	"image"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/stormsight/stormsight/imgproc"
)

// Descriptor is a packed binary descriptor; bit i holds the i-th intensity
// comparison.
type Descriptor []uint64

// Descriptors is a set of descriptors aligned with a keypoint set.
type Descriptors []Descriptor

// BRIEFConfig holds the parameters for BRIEF descriptor computation.
type BRIEFConfig struct {
	N              int   `json:"n"`
	PatchSize      int   `json:"patch_size"`
	Seed           int64 `json:"seed"`
	UseOrientation bool  `json:"use_orientation"`
}

// DefaultBRIEFConfig returns the BRIEF parameters used when a configuration
// file does not override them.
func DefaultBRIEFConfig() *BRIEFConfig {
	return &BRIEFConfig{
		N:              256,
		PatchSize:      31,
		Seed:           42,
		UseOrientation: true,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *BRIEFConfig) Validate(path string) error {
	if cfg.N < 64 {
		return utils.NewConfigValidationError(path, errors.New("n must be at least 64"))
	}
	if cfg.PatchSize < 5 {
		return utils.NewConfigValidationError(path, errors.New("patch_size must be at least 5"))
	}
	return nil
}

// SamplePairs is a fixed set of intensity comparison offsets. Descriptors
// are only comparable when computed from the same SamplePairs, so a pipeline
// generates them once and shares them across images.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// GenerateSamplePairs draws N offset pairs uniformly inside the descriptor
// patch. The generator is seeded from the config so the pairs are
// reproducible.
func GenerateSamplePairs(cfg *BRIEFConfig) *SamplePairs {
	rnd := rand.New(rand.NewSource(cfg.Seed))
	half := (cfg.PatchSize - 2) / 2
	sample := func() image.Point {
		return image.Point{
			X: rnd.Intn(2*half+1) - half,
			Y: rnd.Intn(2*half+1) - half,
		}
	}
	sp := &SamplePairs{
		P0: make([]image.Point, cfg.N),
		P1: make([]image.Point, cfg.N),
		N:  cfg.N,
	}
	for i := 0; i < cfg.N; i++ {
		sp.P0[i] = sample()
		sp.P1[i] = sample()
	}
	return sp
}

// ComputeBRIEFDescriptors computes one descriptor per keypoint on a blurred
// copy of the image. Keypoints too close to the border for a rotated patch
// are dropped; the returned keypoints are the ones that produced
// descriptors, aligned index for index.
func ComputeBRIEFDescriptors(
	img *image.Gray,
	sp *SamplePairs,
	kps *FASTKeypoints,
	cfg *BRIEFConfig,
) (Descriptors, *FASTKeypoints, error) {
	if sp == nil || sp.N == 0 {
		return nil, nil, errors.New("sample pairs are required to compute descriptors")
	}
	blurred, err := imgproc.ConvolveGray(img, imgproc.GetGaussian5().Normalize(), image.Point{X: 2, Y: 2}, imgproc.BorderReplicate)
	if err != nil {
		return nil, nil, err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	// A rotated sample can reach sqrt(2) farther than the patch half width.
	margin := int(math.Ceil(float64(cfg.PatchSize)/2*math.Sqrt2)) + 1

	words := (sp.N + 63) / 64
	descriptors := make(Descriptors, 0, kps.Len())
	kept := &FASTKeypoints{}
	if kps.IsOriented() {
		kept.Orientations = []float64{}
	}
	for i, p := range kps.Points {
		if p.X < margin || p.Y < margin || p.X >= w-margin || p.Y >= h-margin {
			continue
		}
		cosA, sinA := 1.0, 0.0
		if cfg.UseOrientation && kps.IsOriented() {
			cosA = math.Cos(kps.Orientations[i])
			sinA = math.Sin(kps.Orientations[i])
		}
		desc := make(Descriptor, words)
		for s := 0; s < sp.N; s++ {
			v0 := sampleIntensity(blurred, p, sp.P0[s], cosA, sinA)
			v1 := sampleIntensity(blurred, p, sp.P1[s], cosA, sinA)
			if v0 < v1 {
				desc[s/64] |= 1 << (s % 64)
			}
		}
		descriptors = append(descriptors, desc)
		kept.Points = append(kept.Points, p)
		if kps.IsOriented() {
			kept.Orientations = append(kept.Orientations, kps.Orientations[i])
		}
	}
	return descriptors, kept, nil
}

func sampleIntensity(img *image.Gray, center, offset image.Point, cosA, sinA float64) uint8 {
	x := float64(offset.X)*cosA - float64(offset.Y)*sinA
	y := float64(offset.X)*sinA + float64(offset.Y)*cosA
	px := center.X + int(math.Round(x))
	py := center.Y + int(math.Round(y))
	return img.GrayAt(img.Bounds().Min.X+px, img.Bounds().Min.Y+py).Y
}
