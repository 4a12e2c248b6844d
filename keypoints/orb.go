package keypoints

import (
	"encoding/json"
	"image"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/stormsight/stormsight/imgproc"
)

// ORBConfig holds the parameters for pyramid keypoint extraction.
type ORBConfig struct {
	Layers          int          `json:"n_layers"`
	DownscaleFactor int          `json:"downscale_factor"`
	FastConf        *FASTConfig  `json:"fast"`
	BRIEFConf       *BRIEFConfig `json:"brief"`
}

// DefaultORBConfig returns the extraction parameters used when a
// configuration file does not override them.
func DefaultORBConfig() *ORBConfig {
	return &ORBConfig{
		Layers:          3,
		DownscaleFactor: 2,
		FastConf:        DefaultFASTConfig(),
		BRIEFConf:       DefaultBRIEFConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *ORBConfig) Validate(path string) error {
	if cfg.Layers < 1 {
		return utils.NewConfigValidationError(path, errors.New("n_layers should be >= 1"))
	}
	if cfg.DownscaleFactor < 2 {
		return utils.NewConfigValidationError(path, errors.New("downscale_factor should be >= 2"))
	}
	if cfg.FastConf == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "fast")
	}
	if err := cfg.FastConf.Validate(path); err != nil {
		return err
	}
	if cfg.BRIEFConf == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "brief")
	}
	return cfg.BRIEFConf.Validate(path)
}

// LoadORBConfiguration loads an ORBConfig from a JSON file.
func LoadORBConfiguration(file string) (*ORBConfig, error) {
	var config ORBConfig
	f, err := os.Open(file) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(""); err != nil {
		return nil, err
	}
	return &config, nil
}

// ImagePyramid contains the successive downscales of an image, finest
// first, with the integer scale of each level relative to the original.
type ImagePyramid struct {
	Images []*image.Gray
	Scales []int
}

// minPyramidDim stops the pyramid before a level becomes too small to hold
// a descriptor patch.
const minPyramidDim = 64

// GetImagePyramid builds up to layers downscales of the image, dividing by
// downscaleFactor at every level.
func GetImagePyramid(img *image.Gray, layers, downscaleFactor int) *ImagePyramid {
	pyramid := &ImagePyramid{
		Images: []*image.Gray{img},
		Scales: []int{1},
	}
	scale := 1
	for level := 1; level < layers; level++ {
		scale *= downscaleFactor
		w := img.Bounds().Dx() / scale
		h := img.Bounds().Dy() / scale
		if w < minPyramidDim || h < minPyramidDim {
			break
		}
		pyramid.Images = append(pyramid.Images, imgproc.ResizeGray(img, w, h))
		pyramid.Scales = append(pyramid.Scales, scale)
	}
	return pyramid
}

// ComputeORBKeypoints detects FAST keypoints on every pyramid level,
// describes them on that level and rescales their locations back to the
// original image. The same sample pairs must be used for every image whose
// descriptors will be matched against each other.
func ComputeORBKeypoints(img *image.Gray, sp *SamplePairs, cfg *ORBConfig) (Descriptors, KeyPoints, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, nil, err
	}
	pyramid := GetImagePyramid(img, cfg.Layers, cfg.DownscaleFactor)
	var descriptors Descriptors
	var points KeyPoints
	for level, levelImg := range pyramid.Images {
		kps := NewFASTKeypointsFromImage(levelImg, cfg.FastConf)
		descs, kept, err := ComputeBRIEFDescriptors(levelImg, sp, kps, cfg.BRIEFConf)
		if err != nil {
			return nil, nil, err
		}
		scale := pyramid.Scales[level]
		for i, p := range kept.Points {
			descriptors = append(descriptors, descs[i])
			points = append(points, image.Point{X: p.X * scale, Y: p.Y * scale})
		}
	}
	return descriptors, points, nil
}
