package keypoints

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestGetImagePyramid(t *testing.T) {
	img := createTexturedImage(256, 256, 11)
	pyramid := GetImagePyramid(img, 3, 2)
	test.That(t, len(pyramid.Images), test.ShouldEqual, 3)
	test.That(t, pyramid.Scales, test.ShouldResemble, []int{1, 2, 4})
	test.That(t, pyramid.Images[1].Bounds().Dx(), test.ShouldEqual, 128)
	test.That(t, pyramid.Images[2].Bounds().Dx(), test.ShouldEqual, 64)

	// Levels below the minimum size are not built.
	small := createTexturedImage(100, 100, 12)
	pyramid = GetImagePyramid(small, 4, 2)
	test.That(t, len(pyramid.Images), test.ShouldEqual, 1)
}

func TestComputeORBKeypoints(t *testing.T) {
	img := createTexturedImage(256, 256, 13)
	cfg := DefaultORBConfig()
	sp := GenerateSamplePairs(cfg.BRIEFConf)

	descs, points, err := ComputeORBKeypoints(img, sp, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(descs), test.ShouldEqual, len(points))
	test.That(t, len(points), test.ShouldBeGreaterThan, 0)
	for _, p := range points {
		test.That(t, image.Pt(p.X, p.Y).In(img.Bounds()), test.ShouldBeTrue)
	}

	// The pyramid rescales coarse-level keypoints back to the original
	// frame, so repeated runs are identical.
	descs2, points2, err := ComputeORBKeypoints(img, sp, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, points2, test.ShouldResemble, points)
	test.That(t, descs2, test.ShouldResemble, descs)
}

func TestORBConfigValidate(t *testing.T) {
	cfg := DefaultORBConfig()
	test.That(t, cfg.Validate("orb"), test.ShouldBeNil)

	bad := *cfg
	bad.Layers = 0
	test.That(t, bad.Validate("orb"), test.ShouldNotBeNil)

	bad = *cfg
	bad.DownscaleFactor = 1
	test.That(t, bad.Validate("orb"), test.ShouldNotBeNil)

	bad = *cfg
	bad.FastConf = nil
	test.That(t, bad.Validate("orb"), test.ShouldNotBeNil)

	bad = *cfg
	bad.BRIEFConf = nil
	test.That(t, bad.Validate("orb"), test.ShouldNotBeNil)
}

func TestLoadORBConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orbconfig.json")
	content := `{
		"n_layers": 2,
		"downscale_factor": 2,
		"fast": {"n_matches_circle": 9, "nms_win_size": 7, "threshold": 20, "oriented": true, "max_keypoints": 500},
		"brief": {"n": 128, "patch_size": 31, "seed": 1, "use_orientation": true}
	}`
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)

	cfg, err := LoadORBConfiguration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Layers, test.ShouldEqual, 2)
	test.That(t, cfg.FastConf.MaxKeypoints, test.ShouldEqual, 500)
	test.That(t, cfg.BRIEFConf.N, test.ShouldEqual, 128)

	badPath := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(badPath, []byte(`{"n_layers": 0}`), 0o600), test.ShouldBeNil)
	_, err = LoadORBConfiguration(badPath)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LoadORBConfiguration(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
