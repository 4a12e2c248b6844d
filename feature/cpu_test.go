package feature

import (
	"image"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/stormsight/stormsight/imgproc"
	"github.com/stormsight/stormsight/transform"
)

// worldTexture builds a reproducible high-contrast map image: a sawtooth
// ramp with rectangular landmarks scattered over it.
func worldTexture(w, h int, seed int64) *image.Gray {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[img.PixOffset(x, y)] = uint8(25 + (x*13+y*29)%120)
		}
	}
	for n := 0; n < w*h/64; n++ {
		bx := rnd.Intn(w - 10)
		by := rnd.Intn(h - 10)
		bw := 3 + rnd.Intn(7)
		bh := 3 + rnd.Intn(7)
		v := uint8(150 + rnd.Intn(106))
		for y := by; y < by+bh; y++ {
			for x := bx; x < bx+bw; x++ {
				img.Pix[img.PixOffset(x, y)] = v
			}
		}
	}
	return img
}

func testConfig() *Config {
	cfg := DefaultConfig()
	// Keep every corner so small crops still carry enough features.
	cfg.ORB.FastConf.MaxKeypoints = 0
	return cfg
}

func TestSelect(t *testing.T) {
	logger := golog.NewTestLogger(t)

	// An empty name picks the best backend compiled into this binary.
	expected := BackendCPU
	if _, ok := registry[BackendOpenCV]; ok {
		expected = BackendOpenCV
	}
	backend, err := Select("", testConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, backend.Name(), test.ShouldEqual, expected)

	backend, err = Select(BackendCPU, testConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, backend.Name(), test.ShouldEqual, BackendCPU)

	_, err = Select("quantum", testConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, Backends(), test.ShouldContain, BackendCPU)
}

func TestCPUValidatesConfig(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := NewCPU(nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg := testConfig()
	cfg.ORB = nil
	_, err = NewCPU(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCPUExtract(t *testing.T) {
	logger := golog.NewTestLogger(t)
	backend, err := NewCPU(testConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	img := worldTexture(256, 256, 3)
	set, err := backend.Extract(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Len(), test.ShouldBeGreaterThan, 50)

	_, err = backend.Extract(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCPUMatchRejectsForeignSets(t *testing.T) {
	logger := golog.NewTestLogger(t)
	backend, err := NewCPU(testConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	img := worldTexture(128, 128, 4)
	set, err := backend.Extract(img)
	test.That(t, err, test.ShouldBeNil)

	_, err = backend.Match(set, fakeSet{})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = backend.Match(fakeSet{}, set)
	test.That(t, err, test.ShouldNotBeNil)
}

type fakeSet struct{}

func (fakeSet) Len() int { return 0 }

func noisePatch(w, h int, seed int64) *image.Gray {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rnd.Intn(256))
	}
	return img
}

func TestCPUMatchRejectsUntexturedPatches(t *testing.T) {
	logger := golog.NewTestLogger(t)
	backend, err := NewCPU(testConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	refSet, err := backend.Extract(worldTexture(400, 300, 5))
	test.That(t, err, test.ShouldBeNil)
	minMatches := DefaultConfig().Matching.MinMatches

	// A blank patch has no corners at all.
	blank := image.NewGray(image.Rect(0, 0, 100, 100))
	set, err := backend.Extract(blank)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Len(), test.ShouldEqual, 0)
	pairs, err := backend.Match(set, refSet)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pairs), test.ShouldEqual, 0)

	// A smooth gradient never crosses the corner threshold.
	gradient := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			gradient.Pix[gradient.PixOffset(x, y)] = uint8(x + y)
		}
	}
	set, err = backend.Extract(gradient)
	test.That(t, err, test.ShouldBeNil)
	pairs, err = backend.Match(set, refSet)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pairs), test.ShouldBeLessThan, minMatches)

	// Noise produces corners, but the ratio test rejects their ambiguous
	// descriptors against a large reference set.
	for seed := int64(1); seed <= 5; seed++ {
		set, err := backend.Extract(noisePatch(100, 100, seed))
		test.That(t, err, test.ShouldBeNil)
		pairs, err := backend.Match(set, refSet)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(pairs), test.ShouldBeLessThan, minMatches)
	}
}

func TestCPULocalizesExactCrop(t *testing.T) {
	logger := golog.NewTestLogger(t)
	backend, err := NewCPU(testConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	refImg := worldTexture(400, 300, 5)
	refSet, err := backend.Extract(refImg)
	test.That(t, err, test.ShouldBeNil)

	crop, err := imgproc.CropGray(refImg, image.Rect(120, 80, 220, 180))
	test.That(t, err, test.ShouldBeNil)
	querySet, err := backend.Extract(crop)
	test.That(t, err, test.ShouldBeNil)

	pairs, err := backend.Match(querySet, refSet)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pairs), test.ShouldBeGreaterThanOrEqualTo, 10)

	h, inliers, err := backend.EstimateHomography(pairs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(inliers), test.ShouldBeGreaterThanOrEqualTo, 10)

	corners, err := transform.ProjectCorners(image.Point{X: 100, Y: 100}, h)
	test.That(t, err, test.ShouldBeNil)
	centroid := transform.QuadCentroid(corners)
	test.That(t, centroid.X, test.ShouldAlmostEqual, 170, 3)
	test.That(t, centroid.Y, test.ShouldAlmostEqual, 130, 3)
}
