package capture

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestStaticCapturer(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			frame.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	cap := StaticCapturer{Frame: frame}

	region := image.Rect(20, 10, 52, 42)
	got, err := cap.CaptureRegion(region)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Bounds(), test.ShouldResemble, image.Rect(0, 0, 32, 32))
	test.That(t, got.RGBAAt(0, 0), test.ShouldResemble, color.RGBA{R: 20, G: 10, B: 7, A: 255})
	test.That(t, got.RGBAAt(31, 31), test.ShouldResemble, color.RGBA{R: 51, G: 41, B: 7, A: 255})

	// The copy must not alias the frame.
	frame.SetRGBA(20, 10, color.RGBA{A: 255})
	test.That(t, got.RGBAAt(0, 0), test.ShouldResemble, color.RGBA{R: 20, G: 10, B: 7, A: 255})
}

func TestStaticCapturerErrors(t *testing.T) {
	_, err := StaticCapturer{}.CaptureRegion(image.Rect(0, 0, 10, 10))
	test.That(t, err, test.ShouldNotBeNil)

	cap := StaticCapturer{Frame: image.NewRGBA(image.Rect(0, 0, 10, 10))}
	_, err = cap.CaptureRegion(image.Rect(5, 5, 15, 15))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = cap.CaptureRegion(image.Rect(3, 3, 3, 3))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDisplayCapturerRejectsEmptyRegion(t *testing.T) {
	_, err := DisplayCapturer{}.CaptureRegion(image.Rectangle{})
	test.That(t, err, test.ShouldNotBeNil)
}
