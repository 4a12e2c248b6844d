// Package capture acquires screen regions for the localization pipeline.
package capture

import (
	"image"
	"image/draw"

	"github.com/kbinani/screenshot"
	"github.com/pkg/errors"
)

// A Capturer grabs one rectangular screen region per call. Implementations
// must be safe for concurrent use.
type Capturer interface {
	CaptureRegion(region image.Rectangle) (*image.RGBA, error)
}

// DisplayCapturer captures from the live display.
type DisplayCapturer struct{}

// CaptureRegion grabs the given display rectangle.
func (DisplayCapturer) CaptureRegion(region image.Rectangle) (*image.RGBA, error) {
	if region.Empty() {
		return nil, errors.Errorf("empty capture region %v", region)
	}
	img, err := screenshot.CaptureRect(region)
	if err != nil {
		return nil, errors.Wrapf(err, "capturing display region %v", region)
	}
	return img, nil
}

// StaticCapturer serves subregions of one fixed frame. It stands in for the
// display when running against saved screenshots.
type StaticCapturer struct {
	Frame image.Image
}

// CaptureRegion copies the requested subregion out of the frame. The
// returned image has its origin at (0, 0) like a display capture.
func (s StaticCapturer) CaptureRegion(region image.Rectangle) (*image.RGBA, error) {
	if s.Frame == nil {
		return nil, errors.New("no frame loaded")
	}
	if region.Empty() {
		return nil, errors.Errorf("empty capture region %v", region)
	}
	if !region.In(s.Frame.Bounds()) {
		return nil, errors.Errorf("region %v outside frame %v", region, s.Frame.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(out, out.Bounds(), s.Frame, region.Min, draw.Src)
	return out, nil
}
