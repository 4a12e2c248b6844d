// Package imgproc contains the pixel-level building blocks shared by the
// localization and orientation pipelines: grayscale conversion, padding,
// kernel convolution, resampling, binarization, contour tracing and the
// small amount of contour geometry needed to reason about icon shapes.
package imgproc

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

// MakeGray converts any image to an 8-bit grayscale image anchored at the
// origin.
func MakeGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	result := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), img, b.Min, draw.Src)
	return result
}

// EnsureRGBA converts any image to *image.RGBA, copying only when the
// underlying type differs.
func EnsureRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// CropGray copies the region r of img into a new grayscale image anchored at
// the origin. The region must be inside the image bounds.
func CropGray(img *image.Gray, r image.Rectangle) (*image.Gray, error) {
	if !r.In(img.Bounds()) {
		return nil, errors.Errorf("crop %v outside image bounds %v", r, img.Bounds())
	}
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out, nil
}
