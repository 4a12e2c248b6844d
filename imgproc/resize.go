package imgproc

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ResizeGray resamples a grayscale image to the given dimensions with a
// bilinear filter.
func ResizeGray(img *image.Gray, width, height int) *image.Gray {
	resized := imaging.Resize(img, width, height, imaging.Linear)
	return MakeGray(resized)
}

// Upscale enlarges an image by an integer factor with a bilinear filter.
// Icon detection runs on upscaled frames so that contour geometry has
// subpixel headroom.
func Upscale(img image.Image, factor int) (*image.NRGBA, error) {
	if factor < 1 {
		return nil, errors.Errorf("upscale factor must be >= 1, got %d", factor)
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.Linear), nil
}
