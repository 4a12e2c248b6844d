package imgproc

import (
	"image"
)

// WhiteBandMask returns a binary mask that is 255 wherever all three color
// channels of img fall inside [lo, hi], and 0 elsewhere. Alpha is ignored.
func WhiteBandMask(img image.Image, lo, hi uint8) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	ParallelForEachPixel(image.Point{X: b.Dx(), Y: b.Dy()}, func(x, y int) {
		r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
		r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(bl>>8)
		if inBand(r8, lo, hi) && inBand(g8, lo, hi) && inBand(b8, lo, hi) {
			mask.Pix[mask.PixOffset(x, y)] = 255
		}
	})
	return mask
}

func inBand(v, lo, hi uint8) bool {
	return v >= lo && v <= hi
}
