package imgproc

import (
	"image"

	"github.com/pkg/errors"
)

// BorderPad is the padding strategy used when a kernel reaches outside the
// image.
type BorderPad int

const (
	// BorderConstant fills the border with zeros.
	BorderConstant BorderPad = iota
	// BorderReplicate extends the border with the nearest edge pixel.
	BorderReplicate
)

// PaddingGray pads a grayscale image so that a kernel of the given size with
// the given anchor can be applied to every original pixel.
func PaddingGray(img *image.Gray, kernelSize, anchor image.Point, border BorderPad) (*image.Gray, error) {
	if kernelSize.X <= 0 || kernelSize.Y <= 0 {
		return nil, errors.Errorf("kernel size must be positive, got %v", kernelSize)
	}
	if anchor.X < 0 || anchor.Y < 0 || anchor.X >= kernelSize.X || anchor.Y >= kernelSize.Y {
		return nil, errors.Errorf("anchor %v outside kernel %v", anchor, kernelSize)
	}
	b := img.Bounds()
	left := anchor.X
	top := anchor.Y
	right := kernelSize.X - anchor.X - 1
	bottom := kernelSize.Y - anchor.Y - 1
	padded := image.NewGray(image.Rect(0, 0, b.Dx()+left+right, b.Dy()+top+bottom))

	for y := 0; y < padded.Bounds().Dy(); y++ {
		for x := 0; x < padded.Bounds().Dx(); x++ {
			srcX := x - left
			srcY := y - top
			inside := srcX >= 0 && srcX < b.Dx() && srcY >= 0 && srcY < b.Dy()
			switch {
			case inside:
				padded.SetGray(x, y, img.GrayAt(b.Min.X+srcX, b.Min.Y+srcY))
			case border == BorderReplicate:
				cx := clampInt(srcX, 0, b.Dx()-1)
				cy := clampInt(srcY, 0, b.Dy()-1)
				padded.SetGray(x, y, img.GrayAt(b.Min.X+cx, b.Min.Y+cy))
			default:
				// BorderConstant, already zero.
			}
		}
	}
	return padded, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
