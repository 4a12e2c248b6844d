package imgproc

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// Kernel is a 2D convolution kernel.
type Kernel struct {
	Content [][]float64
	Width   int
	Height  int
}

// NewKernel returns a zeroed kernel of the given size.
func NewKernel(width, height int) (*Kernel, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("kernel size must be positive, got %dx%d", width, height)
	}
	content := make([][]float64, height)
	for i := range content {
		content[i] = make([]float64, width)
	}
	return &Kernel{Content: content, Width: width, Height: height}, nil
}

// At returns the kernel coefficient at column x, row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Size returns the kernel dimensions.
func (k *Kernel) Size() image.Point {
	return image.Point{X: k.Width, Y: k.Height}
}

// Sum returns the sum of all coefficients.
func (k *Kernel) Sum() float64 {
	var sum float64
	for _, row := range k.Content {
		for _, v := range row {
			sum += v
		}
	}
	return sum
}

// Normalize returns a copy of the kernel scaled so its coefficients sum to 1.
func (k *Kernel) Normalize() *Kernel {
	sum := k.Sum()
	if sum == 0 {
		sum = 1
	}
	out, _ := NewKernel(k.Width, k.Height)
	for y := range k.Content {
		for x, v := range k.Content[y] {
			out.Content[y][x] = v / sum
		}
	}
	return out
}

// GetGaussian5 returns the 5x5 binomial approximation of a Gaussian kernel.
// The kernel is not normalized.
func GetGaussian5() *Kernel {
	weights := []float64{1, 4, 6, 4, 1}
	k, _ := NewKernel(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			k.Content[y][x] = weights[y] * weights[x]
		}
	}
	return k
}

// ConvolveGray applies a kernel to a grayscale image at the given anchor,
// padding the borders with the given strategy. Results are clamped to
// [0, 255].
func ConvolveGray(img *image.Gray, kernel *Kernel, anchor image.Point, border BorderPad) (*image.Gray, error) {
	padded, err := PaddingGray(img, kernel.Size(), anchor, border)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	result := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	ParallelForEachPixel(image.Point{X: b.Dx(), Y: b.Dy()}, func(x, y int) {
		var sum float64
		for ky := 0; ky < kernel.Height; ky++ {
			for kx := 0; kx < kernel.Width; kx++ {
				sum += float64(padded.GrayAt(x+kx, y+ky).Y) * kernel.At(kx, ky)
			}
		}
		result.Pix[result.PixOffset(x, y)] = uint8(math.Min(math.Max(math.Round(sum), 0), 255))
	})
	return result, nil
}
