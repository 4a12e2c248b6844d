package keypoints

import (
	"image"

	"github.com/fogleman/gg"
)

// PlotKeypoints draws the keypoints on the image and saves the result as a
// PNG, for debugging extraction settings.
func PlotKeypoints(img *image.Gray, kps KeyPoints, outPath string) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)
	dc.SetRGBA(0, 0, 1, 0.75)
	for _, p := range kps {
		dc.DrawCircle(float64(p.X), float64(p.Y), 3)
		dc.Fill()
	}
	return dc.SavePNG(outPath)
}

// PlotMatchedLines draws the two images side by side with a line between
// every matched keypoint pair and saves the result as a PNG.
func PlotMatchedLines(im1, im2 *image.Gray, kps1, kps2 KeyPoints, outPath string) error {
	w := im1.Bounds().Dx() + im2.Bounds().Dx()
	h := im1.Bounds().Dy()
	if h2 := im2.Bounds().Dy(); h2 > h {
		h = h2
	}
	dc := gg.NewContext(w, h)
	dc.DrawImage(im1, 0, 0)
	dc.DrawImage(im2, im1.Bounds().Dx(), 0)
	dc.SetRGBA(0, 1, 0, 0.5)
	dc.SetLineWidth(1.25)
	shift := float64(im1.Bounds().Dx())
	n := len(kps1)
	if len(kps2) < n {
		n = len(kps2)
	}
	for i := 0; i < n; i++ {
		dc.DrawLine(float64(kps1[i].X), float64(kps1[i].Y), float64(kps2[i].X)+shift, float64(kps2[i].Y))
		dc.Stroke()
	}
	return dc.SavePNG(outPath)
}
