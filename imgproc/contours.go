package imgproc

import (
	"image"
)

// Contour is a closed boundary of a connected foreground component, listed
// clockwise in pixel coordinates relative to the mask origin. Thin sections
// may appear twice, once per side, as the trace walks out and back.
type Contour []image.Point

// mooreRing lists the 8 neighbors clockwise starting from west, for an image
// with y growing downward.
var mooreRing = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// FindExternalContours traces the outer boundary of every 8-connected
// foreground component of a binary mask, in row-major scan order of the
// components' topmost-leftmost pixels. Holes are not traced.
func FindExternalContours(mask *image.Gray) []Contour {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	fg := func(p image.Point) bool {
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= h {
			return false
		}
		return mask.Pix[mask.PixOffset(b.Min.X+p.X, b.Min.Y+p.Y)] != 0
	}

	labels := make([]bool, w*h)
	var contours []Contour
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := image.Point{X: x, Y: y}
			if !fg(p) || labels[y*w+x] {
				continue
			}
			// p is the topmost-leftmost pixel of an unvisited component, so
			// its west neighbor is guaranteed background.
			contours = append(contours, traceBoundary(fg, p, 4*w*h+8))
			labelComponent(fg, labels, w, p)
		}
	}
	return contours
}

// traceBoundary walks the component boundary clockwise from start using
// Moore neighbor tracing. The walk stops when it is about to repeat its
// first move out of the start pixel. maxSteps bounds the walk; a boundary
// orbit visits each pixel at most once per side.
func traceBoundary(fg func(image.Point) bool, start image.Point, maxSteps int) Contour {
	contour := Contour{start}
	cur := start
	backtrack := start.Add(image.Point{X: -1})
	var firstNext image.Point

	for step := 0; step < maxSteps; step++ {
		dir := ringIndex(backtrack.Sub(cur))
		var next, nextBacktrack image.Point
		found := false
		for j := 1; j <= 8; j++ {
			n := cur.Add(mooreRing[(dir+j)%8])
			if fg(n) {
				next = n
				nextBacktrack = cur.Add(mooreRing[(dir+j-1)%8])
				found = true
				break
			}
		}
		if !found {
			// Isolated single pixel.
			return contour
		}
		if step == 0 {
			firstNext = next
		} else if cur == start && next == firstNext {
			// Full orbit complete; drop the duplicated start.
			return contour[:len(contour)-1]
		}
		contour = append(contour, next)
		cur = next
		backtrack = nextBacktrack
	}
	return contour
}

func ringIndex(rel image.Point) int {
	for i, r := range mooreRing {
		if r == rel {
			return i
		}
	}
	return 0
}

// labelComponent marks every pixel 8-connected to start as visited.
func labelComponent(fg func(image.Point) bool, labels []bool, width int, start image.Point) {
	queue := []image.Point{start}
	labels[start.Y*width+start.X] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range mooreRing {
			n := p.Add(d)
			if !fg(n) || labels[n.Y*width+n.X] {
				continue
			}
			labels[n.Y*width+n.X] = true
			queue = append(queue, n)
		}
	}
}
