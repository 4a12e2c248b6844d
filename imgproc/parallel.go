package imgproc

import (
	"image"
	"runtime"
	"sync"

	goutils "go.viam.com/utils"
)

// ParallelForEachPixel visits every pixel of an image of the given size,
// splitting the columns across the available processor threads. The callback
// must only touch state owned by its own (x, y) pixel.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	procs := runtime.GOMAXPROCS(0)
	if procs > size.X {
		procs = size.X
	}
	if procs <= 1 {
		for x := 0; x < size.X; x++ {
			for y := 0; y < size.Y; y++ {
				f(x, y)
			}
		}
		return
	}
	var wg sync.WaitGroup
	step := size.X / procs
	for i := 0; i < procs; i++ {
		startX := i * step
		endX := startX + step
		if i == procs-1 {
			endX = size.X
		}
		wg.Add(1)
		goutils.PanicCapturingGo(func() {
			defer wg.Done()
			for x := startX; x < endX; x++ {
				for y := 0; y < size.Y; y++ {
					f(x, y)
				}
			}
		})
	}
	wg.Wait()
}
