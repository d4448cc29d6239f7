package dsp

// PoolSize returns the output length of one axis after 2x2 stride-2 average
// pooling with ceil rounding.
func PoolSize(n int) int {
	return (n + 1) / 2
}

// AvgPool2 downsamples the h x w plane src by two on both axes into dst and
// returns the output dimensions. On odd edges the window is clipped to the
// plane and averages only the elements it covers.
func AvgPool2(dst, src []float64, h, w int) (oh, ow int) {
	oh, ow = PoolSize(h), PoolSize(w)
	for y := 0; y < oh; y++ {
		y0 := 2 * y
		y1 := min(y0+2, h)
		for x := 0; x < ow; x++ {
			x0 := 2 * x
			x1 := min(x0+2, w)
			var s float64
			for r := y0; r < y1; r++ {
				row := src[r*w : r*w+w]
				for c := x0; c < x1; c++ {
					s += row[c]
				}
			}
			dst[y*ow+x] = s / float64((y1-y0)*(x1-x0))
		}
	}
	return oh, ow
}

// AvgPool2Adjoint is the transpose of AvgPool2: every source element
// receives its window's gradient divided by the window's element count.
// grad has PoolSize(h) x PoolSize(w) elements, dst has h x w.
func AvgPool2Adjoint(dst, grad []float64, h, w int) {
	oh, ow := PoolSize(h), PoolSize(w)
	for y := 0; y < oh; y++ {
		y0 := 2 * y
		y1 := min(y0+2, h)
		for x := 0; x < ow; x++ {
			x0 := 2 * x
			x1 := min(x0+2, w)
			g := grad[y*ow+x] / float64((y1-y0)*(x1-x0))
			for r := y0; r < y1; r++ {
				row := dst[r*w : r*w+w]
				for c := x0; c < x1; c++ {
					row[c] = g
				}
			}
		}
	}
}
