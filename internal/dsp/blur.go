package dsp

import "github.com/deepteams/ssim/internal/pool"

// Padding returns the zero padding applied on each side of both axes for a
// kernel of k taps.
func Padding(k int, enabled bool) int {
	if enabled {
		return k / 2
	}
	return 0
}

// BlurredSize returns the length of one axis of n samples after a k-tap pass
// with pad zeros on each side. The result is <= 0 when the axis is too short.
func BlurredSize(n, k, pad int) int {
	return n + 2*pad - k + 1
}

// BlurPlane applies the separable blur to the h x w plane src and writes the
// BlurredSize(h) x BlurredSize(w) result to dst. The first pass runs along
// rows, the second along columns, both with the same taps.
func BlurPlane(dst, src []float64, h, w int, taps []float64, pad int) {
	k := len(taps)
	oh := BlurredSize(h, k, pad)
	ow := BlurredSize(w, k, pad)
	if oh <= 0 || ow <= 0 {
		return
	}

	tmp := pool.Get(h * ow)
	defer pool.Put(tmp)
	for y := 0; y < h; y++ {
		ConvolveRow(tmp[y*ow:(y+1)*ow], src[y*w:(y+1)*w], taps, pad)
	}

	dst = dst[:oh*ow]
	clear(dst)
	for y := 0; y < oh; y++ {
		row := dst[y*ow : (y+1)*ow]
		lo, hi := tapRange(y, pad, k, h)
		for t := lo; t < hi; t++ {
			r := y + t - pad
			AxpyRow(row, tmp[r*ow:(r+1)*ow], taps[t])
		}
	}
}

// BlurPlaneAdjoint is the transpose of BlurPlane. grad holds an upstream
// gradient of BlurredSize(h) x BlurredSize(w) elements; the h x w gradient on
// the source plane is written to dst.
func BlurPlaneAdjoint(dst, grad []float64, h, w int, taps []float64, pad int) {
	k := len(taps)
	oh := BlurredSize(h, k, pad)
	ow := BlurredSize(w, k, pad)
	dst = dst[:h*w]
	if oh <= 0 || ow <= 0 {
		clear(dst)
		return
	}

	// Column pass: scatter each output row back onto the rows it read.
	gtmp := pool.GetZeroed(h * ow)
	defer pool.Put(gtmp)
	for y := 0; y < oh; y++ {
		g := grad[y*ow : (y+1)*ow]
		lo, hi := tapRange(y, pad, k, h)
		for t := lo; t < hi; t++ {
			r := y + t - pad
			AxpyRow(gtmp[r*ow:(r+1)*ow], g, taps[t])
		}
	}

	// Row pass: the transpose of a correlation is a correlation with the
	// reversed kernel and the complementary padding.
	rev := make([]float64, k)
	for i, v := range taps {
		rev[k-1-i] = v
	}
	for y := 0; y < h; y++ {
		ConvolveRow(dst[y*w:(y+1)*w], gtmp[y*ow:(y+1)*ow], rev, k-1-pad)
	}
}
