package dsp

// tapRange returns the half-open tap interval [lo, hi) whose source index
// i+k-pad falls inside [0, n).
func tapRange(i, pad, k, n int) (lo, hi int) {
	lo = pad - i
	if lo < 0 {
		lo = 0
	}
	hi = n - i + pad
	if hi > k {
		hi = k
	}
	return lo, hi
}

// convolveRow is the reference 1-D correlation kernel.
func convolveRow(dst, src, taps []float64, pad int) {
	k := len(taps)
	n := len(src)
	for i := range dst {
		lo, hi := tapRange(i, pad, k, n)
		var s float64
		base := i - pad
		for t := lo; t < hi; t++ {
			s += taps[t] * src[base+t]
		}
		dst[i] = s
	}
}

// axpyRow is the reference dst += a*src kernel.
func axpyRow(dst, src []float64, a float64) {
	src = src[:len(dst)]
	for i := range dst {
		dst[i] += a * src[i]
	}
}
