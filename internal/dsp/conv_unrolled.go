package dsp

// convolveRowUnrolled computes four outputs per iteration in the interior
// where every tap is in bounds. Each output accumulates its taps in the same
// order as convolveRow, so results are bit-identical.
func convolveRowUnrolled(dst, src, taps []float64, pad int) {
	k := len(taps)
	n := len(src)
	m := len(dst)

	// Interior [start, end): lo == 0 and hi == k.
	start := min(max(pad, 0), m)
	end := min(max(n-k+pad+1, start), m)

	convolveRow(dst[:start], src, taps, pad)

	i := start
	for ; i+4 <= end; i += 4 {
		base := i - pad
		s := src[base : base+k+3]
		var s0, s1, s2, s3 float64
		for t, w := range taps {
			s0 += w * s[t]
			s1 += w * s[t+1]
			s2 += w * s[t+2]
			s3 += w * s[t+3]
		}
		dst[i] = s0
		dst[i+1] = s1
		dst[i+2] = s2
		dst[i+3] = s3
	}
	for ; i < m; i++ {
		lo, hi := tapRange(i, pad, k, n)
		var acc float64
		base := i - pad
		for t := lo; t < hi; t++ {
			acc += taps[t] * src[base+t]
		}
		dst[i] = acc
	}
}

func axpyRowUnrolled(dst, src []float64, a float64) {
	n := len(dst)
	src = src[:n]
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		d[0] += a * s[0]
		d[1] += a * s[1]
		d[2] += a * s[2]
		d[3] += a * s[3]
	}
	for ; i < n; i++ {
		dst[i] += a * src[i]
	}
}
