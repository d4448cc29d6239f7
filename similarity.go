package ssim

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/deepteams/ssim/internal/dsp"
	"github.com/deepteams/ssim/internal/pool"
)

// Stability constants, relative to the data range.
const (
	k1 = 0.01
	k2 = 0.03
)

// similarity evaluates single-scale SSIM and its reverse pass for a fixed
// window, data range and padding mode.
type similarity struct {
	taps   []float64
	pad    int
	c1, c2 float64
}

func newSimilarity(win *Window, dataRange float64, padding bool) similarity {
	return similarity{
		taps: win.taps,
		pad:  dsp.Padding(win.size, padding),
		c1:   (k1 * dataRange) * (k1 * dataRange),
		c2:   (k2 * dataRange) * (k2 * dataRange),
	}
}

// outSize returns the dimensions of the similarity maps of an h x w plane.
func (s *similarity) outSize(h, w int) (oh, ow int) {
	k := len(s.taps)
	return dsp.BlurredSize(h, k, s.pad), dsp.BlurredSize(w, k, s.pad)
}

func (s *similarity) checkSize(h, w int) error {
	if oh, ow := s.outSize(h, w); oh <= 0 || ow <= 0 {
		return fmt.Errorf("%w: %dx%d plane with a %d-tap window", ErrTooSmall, w, h, len(s.taps))
	}
	return nil
}

// planeStats holds the five blurred maps of one plane pair. mu1 and mu2 are
// the local means; sxx, syy and sxy are the blurred second moments before
// the means are subtracted.
type planeStats struct {
	mu1, mu2, sxx, syy, sxy []float64
	tmp                     []float64
}

func newPlaneStats(h, w, oh, ow int) *planeStats {
	n := oh * ow
	return &planeStats{
		mu1: pool.Get(n),
		mu2: pool.Get(n),
		sxx: pool.Get(n),
		syy: pool.Get(n),
		sxy: pool.Get(n),
		tmp: pool.Get(h * w),
	}
}

func (st *planeStats) release() {
	pool.Put(st.mu1)
	pool.Put(st.mu2)
	pool.Put(st.sxx)
	pool.Put(st.syy)
	pool.Put(st.sxy)
	pool.Put(st.tmp)
}

// compute fills st from the h x w planes x and y.
func (s *similarity) compute(st *planeStats, x, y []float64, h, w int) {
	dsp.BlurPlane(st.mu1, x, h, w, s.taps, s.pad)
	dsp.BlurPlane(st.mu2, y, h, w, s.taps, s.pad)

	p := st.tmp
	for i, v := range x {
		p[i] = v * v
	}
	dsp.BlurPlane(st.sxx, p, h, w, s.taps, s.pad)
	for i, v := range y {
		p[i] = v * v
	}
	dsp.BlurPlane(st.syy, p, h, w, s.taps, s.pad)
	for i, v := range x {
		p[i] = v * y[i]
	}
	dsp.BlurPlane(st.sxy, p, h, w, s.taps, s.pad)
}

// planeSums returns the sums of the ssim and cs maps of one plane pair.
func (s *similarity) planeSums(st *planeStats, x, y []float64, h, w int) (ssimSum, csSum float64) {
	s.compute(st, x, y, h, w)
	oh, ow := s.outSize(h, w)
	n := oh * ow
	c1, c2 := s.c1, s.c2
	for i := 0; i < n; i++ {
		a, b := st.mu1[i], st.mu2[i]
		s1 := st.sxx[i] - a*a
		s2 := st.syy[i] - b*b
		s12 := st.sxy[i] - a*b

		cs := (2*s12 + c2) / (s1 + s2 + c2)
		if cs < 0 {
			cs = 0
		}
		l := (2*a*b + c1) / (a*a + b*b + c1)
		ssimSum += l * cs
		csSum += cs
	}
	return ssimSum, csSum
}

// planeBackward writes the gradients of gs*sum(ssim map) + gc*sum(cs map)
// with respect to the planes x and y into dx and dy.
func (s *similarity) planeBackward(st *planeStats, dx, dy, x, y []float64, h, w int, gs, gc float64) {
	s.compute(st, x, y, h, w)
	oh, ow := s.outSize(h, w)
	n := oh * ow
	c1, c2 := s.c1, s.c2

	// Per-pixel reverse pass. The statistic maps are overwritten with their
	// gradients: mu1 <- dL/dmu1, sxx <- dL/dsxx and so on.
	for i := 0; i < n; i++ {
		a, b := st.mu1[i], st.mu2[i]
		s1 := st.sxx[i] - a*a
		s2 := st.syy[i] - b*b
		s12 := st.sxy[i] - a*b

		num := 2*s12 + c2
		den := s1 + s2 + c2
		csRaw := num / den
		cs := max(csRaw, 0)

		p := 2*a*b + c1
		q := a*a + b*b + c1
		l := p / q

		dl := gs * cs
		dcs := gs*l + gc
		if csRaw <= 0 {
			dcs = 0
		}
		dnum := dcs / den
		dden := -dcs * csRaw / den
		ds12 := 2 * dnum
		ds1, ds2 := dden, dden
		dp := dl / q
		dq := -dl * l / q

		st.mu1[i] = 2*b*dp + 2*a*dq - 2*a*ds1 - b*ds12
		st.mu2[i] = 2*a*dp + 2*b*dq - 2*b*ds2 - a*ds12
		st.sxx[i] = ds1
		st.syy[i] = ds2
		st.sxy[i] = ds12
	}

	dsp.BlurPlaneAdjoint(dx, st.mu1, h, w, s.taps, s.pad)
	dsp.BlurPlaneAdjoint(dy, st.mu2, h, w, s.taps, s.pad)

	g := st.tmp
	dsp.BlurPlaneAdjoint(g, st.sxx, h, w, s.taps, s.pad)
	for i, v := range x {
		dx[i] += 2 * v * g[i]
	}
	dsp.BlurPlaneAdjoint(g, st.syy, h, w, s.taps, s.pad)
	for i, v := range y {
		dy[i] += 2 * v * g[i]
	}
	dsp.BlurPlaneAdjoint(g, st.sxy, h, w, s.taps, s.pad)
	for i, v := range g {
		dx[i] += y[i] * v
		dy[i] += x[i] * v
	}
}

// forward returns the mean ssim and cs of every sample. The pair must
// already be validated.
func (s *similarity) forward(x, y *Batch, workers int) (ssim, cs []float64, err error) {
	if err := s.checkSize(x.H, x.W); err != nil {
		return nil, nil, err
	}
	oh, ow := s.outSize(x.H, x.W)
	m := float64(x.C * oh * ow)

	ssim = make([]float64, x.N)
	cs = make([]float64, x.N)
	err = forEachSample(x.N, workers, func(n int) error {
		st := newPlaneStats(x.H, x.W, oh, ow)
		defer st.release()
		var ss, cc float64
		for c := 0; c < x.C; c++ {
			a, b := s.planeSums(st, x.Plane(n, c), y.Plane(n, c), x.H, x.W)
			ss += a
			cc += b
		}
		ssim[n] = ss / m
		cs[n] = cc / m
		return nil
	})
	return ssim, cs, err
}

// backward returns the gradients on x and y of sum_n gs[n]*ssim[n] +
// gc[n]*cs[n]. Either upstream gradient may be nil.
func (s *similarity) backward(x, y *Batch, gs, gc []float64, workers int) (gx, gy *Batch, err error) {
	if err := s.checkSize(x.H, x.W); err != nil {
		return nil, nil, err
	}
	oh, ow := s.outSize(x.H, x.W)
	m := float64(x.C * oh * ow)

	gx = NewBatch(x.N, x.C, x.H, x.W)
	gy = NewBatch(x.N, x.C, x.H, x.W)
	err = forEachSample(x.N, workers, func(n int) error {
		var a, b float64
		if gs != nil {
			a = gs[n] / m
		}
		if gc != nil {
			b = gc[n] / m
		}
		if a == 0 && b == 0 {
			return nil
		}
		st := newPlaneStats(x.H, x.W, oh, ow)
		defer st.release()
		for c := 0; c < x.C; c++ {
			s.planeBackward(st, gx.Plane(n, c), gy.Plane(n, c), x.Plane(n, c), y.Plane(n, c), x.H, x.W, a, b)
		}
		return nil
	})
	return gx, gy, err
}

// forEachSample runs fn for every sample index on at most workers
// goroutines.
func forEachSample(n, workers int, fn func(n int) error) error {
	if workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}
