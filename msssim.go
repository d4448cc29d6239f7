package ssim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/deepteams/ssim/internal/dsp"
	"github.com/deepteams/ssim/internal/pool"
)

var defaultWeights = [...]float64{0.0448, 0.2856, 0.3001, 0.2363, 0.1333}

// DefaultWeights returns a copy of the standard five-level MS-SSIM weights,
// finest level first.
func DefaultWeights() []float64 {
	return append([]float64(nil), defaultWeights[:]...)
}

// levelWeights validates w and, when levels > 0, truncates it to levels
// entries renormalized to sum to 1. The result never aliases w.
func levelWeights(w []float64, levels int) ([]float64, error) {
	if levels < 0 || levels > len(w) {
		return nil, fmt.Errorf("%w: %d (have %d weights)", ErrInvalidLevels, levels, len(w))
	}
	if len(w) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidWeights)
	}
	for _, v := range w {
		if v < 0 || !validFloat(v) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWeights, w)
		}
	}
	out := append([]float64(nil), w...)
	if levels > 0 {
		out = out[:levels]
		sum := floats.Sum(out)
		if sum <= 0 {
			return nil, fmt.Errorf("%w: first %d weights sum to %v", ErrInvalidWeights, levels, sum)
		}
		floats.Scale(1/sum, out)
	} else if floats.Sum(out) <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWeights, w)
	}
	return out, nil
}

// MultiScale is the multi-scale structural similarity metric. It compares
// the inputs over a pyramid of 2x downsamples, using the contrast-structure
// score at every level but the coarsest and the full SSIM score there, and
// combines them as
//
//	ms = cs_0^w_0 * cs_1^w_1 * ... * ssim_{L-1}^w_{L-1}
//
// with every factor floored at Eps. A MultiScale is safe for concurrent use.
type MultiScale struct {
	cfg *config
	sim similarity
}

// NewMultiScale returns an MS-SSIM metric configured by opts. A nil opts
// selects DefaultOptions.
func NewMultiScale(opts *Options) (*MultiScale, error) {
	cfg, err := opts.resolveMultiScale()
	if err != nil {
		return nil, err
	}
	return &MultiScale{
		cfg: cfg,
		sim: newSimilarity(cfg.window, cfg.dataRange, cfg.padding),
	}, nil
}

// Window returns the Gaussian window.
func (m *MultiScale) Window() *Window { return m.cfg.window }

// Weights returns a copy of the resolved level weights.
func (m *MultiScale) Weights() []float64 {
	return append([]float64(nil), m.cfg.weights...)
}

// Levels returns the pyramid depth.
func (m *MultiScale) Levels() int { return len(m.cfg.weights) }

// Eps returns the floor applied to the per-level values.
func (m *MultiScale) Eps() float64 { return m.cfg.eps }

// Compute returns the MS-SSIM score of every sample pair of x and y.
func (m *MultiScale) Compute(x, y *Batch) ([]float64, error) {
	r, err := m.Evaluate(x, y)
	if err != nil {
		return nil, err
	}
	return r.MSSSIM, nil
}

// Evaluate computes the MS-SSIM score of every sample pair and returns a
// MultiScaleResult that can run the reverse pass. It fails with ErrTooSmall
// when a pyramid level is smaller than the window in valid mode. x and y
// are retained by the result and must not be modified until it is
// discarded.
func (m *MultiScale) Evaluate(x, y *Batch) (*MultiScaleResult, error) {
	if err := checkPair(x, y, m.cfg.window.channels); err != nil {
		return nil, err
	}
	levels := len(m.cfg.weights)

	// Check the whole pyramid up front so no work is wasted.
	h, w := x.H, x.W
	for i := 0; i < levels; i++ {
		if err := m.sim.checkSize(h, w); err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		h, w = dsp.PoolSize(h), dsp.PoolSize(w)
	}

	r := &MultiScaleResult{
		MSSSIM: make([]float64, x.N),
		Levels: make([][]float64, levels),
		raw:    make([][]float64, levels),
		xs:     make([]*Batch, levels),
		ys:     make([]*Batch, levels),
		metric: m,
	}
	r.xs[0], r.ys[0] = x, y
	for i := 0; i < levels; i++ {
		ss, cs, err := m.sim.forward(r.xs[i], r.ys[i], m.cfg.workers)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		if i < levels-1 {
			r.raw[i] = cs
			r.xs[i+1] = downsample(r.xs[i], m.cfg.workers)
			r.ys[i+1] = downsample(r.ys[i], m.cfg.workers)
		} else {
			r.raw[i] = ss
		}
		vals := make([]float64, x.N)
		for n, v := range r.raw[i] {
			vals[n] = max(v, m.cfg.eps)
		}
		r.Levels[i] = vals
	}

	for n := range r.MSSSIM {
		p := 1.0
		for i, wt := range m.cfg.weights {
			p *= math.Pow(r.Levels[i][n], wt)
		}
		r.MSSSIM[n] = p
	}
	return r, nil
}

// Forward implements Metric.
func (m *MultiScale) Forward(x, y *Batch) (Scored, error) {
	r, err := m.Evaluate(x, y)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// MultiScaleResult holds the per-sample outputs of MultiScale.Evaluate.
type MultiScaleResult struct {
	// MSSSIM is the multi-scale score of each sample.
	MSSSIM []float64
	// Levels[i][n] is the floored value combined at level i for sample n:
	// the contrast-structure score for every level but the last, and the
	// SSIM score for the last.
	Levels [][]float64

	raw    [][]float64
	xs, ys []*Batch
	metric *MultiScale
}

// Scores returns the per-sample MS-SSIM values.
func (r *MultiScaleResult) Scores() []float64 { return r.MSSSIM }

// Backward returns the gradients of sum_n grad[n]*MSSSIM[n] with respect to
// the two input batches. Levels whose raw value fell below Eps pass no
// gradient.
func (r *MultiScaleResult) Backward(grad []float64) (gx, gy *Batch, err error) {
	x := r.xs[0]
	if err := checkGrad(grad, x.N); err != nil {
		return nil, nil, err
	}
	if grad == nil {
		return NewBatch(x.N, x.C, x.H, x.W), NewBatch(x.N, x.C, x.H, x.W), nil
	}
	m := r.metric
	levels := len(m.cfg.weights)

	// Walk the pyramid from the coarsest level, carrying the gradient of
	// the finer level's input through the pooling adjoint.
	var carryX, carryY *Batch
	for i := levels - 1; i >= 0; i-- {
		g := make([]float64, x.N)
		for n := range g {
			if r.raw[i][n] >= m.cfg.eps {
				g[n] = grad[n] * r.MSSSIM[n] * m.cfg.weights[i] / r.Levels[i][n]
			}
		}
		var gs, gc []float64
		if i == levels-1 {
			gs = g
		} else {
			gc = g
		}
		lx, ly, err := m.sim.backward(r.xs[i], r.ys[i], gs, gc, m.cfg.workers)
		if err != nil {
			return nil, nil, fmt.Errorf("level %d: %w", i, err)
		}
		if carryX != nil {
			upsampleGrad(lx, carryX, m.cfg.workers)
			upsampleGrad(ly, carryY, m.cfg.workers)
		}
		carryX, carryY = lx, ly
	}
	return carryX, carryY, nil
}

// downsample applies 2x2 ceil-mode average pooling to every plane of b.
func downsample(b *Batch, workers int) *Batch {
	out := NewBatch(b.N, b.C, dsp.PoolSize(b.H), dsp.PoolSize(b.W))
	_ = forEachSample(b.N, workers, func(n int) error {
		for c := 0; c < b.C; c++ {
			dsp.AvgPool2(out.Plane(n, c), b.Plane(n, c), b.H, b.W)
		}
		return nil
	})
	return out
}

// upsampleGrad adds the pooling adjoint of grad, a gradient on the
// downsampled batch, into dst.
func upsampleGrad(dst, grad *Batch, workers int) {
	_ = forEachSample(dst.N, workers, func(n int) error {
		tmp := pool.Get(dst.H * dst.W)
		defer pool.Put(tmp)
		for c := 0; c < dst.C; c++ {
			dsp.AvgPool2Adjoint(tmp, grad.Plane(n, c), dst.H, dst.W)
			floats.Add(dst.Plane(n, c), tmp)
		}
		return nil
	})
}
