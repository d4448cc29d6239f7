package ssim

import (
	"fmt"
	"math"
	"runtime"
)

// Options configures the SSIM and MultiScale metrics. Zero-valued fields
// select the defaults listed on each field.
type Options struct {
	// WindowSize is the Gaussian window length. It must be odd (default 11).
	WindowSize int

	// Sigma is the standard deviation of the Gaussian window (default 1.5).
	Sigma float64

	// DataRange is the span of pixel values, typically 1 for normalized
	// images or 255 for 8-bit images (default 255). It scales the
	// stability constants C1 = (0.01*DataRange)^2 and C2 = (0.03*DataRange)^2.
	DataRange float64

	// Channels is the number of image channels the window is replicated
	// for (default 3). Compared batches must have exactly this many.
	Channels int

	// Padding zero-pads each blur pass by WindowSize/2 so the similarity
	// maps keep the input size. When false the maps shrink by
	// WindowSize-1 along each axis.
	Padding bool

	// Weights are the per-level exponents of the multi-scale product,
	// finest level first (default DefaultWeights()). Ignored by SSIM.
	Weights []float64

	// Levels truncates Weights to its first Levels entries and
	// renormalizes them to sum to 1. Zero uses Weights as given.
	// Ignored by SSIM.
	Levels int

	// Eps is the floor applied to every per-level value before the
	// fractional powers of the multi-scale product (default 1e-8).
	// Ignored by SSIM.
	Eps float64

	// Workers bounds the number of samples evaluated concurrently
	// (default runtime.GOMAXPROCS(0)). Results do not depend on it.
	Workers int
}

// DefaultOptions returns the default metric configuration: an 11-tap window
// with sigma 1.5 over 3-channel 8-bit images, valid (unpadded) blurring and
// the five standard multi-scale weights.
func DefaultOptions() *Options {
	return &Options{
		WindowSize: 11,
		Sigma:      1.5,
		DataRange:  255,
		Channels:   3,
		Weights:    DefaultWeights(),
		Eps:        1e-8,
	}
}

// config is the resolved, validated form of Options.
type config struct {
	window    *Window
	dataRange float64
	padding   bool
	weights   []float64
	eps       float64
	workers   int
}

func validFloat(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// resolve applies defaults and validates the fields shared by both metrics.
func (o *Options) resolve() (*config, error) {
	if o == nil {
		o = DefaultOptions()
	}
	size := o.WindowSize
	if size == 0 {
		size = 11
	}
	sigma := o.Sigma
	if sigma == 0 {
		sigma = 1.5
	}
	channels := o.Channels
	if channels == 0 {
		channels = 3
	}
	dataRange := o.DataRange
	if dataRange == 0 {
		dataRange = 255
	}
	if dataRange < 0 || !validFloat(dataRange) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataRange, o.DataRange)
	}
	if o.Workers < 0 {
		return nil, fmt.Errorf("ssim: invalid Workers %d (must be >= 0)", o.Workers)
	}
	workers := o.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	win, err := NewWindow(size, sigma, channels)
	if err != nil {
		return nil, err
	}
	return &config{
		window:    win,
		dataRange: dataRange,
		padding:   o.Padding,
		workers:   workers,
	}, nil
}

// resolveMultiScale extends resolve with the level weights and eps.
func (o *Options) resolveMultiScale() (*config, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}
	if o == nil {
		o = DefaultOptions()
	}

	eps := o.Eps
	if eps == 0 {
		eps = 1e-8
	}
	if eps < 0 || !validFloat(eps) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEps, o.Eps)
	}
	cfg.eps = eps

	weights := o.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	weights, err = levelWeights(weights, o.Levels)
	if err != nil {
		return nil, err
	}
	cfg.weights = weights
	return cfg, nil
}

// SSIM is the single-scale structural similarity metric. It holds an
// immutable window and is safe for concurrent use.
type SSIM struct {
	cfg *config
	sim similarity
}

// New returns an SSIM metric configured by opts. A nil opts selects
// DefaultOptions.
func New(opts *Options) (*SSIM, error) {
	cfg, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	return &SSIM{
		cfg: cfg,
		sim: newSimilarity(cfg.window, cfg.dataRange, cfg.padding),
	}, nil
}

// Window returns the Gaussian window.
func (s *SSIM) Window() *Window { return s.cfg.window }

// DataRange returns the resolved data range.
func (s *SSIM) DataRange() float64 { return s.cfg.dataRange }

// Compute returns the SSIM score of every sample pair of x and y.
func (s *SSIM) Compute(x, y *Batch) ([]float64, error) {
	r, err := s.Evaluate(x, y)
	if err != nil {
		return nil, err
	}
	return r.SSIM, nil
}

// Evaluate computes the SSIM and contrast-structure scores of every sample
// pair and returns a Result that can run the reverse pass. x and y are
// retained by the Result and must not be modified until it is discarded.
func (s *SSIM) Evaluate(x, y *Batch) (*Result, error) {
	if err := checkPair(x, y, s.cfg.window.channels); err != nil {
		return nil, err
	}
	ss, cs, err := s.sim.forward(x, y, s.cfg.workers)
	if err != nil {
		return nil, err
	}
	return &Result{SSIM: ss, CS: cs, x: x, y: y, metric: s}, nil
}

// Forward implements Metric.
func (s *SSIM) Forward(x, y *Batch) (Scored, error) {
	r, err := s.Evaluate(x, y)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Result holds the per-sample outputs of SSIM.Evaluate.
type Result struct {
	// SSIM is the mean of the similarity map of each sample.
	SSIM []float64
	// CS is the mean of the contrast-structure map of each sample.
	CS []float64

	x, y   *Batch
	metric *SSIM
}

// Scores returns the per-sample SSIM values.
func (r *Result) Scores() []float64 { return r.SSIM }

// Backward returns the gradients of sum_n grad[n]*SSIM[n] with respect to
// the two input batches.
func (r *Result) Backward(grad []float64) (gx, gy *Batch, err error) {
	return r.BackwardWithCS(grad, nil)
}

// BackwardWithCS returns the gradients of
// sum_n gradSSIM[n]*SSIM[n] + gradCS[n]*CS[n] with respect to the two
// input batches. A nil gradient counts as zero.
func (r *Result) BackwardWithCS(gradSSIM, gradCS []float64) (gx, gy *Batch, err error) {
	if err := checkGrad(gradSSIM, r.x.N); err != nil {
		return nil, nil, err
	}
	if err := checkGrad(gradCS, r.x.N); err != nil {
		return nil, nil, err
	}
	return r.metric.sim.backward(r.x, r.y, gradSSIM, gradCS, r.metric.cfg.workers)
}
