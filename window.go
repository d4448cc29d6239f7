package ssim

import (
	"fmt"

	"github.com/deepteams/ssim/internal/dsp"
)

// Window is a normalized 1-D Gaussian kernel replicated per channel. It is
// used along both image axes and never mixes channels. A Window is immutable
// and safe for concurrent use.
type Window struct {
	size     int
	sigma    float64
	channels int
	taps     []float64
}

// NewWindow builds the Gaussian window of the given odd size and sigma for
// images with the given number of channels.
func NewWindow(size int, sigma float64, channels int) (*Window, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	taps, err := dsp.GaussianTaps(size, sigma)
	if err != nil {
		return nil, fmt.Errorf("%w: size %d, sigma %v", err, size, sigma)
	}
	return &Window{size: size, sigma: sigma, channels: channels, taps: taps}, nil
}

// Size returns the number of taps.
func (w *Window) Size() int { return w.size }

// Sigma returns the Gaussian standard deviation.
func (w *Window) Sigma() float64 { return w.sigma }

// Channels returns the channel count the window was built for.
func (w *Window) Channels() int { return w.channels }

// Taps returns a copy of the 1-D kernel.
func (w *Window) Taps() []float64 {
	return append([]float64(nil), w.taps...)
}

// Shape returns the conceptual grouped-convolution shape
// (channels, 1, 1, size).
func (w *Window) Shape() [4]int {
	return [4]int{w.channels, 1, 1, w.size}
}

// Replicated returns the kernel repeated once per channel, channels*size
// values in channel-major order.
func (w *Window) Replicated() []float64 {
	out := make([]float64, 0, w.channels*w.size)
	for range w.channels {
		out = append(out, w.taps...)
	}
	return out
}
