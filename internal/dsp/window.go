package dsp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEvenWindow is returned for window sizes that are even or not positive.
	ErrEvenWindow = errors.New("ssim: window size must be odd and positive")

	// ErrInvalidSigma is returned for a Gaussian sigma that is not a finite
	// positive number.
	ErrInvalidSigma = errors.New("ssim: sigma must be finite and positive")
)

// GaussianTaps returns the normalized 1-D Gaussian kernel of the given odd
// size, centered on size/2:
//
//	g[i] = exp(-(i-size/2)^2 / (2*sigma^2)) / sum
func GaussianTaps(size int, sigma float64) ([]float64, error) {
	if size <= 0 || size%2 == 0 {
		return nil, ErrEvenWindow
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, ErrInvalidSigma
	}
	taps := make([]float64, size)
	half := size / 2
	den := 2 * sigma * sigma
	for i := range taps {
		c := float64(i - half)
		taps[i] = math.Exp(-c * c / den)
	}
	floats.Scale(1/floats.Sum(taps), taps)
	return taps, nil
}
