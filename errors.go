package ssim

import (
	"errors"

	"github.com/deepteams/ssim/internal/dsp"
)

// Errors returned by the constructors and the evaluation methods.
var (
	ErrEvenWindow       = dsp.ErrEvenWindow
	ErrInvalidSigma     = dsp.ErrInvalidSigma
	ErrInvalidChannels  = errors.New("ssim: channel count must be positive")
	ErrInvalidDataRange = errors.New("ssim: data range must be finite and positive")
	ErrInvalidWeights   = errors.New("ssim: level weights must be finite, non-negative and not all zero")
	ErrInvalidLevels    = errors.New("ssim: level count out of range")
	ErrInvalidEps       = errors.New("ssim: eps must be finite and non-negative")
	ErrShapeMismatch    = errors.New("ssim: batch shapes differ")
	ErrChannelMismatch  = errors.New("ssim: batch channel count differs from the window")
	ErrTooSmall         = errors.New("ssim: image too small for the window")
	ErrGradientShape    = errors.New("ssim: gradient length differs from the batch size")
)
