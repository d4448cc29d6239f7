// Package ssim computes the structural similarity index (SSIM) and its
// multi-scale variant (MS-SSIM) between batches of images, together with
// their exact gradients so the scores can drive gradient-based optimization.
//
// Images are held in a Batch, a dense (N, C, H, W) float64 tensor with
// values in [0, DataRange]. Local statistics come from a separable Gaussian
// blur applied per channel; the single-scale score is the mean of
//
//	ssim = (2*mu1*mu2 + C1) / (mu1^2 + mu2^2 + C1) * cs
//	cs   = max(0, (2*sigma12 + C2) / (sigma1^2 + sigma2^2 + C2))
//
// over channels and pixels. MS-SSIM repeats the computation over a pyramid
// of 2x average-pooled copies and combines the per-level values as a
// weighted geometric product. Every factor is floored at a small eps before
// exponentiation so gradients stay finite even for anti-correlated inputs.
//
// Basic usage:
//
//	m, err := ssim.New(&ssim.Options{DataRange: 1})
//	scores, err := m.Compute(x, y)
//
// Gradients:
//
//	r, err := m.Evaluate(x, y)
//	gx, gy, err := r.Backward(upstream)
//
// SSIM and MultiScale values are immutable after construction and safe for
// concurrent use. Samples of a batch are evaluated in parallel.
package ssim
