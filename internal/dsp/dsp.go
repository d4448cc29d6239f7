// Package dsp holds the numeric kernels behind the similarity metrics:
// Gaussian window taps, the separable blur and its adjoint, and 2x2 average
// pooling with ceil rounding and its adjoint.
//
// All kernels work on single row-major float64 planes. Batching, channels and
// parallelism are the caller's concern.
package dsp

// Row kernel function variables for dispatch.
// These are set by Init() to the implementation chosen for the running CPU.
var (
	// ConvolveRow writes len(dst) outputs of the 1-D cross-correlation of
	// src with taps, src being zero-extended by pad elements on both sides:
	//
	//	dst[i] = sum_k taps[k] * src[i+k-pad]
	ConvolveRow func(dst, src, taps []float64, pad int)

	// AxpyRow computes dst[i] += a * src[i] for i < len(dst).
	AxpyRow func(dst, src []float64, a float64)
)

// Init selects the row kernels. It runs from the package init and may be
// called again after SetBackend.
func Init() {
	switch activeBackend {
	case BackendUnrolled:
		ConvolveRow = convolveRowUnrolled
		AxpyRow = axpyRowUnrolled
	default:
		ConvolveRow = convolveRow
		AxpyRow = axpyRow
	}
}

func init() {
	activeBackend = detectBackend()
	Init()
}
