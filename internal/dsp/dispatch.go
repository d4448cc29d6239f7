package dsp

import (
	"log/slog"
	"os"

	"golang.org/x/sys/cpu"
)

// Backend identifies the row-kernel implementation in use.
type Backend int

const (
	BackendScalar   Backend = iota // one output per loop iteration
	BackendUnrolled                // four outputs per loop iteration
)

func (b Backend) String() string {
	switch b {
	case BackendScalar:
		return "scalar"
	case BackendUnrolled:
		return "unrolled"
	default:
		return "unknown"
	}
}

// noUnrollEnv forces the scalar kernels when set to a non-empty value other
// than "0".
const noUnrollEnv = "SSIM_NOUNROLL"

var activeBackend Backend

// ActiveBackend reports which row kernels were selected.
func ActiveBackend() Backend {
	return activeBackend
}

// SetBackend overrides the detected backend and reinstalls the kernels.
// It is not safe to call while other goroutines are blurring.
func SetBackend(b Backend) {
	activeBackend = b
	Init()
}

func detectBackend() Backend {
	if v := os.Getenv(noUnrollEnv); v != "" && v != "0" {
		slog.Debug("dsp row kernels initialized", "backend", BackendScalar, "reason", noUnrollEnv)
		return BackendScalar
	}
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		slog.Debug("dsp row kernels initialized", "backend", BackendUnrolled,
			"avx2", cpu.X86.HasAVX2, "asimd", cpu.ARM64.HasASIMD)
		return BackendUnrolled
	}
	slog.Debug("dsp row kernels initialized", "backend", BackendScalar, "reason", "no wide SIMD support")
	return BackendScalar
}
