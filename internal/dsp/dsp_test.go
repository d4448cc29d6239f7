package dsp

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func randPlane(rng *rand.Rand, n int) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = rng.Float64()
	}
	return p
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestGaussianTaps_SumsToOne(t *testing.T) {
	for _, size := range []int{1, 3, 5, 7, 11, 21} {
		for _, sigma := range []float64{0.3, 1.0, 1.5, 4.0} {
			taps, err := GaussianTaps(size, sigma)
			if err != nil {
				t.Fatalf("GaussianTaps(%d, %v): %v", size, sigma, err)
			}
			var s float64
			for _, v := range taps {
				s += v
			}
			if math.Abs(s-1) > 1e-12 {
				t.Errorf("GaussianTaps(%d, %v): sum = %v, want 1", size, sigma, s)
			}
			for i := range taps {
				if taps[i] != taps[size-1-i] {
					t.Errorf("GaussianTaps(%d, %v): not symmetric at %d", size, sigma, i)
				}
			}
			if size > 1 && taps[size/2] <= taps[0] {
				t.Errorf("GaussianTaps(%d, %v): center %v <= edge %v", size, sigma, taps[size/2], taps[0])
			}
		}
	}
}

func TestGaussianTaps_Invalid(t *testing.T) {
	tests := []struct {
		size  int
		sigma float64
		want  error
	}{
		{0, 1.5, ErrEvenWindow},
		{-3, 1.5, ErrEvenWindow},
		{10, 1.5, ErrEvenWindow},
		{11, 0, ErrInvalidSigma},
		{11, -1, ErrInvalidSigma},
		{11, math.NaN(), ErrInvalidSigma},
		{11, math.Inf(1), ErrInvalidSigma},
	}
	for _, tt := range tests {
		if _, err := GaussianTaps(tt.size, tt.sigma); !errors.Is(err, tt.want) {
			t.Errorf("GaussianTaps(%d, %v): err = %v, want %v", tt.size, tt.sigma, err, tt.want)
		}
	}
}

func TestConvolveRow_Backends(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	taps, _ := GaussianTaps(11, 1.5)
	for _, n := range []int{1, 5, 11, 12, 13, 17, 40, 257} {
		for _, pad := range []int{0, 5, 10} {
			m := n + 2*pad - len(taps) + 1
			if m <= 0 {
				continue
			}
			src := randPlane(rng, n)
			want := make([]float64, m)
			got := make([]float64, m)
			convolveRow(want, src, taps, pad)
			convolveRowUnrolled(got, src, taps, pad)
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("n=%d pad=%d: out[%d] = %v, scalar %v", n, pad, i, got[i], want[i])
				}
			}
		}
	}
}

func TestAxpyRow_Backends(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, n := range []int{0, 1, 3, 4, 7, 64, 65} {
		src := randPlane(rng, n)
		a := randPlane(rng, n)
		b := append([]float64(nil), a...)
		axpyRow(a, src, 0.37)
		axpyRowUnrolled(b, src, 0.37)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("n=%d: [%d] = %v, scalar %v", n, i, b[i], a[i])
			}
		}
	}
}

func TestConvolveRow_Reference(t *testing.T) {
	// Padded correlation with a 3-tap kernel, checked by hand.
	src := []float64{1, 2, 3, 4}
	taps := []float64{1, 10, 100}
	dst := make([]float64, 4)
	ConvolveRow(dst, src, taps, 1)
	want := []float64{210, 321, 432, 43}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestBlurPlane_Size(t *testing.T) {
	tests := []struct {
		h, w, k int
		padded  bool
		oh, ow  int
	}{
		{32, 20, 11, false, 22, 10},
		{32, 20, 11, true, 32, 20},
		{11, 11, 11, false, 1, 1},
		{7, 9, 3, true, 7, 9},
	}
	for _, tt := range tests {
		pad := Padding(tt.k, tt.padded)
		if oh, ow := BlurredSize(tt.h, tt.k, pad), BlurredSize(tt.w, tt.k, pad); oh != tt.oh || ow != tt.ow {
			t.Errorf("BlurredSize(%dx%d, k=%d, padded=%v) = %dx%d, want %dx%d",
				tt.h, tt.w, tt.k, tt.padded, oh, ow, tt.oh, tt.ow)
		}
	}
	if BlurredSize(8, 11, 0) > 0 {
		t.Error("BlurredSize(8, 11, 0) should be empty")
	}
}

func TestBlurPlane_Constant(t *testing.T) {
	// A normalized kernel leaves constants unchanged in valid mode.
	taps, _ := GaussianTaps(7, 1.2)
	h, w := 12, 15
	src := make([]float64, h*w)
	for i := range src {
		src[i] = 0.75
	}
	oh, ow := BlurredSize(h, 7, 0), BlurredSize(w, 7, 0)
	dst := make([]float64, oh*ow)
	BlurPlane(dst, src, h, w, taps, 0)
	for i, v := range dst {
		if math.Abs(v-0.75) > 1e-12 {
			t.Fatalf("dst[%d] = %v, want 0.75", i, v)
		}
	}
}

func TestBlurPlane_Impulse(t *testing.T) {
	// The padded blur of an impulse is the outer product of the taps.
	taps, _ := GaussianTaps(5, 1.0)
	h, w := 9, 9
	src := make([]float64, h*w)
	src[4*w+4] = 1
	dst := make([]float64, h*w)
	BlurPlane(dst, src, h, w, taps, 2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := 0.0
			if dy, dx := y-2, x-2; dy >= 0 && dy < 5 && dx >= 0 && dx < 5 {
				want = taps[dy] * taps[dx]
			}
			if math.Abs(dst[y*w+x]-want) > 1e-15 {
				t.Fatalf("dst[%d,%d] = %v, want %v", y, x, dst[y*w+x], want)
			}
		}
	}
}

func TestBlurPlaneAdjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	taps, _ := GaussianTaps(11, 1.5)
	for _, padded := range []bool{false, true} {
		for _, dims := range [][2]int{{11, 11}, {16, 23}, {31, 12}} {
			h, w := dims[0], dims[1]
			pad := Padding(len(taps), padded)
			oh, ow := BlurredSize(h, len(taps), pad), BlurredSize(w, len(taps), pad)
			x := randPlane(rng, h*w)
			g := randPlane(rng, oh*ow)

			gx := make([]float64, oh*ow)
			BlurPlane(gx, x, h, w, taps, pad)
			gty := make([]float64, h*w)
			BlurPlaneAdjoint(gty, g, h, w, taps, pad)

			lhs, rhs := dot(gx, g), dot(x, gty)
			if math.Abs(lhs-rhs) > 1e-10*math.Max(1, math.Abs(lhs)) {
				t.Errorf("%dx%d padded=%v: <Gx,g> = %v, <x,G'g> = %v", h, w, padded, lhs, rhs)
			}
		}
	}
}

func TestAvgPool2(t *testing.T) {
	src := []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	dst := make([]float64, 4)
	oh, ow := AvgPool2(dst, src, 3, 3)
	if oh != 2 || ow != 2 {
		t.Fatalf("AvgPool2 dims = %dx%d, want 2x2", oh, ow)
	}
	want := []float64{3, 4.5, 7.5, 9}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestAvgPool2Adjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for _, dims := range [][2]int{{1, 1}, {4, 4}, {5, 7}, {9, 2}} {
		h, w := dims[0], dims[1]
		oh, ow := PoolSize(h), PoolSize(w)
		x := randPlane(rng, h*w)
		g := randPlane(rng, oh*ow)
		px := make([]float64, oh*ow)
		AvgPool2(px, x, h, w)
		ag := make([]float64, h*w)
		AvgPool2Adjoint(ag, g, h, w)
		if lhs, rhs := dot(px, g), dot(x, ag); math.Abs(lhs-rhs) > 1e-12 {
			t.Errorf("%dx%d: <Px,g> = %v, <x,P'g> = %v", h, w, lhs, rhs)
		}
	}
}

func TestSetBackend(t *testing.T) {
	orig := ActiveBackend()
	defer SetBackend(orig)

	for _, b := range []Backend{BackendScalar, BackendUnrolled} {
		SetBackend(b)
		if ActiveBackend() != b {
			t.Errorf("ActiveBackend() = %v, want %v", ActiveBackend(), b)
		}
	}
	if BackendScalar.String() != "scalar" || BackendUnrolled.String() != "unrolled" {
		t.Errorf("unexpected backend names %q, %q", BackendScalar, BackendUnrolled)
	}
}

func BenchmarkBlurPlane(b *testing.B) {
	rng := rand.New(rand.NewPCG(9, 10))
	taps, _ := GaussianTaps(11, 1.5)
	const h, w = 256, 256
	src := randPlane(rng, h*w)
	dst := make([]float64, h*w)
	for _, be := range []Backend{BackendScalar, BackendUnrolled} {
		b.Run(be.String(), func(b *testing.B) {
			orig := ActiveBackend()
			SetBackend(be)
			defer SetBackend(orig)
			b.SetBytes(h * w * 8)
			for i := 0; i < b.N; i++ {
				BlurPlane(dst, src, h, w, taps, 0)
			}
		})
	}
}
