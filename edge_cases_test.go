package ssim

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Edge cases ---

func TestEdge_SingleTapWindow(t *testing.T) {
	// A one-tap window makes every statistic a per-pixel value, so sigma
	// terms vanish and cs is exactly 1.
	rng := newRNG(41)
	x := randBatch(rng, 1, 1, 5, 7)
	y := randBatch(rng, 1, 1, 5, 7)
	m := mustNew(t, &Options{WindowSize: 1, DataRange: 1, Channels: 1})
	r, err := m.Evaluate(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, r.CS[0], 1e-9)

	c1 := 1e-4
	var want float64
	for i := range x.Data {
		a, b := x.Data[i], y.Data[i]
		want += (2*a*b + c1) / (a*a + b*b + c1)
	}
	assert.InDelta(t, want/35, r.SSIM[0], 1e-9)
}

func TestEdge_WindowEqualsImage(t *testing.T) {
	rng := newRNG(42)
	x := randBatch(rng, 1, 3, 11, 11)
	m := mustNew(t, unitOptions())
	got, err := m.Compute(x, x)
	require.NoError(t, err)
	assert.InDelta(t, 1, got[0], 1e-12)

	_, err = m.Compute(NewBatch(1, 3, 10, 11), NewBatch(1, 3, 10, 11))
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestEdge_OnePixelPadded(t *testing.T) {
	opts := unitOptions()
	opts.Padding = true
	opts.Channels = 1
	x := &Batch{N: 1, C: 1, H: 1, W: 1, Data: []float64{0.5}}
	y := &Batch{N: 1, C: 1, H: 1, W: 1, Data: []float64{0.5}}

	got, err := mustNew(t, opts).Compute(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, got[0], 1e-12)

	ms, err := mustMultiScale(t, opts).Compute(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, ms[0], 1e-12)
}

func TestEdge_BlackImages(t *testing.T) {
	// Both inputs zero: every term reduces to C/C.
	x := NewBatch(2, 3, 16, 16)
	got, err := mustNew(t, nil).Compute(x, x.Clone())
	require.NoError(t, err)
	for _, v := range got {
		assert.Equal(t, 1.0, v)
	}
}

func TestEdge_DataRangeScaling(t *testing.T) {
	// Scaling the images and the data range together leaves the score
	// unchanged.
	rng := newRNG(43)
	x := randBatch(rng, 1, 3, 20, 20)
	y := mix(x, 0.5, randBatch(rng, 1, 3, 20, 20), 0.5, 0)

	a, err := mustNew(t, unitOptions()).Compute(x, y)
	require.NoError(t, err)
	b, err := mustNew(t, nil).Compute(mix(x, 255, nil, 0, 0), mix(y, 255, nil, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, a[0], b[0], 1e-9)
}

func TestEdge_SamplesIndependent(t *testing.T) {
	// A sample's score does not depend on the other samples in the batch.
	rng := newRNG(44)
	x := randBatch(rng, 3, 3, 20, 20)
	y := mix(x, 0.6, randBatch(rng, 3, 3, 20, 20), 0.4, 0)
	m := mustNew(t, unitOptions())
	all, err := m.Compute(x, y)
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		xs := &Batch{N: 1, C: 3, H: 20, W: 20, Data: append([]float64(nil), x.Sample(n)...)}
		ys := &Batch{N: 1, C: 3, H: 20, W: 20, Data: append([]float64(nil), y.Sample(n)...)}
		one, err := m.Compute(xs, ys)
		require.NoError(t, err)
		assert.Equal(t, all[n], one[0], "sample %d", n)
	}
}

func TestEdge_InputsNotModified(t *testing.T) {
	rng := newRNG(45)
	x := randBatch(rng, 2, 3, 20, 20)
	y := randBatch(rng, 2, 3, 20, 20)
	xc, yc := x.Clone(), y.Clone()

	r, err := mustMultiScale(t, smallMultiScale()).Evaluate(x, y)
	require.NoError(t, err)
	_, _, err = r.Backward([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, xc.Data, x.Data)
	assert.Equal(t, yc.Data, y.Data)
}

func TestEdge_LargeDynamicRange(t *testing.T) {
	// Values far outside [0, DataRange] still give finite results.
	rng := newRNG(46)
	x := mix(randBatch(rng, 1, 3, 16, 16), 1e4, nil, 0, 0)
	y := mix(randBatch(rng, 1, 3, 16, 16), -1e4, nil, 0, 0)
	r, err := mustNew(t, unitOptions()).Evaluate(x, y)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(r.SSIM[0]))
	gx, _, err := r.BackwardWithCS([]float64{1}, []float64{1})
	require.NoError(t, err)
	requireFinite(t, gx)
}

// --- Concurrency ---

func TestConcurrentUse(t *testing.T) {
	rng := newRNG(47)
	x := randBatch(rng, 2, 3, 32, 32)
	y := mix(x, 0.7, randBatch(rng, 2, 3, 32, 32), 0.3, 0)

	single := mustNew(t, unitOptions())
	multi := mustMultiScale(t, smallMultiScale())
	wantS, err := single.Compute(x, y)
	require.NoError(t, err)
	wantM, err := multi.Compute(x, y)
	require.NoError(t, err)

	const goroutines = 8
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for range 4 {
				s, err := single.Compute(x, y)
				if err != nil {
					t.Error(err)
					return
				}
				m, err := multi.Compute(x, y)
				if err != nil {
					t.Error(err)
					return
				}
				if !assert.Equal(t, wantS, s) || !assert.Equal(t, wantM, m) {
					return
				}
			}
		}()
	}
	wg.Wait()
}
