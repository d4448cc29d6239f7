package ssim

import "fmt"

// Batch is a dense (N, C, H, W) tensor of float64 samples stored row-major,
// so plane (n, c) starts at ((n*C)+c)*H*W.
type Batch struct {
	N, C, H, W int
	Data       []float64
}

// NewBatch allocates a zeroed batch.
func NewBatch(n, c, h, w int) *Batch {
	return &Batch{N: n, C: c, H: h, W: w, Data: make([]float64, n*c*h*w)}
}

// Len returns N*C*H*W.
func (b *Batch) Len() int {
	return b.N * b.C * b.H * b.W
}

// Plane returns the H*W slice of sample n, channel c. It aliases Data.
func (b *Batch) Plane(n, c int) []float64 {
	sz := b.H * b.W
	off := (n*b.C + c) * sz
	return b.Data[off : off+sz : off+sz]
}

// Sample returns the C*H*W slice of sample n. It aliases Data.
func (b *Batch) Sample(n int) []float64 {
	sz := b.C * b.H * b.W
	return b.Data[n*sz : (n+1)*sz : (n+1)*sz]
}

// At returns the element at (n, c, y, x).
func (b *Batch) At(n, c, y, x int) float64 {
	return b.Data[((n*b.C+c)*b.H+y)*b.W+x]
}

// Set stores v at (n, c, y, x).
func (b *Batch) Set(n, c, y, x int, v float64) {
	b.Data[((n*b.C+c)*b.H+y)*b.W+x] = v
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	c := *b
	c.Data = append([]float64(nil), b.Data...)
	return &c
}

// SameShape reports whether b and o have identical dimensions.
func (b *Batch) SameShape(o *Batch) bool {
	return b.N == o.N && b.C == o.C && b.H == o.H && b.W == o.W
}

func (b *Batch) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", b.N, b.C, b.H, b.W)
}

// validate checks that the dimensions are positive and match the data.
func (b *Batch) validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil batch", ErrShapeMismatch)
	}
	if b.N <= 0 || b.C <= 0 || b.H <= 0 || b.W <= 0 {
		return fmt.Errorf("%w: invalid dimensions %v", ErrShapeMismatch, b)
	}
	if len(b.Data) != b.Len() {
		return fmt.Errorf("%w: %v needs %d elements, have %d", ErrShapeMismatch, b, b.Len(), len(b.Data))
	}
	return nil
}

// checkPair validates a pair of batches compared against a window built for
// the given channel count.
func checkPair(x, y *Batch, channels int) error {
	if err := x.validate(); err != nil {
		return err
	}
	if err := y.validate(); err != nil {
		return err
	}
	if !x.SameShape(y) {
		return fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, x, y)
	}
	if x.C != channels {
		return fmt.Errorf("%w: batch has %d channels, window has %d", ErrChannelMismatch, x.C, channels)
	}
	return nil
}

// checkGrad validates an upstream gradient on per-sample scores. A nil
// gradient is accepted and means zero.
func checkGrad(grad []float64, n int) error {
	if grad != nil && len(grad) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrGradientShape, len(grad), n)
	}
	return nil
}
