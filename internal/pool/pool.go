// Package pool provides bucketed sync.Pool instances of float64 scratch
// buffers for the blur and pooling kernels. Buffers are organized by element
// count to minimize waste.
package pool

import "sync"

// Size classes, in float64 elements.
const (
	Size256  = 256
	Size1K   = 1024
	Size4K   = 4096
	Size16K  = 16384
	Size64K  = 65536
	Size256K = 262144
	Size1M   = 1048576
)

// bucketIndex returns the pool index for a given length.
func bucketIndex(n int) int {
	switch {
	case n <= Size256:
		return 0
	case n <= Size1K:
		return 1
	case n <= Size4K:
		return 2
	case n <= Size16K:
		return 3
	case n <= Size64K:
		return 4
	case n <= Size256K:
		return 5
	default:
		return 6
	}
}

var sizes = [7]int{Size256, Size1K, Size4K, Size16K, Size64K, Size256K, Size1M}

var pools [7]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]float64, sz)
				return &b
			},
		}
	}
}

// Get returns a float64 slice of exactly n elements from the pool. The
// contents are unspecified; use GetZeroed when the caller accumulates into
// the buffer. The caller must call Put when done.
func Get(n int) []float64 {
	idx := bucketIndex(n)
	bp := pools[idx].Get().(*[]float64)
	b := *bp
	if cap(b) < n {
		b = make([]float64, n)
		*bp = b
		return b
	}
	return b[:n]
}

// GetZeroed is Get followed by clearing the returned slice.
func GetZeroed(n int) []float64 {
	b := Get(n)
	clear(b)
	return b
}

// Put returns a slice to the pool. The slice must have been obtained from
// Get. Slices smaller than Size256 are not pooled.
func Put(b []float64) {
	c := cap(b)
	if c < Size256 {
		return
	}
	idx := bucketIndex(c)
	b = b[:c]
	pools[idx].Put(&b)
}
