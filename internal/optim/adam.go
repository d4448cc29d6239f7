// Package optim provides the first-order optimizer used to fit an image to
// a target by ascending its similarity score.
package optim

import (
	"fmt"
	"math"
)

// Adam is the Adam optimizer with bias-corrected moment estimates. The
// zero value is not usable; construct one with NewAdam.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	m, v []float64
	t    int
}

// NewAdam returns an optimizer for n parameters with the usual defaults
// beta1 = 0.9, beta2 = 0.999 and eps = 1e-8.
func NewAdam(n int, lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

// Step moves params against grad, in place.
func (a *Adam) Step(params, grad []float64) error {
	if len(params) != len(a.m) || len(grad) != len(a.m) {
		return fmt.Errorf("optim: Step with %d params and %d gradients, optimizer has %d",
			len(params), len(grad), len(a.m))
	}
	a.t++
	b1, b2 := a.Beta1, a.Beta2
	b1Corr := 1 - math.Pow(b1, float64(a.t))
	b2Corr := 1 - math.Pow(b2, float64(a.t))
	for i, g := range grad {
		a.m[i] = b1*a.m[i] + (1-b1)*g
		a.v[i] = b2*a.v[i] + (1-b2)*g*g
		mhat := a.m[i] / b1Corr
		vhat := a.v[i] / b2Corr
		params[i] -= a.LR * mhat / (math.Sqrt(vhat) + a.Eps)
	}
	return nil
}

// Reset clears the moment estimates and the step counter.
func (a *Adam) Reset() {
	clear(a.m)
	clear(a.v)
	a.t = 0
}
