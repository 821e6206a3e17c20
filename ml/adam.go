package ml

import "math"

// Adam is the adaptive-moment optimizer with bias-corrected first and
// second moment estimates. Moment buffers are allocated lazily on the
// first Step and keyed by parameter position, so the same layer order
// must be passed on every call.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    [][]float64
	v    [][]float64
}

// NewAdam builds an optimizer with the framework-default moments.
func NewAdam(lr float64) *Adam {
	if lr <= 0 {
		lr = DefaultLearningRate
	}
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-7}
}

// Step applies one in-place update to every parameter tensor.
func (a *Adam) Step(params []Param) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p.W))
			a.v[i] = make([]float64, len(p.W))
		}
	}
	a.step++

	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			p.W[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
}
