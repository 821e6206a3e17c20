package ml

import (
	"math"
	"math/rand"
)

// Param is one trainable tensor with its accumulated gradient, exposed as
// flat slices so the optimizer can update in place.
type Param struct {
	W    []float64
	Grad []float64
}

// glorotUniform draws from U(-limit, limit) with limit = sqrt(6/(fanIn+fanOut)).
func glorotUniform(rng *rand.Rand, w []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

// Conv1D is a same-padded 1-D convolution over a [length][channels] series,
// optionally fused with a ReLU activation.
type Conv1D struct {
	In, Out, Kernel int
	ReLU            bool

	W []float64 // [(o*In+c)*Kernel + k]
	B []float64

	GradW []float64
	GradB []float64

	input  [][]float64 // last forward input (training only)
	preact [][]float64
}

// NewConv1D builds a convolution with Glorot-uniform weights.
func NewConv1D(rng *rand.Rand, in, out, kernel int, relu bool) *Conv1D {
	c := &Conv1D{
		In: in, Out: out, Kernel: kernel, ReLU: relu,
		W:     make([]float64, out*in*kernel),
		B:     make([]float64, out),
		GradW: make([]float64, out*in*kernel),
		GradB: make([]float64, out),
	}
	glorotUniform(rng, c.W, in*kernel, out*kernel)
	return c
}

// Forward computes the convolution. With training true the input and
// pre-activation are cached for Backward.
func (c *Conv1D) Forward(x [][]float64, training bool) [][]float64 {
	length := len(x)
	pad := (c.Kernel - 1) / 2

	pre := make([][]float64, length)
	out := make([][]float64, length)
	for t := 0; t < length; t++ {
		pre[t] = make([]float64, c.Out)
		out[t] = make([]float64, c.Out)
		for o := 0; o < c.Out; o++ {
			sum := c.B[o]
			for k := 0; k < c.Kernel; k++ {
				ti := t + k - pad
				if ti < 0 || ti >= length {
					continue
				}
				for ch := 0; ch < c.In; ch++ {
					sum += c.W[(o*c.In+ch)*c.Kernel+k] * x[ti][ch]
				}
			}
			pre[t][o] = sum
			if c.ReLU && sum < 0 {
				out[t][o] = 0
			} else {
				out[t][o] = sum
			}
		}
	}

	if training {
		c.input = x
		c.preact = pre
	}
	return out
}

// Backward accumulates weight gradients from the upstream gradient and
// returns the gradient with respect to the input.
func (c *Conv1D) Backward(dOut [][]float64) [][]float64 {
	length := len(c.input)
	pad := (c.Kernel - 1) / 2

	dx := make([][]float64, length)
	for t := range dx {
		dx[t] = make([]float64, c.In)
	}

	for t := 0; t < length; t++ {
		for o := 0; o < c.Out; o++ {
			d := dOut[t][o]
			if c.ReLU && c.preact[t][o] <= 0 {
				continue
			}
			c.GradB[o] += d
			for k := 0; k < c.Kernel; k++ {
				ti := t + k - pad
				if ti < 0 || ti >= length {
					continue
				}
				for ch := 0; ch < c.In; ch++ {
					c.GradW[(o*c.In+ch)*c.Kernel+k] += d * c.input[ti][ch]
					dx[ti][ch] += d * c.W[(o*c.In+ch)*c.Kernel+k]
				}
			}
		}
	}
	return dx
}

// Params exposes the trainable tensors.
func (c *Conv1D) Params() []Param {
	return []Param{{W: c.W, Grad: c.GradW}, {W: c.B, Grad: c.GradB}}
}

// MaxPool1D is a valid-padded max pool with stride equal to pool size.
type MaxPool1D struct {
	Pool int

	inLen  int
	argmax [][]int
}

// NewMaxPool1D builds a pool layer.
func NewMaxPool1D(pool int) *MaxPool1D { return &MaxPool1D{Pool: pool} }

// OutLen is the pooled length for an input of length n.
func (p *MaxPool1D) OutLen(n int) int {
	if n < p.Pool {
		return 0
	}
	return (n-p.Pool)/p.Pool + 1
}

// Forward picks the channel-wise maximum per pool window.
func (p *MaxPool1D) Forward(x [][]float64, training bool) [][]float64 {
	outLen := p.OutLen(len(x))
	channels := 0
	if len(x) > 0 {
		channels = len(x[0])
	}

	out := make([][]float64, outLen)
	arg := make([][]int, outLen)
	for t := 0; t < outLen; t++ {
		out[t] = make([]float64, channels)
		arg[t] = make([]int, channels)
		for ch := 0; ch < channels; ch++ {
			best := x[t*p.Pool][ch]
			bestIdx := t * p.Pool
			for k := 1; k < p.Pool; k++ {
				if v := x[t*p.Pool+k][ch]; v > best {
					best = v
					bestIdx = t*p.Pool + k
				}
			}
			out[t][ch] = best
			arg[t][ch] = bestIdx
		}
	}

	if training {
		p.inLen = len(x)
		p.argmax = arg
	}
	return out
}

// Backward routes gradients to the argmax positions.
func (p *MaxPool1D) Backward(dOut [][]float64) [][]float64 {
	channels := 0
	if len(dOut) > 0 {
		channels = len(dOut[0])
	}
	dx := make([][]float64, p.inLen)
	for t := range dx {
		dx[t] = make([]float64, channels)
	}
	for t := range dOut {
		for ch := 0; ch < channels; ch++ {
			dx[p.argmax[t][ch]][ch] += dOut[t][ch]
		}
	}
	return dx
}

// GlobalAvgPool1D averages each channel over time.
type GlobalAvgPool1D struct {
	inLen int
}

// Forward reduces [length][channels] to [channels].
func (g *GlobalAvgPool1D) Forward(x [][]float64, training bool) []float64 {
	if training {
		g.inLen = len(x)
	}
	if len(x) == 0 {
		return nil
	}
	channels := len(x[0])
	out := make([]float64, channels)
	for _, row := range x {
		for ch, v := range row {
			out[ch] += v
		}
	}
	for ch := range out {
		out[ch] /= float64(len(x))
	}
	return out
}

// Backward spreads the gradient evenly over time steps.
func (g *GlobalAvgPool1D) Backward(dOut []float64) [][]float64 {
	dx := make([][]float64, g.inLen)
	for t := range dx {
		dx[t] = make([]float64, len(dOut))
		for ch, d := range dOut {
			dx[t][ch] = d / float64(g.inLen)
		}
	}
	return dx
}

// Dense is a fully connected layer, optionally fused with ReLU.
type Dense struct {
	In, Out int
	ReLU    bool

	W []float64 // [o*In + i]
	B []float64

	GradW []float64
	GradB []float64

	input  []float64
	preact []float64
}

// NewDense builds a dense layer with Glorot-uniform weights.
func NewDense(rng *rand.Rand, in, out int, relu bool) *Dense {
	d := &Dense{
		In: in, Out: out, ReLU: relu,
		W:     make([]float64, out*in),
		B:     make([]float64, out),
		GradW: make([]float64, out*in),
		GradB: make([]float64, out),
	}
	glorotUniform(rng, d.W, in, out)
	return d
}

// Forward computes W*x + b with the optional activation.
func (d *Dense) Forward(x []float64, training bool) []float64 {
	pre := make([]float64, d.Out)
	out := make([]float64, d.Out)
	for o := 0; o < d.Out; o++ {
		sum := d.B[o]
		for i, v := range x {
			sum += d.W[o*d.In+i] * v
		}
		pre[o] = sum
		if d.ReLU && sum < 0 {
			out[o] = 0
		} else {
			out[o] = sum
		}
	}
	if training {
		d.input = x
		d.preact = pre
	}
	return out
}

// Backward accumulates gradients and returns dL/dx.
func (d *Dense) Backward(dOut []float64) []float64 {
	dx := make([]float64, d.In)
	for o := 0; o < d.Out; o++ {
		g := dOut[o]
		if d.ReLU && d.preact[o] <= 0 {
			continue
		}
		d.GradB[o] += g
		for i := 0; i < d.In; i++ {
			d.GradW[o*d.In+i] += g * d.input[i]
			dx[i] += g * d.W[o*d.In+i]
		}
	}
	return dx
}

// Params exposes the trainable tensors.
func (d *Dense) Params() []Param {
	return []Param{{W: d.W, Grad: d.GradW}, {W: d.B, Grad: d.GradB}}
}

// Dropout zeroes a fraction of activations during training, scaling the
// survivors so eval-time forward passes need no correction.
type Dropout struct {
	Rate float64

	rng  *rand.Rand
	mask []bool
}

// NewDropout builds a dropout layer sharing the model RNG.
func NewDropout(rng *rand.Rand, rate float64) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

// Forward applies inverted dropout when training; identity otherwise.
func (d *Dropout) Forward(x []float64, training bool) []float64 {
	if !training || d.Rate <= 0 {
		return x
	}
	keep := 1 - d.Rate
	out := make([]float64, len(x))
	d.mask = make([]bool, len(x))
	for i, v := range x {
		if d.rng.Float64() < keep {
			d.mask[i] = true
			out[i] = v / keep
		}
	}
	return out
}

// Backward zeroes gradients of dropped units.
func (d *Dropout) Backward(dOut []float64) []float64 {
	if d.mask == nil {
		return dOut
	}
	keep := 1 - d.Rate
	dx := make([]float64, len(dOut))
	for i, g := range dOut {
		if d.mask[i] {
			dx[i] = g / keep
		}
	}
	return dx
}
