// Package quant converts a trained float model into a fully int8-quantized
// artifact for constrained inference targets. Activation ranges are
// calibrated from a representative set of real training windows; weights
// are quantized symmetrically per tensor.
package quant

import (
	"fmt"
	"math"

	"motiontrain/ml"
)

// MaxCalibrationSamples caps the representative set used for activation
// range estimation.
const MaxCalibrationSamples = 100

// QParams is an affine int8 quantization: real = scale * (q - zeroPoint).
type QParams struct {
	Scale     float64
	ZeroPoint int
}

// Quantize converts value to its int8 representation.
func (qp QParams) Quantize(v float64) int8 {
	q := int(math.Round(v/qp.Scale)) + qp.ZeroPoint
	if q < math.MinInt8 {
		q = math.MinInt8
	}
	if q > math.MaxInt8 {
		q = math.MaxInt8
	}
	return int8(q)
}

// Dequantize recovers the real value of an int8 code.
func (qp QParams) Dequantize(q int8) float64 {
	return qp.Scale * float64(int(q)-qp.ZeroPoint)
}

// paramsForRange derives affine int8 parameters covering [min, max]. The
// range is widened to include zero so that padding and ReLU zeros are
// exactly representable.
func paramsForRange(min, max float64) QParams {
	if min > 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if max == min {
		max = min + 1e-6
	}
	scale := (max - min) / 255.0
	zp := int(math.Round(-128 - min/scale))
	if zp < math.MinInt8 {
		zp = math.MinInt8
	}
	if zp > math.MaxInt8 {
		zp = math.MaxInt8
	}
	return QParams{Scale: scale, ZeroPoint: zp}
}

// symmetricParams derives the per-tensor symmetric scale used for weights.
func symmetricParams(values []float64) QParams {
	maxAbs := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		maxAbs = 1e-6
	}
	return QParams{Scale: maxAbs / 127.0, ZeroPoint: 0}
}

// calibrator accumulates per-tensor activation ranges.
type calibrator struct {
	order  []string
	ranges map[string][2]float64
}

func newCalibrator() *calibrator {
	return &calibrator{ranges: make(map[string][2]float64)}
}

func (c *calibrator) observe(tensors []ml.Tensor) {
	for _, tensor := range tensors {
		r, ok := c.ranges[tensor.Name]
		if !ok {
			c.order = append(c.order, tensor.Name)
			r = [2]float64{math.Inf(1), math.Inf(-1)}
		}
		for _, v := range tensor.Data {
			if v < r[0] {
				r[0] = v
			}
			if v > r[1] {
				r[1] = v
			}
		}
		c.ranges[tensor.Name] = r
	}
}

func (c *calibrator) params(name string) (QParams, error) {
	r, ok := c.ranges[name]
	if !ok {
		return QParams{}, fmt.Errorf("no calibration range for tensor %q", name)
	}
	return paramsForRange(r[0], r[1]), nil
}

func quantizeWeights(w []float64, qp QParams) []int8 {
	out := make([]int8, len(w))
	for i, v := range w {
		out[i] = qp.Quantize(v)
	}
	return out
}

// quantizeBias maps float biases to int32 at scale inScale*weightScale,
// the accumulator scale of an int8 matmul.
func quantizeBias(b []float64, inScale, weightScale float64) []int32 {
	out := make([]int32, len(b))
	scale := inScale * weightScale
	for i, v := range b {
		out[i] = int32(math.Round(v / scale))
	}
	return out
}

// Quantize calibrates activation ranges over at most MaxCalibrationSamples
// representative windows and produces the int8 artifact.
func Quantize(m *ml.CNN, representative [][]float64) (*Artifact, error) {
	if m == nil {
		return nil, fmt.Errorf("nil model")
	}
	if len(representative) == 0 {
		return nil, fmt.Errorf("representative dataset is empty")
	}

	n := len(representative)
	if n > MaxCalibrationSamples {
		n = MaxCalibrationSamples
	}
	calib := newCalibrator()
	for i := 0; i < n; i++ {
		tensors, err := m.Activations(representative[i])
		if err != nil {
			return nil, fmt.Errorf("calibration sample %d: %w", i, err)
		}
		calib.observe(tensors)
	}

	inputQP, err := calib.params("input")
	if err != nil {
		return nil, err
	}
	// Softmax output is a probability vector; the conventional fixed
	// mapping covers [0,1) exactly with scale 1/256.
	outputQP := QParams{Scale: 1.0 / 256.0, ZeroPoint: -128}

	art := &Artifact{
		InputShape:         [3]int{ml.Channels, m.InputLen / ml.Channels, 1},
		NumClasses:         m.NumClasses,
		Input:              inputQP,
		Output:             outputQP,
		CalibrationSamples: n,
	}

	length := m.InputLen
	prevQP := inputQP
	for i, conv := range m.Convs {
		outQP, err := calib.params(fmt.Sprintf("conv%d", i+1))
		if err != nil {
			return nil, err
		}
		wQP := symmetricParams(conv.W)
		art.Ops = append(art.Ops, Op{
			Type:        OpConv1D,
			ReLU:        conv.ReLU,
			In:          conv.In,
			Out:         conv.Out,
			Kernel:      conv.Kernel,
			OutLen:      length,
			OutCh:       conv.Out,
			Input:       prevQP,
			Output:      outQP,
			WeightScale: wQP.Scale,
			Weights:     quantizeWeights(conv.W, wQP),
			Bias:        quantizeBias(conv.B, prevQP.Scale, wQP.Scale),
		})
		prevQP = outQP

		if i < len(m.Pools) {
			length = m.Pools[i].OutLen(length)
			poolQP, err := calib.params(fmt.Sprintf("pool%d", i+1))
			if err != nil {
				return nil, err
			}
			art.Ops = append(art.Ops, Op{
				Type:   OpMaxPool,
				Pool:   m.Pools[i].Pool,
				OutLen: length,
				OutCh:  conv.Out,
				Input:  prevQP,
				Output: poolQP,
			})
			prevQP = poolQP
		}
	}

	gapQP, err := calib.params("gap")
	if err != nil {
		return nil, err
	}
	art.Ops = append(art.Ops, Op{
		Type:   OpGlobalAvgPool,
		OutLen: 1,
		OutCh:  m.Convs[3].Out,
		Input:  prevQP,
		Output: gapQP,
	})
	prevQP = gapQP

	for _, dense := range []*ml.Dense{m.Hidden, m.Out} {
		name := "dense1"
		if dense == m.Out {
			name = "logits"
		}
		outQP, err := calib.params(name)
		if err != nil {
			return nil, err
		}
		wQP := symmetricParams(dense.W)
		art.Ops = append(art.Ops, Op{
			Type:        OpDense,
			ReLU:        dense.ReLU,
			In:          dense.In,
			Out:         dense.Out,
			OutLen:      1,
			OutCh:       dense.Out,
			Input:       prevQP,
			Output:      outQP,
			WeightScale: wQP.Scale,
			Weights:     quantizeWeights(dense.W, wQP),
			Bias:        quantizeBias(dense.B, prevQP.Scale, wQP.Scale),
		})
		prevQP = outQP
	}

	art.Ops = append(art.Ops, Op{
		Type:   OpSoftmax,
		OutLen: 1,
		OutCh:  m.NumClasses,
		Input:  prevQP,
		Output: outputQP,
	})
	return art, nil
}
