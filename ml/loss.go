package ml

import "math"

// Softmax normalizes logits into a probability vector.
func Softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// SoftmaxCrossEntropy returns the sparse categorical cross-entropy loss for
// one sample together with the gradient with respect to the logits. The
// fused form keeps the gradient numerically stable: dL/dlogit = p - onehot.
func SoftmaxCrossEntropy(logits []float64, label int) (float64, []float64) {
	probs := Softmax(logits)
	p := math.Max(probs[label], 1e-12)
	loss := -math.Log(p)

	grad := make([]float64, len(logits))
	copy(grad, probs)
	grad[label] -= 1
	return loss, grad
}
