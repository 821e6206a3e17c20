package ml

import (
	"fmt"
	"math/rand"
)

// Channels is the accelerometer axis count the model consumes.
const Channels = 3

// Fixed topology constants. The input (3, window, 1) tensor is flattened
// channel-major into a single-channel sequence of length 3*window before
// the first convolution.
const (
	conv1Filters = 32
	conv1Kernel  = 5
	convFilters  = 8
	convKernel   = 3
	poolSize     = 2
	hiddenUnits  = 64
	dropoutRate  = 0.2
)

// CNN is the 1-D convolutional classifier:
//
//	reshape(3*W, 1) -> Conv1D(32,5,same,relu) -> MaxPool(2)
//	               -> Conv1D(8,3,same,relu)  -> MaxPool(2)
//	               -> Conv1D(8,3,same,relu)  -> MaxPool(2)
//	               -> Conv1D(8,3,same,relu)  -> GlobalAvgPool
//	               -> Dense(64,relu) -> Dropout(0.2) -> Dense(C) -> softmax
type CNN struct {
	NumClasses int
	InputLen   int // 3 * window size

	Convs  [4]*Conv1D
	Pools  [3]*MaxPool1D
	GAP    *GlobalAvgPool1D
	Hidden *Dense
	Drop   *Dropout
	Out    *Dense

	rng *rand.Rand
}

var _ Classifier = (*CNN)(nil)

// NewCNN builds the fixed-topology network for numClasses outputs over
// windows of windowSize samples. Weight initialization is seeded for
// reproducible runs.
func NewCNN(numClasses, windowSize int, seed int64) (*CNN, error) {
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	inputLen := Channels * windowSize
	// Three halvings must leave at least one time step.
	if inputLen/poolSize/poolSize/poolSize < 1 {
		return nil, fmt.Errorf("window size %d too small for the pooling stack", windowSize)
	}

	rng := rand.New(rand.NewSource(seed))
	m := &CNN{
		NumClasses: numClasses,
		InputLen:   inputLen,
		GAP:        &GlobalAvgPool1D{},
		rng:        rng,
	}
	m.Convs[0] = NewConv1D(rng, 1, conv1Filters, conv1Kernel, true)
	m.Convs[1] = NewConv1D(rng, conv1Filters, convFilters, convKernel, true)
	m.Convs[2] = NewConv1D(rng, convFilters, convFilters, convKernel, true)
	m.Convs[3] = NewConv1D(rng, convFilters, convFilters, convKernel, true)
	for i := range m.Pools {
		m.Pools[i] = NewMaxPool1D(poolSize)
	}
	m.Hidden = NewDense(rng, convFilters, hiddenUnits, true)
	m.Drop = NewDropout(rng, dropoutRate)
	m.Out = NewDense(rng, hiddenUnits, numClasses, false)
	return m, nil
}

func toSequence(x []float64) [][]float64 {
	seq := make([][]float64, len(x))
	for i, v := range x {
		seq[i] = []float64{v}
	}
	return seq
}

// forward runs the network up to the logits.
func (m *CNN) forward(x []float64, training bool) []float64 {
	h := toSequence(x)
	for i, conv := range m.Convs {
		h = conv.Forward(h, training)
		if i < len(m.Pools) {
			h = m.Pools[i].Forward(h, training)
		}
	}
	v := m.GAP.Forward(h, training)
	v = m.Hidden.Forward(v, training)
	v = m.Drop.Forward(v, training)
	return m.Out.Forward(v, training)
}

// backward propagates the logit gradient through every layer, accumulating
// weight gradients. Must follow a training-mode forward of the same sample.
func (m *CNN) backward(dLogits []float64) {
	dv := m.Out.Backward(dLogits)
	dv = m.Drop.Backward(dv)
	dv = m.Hidden.Backward(dv)
	dh := m.GAP.Backward(dv)
	for i := len(m.Convs) - 1; i >= 0; i-- {
		if i < len(m.Pools) {
			dh = m.Pools[i].Backward(dh)
		}
		dh = m.Convs[i].Backward(dh)
	}
}

func (m *CNN) params() []Param {
	var params []Param
	for _, conv := range m.Convs {
		params = append(params, conv.Params()...)
	}
	params = append(params, m.Hidden.Params()...)
	params = append(params, m.Out.Params()...)
	return params
}

func (m *CNN) zeroGrads() {
	for _, p := range m.params() {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

func (m *CNN) checkInput(x []float64) error {
	if len(x) != m.InputLen {
		return fmt.Errorf("input length %d, model expects %d", len(x), m.InputLen)
	}
	return nil
}

// Train fits the model with minibatch Adam and per-sample backpropagation.
func (m *CNN) Train(x [][]float64, y []int, opts TrainOptions) (History, error) {
	if len(x) == 0 {
		return History{}, fmt.Errorf("no training samples")
	}
	if len(x) != len(y) {
		return History{}, fmt.Errorf("samples/labels mismatch: %d vs %d", len(x), len(y))
	}
	for i, sample := range x {
		if err := m.checkInput(sample); err != nil {
			return History{}, fmt.Errorf("sample %d: %w", i, err)
		}
		if y[i] < 0 || y[i] >= m.NumClasses {
			return History{}, fmt.Errorf("sample %d: label %d out of range [0,%d)", i, y[i], m.NumClasses)
		}
	}
	opts.applyDefaults()

	rng := rand.New(rand.NewSource(opts.Seed))
	adam := NewAdam(opts.LearningRate)
	order := rng.Perm(len(x))

	var history History
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		epochLoss := 0.0
		correct := 0
		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			m.zeroGrads()
			for _, idx := range batch {
				logits := m.forward(x[idx], true)
				loss, dLogits := SoftmaxCrossEntropy(logits, y[idx])
				epochLoss += loss
				if argmax(logits) == y[idx] {
					correct++
				}
				m.backward(dLogits)
			}

			// Average the accumulated gradients over the batch.
			scale := 1.0 / float64(len(batch))
			params := m.params()
			for _, p := range params {
				for i := range p.Grad {
					p.Grad[i] *= scale
				}
			}
			adam.Step(params)
		}

		metrics := EpochMetrics{
			Epoch:    epoch,
			Loss:     epochLoss / float64(len(x)),
			Accuracy: float64(correct) / float64(len(x)),
		}
		if len(opts.ValX) > 0 {
			valLoss, valAcc, err := m.Evaluate(opts.ValX, opts.ValY)
			if err != nil {
				return history, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
			metrics.ValLoss = valLoss
			metrics.ValAccuracy = valAcc
		}
		history.Epochs = append(history.Epochs, metrics)
		if opts.OnEpoch != nil {
			opts.OnEpoch(metrics)
		}
	}
	return history, nil
}

// Predict returns the class index and the full probability vector.
func (m *CNN) Predict(x []float64) (int, []float64, error) {
	if err := m.checkInput(x); err != nil {
		return 0, nil, err
	}
	probs := Softmax(m.forward(x, false))
	return argmax(probs), probs, nil
}

// Evaluate computes mean loss and accuracy over a labeled set.
func (m *CNN) Evaluate(x [][]float64, y []int) (float64, float64, error) {
	if len(x) == 0 {
		return 0, 0, fmt.Errorf("no samples to evaluate")
	}
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("samples/labels mismatch: %d vs %d", len(x), len(y))
	}

	totalLoss := 0.0
	correct := 0
	for i, sample := range x {
		if err := m.checkInput(sample); err != nil {
			return 0, 0, fmt.Errorf("sample %d: %w", i, err)
		}
		logits := m.forward(sample, false)
		loss, _ := SoftmaxCrossEntropy(logits, y[i])
		totalLoss += loss
		if argmax(logits) == y[i] {
			correct++
		}
	}
	return totalLoss / float64(len(x)), float64(correct) / float64(len(x)), nil
}

// NumParams counts trainable parameters.
func (m *CNN) NumParams() int {
	total := 0
	for _, p := range m.params() {
		total += len(p.W)
	}
	return total
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
