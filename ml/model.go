// Package ml implements the 1-D convolutional classifier and its training
// loop. Everything is plain Go: the model is small enough (a few thousand
// parameters) that CPU training over accelerometer windows finishes in
// seconds.
package ml

// Classifier is a trainable multi-class model over flat feature vectors.
type Classifier interface {
	Train(x [][]float64, y []int, opts TrainOptions) (History, error)
	Predict(x []float64) (int, []float64, error)
	Evaluate(x [][]float64, y []int) (loss, accuracy float64, err error)
	NumParams() int
}

// TrainOptions controls a training run.
type TrainOptions struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64

	// Optional held-out set evaluated after every epoch.
	ValX [][]float64
	ValY []int

	// OnEpoch, when set, observes metrics after each epoch.
	OnEpoch func(EpochMetrics)
}

// EpochMetrics reports one epoch of training.
type EpochMetrics struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// History is the metric trail of a full training run.
type History struct {
	Epochs []EpochMetrics
}

// Defaults matching the training contract.
const (
	DefaultEpochs       = 3
	DefaultBatchSize    = 32
	DefaultLearningRate = 0.001
	DefaultSeed         = 42
)

func (o *TrainOptions) applyDefaults() {
	if o.Epochs <= 0 {
		o.Epochs = DefaultEpochs
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LearningRate <= 0 {
		o.LearningRate = DefaultLearningRate
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
}
