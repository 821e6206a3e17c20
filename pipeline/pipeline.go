// Package pipeline glues the training stages together: load recordings,
// window them, encode labels, train the classifier, quantize it, and
// export the artifact plus its label sidecar.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"motiontrain/dataset"
	"motiontrain/db"
	"motiontrain/ml"
	"motiontrain/monitor"
	"motiontrain/quant"
)

// Fixed output filenames; inference tooling looks these up by name.
const (
	ArtifactFilename = "classifier_3x25x1_1dcnn_int8.tflite"
	LabelsFilename   = "classifier_labels.json"
)

// Config holds every knob of a training run. The zero-value-adjusted
// defaults reproduce the tool's no-flag contract: CSVs from the current
// directory, fixed output names in the working directory.
type Config struct {
	DataDir            string
	WindowSize         int
	Epochs             int
	BatchSize          int
	LearningRate       float64
	Seed               int64
	TestRatio          float64
	CalibrationSamples int
	ArtifactPath       string
	LabelsPath         string
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		DataDir:            ".",
		WindowSize:         dataset.DefaultWindowSize,
		Epochs:             ml.DefaultEpochs,
		BatchSize:          ml.DefaultBatchSize,
		LearningRate:       ml.DefaultLearningRate,
		Seed:               ml.DefaultSeed,
		TestRatio:          0.2,
		CalibrationSamples: quant.MaxCalibrationSamples,
		ArtifactPath:       ArtifactFilename,
		LabelsPath:         LabelsFilename,
	}
}

func (c *Config) applyDefaults() {
	base := Default()
	if c.DataDir == "" {
		c.DataDir = base.DataDir
	}
	if c.WindowSize <= 0 {
		c.WindowSize = base.WindowSize
	}
	if c.Epochs <= 0 {
		c.Epochs = base.Epochs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = base.BatchSize
	}
	if c.LearningRate <= 0 {
		c.LearningRate = base.LearningRate
	}
	if c.Seed == 0 {
		c.Seed = base.Seed
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		c.TestRatio = base.TestRatio
	}
	if c.CalibrationSamples <= 0 {
		c.CalibrationSamples = base.CalibrationSamples
	}
	if c.ArtifactPath == "" {
		c.ArtifactPath = base.ArtifactPath
	}
	if c.LabelsPath == "" {
		c.LabelsPath = base.LabelsPath
	}
}

// Result summarizes a completed run.
type Result struct {
	RunID        int64
	Files        int
	DroppedFiles int
	Windows      int
	Classes      int
	TestAccuracy float64
	History      ml.History
	ArtifactPath string
	LabelsPath   string
}

// Trainer executes training runs. Store and Hub are optional; a nil value
// disables the registry or the live monitor respectively.
type Trainer struct {
	cfg    Config
	logger *zap.Logger
	loader *dataset.Loader
	store  *db.RunStore
	hub    *monitor.Hub
	out    io.Writer
}

// New builds a trainer.
func New(cfg Config, logger *zap.Logger, store *db.RunStore, hub *monitor.Hub) (*Trainer, error) {
	cfg.applyDefaults()
	loader, err := dataset.NewLoader()
	if err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:    cfg,
		logger: logger,
		loader: loader,
		store:  store,
		hub:    hub,
		out:    os.Stdout,
	}, nil
}

// SetOutput redirects the human-readable progress text (default stdout).
func (t *Trainer) SetOutput(w io.Writer) { t.out = w }

// Run executes one full training run.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	var runID int64
	if t.store != nil {
		id, err := t.store.CreateRun(ctx, t.cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("register run: %w", err)
		}
		runID = id
	}

	result, err := t.run(ctx, runID)
	if t.store != nil && err != nil {
		if ferr := t.store.FailRun(ctx, runID); ferr != nil {
			t.logger.Warn("mark run failed", zap.Error(ferr))
		}
	}
	return result, err
}

func (t *Trainer) run(ctx context.Context, runID int64) (*Result, error) {
	cfg := t.cfg

	fmt.Fprintln(t.out, "Loading CSV files...")
	recs, err := t.loader.LoadDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load recordings: %w", err)
	}
	t.logger.Info("recordings loaded", zap.Int("files", len(recs)), zap.String("dir", cfg.DataDir))

	if summaries, err := dataset.Summarize(recs); err == nil {
		for _, s := range summaries {
			fmt.Fprintf(t.out, "  axis %s: n=%d min=%.3f max=%.3f mean=%.3f sd=%.3f\n",
				s.Axis, s.Count, s.Min, s.Max, s.Mean, s.StdDev)
		}
	}

	fmt.Fprintln(t.out, "Creating windows...")
	windows, labels, droppedFiles := dataset.MakeWindows(recs, cfg.WindowSize)
	if len(droppedFiles) > 0 {
		// Short recordings vanish from the training set without failing the
		// run; surfaced here so the gap is at least visible.
		t.logger.Warn("recordings shorter than window dropped",
			zap.Int("window_size", cfg.WindowSize),
			zap.Strings("files", droppedFiles))
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("no windows produced: every recording shorter than %d samples", cfg.WindowSize)
	}

	codec, err := dataset.NewLabelCodec(labels)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}
	classes := codec.Classes()
	fmt.Fprintf(t.out, "Found %d classes: %v\n", len(classes), classes)
	fmt.Fprintf(t.out, "Total samples: %d\n", len(windows))
	fmt.Fprintln(t.out, "Class index -> label (use this for inference):")
	for i, class := range classes {
		fmt.Fprintf(t.out, "  %d -> %s\n", i, class)
	}

	y, err := codec.EncodeAll(labels)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}
	x := make([][]float64, len(windows))
	for i, w := range windows {
		x[i] = w.Float64()
	}

	model, err := ml.NewCNN(codec.NumClasses(), cfg.WindowSize, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	t.logger.Info("model built",
		zap.Int("classes", codec.NumClasses()),
		zap.Int("parameters", model.NumParams()))

	trainX, trainY, testX, testY, err := ml.StratifiedSplit(x, y, cfg.TestRatio, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	t.hub.Broadcast(monitor.EventRunStarted, map[string]interface{}{
		"run_id":  runID,
		"samples": len(x),
		"classes": classes,
	})

	fmt.Fprintf(t.out, "\nTraining on %d samples...\n", len(trainX))
	history, err := model.Train(trainX, trainY, ml.TrainOptions{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Seed:         cfg.Seed,
		ValX:         testX,
		ValY:         testY,
		OnEpoch: func(m ml.EpochMetrics) {
			fmt.Fprintf(t.out, "Epoch %d/%d - loss: %.4f - accuracy: %.4f - val_loss: %.4f - val_accuracy: %.4f\n",
				m.Epoch, cfg.Epochs, m.Loss, m.Accuracy, m.ValLoss, m.ValAccuracy)
			t.hub.Broadcast(monitor.EventEpoch, m)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	fmt.Fprintln(t.out, "\nEvaluating model on test data...")
	_, accuracy, err := model.Evaluate(testX, testY)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	fmt.Fprintf(t.out, "Test Accuracy: %.4f\n", accuracy)

	// Calibrate on real training windows.
	calib := trainX
	if len(calib) > cfg.CalibrationSamples {
		calib = calib[:cfg.CalibrationSamples]
	}
	artifact, err := quant.Quantize(model, calib)
	if err != nil {
		return nil, fmt.Errorf("quantize: %w", err)
	}
	if err := artifact.WriteFile(cfg.ArtifactPath); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	fmt.Fprintf(t.out, "Saved: %s\n", cfg.ArtifactPath)

	if err := codec.WriteSidecar(cfg.LabelsPath); err != nil {
		return nil, fmt.Errorf("write label sidecar: %w", err)
	}
	fmt.Fprintf(t.out, "Saved labels: %s -> index i means label %v\n", cfg.LabelsPath, classes)

	artifact.Analyze(t.out)
	fmt.Fprintf(t.out, "%d\n", model.NumParams())

	if t.store != nil {
		if err := t.store.RecordEpochs(ctx, runID, history); err != nil {
			t.logger.Warn("record epoch metrics", zap.Error(err))
		}
		if err := t.store.FinishRun(ctx, runID, len(recs), len(windows), codec.NumClasses(), accuracy, cfg.ArtifactPath); err != nil {
			t.logger.Warn("finish run", zap.Error(err))
		}
	}
	t.hub.Broadcast(monitor.EventRunFinished, map[string]interface{}{
		"run_id":        runID,
		"test_accuracy": accuracy,
		"artifact":      cfg.ArtifactPath,
	})
	t.logger.Info("run complete",
		zap.Float64("test_accuracy", accuracy),
		zap.String("artifact", cfg.ArtifactPath))

	return &Result{
		RunID:        runID,
		Files:        len(recs),
		DroppedFiles: len(droppedFiles),
		Windows:      len(windows),
		Classes:      codec.NumClasses(),
		TestAccuracy: accuracy,
		History:      history,
		ArtifactPath: cfg.ArtifactPath,
		LabelsPath:   cfg.LabelsPath,
	}, nil
}
