package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"motiontrain/db"
	"motiontrain/logging"
	"motiontrain/monitor"
	"motiontrain/pipeline"
	"motiontrain/watch"
)

const version = "0.3.0"

// Config is the optional YAML configuration. Every field has a working
// default: running with no config and no flags trains from the current
// directory and writes the two fixed output files, nothing else.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	WindowSize int    `yaml:"window_size"`
	Training   struct {
		Epochs       int     `yaml:"epochs"`
		BatchSize    int     `yaml:"batch_size"`
		LearningRate float64 `yaml:"learning_rate"`
		Seed         int64   `yaml:"seed"`
		TestRatio    float64 `yaml:"test_ratio"`
	} `yaml:"training"`
	Output struct {
		Artifact string `yaml:"artifact"`
		Labels   string `yaml:"labels"`
	} `yaml:"output"`
	Registry struct {
		Path string `yaml:"path"`
	} `yaml:"registry"`
	Monitor struct {
		Port int `yaml:"port"`
	} `yaml:"monitor"`
	Watch struct {
		Enabled         bool `yaml:"enabled"`
		DebounceSeconds int  `yaml:"debounce_seconds"`
	} `yaml:"watch"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	dataDir := flag.String("data_dir", "", "directory with accelerometer CSV files")
	windowSize := flag.Int("window_size", 0, "samples per training window")
	epochs := flag.Int("epochs", 0, "training epochs")
	batchSize := flag.Int("batch_size", 0, "minibatch size")
	learningRate := flag.Float64("learning_rate", 0, "Adam learning rate")
	seed := flag.Int64("seed", 0, "random seed for split and init")
	testRatio := flag.Float64("test_ratio", 0, "held-out fraction")
	artifactPath := flag.String("artifact", "", "artifact output path")
	labelsPath := flag.String("labels", "", "label sidecar output path")
	registryPath := flag.String("registry", "", "SQLite run registry path (empty disables)")
	monitorPort := flag.Int("monitor_port", 0, "WebSocket monitor port (0 disables)")
	watchMode := flag.Bool("watch", false, "retrain when CSV files change")
	logLevel := flag.String("log_level", "", "log level")
	logFile := flag.String("log_file", "", "rotating log file path (empty disables)")
	flag.Parse()

	config := &Config{}
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		config = loaded
	} else if _, err := os.Stat("config.yaml"); err == nil {
		if loaded, err := loadConfig("config.yaml"); err == nil {
			config = loaded
		}
	}

	// Flags override config.
	if *dataDir != "" {
		config.DataDir = *dataDir
	}
	if *windowSize > 0 {
		config.WindowSize = *windowSize
	}
	if *epochs > 0 {
		config.Training.Epochs = *epochs
	}
	if *batchSize > 0 {
		config.Training.BatchSize = *batchSize
	}
	if *learningRate > 0 {
		config.Training.LearningRate = *learningRate
	}
	if *seed != 0 {
		config.Training.Seed = *seed
	}
	if *testRatio > 0 {
		config.Training.TestRatio = *testRatio
	}
	if *artifactPath != "" {
		config.Output.Artifact = *artifactPath
	}
	if *labelsPath != "" {
		config.Output.Labels = *labelsPath
	}
	if *registryPath != "" {
		config.Registry.Path = *registryPath
	}
	if *monitorPort > 0 {
		config.Monitor.Port = *monitorPort
	}
	if *watchMode {
		config.Watch.Enabled = true
	}
	if *logLevel != "" {
		config.Log.Level = *logLevel
	}
	if *logFile != "" {
		config.Log.File = *logFile
	}

	logger, err := logging.New(logging.Options{Level: config.Log.Level, FilePath: config.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fmt.Printf("motiontrain %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *db.RunStore
	if config.Registry.Path != "" {
		store, err = db.Open(config.Registry.Path)
		if err != nil {
			logger.Fatal("failed to open run registry", zap.Error(err))
		}
		defer store.Close()
		logger.Info("run registry open", zap.String("path", config.Registry.Path))
	}

	var hub *monitor.Hub
	if config.Monitor.Port > 0 {
		hub = monitor.NewHub(logger)
		if err := hub.Start(ctx, config.Monitor.Port); err != nil {
			logger.Fatal("failed to start monitor", zap.Error(err))
		}
	}

	cfg := pipeline.Default()
	cfg.DataDir = orDefault(config.DataDir, cfg.DataDir)
	if config.WindowSize > 0 {
		cfg.WindowSize = config.WindowSize
	}
	if config.Training.Epochs > 0 {
		cfg.Epochs = config.Training.Epochs
	}
	if config.Training.BatchSize > 0 {
		cfg.BatchSize = config.Training.BatchSize
	}
	if config.Training.LearningRate > 0 {
		cfg.LearningRate = config.Training.LearningRate
	}
	if config.Training.Seed != 0 {
		cfg.Seed = config.Training.Seed
	}
	if config.Training.TestRatio > 0 {
		cfg.TestRatio = config.Training.TestRatio
	}
	cfg.ArtifactPath = orDefault(config.Output.Artifact, cfg.ArtifactPath)
	cfg.LabelsPath = orDefault(config.Output.Labels, cfg.LabelsPath)

	trainer, err := pipeline.New(cfg, logger, store, hub)
	if err != nil {
		logger.Fatal("failed to build trainer", zap.Error(err))
	}

	if _, err := trainer.Run(ctx); err != nil {
		logger.Fatal("training run failed", zap.Error(err))
	}

	if !config.Watch.Enabled {
		return
	}

	debounce := time.Duration(config.Watch.DebounceSeconds) * time.Second
	watcher, err := watch.New(cfg.DataDir, debounce, logger)
	if err != nil {
		logger.Fatal("failed to start watcher", zap.Error(err))
	}
	logger.Info("watching for new recordings", zap.String("dir", cfg.DataDir))
	err = watcher.Run(ctx, func() {
		if _, err := trainer.Run(ctx); err != nil {
			logger.Error("retrain failed", zap.Error(err))
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Fatal("watcher stopped", zap.Error(err))
	}
	logger.Info("exiting")
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
