package db

import (
	"context"
	"path/filepath"
	"testing"

	"motiontrain/ml"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "/data/accel")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	history := ml.History{Epochs: []ml.EpochMetrics{
		{Epoch: 1, Loss: 1.1, Accuracy: 0.4, ValLoss: 1.2, ValAccuracy: 0.35},
		{Epoch: 2, Loss: 0.7, Accuracy: 0.7, ValLoss: 0.8, ValAccuracy: 0.65},
		{Epoch: 3, Loss: 0.4, Accuracy: 0.9, ValLoss: 0.5, ValAccuracy: 0.85},
	}}
	if err := store.RecordEpochs(ctx, runID, history); err != nil {
		t.Fatalf("record epochs: %v", err)
	}
	if err := store.FinishRun(ctx, runID, 4, 120, 3, 0.85, "classifier_3x25x1_1dcnn_int8.tflite"); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != "done" || run.Files != 4 || run.Windows != 120 || run.Classes != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.TestAccuracy != 0.85 {
		t.Fatalf("expected accuracy 0.85, got %v", run.TestAccuracy)
	}

	metrics, err := store.EpochMetrics(ctx, runID)
	if err != nil {
		t.Fatalf("epoch metrics: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("expected 3 epochs, got %d", len(metrics))
	}
	if metrics[0].Epoch != 1 || metrics[2].ValAccuracy != 0.85 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestFailRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, ".")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.FailRun(ctx, runID); err != nil {
		t.Fatalf("fail run: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if runs[0].Status != "failed" {
		t.Fatalf("expected failed status, got %q", runs[0].Status)
	}
}

func TestRecentRunsOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, _ := store.CreateRun(ctx, "a")
	second, _ := store.CreateRun(ctx, "b")

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("expected newest first, got %+v", runs)
	}
}
