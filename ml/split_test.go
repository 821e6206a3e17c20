package ml

import "testing"

func TestStratifiedSplitProportions(t *testing.T) {
	var x [][]float64
	var y []int
	for i := 0; i < 100; i++ {
		x = append(x, []float64{float64(i)})
		y = append(y, 0)
	}
	for i := 0; i < 50; i++ {
		x = append(x, []float64{float64(i) + 1000})
		y = append(y, 1)
	}

	trainX, trainY, testX, testY, err := StratifiedSplit(x, y, 0.2, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trainX) != len(trainY) || len(testX) != len(testY) {
		t.Fatal("length mismatch between samples and labels")
	}
	if len(trainX)+len(testX) != 150 {
		t.Fatalf("samples lost: %d train + %d test", len(trainX), len(testX))
	}

	counts := func(labels []int) map[int]int {
		c := make(map[int]int)
		for _, l := range labels {
			c[l]++
		}
		return c
	}
	testCounts := counts(testY)
	if testCounts[0] != 20 {
		t.Fatalf("expected 20 test samples of class 0, got %d", testCounts[0])
	}
	if testCounts[1] != 10 {
		t.Fatalf("expected 10 test samples of class 1, got %d", testCounts[1])
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	var x [][]float64
	var y []int
	for i := 0; i < 40; i++ {
		x = append(x, []float64{float64(i)})
		y = append(y, i%2)
	}

	_, _, testXA, _, err := StratifiedSplit(x, y, 0.2, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, testXB, _, err := StratifiedSplit(x, y, 0.2, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(testXA) != len(testXB) {
		t.Fatalf("test sizes differ: %d vs %d", len(testXA), len(testXB))
	}
	for i := range testXA {
		if testXA[i][0] != testXB[i][0] {
			t.Fatalf("split not deterministic at %d: %v vs %v", i, testXA[i][0], testXB[i][0])
		}
	}
}

func TestStratifiedSplitKeepsTinyClassesInTrain(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}, {5}}
	y := []int{0, 0, 0, 0, 1}

	trainX, trainY, _, _, err := StratifiedSplit(x, y, 0.2, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, l := range trainY {
		if l == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("singleton class missing from train set: %v", trainY)
	}
	if len(trainX) == 0 {
		t.Fatal("empty train set")
	}
}

func TestStratifiedSplitValidation(t *testing.T) {
	if _, _, _, _, err := StratifiedSplit(nil, nil, 0.2, 42); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, _, _, _, err := StratifiedSplit([][]float64{{1}}, []int{0, 1}, 0.2, 42); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}
