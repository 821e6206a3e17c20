package ml

import (
	"fmt"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions samples into train and test sets while
// preserving per-class proportions. The split is deterministic for a given
// seed. testRatio outside (0,1) falls back to 0.2.
func StratifiedSplit(x [][]float64, y []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	if len(x) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("no samples to split")
	}
	if len(x) != len(y) {
		return nil, nil, nil, nil, fmt.Errorf("samples/labels mismatch: %d vs %d", len(x), len(y))
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for label := range byClass {
		classes = append(classes, label)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, label := range classes {
		indices := byClass[label]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nTest := int(float64(len(indices))*testRatio + 0.5)
		if nTest >= len(indices) {
			nTest = len(indices) - 1
		}

		for i, idx := range indices {
			if i < nTest {
				testX = append(testX, x[idx])
				testY = append(testY, y[idx])
			} else {
				trainX = append(trainX, x[idx])
				trainY = append(trainY, y[idx])
			}
		}
	}

	// Interleave classes in the train set so early batches are not
	// single-class runs. Epoch shuffling handles the rest.
	perm := rng.Perm(len(trainX))
	shufX := make([][]float64, len(trainX))
	shufY := make([]int, len(trainY))
	for i, p := range perm {
		shufX[i] = trainX[p]
		shufY[i] = trainY[p]
	}
	return shufX, shufY, testX, testY, nil
}
