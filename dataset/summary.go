package dataset

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// AxisSummary describes one accelerometer channel across all recordings.
type AxisSummary struct {
	Axis   string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

var axisNames = [NumAxes]string{"X", "Y", "Z"}

// Summarize computes per-axis statistics over every sample of every
// recording. Useful as a pre-training sanity check on sensor ranges.
func Summarize(recs []Recording) ([]AxisSummary, error) {
	total := 0
	for _, rec := range recs {
		total += len(rec.Samples)
	}
	if total == 0 {
		return nil, fmt.Errorf("no samples to summarize")
	}

	out := make([]AxisSummary, NumAxes)
	for axis := 0; axis < NumAxes; axis++ {
		values := make([]float64, 0, total)
		for _, rec := range recs {
			for _, sample := range rec.Samples {
				values = append(values, float64(sample[axis]))
			}
		}

		min, err := stats.Min(values)
		if err != nil {
			return nil, err
		}
		max, err := stats.Max(values)
		if err != nil {
			return nil, err
		}
		mean, err := stats.Mean(values)
		if err != nil {
			return nil, err
		}
		sd, err := stats.StandardDeviation(values)
		if err != nil {
			return nil, err
		}

		out[axis] = AxisSummary{
			Axis:   axisNames[axis],
			Count:  len(values),
			Min:    min,
			Max:    max,
			Mean:   mean,
			StdDev: sd,
		}
	}
	return out, nil
}
