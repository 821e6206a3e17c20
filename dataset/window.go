package dataset

// NumAxes is the number of accelerometer channels per sample.
const NumAxes = 3

// DefaultWindowSize matches the model input shape (3, 25, 1).
const DefaultWindowSize = 25

// Window is one training example: a channel-major flattening of a
// window_size run of (X, Y, Z) samples. Layout is all X values, then all Y,
// then all Z, which is the (3, window, 1) tensor the model consumes.
type Window []float32

// MakeWindows slides a stride-1 window over every recording and replicates
// the recording's label onto each window. A recording shorter than the
// window contributes nothing; such recordings are returned in dropped so
// the caller can surface the gap. For a recording of n samples the window
// count is max(0, n-size+1).
func MakeWindows(recs []Recording, size int) (x []Window, y []string, dropped []string) {
	if size <= 0 {
		size = DefaultWindowSize
	}

	for _, rec := range recs {
		n := len(rec.Samples)
		if n < size {
			dropped = append(dropped, rec.Path)
			continue
		}
		for start := 0; start <= n-size; start++ {
			w := make(Window, NumAxes*size)
			for axis := 0; axis < NumAxes; axis++ {
				for t := 0; t < size; t++ {
					w[axis*size+t] = rec.Samples[start+t][axis]
				}
			}
			x = append(x, w)
			y = append(y, rec.Label)
		}
	}
	return x, y, dropped
}

// Float64 converts a window to the float64 vector the trainer consumes.
func (w Window) Float64() []float64 {
	out := make([]float64, len(w))
	for i, v := range w {
		out[i] = float64(v)
	}
	return out
}
