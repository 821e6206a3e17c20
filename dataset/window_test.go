package dataset

import "testing"

func makeRecording(path, label string, n int) Recording {
	samples := make([][NumAxes]float32, n)
	for i := range samples {
		samples[i] = [NumAxes]float32{float32(i), float32(i) + 0.1, float32(i) + 0.2}
	}
	return Recording{Path: path, Label: label, Samples: samples}
}

func TestMakeWindowsCount(t *testing.T) {
	cases := []struct {
		rows int
		want int
	}{
		{rows: 30, want: 6},
		{rows: 25, want: 1},
		{rows: 24, want: 0},
		{rows: 0, want: 0},
		{rows: 100, want: 76},
	}
	for _, tc := range cases {
		recs := []Recording{makeRecording("a_walk.csv", "walk", tc.rows)}
		x, y, _ := MakeWindows(recs, 25)
		if len(x) != tc.want {
			t.Fatalf("rows=%d: expected %d windows, got %d", tc.rows, tc.want, len(x))
		}
		if len(y) != len(x) {
			t.Fatalf("rows=%d: labels/windows mismatch: %d vs %d", tc.rows, len(y), len(x))
		}
	}
}

func TestMakeWindowsShapeAndLayout(t *testing.T) {
	recs := []Recording{makeRecording("a_walk.csv", "walk", 30)}
	x, _, _ := MakeWindows(recs, 25)
	if len(x) != 6 {
		t.Fatalf("expected 6 windows, got %d", len(x))
	}
	for _, w := range x {
		if len(w) != NumAxes*25 {
			t.Fatalf("expected window length %d, got %d", NumAxes*25, len(w))
		}
	}

	// Third window starts at sample 2. Channel-major: X run, then Y, then Z.
	w := x[2]
	if w[0] != 2 {
		t.Fatalf("expected X[0]=2, got %v", w[0])
	}
	if w[24] != 26 {
		t.Fatalf("expected X[24]=26, got %v", w[24])
	}
	if w[25] != 2.1 {
		t.Fatalf("expected Y[0]=2.1, got %v", w[25])
	}
	if w[50] != 2.2 {
		t.Fatalf("expected Z[0]=2.2, got %v", w[50])
	}
}

func TestMakeWindowsDropsShortRecordings(t *testing.T) {
	recs := []Recording{
		makeRecording("a_walk.csv", "walk", 10),
		makeRecording("b_sit.csv", "sit", 26),
	}
	x, y, dropped := MakeWindows(recs, 25)
	if len(x) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(x))
	}
	for _, label := range y {
		if label != "sit" {
			t.Fatalf("expected every window labeled sit, got %q", label)
		}
	}
	if len(dropped) != 1 || dropped[0] != "a_walk.csv" {
		t.Fatalf("expected a_walk.csv dropped, got %v", dropped)
	}
}

func TestMakeWindowsTotalCount(t *testing.T) {
	recs := []Recording{
		makeRecording("a_walk.csv", "walk", 40),
		makeRecording("b_sit.csv", "sit", 25),
		makeRecording("c_run.csv", "run", 12),
		makeRecording("d_walk.csv", "walk", 60),
	}
	x, _, _ := MakeWindows(recs, 25)
	want := (40 - 24) + 1 + 0 + (60 - 24)
	if len(x) != want {
		t.Fatalf("expected %d total windows, got %d", want, len(x))
	}
}

func TestMakeWindowsReplicatesLabels(t *testing.T) {
	recs := []Recording{makeRecording("a_run.csv", "run", 27)}
	_, y, _ := MakeWindows(recs, 25)
	if len(y) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(y))
	}
	for i, label := range y {
		if label != "run" {
			t.Fatalf("window %d: expected run, got %q", i, label)
		}
	}
}
