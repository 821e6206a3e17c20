package dataset

import (
	"path/filepath"
	"testing"
)

func TestLabelFromFilename(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"Andres_sitting.csv", "sitting"},
		{"nounderscore.csv", "nounderscore"},
		{"/data/Maria_walking_fast.csv", "walking_fast"},
		{"a_b.csv", "b"},
	}
	for _, tc := range cases {
		if got := LabelFromFilename(tc.path); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestLabelCodecOrdering(t *testing.T) {
	codec, err := NewLabelCodec([]string{"walking", "sitting", "running", "walking", "sitting"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	classes := codec.Classes()
	want := []string{"running", "sitting", "walking"}
	if len(classes) != len(want) {
		t.Fatalf("expected %d classes, got %d", len(want), len(classes))
	}
	for i := range want {
		if classes[i] != want[i] {
			t.Fatalf("class %d: expected %q, got %q", i, want[i], classes[i])
		}
	}
	if idx, _ := codec.Encode("running"); idx != 0 {
		t.Fatalf("expected running=0, got %d", idx)
	}
	if idx, _ := codec.Encode("walking"); idx != 2 {
		t.Fatalf("expected walking=2, got %d", idx)
	}
}

func TestLabelCodecRoundTrip(t *testing.T) {
	labels := []string{"walking", "sitting", "running", "sitting"}
	codec, err := NewLabelCodec(labels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, label := range labels {
		idx, err := codec.Encode(label)
		if err != nil {
			t.Fatalf("encode %q: %v", label, err)
		}
		back, err := codec.Decode(idx)
		if err != nil {
			t.Fatalf("decode %d: %v", idx, err)
		}
		if back != label {
			t.Fatalf("round trip %q -> %d -> %q", label, idx, back)
		}
	}
}

func TestLabelCodecUnknownAndRange(t *testing.T) {
	codec, err := NewLabelCodec([]string{"sit"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := codec.Encode("fly"); err == nil {
		t.Fatal("expected error for unknown label")
	}
	if _, err := codec.Decode(1); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	if _, err := NewLabelCodec(nil); err == nil {
		t.Fatal("expected error for empty label set")
	}
}

func TestLabelSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classifier_labels.json")

	codec, err := NewLabelCodec([]string{"walking", "sitting", "running"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := codec.WriteSidecar(path); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	loaded, err := ReadSidecar(path)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if loaded.NumClasses() != 3 {
		t.Fatalf("expected 3 classes, got %d", loaded.NumClasses())
	}
	// Ordering must be reproducible from the sidecar alone.
	for i, class := range codec.Classes() {
		got, err := loaded.Decode(i)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if got != class {
			t.Fatalf("index %d: expected %q, got %q", i, class, got)
		}
	}
}
