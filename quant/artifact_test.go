package quant

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestArtifactEncodeDecodeRoundTrip(t *testing.T) {
	m, rep := trainedModel(t)
	art, err := Quantize(m, rep)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	payload, err := art.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if back.InputShape != art.InputShape || back.NumClasses != art.NumClasses {
		t.Fatalf("header mismatch: %+v vs %+v", back.InputShape, art.InputShape)
	}
	if len(back.Ops) != len(art.Ops) {
		t.Fatalf("op count mismatch: %d vs %d", len(back.Ops), len(art.Ops))
	}
	for i := range art.Ops {
		a, b := art.Ops[i], back.Ops[i]
		if a.Type != b.Type || a.ReLU != b.ReLU || a.Out != b.Out || a.Kernel != b.Kernel {
			t.Fatalf("op %d metadata mismatch: %+v vs %+v", i, a, b)
		}
		if !bytes.Equal(int8Bytes(a.Weights), int8Bytes(b.Weights)) {
			t.Fatalf("op %d weights mismatch", i)
		}
		if len(a.Bias) != len(b.Bias) {
			t.Fatalf("op %d bias length mismatch", i)
		}
		for j := range a.Bias {
			if a.Bias[j] != b.Bias[j] {
				t.Fatalf("op %d bias %d mismatch: %d vs %d", i, j, a.Bias[j], b.Bias[j])
			}
		}
		if a.Input.ZeroPoint != b.Input.ZeroPoint || a.Output.ZeroPoint != b.Output.ZeroPoint {
			t.Fatalf("op %d quant params mismatch", i)
		}
	}
	if back.ParamCount() != art.ParamCount() {
		t.Fatalf("param count changed across round trip")
	}
}

func int8Bytes(values []int8) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v)
	}
	return out
}

func TestArtifactFileRoundTrip(t *testing.T) {
	m, rep := trainedModel(t)
	art, err := Quantize(m, rep)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	path := filepath.Join(t.TempDir(), "classifier_3x25x1_1dcnn_int8.tflite")
	if err := art.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if back.NumClasses != art.NumClasses || len(back.Ops) != len(art.Ops) {
		t.Fatalf("file round trip lost data")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an artifact")); err == nil {
		t.Fatal("expected error for bad magic")
	}
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestAnalyzeOutput(t *testing.T) {
	m, rep := trainedModel(t)
	art, err := Quantize(m, rep)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	var buf bytes.Buffer
	art.Analyze(&buf)
	out := buf.String()
	for _, want := range []string{"CONV_1D", "MAX_POOL_1D", "FULLY_CONNECTED", "SOFTMAX", "Total quantized parameters"} {
		if !strings.Contains(out, want) {
			t.Fatalf("analysis missing %q:\n%s", want, out)
		}
	}
}
