package quant

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// OpType identifies one operation in the artifact graph.
type OpType uint8

const (
	OpConv1D OpType = iota + 1
	OpMaxPool
	OpGlobalAvgPool
	OpDense
	OpSoftmax
)

func (t OpType) String() string {
	switch t {
	case OpConv1D:
		return "CONV_1D"
	case OpMaxPool:
		return "MAX_POOL_1D"
	case OpGlobalAvgPool:
		return "AVERAGE_POOL_1D"
	case OpDense:
		return "FULLY_CONNECTED"
	case OpSoftmax:
		return "SOFTMAX"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Op is one quantized operation with its tensor parameters.
type Op struct {
	Type   OpType
	ReLU   bool
	In     int
	Out    int
	Kernel int
	Pool   int

	// Output tensor geometry, recorded for analysis.
	OutLen int
	OutCh  int

	Input       QParams
	Output      QParams
	WeightScale float64
	Weights     []int8
	Bias        []int32
}

// Artifact is the serialized int8 model: integer input and output tensors,
// an op list, and the quantization parameters the runtime needs.
type Artifact struct {
	InputShape         [3]int
	NumClasses         int
	CalibrationSamples int
	Input              QParams
	Output             QParams
	Ops                []Op
}

var artifactMagic = [4]byte{'M', 'T', 'Q', '1'}

const artifactVersion = uint16(1)

func writeQP(w io.Writer, qp QParams) error {
	if err := binary.Write(w, binary.LittleEndian, float32(qp.Scale)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int32(qp.ZeroPoint))
}

func readQP(r io.Reader) (QParams, error) {
	var scale float32
	var zp int32
	if err := binary.Read(r, binary.LittleEndian, &scale); err != nil {
		return QParams{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &zp); err != nil {
		return QParams{}, err
	}
	return QParams{Scale: float64(scale), ZeroPoint: int(zp)}, nil
}

// Encode serializes the artifact to its little-endian binary form.
func (a *Artifact) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(artifactMagic[:])
	if err := binary.Write(&buf, binary.LittleEndian, artifactVersion); err != nil {
		return nil, err
	}

	header := []uint32{
		uint32(a.InputShape[0]), uint32(a.InputShape[1]), uint32(a.InputShape[2]),
		uint32(a.NumClasses), uint32(a.CalibrationSamples),
	}
	for _, v := range header {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := writeQP(&buf, a.Input); err != nil {
		return nil, err
	}
	if err := writeQP(&buf, a.Output); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(a.Ops))); err != nil {
		return nil, err
	}
	for _, op := range a.Ops {
		relu := uint8(0)
		if op.ReLU {
			relu = 1
		}
		fixed := []interface{}{
			uint8(op.Type), relu,
			uint32(op.In), uint32(op.Out), uint32(op.Kernel), uint32(op.Pool),
			uint32(op.OutLen), uint32(op.OutCh),
		}
		for _, v := range fixed {
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				return nil, err
			}
		}
		if err := writeQP(&buf, op.Input); err != nil {
			return nil, err
		}
		if err := writeQP(&buf, op.Output); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, float32(op.WeightScale)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(op.Weights))); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, op.Weights); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(op.Bias))); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, op.Bias); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// WriteFile persists the artifact. The write is a plain truncate-and-write,
// matching the tool's one-shot contract.
func (a *Artifact) WriteFile(path string) error {
	payload, err := a.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// Decode parses a serialized artifact.
func Decode(payload []byte) (*Artifact, error) {
	r := bytes.NewReader(payload)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != artifactMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", version)
	}

	var header [5]uint32
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, err
		}
	}
	art := &Artifact{
		InputShape:         [3]int{int(header[0]), int(header[1]), int(header[2])},
		NumClasses:         int(header[3]),
		CalibrationSamples: int(header[4]),
	}
	var err error
	if art.Input, err = readQP(r); err != nil {
		return nil, err
	}
	if art.Output, err = readQP(r); err != nil {
		return nil, err
	}

	var opCount uint32
	if err := binary.Read(r, binary.LittleEndian, &opCount); err != nil {
		return nil, err
	}
	for i := uint32(0); i < opCount; i++ {
		var opType, relu uint8
		var fixed [6]uint32
		if err := binary.Read(r, binary.LittleEndian, &opType); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &relu); err != nil {
			return nil, err
		}
		for j := range fixed {
			if err := binary.Read(r, binary.LittleEndian, &fixed[j]); err != nil {
				return nil, err
			}
		}
		op := Op{
			Type: OpType(opType), ReLU: relu == 1,
			In: int(fixed[0]), Out: int(fixed[1]), Kernel: int(fixed[2]), Pool: int(fixed[3]),
			OutLen: int(fixed[4]), OutCh: int(fixed[5]),
		}
		if op.Input, err = readQP(r); err != nil {
			return nil, err
		}
		if op.Output, err = readQP(r); err != nil {
			return nil, err
		}
		var wScale float32
		if err := binary.Read(r, binary.LittleEndian, &wScale); err != nil {
			return nil, err
		}
		op.WeightScale = float64(wScale)

		var wCount uint32
		if err := binary.Read(r, binary.LittleEndian, &wCount); err != nil {
			return nil, err
		}
		op.Weights = make([]int8, wCount)
		if err := binary.Read(r, binary.LittleEndian, &op.Weights); err != nil {
			return nil, err
		}
		var bCount uint32
		if err := binary.Read(r, binary.LittleEndian, &bCount); err != nil {
			return nil, err
		}
		op.Bias = make([]int32, bCount)
		if err := binary.Read(r, binary.LittleEndian, &op.Bias); err != nil {
			return nil, err
		}
		art.Ops = append(art.Ops, op)
	}
	return art, nil
}

// ReadFile loads an artifact from disk.
func ReadFile(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}

// ParamCount is the number of quantized weights and biases.
func (a *Artifact) ParamCount() int {
	total := 0
	for _, op := range a.Ops {
		total += len(op.Weights) + len(op.Bias)
	}
	return total
}

// Analyze writes a human-readable op breakdown: the artifact counterpart of
// a converter's op analysis dump.
func (a *Artifact) Analyze(w io.Writer) {
	fmt.Fprintf(w, "Artifact: input %dx%dx%d int8, %d classes, calibrated on %d samples\n",
		a.InputShape[0], a.InputShape[1], a.InputShape[2], a.NumClasses, a.CalibrationSamples)
	fmt.Fprintf(w, "Input  quant: scale=%.6f zero_point=%d\n", a.Input.Scale, a.Input.ZeroPoint)
	fmt.Fprintf(w, "Output quant: scale=%.6f zero_point=%d\n", a.Output.Scale, a.Output.ZeroPoint)
	fmt.Fprintln(w, "Ops:")
	for i, op := range a.Ops {
		detail := ""
		switch op.Type {
		case OpConv1D:
			detail = fmt.Sprintf("filters=%d kernel=%d relu=%v", op.Out, op.Kernel, op.ReLU)
		case OpMaxPool:
			detail = fmt.Sprintf("pool=%d", op.Pool)
		case OpDense:
			detail = fmt.Sprintf("units=%d relu=%v", op.Out, op.ReLU)
		}
		weightBytes := len(op.Weights) + 4*len(op.Bias)
		fmt.Fprintf(w, "  %2d: %-17s out=%dx%d %s", i, op.Type, op.OutLen, op.OutCh, detail)
		if weightBytes > 0 {
			fmt.Fprintf(w, " (%d weight bytes)", weightBytes)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total quantized parameters: %d\n", a.ParamCount())
}
