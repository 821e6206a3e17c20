package ml

import "fmt"

// Tensor is one named activation captured during an inference pass.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

func flatten(seq [][]float64) []float64 {
	if len(seq) == 0 {
		return nil
	}
	out := make([]float64, 0, len(seq)*len(seq[0]))
	for _, row := range seq {
		out = append(out, row...)
	}
	return out
}

// Activations runs an eval-mode forward pass and returns every
// intermediate tensor in execution order. The quantizer calibrates
// activation ranges from these.
func (m *CNN) Activations(x []float64) ([]Tensor, error) {
	if err := m.checkInput(x); err != nil {
		return nil, err
	}

	tensors := []Tensor{{Name: "input", Shape: []int{m.InputLen, 1}, Data: append([]float64(nil), x...)}}
	record := func(name string, seq [][]float64) {
		channels := 0
		if len(seq) > 0 {
			channels = len(seq[0])
		}
		tensors = append(tensors, Tensor{Name: name, Shape: []int{len(seq), channels}, Data: flatten(seq)})
	}

	h := toSequence(x)
	for i, conv := range m.Convs {
		h = conv.Forward(h, false)
		record(fmt.Sprintf("conv%d", i+1), h)
		if i < len(m.Pools) {
			h = m.Pools[i].Forward(h, false)
			record(fmt.Sprintf("pool%d", i+1), h)
		}
	}

	v := m.GAP.Forward(h, false)
	tensors = append(tensors, Tensor{Name: "gap", Shape: []int{len(v)}, Data: append([]float64(nil), v...)})

	v = m.Hidden.Forward(v, false)
	tensors = append(tensors, Tensor{Name: "dense1", Shape: []int{len(v)}, Data: append([]float64(nil), v...)})

	logits := m.Out.Forward(v, false)
	tensors = append(tensors, Tensor{Name: "logits", Shape: []int{len(logits)}, Data: append([]float64(nil), logits...)})

	probs := Softmax(logits)
	tensors = append(tensors, Tensor{Name: "probs", Shape: []int{len(probs)}, Data: probs})
	return tensors, nil
}
