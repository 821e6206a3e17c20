package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// LabelCodec maps string class labels to dense integer indices and back.
// Index order is the lexicographic sort of the distinct label set; inference
// consumers rebuild the same order from the sidecar file, so it must never
// depend on input ordering.
type LabelCodec struct {
	classes []string
	index   map[string]int
}

// NewLabelCodec builds a codec from the labels attached to each window.
// Duplicates are allowed; at least one label is required.
func NewLabelCodec(labels []string) (*LabelCodec, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to encode")
	}

	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, label := range labels {
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, class := range classes {
		index[class] = i
	}
	return &LabelCodec{classes: classes, index: index}, nil
}

// Encode returns the dense index for a label.
func (c *LabelCodec) Encode(label string) (int, error) {
	idx, ok := c.index[label]
	if !ok {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	return idx, nil
}

// Decode returns the label for a dense index.
func (c *LabelCodec) Decode(idx int) (string, error) {
	if idx < 0 || idx >= len(c.classes) {
		return "", fmt.Errorf("class index %d out of range [0,%d)", idx, len(c.classes))
	}
	return c.classes[idx], nil
}

// EncodeAll encodes a label per window.
func (c *LabelCodec) EncodeAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, label := range labels {
		idx, err := c.Encode(label)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Classes returns the ordered class list.
func (c *LabelCodec) Classes() []string {
	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

// NumClasses returns the class count.
func (c *LabelCodec) NumClasses() int { return len(c.classes) }

// LabelMap is the JSON sidecar written next to the model artifact.
// labels[i] is the class name for model output index i.
type LabelMap struct {
	Labels     []string `json:"labels"`
	NumClasses int      `json:"num_classes"`
}

// WriteSidecar persists the label map as indented JSON.
func (c *LabelCodec) WriteSidecar(path string) error {
	payload, err := json.MarshalIndent(LabelMap{
		Labels:     c.Classes(),
		NumClasses: c.NumClasses(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// ReadSidecar rebuilds a codec from a sidecar file. The stored order is
// trusted as-is since it is the published contract.
func ReadSidecar(path string) (*LabelCodec, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LabelMap
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("parse label sidecar: %w", err)
	}
	if len(m.Labels) == 0 {
		return nil, fmt.Errorf("label sidecar %s has no labels", path)
	}
	if m.NumClasses != len(m.Labels) {
		return nil, fmt.Errorf("label sidecar %s: num_classes=%d but %d labels", path, m.NumClasses, len(m.Labels))
	}

	index := make(map[string]int, len(m.Labels))
	for i, class := range m.Labels {
		index[class] = i
	}
	return &LabelCodec{classes: m.Labels, index: index}, nil
}
