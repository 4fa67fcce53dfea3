package thyroid

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

const leafFeature = -1

// ForestModel is the JSON export of a fitted tree ensemble.
type ForestModel struct {
	Classes      []Label  `json:"classes"`
	FeatureNames []string `json:"feature_names"`
	Trees        []Tree   `json:"trees"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split when Feature >= 0 and a leaf when Feature is -1. Every
// node in an export must carry "feature". Value holds per-class sample counts
// (or weights) at a leaf.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var raw struct {
		Feature *int `json:"feature"`
		plain
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Feature == nil {
		return fmt.Errorf("%w: node has no feature", ErrModelShape)
	}
	*n = Node(raw.plain)
	n.Feature = *raw.Feature
	return nil
}

// ForestClassifier answers with a previously trained ensemble. It holds no
// mutable state after construction.
type ForestClassifier struct {
	model ForestModel
}

// ParseForest decodes and validates a model export.
func ParseForest(r io.Reader) (*ForestClassifier, error) {
	var m ForestModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return NewForestClassifier(m)
}

func NewForestClassifier(m ForestModel) (*ForestClassifier, error) {
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelShape, err)
	}
	return &ForestClassifier{model: m}, nil
}

func (m ForestModel) validate() error {
	if len(m.FeatureNames) != NumFeatures {
		return fmt.Errorf("model has %d features, want %d", len(m.FeatureNames), NumFeatures)
	}
	for i, name := range m.FeatureNames {
		if name != FeatureNames[i] {
			return fmt.Errorf("feature %d is %q, want %q", i, name, FeatureNames[i])
		}
	}
	if len(m.Classes) == 0 {
		return errors.New("model has no classes")
	}
	seen := make(map[Label]bool, len(m.Classes))
	for _, c := range m.Classes {
		if !c.Valid() {
			return fmt.Errorf("unknown class %q", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate class %q", c)
		}
		seen[c] = true
	}
	if len(m.Trees) == 0 {
		return errors.New("model has no trees")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		if err := validateTree(t.Nodes, len(m.Classes)); err != nil {
			return fmt.Errorf("tree %d %w", ti, err)
		}
	}
	return nil
}

func validateTree(nodes []Node, classes int) error {
	for i, n := range nodes {
		switch {
		case n.Feature == leafFeature:
			if err := validateLeaf(n.Value, classes); err != nil {
				return fmt.Errorf("leaf %d %w", i, err)
			}
		case n.Feature < 0 || n.Feature >= NumFeatures:
			return fmt.Errorf("node %d splits on feature %d", i, n.Feature)
		case n.Left < 0 || n.Left >= len(nodes) || n.Right < 0 || n.Right >= len(nodes):
			return fmt.Errorf("node %d references node outside [0,%d)", i, len(nodes))
		}
	}

	// Every path from the root has to end at a leaf.
	const (
		unseen = iota
		onPath
		done
	)
	state := make([]uint8, len(nodes))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case onPath:
			return fmt.Errorf("node %d is part of a cycle", i)
		case done:
			return nil
		}
		if nodes[i].Feature == leafFeature {
			state[i] = done
			return nil
		}
		state[i] = onPath
		if err := visit(nodes[i].Left); err != nil {
			return err
		}
		if err := visit(nodes[i].Right); err != nil {
			return err
		}
		state[i] = done
		return nil
	}
	return visit(0)
}

func validateLeaf(value []float64, classes int) error {
	if len(value) != classes {
		return fmt.Errorf("has %d values, want %d", len(value), classes)
	}
	var total float64
	for _, v := range value {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("has weight %v", v)
		}
		total += v
	}
	if total <= 0 || math.IsInf(total, 0) {
		return fmt.Errorf("has total weight %v", total)
	}
	return nil
}

func (*ForestClassifier) Name() string { return "forest" }

// Classes returns the model's class order.
func (f *ForestClassifier) Classes() []Label {
	return append([]Label(nil), f.model.Classes...)
}

// Predict returns the most probable class; the first class wins a tie.
func (f *ForestClassifier) Predict(features [NumFeatures]float64) Label {
	label, _ := f.argmax(features)
	return label
}

// PredictVector returns the mean per-tree class probabilities in class order.
func (f *ForestClassifier) PredictVector(features [NumFeatures]float64) []float64 {
	proba := make([]float64, len(f.model.Classes))
	for ti := range f.model.Trees {
		leaf := f.walk(ti, features)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		for i, v := range leaf.Value {
			proba[i] += v / total
		}
	}
	n := float64(len(f.model.Trees))
	for i := range proba {
		proba[i] /= n
	}
	return proba
}

// Classify reports the predicted class with its probability as confidence.
func (f *ForestClassifier) Classify(rec PatientRecord) (Result, error) {
	label, p := f.argmax(Features(rec))
	return Result{Label: label, Confidence: p}, nil
}

func (f *ForestClassifier) PredictProba(rec PatientRecord) (Distribution, error) {
	proba := f.PredictVector(Features(rec))
	dist := make(Distribution, len(proba))
	for i, p := range proba {
		dist[i] = Probability{Label: f.model.Classes[i], Probability: p}
	}
	return dist, nil
}

func (f *ForestClassifier) argmax(features [NumFeatures]float64) (Label, float64) {
	proba := f.PredictVector(features)
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return f.model.Classes[best], proba[best]
}

// walk follows splits from the root. Construction guarantees every path ends
// at a leaf.
func (f *ForestClassifier) walk(ti int, x [NumFeatures]float64) Node {
	nodes := f.model.Trees[ti].Nodes
	n := nodes[0]
	for n.Feature != leafFeature {
		if x[n.Feature] <= n.Threshold {
			n = nodes[n.Left]
		} else {
			n = nodes[n.Right]
		}
	}
	return n
}
