package thyroid

import (
	"fmt"
	"strings"
)

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ParseSex accepts the codes data producers send: M/F or male/female, any case.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return SexMale, nil
	case "f", "female":
		return SexFemale, nil
	default:
		return "", fmt.Errorf("unknown sex %q", s)
	}
}

type Label string

const (
	LabelNegative               Label = "negative"
	LabelPrimaryHypothyroid     Label = "primary_hypothyroid"
	LabelCompensatedHypothyroid Label = "compensated_hypothyroid"
	LabelPrimaryHyperthyroid    Label = "primary_hyperthyroid"
)

// Labels lists every label in distribution order.
var Labels = []Label{
	LabelNegative,
	LabelPrimaryHypothyroid,
	LabelCompensatedHypothyroid,
	LabelPrimaryHyperthyroid,
}

func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// PatientRecord is one set of lab values and history flags. Absent flags are false.
// T4U is carried for producers and the statistical model; no rule reads it.
type PatientRecord struct {
	Age float64 `json:"age"`
	Sex Sex     `json:"sex"`
	TSH float64 `json:"tsh"`
	T3  float64 `json:"t3"`
	TT4 float64 `json:"tt4"`
	T4U float64 `json:"t4u"`

	OnThyroxine             bool `json:"onThyroxine"`
	QueryOnThyroxine        bool `json:"queryOnThyroxine"`
	OnAntithyroidMedication bool `json:"onAntithyroidMedication"`
	Sick                    bool `json:"sick"`
	Pregnant                bool `json:"pregnant"`
	ThyroidSurgery          bool `json:"thyroidSurgery"`
	I131Treatment           bool `json:"i131Treatment"`
	QueryHypothyroid        bool `json:"queryHypothyroid"`
	QueryHyperthyroid       bool `json:"queryHyperthyroid"`
	Lithium                 bool `json:"lithium"`
	Goitre                  bool `json:"goitre"`
	Tumor                   bool `json:"tumor"`
	Hypopituitary           bool `json:"hypopituitary"`
	Psych                   bool `json:"psych"`
}

type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Probability struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"`
}

// Distribution is a label-to-probability mapping in a fixed class order.
type Distribution []Probability

// Get returns the probability for label and whether the label is present.
func (d Distribution) Get(label Label) (float64, bool) {
	for _, p := range d {
		if p.Label == label {
			return p.Probability, true
		}
	}
	return 0, false
}
