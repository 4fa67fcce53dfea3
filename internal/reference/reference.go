// Package reference serves the static hormone catalog and diet tables.
package reference

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/thyrocheck/internal/thyroid"
)

//go:embed tables.yaml
var tablesYAML []byte

// Condition groups classifier labels for diet advice.
type Condition string

const (
	ConditionNone         Condition = ""
	ConditionNormal       Condition = "normal"
	ConditionHypothyroid  Condition = "hypothyroid"
	ConditionHyperthyroid Condition = "hyperthyroid"
)

const pregnantPlan = "pregnant"

type Hormone struct {
	Code        string `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	NormalRange string `yaml:"normal_range" json:"normalRange"`
	Description string `yaml:"description" json:"description"`
	HighMeaning string `yaml:"high_meaning" json:"highMeaning"`
	LowMeaning  string `yaml:"low_meaning" json:"lowMeaning"`
}

type Plan struct {
	General []string `yaml:"general" json:"general"`
	Avoid   []string `yaml:"avoid" json:"avoid"`
}

// DietAdvice is the answer to a diet lookup. Plans holds the condition plan
// first, then the pregnancy plan when it applies.
type DietAdvice struct {
	Condition Condition `json:"condition"`
	Pregnant  bool      `json:"pregnant"`
	Plans     []Plan    `json:"plans"`
}

type Tables struct {
	hormones []Hormone
	diets    map[string]Plan
}

type tablesFile struct {
	Hormones []Hormone       `yaml:"hormones"`
	Diets    map[string]Plan `yaml:"diets"`
}

// Load parses the embedded tables.
func Load() (*Tables, error) {
	return parse(tablesYAML)
}

func parse(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse reference tables: %w", err)
	}
	if len(f.Hormones) == 0 {
		return nil, fmt.Errorf("parse reference tables: no hormones")
	}
	for _, key := range []string{string(ConditionHypothyroid), string(ConditionHyperthyroid), pregnantPlan} {
		if _, ok := f.Diets[key]; !ok {
			return nil, fmt.Errorf("parse reference tables: missing diet %q", key)
		}
	}
	return &Tables{hormones: f.Hormones, diets: f.Diets}, nil
}

// MustLoad is Load for program start-up.
func MustLoad() *Tables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

// Hormones returns the catalog in display order.
func (t *Tables) Hormones() []Hormone {
	return append([]Hormone(nil), t.hormones...)
}

func (t *Tables) Hormone(code string) (Hormone, bool) {
	for _, h := range t.hormones {
		if strings.EqualFold(h.Code, code) {
			return h, true
		}
	}
	return Hormone{}, false
}

// ConditionFor maps a classifier label onto a diet condition.
func ConditionFor(label thyroid.Label) Condition {
	switch {
	case label == thyroid.LabelPrimaryHypothyroid, label == thyroid.LabelCompensatedHypothyroid:
		return ConditionHypothyroid
	case strings.Contains(string(label), "hyper"):
		return ConditionHyperthyroid
	default:
		return ConditionNormal
	}
}

// ParseCondition accepts the condition names used in query strings.
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToLower(strings.TrimSpace(s))); c {
	case ConditionNone, ConditionNormal, ConditionHypothyroid, ConditionHyperthyroid:
		return c, nil
	default:
		return ConditionNone, fmt.Errorf("unknown condition %q", s)
	}
}

// Diet assembles advice for a condition. Normal and empty conditions carry no
// condition plan.
func (t *Tables) Diet(c Condition, pregnant bool) DietAdvice {
	advice := DietAdvice{Condition: c, Pregnant: pregnant, Plans: []Plan{}}
	if p, ok := t.diets[string(c)]; ok {
		advice.Plans = append(advice.Plans, p)
	}
	if pregnant {
		advice.Plans = append(advice.Plans, t.diets[pregnantPlan])
	}
	return advice
}
