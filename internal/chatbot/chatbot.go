// Package chatbot answers free-text questions from an ordered keyword table.
package chatbot

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var responsesYAML []byte

type Rule struct {
	Keyword string `yaml:"keyword"`
	Reply   string `yaml:"reply"`
}

type Bot struct {
	rules    []Rule
	fallback string
}

type table struct {
	Default   string `yaml:"default"`
	Responses []Rule `yaml:"responses"`
}

// New loads the embedded response table.
func New() (*Bot, error) {
	return parse(responsesYAML)
}

func parse(data []byte) (*Bot, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse chatbot responses: %w", err)
	}
	if t.Default == "" {
		return nil, errors.New("parse chatbot responses: missing default reply")
	}
	rules := make([]Rule, 0, len(t.Responses))
	for _, r := range t.Responses {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" || r.Reply == "" {
			return nil, fmt.Errorf("parse chatbot responses: incomplete rule %q", r.Keyword)
		}
		rules = append(rules, Rule{Keyword: kw, Reply: r.Reply})
	}
	return &Bot{rules: rules, fallback: t.Default}, nil
}

// Reply returns the reply of the first rule whose keyword occurs in the
// lower-cased message.
func (b *Bot) Reply(message string) string {
	msg := strings.ToLower(message)
	for _, r := range b.rules {
		if strings.Contains(msg, r.Keyword) {
			return r.Reply
		}
	}
	return b.fallback
}
