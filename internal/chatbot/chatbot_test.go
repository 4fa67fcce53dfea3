package chatbot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply(t *testing.T) {
	bot, err := New()
	require.NoError(t, err)

	tests := []struct {
		name    string
		message string
		prefix  string
	}{
		{name: "greeting", message: "Hello there", prefix: "Hello! I'm your thyroid health assistant"},
		{name: "case insensitive", message: "WHAT ARE THE SYMPTOMS", prefix: "Common thyroid symptoms"},
		{name: "earlier keyword wins", message: "hello, what symptoms should I watch?", prefix: "Hello!"},
		{name: "test before tsh", message: "is a tsh test enough", prefix: "Thyroid tests typically"},
		{name: "hospital", message: "nearest hospital please", prefix: "I can help you find nearby hospitals"},
		{name: "tsh", message: "what is tsh", prefix: "TSH (Thyroid Stimulating Hormone)"},
		{name: "t4", message: "my t4 is low", prefix: "T4 (Thyroxine)"},
		{name: "hyperthyroid", message: "hyperthyroid signs", prefix: "Hyperthyroidism occurs"},
		{name: "default", message: "good morning", prefix: "I'm here to help with thyroid health questions."},
		{name: "empty", message: "", prefix: "I'm here to help"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bot.Reply(tt.message)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Fatalf("Reply(%q) = %q, want prefix %q", tt.message, got, tt.prefix)
			}
		})
	}
}

func TestKeywordOrder(t *testing.T) {
	bot, err := New()
	require.NoError(t, err)

	var keywords []string
	for _, r := range bot.rules {
		keywords = append(keywords, r.Keyword)
	}
	assert.Equal(t, []string{
		"hello", "symptoms", "test", "diet", "hospital", "help",
		"tsh", "t3", "t4", "hypothyroid", "hyperthyroid",
	}, keywords)
}

func TestParseRejectsBadTables(t *testing.T) {
	_, err := parse([]byte("responses: []\n"))
	assert.ErrorContains(t, err, "missing default")

	_, err = parse([]byte("default: hi\nresponses:\n  - keyword: tsh\n"))
	assert.ErrorContains(t, err, "incomplete rule")

	_, err = parse([]byte("default: [\n"))
	assert.Error(t, err)
}
