package thyroid

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Load picks the classifier for the process. An empty path selects the rule
// classifier. A missing or unusable model file is logged and also falls back
// to the rules, so startup never fails on the model.
func Load(path string, logger *slog.Logger) Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		logger.Info("using rule-based classifier")
		return NewRuleClassifier()
	}

	forest, err := LoadForest(path)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, fs.ErrNotExist) {
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, "model unavailable, using rule-based classifier",
			"path", path, "error", err)
		return NewRuleClassifier()
	}

	logger.Info("loaded trained classifier",
		"path", path,
		"classes", len(forest.model.Classes),
		"trees", len(forest.model.Trees))
	return forest
}

// LoadForest reads a model export from disk.
func LoadForest(path string) (*ForestClassifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return ParseForest(f)
}
