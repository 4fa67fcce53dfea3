// Package prediction runs the active classifier for a user, stores the result
// and assembles the views built on stored predictions.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skufu/thyrocheck/internal/metrics"
	"github.com/Skufu/thyrocheck/internal/reference"
	"github.com/Skufu/thyrocheck/internal/store"
	"github.com/Skufu/thyrocheck/internal/thyroid"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	dashboardLimit  = 5
	adminRecentSize = 10

	defaultRecordTitle = "Health Record"
)

var ErrInvalidRecordType = errors.New("invalid record type")

type Service struct {
	classifier thyroid.Classifier
	store      store.Store
	tables     *reference.Tables
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(c thyroid.Classifier, st store.Store, tables *reference.Tables, opts ...Option) *Service {
	s := &Service{classifier: c, store: st, tables: tables, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model names the active classifier.
func (s *Service) Model() string { return s.classifier.Name() }

// Outcome is a stored prediction plus the class distribution behind it.
// Distribution is empty when the fallback result was used.
type Outcome struct {
	Prediction   store.Prediction     `json:"prediction"`
	Distribution thyroid.Distribution `json:"distribution"`
}

// Predict classifies rec for userID and persists the result. A classifier
// error is answered with thyroid.Fallback and never reaches the caller.
func (s *Service) Predict(ctx context.Context, userID int64, rec thyroid.PatientRecord) (*Outcome, error) {
	model := s.classifier.Name()
	start := time.Now()
	res, dist, err := s.classify(rec)
	s.metrics.ObserveClassify(model, start)

	fallback := err != nil
	if fallback {
		s.logger.WarnContext(ctx, "classifier failed, using fallback result",
			"model", model, "user_id", userID, "error", err)
		s.metrics.IncFallback(model)
		res = thyroid.Fallback()
		dist = thyroid.Distribution{}
	}

	p := store.Prediction{
		UserID:     userID,
		Record:     rec,
		Label:      res.Label,
		Confidence: res.Confidence,
		Model:      model,
		Fallback:   fallback,
	}
	if err := s.store.SavePrediction(ctx, &p); err != nil {
		return nil, fmt.Errorf("save prediction: %w", err)
	}
	s.metrics.IncPrediction(string(p.Label), model)

	return &Outcome{Prediction: p, Distribution: dist}, nil
}

func (s *Service) classify(rec thyroid.PatientRecord) (thyroid.Result, thyroid.Distribution, error) {
	res, err := s.classifier.Classify(rec)
	if err != nil {
		return thyroid.Result{}, nil, err
	}
	dist, err := s.classifier.PredictProba(rec)
	if err != nil {
		return thyroid.Result{}, nil, err
	}
	return res, dist, nil
}

// History lists the user's predictions newest first. limit is clamped to
// (0, MaxHistoryLimit]; zero or negative selects DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]store.Prediction, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.store.ListPredictions(ctx, userID, limit)
}

type Dashboard struct {
	Predictions   []store.Prediction   `json:"predictions"`
	HealthRecords []store.HealthRecord `json:"healthRecords"`
}

func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Predictions, err = s.store.ListPredictions(gctx, userID, dashboardLimit)
		return err
	})
	g.Go(func() error {
		var err error
		d.HealthRecords, err = s.store.ListHealthRecords(gctx, userID, dashboardLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}
	return &d, nil
}

// Diet returns advice for the user's latest prediction. Users without
// predictions get an empty condition and no plans.
func (s *Service) Diet(ctx context.Context, userID int64) (reference.DietAdvice, error) {
	latest, err := s.store.LatestPrediction(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.tables.Diet(reference.ConditionNone, false), nil
	}
	if err != nil {
		return reference.DietAdvice{}, fmt.Errorf("latest prediction: %w", err)
	}
	return s.tables.Diet(reference.ConditionFor(latest.Label), latest.Record.Pregnant), nil
}

// AddHealthRecord stores a note for the user. An empty type means lab result
// and an empty title gets a generic one.
func (s *Service) AddHealthRecord(ctx context.Context, userID int64, recordType, title, description string) (*store.HealthRecord, error) {
	rt := store.RecordType(strings.TrimSpace(recordType))
	if rt == "" {
		rt = store.RecordLabResult
	}
	if !rt.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecordType, recordType)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultRecordTitle
	}

	r := &store.HealthRecord{UserID: userID, RecordType: rt, Title: title, Description: description}
	if err := s.store.SaveHealthRecord(ctx, r); err != nil {
		return nil, fmt.Errorf("save health record: %w", err)
	}
	return r, nil
}

type AdminStats struct {
	TotalUsers        int                `json:"totalUsers"`
	TotalPredictions  int                `json:"totalPredictions"`
	RecentPredictions []store.Prediction `json:"recentPredictions"`
	RecentUsers       []store.User       `json:"recentUsers"`
}

func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	var st AdminStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalUsers, err = s.store.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.TotalPredictions, err = s.store.CountPredictions(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.RecentPredictions, err = s.store.RecentPredictions(gctx, adminRecentSize)
		return err
	})
	g.Go(func() (err error) {
		st.RecentUsers, err = s.store.RecentUsers(gctx, adminRecentSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load admin stats: %w", err)
	}
	return &st, nil
}
