package prediction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/thyrocheck/internal/metrics"
	"github.com/Skufu/thyrocheck/internal/reference"
	"github.com/Skufu/thyrocheck/internal/store"
	"github.com/Skufu/thyrocheck/internal/thyroid"
)

type brokenClassifier struct {
	classifyErr error
	probaErr    error
}

func (brokenClassifier) Name() string { return "broken" }

func (b brokenClassifier) Classify(thyroid.PatientRecord) (thyroid.Result, error) {
	if b.classifyErr != nil {
		return thyroid.Result{}, b.classifyErr
	}
	return thyroid.Result{Label: thyroid.LabelPrimaryHyperthyroid, Confidence: 0.9}, nil
}

func (b brokenClassifier) PredictProba(thyroid.PatientRecord) (thyroid.Distribution, error) {
	return nil, b.probaErr
}

type fixture struct {
	svc     *Service
	store   *store.Memory
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	user    *store.User
}

func newFixture(t *testing.T, c thyroid.Classifier) *fixture {
	t.Helper()
	st := store.NewMemory()
	m := metrics.New(prometheus.NewRegistry())
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	u := &store.User{Username: "jane", Email: "jane@example.com", PasswordHash: "x"}
	require.NoError(t, st.CreateUser(context.Background(), u))

	svc := NewService(c, st, reference.MustLoad(), WithLogger(logger), WithMetrics(m))
	return &fixture{svc: svc, store: st, metrics: m, logs: logs, user: u}
}

func hypothyroidRecord() thyroid.PatientRecord {
	return thyroid.PatientRecord{Age: 45, Sex: thyroid.SexFemale, TSH: 10, T3: 90, TT4: 3, T4U: 0.9}
}

func TestPredictWithRules(t *testing.T) {
	f := newFixture(t, thyroid.NewRuleClassifier())
	ctx := context.Background()

	out, err := f.svc.Predict(ctx, f.user.ID, hypothyroidRecord())
	require.NoError(t, err)

	p := out.Prediction
	assert.NotZero(t, p.ID)
	assert.Equal(t, f.user.ID, p.UserID)
	assert.Equal(t, thyroid.LabelPrimaryHypothyroid, p.Label)
	assert.Equal(t, 0.95, p.Confidence)
	assert.Equal(t, "rules", p.Model)
	assert.False(t, p.Fallback)

	require.Len(t, out.Distribution, 4)
	got, ok := out.Distribution.Get(thyroid.LabelPrimaryHypothyroid)
	require.True(t, ok)
	assert.Equal(t, 0.95, got)

	latest, err := f.store.LatestPrediction(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, latest.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Predictions.WithLabelValues("primary_hypothyroid", "rules")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("rules")))
}

func TestPredictFallsBack(t *testing.T) {
	cases := map[string]brokenClassifier{
		"classify fails": {classifyErr: fmt.Errorf("%w: leaf has 3 values", thyroid.ErrModelShape)},
		"proba fails":    {probaErr: thyroid.ErrModelShape},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, c)

			out, err := f.svc.Predict(context.Background(), f.user.ID, hypothyroidRecord())
			require.NoError(t, err)

			assert.Equal(t, thyroid.LabelNegative, out.Prediction.Label)
			assert.Equal(t, 0.8, out.Prediction.Confidence)
			assert.True(t, out.Prediction.Fallback)
			assert.Equal(t, "broken", out.Prediction.Model)
			assert.Empty(t, out.Distribution)

			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("broken")))
			assert.Contains(t, f.logs.String(), `"level":"WARN"`)
			assert.Contains(t, f.logs.String(), "unexpected model shape")

			stored, err := f.store.LatestPrediction(context.Background(), f.user.ID)
			require.NoError(t, err)
			assert.True(t, stored.Fallback)
		})
	}
}

type failingStore struct {
	*store.Memory
}

func (failingStore) SavePrediction(context.Context, *store.Prediction) error {
	return errors.New("disk full")
}

func TestPredictStoreError(t *testing.T) {
	svc := NewService(thyroid.NewRuleClassifier(), failingStore{store.NewMemory()}, reference.MustLoad())
	_, err := svc.Predict(context.Background(), 1, hypothyroidRecord())
	assert.ErrorContains(t, err, "disk full")
}

func TestHistoryLimits(t *testing.T) {
	f := newFixture(t, thyroid.NewRuleClassifier())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Predict(ctx, f.user.ID, hypothyroidRecord())
		require.NoError(t, err)
	}

	all, err := f.svc.History(ctx, f.user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := f.svc.History(ctx, f.user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
	assert.Equal(t, all[0].ID, one[0].ID)

	capped, err := f.svc.History(ctx, f.user.ID, 5000)
	require.NoError(t, err)
	assert.Len(t, capped, 3)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, thyroid.NewRuleClassifier())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.svc.Predict(ctx, f.user.ID, hypothyroidRecord())
		require.NoError(t, err)
		_, err = f.svc.AddHealthRecord(ctx, f.user.ID, "", fmt.Sprintf("note %d", i), "")
		require.NoError(t, err)
	}

	d, err := f.svc.Dashboard(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, d.Predictions, 5)
	require.Len(t, d.HealthRecords, 5)
	assert.Equal(t, "note 6", d.HealthRecords[0].Title)
}

func TestDiet(t *testing.T) {
	f := newFixture(t, thyroid.NewRuleClassifier())
	ctx := context.Background()

	advice, err := f.svc.Diet(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, reference.ConditionNone, advice.Condition)
	assert.Empty(t, advice.Plans)

	rec := hypothyroidRecord()
	rec.Pregnant = true
	_, err = f.svc.Predict(ctx, f.user.ID, rec)
	require.NoError(t, err)

	advice, err = f.svc.Diet(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, reference.ConditionHypothyroid, advice.Condition)
	assert.True(t, advice.Pregnant)
	assert.Len(t, advice.Plans, 2)

	_, err = f.svc.Predict(ctx, f.user.ID, thyroid.PatientRecord{Age: 30, Sex: thyroid.SexMale, TSH: 2, T3: 120, TT4: 8, T4U: 1})
	require.NoError(t, err)

	advice, err = f.svc.Diet(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, reference.ConditionNormal, advice.Condition)
	assert.False(t, advice.Pregnant)
	assert.Empty(t, advice.Plans)
}

func TestAddHealthRecord(t *testing.T) {
	f := newFixture(t, thyroid.NewRuleClassifier())
	ctx := context.Background()

	r, err := f.svc.AddHealthRecord(ctx, f.user.ID, "", "  ", "From clinic")
	require.NoError(t, err)
	assert.Equal(t, store.RecordLabResult, r.RecordType)
	assert.Equal(t, "Health Record", r.Title)
	assert.NotZero(t, r.ID)

	r, err = f.svc.AddHealthRecord(ctx, f.user.ID, "medication", "Levothyroxine", "")
	require.NoError(t, err)
	assert.Equal(t, store.RecordMedication, r.RecordType)

	_, err = f.svc.AddHealthRecord(ctx, f.user.ID, "x-ray", "Chest", "")
	assert.ErrorIs(t, err, ErrInvalidRecordType)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t, thyroid.NewRuleClassifier())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.svc.Predict(ctx, f.user.ID, hypothyroidRecord())
		require.NoError(t, err)
	}
	require.NoError(t, f.store.CreateUser(ctx, &store.User{Username: "kai", Email: "kai@example.com", PasswordHash: "x"}))

	stats, err := f.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 12, stats.TotalPredictions)
	assert.Len(t, stats.RecentPredictions, 10)
	require.Len(t, stats.RecentUsers, 2)
	assert.Equal(t, "kai", stats.RecentUsers[0].Username)
}
