// Package metrics holds the Prometheus collectors for prediction and
// hospital lookups. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Predictions      *prometheus.CounterVec
	Fallbacks        *prometheus.CounterVec
	ClassifyDuration *prometheus.HistogramVec
	HospitalCache    *prometheus.CounterVec
	HospitalUpstream *prometheus.CounterVec
}

// New registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thyrocheck_predictions_total",
			Help: "Stored predictions by label and classifier",
		}, []string{"label", "model"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thyrocheck_classifier_fallbacks_total",
			Help: "Classifier failures answered with the fallback result",
		}, []string{"model"}),
		ClassifyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thyrocheck_classify_duration_seconds",
			Help:    "Duration of a single classification",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"model"}),
		HospitalCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thyrocheck_hospital_cache_total",
			Help: "Hospital search cache lookups by result",
		}, []string{"result"}),
		HospitalUpstream: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thyrocheck_hospital_upstream_errors_total",
			Help: "Failed geocoding or hospital search calls",
		}, []string{"stage"}),
	}
}

func (m *Metrics) IncPrediction(label, model string) {
	if m == nil {
		return
	}
	m.Predictions.WithLabelValues(label, model).Inc()
}

func (m *Metrics) IncFallback(model string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(model).Inc()
}

// ObserveClassify records time since start.
func (m *Metrics) ObserveClassify(model string, start time.Time) {
	if m == nil {
		return
	}
	m.ClassifyDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.HospitalCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.HospitalCache.WithLabelValues("miss").Inc()
}

// UpstreamError counts a failed Nominatim call; stage is "geocode" or "search".
func (m *Metrics) UpstreamError(stage string) {
	if m == nil {
		return
	}
	m.HospitalUpstream.WithLabelValues(stage).Inc()
}
