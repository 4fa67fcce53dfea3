package thyroid

import "errors"

// ErrModelShape reports a loaded model that cannot answer for a record.
var ErrModelShape = errors.New("unexpected model shape")

// Classifier maps a patient record to a diagnostic label. Rule-based and
// trained implementations are interchangeable behind it.
type Classifier interface {
	// Name identifies the implementation in logs, metrics and stored results.
	Name() string
	// Classify returns a point estimate.
	Classify(rec PatientRecord) (Result, error)
	// PredictProba returns a probability per class in the classifier's class order.
	PredictProba(rec PatientRecord) (Distribution, error)
}

const (
	fallbackLabel      = LabelNegative
	fallbackConfidence = 0.8
)

// Fallback is the constant result used when a classifier cannot answer.
func Fallback() Result {
	return Result{Label: fallbackLabel, Confidence: fallbackConfidence}
}
