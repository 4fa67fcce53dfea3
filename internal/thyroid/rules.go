package thyroid

// Rule thresholds. TSH in mIU/L, TT4 in ug/dL, T3 in ng/dL.
const (
	tshHigh = 4.0
	tshLow  = 0.4
	tt4Low  = 4.5
	tt4High = 11.2
	t3High  = 200

	negativeConfidence = 0.85
	confidenceFloor    = 0.5

	pregnantFactor    = 0.9
	onThyroxineFactor = 0.95
	sickFactor        = 0.8
)

// RuleClassifier applies fixed hormone thresholds. It is stateless; the zero
// value is ready to use and safe for concurrent callers.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (*RuleClassifier) Name() string { return "rules" }

// Classify never returns an error.
func (c *RuleClassifier) Classify(rec PatientRecord) (Result, error) {
	return c.evaluate(rec), nil
}

// PredictProba puts the point-estimate confidence on the predicted label and
// splits the remainder evenly over the other three. The vector is not
// renormalized.
func (c *RuleClassifier) PredictProba(rec PatientRecord) (Distribution, error) {
	res := c.evaluate(rec)

	dist := make(Distribution, len(Labels))
	for i, label := range Labels {
		dist[i] = Probability{Label: label, Probability: 0.1}
	}
	remaining := 1.0 - res.Confidence
	for i := range dist {
		if dist[i].Label == res.Label {
			dist[i].Probability = res.Confidence
			continue
		}
		dist[i].Probability = remaining / float64(len(dist)-1)
	}
	return dist, nil
}

func (c *RuleClassifier) evaluate(rec PatientRecord) Result {
	label, confidence := baseline(rec)

	if rec.Pregnant {
		confidence *= pregnantFactor
	}
	if rec.OnThyroxine {
		confidence *= onThyroxineFactor
	}
	if rec.Sick {
		confidence *= sickFactor
	}

	return Result{Label: label, Confidence: floorAt(confidenceFloor, confidence)}
}

// baseline picks the first matching branch. Order is the tie-break: the TSH
// ranges of the hyperthyroid branches overlap, so TT4 is tested before T3.
// The hyperthyroid deltas are negative once past the threshold and lower the
// confidence as the reading rises; that arithmetic is intentional.
//
// Products are converted to float64 before the addition so the compiler
// cannot fuse them into a single multiply-add.
func baseline(rec PatientRecord) (Label, float64) {
	tsh, t3, tt4 := rec.TSH, rec.T3, rec.TT4

	switch {
	case tsh > tshHigh && tt4 < tt4Low:
		return LabelPrimaryHypothyroid, capAt(0.95, 0.7+float64((tsh-tshHigh)*0.1))
	case tsh > tshHigh && tt4 >= tt4Low:
		return LabelCompensatedHypothyroid, capAt(0.90, 0.6+float64((tsh-tshHigh)*0.08))
	case tsh < tshLow && tt4 > tt4High:
		return LabelPrimaryHyperthyroid, capAt(0.92, 0.75+float64((tt4High-tt4)*0.05))
	case tsh < tshLow && t3 > t3High:
		return LabelPrimaryHyperthyroid, capAt(0.88, 0.7+float64((t3High-t3)*0.002))
	default:
		return LabelNegative, negativeConfidence
	}
}

// capAt returns limit unless v is strictly below it, so a NaN never escapes.
func capAt(limit, v float64) float64 {
	if v < limit {
		return v
	}
	return limit
}

// floorAt returns limit unless v is strictly above it.
func floorAt(limit, v float64) float64 {
	if v > limit {
		return v
	}
	return limit
}
