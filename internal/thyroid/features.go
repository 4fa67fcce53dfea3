package thyroid

// NumFeatures is the width of the encoded feature vector.
const NumFeatures = 20

// FeatureNames is the column order trained models expect. Changing it
// silently breaks every exported model.
var FeatureNames = [NumFeatures]string{
	"age", "sex", "TSH", "T3", "TT4", "T4U",
	"on_thyroxine", "query_on_thyroxine", "on_antithyroid_medication",
	"sick", "pregnant", "thyroid_surgery", "I131_treatment",
	"query_hypothyroid", "query_hyperthyroid", "lithium",
	"goitre", "tumor", "hypopituitary", "psych",
}

// Features encodes rec in FeatureNames order: male is 1, anything else 0;
// flags are 1 or 0.
func Features(rec PatientRecord) [NumFeatures]float64 {
	return [NumFeatures]float64{
		rec.Age,
		b2f(rec.Sex == SexMale),
		rec.TSH,
		rec.T3,
		rec.TT4,
		rec.T4U,
		b2f(rec.OnThyroxine),
		b2f(rec.QueryOnThyroxine),
		b2f(rec.OnAntithyroidMedication),
		b2f(rec.Sick),
		b2f(rec.Pregnant),
		b2f(rec.ThyroidSurgery),
		b2f(rec.I131Treatment),
		b2f(rec.QueryHypothyroid),
		b2f(rec.QueryHyperthyroid),
		b2f(rec.Lithium),
		b2f(rec.Goitre),
		b2f(rec.Tumor),
		b2f(rec.Hypopituitary),
		b2f(rec.Psych),
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
