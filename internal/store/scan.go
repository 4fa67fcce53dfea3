package store

import (
	"strings"

	"github.com/Skufu/thyrocheck/internal/thyroid"
)

// rowScanner is satisfied by database/sql and pgx rows alike.
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, email, password_hash, is_admin, age, sex, location, created_at`

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin,
		&u.Age, &u.Sex, &u.Location, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

const insertPredictionColumns = `user_id, age, sex, tsh, t3, tt4, t4u,
	on_thyroxine, query_on_thyroxine, on_antithyroid_medication, sick, pregnant,
	thyroid_surgery, i131_treatment, query_hypothyroid, query_hyperthyroid, lithium,
	goitre, tumor, hypopituitary, psych, label, confidence, model, fallback, created_at`

const predictionColumns = `id, ` + insertPredictionColumns

// placeholders renders n bind markers using mark for the i-th (1-based).
func placeholders(n int, mark func(i int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = mark(i + 1)
	}
	return strings.Join(parts, ", ")
}

// predictionArgs matches insertPredictionColumns minus created_at.
func predictionArgs(p *Prediction) []any {
	r := p.Record
	return []any{
		p.UserID, r.Age, string(r.Sex), r.TSH, r.T3, r.TT4, r.T4U,
		r.OnThyroxine, r.QueryOnThyroxine, r.OnAntithyroidMedication, r.Sick, r.Pregnant,
		r.ThyroidSurgery, r.I131Treatment, r.QueryHypothyroid, r.QueryHyperthyroid, r.Lithium,
		r.Goitre, r.Tumor, r.Hypopituitary, r.Psych,
		string(p.Label), p.Confidence, p.Model, p.Fallback,
	}
}

func scanPrediction(row rowScanner) (Prediction, error) {
	var (
		p     Prediction
		sex   string
		label string
	)
	r := &p.Record
	err := row.Scan(&p.ID, &p.UserID, &r.Age, &sex, &r.TSH, &r.T3, &r.TT4, &r.T4U,
		&r.OnThyroxine, &r.QueryOnThyroxine, &r.OnAntithyroidMedication, &r.Sick, &r.Pregnant,
		&r.ThyroidSurgery, &r.I131Treatment, &r.QueryHypothyroid, &r.QueryHyperthyroid, &r.Lithium,
		&r.Goitre, &r.Tumor, &r.Hypopituitary, &r.Psych,
		&label, &p.Confidence, &p.Model, &p.Fallback, &p.CreatedAt)
	if err != nil {
		return Prediction{}, err
	}
	r.Sex = thyroid.Sex(sex)
	p.Label = thyroid.Label(label)
	return p, nil
}

const healthRecordColumns = `id, user_id, record_type, title, description, created_at`

func scanHealthRecord(row rowScanner) (HealthRecord, error) {
	var (
		h          HealthRecord
		recordType string
	)
	if err := row.Scan(&h.ID, &h.UserID, &recordType, &h.Title, &h.Description, &h.CreatedAt); err != nil {
		return HealthRecord{}, err
	}
	h.RecordType = RecordType(recordType)
	return h, nil
}
