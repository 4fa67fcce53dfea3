// Package store persists users, classification results and health records.
// Memory, SQLite and PostgreSQL backends share one set of interfaces.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skufu/thyrocheck/internal/thyroid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrUsernameTaken = fmt.Errorf("username already exists: %w", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", ErrConflict)
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	Age          int       `json:"age,omitempty"`
	Sex          string    `json:"sex,omitempty"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Profile struct {
	Age      int    `json:"age"`
	Sex      string `json:"sex"`
	Location string `json:"location"`
}

// Prediction is a stored classification together with the input it was made from.
type Prediction struct {
	ID         int64                 `json:"id"`
	UserID     int64                 `json:"userId"`
	Record     thyroid.PatientRecord `json:"record"`
	Label      thyroid.Label         `json:"label"`
	Confidence float64               `json:"confidence"`
	Model      string                `json:"model"`
	Fallback   bool                  `json:"fallback"`
	CreatedAt  time.Time             `json:"createdAt"`
}

type RecordType string

const (
	RecordLabResult  RecordType = "lab_result"
	RecordMedication RecordType = "medication"
	RecordSymptom    RecordType = "symptom"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordLabResult, RecordMedication, RecordSymptom:
		return true
	}
	return false
}

type HealthRecord struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	RecordType  RecordType `json:"recordType"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type UserStore interface {
	// CreateUser assigns ID and CreatedAt. Duplicate usernames or emails
	// return ErrUsernameTaken or ErrEmailTaken.
	CreateUser(ctx context.Context, u *User) error
	FindUserByID(ctx context.Context, id int64) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateProfile(ctx context.Context, id int64, p Profile) error
	CountUsers(ctx context.Context) (int, error)
	RecentUsers(ctx context.Context, limit int) ([]User, error)
}

// PredictionStore lists are newest first.
type PredictionStore interface {
	SavePrediction(ctx context.Context, p *Prediction) error
	ListPredictions(ctx context.Context, userID int64, limit int) ([]Prediction, error)
	LatestPrediction(ctx context.Context, userID int64) (*Prediction, error)
	CountPredictions(ctx context.Context) (int, error)
	RecentPredictions(ctx context.Context, limit int) ([]Prediction, error)
}

type HealthRecordStore interface {
	SaveHealthRecord(ctx context.Context, r *HealthRecord) error
	ListHealthRecords(ctx context.Context, userID int64, limit int) ([]HealthRecord, error)
}

type Store interface {
	UserStore
	PredictionStore
	HealthRecordStore
	Ping(ctx context.Context) error
	Close() error
}
