package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin      INTEGER NOT NULL DEFAULT 0,
		age           INTEGER NOT NULL DEFAULT 0,
		sex           TEXT NOT NULL DEFAULT '',
		location      TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		id                        INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id                   INTEGER NOT NULL REFERENCES users(id),
		age                       REAL NOT NULL,
		sex                       TEXT NOT NULL,
		tsh                       REAL NOT NULL,
		t3                        REAL NOT NULL,
		tt4                       REAL NOT NULL,
		t4u                       REAL NOT NULL,
		on_thyroxine              INTEGER NOT NULL,
		query_on_thyroxine        INTEGER NOT NULL,
		on_antithyroid_medication INTEGER NOT NULL,
		sick                      INTEGER NOT NULL,
		pregnant                  INTEGER NOT NULL,
		thyroid_surgery           INTEGER NOT NULL,
		i131_treatment            INTEGER NOT NULL,
		query_hypothyroid         INTEGER NOT NULL,
		query_hyperthyroid        INTEGER NOT NULL,
		lithium                   INTEGER NOT NULL,
		goitre                    INTEGER NOT NULL,
		tumor                     INTEGER NOT NULL,
		hypopituitary             INTEGER NOT NULL,
		psych                     INTEGER NOT NULL,
		label                     TEXT NOT NULL,
		confidence                REAL NOT NULL,
		model                     TEXT NOT NULL,
		fallback                  INTEGER NOT NULL DEFAULT 0,
		created_at                DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_user ON predictions(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS health_records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		record_type TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_records_user ON health_records(user_id, created_at)`,
}

// SQLite is the single-file relational backend.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-process database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateUser(ctx context.Context, u *User) error {
	createdAt := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, is_admin, age, sex, location, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.Age, u.Sex, u.Location, createdAt)
	if err != nil {
		return sqliteUserError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.ID, u.CreatedAt = id, createdAt
	return nil
}

func sqliteUserError(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
		if strings.Contains(serr.Error(), "users.email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return fmt.Errorf("create user: %w", err)
}

func (s *SQLite) FindUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.oneUser(row)
}

func (s *SQLite) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return s.oneUser(row)
}

func (s *SQLite) oneUser(row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *SQLite) UpdateProfile(ctx context.Context, id int64, p Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET age = ?, sex = ?, location = ? WHERE id = ?`,
		p.Age, p.Sex, p.Location, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *SQLite) RecentUsers(ctx context.Context, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *SQLite) SavePrediction(ctx context.Context, p *Prediction) error {
	createdAt := s.now()
	args := append(predictionArgs(p), createdAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (`+insertPredictionColumns+`)
		 VALUES (`+placeholders(len(args), func(int) string { return "?" })+`)`, args...)
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	p.ID, p.CreatedAt = id, createdAt
	return nil
}

func (s *SQLite) ListPredictions(ctx context.Context, userID int64, limit int) ([]Prediction, error) {
	return s.predictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
}

func (s *SQLite) LatestPrediction(ctx context.Context, userID int64) (*Prediction, error) {
	list, err := s.ListPredictions(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (s *SQLite) CountPredictions(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM predictions`)
}

func (s *SQLite) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	return s.predictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLite) predictions(ctx context.Context, query string, args ...any) ([]Prediction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	out := []Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveHealthRecord(ctx context.Context, r *HealthRecord) error {
	createdAt := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO health_records (user_id, record_type, title, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.UserID, string(r.RecordType), r.Title, r.Description, createdAt)
	if err != nil {
		return fmt.Errorf("save health record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save health record: %w", err)
	}
	r.ID, r.CreatedAt = id, createdAt
	return nil
}

func (s *SQLite) ListHealthRecords(ctx context.Context, userID int64, limit int) ([]HealthRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+healthRecordColumns+` FROM health_records WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list health records: %w", err)
	}
	defer rows.Close()

	out := []HealthRecord{}
	for rows.Next() {
		h, err := scanHealthRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLite) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
