package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		age           INTEGER NOT NULL DEFAULT 0,
		sex           TEXT NOT NULL DEFAULT '',
		location      TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		id                        BIGSERIAL PRIMARY KEY,
		user_id                   BIGINT NOT NULL REFERENCES users(id),
		age                       DOUBLE PRECISION NOT NULL,
		sex                       TEXT NOT NULL,
		tsh                       DOUBLE PRECISION NOT NULL,
		t3                        DOUBLE PRECISION NOT NULL,
		tt4                       DOUBLE PRECISION NOT NULL,
		t4u                       DOUBLE PRECISION NOT NULL,
		on_thyroxine              BOOLEAN NOT NULL,
		query_on_thyroxine        BOOLEAN NOT NULL,
		on_antithyroid_medication BOOLEAN NOT NULL,
		sick                      BOOLEAN NOT NULL,
		pregnant                  BOOLEAN NOT NULL,
		thyroid_surgery           BOOLEAN NOT NULL,
		i131_treatment            BOOLEAN NOT NULL,
		query_hypothyroid         BOOLEAN NOT NULL,
		query_hyperthyroid        BOOLEAN NOT NULL,
		lithium                   BOOLEAN NOT NULL,
		goitre                    BOOLEAN NOT NULL,
		tumor                     BOOLEAN NOT NULL,
		hypopituitary             BOOLEAN NOT NULL,
		psych                     BOOLEAN NOT NULL,
		label                     TEXT NOT NULL,
		confidence                DOUBLE PRECISION NOT NULL,
		model                     TEXT NOT NULL,
		fallback                  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at                TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_user ON predictions(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS health_records (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		record_type TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_records_user ON health_records(user_id, created_at DESC)`,
}

// Postgres is the pooled PostgreSQL backend.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// ConnectPostgres opens a pool, verifies it with a ping and applies the schema.
func ConnectPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	p := NewPostgres(pool)
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool without touching the schema.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) CreateUser(ctx context.Context, u *User) error {
	createdAt := s.now()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, is_admin, age, sex, location, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.Age, u.Sex, u.Location, createdAt,
	).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "users_email_key" {
				return ErrEmailTaken
			}
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = createdAt
	return nil
}

func (s *Postgres) FindUserByID(ctx context.Context, id int64) (*User, error) {
	return s.oneUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Postgres) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.oneUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *Postgres) oneUser(row pgx.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Postgres) UpdateProfile(ctx context.Context, id int64, p Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET age = $1, sex = $2, location = $3 WHERE id = $4`,
		p.Age, p.Sex, p.Location, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *Postgres) RecentUsers(ctx context.Context, limit int) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
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

func (s *Postgres) SavePrediction(ctx context.Context, p *Prediction) error {
	createdAt := s.now()
	args := append(predictionArgs(p), createdAt)
	marks := placeholders(len(args), func(i int) string { return "$" + strconv.Itoa(i) })
	err := s.pool.QueryRow(ctx,
		`INSERT INTO predictions (`+insertPredictionColumns+`) VALUES (`+marks+`) RETURNING id`,
		args...,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	p.CreatedAt = createdAt
	return nil
}

func (s *Postgres) ListPredictions(ctx context.Context, userID int64, limit int) ([]Prediction, error) {
	return s.predictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
}

func (s *Postgres) LatestPrediction(ctx context.Context, userID int64) (*Prediction, error) {
	list, err := s.ListPredictions(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (s *Postgres) CountPredictions(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM predictions`)
}

func (s *Postgres) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	return s.predictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *Postgres) predictions(ctx context.Context, query string, args ...any) ([]Prediction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Postgres) SaveHealthRecord(ctx context.Context, r *HealthRecord) error {
	createdAt := s.now()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO health_records (user_id, record_type, title, description, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.UserID, string(r.RecordType), r.Title, r.Description, createdAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("save health record: %w", err)
	}
	r.CreatedAt = createdAt
	return nil
}

func (s *Postgres) ListHealthRecords(ctx context.Context, userID int64, limit int) ([]HealthRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+healthRecordColumns+` FROM health_records WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
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

func (s *Postgres) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
