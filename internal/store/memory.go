package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps everything in process. Each instance owns its data; nothing
// is shared between instances.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       []User
	predictions []Prediction
	records     []HealthRecord
}

func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	u.ID = int64(len(m.users) + 1)
	u.CreatedAt = m.now()
	m.users = append(m.users, *u)
	return nil
}

func (m *Memory) FindUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateProfile(_ context.Context, id int64, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].Age = p.Age
			m.users[i].Sex = p.Sex
			m.users[i].Location = p.Location
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) CountUsers(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *Memory) RecentUsers(_ context.Context, limit int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.users, limit, func(User) bool { return true }), nil
}

func (m *Memory) SavePrediction(_ context.Context, p *Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.predictions) + 1)
	p.CreatedAt = m.now()
	m.predictions = append(m.predictions, *p)
	return nil
}

func (m *Memory) ListPredictions(_ context.Context, userID int64, limit int) ([]Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.predictions, limit, func(p Prediction) bool { return p.UserID == userID }), nil
}

func (m *Memory) LatestPrediction(ctx context.Context, userID int64) (*Prediction, error) {
	list, _ := m.ListPredictions(ctx, userID, 1)
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (m *Memory) CountPredictions(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.predictions), nil
}

func (m *Memory) RecentPredictions(_ context.Context, limit int) ([]Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.predictions, limit, func(Prediction) bool { return true }), nil
}

func (m *Memory) SaveHealthRecord(_ context.Context, r *HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.records) + 1)
	r.CreatedAt = m.now()
	m.records = append(m.records, *r)
	return nil
}

func (m *Memory) ListHealthRecords(_ context.Context, userID int64, limit int) ([]HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.records, limit, func(r HealthRecord) bool { return r.UserID == userID }), nil
}

// newestFirst walks items from the end, keeping up to limit matches. The
// returned slice is a copy.
func newestFirst[T any](items []T, limit int, keep func(T) bool) []T {
	out := []T{}
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}
