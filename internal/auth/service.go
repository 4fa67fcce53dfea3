// Package auth registers users, checks credentials and issues session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Skufu/thyrocheck/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

type Service struct {
	users  store.UserStore
	tokens *Tokens
	logger *slog.Logger
}

func NewService(users store.UserStore, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, logger: logger}
}

// Register stores a new non-admin user. Duplicates surface as
// store.ErrUsernameTaken or store.ErrEmailTaken.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	return s.create(ctx, username, email, password, false)
}

func (s *Service) create(ctx context.Context, username, email, password string, admin bool) (*store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      admin,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID, "admin", admin)
	return u, nil
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *store.User
}

// Login checks the password and issues a session token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.FindUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.InfoContext(ctx, "login rejected", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Authenticate resolves a token to its current user record.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// EnsureAdmin creates the admin account when no user has the username yet.
// An existing account is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	_, err := s.users.FindUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("find admin: %w", err)
	}
	if _, err := s.create(ctx, username, email, password, true); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
