// Package session manages the single refresh-token session stored on each
// user record.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lMazer/pocket-finance-dashboard/internal/auth"
	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository"
	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
)

// Reasons a refresh token is refused by Check.
var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
	ErrTokenMismatch  = errors.New("refresh token does not match session")
)

// ExpiryReader reads the expiry of an already verified refresh token.
type ExpiryReader interface {
	RefreshExpiry(token string) (time.Time, error)
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store reads and writes the session slot through a UserRepository.
type Store struct {
	repo   repository.UserRepository
	tokens ExpiryReader
	now    func() time.Time
}

// NewStore returns a Store bound to repo.
func NewStore(repo repository.UserRepository, tokens ExpiryReader, opts ...Option) *Store {
	s := &Store{repo: repo, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind returns a copy of s that persists through repo, typically the
// transaction-scoped repository handed out by WithinTx.
func (s *Store) Bind(repo repository.UserRepository) *Store {
	c := *s
	c.repo = repo
	return &c
}

// Issue stores the hash and expiry of raw on user, replacing any previous
// session, and persists the user.
func (s *Store) Issue(ctx context.Context, user *domain.User, raw string) error {
	exp, err := s.tokens.RefreshExpiry(raw)
	if err != nil {
		return fmt.Errorf("read refresh expiry: %w", err)
	}
	user.SetSession(auth.HashToken(raw), exp)
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Revoke clears the session of userID. A missing user or an already empty
// session is not an error.
func (s *Store) Revoke(ctx context.Context, userID string) error {
	user, err := s.repo.GetByIDForUpdate(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.HasSession() {
		return nil
	}

	user.ClearSession()
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Validate reports whether raw is the live refresh token of user.
func (s *Store) Validate(user *domain.User, raw string) bool {
	return s.Check(user, raw) == nil
}

// Check is Validate with the reason for a refusal.
func (s *Store) Check(user *domain.User, raw string) error {
	if !user.HasSession() {
		return ErrNoSession
	}
	if s.now().After(*user.RefreshTokenExpiresAt) {
		return ErrSessionExpired
	}
	if !auth.TokenMatches(raw, *user.RefreshTokenHash) {
		return ErrTokenMismatch
	}
	return nil
}
