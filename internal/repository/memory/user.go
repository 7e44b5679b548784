// Package memory provides an in-process UserRepository for local runs and
// tests.
package memory

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository"
	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
)

var _ repository.UserRepository = (*UserRepository)(nil)

type store struct {
	byID map[string]*domain.User
}

func (s *store) snapshot() map[string]*domain.User {
	return maps.Clone(s.byID)
}

// UserRepository keeps users in a map. Callers always receive copies, and
// transactions are serialised and rolled back by restoring a snapshot.
type UserRepository struct {
	mu    *sync.Mutex
	txMu  *sync.Mutex
	store *store
	inTx  bool
	now   func() time.Time
}

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		mu:    &sync.Mutex{},
		txMu:  &sync.Mutex{},
		store: &store{byID: make(map[string]*domain.User)},
		now:   time.Now,
	}
}

func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store.byID[u.ID]; ok {
		return apperrors.AlreadyExists("user", "id", u.ID)
	}
	if r.findByEmail(u.Email) != nil {
		return apperrors.AlreadyExists("user", "email", u.Email)
	}

	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.store.byID[u.ID] = u.Clone()
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.store.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u.Clone(), nil
}

// GetByIDForUpdate is GetByID; WithinTx already holds the transaction lock.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.findByEmail(email)
	if u == nil {
		return nil, apperrors.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store.byID[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	if other := r.findByEmail(u.Email); other != nil && other.ID != u.ID {
		return apperrors.AlreadyExists("user", "email", u.Email)
	}

	u.UpdatedAt = r.now().UTC()
	r.store.byID[u.ID] = u.Clone()
	return nil
}

// WithinTx runs fn while holding the transaction lock. If fn fails, every
// write it made is discarded. Nested calls join the outer transaction.
func (r *UserRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	before := r.store.snapshot()
	r.mu.Unlock()

	tx := *r
	tx.inTx = true
	if err := fn(ctx, &tx); err != nil {
		r.mu.Lock()
		r.store.byID = before
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *UserRepository) findByEmail(email string) *domain.User {
	for _, u := range r.store.byID {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}
