package repository

import (
	"context"

	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
)

// UserRepository defines the persistence operations on user records. Lookups
// of missing users return an error wrapping apperrors.ErrNotFound.
type UserRepository interface {
	// Create inserts a new user. A duplicate email, compared
	// case-insensitively, yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByIDForUpdate is GetByID that also locks the user until the
	// surrounding transaction ends. Outside WithinTx it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email, ignoring case.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update persists every mutable field of user, including the session slot.
	Update(ctx context.Context, user *domain.User) error

	// WithinTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo UserRepository) error) error
}
