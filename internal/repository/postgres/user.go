package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository"
	"github.com/lMazer/pocket-finance-dashboard/pkg/database"
	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
)

const uniqueViolation = "23505"

const userColumns = `id, email, full_name, password_hash, refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

const (
	insertUserQuery = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getUserByIDQuery = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`

	getUserByIDForUpdateQuery = getUserByIDQuery + `
		FOR UPDATE`

	getUserByEmailQuery = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)`

	updateUserQuery = `
		UPDATE users
		SET email = $1, full_name = $2, password_hash = $3,
		    refresh_token_hash = $4, refresh_token_expires_at = $5, updated_at = $6
		WHERE id = $7`
)

var _ repository.UserRepository = (*UserRepository)(nil)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewUserRepository creates a repository over a pool, a transaction, or a
// pgxmock pool.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUserQuery)
	defer func() { end(err) }()

	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err = r.db.Exec(ctx, insertUserQuery,
		u.ID,
		u.Email,
		u.FullName,
		u.PasswordHash,
		u.RefreshTokenHash,
		u.RefreshTokenExpiresAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByID", getUserByIDQuery, id)
}

// GetByIDForUpdate retrieves a user by ID and locks the row.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByIDForUpdate", getUserByIDForUpdateQuery, id)
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByEmail", getUserByEmailQuery, email)
}

// Update writes the user's profile fields and session slot.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateUser", updateUserQuery)
	defer func() { end(err) }()

	u.UpdatedAt = r.now().UTC()

	ct, err := r.db.Exec(ctx, updateUserQuery,
		u.Email,
		u.FullName,
		u.PasswordHash,
		u.RefreshTokenHash,
		u.RefreshTokenExpiresAt,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

// WithinTx runs fn inside a transaction. Nested calls use a savepoint.
func (r *UserRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &UserRepository{db: tx, now: r.now}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, operation, query string, arg string) (*domain.User, error) {
	ctx, end := database.TraceQuery(ctx, operation, query)

	var u domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.RefreshTokenHash,
		&u.RefreshTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
