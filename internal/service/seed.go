package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lMazer/pocket-finance-dashboard/internal/auth"
	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository"
	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
)

// Demo account created on startup when seeding is enabled.
const (
	DemoEmail    = "demo@pocket.local"
	DemoPassword = "demo123"
	DemoFullName = "Demo User"
)

// SeedDemoUser creates the demo account unless a user with its email already
// exists.
func SeedDemoUser(ctx context.Context, users repository.UserRepository, passwords auth.PasswordHasher, logger *slog.Logger) error {
	_, err := users.GetByEmail(ctx, DemoEmail)
	if err == nil {
		logger.DebugContext(ctx, "demo user already present")
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("look up demo user: %w", err)
	}

	hash, err := passwords.Hash(DemoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        DemoEmail,
		FullName:     DemoFullName,
		PasswordHash: hash,
	}
	if err := users.Create(ctx, user); err != nil {
		// Another instance seeded it first.
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create demo user: %w", err)
	}

	logger.InfoContext(ctx, "demo user seeded",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}
