package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lMazer/pocket-finance-dashboard/internal/auth"
	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository"
	"github.com/lMazer/pocket-finance-dashboard/internal/session"
	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
)

// Client-facing messages. They never say which check failed.
const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgUserNotFound       = "user not found"
)

// EventPublisher emits audit events after a successful commit.
type EventPublisher interface {
	PublishLogin(ctx context.Context, user *domain.User) error
	PublishTokenRefreshed(ctx context.Context, user *domain.User) error
	PublishLogout(ctx context.Context, userID string) error
}

// AuthService implements login, refresh with rotation, logout and profile
// lookup on top of the single-session model.
type AuthService struct {
	users     repository.UserRepository
	sessions  *session.Store
	tokens    *auth.JWTManager
	passwords auth.PasswordHasher
	events    EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	dummyHash string
}

// NewAuthService creates a new auth service. events may be nil.
func NewAuthService(
	users repository.UserRepository,
	sessions *session.Store,
	tokens *auth.JWTManager,
	passwords auth.PasswordHasher,
	events EventPublisher,
	metrics *Metrics,
	logger *slog.Logger,
) *AuthService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	// Compared against when the email is unknown so both failures cost one
	// bcrypt verification.
	dummyHash, _ := passwords.Hash("pocket-finance-timing-guard")
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		dummyHash: dummyHash,
	}
}

// Login checks email and password and starts a new session, replacing any
// previous one. The password is verified before the transaction opens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	found, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperrors.ErrNotFound) {
		s.passwords.Verify(s.dummyHash, password)
		return nil, s.rejectLogin(ctx)
	}
	if err != nil {
		s.metrics.logins.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("login: find user by email: %w", err)
	}
	if !s.passwords.Verify(found.PasswordHash, password) {
		return nil, s.rejectLogin(ctx)
	}

	var (
		result *domain.AuthResult
		user   *domain.User
	)
	err = s.users.WithinTx(ctx, func(ctx context.Context, repo repository.UserRepository) error {
		var err error
		user, err = repo.GetByIDForUpdate(ctx, found.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized(msgInvalidCredentials)
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		result, err = s.issueTokens(ctx, repo, user)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, s.rejectLogin(ctx)
		}
		s.metrics.logins.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	s.metrics.logins.WithLabelValues(resultSuccess).Inc()
	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)
	if s.events != nil {
		if err := s.events.PublishLogin(ctx, user); err != nil {
			s.logEventFailure(ctx, "auth.login", user.ID, err)
		}
	}
	return result, nil
}

func (s *AuthService) rejectLogin(ctx context.Context) error {
	s.metrics.logins.WithLabelValues(resultInvalidCredentials).Inc()
	s.logger.InfoContext(ctx, "login rejected")
	return apperrors.Unauthorized(msgInvalidCredentials)
}

// Refresh exchanges a live refresh token for a new token pair. The presented
// token stops working as soon as the new pair is committed.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*domain.AuthResult, error) {
	userID, err := s.tokens.ValidateRefreshToken(rawRefreshToken)
	if err != nil {
		return nil, s.rejectRefresh(ctx, "", resultInvalidToken, err)
	}

	var (
		result *domain.AuthResult
		user   *domain.User
		reason string
		cause  error
	)

	err = s.users.WithinTx(ctx, func(ctx context.Context, repo repository.UserRepository) error {
		var err error
		user, err = repo.GetByIDForUpdate(ctx, userID)
		if errors.Is(err, apperrors.ErrNotFound) {
			reason, cause = resultUserNotFound, err
			return apperrors.Unauthorized(msgInvalidRefresh)
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		sessions := s.sessions.Bind(repo)
		if err := sessions.Check(user, rawRefreshToken); err != nil {
			reason, cause = refreshReason(err), err
			return apperrors.Unauthorized(msgInvalidRefresh)
		}

		result, err = s.issueTokens(ctx, repo, user)
		return err
	})
	if err != nil {
		if reason != "" {
			return nil, s.rejectRefresh(ctx, userID, reason, cause)
		}
		s.metrics.refreshes.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.metrics.refreshes.WithLabelValues(resultSuccess).Inc()
	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)
	if s.events != nil {
		if err := s.events.PublishTokenRefreshed(ctx, user); err != nil {
			s.logEventFailure(ctx, "auth.token_refreshed", user.ID, err)
		}
	}
	return result, nil
}

func (s *AuthService) rejectRefresh(ctx context.Context, userID, reason string, cause error) error {
	s.metrics.refreshes.WithLabelValues(reason).Inc()
	attrs := []any{slog.String("reason", reason)}
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	s.logger.InfoContext(ctx, "refresh rejected", attrs...)
	return apperrors.Unauthorized(msgInvalidRefresh)
}

func refreshReason(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return resultNoSession
	case errors.Is(err, session.ErrSessionExpired):
		return resultSessionExpired
	case errors.Is(err, session.ErrTokenMismatch):
		return resultTokenMismatch
	default:
		return resultInvalidToken
	}
}

// Logout ends the session of userID. It is idempotent and succeeds for
// unknown users.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	err := s.users.WithinTx(ctx, func(ctx context.Context, repo repository.UserRepository) error {
		return s.sessions.Bind(repo).Revoke(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.metrics.logouts.Inc()
	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)
	if s.events != nil {
		if err := s.events.PublishLogout(ctx, userID); err != nil {
			s.logEventFailure(ctx, "auth.logout", userID, err)
		}
	}
	return nil
}

// Me returns the profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized(msgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	profile := user.Profile()
	return &profile, nil
}

// issueTokens signs a new pair and stores the refresh token as the user's
// only session through repo.
func (s *AuthService) issueTokens(ctx context.Context, repo repository.UserRepository, user *domain.User) (*domain.AuthResult, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.sessions.Bind(repo).Issue(ctx, user, refreshToken); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &domain.AuthResult{
		TokenType:    domain.TokenTypeBearer,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL() / time.Second),
		User:         user.Profile(),
	}, nil
}

func (s *AuthService) logEventFailure(ctx context.Context, eventType, userID string, err error) {
	s.logger.WarnContext(ctx, "failed to publish audit event",
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}
