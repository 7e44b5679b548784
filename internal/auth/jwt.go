package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// MinSecretBytes is the shortest signing key NewJWTManager accepts.
const MinSecretBytes = 32

// ErrInvalidToken is returned for every token that fails verification.
var ErrInvalidToken = apperrors.Unauthorized("invalid or expired token")

// ErrWeakSecret is returned by NewJWTManager when the key is too short.
var ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// JWTConfig holds the signing key and token lifetimes.
type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Option customises a JWTManager.
type Option func(*JWTManager)

// WithClock replaces the clock used to issue and verify tokens.
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) { m.now = now }
}

// JWTManager signs and verifies HS256 tokens. It is immutable after
// construction and safe for concurrent use.
type JWTManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewJWTManager builds a manager from cfg. The secret is decoded as standard
// base64 when possible and used as raw bytes otherwise.
func NewJWTManager(cfg JWTConfig, opts ...Option) (*JWTManager, error) {
	key := decodeSecret(cfg.Secret)
	if len(key) < MinSecretBytes {
		return nil, fmt.Errorf("%w: got %d", ErrWeakSecret, len(key))
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt token lifetimes must be positive")
	}

	m := &JWTManager{
		secret:     key,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)
	return m, nil
}

func decodeSecret(secret string) []byte {
	if key, err := base64.StdEncoding.DecodeString(secret); err == nil {
		return key
	}
	return []byte(secret)
}

// AccessTTL is the lifetime of issued access tokens.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GenerateAccessToken signs an access token for user.
func (m *JWTManager) GenerateAccessToken(user *domain.User) (string, error) {
	now := m.now().UTC()
	claims := &AccessClaims{
		Type:  TokenTypeAccess,
		Email: user.Email,
		Name:  user.FullName,
		RegisteredClaims: m.registered(user.ID, now, m.accessTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken signs a refresh token for user. Every call gets a
// fresh token ID, so two tokens issued within the same second still differ.
func (m *JWTManager) GenerateRefreshToken(user *domain.User) (string, error) {
	now := m.now().UTC()
	claims := &RefreshClaims{
		Type:             TokenTypeRefresh,
		RegisteredClaims: m.registered(user.ID, now, m.refreshTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (m *JWTManager) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// ValidateAccessToken verifies an access token and returns its claims.
func (m *JWTManager) ValidateAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(token, claims, &claims.RegisteredClaims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, fmt.Errorf("%w: token type %q is not %q", ErrInvalidToken, claims.Type, TokenTypeAccess)
	}
	return claims, nil
}

// ValidateRefreshToken verifies a refresh token and returns the user ID it
// was issued to.
func (m *JWTManager) ValidateRefreshToken(token string) (string, error) {
	claims, err := m.refreshClaims(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// RefreshExpiry returns the expiry of a valid refresh token.
func (m *JWTManager) RefreshExpiry(token string) (time.Time, error) {
	claims, err := m.refreshClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time.UTC(), nil
}

func (m *JWTManager) refreshClaims(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(token, claims, &claims.RegisteredClaims); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, fmt.Errorf("%w: token type %q is not %q", ErrInvalidToken, claims.Type, TokenTypeRefresh)
	}
	return claims, nil
}

func (m *JWTManager) parse(token string, claims jwt.Claims, registered *jwt.RegisteredClaims) error {
	_, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(registered.Subject); err != nil {
		return fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return nil
}
