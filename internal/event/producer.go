package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lMazer/pocket-finance-dashboard/internal/domain"
	pkgkafka "github.com/lMazer/pocket-finance-dashboard/pkg/kafka"
	"github.com/lMazer/pocket-finance-dashboard/pkg/logger"
)

// Kafka topics for authentication audit events.
var (
	TopicLogin          = pkgkafka.Topic("auth", "login")
	TopicTokenRefreshed = pkgkafka.Topic("auth", "token_refreshed")
	TopicLogout         = pkgkafka.Topic("auth", "logout")
)

// Event types carried in the envelope.
const (
	TypeLogin          = "auth.login"
	TypeTokenRefreshed = "auth.token_refreshed"
	TypeLogout         = "auth.logout"
)

const AggregateTypeUser = "user"

// SourceAPI identifies events originating from this service.
const SourceAPI = "pocket-finance-api"

// AuthEventData is the payload of every auth audit event.
type AuthEventData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// Producer publishes authentication audit events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new audit event producer.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishLogin publishes an auth.login event.
func (p *Producer) PublishLogin(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicLogin, TypeLogin, AuthEventData{UserID: user.ID, Email: user.Email})
}

// PublishTokenRefreshed publishes an auth.token_refreshed event.
func (p *Producer) PublishTokenRefreshed(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicTokenRefreshed, TypeTokenRefreshed, AuthEventData{UserID: user.ID, Email: user.Email})
}

// PublishLogout publishes an auth.logout event.
func (p *Producer) PublishLogout(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicLogout, TypeLogout, AuthEventData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, eventType string, data AuthEventData) error {
	event, err := pkgkafka.NewEvent(eventType, data.UserID, AggregateTypeUser, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published "+eventType+" event",
		slog.String("user_id", data.UserID),
	)
	return nil
}
