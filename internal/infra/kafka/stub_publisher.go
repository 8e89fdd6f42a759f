package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionTerminated logs sessions.session.terminated events.
func (p *StubPublisher) PublishSessionTerminated(_ context.Context, event domain.SessionTerminatedEvent) error {
	payload := map[string]any{
		"session_id":     event.SessionID,
		"user_id":        event.UserID,
		"terminated_at":  event.TerminatedAt,
		"terminated_by":  event.TerminatedBy,
		"reason":         event.Reason,
		"tokens_revoked": event.TokensRevoked,
		"ip_address":     event.IPAddress,
		"metadata":       event.Metadata,
	}
	p.logEvent(topicSessionTerminated, event.UserID, event.TerminatedAt, payload)
	return nil
}

// PublishUserSessionsTerminated logs sessions.user.terminated events.
func (p *StubPublisher) PublishUserSessionsTerminated(_ context.Context, event domain.UserSessionsTerminatedEvent) error {
	payload := map[string]any{
		"user_id":             event.UserID,
		"session_ids":         event.SessionIDs,
		"sessions_terminated": event.SessionsTerminated,
		"tokens_revoked":      event.TokensRevoked,
		"terminated_at":       event.TerminatedAt,
		"terminated_by":       event.TerminatedBy,
		"reason":              event.Reason,
		"metadata":            event.Metadata,
	}
	p.logEvent(topicUserTerminated, event.UserID, event.TerminatedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
