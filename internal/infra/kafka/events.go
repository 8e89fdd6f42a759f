package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	topicSessionTerminated = "sessions.session.terminated"
	topicUserTerminated    = "sessions.user.terminated"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionTerminated publishes sessions.session.terminated events.
func (p *EventPublisher) PublishSessionTerminated(ctx context.Context, event domain.SessionTerminatedEvent) error {
	payload := struct {
		SessionID     string         `json:"session_id"`
		UserID        string         `json:"user_id"`
		TerminatedAt  time.Time      `json:"terminated_at"`
		TerminatedBy  string         `json:"terminated_by,omitempty"`
		Reason        string         `json:"reason,omitempty"`
		TokensRevoked int            `json:"tokens_revoked"`
		IPAddress     *string        `json:"ip_address,omitempty"`
		UserAgent     *string        `json:"user_agent,omitempty"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:     event.SessionID,
		UserID:        event.UserID,
		TerminatedAt:  event.TerminatedAt.UTC(),
		TerminatedBy:  event.TerminatedBy,
		Reason:        event.Reason,
		TokensRevoked: event.TokensRevoked,
		IPAddress:     event.IPAddress,
		UserAgent:     event.UserAgent,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicSessionTerminated, event.UserID, event.TerminatedAt, payload)
}

// PublishUserSessionsTerminated publishes sessions.user.terminated events.
func (p *EventPublisher) PublishUserSessionsTerminated(ctx context.Context, event domain.UserSessionsTerminatedEvent) error {
	payload := struct {
		UserID             string         `json:"user_id"`
		SessionIDs         []string       `json:"session_ids"`
		SessionsTerminated int            `json:"sessions_terminated"`
		TokensRevoked      int            `json:"tokens_revoked"`
		TerminatedAt       time.Time      `json:"terminated_at"`
		TerminatedBy       string         `json:"terminated_by,omitempty"`
		Reason             string         `json:"reason,omitempty"`
		Metadata           map[string]any `json:"metadata,omitempty"`
	}{
		UserID:             event.UserID,
		SessionIDs:         event.SessionIDs,
		SessionsTerminated: event.SessionsTerminated,
		TokensRevoked:      event.TokensRevoked,
		TerminatedAt:       event.TerminatedAt.UTC(),
		TerminatedBy:       event.TerminatedBy,
		Reason:             event.Reason,
		Metadata:           event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicUserTerminated, event.UserID, event.TerminatedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
