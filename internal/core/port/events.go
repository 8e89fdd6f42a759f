package port

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// EventPublisher emits session lifecycle events to downstream consumers.
// Publishing happens strictly after the owning cascade has committed.
type EventPublisher interface {
	PublishSessionTerminated(ctx context.Context, event domain.SessionTerminatedEvent) error
	PublishUserSessionsTerminated(ctx context.Context, event domain.UserSessionsTerminatedEvent) error
}
