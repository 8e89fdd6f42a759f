package port

import (
	"context"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// SessionStore is the authoritative registry of active sessions per user.
// Entries are deleted on termination; a session that is absent is terminated.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Touch(ctx context.Context, sessionID string, ip *string, userAgent *string) error
	// Remove deletes a single session. Returns false, nil when already absent.
	Remove(ctx context.Context, sessionID string) (bool, error)
	// RemoveAllByUser deletes every session owned by the user and returns the
	// removed ids. Removing from an empty set succeeds with an empty slice.
	RemoveAllByUser(ctx context.Context, userID string) ([]string, error)
}
