package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

// TokenBindingIndex maintains the bidirectional mapping between tokens and
// the session that issued them.
type TokenBindingIndex interface {
	// Bind registers a new active token against an existing session. Returns
	// repository.ErrNotFound when the session is absent and
	// repository.ErrDuplicate when the token id is already taken.
	Bind(ctx context.Context, token domain.Token) error
	Get(ctx context.Context, tokenID string) (*domain.Token, error)
	TokensOf(ctx context.Context, sessionID string) ([]domain.Token, error)
	SessionOf(ctx context.Context, tokenID string) (string, error)
	// MarkRevoked flips a single token to revoked. Idempotent: returns
	// false, nil when the token is already in a terminal state.
	MarkRevoked(ctx context.Context, tokenID string, reason string) (bool, error)
	// MarkExpired flips a token past its expiry to the expired state.
	MarkExpired(ctx context.Context, tokenID string) (bool, error)
	// RevokeBySessions revokes every still-active token bound to any of the
	// supplied sessions and returns how many tokens transitioned.
	RevokeBySessions(ctx context.Context, sessionIDs []string, reason string) (int, error)
	IsActive(ctx context.Context, tokenID string, at time.Time) (bool, error)
}
