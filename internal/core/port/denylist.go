package port

import (
	"context"
	"time"
)

// RevocationDenylist mirrors committed revocation decisions into a shared
// fast store so downstream gateways can reject revoked credentials without a
// round trip to introspection. It is written only after the authoritative
// stores commit and is never consulted on the introspection path.
type RevocationDenylist interface {
	MarkTokenRevoked(ctx context.Context, tokenID string, reason string, ttl time.Duration) error
	MarkSessionTerminated(ctx context.Context, sessionID string, reason string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, string, error)
	IsSessionTerminated(ctx context.Context, sessionID string) (bool, string, error)
}

// RateLimitStore records request attempts for sliding-window rate limiting.
type RateLimitStore interface {
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
}
