package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-sessions/internal/core/port"
)

const (
	defaultTokenDenylistPrefix   = "sessions:revoked:token"
	defaultSessionDenylistPrefix = "sessions:terminated:session"
)

// DenylistStore mirrors committed revocations into Redis for downstream
// gateways. Entries carry the revocation reason and expire with the TTL the
// coordinator derives from the token lifetime.
type DenylistStore struct {
	client        *red.Client
	tokenPrefix   string
	sessionPrefix string
}

// NewDenylistStore wires a Redis-backed revocation denylist.
func NewDenylistStore(client *red.Client, tokenPrefix, sessionPrefix string) *DenylistStore {
	tp := strings.TrimSpace(tokenPrefix)
	if tp == "" {
		tp = defaultTokenDenylistPrefix
	}
	sp := strings.TrimSpace(sessionPrefix)
	if sp == "" {
		sp = defaultSessionDenylistPrefix
	}
	return &DenylistStore{client: client, tokenPrefix: tp, sessionPrefix: sp}
}

// MarkTokenRevoked stores the token identifier with the supplied reason and TTL window.
func (s *DenylistStore) MarkTokenRevoked(ctx context.Context, tokenID string, reason string, ttl time.Duration) error {
	return s.mark(ctx, s.tokenPrefix, tokenID, reason, "token_revoked", ttl)
}

// MarkSessionTerminated stores the session identifier with the supplied reason and TTL window.
func (s *DenylistStore) MarkSessionTerminated(ctx context.Context, sessionID string, reason string, ttl time.Duration) error {
	return s.mark(ctx, s.sessionPrefix, sessionID, reason, "session_terminated", ttl)
}

// IsTokenRevoked reports whether a token was denylisted and returns the stored reason.
func (s *DenylistStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, string, error) {
	return s.check(ctx, s.tokenPrefix, tokenID)
}

// IsSessionTerminated reports whether a session was denylisted and returns the stored reason.
func (s *DenylistStore) IsSessionTerminated(ctx context.Context, sessionID string) (bool, string, error) {
	return s.check(ctx, s.sessionPrefix, sessionID)
}

func (s *DenylistStore) mark(ctx context.Context, prefix, id, reason, fallback string, ttl time.Duration) error {
	key := denylistKey(prefix, id)
	if key == "" {
		return fmt.Errorf("identifier is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	value := strings.TrimSpace(reason)
	if value == "" {
		value = fallback
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set denylist entry: %w", err)
	}
	return nil
}

func (s *DenylistStore) check(ctx context.Context, prefix, id string) (bool, string, error) {
	key := denylistKey(prefix, id)
	if key == "" {
		return false, "", fmt.Errorf("identifier is required")
	}

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("redis get denylist entry: %w", err)
	}
	return true, value, nil
}

func denylistKey(prefix, id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", prefix, trimmed)
}

var _ port.RevocationDenylist = (*DenylistStore)(nil)
