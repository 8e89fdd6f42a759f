package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// TerminationResult reports how much a termination cascade actually removed.
type TerminationResult struct {
	SessionsTerminated int
	TokensRevoked      int
	SessionIDs         []string
}

// RevocationCoordinator executes session termination cascades. A cascade
// revokes every token bound to the dying sessions and removes the sessions
// themselves inside one per-user atomic unit, so introspection can never
// observe an active token whose session is already gone. Kafka events and
// the Redis denylist are fed strictly after commit.
type RevocationCoordinator struct {
	runner   port.TxRunner
	sessions port.SessionStore
	events   port.EventPublisher
	denylist port.RevocationDenylist
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewRevocationCoordinator constructs a RevocationCoordinator.
func NewRevocationCoordinator(runner port.TxRunner, sessions port.SessionStore, events port.EventPublisher, logger *zap.Logger) *RevocationCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevocationCoordinator{
		runner:   runner,
		sessions: sessions,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (c *RevocationCoordinator) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// WithDenylist injects the post-commit revocation denylist for downstream gateways.
func (c *RevocationCoordinator) WithDenylist(denylist port.RevocationDenylist) *RevocationCoordinator {
	c.denylist = denylist
	return c
}

// terminatedSession captures the state of one session at the moment its
// cascade committed, for post-commit notifications.
type terminatedSession struct {
	session domain.Session
	tokens  []domain.Token
}

// TerminateSession terminates one session and revokes every bound token.
// Terminating a session that is already gone succeeds with zero counts.
func (c *RevocationCoordinator) TerminateSession(ctx context.Context, sessionID, reason, terminatedBy string) (TerminationResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return TerminationResult{}, fmt.Errorf("session id is required")
	}
	reason = chooseReason(reason, "session_terminated")

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TerminationResult{}, nil
		}
		return TerminationResult{}, fmt.Errorf("resolve session: %w", err)
	}

	var (
		result     TerminationResult
		terminated *terminatedSession
	)
	err = runSerialized(ctx, c.runner, session.UserID, func(ctx context.Context, stores port.TxStores) error {
		result = TerminationResult{}
		terminated = nil

		current, err := stores.Sessions.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Lost the race to another terminator; nothing left to do.
				return nil
			}
			return err
		}

		tokens, err := stores.Tokens.TokensOf(ctx, sessionID)
		if err != nil {
			return err
		}

		revoked, err := stores.Tokens.RevokeBySessions(ctx, []string{sessionID}, reason)
		if err != nil {
			return err
		}
		if _, err := stores.Sessions.Remove(ctx, sessionID); err != nil {
			return err
		}

		result = TerminationResult{
			SessionsTerminated: 1,
			TokensRevoked:      revoked,
			SessionIDs:         []string{sessionID},
		}
		terminated = &terminatedSession{session: *current, tokens: tokens}
		return nil
	})
	if err != nil {
		return TerminationResult{}, fmt.Errorf("terminate session: %w", err)
	}
	if terminated == nil {
		return result, nil
	}

	c.afterCommit(ctx, []terminatedSession{*terminated}, reason)
	c.publishSessionTerminated(ctx, terminated.session, result.TokensRevoked, reason, terminatedBy)

	c.logger.Info("session terminated",
		zap.String("session_id", sessionID),
		zap.String("user_id", terminated.session.UserID),
		zap.Int("tokens_revoked", result.TokensRevoked),
		zap.String("reason", reason),
	)
	return result, nil
}

// TerminateAllForUser terminates every session owned by the user in one
// atomic batch. An empty set succeeds with zero counts.
func (c *RevocationCoordinator) TerminateAllForUser(ctx context.Context, userID, reason, terminatedBy string) (TerminationResult, error) {
	if strings.TrimSpace(userID) == "" {
		return TerminationResult{}, fmt.Errorf("user id is required")
	}
	reason = chooseReason(reason, "user_sessions_terminated")

	var (
		result     TerminationResult
		terminated []terminatedSession
	)
	err := runSerialized(ctx, c.runner, userID, func(ctx context.Context, stores port.TxStores) error {
		result = TerminationResult{}
		terminated = nil

		sessions, err := stores.Sessions.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return nil
		}

		for _, session := range sessions {
			tokens, err := stores.Tokens.TokensOf(ctx, session.ID)
			if err != nil {
				return err
			}
			terminated = append(terminated, terminatedSession{session: session, tokens: tokens})
		}

		removed, err := stores.Sessions.RemoveAllByUser(ctx, userID)
		if err != nil {
			return err
		}
		revoked, err := stores.Tokens.RevokeBySessions(ctx, removed, reason)
		if err != nil {
			return err
		}

		result = TerminationResult{
			SessionsTerminated: len(removed),
			TokensRevoked:      revoked,
			SessionIDs:         removed,
		}
		return nil
	})
	if err != nil {
		return TerminationResult{}, fmt.Errorf("terminate user sessions: %w", err)
	}
	if len(terminated) == 0 {
		return result, nil
	}

	c.afterCommit(ctx, terminated, reason)
	c.publishUserTerminated(ctx, userID, result, reason, terminatedBy)

	c.logger.Info("user sessions terminated",
		zap.String("user_id", userID),
		zap.Int("sessions_terminated", result.SessionsTerminated),
		zap.Int("tokens_revoked", result.TokensRevoked),
		zap.String("reason", reason),
	)
	return result, nil
}

// afterCommit mirrors the committed cascade into the denylist. Failures are
// logged, never surfaced: the authoritative stores already hold the truth.
func (c *RevocationCoordinator) afterCommit(ctx context.Context, terminated []terminatedSession, reason string) {
	if c.denylist == nil {
		return
	}

	now := c.now()
	for _, entry := range terminated {
		if err := c.denylist.MarkSessionTerminated(ctx, entry.session.ID, reason, denylistTTL(now, entry.tokens)); err != nil {
			c.logger.Warn("denylist session push failed",
				zap.String("session_id", entry.session.ID), zap.Error(err))
		}
		for _, token := range entry.tokens {
			ttl := token.ExpiresAt.Sub(now)
			if ttl <= 0 {
				continue
			}
			if err := c.denylist.MarkTokenRevoked(ctx, token.ID, reason, ttl); err != nil {
				c.logger.Warn("denylist token push failed",
					zap.String("token_id", token.ID), zap.Error(err))
			}
		}
	}
}

func (c *RevocationCoordinator) publishSessionTerminated(ctx context.Context, session domain.Session, tokensRevoked int, reason, terminatedBy string) {
	if c.events == nil {
		return
	}
	event := domain.SessionTerminatedEvent{
		EventID:       c.newID(),
		SessionID:     session.ID,
		UserID:        session.UserID,
		TerminatedAt:  c.now(),
		TerminatedBy:  terminatedBy,
		Reason:        reason,
		TokensRevoked: tokensRevoked,
		IPAddress:     session.IP,
		UserAgent:     session.UserAgent,
	}
	if err := c.events.PublishSessionTerminated(ctx, event); err != nil {
		c.logger.Warn("publish session terminated event failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (c *RevocationCoordinator) publishUserTerminated(ctx context.Context, userID string, result TerminationResult, reason, terminatedBy string) {
	if c.events == nil {
		return
	}
	event := domain.UserSessionsTerminatedEvent{
		EventID:            c.newID(),
		UserID:             userID,
		SessionIDs:         result.SessionIDs,
		SessionsTerminated: result.SessionsTerminated,
		TokensRevoked:      result.TokensRevoked,
		TerminatedAt:       c.now(),
		TerminatedBy:       terminatedBy,
		Reason:             reason,
	}
	if err := c.events.PublishUserSessionsTerminated(ctx, event); err != nil {
		c.logger.Warn("publish user termination event failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// denylistTTL keeps the session marker alive as long as its longest-lived
// token could still be presented downstream.
func denylistTTL(now time.Time, tokens []domain.Token) time.Duration {
	ttl := time.Hour
	for _, token := range tokens {
		if remaining := token.ExpiresAt.Sub(now); remaining > ttl {
			ttl = remaining
		}
	}
	return ttl
}

func chooseReason(reason, fallback string) string {
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		return trimmed
	}
	return fallback
}
