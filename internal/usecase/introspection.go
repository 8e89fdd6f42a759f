package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// Introspection is the answer to a token liveness query. Descriptive fields
// are populated only when the token is active, so callers learn nothing about
// tokens that are revoked, expired, or were never issued.
type Introspection struct {
	Active    bool
	TokenID   string
	SessionID string
	UserID    string
	Kind      domain.TokenKind
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IntrospectionService computes token liveness from the current state of the
// token index and the session store on every call. There is no cache layer:
// a committed termination is visible to the very next introspection.
type IntrospectionService struct {
	runner   port.TxRunner
	sessions port.SessionStore
	tokens   port.TokenBindingIndex
	logger   *zap.Logger
	now      func() time.Time
}

// NewIntrospectionService constructs an IntrospectionService.
func NewIntrospectionService(runner port.TxRunner, sessions port.SessionStore, tokens port.TokenBindingIndex, logger *zap.Logger) *IntrospectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntrospectionService{
		runner:   runner,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *IntrospectionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Introspect reports whether the token is usable right now. A token is active
// iff its state is active, its expiry is in the future, and its owning
// session still exists. Unknown tokens answer inactive without an error.
func (s *IntrospectionService) Introspect(ctx context.Context, tokenID string) (Introspection, error) {
	if strings.TrimSpace(tokenID) == "" {
		return Introspection{}, fmt.Errorf("token id is required")
	}

	token, err := s.tokens.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Introspection{}, nil
		}
		return Introspection{}, fmt.Errorf("get token: %w", err)
	}

	now := s.now()
	if token.State == domain.TokenStateActive && token.IsExpired(now) {
		s.expireLazily(ctx, token)
		return Introspection{}, nil
	}
	if token.State != domain.TokenStateActive {
		return Introspection{}, nil
	}

	if _, err := s.sessions.Get(ctx, token.SessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Introspection{}, nil
		}
		return Introspection{}, fmt.Errorf("get token session: %w", err)
	}

	return Introspection{
		Active:    true,
		TokenID:   token.ID,
		SessionID: token.SessionID,
		UserID:    token.UserID,
		Kind:      token.Kind,
		Scope:     token.Scope,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// expireLazily flips a token past its validity window to the expired state.
// Best effort: the answer is inactive either way.
func (s *IntrospectionService) expireLazily(ctx context.Context, token *domain.Token) {
	if s.runner == nil {
		return
	}
	err := s.runner.WithinUser(ctx, token.UserID, func(ctx context.Context, stores port.TxStores) error {
		_, err := stores.Tokens.MarkExpired(ctx, token.ID)
		return err
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("lazy token expiry failed",
			zap.String("token_id", token.ID), zap.Error(err))
	}
}
