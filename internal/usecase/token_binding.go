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

const defaultTokenTTL = time.Hour

// TokenBindingService records tokens issued by the external token issuer
// against their owning session. Binding to an absent session is a hard error
// so an issued token can never outlive a login that is already gone.
type TokenBindingService struct {
	runner   port.TxRunner
	sessions port.SessionStore
	tokens   port.TokenBindingIndex
	logger   *zap.Logger
	tokenTTL time.Duration
	now      func() time.Time
	newID    func() string
}

// NewTokenBindingService constructs a TokenBindingService.
func NewTokenBindingService(runner port.TxRunner, sessions port.SessionStore, tokens port.TokenBindingIndex, logger *zap.Logger) *TokenBindingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBindingService{
		runner:   runner,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		tokenTTL: defaultTokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *TokenBindingService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTokenTTL overrides the default validity window applied when the issuer
// does not supply an expiry.
func (s *TokenBindingService) WithTokenTTL(ttl time.Duration) *TokenBindingService {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
	return s
}

// BindTokenInput carries the parameters of a freshly issued token.
type BindTokenInput struct {
	TokenID   string
	SessionID string
	Kind      domain.TokenKind
	Scope     string
	ExpiresAt time.Time
}

// BindToken registers the token under its session.
func (s *TokenBindingService) BindToken(ctx context.Context, input BindTokenInput) (*domain.Token, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if input.Kind != domain.TokenKindAccess && input.Kind != domain.TokenKindRefresh {
		return nil, fmt.Errorf("unsupported token kind %q", input.Kind)
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	tokenID := strings.TrimSpace(input.TokenID)
	if tokenID == "" {
		tokenID = s.newID()
	}

	now := s.now()
	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.tokenTTL)
	}

	token := domain.Token{
		ID:        tokenID,
		SessionID: sessionID,
		UserID:    session.UserID,
		Kind:      input.Kind,
		Scope:     input.Scope,
		State:     domain.TokenStateActive,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}

	err = runSerialized(ctx, s.runner, session.UserID, func(ctx context.Context, stores port.TxStores) error {
		return stores.Tokens.Bind(ctx, token)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Session terminated between the read and the unit of work.
			return nil, ErrUnknownSession
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("bind token: %w", err)
	}

	s.logger.Info("token bound",
		zap.String("token_id", token.ID),
		zap.String("session_id", token.SessionID),
		zap.String("user_id", token.UserID),
		zap.String("kind", string(token.Kind)),
	)

	clone := token.Clone()
	return &clone, nil
}

// GetToken returns the stored record for a token id.
func (s *TokenBindingService) GetToken(ctx context.Context, tokenID string) (*domain.Token, error) {
	if strings.TrimSpace(tokenID) == "" {
		return nil, fmt.Errorf("token id is required")
	}

	token, err := s.tokens.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return token, nil
}
