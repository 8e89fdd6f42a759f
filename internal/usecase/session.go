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

// SessionService handles session registration, listing, and activity updates.
// Registration runs inside the per-user atomic unit so a new login can never
// interleave with a bulk termination for the same user.
type SessionService struct {
	runner   port.TxRunner
	sessions port.SessionStore
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewSessionService constructs a SessionService.
func NewSessionService(runner port.TxRunner, sessions port.SessionStore, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		runner:   runner,
		sessions: sessions,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterSessionInput carries the parameters of a new login session.
type RegisterSessionInput struct {
	SessionID    string
	UserID       string
	Applications []domain.Application
	UserAgent    *string
	IP           *string
}

// RegisterSession records a new authenticated session for the user.
func (s *SessionService) RegisterSession(ctx context.Context, input RegisterSessionInput) (*domain.Session, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = s.newID()
	}

	now := s.now()
	session := domain.Session{
		ID:             sessionID,
		UserID:         userID,
		Applications:   input.Applications,
		UserAgent:      input.UserAgent,
		IP:             input.IP,
		LoginTime:      now,
		LastAccessTime: now,
	}

	err := runSerialized(ctx, s.runner, userID, func(ctx context.Context, stores port.TxStores) error {
		return stores.Sessions.Create(ctx, session)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("register session: %w", err)
	}

	s.logger.Info("session registered",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
		zap.Int("applications", len(session.Applications)),
	)

	clone := session.Clone()
	return &clone, nil
}

// ListSessions returns every live session owned by the user, most recent
// login first. An empty slice is a valid answer.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession fetches a single session by identifier.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// TouchSession refreshes last-access metadata after user activity.
func (s *SessionService) TouchSession(ctx context.Context, sessionID string, ip *string, userAgent *string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownSession
		}
		return fmt.Errorf("resolve session: %w", err)
	}

	err = runSerialized(ctx, s.runner, session.UserID, func(ctx context.Context, stores port.TxStores) error {
		return stores.Sessions.Touch(ctx, sessionID, ip, userAgent)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Terminated between the read and the unit of work.
			return ErrUnknownSession
		}
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}
