package memory

import (
	"context"
	"sort"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// SessionRepository implements port.SessionStore over the shared Store state.
type SessionRepository struct {
	store *Store
}

// Create inserts a session record.
func (r *SessionRepository) Create(_ context.Context, session domain.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.sessions[session.ID]; exists {
		return repository.ErrDuplicate
	}
	r.store.putSessionLocked(session.Clone())
	return nil
}

// Get returns a session by identifier.
func (r *SessionRepository) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	session, ok := r.store.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := session.Clone()
	return &clone, nil
}

// ListByUser returns every session owned by the user, most recent login first.
func (r *SessionRepository) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := r.store.userSessions[userID]
	sessions := make([]domain.Session, 0, len(ids))
	for id := range ids {
		if session, ok := r.store.sessions[id]; ok {
			sessions = append(sessions, session.Clone())
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LoginTime.After(sessions[j].LoginTime)
	})
	return sessions, nil
}

// Touch refreshes last-access metadata for the session.
func (r *SessionRepository) Touch(_ context.Context, sessionID string, ip *string, userAgent *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Touch(time.Now().UTC(), ip, userAgent)
	r.store.sessions[sessionID] = session
	return nil
}

// Remove deletes a single session. Absent sessions are not an error.
func (r *SessionRepository) Remove(_ context.Context, sessionID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.removeSessionLocked(sessionID), nil
}

// RemoveAllByUser deletes every session owned by the user.
func (r *SessionRepository) RemoveAllByUser(_ context.Context, userID string) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	removed := make([]string, 0, len(r.store.userSessions[userID]))
	for id := range r.store.userSessions[userID] {
		removed = append(removed, id)
	}
	for _, id := range removed {
		r.store.removeSessionLocked(id)
	}
	sort.Strings(removed)
	return removed, nil
}

var _ port.SessionStore = (*SessionRepository)(nil)
