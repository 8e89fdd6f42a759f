package memory

import (
	"sync"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// Store is the single-node authoritative backend for sessions and token
// bindings. Reads run concurrently under a shared lock; mutations flow
// through WithinUser, which serializes writers per user and publishes the
// whole write-set atomically, so a reader observes either the state before a
// cascade or after it, never a session gone with its tokens still active.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]domain.Session
	userSessions  map[string]map[string]struct{}
	tokens        map[string]domain.Token
	sessionTokens map[string]map[string]struct{}

	locks sync.Map // userID -> *sync.Mutex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sessions:      make(map[string]domain.Session),
		userSessions:  make(map[string]map[string]struct{}),
		tokens:        make(map[string]domain.Token),
		sessionTokens: make(map[string]map[string]struct{}),
	}
}

// Sessions returns the session-store view of the shared state.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{store: s}
}

// Tokens returns the token-binding-index view of the shared state.
func (s *Store) Tokens() *TokenRepository {
	return &TokenRepository{store: s}
}

func (s *Store) putSessionLocked(session domain.Session) {
	s.sessions[session.ID] = session
	ids, ok := s.userSessions[session.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.userSessions[session.UserID] = ids
	}
	ids[session.ID] = struct{}{}
}

func (s *Store) removeSessionLocked(sessionID string) bool {
	session, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	delete(s.sessions, sessionID)
	if ids, ok := s.userSessions[session.UserID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(s.userSessions, session.UserID)
		}
	}
	// Token rows survive in their current state; bindings remain queryable.
	return true
}

func (s *Store) putTokenLocked(token domain.Token) {
	s.tokens[token.ID] = token
	ids, ok := s.sessionTokens[token.SessionID]
	if !ok {
		ids = make(map[string]struct{})
		s.sessionTokens[token.SessionID] = ids
	}
	ids[token.ID] = struct{}{}
}

func (s *Store) bindLocked(token domain.Token) error {
	if _, exists := s.tokens[token.ID]; exists {
		return repository.ErrDuplicate
	}
	session, ok := s.sessions[token.SessionID]
	if !ok {
		return repository.ErrNotFound
	}
	if token.UserID == "" {
		token.UserID = session.UserID
	}
	s.putTokenLocked(token.Clone())
	return nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
