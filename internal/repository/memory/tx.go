package memory

import (
	"context"
	"sort"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// WithinUser runs fn as one atomic unit serialized against every other
// mutation for the same user. Writes are staged in a transaction-local
// write-set and applied under a single write lock on success, so concurrent
// readers never observe a partially applied cascade. A unit that has started
// is never abandoned mid-flight on context cancellation; it commits or the
// staged writes are discarded wholesale.
func (s *Store) WithinUser(ctx context.Context, userID string, fn func(ctx context.Context, stores port.TxStores) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx := &txState{
		store:   s,
		sessPut: make(map[string]domain.Session),
		sessDel: make(map[string]struct{}),
		tokPut:  make(map[string]domain.Token),
	}

	if err := fn(ctx, port.TxStores{
		Sessions: &txSessionStore{tx: tx},
		Tokens:   &txTokenIndex{tx: tx},
	}); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// txState stages writes for one unit of work. Reads merge the staged
// write-set over the committed base state.
type txState struct {
	store   *Store
	sessPut map[string]domain.Session
	sessDel map[string]struct{}
	tokPut  map[string]domain.Token
}

func (tx *txState) commit() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for _, session := range tx.sessPut {
		tx.store.putSessionLocked(session)
	}
	for _, token := range tx.tokPut {
		tx.store.putTokenLocked(token)
	}
	for id := range tx.sessDel {
		tx.store.removeSessionLocked(id)
	}
}

func (tx *txState) session(sessionID string) (domain.Session, bool) {
	if _, deleted := tx.sessDel[sessionID]; deleted {
		return domain.Session{}, false
	}
	if session, ok := tx.sessPut[sessionID]; ok {
		return session, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	session, ok := tx.store.sessions[sessionID]
	return session, ok
}

func (tx *txState) userSessionIDs(userID string) []string {
	seen := make(map[string]struct{})
	tx.store.mu.RLock()
	for id := range tx.store.userSessions[userID] {
		seen[id] = struct{}{}
	}
	tx.store.mu.RUnlock()

	for id, session := range tx.sessPut {
		if session.UserID == userID {
			seen[id] = struct{}{}
		}
	}
	for id := range tx.sessDel {
		delete(seen, id)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (tx *txState) token(tokenID string) (domain.Token, bool) {
	if token, ok := tx.tokPut[tokenID]; ok {
		return token, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	token, ok := tx.store.tokens[tokenID]
	return token, ok
}

func (tx *txState) sessionTokenIDs(sessionID string) []string {
	seen := make(map[string]struct{})
	tx.store.mu.RLock()
	for id := range tx.store.sessionTokens[sessionID] {
		seen[id] = struct{}{}
	}
	tx.store.mu.RUnlock()

	for id, token := range tx.tokPut {
		if token.SessionID == sessionID {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// txSessionStore is the transactional port.SessionStore view.
type txSessionStore struct {
	tx *txState
}

func (r *txSessionStore) Create(_ context.Context, session domain.Session) error {
	if _, ok := r.tx.session(session.ID); ok {
		return repository.ErrDuplicate
	}
	delete(r.tx.sessDel, session.ID)
	r.tx.sessPut[session.ID] = session.Clone()
	return nil
}

func (r *txSessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	session, ok := r.tx.session(sessionID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := session.Clone()
	return &clone, nil
}

func (r *txSessionStore) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	ids := r.tx.userSessionIDs(userID)
	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		if session, ok := r.tx.session(id); ok {
			sessions = append(sessions, session.Clone())
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LoginTime.After(sessions[j].LoginTime)
	})
	return sessions, nil
}

func (r *txSessionStore) Touch(_ context.Context, sessionID string, ip *string, userAgent *string) error {
	session, ok := r.tx.session(sessionID)
	if !ok {
		return repository.ErrNotFound
	}
	clone := session.Clone()
	clone.Touch(time.Now().UTC(), ip, userAgent)
	r.tx.sessPut[sessionID] = clone
	return nil
}

func (r *txSessionStore) Remove(_ context.Context, sessionID string) (bool, error) {
	_, ok := r.tx.session(sessionID)
	if !ok {
		return false, nil
	}
	delete(r.tx.sessPut, sessionID)
	r.tx.sessDel[sessionID] = struct{}{}
	return true, nil
}

func (r *txSessionStore) RemoveAllByUser(_ context.Context, userID string) ([]string, error) {
	ids := r.tx.userSessionIDs(userID)
	for _, id := range ids {
		delete(r.tx.sessPut, id)
		r.tx.sessDel[id] = struct{}{}
	}
	return ids, nil
}

// txTokenIndex is the transactional port.TokenBindingIndex view.
type txTokenIndex struct {
	tx *txState
}

func (r *txTokenIndex) Bind(_ context.Context, token domain.Token) error {
	if _, exists := r.tx.token(token.ID); exists {
		return repository.ErrDuplicate
	}
	session, ok := r.tx.session(token.SessionID)
	if !ok {
		return repository.ErrNotFound
	}
	if token.UserID == "" {
		token.UserID = session.UserID
	}
	r.tx.tokPut[token.ID] = token.Clone()
	return nil
}

func (r *txTokenIndex) Get(_ context.Context, tokenID string) (*domain.Token, error) {
	token, ok := r.tx.token(tokenID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := token.Clone()
	return &clone, nil
}

func (r *txTokenIndex) TokensOf(_ context.Context, sessionID string) ([]domain.Token, error) {
	ids := r.tx.sessionTokenIDs(sessionID)
	tokens := make([]domain.Token, 0, len(ids))
	for _, id := range ids {
		if token, ok := r.tx.token(id); ok {
			tokens = append(tokens, token.Clone())
		}
	}
	return tokens, nil
}

func (r *txTokenIndex) SessionOf(_ context.Context, tokenID string) (string, error) {
	token, ok := r.tx.token(tokenID)
	if !ok {
		return "", repository.ErrNotFound
	}
	return token.SessionID, nil
}

func (r *txTokenIndex) MarkRevoked(_ context.Context, tokenID string, reason string) (bool, error) {
	token, ok := r.tx.token(tokenID)
	if !ok {
		return false, repository.ErrNotFound
	}
	clone := token.Clone()
	changed := clone.Revoke(time.Now().UTC(), reason)
	if changed {
		r.tx.tokPut[tokenID] = clone
	}
	return changed, nil
}

func (r *txTokenIndex) MarkExpired(_ context.Context, tokenID string) (bool, error) {
	token, ok := r.tx.token(tokenID)
	if !ok {
		return false, repository.ErrNotFound
	}
	clone := token.Clone()
	changed := clone.Expire()
	if changed {
		r.tx.tokPut[tokenID] = clone
	}
	return changed, nil
}

func (r *txTokenIndex) RevokeBySessions(_ context.Context, sessionIDs []string, reason string) (int, error) {
	now := time.Now().UTC()
	revoked := 0
	for _, sessionID := range sessionIDs {
		for _, id := range r.tx.sessionTokenIDs(sessionID) {
			token, ok := r.tx.token(id)
			if !ok {
				continue
			}
			clone := token.Clone()
			if clone.Revoke(now, reason) {
				r.tx.tokPut[id] = clone
				revoked++
			}
		}
	}
	return revoked, nil
}

func (r *txTokenIndex) IsActive(_ context.Context, tokenID string, at time.Time) (bool, error) {
	token, ok := r.tx.token(tokenID)
	if !ok {
		return false, repository.ErrNotFound
	}
	return token.IsActive(at), nil
}

var (
	_ port.TxRunner          = (*Store)(nil)
	_ port.SessionStore      = (*txSessionStore)(nil)
	_ port.TokenBindingIndex = (*txTokenIndex)(nil)
)
