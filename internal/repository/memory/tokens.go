package memory

import (
	"context"
	"sort"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// TokenRepository implements port.TokenBindingIndex over the shared Store state.
type TokenRepository struct {
	store *Store
}

// Bind registers a new active token against an existing session.
func (r *TokenRepository) Bind(_ context.Context, token domain.Token) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.bindLocked(token)
}

// Get returns a token by identifier.
func (r *TokenRepository) Get(_ context.Context, tokenID string) (*domain.Token, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	token, ok := r.store.tokens[tokenID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := token.Clone()
	return &clone, nil
}

// TokensOf returns every token bound to the session, any kind and any state.
func (r *TokenRepository) TokensOf(_ context.Context, sessionID string) ([]domain.Token, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := r.store.sessionTokens[sessionID]
	tokens := make([]domain.Token, 0, len(ids))
	for id := range ids {
		if token, ok := r.store.tokens[id]; ok {
			tokens = append(tokens, token.Clone())
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens, nil
}

// SessionOf resolves the session a token was issued under.
func (r *TokenRepository) SessionOf(_ context.Context, tokenID string) (string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	token, ok := r.store.tokens[tokenID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return token.SessionID, nil
}

// MarkRevoked flips a single token to revoked. Terminal states are no-ops.
func (r *TokenRepository) MarkRevoked(_ context.Context, tokenID string, reason string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	token, ok := r.store.tokens[tokenID]
	if !ok {
		return false, repository.ErrNotFound
	}
	changed := token.Revoke(time.Now().UTC(), reason)
	if changed {
		r.store.tokens[tokenID] = token
	}
	return changed, nil
}

// MarkExpired flips a token past its expiry to the expired state.
func (r *TokenRepository) MarkExpired(_ context.Context, tokenID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	token, ok := r.store.tokens[tokenID]
	if !ok {
		return false, repository.ErrNotFound
	}
	changed := token.Expire()
	if changed {
		r.store.tokens[tokenID] = token
	}
	return changed, nil
}

// RevokeBySessions revokes every still-active token bound to the sessions.
func (r *TokenRepository) RevokeBySessions(_ context.Context, sessionIDs []string, reason string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	revoked := 0
	for _, sessionID := range sessionIDs {
		for id := range r.store.sessionTokens[sessionID] {
			token, ok := r.store.tokens[id]
			if !ok {
				continue
			}
			if token.Revoke(now, reason) {
				r.store.tokens[id] = token
				revoked++
			}
		}
	}
	return revoked, nil
}

// IsActive reports whether the token state is active and unexpired.
func (r *TokenRepository) IsActive(_ context.Context, tokenID string, at time.Time) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	token, ok := r.store.tokens[tokenID]
	if !ok {
		return false, repository.ErrNotFound
	}
	return token.IsActive(at), nil
}

var _ port.TokenBindingIndex = (*TokenRepository)(nil)
