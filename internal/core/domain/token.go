package domain

import "time"

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenState models the monotone token lifecycle. Active tokens may move to
// revoked or expired; both are terminal.
type TokenState string

const (
	TokenStateActive  TokenState = "active"
	TokenStateRevoked TokenState = "revoked"
	TokenStateExpired TokenState = "expired"
)

// Token is an opaque token identifier bound to exactly one session. Token ids
// are never reused; rows survive revocation in a terminal state so
// introspection stays truthful without leaking existence.
type Token struct {
	ID           string
	SessionID    string
	UserID       string
	Kind         TokenKind
	Scope        string
	State        TokenState
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	RevokeReason *string
}

// IsTerminal reports whether the token has reached a terminal state.
func (t Token) IsTerminal() bool {
	return t.State == TokenStateRevoked || t.State == TokenStateExpired
}

// IsExpired reports whether the token has elapsed its validity window.
func (t Token) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsActive reports whether the token is usable at the supplied moment. The
// owning session's existence is checked separately by the introspection path.
func (t Token) IsActive(at time.Time) bool {
	return t.State == TokenStateActive && !t.IsExpired(at)
}

// Revoke marks the token as revoked. Returns true when the token transitioned;
// re-applying to a terminal token is a no-op.
func (t *Token) Revoke(at time.Time, reason string) bool {
	if t.IsTerminal() {
		return false
	}
	t.State = TokenStateRevoked
	timeCopy := at
	t.RevokedAt = &timeCopy
	if reason != "" {
		reasonCopy := reason
		t.RevokeReason = &reasonCopy
	}
	return true
}

// Expire marks the token as expired. Terminal states are preserved.
func (t *Token) Expire() bool {
	if t.IsTerminal() {
		return false
	}
	t.State = TokenStateExpired
	return true
}

// Clone returns a deep copy of the token.
func (t Token) Clone() Token {
	clone := t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		clone.RevokedAt = &at
	}
	if t.RevokeReason != nil {
		reason := *t.RevokeReason
		clone.RevokeReason = &reason
	}
	return clone
}
