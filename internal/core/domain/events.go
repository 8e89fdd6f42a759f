package domain

import "time"

// SessionTerminatedEvent captures a single session termination and its token
// cascade. Published after the cascade commits.
type SessionTerminatedEvent struct {
	EventID       string
	SessionID     string
	UserID        string
	TerminatedAt  time.Time
	TerminatedBy  string
	Reason        string
	TokensRevoked int
	IPAddress     *string
	UserAgent     *string
	Metadata      map[string]any
}

// UserSessionsTerminatedEvent captures a bulk termination of every session
// owned by a user.
type UserSessionsTerminatedEvent struct {
	EventID            string
	UserID             string
	SessionIDs         []string
	SessionsTerminated int
	TokensRevoked      int
	TerminatedAt       time.Time
	TerminatedBy       string
	Reason             string
	Metadata           map[string]any
}
