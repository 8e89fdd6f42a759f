package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// HealthResponse reports liveness status.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ApplicationPayload describes one application participating in a session.
type ApplicationPayload struct {
	AppID   string `json:"app_id"`
	AppName string `json:"app_name,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// SessionPayload is the API view of a live session.
type SessionPayload struct {
	ID             string               `json:"id"`
	UserID         string               `json:"user_id"`
	Applications   []ApplicationPayload `json:"applications,omitempty"`
	UserAgent      *string              `json:"user_agent,omitempty"`
	IP             *string              `json:"ip,omitempty"`
	LoginTime      time.Time            `json:"login_time"`
	LastAccessTime time.Time            `json:"last_access_time"`
}

func newSessionPayload(session domain.Session) SessionPayload {
	apps := make([]ApplicationPayload, 0, len(session.Applications))
	for _, app := range session.Applications {
		apps = append(apps, ApplicationPayload{
			AppID:   app.AppID,
			AppName: app.AppName,
			Subject: app.Subject,
		})
	}

	return SessionPayload{
		ID:             session.ID,
		UserID:         session.UserID,
		Applications:   apps,
		UserAgent:      session.UserAgent,
		IP:             session.IP,
		LoginTime:      session.LoginTime,
		LastAccessTime: session.LastAccessTime,
	}
}

// SessionCreateRequest is the payload used by the auth front-end to register a login.
type SessionCreateRequest struct {
	SessionID    string               `json:"session_id"`
	UserID       string               `json:"user_id" binding:"required"`
	Applications []ApplicationPayload `json:"applications"`
	UserAgent    *string              `json:"user_agent"`
	IP           *string              `json:"ip"`
}

// SessionListResponse wraps the sessions owned by one user.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionTouchRequest updates last-activity metadata on a session.
type SessionTouchRequest struct {
	IP        *string `json:"ip"`
	UserAgent *string `json:"user_agent"`
}

// TerminationResponse reports how much a termination cascade removed.
type TerminationResponse struct {
	SessionsTerminated int      `json:"sessions_terminated"`
	TokensRevoked      int      `json:"tokens_revoked"`
	SessionIDs         []string `json:"session_ids,omitempty"`
}

func newTerminationResponse(result usecase.TerminationResult) TerminationResponse {
	return TerminationResponse{
		SessionsTerminated: result.SessionsTerminated,
		TokensRevoked:      result.TokensRevoked,
		SessionIDs:         result.SessionIDs,
	}
}

// TokenBindRequest is the payload used by the token issuer to record an issued token.
type TokenBindRequest struct {
	TokenID   string     `json:"token_id"`
	SessionID string     `json:"session_id" binding:"required"`
	Kind      string     `json:"kind" binding:"required"`
	Scope     string     `json:"scope"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// TokenPayload is the API view of a bound token.
type TokenPayload struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	UserID       string     `json:"user_id"`
	Kind         string     `json:"kind"`
	Scope        string     `json:"scope,omitempty"`
	State        string     `json:"state"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
}

func newTokenPayload(token domain.Token) TokenPayload {
	return TokenPayload{
		ID:           token.ID,
		SessionID:    token.SessionID,
		UserID:       token.UserID,
		Kind:         string(token.Kind),
		Scope:        token.Scope,
		State:        string(token.State),
		IssuedAt:     token.IssuedAt,
		ExpiresAt:    token.ExpiresAt,
		RevokedAt:    token.RevokedAt,
		RevokeReason: token.RevokeReason,
	}
}

// IntrospectRequest asks whether a token is usable right now.
type IntrospectRequest struct {
	TokenID string `json:"token_id" binding:"required"`
}

// IntrospectResponse answers a liveness query. Descriptive fields are only
// present when the token is active.
type IntrospectResponse struct {
	Active    bool   `json:"active"`
	TokenID   string `json:"token_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Scope     string `json:"scope,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

func newIntrospectResponse(answer usecase.Introspection) IntrospectResponse {
	if !answer.Active {
		return IntrospectResponse{Active: false}
	}

	return IntrospectResponse{
		Active:    true,
		TokenID:   answer.TokenID,
		SessionID: answer.SessionID,
		UserID:    answer.UserID,
		Kind:      string(answer.Kind),
		Scope:     answer.Scope,
		IssuedAt:  answer.IssuedAt.Unix(),
		ExpiresAt: answer.ExpiresAt.Unix(),
	}
}
