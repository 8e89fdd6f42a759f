package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/infra/telemetry"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

// SessionHandler exposes endpoints for session registration and termination.
type SessionHandler struct {
	sessions   *usecase.SessionService
	revocation *usecase.RevocationCoordinator
	metrics    *telemetry.Provider
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService, revocation *usecase.RevocationCoordinator, metrics *telemetry.Provider) *SessionHandler {
	return &SessionHandler{sessions: sessions, revocation: revocation, metrics: metrics}
}

// RegisterSessionRoutes binds routes scoped to individual sessions.
func (h *SessionHandler) RegisterSessionRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("", h.CreateSession)
	r.GET("/:session_id", h.GetSession)
	r.POST("/:session_id/touch", h.TouchSession)
	r.DELETE("/:session_id", h.TerminateSession)
}

// RegisterUserRoutes binds routes scoped to a user's whole session set.
func (h *SessionHandler) RegisterUserRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/:user_id/sessions", h.ListUserSessions)
	r.DELETE("/:user_id/sessions", h.TerminateUserSessions)
}

// CreateSession records a freshly authenticated login.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	var req SessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id is required"))
		return
	}

	apps := make([]domain.Application, 0, len(req.Applications))
	for _, app := range req.Applications {
		apps = append(apps, domain.Application{
			AppID:   app.AppID,
			AppName: app.AppName,
			Subject: app.Subject,
		})
	}

	session, err := h.sessions.RegisterSession(c.Request.Context(), usecase.RegisterSessionInput{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		Applications: apps,
		UserAgent:    req.UserAgent,
		IP:           req.IP,
	})
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrDuplicateSession, Status: http.StatusConflict, Message: "session already exists"},
			{Err: usecase.ErrStorageFailure, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to register session")
		return
	}

	c.JSON(http.StatusCreated, newSessionPayload(*session))
}

// GetSession returns one session by identifier.
func (h *SessionHandler) GetSession(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrUnknownSession, Status: http.StatusNotFound, Message: "session not found"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to get session")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}

// TouchSession refreshes last-activity metadata after user action.
func (h *SessionHandler) TouchSession(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	var req SessionTouchRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid touch payload"))
		return
	}

	err := h.sessions.TouchSession(c.Request.Context(), c.Param("session_id"), req.IP, req.UserAgent)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrUnknownSession, Status: http.StatusNotFound, Message: "session not found"},
			{Err: usecase.ErrStorageFailure, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to touch session")
		return
	}

	c.Status(http.StatusNoContent)
}

// TerminateSession terminates one session and revokes its bound tokens.
// Terminating an absent session still answers 204: the desired state holds.
func (h *SessionHandler) TerminateSession(c *gin.Context) {
	if h.revocation == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "revocation unavailable"))
		return
	}

	reason := strings.TrimSpace(c.Query("reason"))
	result, err := h.revocation.TerminateSession(c.Request.Context(), c.Param("session_id"), reason, terminatedBy(c))
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrStorageFailure, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to terminate session")
		return
	}

	if h.metrics != nil && result.SessionsTerminated > 0 {
		h.metrics.ObserveTermination("session", result.SessionsTerminated, result.TokensRevoked)
	}

	c.Status(http.StatusNoContent)
}

// ListUserSessions returns every live session owned by the user.
func (h *SessionHandler) ListUserSessions(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: payloads, Total: len(payloads)})
}

// TerminateUserSessions terminates every session owned by the user in one batch.
func (h *SessionHandler) TerminateUserSessions(c *gin.Context) {
	if h.revocation == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "revocation unavailable"))
		return
	}

	reason := strings.TrimSpace(c.Query("reason"))
	result, err := h.revocation.TerminateAllForUser(c.Request.Context(), c.Param("user_id"), reason, terminatedBy(c))
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrStorageFailure, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to terminate sessions")
		return
	}

	if h.metrics != nil && result.SessionsTerminated > 0 {
		h.metrics.ObserveTermination("user", result.SessionsTerminated, result.TokensRevoked)
	}

	c.JSON(http.StatusOK, newTerminationResponse(result))
}

// terminatedBy identifies the caller of an administrative termination.
func terminatedBy(c *gin.Context) string {
	if actor := strings.TrimSpace(c.GetHeader("X-Terminated-By")); actor != "" {
		return actor
	}
	return c.ClientIP()
}
