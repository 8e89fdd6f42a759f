package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

// TokenHandler exposes the binding endpoint consumed by the token issuer.
type TokenHandler struct {
	bindings *usecase.TokenBindingService
}

// NewTokenHandler constructs a token handler.
func NewTokenHandler(bindings *usecase.TokenBindingService) *TokenHandler {
	return &TokenHandler{bindings: bindings}
}

// RegisterRoutes binds token routes to the provided router group.
func (h *TokenHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("", h.BindToken)
}

// BindToken records a freshly issued token against its owning session.
func (h *TokenHandler) BindToken(c *gin.Context) {
	if h.bindings == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "token binding unavailable"))
		return
	}

	var req TokenBindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id and kind are required"))
		return
	}

	var expiresAt time.Time
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	token, err := h.bindings.BindToken(c.Request.Context(), usecase.BindTokenInput{
		TokenID:   req.TokenID,
		SessionID: req.SessionID,
		Kind:      domain.TokenKind(req.Kind),
		Scope:     req.Scope,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrUnknownSession, Status: http.StatusNotFound, Message: "session not found"},
			{Err: usecase.ErrDuplicateToken, Status: http.StatusConflict, Message: "token already bound"},
			{Err: usecase.ErrStorageFailure, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusBadRequest, "failed to bind token")
		return
	}

	c.JSON(http.StatusCreated, newTokenPayload(*token))
}
