package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-sessions/internal/infra/telemetry"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

// IntrospectHandler answers token liveness queries for resource servers.
type IntrospectHandler struct {
	introspection *usecase.IntrospectionService
	metrics       *telemetry.Provider
}

// NewIntrospectHandler constructs an introspection handler.
func NewIntrospectHandler(introspection *usecase.IntrospectionService, metrics *telemetry.Provider) *IntrospectHandler {
	return &IntrospectHandler{introspection: introspection, metrics: metrics}
}

// RegisterRoutes binds the introspection route to the provided router group.
func (h *IntrospectHandler) RegisterRoutes(r *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	handlers := append([]gin.HandlerFunc{}, middlewares...)
	handlers = append(handlers, h.Introspect)
	r.POST("", handlers...)
}

// Introspect reports whether a token is usable right now. Every well-formed
// request answers 200; unknown tokens are simply inactive.
func (h *IntrospectHandler) Introspect(c *gin.Context) {
	if h.introspection == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "introspection unavailable"))
		return
	}

	var req IntrospectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token_id is required"))
		return
	}

	answer, err := h.introspection.Introspect(c.Request.Context(), req.TokenID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to introspect token")
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveIntrospection(answer.Active)
	}

	c.JSON(http.StatusOK, newIntrospectResponse(answer))
}
