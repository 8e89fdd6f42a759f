package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-sessions/internal/repository/memory"
	"github.com/arklim/social-platform-sessions/internal/transport/http/handlers"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

type testAPI struct {
	router        *gin.Engine
	store         *memory.Store
	sessions      *usecase.SessionService
	bindings      *usecase.TokenBindingService
	revocation    *usecase.RevocationCoordinator
	introspection *usecase.IntrospectionService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	store := memory.NewStore()

	api := &testAPI{
		store:         store,
		sessions:      usecase.NewSessionService(store, store.Sessions(), log),
		bindings:      usecase.NewTokenBindingService(store, store.Sessions(), store.Tokens(), log),
		revocation:    usecase.NewRevocationCoordinator(store, store.Sessions(), nil, log),
		introspection: usecase.NewIntrospectionService(store, store.Sessions(), store.Tokens(), log),
	}

	router := gin.New()
	group := router.Group("/api/v1")

	sessionHandler := handlers.NewSessionHandler(api.sessions, api.revocation, nil)
	sessionHandler.RegisterSessionRoutes(group.Group("/sessions"))
	sessionHandler.RegisterUserRoutes(group.Group("/users"))

	handlers.NewTokenHandler(api.bindings).RegisterRoutes(group.Group("/tokens"))
	handlers.NewIntrospectHandler(api.introspection, nil).RegisterRoutes(group.Group("/introspect"))

	api.router = router
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) createSession(t *testing.T, sessionID, userID string) {
	t.Helper()

	rr := a.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
		"applications": []map[string]string{
			{"app_id": "app-1", "app_name": "travelocity", "subject": userID},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating session, got %d: %s", rr.Code, rr.Body.String())
	}
}

func (a *testAPI) bindToken(t *testing.T, tokenID, sessionID, kind, scope string) {
	t.Helper()

	rr := a.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{
		"token_id":   tokenID,
		"session_id": sessionID,
		"kind":       kind,
		"scope":      scope,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 binding token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"session_id": "sess-1",
		"user_id":    "user-1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload handlers.SessionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "sess-1" || payload.UserID != "user-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	rr = api.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"session_id": "sess-1",
		"user_id":    "user-1",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rr.Code)
	}
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"session_id": "sess-1",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id, got %d", rr.Code)
	}
}

func TestGetSessionEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.createSession(t, "sess-1", "user-1")

	rr := api.do(t, http.MethodGet, "/api/v1/sessions/sess-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = api.do(t, http.MethodGet, "/api/v1/sessions/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rr.Code)
	}
}

func TestTouchSessionEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.createSession(t, "sess-1", "user-1")

	rr := api.do(t, http.MethodPost, "/api/v1/sessions/sess-1/touch", map[string]any{
		"ip": "203.0.113.9",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = api.do(t, http.MethodPost, "/api/v1/sessions/missing/touch", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rr.Code)
	}
}

func TestTerminateSessionEndpointCascades(t *testing.T) {
	api := newTestAPI(t)
	api.createSession(t, "sess-1", "user-1")
	api.bindToken(t, "tok-access", "sess-1", "access", "openid random")
	api.bindToken(t, "tok-refresh", "sess-1", "refresh", "openid random")

	rr := api.do(t, http.MethodDelete, "/api/v1/sessions/sess-1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	for _, tokenID := range []string{"tok-access", "tok-refresh"} {
		rr = api.do(t, http.MethodPost, "/api/v1/introspect", map[string]any{"token_id": tokenID})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 introspecting %s, got %d", tokenID, rr.Code)
		}

		var answer handlers.IntrospectResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &answer); err != nil {
			t.Fatalf("decode introspection: %v", err)
		}
		if answer.Active {
			t.Fatalf("token %s still active after termination", tokenID)
		}
	}

	// The desired state already holds, so a second delete is still a 204.
	rr = api.do(t, http.MethodDelete, "/api/v1/sessions/sess-1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on repeat delete, got %d", rr.Code)
	}
}

func TestTerminateUserSessionsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	for i := 1; i <= 2; i++ {
		sessionID := fmt.Sprintf("sess-%d", i)
		api.createSession(t, sessionID, "user-1")
		api.bindToken(t, sessionID+"-access", sessionID, "access", "openid internal_login")
		api.bindToken(t, sessionID+"-refresh", sessionID, "refresh", "openid internal_login")
	}

	rr := api.do(t, http.MethodDelete, "/api/v1/users/user-1/sessions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result handlers.TerminationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode termination response: %v", err)
	}
	if result.SessionsTerminated != 2 || result.TokensRevoked != 4 {
		t.Fatalf("unexpected counts %+v", result)
	}

	rr = api.do(t, http.MethodGet, "/api/v1/users/user-1/sessions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 listing, got %d", rr.Code)
	}

	var list handlers.SessionListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode session list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("expected no sessions left, got %d", list.Total)
	}
}

func TestListUserSessionsEmpty(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/api/v1/users/nobody/sessions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var list handlers.SessionListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode session list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("expected empty list, got %d", list.Total)
	}
}

func TestBindTokenEndpointErrors(t *testing.T) {
	api := newTestAPI(t)
	api.createSession(t, "sess-1", "user-1")

	rr := api.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{
		"token_id":   "tok-1",
		"session_id": "missing",
		"kind":       "access",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rr.Code)
	}

	api.bindToken(t, "tok-1", "sess-1", "access", "openid")

	rr = api.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{
		"token_id":   "tok-1",
		"session_id": "sess-1",
		"kind":       "access",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate token, got %d", rr.Code)
	}

	rr = api.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{
		"token_id":   "tok-2",
		"session_id": "sess-1",
		"kind":       "id_token",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported kind, got %d", rr.Code)
	}
}
