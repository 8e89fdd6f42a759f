package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestIntrospectActiveToken(t *testing.T) {
	api := newTestAPI(t)
	api.createSession(t, "sess-1", "user-1")
	api.bindToken(t, "tok-1", "sess-1", "access", "openid random")

	rr := api.do(t, http.MethodPost, "/api/v1/introspect", map[string]any{"token_id": "tok-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var answer map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode introspection: %v", err)
	}

	if active, _ := answer["active"].(bool); !active {
		t.Fatalf("expected active token, got %v", answer)
	}
	if answer["session_id"] != "sess-1" || answer["user_id"] != "user-1" {
		t.Fatalf("unexpected fields %v", answer)
	}
	if answer["scope"] != "openid random" {
		t.Fatalf("unexpected scope %v", answer["scope"])
	}
}

func TestIntrospectUnknownTokenLeaksNothing(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/v1/introspect", map[string]any{"token_id": "never-issued"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown token, got %d", rr.Code)
	}

	var answer map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode introspection: %v", err)
	}

	if active, _ := answer["active"].(bool); active {
		t.Fatalf("unknown token reported active")
	}
	if len(answer) != 1 {
		t.Fatalf("expected only the active flag, got %v", answer)
	}
}

func TestIntrospectRejectsMalformedRequest(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/api/v1/introspect", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token_id, got %d", rr.Code)
	}
}
