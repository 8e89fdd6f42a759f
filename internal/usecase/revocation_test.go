package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/repository/memory"
)

type termFixture struct {
	store       *memory.Store
	sessions    *SessionService
	bindings    *TokenBindingService
	coordinator *RevocationCoordinator
	introspect  *IntrospectionService
	publisher   *capturingPublisher
	denylist    *fakeDenylist
}

func newTermFixture(t *testing.T) *termFixture {
	t.Helper()

	store := memory.NewStore()
	publisher := &capturingPublisher{}
	denylist := newFakeDenylist()

	coordinator := NewRevocationCoordinator(store, store.Sessions(), publisher, nil).
		WithDenylist(denylist)

	return &termFixture{
		store:       store,
		sessions:    NewSessionService(store, store.Sessions(), nil),
		bindings:    NewTokenBindingService(store, store.Sessions(), store.Tokens(), nil),
		coordinator: coordinator,
		introspect:  NewIntrospectionService(store, store.Sessions(), store.Tokens(), nil),
		publisher:   publisher,
		denylist:    denylist,
	}
}

func (f *termFixture) login(t *testing.T, userID string, scopes ...string) (*domain.Session, []*domain.Token) {
	t.Helper()

	session, err := f.sessions.RegisterSession(context.Background(), RegisterSessionInput{
		UserID: userID,
		Applications: []domain.Application{
			{AppID: "app-1", AppName: "playground", Subject: userID},
		},
	})
	if err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}

	tokens := make([]*domain.Token, 0, len(scopes)*2)
	for _, scope := range scopes {
		for _, kind := range []domain.TokenKind{domain.TokenKindAccess, domain.TokenKindRefresh} {
			token, err := f.bindings.BindToken(context.Background(), BindTokenInput{
				SessionID: session.ID,
				Kind:      kind,
				Scope:     scope,
			})
			if err != nil {
				t.Fatalf("BindToken: %v", err)
			}
			tokens = append(tokens, token)
		}
	}
	return session, tokens
}

func TestTerminateSessionCascade(t *testing.T) {
	f := newTermFixture(t)
	ctx := context.Background()

	session, tokens := f.login(t, "user-1", "openid")

	result, err := f.coordinator.TerminateSession(ctx, session.ID, "user logout", "user-1")
	if err != nil {
		t.Fatalf("TerminateSession: %v", err)
	}
	if result.SessionsTerminated != 1 || result.TokensRevoked != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, err := f.sessions.GetSession(ctx, session.ID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected session gone, got %v", err)
	}
	for _, token := range tokens {
		answer, err := f.introspect.Introspect(ctx, token.ID)
		if err != nil {
			t.Fatalf("Introspect: %v", err)
		}
		if answer.Active {
			t.Fatalf("token %s still active after cascade", token.ID)
		}
	}

	if len(f.publisher.sessions) != 1 {
		t.Fatalf("expected 1 session event, got %d", len(f.publisher.sessions))
	}
	event := f.publisher.sessions[0]
	if event.SessionID != session.ID || event.TokensRevoked != 2 || event.Reason != "user logout" {
		t.Fatalf("unexpected event: %+v", event)
	}

	for _, token := range tokens {
		listed, _, err := f.denylist.IsTokenRevoked(ctx, token.ID)
		if err != nil || !listed {
			t.Fatalf("token %s missing from denylist", token.ID)
		}
	}
}

func TestTerminateSessionIdempotent(t *testing.T) {
	f := newTermFixture(t)
	ctx := context.Background()

	session, _ := f.login(t, "user-1", "openid")

	if _, err := f.coordinator.TerminateSession(ctx, session.ID, "", ""); err != nil {
		t.Fatalf("first termination: %v", err)
	}

	result, err := f.coordinator.TerminateSession(ctx, session.ID, "", "")
	if err != nil {
		t.Fatalf("second termination must succeed: %v", err)
	}
	if result.SessionsTerminated != 0 || result.TokensRevoked != 0 {
		t.Fatalf("expected zero counts on repeat, got %+v", result)
	}
	if len(f.publisher.sessions) != 1 {
		t.Fatalf("repeat termination must not publish, got %d events", len(f.publisher.sessions))
	}
}

func TestTerminateAllForUserAtomicBatch(t *testing.T) {
	f := newTermFixture(t)
	ctx := context.Background()

	// The two-login shape of the production incident: distinct scopes,
	// access and refresh token per scope, then one bulk termination.
	first, firstTokens := f.login(t, "user-1", "openid random")
	second, secondTokens := f.login(t, "user-1", "openid internal_login")
	_, otherTokens := f.login(t, "user-2", "openid")

	if first.ID == second.ID {
		t.Fatal("expected distinct session ids per login")
	}

	result, err := f.coordinator.TerminateAllForUser(ctx, "user-1", "admin action", "admin")
	if err != nil {
		t.Fatalf("TerminateAllForUser: %v", err)
	}
	if result.SessionsTerminated != 2 || result.TokensRevoked != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}

	remaining, err := f.sessions.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no sessions left, got %d", len(remaining))
	}

	for _, token := range append(firstTokens, secondTokens...) {
		answer, err := f.introspect.Introspect(ctx, token.ID)
		if err != nil {
			t.Fatalf("Introspect: %v", err)
		}
		if answer.Active {
			t.Fatalf("token %s survived bulk termination", token.ID)
		}
	}

	// Isolation: the other user's sessions and tokens are untouched.
	otherSessions, err := f.sessions.ListSessions(ctx, "user-2")
	if err != nil {
		t.Fatalf("ListSessions user-2: %v", err)
	}
	if len(otherSessions) != 1 {
		t.Fatalf("expected user-2 session untouched, got %d", len(otherSessions))
	}
	for _, token := range otherTokens {
		answer, err := f.introspect.Introspect(ctx, token.ID)
		if err != nil {
			t.Fatalf("Introspect user-2 token: %v", err)
		}
		if !answer.Active {
			t.Fatalf("user-2 token %s wrongly revoked", token.ID)
		}
	}

	if len(f.publisher.bulk) != 1 {
		t.Fatalf("expected 1 bulk event, got %d", len(f.publisher.bulk))
	}
	event := f.publisher.bulk[0]
	if event.UserID != "user-1" || event.SessionsTerminated != 2 || event.TokensRevoked != 4 {
		t.Fatalf("unexpected bulk event: %+v", event)
	}
	if len(event.SessionIDs) != 2 {
		t.Fatalf("expected 2 session ids in event, got %v", event.SessionIDs)
	}
}

func TestTerminateAllForUserEmptySet(t *testing.T) {
	f := newTermFixture(t)

	result, err := f.coordinator.TerminateAllForUser(context.Background(), "nobody", "", "")
	if err != nil {
		t.Fatalf("TerminateAllForUser on empty set: %v", err)
	}
	if result.SessionsTerminated != 0 || result.TokensRevoked != 0 {
		t.Fatalf("expected zero counts, got %+v", result)
	}
	if len(f.publisher.bulk) != 0 {
		t.Fatal("empty termination must not publish")
	}
}

func TestTerminationRetriesExhaustConflicts(t *testing.T) {
	store := memory.NewStore()
	session := domain.Session{ID: "sess-1", UserID: "user-1", LoginTime: time.Now().UTC()}
	if err := store.Sessions().Create(context.Background(), session); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runner := &conflictRunner{}
	coordinator := NewRevocationCoordinator(runner, store.Sessions(), nil, nil)

	_, err := coordinator.TerminateSession(context.Background(), "sess-1", "", "")
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure after exhausted retries, got %v", err)
	}
	if runner.calls != serializedAttempts {
		t.Fatalf("expected %d attempts, got %d", serializedAttempts, runner.calls)
	}
}

func TestLoginRacingBulkTermination(t *testing.T) {
	f := newTermFixture(t)
	ctx := context.Background()

	f.login(t, "user-1", "openid")

	const rounds = 25
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			session, err := f.sessions.RegisterSession(ctx, RegisterSessionInput{UserID: "user-1"})
			if err != nil {
				continue
			}
			_, _ = f.bindings.BindToken(ctx, BindTokenInput{
				SessionID: session.ID,
				Kind:      domain.TokenKindAccess,
				Scope:     fmt.Sprintf("scope-%d", i),
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = f.coordinator.TerminateAllForUser(ctx, "user-1", "race", "test")
		}
	}()
	wg.Wait()

	// Every surviving session's tokens stay active and every terminated
	// session's tokens answer inactive; no token is stranded in between.
	sessions, err := f.sessions.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	for _, s := range sessions {
		tokens, err := f.store.Tokens().TokensOf(ctx, s.ID)
		if err != nil {
			t.Fatalf("TokensOf: %v", err)
		}
		for _, token := range tokens {
			answer, err := f.introspect.Introspect(ctx, token.ID)
			if err != nil {
				t.Fatalf("Introspect: %v", err)
			}
			if !answer.Active {
				t.Fatalf("live session %s holds inactive token %s", s.ID, token.ID)
			}
		}
	}
}
