package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestDenylistStore_MarkAndCheckToken(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewDenylistStore(client, "", "")

	ctx := context.Background()
	if err := store.MarkTokenRevoked(ctx, "token-123", "user termination", 2*time.Minute); err != nil {
		t.Fatalf("MarkTokenRevoked returned error: %v", err)
	}

	revoked, reason, err := store.IsTokenRevoked(ctx, "token-123")
	if err != nil {
		t.Fatalf("IsTokenRevoked returned error: %v", err)
	}
	if !revoked {
		t.Fatal("expected token to be denylisted")
	}
	if reason != "user termination" {
		t.Fatalf("expected stored reason, got %s", reason)
	}
}

func TestDenylistStore_EntryExpires(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewDenylistStore(client, "", "")

	ctx := context.Background()
	if err := store.MarkSessionTerminated(ctx, "session-1", "logout", time.Minute); err != nil {
		t.Fatalf("MarkSessionTerminated returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	terminated, _, err := store.IsSessionTerminated(ctx, "session-1")
	if err != nil {
		t.Fatalf("IsSessionTerminated returned error: %v", err)
	}
	if terminated {
		t.Fatal("expected entry to expire with TTL")
	}
}

func TestDenylistStore_Miss(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewDenylistStore(client, "", "")

	revoked, reason, err := store.IsTokenRevoked(context.Background(), "missing")
	if err != nil {
		t.Fatalf("IsTokenRevoked returned error: %v", err)
	}
	if revoked || reason != "" {
		t.Fatalf("expected miss, got revoked=%v reason=%q", revoked, reason)
	}
}

func TestDenylistStore_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewDenylistStore(client, "", "")

	if err := store.MarkTokenRevoked(context.Background(), "", "reason", time.Minute); err == nil {
		t.Fatal("expected error for empty token id")
	}
	if err := store.MarkTokenRevoked(context.Background(), "token-1", "reason", 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
	if _, _, err := store.IsTokenRevoked(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token id")
	}
}

func TestRateLimitRepository_Window(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "sessions:ratelimit", TTL: time.Minute})

	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "client-1", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "client-1", time.Minute, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in window, got %d", count)
	}

	if err := repo.TrimWindow(ctx, "client-1", time.Second, now.Add(3*time.Second)); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}
	count, err = repo.CountAttempts(ctx, "client-1", time.Minute, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts after trim returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempt after trim, got %d", count)
	}
}
