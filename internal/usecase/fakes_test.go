package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu         sync.Mutex
	sessions   []domain.SessionTerminatedEvent
	bulk       []domain.UserSessionsTerminatedEvent
	failAlways bool
}

func (p *capturingPublisher) PublishSessionTerminated(_ context.Context, event domain.SessionTerminatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAlways {
		return errPublisher
	}
	p.sessions = append(p.sessions, event)
	return nil
}

func (p *capturingPublisher) PublishUserSessionsTerminated(_ context.Context, event domain.UserSessionsTerminatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAlways {
		return errPublisher
	}
	p.bulk = append(p.bulk, event)
	return nil
}

var errPublisher = errors.New("publisher unavailable")

// fakeDenylist records denylist pushes in memory.
type fakeDenylist struct {
	mu       sync.Mutex
	tokens   map[string]string
	sessions map[string]string
}

func newFakeDenylist() *fakeDenylist {
	return &fakeDenylist{
		tokens:   make(map[string]string),
		sessions: make(map[string]string),
	}
}

func (d *fakeDenylist) MarkTokenRevoked(_ context.Context, tokenID, reason string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens[tokenID] = reason
	return nil
}

func (d *fakeDenylist) MarkSessionTerminated(_ context.Context, sessionID, reason string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[sessionID] = reason
	return nil
}

func (d *fakeDenylist) IsTokenRevoked(_ context.Context, tokenID string) (bool, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reason, ok := d.tokens[tokenID]
	return ok, reason, nil
}

func (d *fakeDenylist) IsSessionTerminated(_ context.Context, sessionID string) (bool, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reason, ok := d.sessions[sessionID]
	return ok, reason, nil
}

// conflictRunner loses every serialization race, for retry-path tests.
type conflictRunner struct {
	calls int
}

func (r *conflictRunner) WithinUser(_ context.Context, _ string, _ func(ctx context.Context, stores port.TxStores) error) error {
	r.calls++
	return repository.ErrConflict
}

var (
	_ port.EventPublisher     = (*capturingPublisher)(nil)
	_ port.RevocationDenylist = (*fakeDenylist)(nil)
	_ port.TxRunner           = (*conflictRunner)(nil)
)
