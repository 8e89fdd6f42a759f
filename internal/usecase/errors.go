package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

var (
	// ErrUnknownSession indicates the referenced session does not exist.
	ErrUnknownSession = errors.New("session not found")
	// ErrDuplicateSession indicates a session id collision on registration.
	ErrDuplicateSession = errors.New("session already exists")
	// ErrDuplicateToken indicates a token id collision on binding.
	ErrDuplicateToken = errors.New("token already bound")
	// ErrStorageFailure indicates the backend could not complete the unit of
	// work; partially applied cascades have been rolled back.
	ErrStorageFailure = errors.New("storage failure")
)

const serializedAttempts = 3

// runSerialized executes fn through the per-user transactional runner,
// retrying a bounded number of times when the backend reports a lost
// serialization race. Exhausted retries surface as ErrStorageFailure.
func runSerialized(ctx context.Context, runner port.TxRunner, userID string, fn func(ctx context.Context, stores port.TxStores) error) error {
	var err error
	for attempt := 0; attempt < serializedAttempts; attempt++ {
		err = runner.WithinUser(ctx, userID, fn)
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}
