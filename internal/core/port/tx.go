package port

import "context"

// TxStores exposes store handles bound to one atomic unit of work.
type TxStores struct {
	Sessions SessionStore
	Tokens   TokenBindingIndex
}

// TxRunner executes fn as a single atomic unit serialized per user. All
// mutations for a given user id flow through WithinUser so that a session
// creation can never race a bulk termination. Writes performed inside fn
// become visible to readers all at once on commit, or not at all; a started
// unit always finishes or rolls back regardless of context cancellation.
type TxRunner interface {
	WithinUser(ctx context.Context, userID string, fn func(ctx context.Context, stores TxStores) error) error
}
