package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps a pgx pool and exposes the repository views plus the
// per-user transactional runner.
type Store struct {
	pool     *pgxpool.Pool
	sessions *SessionRepository
	tokens   *TokenRepository
}

// NewStore constructs a Store from a DSN.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return NewStoreWithPool(pool), nil
}

// NewStoreWithPool wires a Store over an existing pool.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		sessions: NewSessionRepository(pool),
		tokens:   NewTokenRepository(pool),
	}
}

// Sessions returns the session-store view.
func (s *Store) Sessions() *SessionRepository {
	return s.sessions
}

// Tokens returns the token-binding-index view.
func (s *Store) Tokens() *TokenRepository {
	return s.tokens
}

// Close releases resources associated with the store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// WithinUser runs fn inside one transaction holding a per-user advisory
// lock, so a session creation can never interleave with a bulk termination
// for the same user and the whole write-set becomes visible on commit.
func (s *Store) WithinUser(ctx context.Context, userID string, fn func(ctx context.Context, stores port.TxStores) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	if err := fn(ctx, port.TxStores{
		Sessions: s.sessions.WithTx(tx),
		Tokens:   s.tokens.WithTx(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError("commit user transaction", err)
	}
	return nil
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func optionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

// mapPgError translates driver errors to repository sentinels.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrDuplicate
		case "23503":
			return repository.ErrNotFound
		case "40001", "40P01":
			return repository.ErrConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ port.TxRunner = (*Store)(nil)
