package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

// TokenRepository implements port.TokenBindingIndex using PostgreSQL tables.
type TokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	repo := &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var tokenColumns = []string{
	"id",
	"session_id",
	"user_id",
	"kind",
	"scope",
	"state",
	"issued_at",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// Bind registers a new active token against an existing session. The owning
// user is resolved from the session row when the caller leaves it empty.
func (r *TokenRepository) Bind(ctx context.Context, token domain.Token) error {
	if token.UserID == "" {
		row := r.exec.QueryRow(ctx,
			"SELECT user_id FROM sessions.sessions WHERE id = $1", token.SessionID)
		if err := row.Scan(&token.UserID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("resolve token session: %w", err)
		}
	}

	sqlStmt, args, err := r.builder.Insert("sessions.tokens").
		Columns(tokenColumns...).
		Values(
			token.ID,
			token.SessionID,
			token.UserID,
			string(token.Kind),
			token.Scope,
			string(token.State),
			token.IssuedAt,
			token.ExpiresAt,
			optionalTime(token.RevokedAt),
			optionalString(token.RevokeReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return mapPgError("insert token", err)
	}
	return nil
}

// Get returns a token by identifier.
func (r *TokenRepository) Get(ctx context.Context, tokenID string) (*domain.Token, error) {
	sqlStmt, args, err := r.builder.
		Select(tokenColumns...).
		From("sessions.tokens").
		Where(squirrel.Eq{"id": tokenID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	token, err := scanToken(r.exec.QueryRow(ctx, sqlStmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return token, nil
}

// TokensOf returns every token bound to the session, any kind and any state.
func (r *TokenRepository) TokensOf(ctx context.Context, sessionID string) ([]domain.Token, error) {
	sqlStmt, args, err := r.builder.
		Select(tokenColumns...).
		From("sessions.tokens").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]domain.Token, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// SessionOf resolves the session a token was issued under.
func (r *TokenRepository) SessionOf(ctx context.Context, tokenID string) (string, error) {
	var sessionID string
	row := r.exec.QueryRow(ctx,
		"SELECT session_id FROM sessions.tokens WHERE id = $1", tokenID)
	if err := row.Scan(&sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan token session: %w", err)
	}
	return sessionID, nil
}

// MarkRevoked flips a single token to revoked. Terminal states are no-ops.
func (r *TokenRepository) MarkRevoked(ctx context.Context, tokenID string, reason string) (bool, error) {
	return r.markTerminal(ctx, tokenID, domain.TokenStateRevoked, &reason)
}

// MarkExpired flips a token to the expired state. Terminal states are preserved.
func (r *TokenRepository) MarkExpired(ctx context.Context, tokenID string) (bool, error) {
	return r.markTerminal(ctx, tokenID, domain.TokenStateExpired, nil)
}

func (r *TokenRepository) markTerminal(ctx context.Context, tokenID string, state domain.TokenState, reason *string) (bool, error) {
	update := r.builder.Update("sessions.tokens").
		Set("state", string(state)).
		Where(squirrel.Eq{"id": tokenID}).
		Where(squirrel.Eq{"state": string(domain.TokenStateActive)})
	if state == domain.TokenStateRevoked {
		update = update.Set("revoked_at", time.Now().UTC())
		if reason != nil && *reason != "" {
			update = update.Set("revoke_reason", *reason)
		}
	}

	sqlStmt, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("build token state sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return false, mapPgError("update token state", err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}

	// No transition happened; distinguish a terminal token from a missing one.
	var exists bool
	row := r.exec.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM sessions.tokens WHERE id = $1)", tokenID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check token existence: %w", err)
	}
	if !exists {
		return false, repository.ErrNotFound
	}
	return false, nil
}

// RevokeBySessions revokes every still-active token bound to the sessions
// and returns the number of tokens that transitioned.
func (r *TokenRepository) RevokeBySessions(ctx context.Context, sessionIDs []string, reason string) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	stmt := `
		WITH updated AS (
			UPDATE sessions.tokens
			   SET state = 'revoked',
			       revoked_at = now(),
			       revoke_reason = COALESCE(NULLIF($2, ''), revoke_reason)
			 WHERE session_id = ANY($1)
			   AND state = 'active'
			 RETURNING 1
		)
		SELECT count(*) FROM updated;
	`

	var count int
	if err := r.exec.QueryRow(ctx, stmt, sessionIDs, reason).Scan(&count); err != nil {
		return 0, mapPgError("revoke session tokens", err)
	}
	return count, nil
}

// IsActive reports whether the token state is active and unexpired.
func (r *TokenRepository) IsActive(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	var (
		state     string
		expiresAt time.Time
	)
	row := r.exec.QueryRow(ctx,
		"SELECT state, expires_at FROM sessions.tokens WHERE id = $1", tokenID)
	if err := row.Scan(&state, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return false, repository.ErrNotFound
		}
		return false, fmt.Errorf("scan token state: %w", err)
	}
	return domain.TokenState(state) == domain.TokenStateActive && expiresAt.After(at), nil
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		token        domain.Token
		kind         string
		state        string
		revokedAt    sql.NullTime
		revokeReason sql.NullString
	)
	if err := row.Scan(
		&token.ID,
		&token.SessionID,
		&token.UserID,
		&kind,
		&token.Scope,
		&state,
		&token.IssuedAt,
		&token.ExpiresAt,
		&revokedAt,
		&revokeReason,
	); err != nil {
		return nil, err
	}
	token.Kind = domain.TokenKind(kind)
	token.State = domain.TokenState(state)
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	if revokeReason.Valid {
		value := revokeReason.String
		token.RevokeReason = &value
	}
	return &token, nil
}

var _ port.TokenBindingIndex = (*TokenRepository)(nil)
