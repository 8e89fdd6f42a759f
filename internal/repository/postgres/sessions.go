package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
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

// SessionRepository implements port.SessionStore backed by PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var sessionColumns = []string{
	"id",
	"user_id",
	"applications",
	"user_agent",
	"ip",
	"login_time",
	"last_access_time",
}

// Create persists a new session aggregate.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	applications, err := marshalApplications(session.Applications)
	if err != nil {
		return err
	}

	sqlStmt, args, err := r.builder.Insert("sessions.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			applications,
			optionalString(session.UserAgent),
			optionalString(session.IP),
			session.LoginTime,
			session.LastAccessTime,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return mapPgError("insert session", err)
	}
	return nil
}

// Get returns a session by identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	sqlStmt, args, err := r.builder.
		Select(sessionColumns...).
		From("sessions.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, sqlStmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return session, nil
}

// ListByUser returns every session owned by the user, most recent login first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	sqlStmt, args, err := r.builder.
		Select(sessionColumns...).
		From("sessions.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("login_time DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Touch refreshes last-access metadata for the session.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, ip *string, userAgent *string) error {
	sqlStmt, args, err := r.builder.Update("sessions.sessions").
		Set("last_access_time", time.Now().UTC()).
		Set("ip", squirrel.Expr("COALESCE(?, ip)", ip)).
		Set("user_agent", squirrel.Expr("COALESCE(?, user_agent)", userAgent)).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return mapPgError("touch session", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Remove deletes a single session. Absent sessions are not an error.
func (r *SessionRepository) Remove(ctx context.Context, sessionID string) (bool, error) {
	sqlStmt, args, err := r.builder.Delete("sessions.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete session sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sqlStmt, args...)
	if err != nil {
		return false, mapPgError("delete session", err)
	}
	return ct.RowsAffected() > 0, nil
}

// RemoveAllByUser deletes every session owned by the user and returns the ids.
func (r *SessionRepository) RemoveAllByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.exec.Query(ctx,
		"DELETE FROM sessions.sessions WHERE user_id = $1 RETURNING id", userID)
	if err != nil {
		return nil, mapPgError("delete user sessions", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan removed session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate removed sessions: %w", err)
	}
	return ids, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session      domain.Session
		applications []byte
		userAgent    sql.NullString
		ip           sql.NullString
	)
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&applications,
		&userAgent,
		&ip,
		&session.LoginTime,
		&session.LastAccessTime,
	); err != nil {
		return nil, err
	}
	if userAgent.Valid {
		value := userAgent.String
		session.UserAgent = &value
	}
	if ip.Valid {
		value := ip.String
		session.IP = &value
	}
	if len(applications) > 0 {
		apps, err := unmarshalApplications(applications)
		if err != nil {
			return nil, fmt.Errorf("unmarshal session applications: %w", err)
		}
		session.Applications = apps
	}
	return &session, nil
}

func marshalApplications(apps []domain.Application) ([]byte, error) {
	if apps == nil {
		return nil, nil
	}
	payload, err := json.Marshal(apps)
	if err != nil {
		return nil, fmt.Errorf("marshal session applications: %w", err)
	}
	return payload, nil
}

func unmarshalApplications(payload []byte) ([]domain.Application, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var apps []domain.Application
	if err := json.Unmarshal(payload, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

var _ port.SessionStore = (*SessionRepository)(nil)
