package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
	"github.com/arklim/social-platform-sessions/internal/repository"
)

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	loginTime := time.Now().UTC()
	userAgent := "Mozilla/5.0"
	ip := "198.51.100.10"
	session := domain.Session{
		ID:     "session-123",
		UserID: "user-123",
		Applications: []domain.Application{
			{AppID: "app-1", AppName: "playground", Subject: "user-123"},
		},
		UserAgent:      &userAgent,
		IP:             &ip,
		LoginTime:      loginTime,
		LastAccessTime: loginTime,
	}

	applications, err := marshalApplications(session.Applications)
	if err != nil {
		t.Fatalf("marshal applications: %v", err)
	}

	mock.ExpectExec(`INSERT INTO sessions\.sessions`).
		WithArgs(
			session.ID,
			session.UserID,
			applications,
			userAgent,
			ip,
			session.LoginTime,
			session.LastAccessTime,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	loginTime := time.Now().UTC()
	applications := []byte(`[{"AppID":"app-1","AppName":"playground","Subject":"user-1"}]`)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "applications", "user_agent", "ip", "login_time", "last_access_time",
	}).AddRow(
		"session-1", "user-1", applications, "UA", "198.51.100.10", loginTime, loginTime,
	)

	mock.ExpectQuery(`SELECT .*FROM sessions\.sessions`).WithArgs("session-1").WillReturnRows(rows)

	session, err := repo.Get(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if session.ID != "session-1" || session.UserID != "user-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(session.Applications) != 1 || session.Applications[0].AppName != "playground" {
		t.Fatalf("expected applications decoded, got %+v", session.Applications)
	}
	if session.UserAgent == nil || *session.UserAgent != "UA" {
		t.Fatalf("expected user agent populated")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "applications", "user_agent", "ip", "login_time", "last_access_time",
	})
	mock.ExpectQuery(`SELECT .*FROM sessions\.sessions`).WithArgs("missing").WillReturnRows(rows)

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_Remove(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectExec(`DELETE FROM sessions\.sessions`).
		WithArgs("session-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	removed, err := repo.Remove(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report true")
	}

	mock.ExpectExec(`DELETE FROM sessions\.sessions`).
		WithArgs("session-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err = repo.Remove(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
	if removed {
		t.Fatal("expected absent session to report false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_RemoveAllByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	rows := pgxmock.NewRows([]string{"id"}).
		AddRow("session-1").
		AddRow("session-2")

	mock.ExpectQuery(`DELETE FROM sessions\.sessions WHERE user_id = \$1 RETURNING id`).
		WithArgs("user-1").
		WillReturnRows(rows)

	removed, err := repo.RemoveAllByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RemoveAllByUser returned error: %v", err)
	}
	if len(removed) != 2 || removed[0] != "session-1" || removed[1] != "session-2" {
		t.Fatalf("unexpected removed ids: %v", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
