package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"tiergate.org/internal/tier"
)

func newMockPGStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

func TestPGGetNotFound(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectQuery("select .* from user_profiles where subject_id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}))

	_, err := store.Get(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGGetScansRecord(t *testing.T) {
	store, mock := newMockPGStore(t)

	now := time.Now()
	mock.ExpectQuery("select .* from user_profiles where subject_id").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"subject_id", "email", "given_name", "family_name", "display_name", "avatar_url",
			"tier", "active", "last_login_at", "created_at", "updated_at",
		}).AddRow("sub-1", "x@x.com", "A", "B", "A B", "", "premium", true, now, now, now))

	p, err := store.Get(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Tier != tier.Premium || p.DisplayName != "A B" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestPGCreateDuplicate(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("insert into user_profiles").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Create(context.Background(), Profile{SubjectID: "sub-1", Email: "x@x.com", Tier: tier.Basic})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPGUpdateBuildsPartialSet(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec(`update user_profiles set tier = \$1, updated_at = now\(\) where subject_id = \$2`).
		WithArgs("editor", "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	newTier := tier.Editor
	if err := store.Update(context.Background(), "sub-1", Update{Tier: &newTier}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUpdateUnknownSubject(t *testing.T) {
	store, mock := newMockPGStore(t)

	mock.ExpectExec("update user_profiles set").
		WillReturnResult(sqlmock.NewResult(0, 0))

	active := true
	err := store.Update(context.Background(), "ghost", Update{Active: &active})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGUpdateNoFieldsIsNoop(t *testing.T) {
	store, mock := newMockPGStore(t)

	if err := store.Update(context.Background(), "sub-1", Update{}); err != nil {
		t.Fatalf("empty update should be a no-op: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no SQL should have been executed: %v", err)
	}
}

func TestPGRejectsInvalidInput(t *testing.T) {
	store, mock := newMockPGStore(t)

	if _, err := store.Get(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("get empty subject: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Create(context.Background(), Profile{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("create empty subject: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Create(context.Background(), Profile{SubjectID: "sub-1", Tier: "platinum"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("create unknown tier: expected ErrInvalidInput, got %v", err)
	}
	bad := tier.Tier("platinum")
	if err := store.Update(context.Background(), "sub-1", Update{Tier: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("update unknown tier: expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no SQL should have been executed: %v", err)
	}
}
