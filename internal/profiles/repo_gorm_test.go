package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var profileColumns = []string{
	"id", "user_id", "name", "first_name", "last_name", "email", "phone",
	"country", "city", "summary", "details", "source_text", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*GormRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewGormRepo(db)
	if err != nil {
		t.Fatalf("NewGormRepo: %v", err)
	}
	return repo, mock
}

func TestGormRepoGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(profileColumns).AddRow(
			"p-1", "user-1", "Backend", "Ada", "Lovelace", "ada@example.com", "",
			"UK", "London", "Engineer", []byte(`{"years":7}`), "", now, now,
		))

	p, err := repo.GetByID(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p.ID != "p-1" || p.UserID != "user-1" || p.FirstName != "Ada" || p.City != "London" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if string(p.Details) != `{"years":7}` {
		t.Fatalf("unexpected details %s", p.Details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestGormRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(profileColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO "profiles"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), Profile{
		ID:        "p-1",
		UserID:    "user-1",
		Name:      "Backend",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestGormRepoListByUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("p-2", "user-1", "Second", "", "", "", "", "", "", "", []byte(`{}`), "", now, now).
			AddRow("p-1", "user-1", "First", "", "", "", "", "", "", "", []byte(`{}`), "", now.Add(-time.Hour), now))

	got, err := repo.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p-2" || got[1].ID != "p-1" {
		t.Fatalf("unexpected profiles %+v", got)
	}
	if got[0].Details != nil {
		t.Fatalf("expected empty details to be dropped, got %s", got[0].Details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
