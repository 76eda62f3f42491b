package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/dbx"
	"github.com/dmitrijs2005/windbreaker/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewSQLRepository(db, dbx.Postgres), mock
}

const (
	insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email,\s*password,\s*token_version,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id$`
	selectQ = `(?s)^SELECT\s+id,\s*name,\s*email,\s*password,\s*token_version,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	updateQ = `(?s)^UPDATE\s+users\s+SET\s+password\s*=\s*\$1,\s*token_version\s*=\s*token_version\s*\+\s*\$2\s+WHERE\s+email\s*=\s*\$3\s+RETURNING\s+token_version$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WithArgs("Alice", "a@x.io", "$argon2id$h", int64(0), created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	u := &models.User{Name: "Alice", Email: "a@x.io", PasswordHash: "$argon2id$h", CreatedAt: created}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.ID)
	assert.Equal(t, "Alice", got.Name)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), &models.User{Email: "a@x.io", CreatedAt: created})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@x.io", CreatedAt: created})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
	assert.NotErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).
		WithArgs("a@x.io").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password", "token_version", "created_at"}).
			AddRow(int64(7), "Alice", "a@x.io", "hash", int64(2), created))

	got, err := repo.GetByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: 7, Name: "Alice", Email: "a@x.io", PasswordHash: "hash", TokenVersion: 2, CreatedAt: created}, got)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).WithArgs("ghost@x.io").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x.io")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByEmail_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQ).WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByEmail(context.Background(), "a@x.io")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: conn reset")
}

func TestUpdatePassword(t *testing.T) {
	tests := []struct {
		name string
		bump bool
		arg  int64
	}{
		{name: "bump", bump: true, arg: 1},
		{name: "keep", bump: false, arg: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(updateQ).
				WithArgs("newhash", tt.arg, "a@x.io").
				WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(int64(3)))

			v, err := repo.UpdatePassword(context.Background(), "a@x.io", "newhash", tt.bump)
			require.NoError(t, err)
			assert.EqualValues(t, 3, v)
		})
	}
}

func TestUpdatePassword_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(updateQ).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdatePassword(context.Background(), "ghost@x.io", "h", true)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLite_RoundTripAndUniqueEmail(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		token_version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	ctx := context.Background()
	repo := NewSQLRepository(db, dbx.SQLite)

	u, err := repo.Create(ctx, &models.User{Name: "Alice", Email: "a@x.io", PasswordHash: "h1", CreatedAt: created})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	_, err = repo.Create(ctx, &models.User{Name: "Other", Email: "a@x.io", PasswordHash: "h2", CreatedAt: created})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	v, err := repo.UpdatePassword(ctx, "a@x.io", "h3", true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	got, err := repo.GetByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "h3", got.PasswordHash)
	assert.EqualValues(t, 1, got.TokenVersion)
	assert.True(t, created.Equal(got.CreatedAt), "created_at round-trips: %v", got.CreatedAt)
}
