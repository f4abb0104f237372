package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklane/apiserver/types"
)

const (
	insertUserQuery = `(?s)^\s*INSERT\s+INTO\s+users\s*\(username,\s*email,\s*hashed_password,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at\s*$`
	byUsernameQuery = `(?s)^\s*SELECT\s+id,\s*username,\s*email,\s*hashed_password,\s*role,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	byLoginQuery    = `(?s)^\s*SELECT\s+.+\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$1\s+ORDER\s+BY\s+\(username\s*=\s*\$1\)\s+DESC\s+LIMIT\s+1\s*$`
)

var userColumns = []string{"id", "username", "email", "hashed_password", "role", "created_at"}

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewUserRepository(conn), mock
}

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQuery).
		WithArgs("alice", "alice@example.com", "digest", "basic").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))
	mock.ExpectCommit()

	user, err := repo.Create(context.Background(), types.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "digest",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, types.RoleBasic, user.Role)
	assert.Equal(t, created, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateRollsBack(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQuery).
		WithArgs("alice", "alice@example.com", "digest", "premium").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "digest",
		Role:         types.RolePremium,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_OtherErrorIsWrapped(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQuery).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.User{Username: "bob", Email: "bob@example.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsername(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	created := time.Now().UTC()

	mock.ExpectQuery(byUsernameQuery).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "alice", "alice@example.com", "digest", "premium", created))

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, types.RolePremium, user.Role)
	assert.Equal(t, "digest", user.PasswordHash)
}

func TestUserRepository_GetByUsername_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(byUsernameQuery).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByLogin_Email(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(byLoginQuery).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "alice", "alice@example.com", "digest", "basic", time.Now()))

	user, err := repo.GetByLogin(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestUserRepository_GetByLogin_DBError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(byLoginQuery).WithArgs("alice").WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByLogin(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
