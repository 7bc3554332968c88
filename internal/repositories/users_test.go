package repositories

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
)

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewUserRepository(db), mock, db
}

func userRows(id int, username, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "username", "name", "email", "phone", "password", "role", "is_logged_in",
		"reset_password_otp", "reset_password_expiry", "last_login", "last_activity",
		"user_agent", "ip", "created_at", "updated_at",
	}).AddRow(id, username, "Some Name", email, "123456", "hash", "user", false,
		nil, nil, nil, nil, nil, nil, now, now)
}

func TestUserCreateNormalizesEmail(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "Alice", "alice@example.com", "123456", "hash", "user").
		WillReturnRows(userRows(1, "alice", "alice@example.com"))

	user, err := repo.Create(context.Background(), "alice", "Alice", "  Alice@Example.COM ", "123456", "hash", "user")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := repo.Create(context.Background(), "alice", "Alice", "a@b.c", "123", "hash", "user")
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIDMissing(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIdentity(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("alice").
		WillReturnRows(userRows(1, "alice", "alice@example.com"))

	user, err := repo.FindByIdentity(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserDeleteMissing(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM users WHERE id`).
		WithArgs(99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRecordLogin(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE users\s+SET is_logged_in = TRUE`).
		WithArgs("agent/1.0", "10.0.0.1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordLogin(context.Background(), 1, "agent/1.0", "10.0.0.1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
