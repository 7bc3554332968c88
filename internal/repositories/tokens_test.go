package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenRepoWithMock(t *testing.T) (*SessionTokenRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSessionTokenRepository(db), mock, db
}

func TestSessionTokenCreate(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO session_tokens`).
		WithArgs(1, "tok-abc").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), 1, "tok-abc")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenFind(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	created := time.Now().Add(-time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "access_token", "created_at"}).
		AddRow(5, 1, "tok-abc", created)
	mock.ExpectQuery(`SELECT id, user_id, access_token, created_at\s+FROM session_tokens`).
		WithArgs(1, "tok-abc").
		WillReturnRows(rows)

	token, err := repo.Find(context.Background(), 1, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, 1, token.UserID)
	assert.Equal(t, "tok-abc", token.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenFindMissingIsNotFound(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, user_id, access_token, created_at\s+FROM session_tokens`).
		WithArgs(1, "tok-gone").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), 1, "tok-gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenDeleteByUser(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM session_tokens WHERE user_id`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.DeleteByUser(context.Background(), 7)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionTokenDeleteExpired(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_tokens WHERE created_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 9))

	purged, err := repo.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(9), purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
