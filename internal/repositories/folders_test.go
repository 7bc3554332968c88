package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"folderly-api/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFolderRepoWithMock(t *testing.T) (*FolderRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewFolderRepository(db), mock, db
}

func TestAppendImagesSingleInsert(t *testing.T) {
	repo, mock, db := newFolderRepoWithMock(t)
	defer db.Close()

	images := []models.NewImage{
		{Name: "a.png", URL: "https://blobs/a.jpg"},
		{Name: "b.png", URL: "https://blobs/b.jpg"},
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO images (folder_id, name, url) VALUES ($1, $2, $3), ($1, $4, $5)`)).
		WithArgs(3, "a.png", "https://blobs/a.jpg", "b.png", "https://blobs/b.jpg").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.AppendImages(context.Background(), 3, images)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendImagesEmptyIsNoop(t *testing.T) {
	repo, mock, db := newFolderRepoWithMock(t)
	defer db.Close()

	err := repo.AppendImages(context.Background(), 3, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendImagesMissingFolder(t *testing.T) {
	repo, mock, db := newFolderRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO images`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "images_folder_id_fkey"})

	err := repo.AppendImages(context.Background(), 99, []models.NewImage{{Name: "a", URL: "u"}})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleDisabledMissingFolder(t *testing.T) {
	repo, mock, db := newFolderRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE folders SET is_disabled`).
		WithArgs(99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.ToggleDisabled(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHidesDisabledAndEmptyFolders(t *testing.T) {
	repo, mock, db := newFolderRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name, is_disabled, created_at, updated_at\s+FROM folders\s+WHERE is_disabled = FALSE\s+AND EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_disabled", "created_at", "updated_at"}))

	folders, err := repo.List(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, folders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteImageMissing(t *testing.T) {
	repo, mock, db := newFolderRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM images WHERE id`).
		WithArgs(5, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteImage(context.Background(), 3, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
