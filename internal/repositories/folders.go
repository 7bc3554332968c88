package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"folderly-api/internal/models"

	"github.com/lib/pq"
)

type FolderRepository struct {
	db *sql.DB
}

func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, name string) (*models.Folder, error) {
	folder := &models.Folder{Images: []models.Image{}}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO folders (name)
		VALUES ($1)
		RETURNING id, name, is_disabled, created_at, updated_at`,
		name).Scan(&folder.ID, &folder.Name, &folder.IsDisabled, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folder, nil
}

func (r *FolderRepository) FindByID(ctx context.Context, id int) (*models.Folder, error) {
	folder := &models.Folder{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, is_disabled, created_at, updated_at
		FROM folders WHERE id = $1`,
		id).Scan(&folder.ID, &folder.Name, &folder.IsDisabled, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	images, err := r.Images(ctx, id)
	if err != nil {
		return nil, err
	}
	folder.Images = images
	folder.ImageCount = len(images)
	return folder, nil
}

// List returns folders with their images. When includeHidden is false only
// enabled folders that contain at least one image are returned.
func (r *FolderRepository) List(ctx context.Context, includeHidden bool) ([]models.Folder, error) {
	query := `
		SELECT id, name, is_disabled, created_at, updated_at
		FROM folders`
	if !includeHidden {
		query += `
		WHERE is_disabled = FALSE
		  AND EXISTS (SELECT 1 FROM images WHERE images.folder_id = folders.id)`
	}
	query += `
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	index := map[int]int{}
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.IsDisabled, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		f.Images = []models.Image{}
		index[f.ID] = len(folders)
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(folders) == 0 {
		return folders, nil
	}

	imgRows, err := r.db.QueryContext(ctx, `
		SELECT id, folder_id, name, url, created_at
		FROM images
		ORDER BY folder_id, id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var img models.Image
		if err := imgRows.Scan(&img.ID, &img.FolderID, &img.Name, &img.URL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if i, ok := index[img.FolderID]; ok {
			folders[i].Images = append(folders[i].Images, img)
		}
	}
	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	for i := range folders {
		folders[i].ImageCount = len(folders[i].Images)
	}
	return folders, nil
}

func (r *FolderRepository) Rename(ctx context.Context, id int, name string) (*models.Folder, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE folders SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *FolderRepository) ToggleDisabled(ctx context.Context, id int) (*models.Folder, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE folders SET is_disabled = NOT is_disabled, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *FolderRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendImages attaches a batch of processed images to a folder in a single
// INSERT. Concurrent appends to the same folder cannot lose each other's
// rows. Returns ErrNotFound when the folder does not exist.
func (r *FolderRepository) AppendImages(ctx context.Context, folderID int, images []models.NewImage) error {
	if len(images) == 0 {
		return nil
	}

	var query strings.Builder
	query.WriteString(`INSERT INTO images (folder_id, name, url) VALUES `)
	args := make([]interface{}, 0, len(images)*2+1)
	args = append(args, folderID)
	for i, img := range images {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString("($1, $" + strconv.Itoa(len(args)+1) + ", $" + strconv.Itoa(len(args)+2) + ")")
		args = append(args, img.Name, img.URL)
	}

	if _, err := r.db.ExecContext(ctx, query.String(), args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *FolderRepository) Images(ctx context.Context, folderID int) ([]models.Image, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, folder_id, name, url, created_at
		FROM images WHERE folder_id = $1
		ORDER BY id`, folderID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.FolderID, &img.Name, &img.URL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *FolderRepository) FindImageByURL(ctx context.Context, folderID int, url string) (*models.Image, error) {
	img := &models.Image{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, folder_id, name, url, created_at
		FROM images WHERE folder_id = $1 AND url = $2`,
		folderID, url).Scan(&img.ID, &img.FolderID, &img.Name, &img.URL, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return img, nil
}

func (r *FolderRepository) RenameImage(ctx context.Context, folderID, imageID int, newName string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE images SET name = $1 WHERE id = $2 AND folder_id = $3`,
		newName, imageID, folderID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FolderRepository) DeleteImage(ctx context.Context, folderID, imageID int) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM images WHERE id = $1 AND folder_id = $2`, imageID, folderID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
