package models

import "time"

type Folder struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	IsDisabled bool      `json:"isDisabled"`
	Images     []Image   `json:"images"`
	ImageCount int       `json:"imageCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Image struct {
	ID        int       `json:"id"`
	FolderID  int       `json:"-"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewImage is a processed image ready to be attached to a folder.
type NewImage struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type CreateFolderRequest struct {
	Name string `json:"name" validate:"required"`
}

type RenameFolderRequest struct {
	NewName string `json:"newName" validate:"required"`
}

type RenameImageRequest struct {
	NewName string `json:"newName" validate:"required"`
}

type DeleteImageRequest struct {
	ImageURL string `json:"imageUrl" validate:"required"`
}
