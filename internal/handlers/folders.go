package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"folderly-api/internal/models"
	"folderly-api/internal/repositories"
	"folderly-api/internal/responses"

	"github.com/gorilla/mux"
)

// BlobDeleter is the slice of the blob store used for best-effort cleanup.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

func CreateFolder(folders *repositories.FolderRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.Name == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Folder name is required")
			return
		}

		folder, err := folders.Create(r.Context(), req.Name)
		if err != nil {
			log.Printf("Folder creation error: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to create folder")
			return
		}

		responses.SendSuccessResponse(w, http.StatusCreated, map[string]interface{}{
			"message": "Folder created successfully",
			"folder":  folder,
		})
	}
}

// GetFolders lists folders. Admins see everything; everyone else only sees
// enabled folders that actually contain images.
func GetFolders(folders *repositories.FolderRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid user context")
			return
		}

		list, err := folders.List(r.Context(), claims.Role == "admin")
		if err != nil {
			log.Printf("Folder fetch error: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch folders")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, list)
	}
}

func RenameFolder(folders *repositories.FolderRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID, err := strconv.Atoi(mux.Vars(r)["folderId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}

		var req models.RenameFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.NewName == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "New name is required")
			return
		}

		folder, err := folders.Rename(r.Context(), folderID, req.NewName)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Folder not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to rename folder")
			}
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message": "Folder name updated successfully",
			"folder":  folder,
		})
	}
}

func ToggleFolderStatus(folders *repositories.FolderRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID, err := strconv.Atoi(mux.Vars(r)["folderId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}

		folder, err := folders.ToggleDisabled(r.Context(), folderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Folder not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update folder")
			}
			return
		}

		status := "enabled"
		if folder.IsDisabled {
			status = "disabled"
		}
		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message": "Folder " + status,
			"folder":  folder,
		})
	}
}

func RenameImage(folders *repositories.FolderRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		folderID, err := strconv.Atoi(vars["folderId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}
		imageID, err := strconv.Atoi(vars["imageId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid image ID")
			return
		}

		var req models.RenameImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if req.NewName == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "New name is required")
			return
		}

		if err := folders.RenameImage(r.Context(), folderID, imageID, req.NewName); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Image not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to rename image")
			}
			return
		}

		folder, err := folders.FindByID(r.Context(), folderID)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch folder")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message": "Image name updated successfully",
			"folder":  folder,
		})
	}
}

// DeleteImage removes an image row. The blob delete is best-effort: a
// storage failure is logged and the database removal happens regardless.
func DeleteImage(folders *repositories.FolderRepository, storage BlobDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID, err := strconv.Atoi(mux.Vars(r)["folderId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}

		var req models.DeleteImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		image, err := folders.FindImageByURL(r.Context(), folderID, req.ImageURL)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Image not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		if key, ok := storage.KeyFromURL(image.URL); ok {
			if err := storage.Delete(r.Context(), key); err != nil {
				log.Printf("Error deleting blob %s: %v", key, err)
			}
		} else {
			log.Printf("Could not extract storage key from URL: %s", image.URL)
		}

		if err := folders.DeleteImage(r.Context(), folderID, image.ID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Image not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete image")
			}
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"message": "Image deleted successfully",
		})
	}
}

// DeleteFolder removes a folder after a best-effort blob delete of every
// contained image. Image rows go with the folder via cascade.
func DeleteFolder(folders *repositories.FolderRepository, storage BlobDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID, err := strconv.Atoi(mux.Vars(r)["folderId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}

		folder, err := folders.FindByID(r.Context(), folderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Folder not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		for _, image := range folder.Images {
			key, ok := storage.KeyFromURL(image.URL)
			if !ok {
				log.Printf("Could not extract storage key from URL: %s", image.URL)
				continue
			}
			if err := storage.Delete(r.Context(), key); err != nil {
				log.Printf("Error deleting blob %s: %v", key, err)
			}
		}

		if err := folders.Delete(r.Context(), folderID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Folder not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete folder")
			}
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"message": "Folder deleted successfully",
		})
	}
}
