package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"folderly-api/internal/repositories"
	"folderly-api/internal/responses"
	"folderly-api/internal/services"
	"folderly-api/internal/utils"

	"github.com/gorilla/mux"
)

const (
	maxUploadFiles    = 50
	maxUploadFileSize = 80 << 20 // per file
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// saveUploads spools the multipart "images" parts to unique temporary files.
// On any error every file written so far is removed before returning.
func saveUploads(r *http.Request, dir string) ([]services.RawFile, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	parts := r.MultipartForm.File["images"]
	if len(parts) > maxUploadFiles {
		return nil, errors.New("too many files. Maximum is 50")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files := make([]services.RawFile, 0, len(parts))
	fail := func(err error) ([]services.RawFile, error) {
		services.Discard(files)
		return nil, err
	}

	for _, fh := range parts {
		if fh.Size > maxUploadFileSize {
			return fail(errors.New("file is too large. Maximum size is 80MB"))
		}
		if !allowedImageTypes[fh.Header.Get("Content-Type")] {
			return fail(errors.New("invalid file type. Only JPEG, PNG and GIF are allowed"))
		}

		src, err := fh.Open()
		if err != nil {
			return fail(err)
		}

		tmpPath := utils.TempFileName(dir, fh.Filename)
		dst, err := os.Create(tmpPath)
		if err != nil {
			src.Close()
			return fail(err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			os.Remove(tmpPath)
			return fail(err)
		}

		files = append(files, services.RawFile{Name: fh.Filename, Path: tmpPath})
	}
	return files, nil
}

// UploadImages is the single-folder upload path: files are processed in
// order with per-file isolation, and the call fails outright only when not
// one image could be processed.
func UploadImages(folders *repositories.FolderRepository, ingestor *services.Ingestor, uploadDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID, err := strconv.Atoi(mux.Vars(r)["folderId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}

		files, err := saveUploads(r, uploadDir)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		if _, err := folders.FindByID(r.Context(), folderID); err != nil {
			services.Discard(files)
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Folder not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		if len(files) == 0 {
			responses.SendErrorResponse(w, http.StatusBadRequest, "No images uploaded")
			return
		}

		result, err := ingestor.IngestSequential(r.Context(), files, folderID)
		if err != nil {
			if errors.Is(err, services.ErrAllFailed) {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to process any images")
				return
			}
			log.Printf("Image upload error: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Server error")
			return
		}

		folder, err := folders.FindByID(r.Context(), folderID)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch folder")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message": "Successfully uploaded " + strconv.Itoa(result.Successful) + " images",
			"folder":  folder,
			"result":  result,
		})
	}
}

// BulkUpload runs the batched pipeline against every selected folder. A
// partial result is still a 200: side effects happened, the caller must
// read the tally rather than trust the status code.
func BulkUpload(ingestor *services.Ingestor, uploadDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := saveUploads(r, uploadDir)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		var folderIDs []int
		if raw := r.FormValue("folderIds"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &folderIDs); err != nil {
				services.Discard(files)
				responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid folderIds format")
				return
			}
		}

		result, err := ingestor.Ingest(r.Context(), files, folderIDs)
		if err != nil {
			if errors.Is(err, services.ErrNoFolders) {
				responses.SendErrorResponse(w, http.StatusBadRequest, "No folders selected")
				return
			}
			if errors.Is(err, services.ErrNoFiles) {
				responses.SendErrorResponse(w, http.StatusBadRequest, "No images uploaded")
				return
			}
			log.Printf("Bulk image upload error: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Server error")
			return
		}

		message := "Images uploaded and processed successfully"
		if result.Failed > 0 {
			message = "Images processed with some failures"
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message":         message,
			"successful":      result.Successful,
			"failed":          result.Failed,
			"failedImages":    result.FailedImages,
			"affectedFolders": len(folderIDs),
		})
	}
}
