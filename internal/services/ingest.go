package services

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"folderly-api/internal/models"
	"folderly-api/internal/repositories"
	"folderly-api/internal/utils"
)

var (
	ErrNoFiles   = errors.New("no images uploaded")
	ErrNoFolders = errors.New("no folders selected")
	// ErrAllFailed is returned by the single-folder path when not one image
	// survived processing.
	ErrAllFailed = errors.New("failed to process any images")
)

// RawFile is an uploaded image spooled to a temporary file.
type RawFile struct {
	Name string // original filename, reported back on failure
	Path string // temporary location on local disk
}

// Result tallies one ingestion call. FailedImages lists the original
// filenames of everything that did not make it.
type Result struct {
	Successful   int      `json:"successful"`
	Failed       int      `json:"failed"`
	FailedImages []string `json:"failedImages,omitempty"`
}

type Transcoder interface {
	Transcode(r io.Reader) ([]byte, error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type FolderAttacher interface {
	AppendImages(ctx context.Context, folderID int, images []models.NewImage) error
}

// Ingestor drives the transcode -> store -> attach pipeline.
type Ingestor struct {
	transcoder Transcoder
	store      BlobStore
	folders    FolderAttacher
}

func NewIngestor(transcoder Transcoder, store BlobStore, folders FolderAttacher) *Ingestor {
	return &Ingestor{
		transcoder: transcoder,
		store:      store,
		folders:    folders,
	}
}

// BatchSize picks the per-batch file count from the total upload size. It
// bounds peak concurrent transcode and network load while keeping the batch
// count low for small uploads.
func BatchSize(total int) int {
	switch {
	case total <= 50:
		return 10
	case total <= 200:
		return 20
	default:
		return 50
	}
}

// Discard removes the temporary files behind an upload. Safe to call on
// files already cleaned up.
func Discard(files []RawFile) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove temporary file %s: %v", f.Path, err)
		}
	}
}

// Ingest processes files in concurrent batches and attaches each successful
// batch to every target folder. Batches are all-or-nothing: one failing file
// marks its whole batch failed and nothing from that batch is attached.
// A failing batch never cancels or blocks its siblings; the call returns
// only after every batch has settled.
func (in *Ingestor) Ingest(ctx context.Context, files []RawFile, folderIDs []int) (Result, error) {
	if len(folderIDs) == 0 {
		Discard(files)
		return Result{}, ErrNoFolders
	}
	if len(files) == 0 {
		return Result{}, ErrNoFiles
	}

	size := BatchSize(len(files))
	var batches [][]RawFile
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, files[start:end])
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res Result
	)

	for _, batch := range batches {
		wg.Add(1)
		go func(batch []RawFile) {
			defer wg.Done()

			images, err := in.processBatch(ctx, batch)
			if err == nil {
				err = in.attach(ctx, images, folderIDs)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Batch of %d images failed: %v", len(batch), err)
				res.Failed += len(batch)
				for _, f := range batch {
					res.FailedImages = append(res.FailedImages, f.Name)
				}
				return
			}
			res.Successful += len(batch)
		}(batch)
	}

	wg.Wait()
	return res, nil
}

// IngestSequential is the single-folder upload path. Files are processed
// strictly in input order and each failure is isolated to its own file. When
// nothing survives, the whole call fails with ErrAllFailed.
func (in *Ingestor) IngestSequential(ctx context.Context, files []RawFile, folderID int) (Result, error) {
	if len(files) == 0 {
		return Result{}, ErrNoFiles
	}

	var res Result
	processed := make([]models.NewImage, 0, len(files))
	for _, f := range files {
		img, err := in.processFile(ctx, f)
		if err != nil {
			log.Printf("Failed to process image %s: %v", f.Name, err)
			res.Failed++
			res.FailedImages = append(res.FailedImages, f.Name)
			continue
		}
		processed = append(processed, img)
		res.Successful++
	}

	if len(processed) == 0 {
		return res, ErrAllFailed
	}

	if err := in.folders.AppendImages(ctx, folderID, processed); err != nil {
		return Result{Failed: len(files), FailedImages: failedNames(files)}, err
	}
	return res, nil
}

// processBatch is the batch's single failure boundary: the first error
// aborts the batch and the remaining temporary files are discarded.
func (in *Ingestor) processBatch(ctx context.Context, batch []RawFile) ([]models.NewImage, error) {
	images := make([]models.NewImage, 0, len(batch))
	for i, f := range batch {
		img, err := in.processFile(ctx, f)
		if err != nil {
			Discard(batch[i+1:])
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// processFile transcodes and uploads one image. The temporary file is
// removed on success and failure alike.
func (in *Ingestor) processFile(ctx context.Context, f RawFile) (models.NewImage, error) {
	defer func() {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove temporary file %s: %v", f.Path, err)
		}
	}()

	src, err := os.Open(f.Path)
	if err != nil {
		return models.NewImage{}, err
	}
	data, err := in.transcoder.Transcode(src)
	src.Close()
	if err != nil {
		return models.NewImage{}, err
	}

	url, err := in.store.Put(ctx, utils.GenerateStorageKey(), data, "image/jpeg")
	if err != nil {
		return models.NewImage{}, err
	}
	return models.NewImage{Name: f.Name, URL: url}, nil
}

// attach appends a processed batch to every target folder. A missing folder
// is skipped, any other storage error fails the batch.
func (in *Ingestor) attach(ctx context.Context, images []models.NewImage, folderIDs []int) error {
	for _, id := range folderIDs {
		if err := in.folders.AppendImages(ctx, id, images); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				log.Printf("Skipping missing folder %d during bulk upload", id)
				continue
			}
			return err
		}
	}
	return nil
}

func failedNames(files []RawFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
