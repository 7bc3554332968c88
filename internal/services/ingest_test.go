package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"folderly-api/internal/models"
	"folderly-api/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTranscoder fails on files whose content contains "bad".
type stubTranscoder struct{}

func (stubTranscoder) Transcode(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if strings.Contains(string(b), "bad") {
		return nil, errors.New("corrupt image")
	}
	return b, nil
}

type stubStore struct {
	mu   sync.Mutex
	puts int
}

func (s *stubStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	return "https://blobs.test/" + key, nil
}

type stubAttacher struct {
	mu       sync.Mutex
	attached map[int][]models.NewImage
	missing  map[int]bool
	err      error
}

func newStubAttacher() *stubAttacher {
	return &stubAttacher{attached: map[int][]models.NewImage{}}
}

func (a *stubAttacher) AppendImages(_ context.Context, folderID int, images []models.NewImage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.missing[folderID] {
		return repositories.ErrNotFound
	}
	a.attached[folderID] = append(a.attached[folderID], images...)
	return nil
}

func (a *stubAttacher) count(folderID int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.attached[folderID])
}

// writeTempFiles creates n spooled upload files; indexes in bad get content
// the stub transcoder rejects.
func writeTempFiles(t *testing.T, n int, bad ...int) []RawFile {
	t.Helper()
	dir := t.TempDir()
	badSet := map[int]bool{}
	for _, i := range bad {
		badSet[i] = true
	}

	files := make([]RawFile, n)
	for i := 0; i < n; i++ {
		content := "ok"
		if badSet[i] {
			content = "bad"
		}
		path := fmt.Sprintf("%s/img-%03d.png", dir, i)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		files[i] = RawFile{Name: fmt.Sprintf("photo-%03d.png", i), Path: path}
	}
	return files
}

func assertTempFilesGone(t *testing.T, files []RawFile) {
	t.Helper()
	for _, f := range files {
		_, err := os.Stat(f.Path)
		assert.True(t, os.IsNotExist(err), "temp file %s should be removed", f.Path)
	}
}

func newTestIngestor(attacher *stubAttacher) *Ingestor {
	return NewIngestor(stubTranscoder{}, &stubStore{}, attacher)
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{1, 10},
		{45, 10},
		{50, 10},
		{51, 20},
		{150, 20},
		{200, 20},
		{201, 50},
		{500, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BatchSize(tt.total), "total=%d", tt.total)
	}
}

func TestIngestAllSuccess(t *testing.T) {
	attacher := newStubAttacher()
	in := newTestIngestor(attacher)
	files := writeTempFiles(t, 25)

	result, err := in.Ingest(context.Background(), files, []int{1, 2})
	require.NoError(t, err)

	assert.Equal(t, 25, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.FailedImages)
	assert.Equal(t, 25, attacher.count(1))
	assert.Equal(t, 25, attacher.count(2))
	assertTempFilesGone(t, files)
}

func TestIngestBatchFailureDoesNotAbortSiblings(t *testing.T) {
	attacher := newStubAttacher()
	in := newTestIngestor(attacher)
	// 25 files -> batches of 10; file 12 poisons the second batch only
	files := writeTempFiles(t, 25, 12)

	result, err := in.Ingest(context.Background(), files, []int{1})
	require.NoError(t, err)

	assert.Equal(t, 15, result.Successful)
	assert.Equal(t, 10, result.Failed)
	assert.Len(t, result.FailedImages, 10)
	for i := 10; i < 20; i++ {
		assert.Contains(t, result.FailedImages, files[i].Name)
	}
	// Nothing from the failed batch was attached
	assert.Equal(t, 15, attacher.count(1))
	assertTempFilesGone(t, files)
}

func TestIngestNoFolders(t *testing.T) {
	in := newTestIngestor(newStubAttacher())
	files := writeTempFiles(t, 3)

	_, err := in.Ingest(context.Background(), files, nil)
	assert.ErrorIs(t, err, ErrNoFolders)
	assertTempFilesGone(t, files)
}

func TestIngestNoFiles(t *testing.T) {
	in := newTestIngestor(newStubAttacher())

	_, err := in.Ingest(context.Background(), nil, []int{1})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestIngestSkipsMissingFolders(t *testing.T) {
	attacher := newStubAttacher()
	attacher.missing = map[int]bool{99: true}
	in := newTestIngestor(attacher)
	files := writeTempFiles(t, 5)

	result, err := in.Ingest(context.Background(), files, []int{1, 99})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 5, attacher.count(1))
	assert.Equal(t, 0, attacher.count(99))
}

func TestIngestAttachErrorFailsBatch(t *testing.T) {
	attacher := newStubAttacher()
	attacher.err = errors.New("db down")
	in := newTestIngestor(attacher)
	files := writeTempFiles(t, 5)

	result, err := in.Ingest(context.Background(), files, []int{1})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 5, result.Failed)
	assert.Len(t, result.FailedImages, 5)
	assertTempFilesGone(t, files)
}

func TestConcurrentIngestsSameFolder(t *testing.T) {
	attacher := newStubAttacher()
	in := newTestIngestor(attacher)
	first := writeTempFiles(t, 20)
	second := writeTempFiles(t, 30)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := in.Ingest(context.Background(), first, []int{1})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := in.Ingest(context.Background(), second, []int{1})
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Both calls must be reflected in full; no append may be lost
	assert.Equal(t, 50, attacher.count(1))
}

func TestIngestSequentialIsolatesFailures(t *testing.T) {
	attacher := newStubAttacher()
	in := newTestIngestor(attacher)
	files := writeTempFiles(t, 4, 1)

	result, err := in.IngestSequential(context.Background(), files, 7)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{files[1].Name}, result.FailedImages)
	assert.Equal(t, 3, attacher.count(7))
	assertTempFilesGone(t, files)

	// Input order is preserved on the sequential path
	names := make([]string, 0, 3)
	for _, img := range attacher.attached[7] {
		names = append(names, img.Name)
	}
	assert.Equal(t, []string{files[0].Name, files[2].Name, files[3].Name}, names)
}

func TestIngestSequentialAllFailed(t *testing.T) {
	attacher := newStubAttacher()
	in := newTestIngestor(attacher)
	files := writeTempFiles(t, 3, 0, 1, 2)

	result, err := in.IngestSequential(context.Background(), files, 7)
	assert.ErrorIs(t, err, ErrAllFailed)
	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 0, attacher.count(7))
	assertTempFilesGone(t, files)
}

func TestIngestSequentialNoFiles(t *testing.T) {
	in := newTestIngestor(newStubAttacher())

	_, err := in.IngestSequential(context.Background(), nil, 7)
	assert.ErrorIs(t, err, ErrNoFiles)
}
