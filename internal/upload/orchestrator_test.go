package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arquivadoc/arquivadoc/internal/compress"
	"github.com/arquivadoc/arquivadoc/internal/remotestore"
)

// fakeStore is an in-memory remotestore.Client.
type fakeStore struct {
	mu          sync.Mutex
	folders     map[string][]remotestore.Folder
	nextID      int
	uploads     []fakeUpload
	uploadErr   error
	deleteErr   error
	initialized bool
}

type fakeUpload struct {
	parentID string
	name     string
	mimeType string
	size     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{folders: make(map[string][]remotestore.Folder), initialized: true}
}

func (f *fakeStore) ListFolders(ctx context.Context, name, parentID string) ([]remotestore.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remotestore.Folder
	for _, folder := range f.folders[parentID] {
		if folder.Name == name {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateFolder(ctx context.Context, name, parentID string) (remotestore.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	folder := remotestore.Folder{ID: fmt.Sprintf("folder-%d", f.nextID), Name: name}
	f.folders[parentID] = append(f.folders[parentID], folder)
	return folder, nil
}

func (f *fakeStore) Upload(ctx context.Context, parentID, name, mimeType string, content io.Reader) (*remotestore.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, fakeUpload{parentID: parentID, name: name, mimeType: mimeType, size: int64(len(data))})
	return &remotestore.File{
		ID:           "file-1",
		Name:         name,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		CreatedTime:  time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		ViewLink:     "https://remote/view/file-1",
		DownloadLink: "https://remote/dl/file-1",
	}, nil
}

func (f *fakeStore) Download(ctx context.Context, id string) (io.ReadCloser, *remotestore.File, error) {
	return io.NopCloser(bytes.NewReader([]byte("content"))), &remotestore.File{ID: id}, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error { return f.deleteErr }

func (f *fakeStore) ListFiles(ctx context.Context, folderID string) ([]remotestore.File, error) {
	return nil, nil
}

func (f *fakeStore) Initialized() bool { return f.initialized }

// shrinkTool is a compress.PDFTool that always produces an output of the
// given size.
type shrinkTool struct {
	size int64
}

func (s *shrinkTool) Available() bool { return true }

func (s *shrinkTool) Compress(ctx context.Context, inPath, outPath, quality string) error {
	return os.WriteFile(outPath, bytes.Repeat([]byte{'c'}, int(s.size)), 0644)
}

func newOrchestrator(store *fakeStore, tool compress.PDFTool, tempDir string) *Orchestrator {
	resolver := remotestore.NewResolver(store, remotestore.NewFolderCache())
	pipeline := compress.New(compress.Options{
		Threshold:    2_000,
		Budget:       100_000,
		MaxImageDim:  4096,
		ImageQuality: 80,
		TempDir:      tempDir,
	}, tool)
	return New(store, resolver, pipeline)
}

func writeSource(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "laudo.pdf")
	if err := os.WriteFile(path, bytes.Repeat([]byte{'p'}, size), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestUploadSmallFileUnchanged(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(store, &shrinkTool{size: 1}, t.TempDir())

	path := writeSource(t, 1_000) // below threshold
	res, err := o.Upload(context.Background(), path, "application/pdf", "root",
		[]string{"CityA", "Servidores J", "João Silva"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if len(store.uploads) != 1 {
		t.Fatalf("expected 1 remote upload, got %d", len(store.uploads))
	}
	up := store.uploads[0]
	if up.parentID != "folder-3" {
		t.Errorf("expected upload into the resolved leaf, got %s", up.parentID)
	}
	if up.name != "laudo.pdf" {
		t.Errorf("expected file name preserved, got %s", up.name)
	}
	if up.size != 1_000 {
		t.Errorf("expected the original bytes uploaded, got %d", up.size)
	}
	if res.RemoteID != "file-1" || res.ViewLink == "" || res.DownloadLink == "" {
		t.Errorf("incomplete result: %+v", res)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("caller-owned original must never be deleted: %v", err)
	}
}

func TestUploadRemovesCompressedArtifact(t *testing.T) {
	store := newFakeStore()
	tempDir := t.TempDir()
	o := newOrchestrator(store, &shrinkTool{size: 3_000}, tempDir)

	path := writeSource(t, 10_000) // above threshold, tool shrinks to 3000
	_, err := o.Upload(context.Background(), path, "application/pdf", "root", []string{"CityA"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if store.uploads[0].size != 3_000 {
		t.Errorf("expected compressed bytes uploaded, got %d", store.uploads[0].size)
	}

	leftovers, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("compressed artifact should be cleaned up, found %d files", len(leftovers))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original must survive: %v", err)
	}
}

func TestUploadFailureStillCleansUp(t *testing.T) {
	store := newFakeStore()
	store.uploadErr = errors.New("remote unavailable")
	tempDir := t.TempDir()
	o := newOrchestrator(store, &shrinkTool{size: 3_000}, tempDir)

	path := writeSource(t, 10_000)
	_, err := o.Upload(context.Background(), path, "application/pdf", "root", []string{"CityA"})
	if err == nil {
		t.Fatal("expected upload error to propagate")
	}

	leftovers, _ := os.ReadDir(tempDir)
	if len(leftovers) != 0 {
		t.Errorf("artifact must be cleaned up on failure too, found %d files", len(leftovers))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original must survive a failed upload: %v", err)
	}
}

func TestUploadRequiresInitializedClient(t *testing.T) {
	store := newFakeStore()
	store.initialized = false
	o := newOrchestrator(store, &shrinkTool{size: 1}, t.TempDir())

	path := writeSource(t, 100)
	if _, err := o.Upload(context.Background(), path, "application/pdf", "root", []string{"CityA"}); err == nil {
		t.Error("expected error for uninitialized client")
	}
	if len(store.uploads) != 0 {
		t.Errorf("nothing should be uploaded, got %d", len(store.uploads))
	}
}

func TestDeleteIsBestEffort(t *testing.T) {
	store := newFakeStore()
	o := newOrchestrator(store, &shrinkTool{size: 1}, t.TempDir())

	if !o.Delete(context.Background(), "file-1") {
		t.Error("expected true on successful delete")
	}

	store.deleteErr = errors.New("remote unavailable")
	if o.Delete(context.Background(), "file-1") {
		t.Error("expected false, not an error, on failed delete")
	}
}
