// Package remotestore talks to the hierarchical remote store that holds
// actual document bytes (Google Drive). It exposes a single Client
// interface, a folder path resolver, and the in-memory folder cache the
// resolver uses to avoid redundant remote lookups.
package remotestore

import (
	"context"
	"io"
	"time"
)

// Folder is a remote folder reference.
type Folder struct {
	ID   string
	Name string
}

// File is remote file metadata.
type File struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	CreatedTime  time.Time
	ModifiedTime time.Time
	ViewLink     string
	DownloadLink string
}

// Client is the narrow contract this service needs from the remote store.
// Implementations must be safe for concurrent use.
type Client interface {
	// ListFolders returns non-trashed folders named exactly name whose
	// parent is parentID.
	ListFolders(ctx context.Context, name, parentID string) ([]Folder, error)

	// CreateFolder creates a folder named name under parentID.
	CreateFolder(ctx context.Context, name, parentID string) (Folder, error)

	// Upload streams content into a new file under parentID.
	Upload(ctx context.Context, parentID, name, mimeType string, content io.Reader) (*File, error)

	// Download returns the content stream and metadata for a file.
	// The caller owns the returned ReadCloser.
	Download(ctx context.Context, id string) (io.ReadCloser, *File, error)

	// Delete removes a file or folder.
	Delete(ctx context.Context, id string) error

	// ListFiles returns the non-trashed files directly under folderID.
	ListFiles(ctx context.Context, folderID string) ([]File, error)

	// Initialized reports whether the client is ready for use.
	Initialized() bool
}
