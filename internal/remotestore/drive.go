package remotestore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/arquivadoc/arquivadoc/internal/metrics"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient implements Client on top of the Google Drive v3 API.
type DriveClient struct {
	svc *drive.Service
}

// NewDriveClient creates a Drive-backed client with the given credentials.
func NewDriveClient(ctx context.Context, creds Credentials) (*DriveClient, error) {
	ts, err := creds.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveClient{svc: svc}, nil
}

// Initialized reports whether the Drive service is ready.
func (c *DriveClient) Initialized() bool {
	return c != nil && c.svc != nil
}

// ListFolders returns non-trashed folders named exactly name under parentID.
func (c *DriveClient) ListFolders(ctx context.Context, name, parentID string) ([]Folder, error) {
	start := time.Now()
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderMimeType, escapeQuery(parentID))

	list, err := c.svc.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(100).
		Context(ctx).
		Do()
	metrics.RecordRemoteOp("list_folders", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("drive list folders: %w", err)
	}

	folders := make([]Folder, 0, len(list.Files))
	for _, f := range list.Files {
		// Drive matching is case-insensitive; the contract is exact.
		if f.Name != name {
			continue
		}
		folders = append(folders, Folder{ID: f.Id, Name: f.Name})
	}
	return folders, nil
}

// CreateFolder creates a folder named name under parentID.
func (c *DriveClient) CreateFolder(ctx context.Context, name, parentID string) (Folder, error) {
	start := time.Now()
	f, err := c.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id, name").Context(ctx).Do()
	metrics.RecordRemoteOp("create_folder", time.Since(start), err == nil)
	if err != nil {
		return Folder{}, fmt.Errorf("drive create folder: %w", err)
	}
	return Folder{ID: f.Id, Name: f.Name}, nil
}

// Upload streams content into a new file under parentID.
func (c *DriveClient) Upload(ctx context.Context, parentID, name, mimeType string, content io.Reader) (*File, error) {
	start := time.Now()
	f, err := c.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).
		Media(content, googleapi.ContentType(mimeType)).
		Fields("id, name, size, mimeType, createdTime, modifiedTime, webViewLink, webContentLink").
		Context(ctx).
		Do()
	metrics.RecordRemoteOp("upload", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("drive upload: %w", err)
	}
	return fileFromDrive(f), nil
}

// Download returns the content stream and metadata for a file.
func (c *DriveClient) Download(ctx context.Context, id string) (io.ReadCloser, *File, error) {
	start := time.Now()
	meta, err := c.svc.Files.Get(id).
		Fields("id, name, size, mimeType, createdTime, modifiedTime, webViewLink, webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		metrics.RecordRemoteOp("download", time.Since(start), false)
		return nil, nil, fmt.Errorf("drive get metadata: %w", err)
	}

	resp, err := c.svc.Files.Get(id).Context(ctx).Download()
	metrics.RecordRemoteOp("download", time.Since(start), err == nil)
	if err != nil {
		return nil, nil, fmt.Errorf("drive download: %w", err)
	}
	return resp.Body, fileFromDrive(meta), nil
}

// Delete removes a file or folder.
func (c *DriveClient) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := c.svc.Files.Delete(id).Context(ctx).Do()
	metrics.RecordRemoteOp("delete", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("drive delete: %w", err)
	}
	return nil
}

// ListFiles returns the non-trashed, non-folder files under folderID.
func (c *DriveClient) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	start := time.Now()
	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'",
		escapeQuery(folderID), folderMimeType)

	list, err := c.svc.Files.List().
		Q(query).
		Fields("files(id, name, size, mimeType, createdTime, modifiedTime, webViewLink, webContentLink)").
		PageSize(1000).
		Context(ctx).
		Do()
	metrics.RecordRemoteOp("list_files", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("drive list files: %w", err)
	}

	files := make([]File, 0, len(list.Files))
	for _, f := range list.Files {
		files = append(files, *fileFromDrive(f))
	}
	return files, nil
}

func fileFromDrive(f *drive.File) *File {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedTime:  created,
		ModifiedTime: modified,
		ViewLink:     f.WebViewLink,
		DownloadLink: f.WebContentLink,
	}
}

// escapeQuery escapes a value for interpolation into a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
