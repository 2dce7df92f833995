// Package upload composes the compression pipeline, folder path resolver
// and remote store client into the single entry point callers use to
// persist a document's bytes.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/compress"
	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
	"github.com/arquivadoc/arquivadoc/internal/remotestore"
)

// Result is what the caller needs to persist a document record after the
// bytes have landed on the remote store.
type Result struct {
	RemoteID     string
	ViewLink     string
	DownloadLink string
	Size         int64
	MimeType     string
	CreatedTime  time.Time
}

// Orchestrator runs the upload pipeline: maybe-compress, resolve the
// target folder, stream to the remote store, clean up.
type Orchestrator struct {
	client   remotestore.Client
	resolver *remotestore.Resolver
	pipeline *compress.Pipeline
}

// New creates an orchestrator.
func New(client remotestore.Client, resolver *remotestore.Resolver, pipeline *compress.Pipeline) *Orchestrator {
	return &Orchestrator{client: client, resolver: resolver, pipeline: pipeline}
}

// Upload persists localPath under the folder described by segments,
// compressing it first when it exceeds the preview budget threshold. The
// temporary compressed artifact, if any, is always removed before Upload
// returns; the caller-owned original never is. Metadata persistence is the
// caller's job, after this returns successfully.
func (o *Orchestrator) Upload(ctx context.Context, localPath, mimeType, rootFolderID string, segments []string) (*Result, error) {
	if !o.client.Initialized() {
		return nil, fmt.Errorf("remote store client not initialized")
	}

	res, err := o.pipeline.MaybeCompress(ctx, localPath, mimeType)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	defer o.cleanupArtifact(res, localPath)

	leafID, err := o.resolver.Resolve(ctx, rootFolderID, segments)
	if err != nil {
		metrics.RecordUpload("folder_error", 0)
		return nil, err
	}

	f, err := os.Open(res.Path)
	if err != nil {
		metrics.RecordUpload("error", 0)
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	remote, err := o.client.Upload(ctx, leafID, name, res.MimeType, f)
	if err != nil {
		metrics.RecordUpload("error", 0)
		return nil, fmt.Errorf("upload %q: %w", name, err)
	}
	metrics.RecordUpload("ok", remote.Size)

	logging.Info("document uploaded",
		zap.String("name", name),
		zap.String("remote_id", remote.ID),
		zap.String("folder", leafID),
		zap.Bool("compressed", res.Compressed),
		zap.Int64("original_size", res.OriginalSize),
		zap.Int64("final_size", res.FinalSize))

	return &Result{
		RemoteID:     remote.ID,
		ViewLink:     remote.ViewLink,
		DownloadLink: remote.DownloadLink,
		Size:         remote.Size,
		MimeType:     remote.MimeType,
		CreatedTime:  remote.CreatedTime,
	}, nil
}

// Delete removes a remote file. Deletion backs user-facing cleanup that
// must still succeed locally when the remote side is briefly down, so
// failures are logged and reported as false rather than returned.
func (o *Orchestrator) Delete(ctx context.Context, remoteID string) bool {
	if err := o.client.Delete(ctx, remoteID); err != nil {
		logging.Warn("remote delete failed",
			zap.String("remote_id", remoteID), zap.Error(err))
		return false
	}
	return true
}

// Download streams a remote file back to the caller.
func (o *Orchestrator) Download(ctx context.Context, remoteID string) (io.ReadCloser, *remotestore.File, error) {
	return o.client.Download(ctx, remoteID)
}

// cleanupArtifact removes the intermediate compressed file. Failures are
// logged only: they must never mask the upload result or error.
func (o *Orchestrator) cleanupArtifact(res *compress.Result, original string) {
	if res == nil || !res.Compressed || res.Path == original {
		return
	}
	if err := os.Remove(res.Path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove compressed artifact",
			zap.String("path", res.Path), zap.Error(err))
	}
}
