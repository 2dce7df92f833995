// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/config"
	"github.com/arquivadoc/arquivadoc/internal/docs"
	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
	"github.com/arquivadoc/arquivadoc/internal/upload"
)

// Server is the HTTP server.
type Server struct {
	store        *docs.Store
	orchestrator *upload.Orchestrator
	cfg          *config.Config
}

// NewServer creates a new server.
func NewServer(store *docs.Store, orchestrator *upload.Orchestrator, cfg *config.Config) *Server {
	return &Server{store: store, orchestrator: orchestrator, cfg: cfg}
}

// Handler builds the routing tree with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/documents", s.handleUpload)
	mux.HandleFunc("GET /api/documents", s.handleList)
	mux.HandleFunc("GET /api/documents/{id}/download", s.handleDownload)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDelete)
	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type documentResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Municipality string    `json:"municipality"`
	Entity       string    `json:"entity"`
	RemoteID     string    `json:"remote_id"`
	ViewLink     string    `json:"view_link"`
	DownloadLink string    `json:"download_link"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	CreatedAt    time.Time `json:"created_at"`
}

func toResponse(d *docs.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Category:     d.Category,
		Municipality: d.Municipality,
		Entity:       d.Entity,
		RemoteID:     d.RemoteID,
		ViewLink:     d.ViewLink,
		DownloadLink: d.DownloadLink,
		Size:         d.Size,
		MimeType:     d.MimeType,
		CreatedAt:    d.CreatedAt,
	}
}

// handleUpload accepts a multipart document upload, runs the storage
// pipeline, and persists the metadata record once the bytes have landed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := r.FormValue("title")
	category := r.FormValue("category")
	municipality := r.FormValue("municipality")
	entity := r.FormValue("entity")
	if title == "" || municipality == "" || entity == "" {
		writeError(w, http.StatusBadRequest, "title, municipality and entity are required")
		return
	}

	var segments []string
	switch category {
	case "servidor":
		segments = docs.ServantPath(municipality, entity)
	case "financeiro":
		year, err := strconv.Atoi(r.FormValue("year"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "year is required for financial documents")
			return
		}
		period := r.FormValue("period")
		if period == "" {
			writeError(w, http.StatusBadRequest, "period is required for financial documents")
			return
		}
		segments = docs.FinancialPath(municipality, entity, year, period)
	default:
		writeError(w, http.StatusBadRequest, "category must be servidor or financeiro")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	localPath, err := s.spoolToDisk(file, header.Filename)
	if err != nil {
		logging.Error("failed to spool upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(localPath)

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			mimeType = byExt
		}
	}

	result, err := s.orchestrator.Upload(ctx, localPath, mimeType, s.cfg.DriveRootFolderID, segments)
	if err != nil {
		logging.Error("upload pipeline failed",
			zap.String("title", title), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upload to remote store failed")
		return
	}

	doc := &docs.Document{
		Title:        title,
		Category:     category,
		Municipality: municipality,
		Entity:       entity,
		RemoteID:     result.RemoteID,
		ViewLink:     result.ViewLink,
		DownloadLink: result.DownloadLink,
		Size:         result.Size,
		MimeType:     result.MimeType,
		CreatedAt:    result.CreatedTime,
	}
	id, err := s.store.Insert(ctx, doc)
	if err != nil {
		// The bytes are on the remote store but the record is not: the
		// orphan is an accepted tradeoff, surfaced for operators.
		logging.Error("metadata insert failed after upload",
			zap.String("remote_id", result.RemoteID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist document record")
		return
	}
	doc.ID = id

	writeJSON(w, http.StatusCreated, toResponse(doc))
}

// spoolToDisk writes the multipart file to a temp file the compression
// pipeline can read by path.
func (s *Server) spoolToDisk(src io.Reader, name string) (string, error) {
	f, err := os.CreateTemp(s.cfg.TempDir, "upload-*"+sanitizeExt(name))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(f.Name())
		if copyErr != nil {
			return "", fmt.Errorf("write temp file: %w", copyErr)
		}
		return "", fmt.Errorf("close temp file: %w", closeErr)
	}
	return f.Name(), nil
}

func sanitizeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	municipality := r.URL.Query().Get("municipality")
	if municipality == "" {
		writeError(w, http.StatusBadRequest, "municipality is required")
		return
	}
	category := r.URL.Query().Get("category")

	list, err := s.store.List(r.Context(), municipality, category)
	if err != nil {
		logging.Error("list documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	out := make([]documentResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.docFromPath(w, r)
	if !ok {
		return
	}

	stream, meta, err := s.orchestrator.Download(r.Context(), doc.RemoteID)
	if err != nil {
		logging.Error("remote download failed",
			zap.String("remote_id", doc.RemoteID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch document")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", meta.MimeType)
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", meta.Name))
	io.Copy(w, stream)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.docFromPath(w, r)
	if !ok {
		return
	}

	// Remote deletion is best effort: the local record goes away even if
	// the remote side is briefly unavailable.
	if !s.orchestrator.Delete(r.Context(), doc.RemoteID) {
		logging.Warn("remote file not deleted, removing record anyway",
			zap.Int64("id", doc.ID), zap.String("remote_id", doc.RemoteID))
	}

	if err := s.store.Delete(r.Context(), doc.ID); err != nil {
		logging.Error("delete document record failed", zap.Int64("id", doc.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) docFromPath(w http.ResponseWriter, r *http.Request) (*docs.Document, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return nil, false
	}
	doc, err := s.store.Get(r.Context(), id)
	if errors.Is(err, docs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	if err != nil {
		logging.Error("get document failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return nil, false
	}
	return doc, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
