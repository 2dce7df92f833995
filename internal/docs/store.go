// Package docs persists municipal document records and builds the logical
// folder paths documents are filed under on the remote store.
package docs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored document record. The remote store holds the
// bytes; this row holds everything needed to list, preview and delete it.
type Document struct {
	ID           int64
	Title        string
	Category     string // "servidor", "financeiro", ...
	Municipality string
	Entity       string // servant name or financial type the document belongs to
	RemoteID     string
	ViewLink     string
	DownloadLink string
	Size         int64
	MimeType     string
	CreatedAt    time.Time
}

// Store is a PostgreSQL document metadata store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool against databaseURL.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// Migrate runs SQL migration files.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	return nil
}

// Insert stores a new document record and returns its id.
func (s *Store) Insert(ctx context.Context, d *Document) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents
			(title, category, municipality, entity, remote_id,
			 view_link, download_link, size, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		d.Title, d.Category, d.Municipality, d.Entity, d.RemoteID,
		d.ViewLink, d.DownloadLink, d.Size, d.MimeType, d.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, id int64) (*Document, error) {
	d := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, municipality, entity, remote_id,
		       view_link, download_link, size, mime_type, created_at
		FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Title, &d.Category, &d.Municipality, &d.Entity,
		&d.RemoteID, &d.ViewLink, &d.DownloadLink, &d.Size, &d.MimeType, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return d, nil
}

// List returns documents for a municipality, optionally filtered by
// category, newest first.
func (s *Store) List(ctx context.Context, municipality, category string) ([]*Document, error) {
	query := `
		SELECT id, title, category, municipality, entity, remote_id,
		       view_link, download_link, size, mime_type, created_at
		FROM documents WHERE municipality = $1`
	args := []any{municipality}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.Title, &d.Category, &d.Municipality, &d.Entity,
			&d.RemoteID, &d.ViewLink, &d.DownloadLink, &d.Size, &d.MimeType, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a document record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
