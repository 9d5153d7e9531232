package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/margo-labs/margo/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/margo-labs/margo/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.CatalogStore = (*Store)(nil)

// Store is the SQLite-backed catalog of recently opened documents.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a catalog store at the specified data directory.
// If dataDir is empty, defaults to ~/.margo/data/catalog.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".margo", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "catalog.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Touch records that the PDF was opened, creating the entry on first
// open and bumping the open count otherwise.
func (s *Store) Touch(ctx context.Context, pdfPath, pdfName string, openedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recents (pdf_path, pdf_name, last_opened_at, open_count, missing)
		VALUES (?, ?, ?, 1, 0)
		ON CONFLICT(pdf_path) DO UPDATE SET
			pdf_name = excluded.pdf_name,
			last_opened_at = excluded.last_opened_at,
			open_count = open_count + 1
	`, pdfPath, pdfName, openedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording open of %s: %w", pdfPath, err)
	}
	return nil
}

// List returns entries ordered by last-opened time, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]driven.CatalogEntry, error) {
	query := "SELECT pdf_path, pdf_name, last_opened_at, open_count, missing FROM recents ORDER BY last_opened_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing recents: %w", err)
	}
	defer rows.Close()

	var entries []driven.CatalogEntry
	for rows.Next() {
		var entry driven.CatalogEntry
		var openedAt string
		var missing int
		if err := rows.Scan(&entry.PDFPath, &entry.PDFName, &openedAt, &entry.OpenCount, &missing); err != nil {
			return nil, fmt.Errorf("scanning recents row: %w", err)
		}
		t, err := time.Parse(time.RFC3339, openedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing last_opened_at for %s: %w", entry.PDFPath, err)
		}
		entry.LastOpenedAt = t
		entry.Missing = missing != 0
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recents: %w", err)
	}
	return entries, nil
}

// SetMissing flags or unflags an entry whose PDF disappeared from or
// reappeared on disk. Unknown paths are a no-op.
func (s *Store) SetMissing(ctx context.Context, pdfPath string, missing bool) error {
	flag := 0
	if missing {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, "UPDATE recents SET missing = ? WHERE pdf_path = ?", flag, pdfPath)
	if err != nil {
		return fmt.Errorf("updating missing flag for %s: %w", pdfPath, err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
