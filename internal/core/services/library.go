package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/logger"
)

// Ensure LibraryService implements the interface.
var _ driving.LibraryService = (*LibraryService)(nil)

// LibraryService tracks recently opened PDFs in a catalog and watches
// their directories so documents moved or deleted outside the
// application are flagged as missing.
type LibraryService struct {
	catalog driven.CatalogStore
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	tracked map[string]struct{}
	dirs    map[string]int

	done chan struct{}
}

// NewLibraryService creates a library service and starts its watcher.
func NewLibraryService(catalog driven.CatalogStore) (*LibraryService, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	s := &LibraryService{
		catalog: catalog,
		watcher: watcher,
		tracked: make(map[string]struct{}),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Touch records that the PDF was opened now and starts watching its
// directory.
func (s *LibraryService) Touch(ctx context.Context, pdfPath string) error {
	clean := filepath.Clean(pdfPath)
	name := strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))

	if err := s.catalog.Touch(ctx, clean, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("record opened document: %w", err)
	}

	_, statErr := os.Stat(clean)
	missing := statErr != nil
	if err := s.catalog.SetMissing(ctx, clean, missing); err != nil {
		logger.Warn("failed to update missing flag for %s: %v", clean, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[clean]; ok {
		return nil
	}
	s.tracked[clean] = struct{}{}

	dir := filepath.Dir(clean)
	s.dirs[dir]++
	if s.dirs[dir] == 1 {
		if err := s.watcher.Add(dir); err != nil {
			// The catalog entry stands even when the directory cannot
			// be watched; Recents re-checks existence anyway.
			logger.Warn("failed to watch %s: %v", dir, err)
			s.dirs[dir]--
		}
	}
	return nil
}

// Recents lists recently opened documents, newest first. Existence is
// re-verified on every call so the list is correct even when a watch
// event was missed.
func (s *LibraryService) Recents(ctx context.Context, limit int) ([]driving.RecentDocument, error) {
	entries, err := s.catalog.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}

	out := make([]driving.RecentDocument, 0, len(entries))
	for _, e := range entries {
		_, statErr := os.Stat(e.PDFPath)
		missing := statErr != nil
		if missing != e.Missing {
			if err := s.catalog.SetMissing(ctx, e.PDFPath, missing); err != nil {
				logger.Warn("failed to update missing flag for %s: %v", e.PDFPath, err)
			}
		}
		out = append(out, driving.RecentDocument{
			PDFPath:      e.PDFPath,
			PDFName:      e.PDFName,
			LastOpenedAt: e.LastOpenedAt,
			OpenCount:    e.OpenCount,
			Missing:      missing,
		})
	}
	return out, nil
}

// Close stops the watcher and releases the catalog.
func (s *LibraryService) Close() error {
	close(s.done)
	if err := s.watcher.Close(); err != nil {
		logger.Warn("failed to close filesystem watcher: %v", err)
	}
	return s.catalog.Close()
}

func (s *LibraryService) run() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("library watcher: %v", err)
		}
	}
}

func (s *LibraryService) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	s.mu.Lock()
	_, interested := s.tracked[path]
	s.mu.Unlock()
	if !interested {
		return
	}

	ctx := context.Background()
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		logger.Debug("tracked document disappeared: %s", path)
		if err := s.catalog.SetMissing(ctx, path, true); err != nil {
			logger.Warn("failed to flag %s as missing: %v", path, err)
		}
	case event.Has(fsnotify.Create):
		logger.Debug("tracked document reappeared: %s", path)
		if err := s.catalog.SetMissing(ctx, path, false); err != nil {
			logger.Warn("failed to unflag %s: %v", path, err)
		}
	}
}
