package sidecar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/logger"
)

// Extension carried by sidecar files.
const Extension = ".chat"

// Ensure Store implements the interface.
var _ driven.SidecarStore = (*Store)(nil)

// Store reads and writes sidecar files on the local filesystem.
type Store struct{}

// NewStore creates a filesystem sidecar store.
func NewStore() *Store {
	return &Store{}
}

// SidecarPath canonicalises a PDF path and replaces its extension with
// the sidecar extension.
func (s *Store) SidecarPath(pdfPath string) string {
	clean := filepath.Clean(pdfPath)
	return strings.TrimSuffix(clean, filepath.Ext(clean)) + Extension
}

// Exists reports whether a sidecar file is present at the path.
func (s *Store) Exists(sidecarPath string) bool {
	info, err := os.Stat(sidecarPath)
	return err == nil && !info.IsDir()
}

// Read loads and decodes a sidecar file.
func (s *Store) Read(_ context.Context, sidecarPath string) (*domain.ChatFile, error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("sidecar file %s: %w", sidecarPath, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read sidecar file %s: %w", sidecarPath, err)
	}
	cf, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("sidecar file %s: %w", sidecarPath, err)
	}
	return cf, nil
}

// Write encodes and stores a chat file. The write goes through a
// temporary file in the same directory and a rename, so a crash
// mid-write cannot leave a truncated sidecar behind.
func (s *Store) Write(_ context.Context, sidecarPath string, cf *domain.ChatFile) error {
	data, err := Encode(cf)
	if err != nil {
		return err
	}

	dir := filepath.Dir(sidecarPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(sidecarPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary sidecar file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sidecar file %s: %w", sidecarPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write sidecar file %s: %w", sidecarPath, err)
	}
	if err := os.Rename(tmpName, sidecarPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write sidecar file %s: %w", sidecarPath, err)
	}

	logger.Debug("wrote sidecar file %s (%d bytes)", sidecarPath, len(data))
	return nil
}
