// Package local implements model.BlobStore on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dtroode/sharekeeper/internal/model"
)

const tmpSuffix = ".tmp"

var _ model.BlobStore = (*Store)(nil)

// Store is a filesystem blob store. Slash-separated paths are converted to
// OS paths and used as given, relative paths resolve against the working
// directory.
type Store struct{}

// New creates a local filesystem Store.
func New() *Store {
	return &Store{}
}

// Exists reports whether a regular file exists at p.
func (s *Store) Exists(_ context.Context, p string) (bool, error) {
	info, err := os.Stat(filepath.FromSlash(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return info.Mode().IsRegular(), nil
}

// Copy copies src to dst, creating parent directories. The destination
// appears atomically and keeps the source modification time.
func (s *Store) Copy(_ context.Context, src, dst string) error {
	srcPath := filepath.FromSlash(src)
	dstPath := filepath.FromSlash(dst)

	in, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("failed to open %s: %w", src, model.ErrFileNotFound)
		}
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	tmpPath := dstPath + tmpSuffix
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename into place: %w", err)
	}

	if err := os.Chtimes(dstPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to preserve modification time: %w", err)
	}

	return nil
}

// Remove deletes the file at p. A missing file is not an error.
func (s *Store) Remove(_ context.Context, p string) error {
	err := os.Remove(filepath.FromSlash(p))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

// List returns the regular files directly inside dir. A missing directory
// yields an empty list.
func (s *Store) List(_ context.Context, dir string) ([]model.FileInfo, error) {
	entries, err := os.ReadDir(filepath.FromSlash(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make([]model.FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, model.FileInfo{
			Path:    strings.TrimSuffix(filepath.ToSlash(dir), "/") + "/" + e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return files, nil
}

// Open opens the file at p for reading. The caller must close it.
func (s *Store) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.FromSlash(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open %s: %w", p, model.ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	return f, nil
}
