package model

import (
	"context"
	"io"
	"time"
)

// FileInfo describes a stored file as reported by a BlobStore.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// BlobStore is the byte store holding uploaded files. Paths are slash-separated.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	Copy(ctx context.Context, src, dst string) error
	Remove(ctx context.Context, path string) error
	List(ctx context.Context, dir string) ([]FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
