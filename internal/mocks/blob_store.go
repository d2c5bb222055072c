package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/sharekeeper/internal/model"
)

var _ model.BlobStore = (*BlobStore)(nil)

// BlobStore mocks model.BlobStore.
type BlobStore struct {
	mock.Mock
}

func (m *BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *BlobStore) Copy(ctx context.Context, src, dst string) error {
	args := m.Called(ctx, src, dst)
	return args.Error(0)
}

func (m *BlobStore) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *BlobStore) List(ctx context.Context, dir string) ([]model.FileInfo, error) {
	args := m.Called(ctx, dir)
	files, _ := args.Get(0).([]model.FileInfo)
	return files, args.Error(1)
}

func (m *BlobStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}
