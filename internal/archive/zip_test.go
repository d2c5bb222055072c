package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/sharekeeper/internal/mocks"
	"github.com/dtroode/sharekeeper/internal/storage/local"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return filepath.ToSlash(p)
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = string(body)
	}
	return got
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "photos/a.jpg", "aaa")
	b := writeFile(t, dir, "docs/b.pdf", "bbb")
	dup := writeFile(t, dir, "other/a.jpg", "second a")
	missing := filepath.ToSlash(filepath.Join(dir, "photos/missing.jpg"))

	var buf bytes.Buffer
	n, err := Build(context.Background(), local.New(), []string{a, missing, b, dup}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, map[string]string{
		"a.jpg":   "aaa",
		"b.pdf":   "bbb",
		"a_1.jpg": "second a",
	}, readArchive(t, buf.Bytes()))
}

func TestBuild_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Build(context.Background(), local.New(), nil, &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, readArchive(t, buf.Bytes()))
}

func TestBuild_StorageError(t *testing.T) {
	blobs := &mocks.BlobStore{}
	blobs.On("Open", mock.Anything, "x.jpg").Return(nil, errors.New("connection reset"))

	var buf bytes.Buffer
	_, err := Build(context.Background(), blobs, []string{"x.jpg"}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := Build(ctx, local.New(), []string{"x.jpg"}, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}
