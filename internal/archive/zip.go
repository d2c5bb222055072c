// Package archive bundles stored files into a single download.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/dtroode/sharekeeper/internal/model"
)

// Build writes a zip archive of the files at paths to w and returns how many
// were added. Files missing from the store are skipped. Entries with the same
// basename get a numeric suffix.
func Build(ctx context.Context, blobs model.BlobStore, paths []string, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	used := make(map[string]struct{}, len(paths))

	added := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		ok, err := addFile(ctx, zw, blobs, p, entryName(used, p))
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}

	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("failed to finish archive: %w", err)
	}
	return added, nil
}

func addFile(ctx context.Context, zw *zip.Writer, blobs model.BlobStore, p, name string) (bool, error) {
	rc, err := blobs.Open(ctx, p)
	if errors.Is(err, model.ErrFileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer rc.Close()

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return false, fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(fw, rc); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return true, nil
}

func entryName(used map[string]struct{}, p string) string {
	name := path.Base(strings.ReplaceAll(p, `\`, "/"))
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		if _, ok := used[candidate]; !ok {
			break
		}
		candidate = base + "_" + strconv.Itoa(i) + ext
	}
	used[candidate] = struct{}{}
	return candidate
}
