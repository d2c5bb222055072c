package service

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/paginate"
	"github.com/dtroode/sharekeeper/internal/resolver"
)

// Files is the catalog of an owner's stored files.
type Files struct {
	blobs   model.BlobStore
	layout  resolver.Layout
	shares  *ShareLedger
	perPage int
	logger  *logger.Logger
}

func NewFiles(
	blobs model.BlobStore,
	layout resolver.Layout,
	shares *ShareLedger,
	perPage int,
	logger *logger.Logger,
) *Files {
	return &Files{
		blobs:   blobs,
		layout:  layout,
		shares:  shares,
		perPage: perPage,
		logger:  logger,
	}
}

// List returns the owner's files of category, newest-modified first. An
// empty category lists all categories.
func (f *Files) List(ctx context.Context, owner model.UserID, category model.Category) ([]model.FileInfo, error) {
	categories := model.Categories
	if category != "" {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown file category %q", category)
		}
		categories = []model.Category{category}
	}

	files := make([]model.FileInfo, 0)
	for _, c := range categories {
		listed, err := f.blobs.List(ctx, f.layout.OwnerDir(owner, c))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", c.Dir(), err)
		}
		files = append(files, listed...)
	}

	slices.SortStableFunc(files, func(a, b model.FileInfo) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})

	return files, nil
}

// Page returns one page of List and the total page count.
func (f *Files) Page(ctx context.Context, owner model.UserID, category model.Category, page int) ([]model.FileInfo, int, error) {
	files, err := f.List(ctx, owner, category)
	if err != nil {
		return nil, 0, err
	}
	items, total := paginate.Paginate(files, page, f.perPage)
	return items, total, nil
}

// Delete removes one of the owner's files and every share naming it. It
// returns the number of purged shares.
func (f *Files) Delete(ctx context.Context, owner model.UserID, p string) (int, error) {
	if !f.layout.Owns(owner, p) {
		return 0, model.ErrUnauthorized
	}

	if err := f.blobs.Remove(ctx, p); err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", p, err)
	}
	f.logger.Info("Files: file deleted", "user_id", owner, "path", p)

	purged, err := f.shares.PurgeByFile(ctx, p)
	if err != nil {
		return purged, fmt.Errorf("failed to purge shares: %w", err)
	}
	return purged, nil
}

// Destination picks a free path in the owner's directory for an upload
// named filename, together with its category.
func (f *Files) Destination(ctx context.Context, owner model.UserID, filename string) (string, model.Category, error) {
	category := model.CategoryFromFilename(filename)
	dir := f.layout.OwnerDir(owner, category)

	existing, err := f.blobs.List(ctx, dir)
	if err != nil {
		return "", "", fmt.Errorf("failed to list %s: %w", dir, err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, fi := range existing {
		taken[resolver.Basename(fi.Path)] = struct{}{}
	}

	name := UniqueName(SanitizeFilename(filename), func(n string) bool {
		_, ok := taken[n]
		return ok
	})

	return path.Join(dir, name), category, nil
}

// SanitizeFilename strips directories and characters unsafe in file names.
func SanitizeFilename(name string) string {
	name = resolver.Basename(strings.ReplaceAll(name, `\`, "/"))

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)

	cleaned = strings.Trim(cleaned, " .")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// UniqueName returns name, or name with a "_N" suffix before the extension
// when taken reports it is in use.
func UniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i) + ext
		if !taken(candidate) {
			return candidate
		}
	}
}
