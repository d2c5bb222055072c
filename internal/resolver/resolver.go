// Package resolver locates stored files across the per-owner storage layout
// and the legacy shared-directory layout.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dtroode/sharekeeper/internal/model"
)

// Layout describes where stored files live.
//
// Current layout: {OwnerRoot}/{owner}/{category dir}/{name}.
// Legacy layout:  {LegacyRoot}/{category dir}/{name}.
type Layout struct {
	OwnerRoot  string
	LegacyRoot string
}

// OwnerDir returns the directory holding an owner's files of one category.
func (l Layout) OwnerDir(owner model.UserID, category model.Category) string {
	return path.Join(toSlash(l.OwnerRoot), string(owner), category.Dir())
}

// CurrentPath returns the per-owner location of a file.
func (l Layout) CurrentPath(owner model.UserID, category model.Category, name string) string {
	return path.Join(l.OwnerDir(owner, category), name)
}

// LegacyPath returns the pre-migration shared location of a file.
func (l Layout) LegacyPath(category model.Category, name string) string {
	return path.Join(toSlash(l.LegacyRoot), category.Dir(), name)
}

// IsLegacy reports whether p is the legacy-layout location for its basename.
func (l Layout) IsLegacy(p string, category model.Category) bool {
	clean := path.Clean(toSlash(p))
	return clean == l.LegacyPath(category, path.Base(clean))
}

// Owns reports whether p lies inside the owner's directory tree.
func (l Layout) Owns(owner model.UserID, p string) bool {
	root := path.Join(toSlash(l.OwnerRoot), string(owner)) + "/"
	return strings.HasPrefix(path.Clean(toSlash(p)), root)
}

// Basename returns the last element of a slash- or OS-separated path.
func Basename(p string) string {
	return path.Base(toSlash(p))
}

// Clean returns the slash-separated shortest form of p.
func Clean(p string) string {
	return path.Clean(toSlash(p))
}

func toSlash(p string) string {
	return filepath.ToSlash(p)
}

// Resolver finds the current location of a stored file.
type Resolver struct {
	blobs  model.BlobStore
	layout Layout
}

// New creates a Resolver over the given blob store and layout.
func New(blobs model.BlobStore, layout Layout) *Resolver {
	return &Resolver{
		blobs:  blobs,
		layout: layout,
	}
}

// Layout returns the storage layout the resolver searches.
func (r *Resolver) Layout() Layout {
	return r.layout
}

// Candidates returns the locations checked for a file, in resolution order.
func (r *Resolver) Candidates(nominal string, owner model.UserID, category model.Category) []string {
	name := Basename(nominal)
	return []string{
		nominal,
		r.layout.CurrentPath(owner, category, name),
		r.layout.LegacyPath(category, name),
	}
}

// Resolve returns the first existing location of the file: the nominal path
// unchanged, then the per-owner path, then the legacy path. It never mutates
// anything. ErrFileNotFound is returned when no candidate exists; any other
// error means existence could not be determined.
func (r *Resolver) Resolve(ctx context.Context, nominal string, owner model.UserID, category model.Category) (string, error) {
	name := Basename(nominal)
	if nominal == "" || name == "." || name == "/" {
		return "", model.ErrFileNotFound
	}

	for _, candidate := range r.Candidates(nominal, owner, category) {
		ok, err := r.blobs.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}

	return "", model.ErrFileNotFound
}

// Exists reports whether p exists in the underlying blob store.
func (r *Resolver) Exists(ctx context.Context, p string) (bool, error) {
	ok, err := r.blobs.Exists(ctx, p)
	if errors.Is(err, model.ErrFileNotFound) {
		return false, nil
	}
	return ok, err
}
