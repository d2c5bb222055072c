package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category classifies a stored file.
type Category string

const (
	// CategoryPhoto is an image file.
	CategoryPhoto Category = "photo"
	// CategoryVideo is a video file.
	CategoryVideo Category = "video"
	// CategoryDocument is anything else.
	CategoryDocument Category = "document"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryPhoto, CategoryVideo, CategoryDocument}

var (
	photoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPhoto, CategoryVideo, CategoryDocument:
		return true
	}
	return false
}

// Dir returns the directory name used for the category on disk.
func (c Category) Dir() string {
	return string(c) + "s"
}

// ParseCategory accepts both the singular and the directory (plural) form.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !c.Valid() {
		return "", fmt.Errorf("unknown file category %q", s)
	}
	return c, nil
}

// CategoryFromFilename infers the category from the file extension.
func CategoryFromFilename(name string) Category {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range photoExtensions {
		if ext == e {
			return CategoryPhoto
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return CategoryVideo
		}
	}
	return CategoryDocument
}
