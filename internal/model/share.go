package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultShareTTL is used when a share is created without an explicit TTL.
const DefaultShareTTL = 24 * time.Hour

// ShareID is the opaque token addressing a share.
type ShareID string

// NewShareID returns a fresh random share token.
func NewShareID() ShareID {
	return ShareID(uuid.NewString())
}

// Share is a time-limited grant of read access to one stored file.
type Share struct {
	ID          ShareID   `json:"id"`
	OwnerID     UserID    `json:"owner_id"`
	FilePath    string    `json:"file_path"`
	Category    Category  `json:"file_category"`
	FileName    string    `json:"file_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	AccessCount int       `json:"access_count"`
	AccessedBy  []UserID  `json:"accessed_by"`
}

// Expired reports whether the share is past its TTL at now.
func (s *Share) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Clone returns a copy that shares no slices with s.
func (s *Share) Clone() Share {
	c := *s
	c.AccessedBy = slices.Clone(s.AccessedBy)
	if c.AccessedBy == nil {
		c.AccessedBy = []UserID{}
	}
	return c
}
