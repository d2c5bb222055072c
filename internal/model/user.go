package model

import (
	"slices"
	"time"
)

// UserID is the stable external identifier of a chat user.
type UserID string

// User represents a registered chat user with its share back-references.
type User struct {
	ID             UserID    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	RegisteredAt   time.Time `json:"registered_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
	Verified       bool      `json:"verified"`
	OwnedShares    []ShareID `json:"owned_shares"`
	ReceivedShares []ShareID `json:"received_shares"`
}

// Clone returns a copy that shares no slices with u.
func (u *User) Clone() User {
	c := *u
	c.OwnedShares = slices.Clone(u.OwnedShares)
	c.ReceivedShares = slices.Clone(u.ReceivedShares)
	if c.OwnedShares == nil {
		c.OwnedShares = []ShareID{}
	}
	if c.ReceivedShares == nil {
		c.ReceivedShares = []ShareID{}
	}
	return c
}
