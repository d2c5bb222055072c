package model

import "context"

// Snapshot holds the complete registry state: users and shares keyed by id.
type Snapshot struct {
	Users  map[UserID]*User
	Shares map[ShareID]*Share
}

// NewSnapshot returns an empty snapshot with allocated maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Users:  make(map[UserID]*User),
		Shares: make(map[ShareID]*Share),
	}
}

// RegistryStore persists full registry snapshots.
//
// Save replaces the stored state atomically. The snapshot passed to Save is
// only valid for the duration of the call.
type RegistryStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
