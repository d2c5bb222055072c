// Package memory provides an in-process RegistryStore for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sync"

	"github.com/dtroode/sharekeeper/internal/model"
)

var _ model.RegistryStore = (*Store)(nil)

// Store keeps a deep copy of the last saved snapshot.
type Store struct {
	mu       sync.Mutex
	snapshot model.Snapshot
	saves    int
	saveErr  error
}

// New creates an empty Store.
func New() *Store {
	return &Store{snapshot: model.NewSnapshot()}
}

// NewWith creates a Store preloaded with a copy of snapshot.
func NewWith(snapshot model.Snapshot) *Store {
	return &Store{snapshot: clone(snapshot)}
}

// Load returns a copy of the stored snapshot.
func (s *Store) Load(_ context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.snapshot), nil
}

// Save replaces the stored snapshot with a copy of snapshot, unless a save
// failure was injected with FailSaves.
func (s *Store) Save(_ context.Context, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = clone(snapshot)
	s.saves++
	return nil
}

// FailSaves makes subsequent saves return err; nil restores normal saving.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Saves returns how many snapshots were saved successfully.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Snapshot returns a copy of the last saved snapshot.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.snapshot)
}

func clone(src model.Snapshot) model.Snapshot {
	dst := model.NewSnapshot()
	for id, u := range src.Users {
		c := u.Clone()
		dst.Users[id] = &c
	}
	for id, sh := range src.Shares {
		c := sh.Clone()
		dst.Shares[id] = &c
	}
	return dst
}
