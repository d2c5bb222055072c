// Package jsonfile persists registry snapshots as indented JSON documents,
// one for users and one for shares, replaced atomically on every save.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
)

const (
	// UsersFile is the users collection file name inside the data directory.
	UsersFile = "users.json"
	// SharesFile is the shares collection file name inside the data directory.
	SharesFile = "shares.json"
)

var _ model.RegistryStore = (*Store)(nil)

// Store keeps the registry in two JSON files under dir.
type Store struct {
	dir    string
	logger *logger.Logger
}

// New creates a Store in dir, creating the directory when needed.
func New(dir string, logger *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	return &Store{
		dir:    dir,
		logger: logger,
	}, nil
}

// Load reads both collections. A missing or corrupt file yields an empty
// collection; corrupt files are moved aside so the next save does not
// destroy them. Other read failures are returned.
func (s *Store) Load(_ context.Context) (model.Snapshot, error) {
	snapshot := model.NewSnapshot()

	ok, err := s.readCollection(UsersFile, &snapshot.Users)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !ok || snapshot.Users == nil {
		snapshot.Users = make(map[model.UserID]*model.User)
	}

	ok, err = s.readCollection(SharesFile, &snapshot.Shares)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !ok || snapshot.Shares == nil {
		snapshot.Shares = make(map[model.ShareID]*model.Share)
	}

	for id, u := range snapshot.Users {
		if u == nil {
			delete(snapshot.Users, id)
			continue
		}
		u.ID = id
	}
	for id, sh := range snapshot.Shares {
		if sh == nil {
			delete(snapshot.Shares, id)
			continue
		}
		sh.ID = id
	}

	s.logger.Info("Registry store: loaded",
		"users", len(snapshot.Users),
		"shares", len(snapshot.Shares),
		"dir", s.dir)

	return snapshot, nil
}

// Save atomically replaces both collection files. Shares are written first,
// the registry normalizes dangling user references on the next load.
func (s *Store) Save(_ context.Context, snapshot model.Snapshot) error {
	if err := s.writeCollection(SharesFile, snapshot.Shares); err != nil {
		return err
	}
	if err := s.writeCollection(UsersFile, snapshot.Users); err != nil {
		return err
	}
	return nil
}

// readCollection decodes the named file into dst and reports whether dst
// holds usable data.
func (s *Store) readCollection(name string, dst any) (bool, error) {
	p := filepath.Join(s.dir, name)

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", p, err)
	}
	if len(data) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", p, time.Now().Unix())
		s.logger.Error("Registry store: corrupt collection, starting empty",
			"path", p,
			"moved_to", aside,
			"error", err.Error())
		if rerr := os.Rename(p, aside); rerr != nil {
			s.logger.Error("Registry store: failed to move corrupt collection aside",
				"path", p,
				"error", rerr.Error())
		}
		return false, nil
	}

	return true, nil
}

func (s *Store) writeCollection(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	p := filepath.Join(s.dir, name)
	tmpPath := p + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s into place: %w", name, err)
	}

	return nil
}
