package service

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/repository/memory"
	"github.com/dtroode/sharekeeper/internal/resolver"
	"github.com/dtroode/sharekeeper/internal/storage/local"
	"github.com/dtroode/sharekeeper/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	root   string
	layout resolver.Layout
	store  *memory.Store
	clock  *fakeClock
	reg    *Registry
	users  *UserDirectory
	shares *ShareLedger
}

func newFixture(t *testing.T, opts ...func(*RegistryOptions)) *fixture {
	t.Helper()

	root := filepath.ToSlash(t.TempDir())
	f := &fixture{
		root: root,
		layout: resolver.Layout{
			OwnerRoot:  path.Join(root, "saved_files", "users"),
			LegacyRoot: path.Join(root, "saved_files"),
		},
		store: memory.New(),
		clock: &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
	}

	o := RegistryOptions{
		Secret:   "open-sesame",
		AdminIDs: []model.UserID{"42"},
		Now:      f.clock.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	f.reg = NewRegistry(f.store, local.New(), f.layout, testutil.MakeNoopLogger(), o)
	require.NoError(t, f.reg.Load(context.Background()))
	f.users = f.reg.Users()
	f.shares = f.reg.Shares()
	return f
}

func (f *fixture) writeFile(t *testing.T, p, content string) {
	t.Helper()
	native := filepath.FromSlash(p)
	require.NoError(t, os.MkdirAll(filepath.Dir(native), 0o755))
	require.NoError(t, os.WriteFile(native, []byte(content), 0o644))
}

func (f *fixture) removeFile(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.FromSlash(p)))
}

func (f *fixture) register(t *testing.T, id model.UserID, username string) {
	t.Helper()
	_, err := f.users.Register(context.Background(), id, username, username)
	require.NoError(t, err)
}

// ownerFile stores a file in the owner's photo directory and returns its path.
func (f *fixture) ownerFile(t *testing.T, owner model.UserID, name string) string {
	t.Helper()
	p := f.layout.CurrentPath(owner, model.CategoryPhoto, name)
	f.writeFile(t, p, "bytes of "+name)
	return p
}

func (f *fixture) user(t *testing.T, id model.UserID) model.User {
	t.Helper()
	u, err := f.users.Get(id)
	require.NoError(t, err)
	return u
}
