package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/resolver"
)

// RegistryOptions configures verification and share lifetimes.
type RegistryOptions struct {
	// Secret is the shared verification secret. Empty disables secret verification.
	Secret string
	// AdminIDs are verified on any Verify call regardless of the presented secret.
	AdminIDs []model.UserID
	// DefaultTTL applies to shares created with a non-positive TTL.
	DefaultTTL time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
	// StatTimeout bounds each storage lookup made while the registry is
	// locked. Defaults to defaultStatTimeout.
	StatTimeout time.Duration
}

const defaultStatTimeout = 5 * time.Second

// RegistryStats is a point-in-time summary of the registry.
type RegistryStats struct {
	Users         int `json:"users"`
	VerifiedUsers int `json:"verified_users"`
	Shares        int `json:"shares"`
}

// Registry owns users and shares in memory and writes the full state to its
// store after every mutation. All mutations run under one write lock.
type Registry struct {
	mu     sync.RWMutex
	users  map[model.UserID]*model.User
	shares map[model.ShareID]*model.Share

	store    model.RegistryStore
	blobs    model.BlobStore
	resolver *resolver.Resolver
	logger   *logger.Logger
	opts     RegistryOptions
}

func NewRegistry(
	store model.RegistryStore,
	blobs model.BlobStore,
	layout resolver.Layout,
	logger *logger.Logger,
	opts RegistryOptions,
) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = model.DefaultShareTTL
	}
	if opts.StatTimeout <= 0 {
		opts.StatTimeout = defaultStatTimeout
	}

	return &Registry{
		users:    make(map[model.UserID]*model.User),
		shares:   make(map[model.ShareID]*model.Share),
		store:    store,
		blobs:    blobs,
		resolver: resolver.New(blobs, layout),
		logger:   logger,
		opts:     opts,
	}
}

// Users returns the user operations of the registry.
func (r *Registry) Users() *UserDirectory {
	return &UserDirectory{r: r}
}

// Shares returns the share operations of the registry.
func (r *Registry) Shares() *ShareLedger {
	return &ShareLedger{r: r}
}

// Resolver returns the path resolver the registry validates files with.
func (r *Registry) Resolver() *resolver.Resolver {
	return r.resolver
}

// Load replaces the in-memory state with the stored snapshot and repairs
// broken cross-references between users and shares.
func (r *Registry) Load(ctx context.Context) error {
	snapshot, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if snapshot.Users == nil {
		snapshot.Users = make(map[model.UserID]*model.User)
	}
	if snapshot.Shares == nil {
		snapshot.Shares = make(map[model.ShareID]*model.Share)
	}

	fixes := normalize(snapshot)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = snapshot.Users
	r.shares = snapshot.Shares

	r.logger.Info("Registry: loaded",
		"users", len(r.users),
		"shares", len(r.shares),
	)

	if fixes > 0 {
		r.logger.Warn("Registry: repaired inconsistent indices", "fixes", fixes)
		return r.save(ctx)
	}
	return nil
}

// Stats counts users and shares.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Users:  len(r.users),
		Shares: len(r.shares),
	}
	for _, u := range r.users {
		if u.Verified {
			stats.VerifiedUsers++
		}
	}
	return stats
}

func (r *Registry) now() time.Time {
	return r.opts.Now().UTC()
}

// save writes the full state. Must be called with the write lock held.
// On failure the in-memory state is kept and an ErrPersistence error returned.
func (r *Registry) save(ctx context.Context) error {
	err := r.store.Save(ctx, model.Snapshot{
		Users:  r.users,
		Shares: r.shares,
	})
	if err != nil {
		r.logger.Error("Registry: failed to persist state", "error", err)
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	return nil
}

// removeShare deletes a share and every reference to it. Must be called
// with the write lock held.
func (r *Registry) removeShare(id model.ShareID) {
	share, ok := r.shares[id]
	if !ok {
		return
	}
	delete(r.shares, id)

	if owner, ok := r.users[share.OwnerID]; ok {
		owner.OwnedShares = removeID(owner.OwnedShares, id)
	}
	for _, u := range r.users {
		u.ReceivedShares = removeID(u.ReceivedShares, id)
	}
}

func removeID[T comparable](ids []T, id T) []T {
	return slices.DeleteFunc(ids, func(v T) bool { return v == id })
}

func appendUnique[T comparable](ids []T, id T) []T {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// normalize makes user lists agree with the share map and returns the number
// of corrections made.
func normalize(snapshot model.Snapshot) int {
	fixes := 0

	for id, u := range snapshot.Users {
		if u == nil {
			delete(snapshot.Users, id)
			fixes++
		}
	}

	for id, share := range snapshot.Shares {
		if share == nil {
			delete(snapshot.Shares, id)
			fixes++
			continue
		}
		share.ID = id
		if _, ok := snapshot.Users[share.OwnerID]; !ok {
			delete(snapshot.Shares, id)
			fixes++
			continue
		}
		if share.AccessedBy == nil {
			share.AccessedBy = []model.UserID{}
		}
	}

	for id, u := range snapshot.Users {
		u.ID = id

		owned := make([]model.ShareID, 0, len(u.OwnedShares))
		for _, sid := range u.OwnedShares {
			s, ok := snapshot.Shares[sid]
			if !ok || s.OwnerID != id || slices.Contains(owned, sid) {
				fixes++
				continue
			}
			owned = append(owned, sid)
		}
		u.OwnedShares = owned

		received := make([]model.ShareID, 0, len(u.ReceivedShares))
		for _, sid := range u.ReceivedShares {
			s, ok := snapshot.Shares[sid]
			if !ok || s.OwnerID == id || slices.Contains(received, sid) {
				fixes++
				continue
			}
			received = append(received, sid)
		}
		u.ReceivedShares = received
	}

	orphans := make([]*model.Share, 0)
	for _, s := range snapshot.Shares {
		if !slices.Contains(snapshot.Users[s.OwnerID].OwnedShares, s.ID) {
			orphans = append(orphans, s)
		}
	}
	slices.SortFunc(orphans, func(a, b *model.Share) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for _, s := range orphans {
		owner := snapshot.Users[s.OwnerID]
		owner.OwnedShares = append(owner.OwnedShares, s.ID)
		fixes++
	}

	return fixes
}

// statContext limits a storage lookup made under the write lock so a slow
// backend cannot hold the registry indefinitely.
func (r *Registry) statContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opts.StatTimeout)
}
