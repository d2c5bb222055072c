package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/sharekeeper/internal/mocks"
	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/repository/memory"
	"github.com/dtroode/sharekeeper/internal/resolver"
	"github.com/dtroode/sharekeeper/internal/storage/local"
	"github.com/dtroode/sharekeeper/internal/testutil"
)

func TestRegistry_LoadNormalizesIndices(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	snap := model.NewSnapshot()
	snap.Users["1"] = &model.User{ID: "1", Username: "alice", OwnedShares: []model.ShareID{"s1", "ghost", "s1"}, ReceivedShares: []model.ShareID{"s1"}}
	snap.Users["2"] = &model.User{ID: "2", Username: "bob", ReceivedShares: []model.ShareID{"s1", "ghost", "s1"}}
	snap.Shares["s1"] = &model.Share{ID: "s1", OwnerID: "1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	snap.Shares["s2"] = &model.Share{ID: "s2", OwnerID: "1", CreatedAt: now.Add(time.Minute), ExpiresAt: now.Add(time.Hour)}
	snap.Shares["s3"] = &model.Share{ID: "s3", OwnerID: "9", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	store := memory.NewWith(snap)
	reg := NewRegistry(store, local.New(), resolver.Layout{}, testutil.MakeNoopLogger(), RegistryOptions{})
	require.NoError(t, reg.Load(ctx))

	alice, err := reg.Users().Get("1")
	require.NoError(t, err)
	assert.Equal(t, []model.ShareID{"s1", "s2"}, alice.OwnedShares)
	assert.Empty(t, alice.ReceivedShares)

	bob, err := reg.Users().Get("2")
	require.NoError(t, err)
	assert.Equal(t, []model.ShareID{"s1"}, bob.ReceivedShares)

	assert.Equal(t, RegistryStats{Users: 2, Shares: 2}, reg.Stats())
	assert.Equal(t, 1, store.Saves())
	assert.NotContains(t, store.Snapshot().Shares, model.ShareID("s3"))
}

func TestRegistry_LoadConsistentStateDoesNotSave(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	snap := model.NewSnapshot()
	snap.Users["1"] = &model.User{ID: "1", Verified: true, OwnedShares: []model.ShareID{"s1"}, ReceivedShares: []model.ShareID{}}
	snap.Users["2"] = &model.User{ID: "2", OwnedShares: []model.ShareID{}, ReceivedShares: []model.ShareID{"s1"}}
	snap.Shares["s1"] = &model.Share{ID: "s1", OwnerID: "1", CreatedAt: now, ExpiresAt: now.Add(time.Hour), AccessedBy: []model.UserID{"2"}}

	store := memory.NewWith(snap)
	reg := NewRegistry(store, local.New(), resolver.Layout{}, testutil.MakeNoopLogger(), RegistryOptions{})
	require.NoError(t, reg.Load(ctx))

	assert.Zero(t, store.Saves())
	assert.Equal(t, RegistryStats{Users: 2, VerifiedUsers: 1, Shares: 1}, reg.Stats())
	assert.True(t, reg.Users().IsVerified("1"))
}

func TestRegistry_LoadError(t *testing.T) {
	store := &mocks.RegistryStore{}
	store.On("Load", mock.Anything).Return(model.Snapshot{}, errors.New("connection refused"))

	reg := NewRegistry(store, local.New(), resolver.Layout{}, testutil.MakeNoopLogger(), RegistryOptions{})
	err := reg.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
	assert.Equal(t, RegistryStats{}, reg.Stats())
	store.AssertExpectations(t)
}

func TestRegistry_LoadEmptySnapshot(t *testing.T) {
	store := &mocks.RegistryStore{}
	store.On("Load", mock.Anything).Return(model.Snapshot{}, nil)

	reg := NewRegistry(store, local.New(), resolver.Layout{}, testutil.MakeNoopLogger(), RegistryOptions{})
	require.NoError(t, reg.Load(context.Background()))

	store.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	_, err := reg.Users().Register(context.Background(), "1", "alice", "Alice")
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestRegistry_SaveFailureWrapsPersistence(t *testing.T) {
	store := &mocks.RegistryStore{}
	store.On("Load", mock.Anything).Return(model.NewSnapshot(), nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("no space left on device"))

	reg := NewRegistry(store, local.New(), resolver.Layout{}, testutil.MakeNoopLogger(), RegistryOptions{})
	require.NoError(t, reg.Load(context.Background()))

	_, err := reg.Users().Register(context.Background(), "1", "alice", "Alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPersistence))
	assert.Contains(t, err.Error(), "no space left on device")
	assert.Equal(t, 1, reg.Stats().Users)
}

func TestRegistry_DefaultOptions(t *testing.T) {
	reg := NewRegistry(memory.New(), local.New(), resolver.Layout{}, testutil.MakeNoopLogger(), RegistryOptions{})

	assert.Equal(t, model.DefaultShareTTL, reg.opts.DefaultTTL)
	assert.Equal(t, defaultStatTimeout, reg.opts.StatTimeout)
	assert.NotNil(t, reg.opts.Now)
	assert.NotNil(t, reg.Resolver())
}
