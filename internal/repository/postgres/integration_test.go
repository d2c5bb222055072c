//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/sharekeeper/internal/model"
	repo "github.com/dtroode/sharekeeper/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "sharekeeper_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/sharekeeper_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestSnapshotRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()

	var conn *repo.Connection
	var err error
	require.Eventually(t, func() bool {
		conn, err = repo.NewConnection(ctx, dsn)
		return err == nil
	}, 30*time.Second, time.Second)
	t.Cleanup(func() { _ = conn.Close() })

	store := repo.NewSnapshotRepository(conn.DB)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, empty.Users)

	now := time.Now().UTC().Truncate(time.Microsecond)
	snap := model.NewSnapshot()
	snap.Users["1"] = &model.User{ID: "1", Username: "alice", RegisteredAt: now, LastActiveAt: now, Verified: true, OwnedShares: []model.ShareID{"s1"}, ReceivedShares: []model.ShareID{}}
	snap.Users["2"] = &model.User{ID: "2", Username: "bob", RegisteredAt: now, LastActiveAt: now, OwnedShares: []model.ShareID{}, ReceivedShares: []model.ShareID{"s1"}}
	snap.Shares["s1"] = &model.Share{
		ID: "s1", OwnerID: "1", FilePath: "saved_files/users/1/photos/v.jpg", Category: model.CategoryPhoto,
		FileName: "v.jpg", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour), AccessCount: 1, AccessedBy: []model.UserID{"2"},
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Users, 2)
	require.Len(t, got.Shares, 1)
	require.Equal(t, []model.ShareID{"s1"}, got.Users["2"].ReceivedShares)
	require.True(t, got.Shares["s1"].ExpiresAt.Equal(snap.Shares["s1"].ExpiresAt))

	delete(snap.Shares, "s1")
	snap.Users["1"].OwnedShares = []model.ShareID{}
	snap.Users["2"].ReceivedShares = []model.ShareID{}
	require.NoError(t, store.Save(ctx, snap))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got.Shares)
	require.Empty(t, got.Users["1"].OwnedShares)
}
