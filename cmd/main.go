package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dtroode/sharekeeper/internal/config"
	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/repository/jsonfile"
	"github.com/dtroode/sharekeeper/internal/repository/postgres"
	"github.com/dtroode/sharekeeper/internal/resolver"
	"github.com/dtroode/sharekeeper/internal/server"
	"github.com/dtroode/sharekeeper/internal/service"
	"github.com/dtroode/sharekeeper/internal/storage/local"
	storage "github.com/dtroode/sharekeeper/internal/storage/minio"
	"github.com/dtroode/sharekeeper/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	logAppVersion()

	pingers := make(map[string]server.Pinger)

	blobs, err := newBlobStore(ctx, cfg, pingers)
	if err != nil {
		logger.Fatal("failed to initialize file storage", "error", err)
	}

	store, closeStore, err := newRegistryStore(ctx, cfg, logger, pingers)
	if err != nil {
		logger.Fatal("failed to initialize registry storage", "error", err)
	}

	layout := resolver.Layout{
		OwnerRoot:  cfg.Storage.OwnerRoot,
		LegacyRoot: cfg.Storage.LegacyRoot,
	}

	adminIDs := make([]model.UserID, 0, len(cfg.Auth.AdminIDs))
	for _, id := range cfg.Auth.AdminIDs {
		adminIDs = append(adminIDs, model.UserID(id))
	}
	if cfg.Auth.Secret == "" {
		logger.Warn("AUTH_SECRET is empty, only administrators can be verified")
	}

	registry := service.NewRegistry(store, blobs, layout, logger, service.RegistryOptions{
		Secret:      cfg.Auth.Secret,
		AdminIDs:    adminIDs,
		DefaultTTL:  cfg.Registry.ShareTTL,
		StatTimeout: cfg.Registry.StatTimeout,
	})

	err = registry.Load(ctx)
	if errors.Is(err, model.ErrPersistence) {
		logger.Warn("registry loaded but repaired state was not persisted", "error", err)
	} else if err != nil {
		logger.Fatal("failed to load registry", "error", err)
	}

	shares := registry.Shares()
	files := service.NewFiles(blobs, layout, shares, cfg.FilesPerPage, logger)
	sweeper := service.NewSweeper(shares, cfg.Registry.SweepInterval, logger)

	if cfg.Registry.RepairOnStart {
		if _, err := sweeper.Repair(ctx); err != nil {
			logger.Error("startup repair failed", "error", err)
		}
	}
	sweeper.Start(ctx)

	deps := server.Deps{
		Stats:    registry,
		Files:    files,
		Blobs:    blobs,
		Shares:   shares,
		Pingers:  pingers,
		PageSize: cfg.FilesPerPage,
		Admins:   adminIDs,
	}
	if cfg.Ops.TokenSecret != "" {
		deps.Tokens = token.NewJWT(cfg.Ops.TokenSecret)
	} else {
		logger.Warn("OPS_TOKEN_SECRET is empty, user data routes are disabled")
	}

	opsServer := server.NewOpsServer(cfg.Ops.Addr, deps, logger)
	sl := server.NewSecurityLayer(cfg.Ops.EnableHTTPS, cfg.Ops.CertFileName, cfg.Ops.PrivateKeyFileName)

	err = server.Run(ctx, opsServer, sl, logger, 10*time.Second)
	sweeper.Stop()
	closeStore()
	if err != nil {
		logger.Fatal("ops server failed", "error", err)
	}

	logger.Info("shutdown complete")
}

func newBlobStore(ctx context.Context, cfg *config.Config, pingers map[string]server.Pinger) (model.BlobStore, error) {
	if cfg.Storage.Backend != config.StorageBackendMinio {
		return local.New(), nil
	}

	minioClient, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	client, err := storage.NewClient(ctx, minioClient, cfg.Minio.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage client: %w", err)
	}
	pingers["minio"] = client

	return client, nil
}

func newRegistryStore(
	ctx context.Context,
	cfg *config.Config,
	logger *logger.Logger,
	pingers map[string]server.Pinger,
) (model.RegistryStore, func(), error) {
	if cfg.Registry.Backend != config.RegistryBackendPostgres {
		store, err := jsonfile.New(cfg.Registry.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	pingers["postgres"] = conn

	return postgres.NewSnapshotRepository(conn.DB), func() {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}, nil
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
