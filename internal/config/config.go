package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	RegistryBackendFile     = "file"
	RegistryBackendPostgres = "postgres"

	StorageBackendLocal = "local"
	StorageBackendMinio = "minio"
)

// Config contains process configuration parameters.
type Config struct {
	LogLevel     int      `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat    string   `env:"LOG_FORMAT" envDefault:"text"`
	FilesPerPage int      `env:"FILES_PER_PAGE" envDefault:"5"`
	Registry     Registry `envPrefix:"REGISTRY_"`
	Storage      Storage  `envPrefix:"STORAGE_"`
	Minio        Minio    `envPrefix:"MINIO_"`
	Database     Database `envPrefix:"DATABASE_"`
	Auth         Auth     `envPrefix:"AUTH_"`
	Ops          Ops      `envPrefix:"OPS_"`
}

// Registry contains share registry parameters.
type Registry struct {
	Backend       string        `env:"BACKEND" envDefault:"file"`
	DataDir       string        `env:"DATA_DIR" envDefault:"data"`
	ShareTTL      time.Duration `env:"SHARE_TTL" envDefault:"24h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	RepairOnStart bool          `env:"REPAIR_ON_START" envDefault:"true"`
	StatTimeout   time.Duration `env:"STAT_TIMEOUT" envDefault:"5s"`
}

// Storage contains stored file layout parameters.
type Storage struct {
	Backend    string `env:"BACKEND" envDefault:"local"`
	OwnerRoot  string `env:"OWNER_ROOT" envDefault:"saved_files/users"`
	LegacyRoot string `env:"LEGACY_ROOT" envDefault:"saved_files"`
}

// Minio contains object storage parameters.
type Minio struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"sharekeeper-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"sharekeeper-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"sharekeeper-files"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Database contains database connection parameters.
type Database struct {
	DSN string `env:"DSN"`
}

// Auth contains user verification parameters.
type Auth struct {
	Secret   string   `env:"SECRET"`
	AdminIDs []string `env:"ADMIN_IDS" envSeparator:","`
}

// Ops contains operational HTTP server parameters.
type Ops struct {
	Addr               string `env:"ADDR" envDefault:"127.0.0.1:9090"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	// TokenSecret signs bearer tokens for the user data routes. Empty leaves
	// those routes unmounted.
	TokenSecret string `env:"TOKEN_SECRET"`
}

// MinTokenSecretLen is the shortest accepted OPS_TOKEN_SECRET.
const MinTokenSecretLen = 32

// NewConfig loads configuration from environment variables and validates it.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Registry.Backend {
	case RegistryBackendFile:
		if c.Registry.DataDir == "" {
			errs = append(errs, errors.New("REGISTRY_DATA_DIR must not be empty"))
		}
	case RegistryBackendPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres registry backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REGISTRY_BACKEND %q", c.Registry.Backend))
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET_NAME are required for the minio storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	if c.Storage.OwnerRoot == "" || c.Storage.LegacyRoot == "" {
		errs = append(errs, errors.New("STORAGE_OWNER_ROOT and STORAGE_LEGACY_ROOT must not be empty"))
	}
	if c.Registry.ShareTTL <= 0 {
		errs = append(errs, errors.New("REGISTRY_SHARE_TTL must be positive"))
	}
	if c.Registry.SweepInterval <= 0 {
		errs = append(errs, errors.New("REGISTRY_SWEEP_INTERVAL must be positive"))
	}
	if c.Registry.StatTimeout <= 0 {
		errs = append(errs, errors.New("REGISTRY_STAT_TIMEOUT must be positive"))
	}
	if c.Ops.TokenSecret != "" && len(c.Ops.TokenSecret) < MinTokenSecretLen {
		errs = append(errs, fmt.Errorf("OPS_TOKEN_SECRET must be at least %d bytes", MinTokenSecretLen))
	}
	if c.FilesPerPage <= 0 {
		errs = append(errs, errors.New("FILES_PER_PAGE must be positive"))
	}

	return errors.Join(errs...)
}
