package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/filemanager/pkg/filemanager"
	"github.com/tendant/filemanager/pkg/filemanager/repo/memory"
	repopg "github.com/tendant/filemanager/pkg/filemanager/repo/postgres"
	fsstorage "github.com/tendant/filemanager/pkg/filemanager/storage/fs"
	gcsstorage "github.com/tendant/filemanager/pkg/filemanager/storage/gcs"
	memorystorage "github.com/tendant/filemanager/pkg/filemanager/storage/memory"
	miniostorage "github.com/tendant/filemanager/pkg/filemanager/storage/minio"
	s3storage "github.com/tendant/filemanager/pkg/filemanager/storage/s3"
)

// Storage drivers
const (
	DriverMemory = "memory"
	DriverS3     = "s3"
	DriverMinio  = "minio"
	DriverGCS    = "gcs"
	DriverFS     = "fs"
)

// maxPresignTTL is the longest lifetime S3 and GCS accept for signed URLs
const maxPresignTTL = 7 * 24 * time.Hour

// Config holds the process configuration. Values come from the
// environment, optionally on top of the file named by CONFIG_FILE.
type Config struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// DatabaseURL selects PostgreSQL; empty or "memory" uses the in-memory store
	DatabaseURL     string `yaml:"database_url" env:"DATABASE_URL"`
	BootstrapSchema bool   `yaml:"db_bootstrap_schema" env:"DB_BOOTSTRAP_SCHEMA" env-default:"false"`

	// MemorySeedUsers lists users created in the in-memory repository at
	// startup, as "Full Name <email>" entries. Ids follow the list order.
	MemorySeedUsers []string `yaml:"memory_seed_users" env:"MEMORY_SEED_USERS" env-separator:";"`

	StorageDriver string    `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"memory"`
	S3            S3Config  `yaml:"s3"`
	GCS           GCSConfig `yaml:"gcs"`
	FS            FSConfig  `yaml:"fs"`

	PresignTTL      time.Duration `yaml:"presign_ttl" env:"PRESIGN_TTL" env-default:"1h"`
	MaxFileSize     int64         `yaml:"max_file_size" env:"MAX_FILE_SIZE" env-default:"209715200"`
	MaxBatchSize    int64         `yaml:"max_batch_size" env:"MAX_BATCH_SIZE" env-default:"0"`
	MultipartMemory int64         `yaml:"multipart_memory" env:"MULTIPART_MEMORY" env-default:"33554432"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`

	// ReconcileSchedule is a cron spec; empty disables the scheduled report
	ReconcileSchedule string `yaml:"reconcile_schedule" env:"RECONCILE_SCHEDULE"`
}

// S3Config configures the s3 and minio drivers
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET_NAME"`
	Region          string `yaml:"region" env:"S3_REGION_NAME" env-default:"us-east-1"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"false"`
	UseSSL          bool   `yaml:"use_ssl" env:"S3_USE_SSL" env-default:"true"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET" env-default:"false"`
}

// GCSConfig configures the gcs driver
type GCSConfig struct {
	Bucket           string `yaml:"bucket" env:"GCS_BUCKET_NAME"`
	CredentialsFile  string `yaml:"credentials_file" env:"GCS_CREDENTIALS_FILE"`
	SignerEmail      string `yaml:"signer_email" env:"GCS_SIGNER_EMAIL"`
	SignerPrivateKey string `yaml:"signer_private_key" env:"GCS_SIGNER_PRIVATE_KEY"`
}

// FSConfig configures the fs driver. URLPrefix defaults to the /objects
// route served by the process itself.
type FSConfig struct {
	BaseDir   string `yaml:"base_dir" env:"FS_BASE_DIR" env-default:"./data/objects"`
	URLPrefix string `yaml:"url_prefix" env:"FS_URL_PREFIX" env-default:"http://localhost:8080/objects"`
}

// Load reads the configuration and validates it
func Load() (*Config, error) {
	var cfg Config

	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if !c.UsesPostgres() && c.DatabaseURL != "" && c.DatabaseURL != "memory" {
		return fmt.Errorf("unsupported DATABASE_URL format (use 'memory' or 'postgres://...')")
	}
	if c.BootstrapSchema && !c.UsesPostgres() {
		return errors.New("DB_BOOTSTRAP_SCHEMA requires a postgres DATABASE_URL")
	}
	if !c.UsesPostgres() && !c.IsDevelopment() {
		return fmt.Errorf("the in-memory repository is only allowed with ENVIRONMENT=development, got %q", c.Environment)
	}
	if len(c.MemorySeedUsers) > 0 {
		if c.UsesPostgres() {
			return errors.New("MEMORY_SEED_USERS requires the in-memory repository")
		}
		if _, err := c.seedUsers(); err != nil {
			return err
		}
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverS3:
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET_NAME is required for the s3 driver")
		}
	case DriverMinio:
		if c.S3.Bucket == "" || c.S3.Endpoint == "" {
			return errors.New("S3_BUCKET_NAME and S3_ENDPOINT are required for the minio driver")
		}
		if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the minio driver")
		}
	case DriverGCS:
		if c.GCS.Bucket == "" {
			return errors.New("GCS_BUCKET_NAME is required for the gcs driver")
		}
		if (c.GCS.SignerEmail == "") != (c.GCS.SignerPrivateKey == "") {
			return errors.New("GCS_SIGNER_EMAIL and GCS_SIGNER_PRIVATE_KEY must be set together")
		}
	case DriverFS:
		if c.FS.BaseDir == "" || c.FS.URLPrefix == "" {
			return errors.New("FS_BASE_DIR and FS_URL_PREFIX are required for the fs driver")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (use memory, fs, s3, minio or gcs)", c.StorageDriver)
	}

	if c.PresignTTL <= 0 || c.PresignTTL > maxPresignTTL {
		return fmt.Errorf("PRESIGN_TTL must be between 1s and %s, got %s", maxPresignTTL, c.PresignTTL)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}
	if c.MaxBatchSize < 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must not be negative, got %d", c.MaxBatchSize)
	}
	if c.MaxBatchSize > 0 && c.MaxBatchSize < c.MaxFileSize {
		return fmt.Errorf("MAX_BATCH_SIZE (%d) must not be smaller than MAX_FILE_SIZE (%d)", c.MaxBatchSize, c.MaxFileSize)
	}
	if c.MultipartMemory <= 0 {
		return fmt.Errorf("MULTIPART_MEMORY must be positive, got %d", c.MultipartMemory)
	}
	return nil
}

// UsesPostgres reports whether DatabaseURL points at PostgreSQL
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// IsProduction reports whether the process runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// IsDevelopment reports whether the process runs in development
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// SlogLevel parses LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ServiceOptions returns the service limits derived from the configuration
func (c *Config) ServiceOptions() []filemanager.Option {
	return []filemanager.Option{
		filemanager.WithMaxFileSize(c.MaxFileSize),
		filemanager.WithMaxBatchSize(c.MaxBatchSize),
		filemanager.WithPresignTTL(c.PresignTTL),
	}
}

// OpenPool connects to PostgreSQL and verifies the connection
func (c *Config) OpenPool(ctx context.Context) (*pgxpool.Pool, error) {
	if !c.UsesPostgres() {
		return nil, errors.New("a postgres DATABASE_URL is required")
	}
	poolConfig, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// BuildRepository creates the metadata store. The returned func releases
// its resources.
func (c *Config) BuildRepository(ctx context.Context) (filemanager.Repository, func(), error) {
	if !c.UsesPostgres() {
		repo := memory.New()
		users, err := c.seedUsers()
		if err != nil {
			return nil, nil, err
		}
		for _, user := range users {
			if err := repo.CreateUser(ctx, user); err != nil {
				return nil, nil, fmt.Errorf("failed to seed user %q: %w", user.Email, err)
			}
		}
		return repo, func() {}, nil
	}

	pool, err := c.OpenPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	if c.BootstrapSchema {
		if err := repopg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return repopg.NewWithPool(pool), pool.Close, nil
}

// BuildObjectStore creates the object store selected by StorageDriver
func (c *Config) BuildObjectStore(ctx context.Context) (filemanager.ObjectStore, error) {
	switch c.StorageDriver {
	case DriverMemory:
		return memorystorage.New(c.S3.Bucket), nil

	case DriverS3:
		store, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build s3 store: %w", err)
		}
		return store, nil

	case DriverMinio:
		store, err := miniostorage.New(ctx, miniostorage.Config{
			Endpoint:               c.S3.Endpoint,
			Bucket:                 c.S3.Bucket,
			Region:                 c.S3.Region,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			UseSSL:                 c.S3.UseSSL,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build minio store: %w", err)
		}
		return store, nil

	case DriverGCS:
		store, err := gcsstorage.New(ctx, gcsstorage.Config{
			Bucket:           c.GCS.Bucket,
			CredentialsFile:  c.GCS.CredentialsFile,
			SignerEmail:      c.GCS.SignerEmail,
			SignerPrivateKey: c.GCS.SignerPrivateKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build gcs store: %w", err)
		}
		return store, nil

	case DriverFS:
		store, err := fsstorage.New(fsstorage.Config{BaseDir: c.FS.BaseDir, URLPrefix: c.FS.URLPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to build fs store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", c.StorageDriver)
	}
}

// seedUsers parses MemorySeedUsers
func (c *Config) seedUsers() ([]*filemanager.User, error) {
	users := make([]*filemanager.User, 0, len(c.MemorySeedUsers))
	for _, entry := range c.MemorySeedUsers {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, err := mail.ParseAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid MEMORY_SEED_USERS entry %q: %w", entry, err)
		}
		name := addr.Name
		if name == "" {
			name = addr.Address
		}
		users = append(users, &filemanager.User{FullName: name, Email: addr.Address})
	}
	return users, nil
}
