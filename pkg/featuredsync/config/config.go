package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/featured-sync/pkg/featuredsync"
	"github.com/tendant/featured-sync/pkg/featuredsync/media/s3"
	"github.com/tendant/featured-sync/pkg/featuredsync/repo/memory"
	repopg "github.com/tendant/featured-sync/pkg/featuredsync/repo/postgres"
)

// Media sources
const (
	MediaSourceRepository = "repository"
	MediaSourceS3         = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "featured_sync",
		AutoMigrate:  true,
		MediaSource:  MediaSourceRepository,
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "media",
		},
		LogLevel: "info",
	}
}

// ServerConfig represents server configuration for the featured-sync service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: featured_sync)
	AutoMigrate  bool   // Create tables on startup

	// Media configuration
	MediaSource string // "repository", "s3"
	S3          S3Config

	// Sync options
	AckTimeout time.Duration // Zero waits for featured image updates forever

	LogLevel string // debug, info, warn, error
}

// S3Config configures the S3 media resolver
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	PublicBaseURL   string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.MediaSource {
	case MediaSourceRepository:
	case MediaSourceS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when media source is s3")
		}
	default:
		return fmt.Errorf("media_source must be '%s' or '%s'", MediaSourceRepository, MediaSourceS3)
	}

	if c.AckTimeout < 0 {
		return errors.New("ack_timeout must not be negative")
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// NewLogger creates the structured logger described by the configuration.
// Production writes JSON, everything else text.
func (c *ServerConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

// Runtime holds the service built from a ServerConfig and the resources it owns
type Runtime struct {
	Service featuredsync.Service
	Notices *featuredsync.NoticeBoard

	closers []func()
}

// Close shuts the service down and releases its resources
func (r *Runtime) Close() error {
	err := r.Service.Close()
	r.closeResources()
	return err
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runtime := &Runtime{Notices: featuredsync.NewNoticeBoard()}

	// Set up repository
	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closeRepo != nil {
		runtime.closers = append(runtime.closers, closeRepo)
	}

	options := []featuredsync.Option{
		featuredsync.WithRepository(repo),
		featuredsync.WithLogger(logger),
		featuredsync.WithNotifier(featuredsync.MultiNotifier{
			runtime.Notices,
			featuredsync.LogNotifier{Logger: logger},
		}),
		featuredsync.WithHooks(featuredsync.LoggingHook(logger)),
		featuredsync.WithAckTimeout(c.AckTimeout),
	}

	// Set up media source
	if c.MediaSource == MediaSourceS3 {
		resolver, err := s3.New(s3.Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			Prefix:          c.S3.Prefix,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
			PublicBaseURL:   c.S3.PublicBaseURL,
		})
		if err != nil {
			runtime.closeResources()
			return nil, fmt.Errorf("failed to build s3 media resolver: %w", err)
		}
		options = append(options, featuredsync.WithMediaSource(resolver))
	}

	svc, err := featuredsync.New(options...)
	if err != nil {
		runtime.closeResources()
		return nil, err
	}
	runtime.Service = svc
	return runtime, nil
}

func (r *Runtime) closeResources() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (featuredsync.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		if c.DBSchema != "" {
			cfg.ConnConfig.RuntimeParams["search_path"] = c.DBSchema
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}

		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if c.DBSchema != "" {
				if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", c.DBSchema)); err != nil {
					pool.Close()
					return nil, nil, fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
				}
			}
			if err := repo.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// PingPostgres verifies connectivity to Postgres.
func PingPostgres(ctx context.Context, databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
