package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the environment variable mapping read by WithEnv. Empty
// values leave the current configuration untouched.
//
//	PORT, ENVIRONMENT, LOG_LEVEL
//	DATABASE_URL        "memory" (default) or "postgres://..." / "postgresql://..."
//	DB_SCHEMA, DB_AUTO_MIGRATE
//	MEDIA_SOURCE        "repository" (default) or "s3"
//	S3_*                S3 media resolver settings
//	ACK_TIMEOUT         e.g. "30s"; "0" waits forever
type envConfig struct {
	Port        string `env:"PORT"`
	Environment string `env:"ENVIRONMENT"`
	LogLevel    string `env:"LOG_LEVEL"`

	DatabaseURL   string `env:"DATABASE_URL"`
	DBSchema      string `env:"DB_SCHEMA"`
	DBAutoMigrate string `env:"DB_AUTO_MIGRATE"`

	MediaSource       string `env:"MEDIA_SOURCE"`
	S3Region          string `env:"S3_REGION"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Prefix          string `env:"S3_PREFIX"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3UsePathStyle    string `env:"S3_USE_PATH_STYLE"`
	S3PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`

	AckTimeout string `env:"ACK_TIMEOUT"`
}

// WithEnv applies environment variable overrides.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return env.apply(c)
	}
}

func (e envConfig) apply(c *ServerConfig) error {
	setString(&c.Port, e.Port)
	setString(&c.Environment, e.Environment)
	setString(&c.LogLevel, e.LogLevel)

	if err := applyDatabaseURL(c, e.DatabaseURL); err != nil {
		return err
	}
	setString(&c.DBSchema, e.DBSchema)
	if err := setBool(&c.AutoMigrate, "DB_AUTO_MIGRATE", e.DBAutoMigrate); err != nil {
		return err
	}

	setString(&c.MediaSource, e.MediaSource)
	setString(&c.S3.Region, e.S3Region)
	setString(&c.S3.Bucket, e.S3Bucket)
	setString(&c.S3.Prefix, e.S3Prefix)
	setString(&c.S3.AccessKeyID, e.S3AccessKeyID)
	setString(&c.S3.SecretAccessKey, e.S3SecretAccessKey)
	setString(&c.S3.Endpoint, e.S3Endpoint)
	setString(&c.S3.PublicBaseURL, e.S3PublicBaseURL)
	if err := setBool(&c.S3.UsePathStyle, "S3_USE_PATH_STYLE", e.S3UsePathStyle); err != nil {
		return err
	}

	if e.AckTimeout != "" {
		timeout, err := parseDuration(e.AckTimeout)
		if err != nil {
			return fmt.Errorf("invalid duration for ACK_TIMEOUT: %w", err)
		}
		c.AckTimeout = timeout
	}

	return nil
}

// applyDatabaseURL auto-detects the database type from the URL
func applyDatabaseURL(c *ServerConfig, dbURL string) error {
	switch {
	case dbURL == "":
		return nil
	case dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

// parseDuration accepts Go durations and plain seconds
func parseDuration(raw string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
