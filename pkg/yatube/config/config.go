package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the API server
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Media    MediaConfig    `mapstructure:"media"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	Mode        string   `mapstructure:"mode"` // gin mode: debug, release, test
	TLSDomains  []string `mapstructure:"tls_domains"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	Gzip        bool     `mapstructure:"gzip"`
}

// DatabaseConfig selects the gorm driver and its DSN
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres or mysql
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig holds JWT and login throttling settings
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	LoginRate  float64       `mapstructure:"login_rate"` // token requests per second per client
	LoginBurst int           `mapstructure:"login_burst"`
}

// MediaConfig describes where uploaded images are stored and how they are addressed
type MediaConfig struct {
	Backend   string   `mapstructure:"backend"` // disk or s3
	Root      string   `mapstructure:"root"`
	URL       string   `mapstructure:"url"`
	UploadDir string   `mapstructure:"upload_dir"`
	S3        S3Config `mapstructure:"s3"`
}

// S3Config is used when Media.Backend is "s3"
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PublicURL string `mapstructure:"public_url"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const envPrefix = "YATUBE"

// devJWTSecret is only used when no secret is configured
const devJWTSecret = "yatube-dev-secret-change-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.tls_domains", []string{})
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.gzip", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "yatube.db")

	v.SetDefault("auth.jwt_secret", devJWTSecret)
	v.SetDefault("auth.access_ttl", 24*time.Hour)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_rate", 1.0)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("media.backend", "disk")
	v.SetDefault("media.root", "media")
	v.SetDefault("media.url", "/media/")
	v.SetDefault("media.upload_dir", "posts/")
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.prefix", "")
	v.SetDefault("media.s3.access_key", "")
	v.SetDefault("media.s3.secret_key", "")
	v.SetDefault("media.s3.public_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration from the optional file at path and from YATUBE_* environment
// variables, e.g. YATUBE_DATABASE_DSN overrides database.dsn.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server mode %q", c.Server.Mode)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Media.Backend {
	case "disk":
	case "s3":
		if c.Media.S3.Bucket == "" {
			return errors.New("media.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported media backend %q", c.Media.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must not be empty")
	}
	return nil
}

// UsesDevSecret reports whether the built-in development JWT secret is in effect
func (c *Config) UsesDevSecret() bool {
	return c.Auth.JWTSecret == devJWTSecret
}
