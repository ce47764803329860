package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits a value.
const (
	// DefaultConfigPath is used when no path is supplied on the command line or in the environment.
	DefaultConfigPath = "config.yaml"
	// DefaultDatabaseDSN points at a local SQLite file.
	DefaultDatabaseDSN = "data/banlist.db"
	// DefaultJWTExpiry is the lifetime of issued account tokens.
	DefaultJWTExpiry = 12 * time.Hour
	// DefaultPort is the HTTP listen port.
	DefaultPort = 8318

	// StoreDriverDatabase keeps bans in the SQL database.
	StoreDriverDatabase = "database"
	// StoreDriverRedis keeps bans in a Redis hash.
	StoreDriverRedis = "redis"
)

// Environment overrides.
const (
	envConfigPath  = "BANLIST_CONFIG"
	envDatabaseDSN = "BANLIST_DATABASE_DSN"
	envJWTSecret   = "BANLIST_JWT_SECRET"
)

// ErrMissingJWTSecret is returned when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("config: jwt secret is required")

// AppConfig holds command line level options.
type AppConfig struct {
	ConfigPath string
}

// Config is the on-disk configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Bans     BansConfig     `yaml:"bans"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the SQL connection string.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds account token signing settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// StoreConfig selects the ban store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// RedisConfig holds the Redis connection used by the redis store driver.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key-prefix"`
}

// AuthConfig controls where request tokens are read from.
type AuthConfig struct {
	Header       string `yaml:"header"`
	Scheme       string `yaml:"scheme"`
	AllowXAPIKey *bool  `yaml:"allow-x-api-key"`
}

// BansConfig holds ban endpoint policy switches.
type BansConfig struct {
	// RequireAdminForGet gates GET /bans/:id behind the admin flag as well.
	RequireAdminForGet bool `yaml:"require-admin-for-get"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// ResolveConfigPath picks the config file path from the flag, the environment, or the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(envConfigPath)); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := loadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

// LoadDatabaseDSN loads only the database DSN, for commands that do not need a JWT secret.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := loadUnvalidated(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}

func loadUnvalidated(path string) (*Config, error) {
	cfg := &Config{}
	data, errRead := os.ReadFile(path)
	if errRead != nil && !errors.Is(errRead, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envDatabaseDSN)); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.JWT.Secret = v
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Host) == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = DefaultDatabaseDSN
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = DefaultJWTExpiry
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverDatabase
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "banlist:"
	}
	if strings.TrimSpace(cfg.Auth.Header) == "" {
		cfg.Auth.Header = "Authorization"
	}
	if strings.TrimSpace(cfg.Auth.Scheme) == "" {
		cfg.Auth.Scheme = "Bearer"
	}
	if cfg.Auth.AllowXAPIKey == nil {
		allow := true
		cfg.Auth.AllowXAPIKey = &allow
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = 30
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingJWTSecret
	}
	switch c.Store.Driver {
	case StoreDriverDatabase, StoreDriverRedis:
	default:
		return fmt.Errorf("config: unsupported store driver: %s", c.Store.Driver)
	}
	return nil
}
