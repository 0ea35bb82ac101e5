package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// VotingConfig holds the tunables of the voting engine
type VotingConfig struct {
	// SigningSecret is the server-held key for identity cookie signatures.
	// Required outside debug mode, minimum 32 bytes.
	SigningSecret string `mapstructure:"signing_secret"`
	// MaxChangeCount bounds how many times a voter may change a cast vote
	MaxChangeCount int `mapstructure:"max_change_count"`
	// Cooldown is the minimum delay between consecutive choice changes
	Cooldown time.Duration `mapstructure:"cooldown"`
	// RateLimitWindow is the fixed window for per-origin write quotas
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	// RateLimitQuota is the number of successful writes allowed per origin per window
	RateLimitQuota int `mapstructure:"rate_limit_quota"`
	// RateLimitPurgeInterval controls how often expired rate-limit rows are deleted
	RateLimitPurgeInterval time.Duration `mapstructure:"rate_limit_purge_interval"`
	// SubmitTimeout bounds the ledger transaction on the write path
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
}

// FixturesConfig holds fixture provider configuration
type FixturesConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Voting     VotingConfig   `mapstructure:"voting"`
	Fixtures   FixturesConfig `mapstructure:"fixtures"`
}

// MinSigningSecretLen is the minimum accepted signing secret length in bytes
const MinSigningSecretLen = 32

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("voting.max_change_count", 3)
	v.SetDefault("voting.cooldown", "30s")
	v.SetDefault("voting.rate_limit_window", "1m")
	v.SetDefault("voting.rate_limit_quota", 10)
	v.SetDefault("voting.rate_limit_purge_interval", "5m")
	v.SetDefault("voting.submit_timeout", "3s")
	v.SetDefault("fixtures.http_timeout", "5s")
	v.SetDefault("fixtures.cache_ttl", "2s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate enforces startup invariants. A weak or missing signing secret is a
// fatal configuration error outside debug mode.
func (c *APIConfig) Validate() error {
	if !c.Debug && len(c.Voting.SigningSecret) < MinSigningSecretLen {
		return fmt.Errorf("voting.signing_secret must be at least %d bytes", MinSigningSecretLen)
	}
	if c.Voting.MaxChangeCount < 0 {
		return errors.New("voting.max_change_count must not be negative")
	}
	if c.Voting.RateLimitQuota <= 0 {
		return errors.New("voting.rate_limit_quota must be positive")
	}
	if c.Voting.RateLimitWindow <= 0 {
		return errors.New("voting.rate_limit_window must be positive")
	}
	if c.Fixtures.BaseURL == "" {
		return errors.New("fixtures.base_url is required")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("VOTE_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Voting
		"voting.signing_secret",
		"voting.max_change_count",
		"voting.cooldown",
		"voting.rate_limit_window",
		"voting.rate_limit_quota",
		"voting.rate_limit_purge_interval",
		"voting.submit_timeout",
		// Fixtures
		"fixtures.base_url",
		"fixtures.http_timeout",
		"fixtures.cache_ttl",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
