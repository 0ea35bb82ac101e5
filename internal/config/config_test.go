package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAPIConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError string
		validate    func(*testing.T, *APIConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: false
sentry_dsn: "https://sentry.example.com"
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 5
database:
  host: localhost
  port: 5433
  user: votes
  password: secret
  dbname: votes
  sslmode: require
voting:
  signing_secret: "` + testSecret + `"
  max_change_count: 5
  cooldown: "45s"
  rate_limit_window: "2m"
  rate_limit_quota: 20
fixtures:
  base_url: "https://fixtures.example.com/api"
  cache_ttl: "5s"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5, cfg.Server.ReadTimeout)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, testSecret, cfg.Voting.SigningSecret)
				assert.Equal(t, 5, cfg.Voting.MaxChangeCount)
				assert.Equal(t, 45*time.Second, cfg.Voting.Cooldown)
				assert.Equal(t, 2*time.Minute, cfg.Voting.RateLimitWindow)
				assert.Equal(t, 20, cfg.Voting.RateLimitQuota)
				assert.Equal(t, "https://fixtures.example.com/api", cfg.Fixtures.BaseURL)
				assert.Equal(t, 5*time.Second, cfg.Fixtures.CacheTTL)
			},
		},
		{
			name: "defaults applied",
			configFile: `
voting:
  signing_secret: "` + testSecret + `"
fixtures:
  base_url: "https://fixtures.example.com/api"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 120, cfg.Server.IdleTimeout)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 3, cfg.Voting.MaxChangeCount)
				assert.Equal(t, 30*time.Second, cfg.Voting.Cooldown)
				assert.Equal(t, time.Minute, cfg.Voting.RateLimitWindow)
				assert.Equal(t, 10, cfg.Voting.RateLimitQuota)
				assert.Equal(t, 5*time.Minute, cfg.Voting.RateLimitPurgeInterval)
				assert.Equal(t, 3*time.Second, cfg.Voting.SubmitTimeout)
				assert.Equal(t, 2*time.Second, cfg.Fixtures.CacheTTL)
			},
		},
		{
			name: "missing signing secret rejected outside debug",
			configFile: `
debug: false
fixtures:
  base_url: "https://fixtures.example.com/api"
`,
			expectError: "signing_secret",
		},
		{
			name: "short signing secret rejected outside debug",
			configFile: `
voting:
  signing_secret: "too-short"
fixtures:
  base_url: "https://fixtures.example.com/api"
`,
			expectError: "signing_secret",
		},
		{
			name: "short signing secret tolerated in debug",
			configFile: `
debug: true
voting:
  signing_secret: "dev"
fixtures:
  base_url: "http://localhost:9000"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "dev", cfg.Voting.SigningSecret)
			},
		},
		{
			name: "missing fixtures base url rejected",
			configFile: `
voting:
  signing_secret: "` + testSecret + `"
`,
			expectError: "fixtures.base_url",
		},
		{
			name: "zero rate limit quota rejected",
			configFile: `
voting:
  signing_secret: "` + testSecret + `"
  rate_limit_quota: 0
fixtures:
  base_url: "https://fixtures.example.com/api"
`,
			expectError: "rate_limit_quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.configFile)

			cfg, err := LoadAPIConfig(path, t.TempDir())
			if tt.expectError != "" {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.expectError),
					"expected error to mention %q, got: %v", tt.expectError, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadAPIConfigFromEnv(t *testing.T) {
	t.Setenv("VOTE_ENGINE_VOTING_SIGNING_SECRET", testSecret)
	t.Setenv("VOTE_ENGINE_FIXTURES_BASE_URL", "https://fixtures.example.com/api")
	t.Setenv("VOTE_ENGINE_SERVER_PORT", "9191")
	t.Setenv("VOTE_ENGINE_VOTING_RATE_LIMIT_QUOTA", "25")

	cfg, err := LoadAPIConfig("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, testSecret, cfg.Voting.SigningSecret)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Voting.RateLimitQuota)
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "votes",
		Password: "pw",
		DBName:   "votes",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	assert.Equal(t, "host=db.internal port=5432 user=votes password=pw dbname=votes sslmode=require", dsn)
}
