package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/matchpulse/vote-engine/internal/adapter"
	"github.com/matchpulse/vote-engine/internal/api/server"
	"github.com/matchpulse/vote-engine/internal/config"
	"github.com/matchpulse/vote-engine/internal/fixtures"
	"github.com/matchpulse/vote-engine/internal/identity"
	"github.com/matchpulse/vote-engine/internal/logger"
	"github.com/matchpulse/vote-engine/internal/ratelimit"
	"github.com/matchpulse/vote-engine/internal/store"
	"github.com/matchpulse/vote-engine/internal/vote"
	"github.com/matchpulse/vote-engine/internal/window"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "vote-engine-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting MatchPulse vote engine API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Migrate schema
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database schema", zap.Error(err))
	}

	// Initialize store
	dataStore := store.NewPGStore(db)

	clock := adapter.NewClock()

	// Identity cookie issuer. A debug build without a configured secret gets
	// an ephemeral one, so restarts invalidate existing cookies.
	signingSecret := cfg.Voting.SigningSecret
	if signingSecret == "" {
		signingSecret = identity.EphemeralSecret()
		logger.WarnCtx(ctx, "No signing secret configured, minted identities will not survive restarts")
	}
	issuer, err := identity.NewIssuer(signingSecret, !cfg.Debug)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create identity issuer", zap.Error(err))
	}

	// Fixture provider with a short TTL cache in front
	httpClient := adapter.NewHTTPClient(cfg.Fixtures.HTTPTimeout)
	provider, err := fixtures.NewHTTPProvider(cfg.Fixtures, httpClient)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create fixture provider", zap.Error(err))
	}
	provider = fixtures.NewCachingProvider(provider, cfg.Fixtures.CacheTTL, clock)

	// Rate limiter over the shared store
	limiter, err := ratelimit.NewLimiter(cfg.Voting, dataStore, clock)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err))
	}

	// Periodically drop lapsed rate-limit windows
	go purgeExpiredLoop(ctx, limiter, cfg.Voting.RateLimitPurgeInterval)

	// Voting service
	service := vote.NewService(cfg.Voting, dataStore, provider, window.NewPolicy(clock), limiter, clock)

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		OriginSecret: signingSecret,
	}

	// Create and start server
	srv := server.New(serverConfig, service, issuer)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}

// purgeExpiredLoop deletes lapsed rate-limit windows on a fixed interval until
// the context is canceled
func purgeExpiredLoop(ctx context.Context, limiter ratelimit.Limiter, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := limiter.PurgeExpired(ctx)
			if err != nil {
				logger.ErrorCtx(ctx, err, zap.String("component", "rate_limit_purge"))
				continue
			}
			if purged > 0 {
				logger.DebugCtx(ctx, "Purged expired rate limit entries", zap.Int64("purged", purged))
			}
		}
	}
}
