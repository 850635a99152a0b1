package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shithost/sigma-dash/internal/adapter/filestore"
	"github.com/shithost/sigma-dash/internal/adapter/httpserver"
	"github.com/shithost/sigma-dash/internal/adapter/metrics"
	"github.com/shithost/sigma-dash/internal/adapter/panel"
	"github.com/shithost/sigma-dash/internal/adapter/postgres"
	"github.com/shithost/sigma-dash/internal/adapter/proxycheck"
	"github.com/shithost/sigma-dash/internal/adapter/redis"
	"github.com/shithost/sigma-dash/internal/app"
	"github.com/shithost/sigma-dash/internal/crypto"
	"github.com/shithost/sigma-dash/internal/domain"
	"github.com/shithost/sigma-dash/internal/platform/config"
	"github.com/shithost/sigma-dash/internal/platform/logging"
	"github.com/shithost/sigma-dash/internal/platform/version"
)

const (
	startupTimeout          = 30 * time.Second
	shutdownTimeout         = 10 * time.Second
	reputationEvictInterval = time.Minute
)

type collectors struct {
	registry  *prometheus.Registry
	http      *metrics.HTTPMetrics
	panel     *metrics.PanelMetrics
	gate      *metrics.GateMetrics
	provision *metrics.ProvisionMetrics
	store     *metrics.StoreMetrics
	errors    *metrics.ErrorMetrics
}

func setupMetrics(hostingName string) collectors {
	reg := metrics.NewRegistry(version.Get(hostingName))
	return collectors{
		registry:  reg,
		http:      metrics.NewHTTPMetrics(reg),
		panel:     metrics.NewPanelMetrics(reg),
		gate:      metrics.NewGateMetrics(reg),
		provision: metrics.NewProvisionMetrics(reg),
		store:     metrics.NewStoreMetrics(reg),
		errors:    metrics.NewErrorMetrics(reg),
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(ctx context.Context, cfg *config.Config, m collectors) *pgxpool.Pool {
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewQueryTracer(m.store))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupRecordStore returns the configured repository, its readiness check and a cleanup func.
func setupRecordStore(ctx context.Context, cfg *config.Config, m collectors) (domain.RecordRepository, httpserver.HealthCheck, func()) {
	if cfg.RecordStore == config.RecordStorePostgres {
		pool := setupDB(ctx, cfg, m)
		repo := postgres.NewRecordRepo(pool)
		slog.Info("Using PostgreSQL record store")
		return repo, httpserver.HealthCheck{Name: "record_store", Check: repo.Ping}, pool.Close
	}

	store := filestore.New(cfg.UsersFilePath)
	check := func(context.Context) error {
		_, err := store.Read()
		return err
	}
	slog.Info("Using JSON file record store", "path", store.Path())
	return store, httpserver.HealthCheck{Name: "record_store", Check: check}, func() {}
}

func setupRedis(ctx context.Context, cfg *config.Config, m collectors) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, m.store)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// setupReputation builds the checker behind the VPN gate. It returns nil when
// the quota file disables the gate.
func setupReputation(cfg *config.Config, redisClient *goredis.Client, clock clockwork.Clock, m collectors) (domain.ReputationChecker, func()) {
	if !cfg.Quotas.VPNCheck {
		slog.Info("VPN check disabled")
		return nil, func() {}
	}

	client := proxycheck.NewClient(cfg.ProxyCheckURL, cfg.ProxyCheckAPIKey, cfg.OutboundTimeout)
	if cfg.ReputationCacheTTL <= 0 {
		return client, func() {}
	}

	// Pass nil explicitly to avoid a typed-nil interface.
	var shared domain.ReputationCache
	if redisClient != nil {
		shared = redis.NewReputationCache(redisClient, cfg.ReputationCacheTTL)
	}

	cached := proxycheck.NewCachingChecker(client, cfg.ReputationCacheTTL, clock, shared, m.gate)
	stop := cached.StartEvictionTimer(reputationEvictInterval)
	slog.Info("Reputation cache enabled", "ttl", cfg.ReputationCacheTTL, "shared", shared != nil)
	return cached, stop
}

// setupRedisSessions shares sessions between instances. Without Redis the
// server keeps them in SESSION_DIR.
func setupRedisSessions(cfg *config.Config, redisClient *goredis.Client) *redis.SessionStore {
	hashKey, blockKey := cfg.SessionKeys()
	slog.Info("Using Redis session store")
	return redis.NewSessionStore(redisClient, httpserver.SessionOptions(cfg), hashKey, blockKey)
}

func setupSealer(cfg *config.Config) crypto.Service {
	if cfg.PasswordEncryptionKey == "" {
		return crypto.PlaintextService{}
	}
	sealer, err := crypto.NewAesGcmService(cfg.PasswordEncryptionKey)
	if err != nil {
		slog.Error("Failed to create crypto service", "error", err)
		os.Exit(1)
	}
	return sealer
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "hosting_name", cfg.HostingName)

	m := setupMetrics(cfg.HostingName)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	records, storeCheck, closeStore := setupRecordStore(startupCtx, cfg, m)
	defer closeStore()
	healthChecks := []httpserver.HealthCheck{storeCheck}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(startupCtx, cfg, m)
		defer func() { _ = redisClient.Close() }()
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	checker, stopEviction := setupReputation(cfg, redisClient, clock, m)
	defer stopEviction()

	panelClient := panel.NewClient(cfg.PanelURL, cfg.PanelAPIKey, cfg.OutboundTimeout, panel.WithObserver(m.panel))
	healthChecks = append(healthChecks, httpserver.HealthCheck{
		Name:     "panel",
		Check:    panelClient.CheckAvailable,
		Optional: true,
	})

	appSvc, err := app.NewService(records, panelClient, cfg.Quotas, setupSealer(cfg), m.provision)
	if err != nil {
		slog.Error("Failed to create provisioning service", "error", err)
		os.Exit(1)
	}

	opts := []httpserver.Option{
		httpserver.WithMetrics(m.http.Middleware(), metrics.Handler(m.registry)),
		httpserver.WithErrorObserver(m.errors),
		httpserver.WithHealthChecks(healthChecks...),
	}
	if checker != nil {
		opts = append(opts, httpserver.WithReputationChecker(checker, m.gate))
	}
	if redisClient != nil {
		opts = append(opts, httpserver.WithSessionStore(setupRedisSessions(cfg, redisClient)))
	}

	srv, err := httpserver.NewServer(cfg, appSvc, opts...)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
