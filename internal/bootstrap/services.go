package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianbank/opsdesk/config"
	"github.com/meridianbank/opsdesk/internal/catalog"
	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/data"
	"github.com/meridianbank/opsdesk/internal/observability/notify"
	"github.com/meridianbank/opsdesk/internal/observability/notify/webhook"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
	"github.com/meridianbank/opsdesk/internal/service"
	"github.com/meridianbank/opsdesk/internal/upstream"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Datasets *service.DatasetService
	Views    *service.ViewService
	Exports  *service.ExportService
	Auth     *service.AuthService

	// Catalog is the loaded dataset catalog the services above share.
	Catalog *catalog.Catalog

	// Cache is the snapshot cache repository, also used by the refresher
	// for cross-replica locks. Nil when no cache Redis is configured.
	Cache core.CacheRepository

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    *statsd.Client
	MetricsConfig  config.ObservabilityMetricsConfig
	Notifier       notify.Sink
	NotifierConfig config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	// RedisClient backs the session store.
	RedisClient redis.UniversalClient
	// CacheClient backs the snapshot cache; may point at a different
	// Redis than the session store, and may be nil.
	CacheClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB       *sql.DB
	Sessions redis.UniversalClient
	Views    *data.SavedViewRepo
	Exports  *data.ExportRepo
	Cache    *data.RedisCache
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:    metricsSink,
		MetricsConfig:  cfg.Metrics,
		Notifier:       buildRefreshNotifier(obsLogger, cfg.Notifications),
		NotifierConfig: cfg.Notifications,
	}
}

// buildRefreshNotifier wires the webhook sink that receives refresh
// failure notifications. Disabled notifications yield a nil sink.
//
//nolint:ireturn // a disabled notifier must stay a nil interface so callers can skip it.
func buildRefreshNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) notify.Sink {
	if !cfg.Enabled {
		return nil
	}

	client, err := webhook.NewClient(webhook.Config{
		URL:        cfg.WebhookURL,
		Source:     cfg.Source,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
	})
	if err != nil {
		logger.Error("failed to initialise webhook notifier", "error", err)
		return nil
	}
	return client
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, sessions, cache redis.UniversalClient) *serviceRepositories {
	repos := &serviceRepositories{
		DB:       db,
		Sessions: sessions,
		Views:    data.NewSavedViewRepo(db),
		Exports:  data.NewExportRepo(db),
	}
	if cache != nil {
		repos.Cache = data.NewRedisCache(cache)
	}
	return repos
}

func newSnapshotCacheService(repos *serviceRepositories, cfg config.CacheConfig) *core.SnapshotCacheService {
	if repos.Cache == nil {
		return nil
	}
	cacheCfg := core.DefaultSnapshotCacheConfig()
	if cfg.SnapshotTTL > 0 {
		cacheCfg.TTL = cfg.SnapshotTTL
	}
	return core.NewSnapshotCacheService(core.SnapshotCacheServiceOptions{
		Cache:  repos.Cache,
		Config: cacheCfg,
	})
}

// newLedgerClient builds the upstream ledger client. A misconfigured
// ledger (typically a missing signing secret in dev) disables ledger
// datasets instead of failing startup; the export audit dataset and the
// rest of the app keep working.
//
//nolint:ireturn // a disabled ledger must stay a nil interface so the dataset service can detect it.
func newLedgerClient(cfg config.LedgerConfig, logger *slog.Logger) core.UpstreamSource {
	client, err := upstream.NewClient(upstream.Config{
		BaseURL:          cfg.BaseURL,
		Secret:           cfg.Secret,
		Issuer:           cfg.Issuer,
		Audience:         cfg.Audience,
		TokenTTL:         cfg.TokenTTL,
		Timeout:          cfg.Timeout,
		MaxResponseBytes: cfg.MaxResponseBytes,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("ledger client disabled", "error", err)
		}
		return nil
	}
	return client
}

func newAuthService(cfg config.AuthConfig, sessions redis.UniversalClient, logger *slog.Logger) *service.AuthService {
	return BuildAuthService(AuthConfig{
		Auth:        cfg,
		RedisClient: sessions,
		Logger:      logger,
	})
}

// DomainServicesOptions groups inputs for buildDomainServices.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	if opts == nil {
		return ServiceContainer{}, errors.New("domain service options are required")
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	cat, err := catalog.Load(appCfg.Catalog.Path)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("load dataset catalog: %w", err)
	}

	snapshots := newSnapshotCacheService(opts.Repos, appCfg.Cache)
	ledger := newLedgerClient(appCfg.Ledger, svcLogger)

	datasets := service.NewDatasetService(service.DatasetServiceOptions{
		Catalog:   cat,
		Snapshots: snapshots,
		Ledger:    ledger,
		Exports:   opts.Repos.Exports,
		Logger:    svcLogger,
		Metrics:   opts.Observability.MetricsSink,
	})

	views := service.NewViewService(service.ViewServiceOptions{
		Repo:    opts.Repos.Views,
		Catalog: cat,
	})

	exports := service.NewExportService(service.ExportServiceOptions{
		Datasets: datasets,
		Audit:    opts.Repos.Exports,
		Metrics:  opts.Observability.MetricsSink,
	})

	authService := newAuthService(appCfg.Auth, opts.Repos.Sessions, svcLogger)

	container := ServiceContainer{
		Datasets:      datasets,
		Views:         views,
		Exports:       exports,
		Auth:          authService,
		Catalog:       cat,
		Observability: opts.Observability,
	}
	if opts.Repos.Cache != nil {
		container.Cache = opts.Repos.Cache
	}
	return container, nil
}

// NewServices builds the full service container from connected
// infrastructure.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient, deps.CacheClient)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newRefresherBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeRefresher,
		name: "refresher",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			refresherCfg := config.RefresherConfig{}
			if deps.cfg.Config != nil {
				refresherCfg = deps.cfg.Config.Refresher
			}
			return RunRefresher(ctx, RefresherConfig{
				Datasets: deps.cfg.Services.Datasets,
				Catalog:  deps.cfg.Services.Catalog,
				Cache:    deps.cfg.Services.Cache,
				Config:   refresherCfg,
				Logger:   deps.logger,
				Metrics:  deps.cfg.Services.Observability.MetricsSink,
				Notifier: deps.cfg.Services.Observability.Notifier,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newRefresherBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(waitConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeRefresher,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// waitConfig contains dependencies for graceful shutdown.
type waitConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg waitConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg waitConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
