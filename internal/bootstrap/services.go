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

	"github.com/redis/go-redis/v9"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/adapters/hubspot"
	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/data/memstore"
	"github.com/om239903-ai/internship-project/internal/domain/scan"
	"github.com/om239903-ai/internship-project/internal/observability/notify/pagerduty"
	"github.com/om239903-ai/internship-project/internal/observability/notify/slack"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
	"github.com/om239903-ai/internship-project/internal/service"
	"github.com/om239903-ai/internship-project/internal/service/extraction"
	"github.com/om239903-ai/internship-project/internal/service/failurenotifier"
	"github.com/om239903-ai/internship-project/internal/service/governor"
	"github.com/om239903-ai/internship-project/internal/service/sink"
)

// ScanStore is what a storage backend provides to the services.
type ScanStore interface {
	core.ScanJobRepository
	core.ReaperRepository
	scan.Waiter
}

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          ScanStore
	Results       core.DealResultRepository
	Scans         *service.ScanService
	Cancel        *service.CancellationController
	Engine        *extraction.Engine
	Notifier      *scan.DefaultNotifier
	Sources       *hubspot.Factory
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // nil with the memory backend
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	metricsSink, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Metrics.IsEnabled(),
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  obsLogger,
	})
	if err != nil {
		obsLogger.Error("failed to initialise statsd client", "error", err)
		metricsSink, _ = statsd.NewClient(statsd.Config{Prefix: cfg.Metrics.Prefix, Logger: obsLogger})
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: baseLogger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			ScanURLPrefix: cfg.Slack.ScanURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	repeat := cfg.RepeatWindow
	if repeat == 0 {
		repeat = -1
	}
	return failurenotifier.NewService(failurenotifier.Options{
		Logger:          baseLogger,
		Sinks:           sinks,
		DeliveryTimeout: cfg.DeliveryTimeout(),
		RepeatWindow:    repeat,
	})
}

// buildStores selects the storage backend.
func buildStores(deps *ServiceDeps, logger *slog.Logger) (ScanStore, core.DealResultRepository, error) {
	cfg := deps.Config
	if !cfg.UsesPostgres() {
		logger.Warn("using in-memory storage; scans do not survive a restart")
		results := memstore.NewDealResultStore(nil)
		return memstore.NewScanJobStore(nil, results), results, nil
	}
	if deps.DB == nil {
		return nil, nil, errors.New("postgres storage backend requires a database connection")
	}

	sealer, err := CreateSealer(cfg.CredentialsEncryptionKey, cfg.IsDev, logger)
	if err != nil {
		return nil, nil, err
	}
	jobs := data.NewScanJobRepo(deps.DB, data.ScanJobRepoConfig{Sealer: sealer, Logger: logger})
	return jobs, data.NewDealResultRepo(deps.DB, nil), nil
}

// GovernorConfig converts the env configuration into the governor's.
func GovernorConfig(cfg config.GovernorConfig) governor.Config {
	return governor.Config{
		Requests:          cfg.Requests,
		Window:            cfg.Window,
		Burst:             cfg.Burst,
		BaseDelay:         cfg.BaseDelay,
		MaxDelay:          cfg.MaxDelay,
		MaxAttempts:       cfg.MaxAttempts,
		MaxRateLimitHits:  cfg.MaxRateLimitHits,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
		CallTimeout:       cfg.CallTimeout,
	}
}

// NewSourceFactory builds the HubSpot client factory from configuration.
func NewSourceFactory(cfg config.HubSpotConfig, logger *slog.Logger) (*hubspot.Factory, error) {
	return hubspot.NewFactory(hubspot.Options{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
		Logger:          logger,
	})
}

// NewServices wires stores, the extraction engine and the control plane services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observability := buildObservability(logger, cfg.Observability)
	metrics := observability.MetricsSink

	jobs, results, err := buildStores(deps, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	var flags core.CancelFlagStore
	if deps.RedisClient != nil {
		flags = data.NewRedisCancelStore(deps.RedisClient, cfg.Redis.CancelFlagTTL)
	}
	cancel, err := service.NewCancellationController(service.CancellationControllerOptions{
		Jobs:    jobs,
		Flags:   flags,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create cancellation controller: %w", err)
	}

	sources, err := NewSourceFactory(cfg.HubSpot, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create hubspot client factory: %w", err)
	}

	resultSink, err := sink.New(sink.Options{Repo: results, Logger: logger, Metrics: metrics})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create result sink: %w", err)
	}

	engine, err := extraction.New(extraction.Options{
		Jobs:    jobs,
		Sink:    resultSink,
		Clients: sources,
		Governors: governor.NewRegistry(governor.Options{
			Config:  GovernorConfig(cfg.Governor),
			Logger:  logger,
			Metrics: metrics,
		}),
		Cancel:             cancel,
		Notifier:           observability.FailureNotifier,
		Logger:             logger,
		Metrics:            metrics,
		EnrichConcurrency:  cfg.ScanRunner.EnrichConcurrency,
		CancelGracePeriod:  cfg.ScanRunner.CancelGracePeriod,
		CancelPollInterval: cfg.ScanRunner.CancelPollInterval,
		PortalID:           cfg.HubSpot.PortalID,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create extraction engine: %w", err)
	}

	notifier := scan.NewNotifier(scan.NotifierOptions{Waiter: jobs})

	scans, err := service.NewScanService(service.ScanServiceOptions{
		Jobs:     jobs,
		Results:  results,
		Cancel:   cancel,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create scan service: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Results:       results,
		Scans:         scans,
		Cancel:        cancel,
		Engine:        engine,
		Notifier:      notifier,
		Sources:       sources,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
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
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	return StartHTTPServer(deps.ctx, &HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		DB:       deps.cfg.DB,
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
		if err := descriptor.start(ctx); err != nil && !errors.Is(err, context.Canceled) {
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
		handles = append(handles, backgroundServiceHandle{mode: svc.mode, name: svc.name, done: done})
	}

	return handles
}

func newScanRunnerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeScanRunner,
		name: "scan runner",
		start: func(ctx context.Context) error {
			return RunScanRunner(ctx, ScanRunnerConfig{
				Services: deps.cfg.Services,
				Config:   deps.cfg.Config.ScanRunner,
				Logger:   deps.logger,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			return RunReaper(ctx, ReaperConfig{
				Repo:    deps.cfg.Services.Jobs,
				Logger:  deps.logger,
				Config:  deps.cfg.Config.Reaper,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newScanRunnerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
// Nothing runs in the background when the HTTP server cannot be built.
func startServices(deps *serviceStartupDeps) (ServiceStartupResult, error) {
	server, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return ServiceStartupResult{}, fmt.Errorf("start HTTP server: %w", err)
	}
	return ServiceStartupResult{
		HTTPServer: server,
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}, nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result, err := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})
	if err != nil {
		return err
	}

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		httpTimeout: cfg.Config.HTTP.ShutdownTimeout,
		notifier:    cfg.Services.Notifier,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	httpTimeout time.Duration
	notifier    scan.Notifier
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains HTTP first so no new scans are accepted, then stops the workers.
// Running scans keep their status and lease; another runner reclaims them after expiry.
func gracefulStop(cfg shutdownConfig) error {
	var httpErr error
	if cfg.httpServer != nil {
		timeout := cfg.httpTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		httpErr = ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		})
	}

	cfg.cancel()
	if cfg.notifier != nil {
		cfg.notifier.StopAll()
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return httpErr
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
