// Command contract-management runs the dataspace event listener: TMForum
// notifications in, catalog and negotiation calls out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-contracts/adapters/gocommand"
	"github.com/goliatone/go-contracts/adapters/gojob"
	"github.com/goliatone/go-contracts/adapters/gologger"
	"github.com/goliatone/go-contracts/adapters/otelmetrics"
	contractscommand "github.com/goliatone/go-contracts/command"
	"github.com/goliatone/go-contracts/core"
	"github.com/goliatone/go-contracts/inbound"
	"github.com/goliatone/go-contracts/providers/rainbow"
	"github.com/goliatone/go-contracts/providers/tmforum"
	"github.com/goliatone/go-contracts/transport"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv(envPrefix+"CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := gologger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("contract management stopped", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg AppConfig, log *gologger.Logger) error {
	provider := gologger.NewProvider(log)
	metrics := otelmetrics.New(nil, otelmetrics.WithErrorHandler(func(name string, err error) {
		log.Warn("metric instrument unavailable", "metric", name, "error", err)
	}))

	adapter := transport.NewRESTAdapter(&http.Client{},
		transport.WithRateLimit(cfg.Transport.RequestsPerSecond, cfg.Transport.Burst),
	)
	connector, err := rainbow.New(rainbow.Config{BaseURL: cfg.Rainbow.BaseURL, Timeout: cfg.Rainbow.Timeout}, adapter)
	if err != nil {
		return fmt.Errorf("rainbow gateway: %w", err)
	}
	commerce, err := tmforum.New(tmforum.Config{BaseURL: cfg.TMForum.BaseURL, Timeout: cfg.TMForum.Timeout}, adapter)
	if err != nil {
		return fmt.Errorf("tmforum gateway: %w", err)
	}

	serviceOpts := []core.Option{
		core.WithLoggerProvider(provider),
		core.WithMetricsRecorder(metrics),
		core.WithConfigProvider(core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(cfg.Core))),
		core.WithCatalogGateway(connector),
		core.WithNegotiationGateway(connector),
		core.WithCommerceGateway(commerce),
	}
	var worker *gojob.CleanupWorker
	if cfg.Cleanup.Enabled {
		jobs := gojob.NewMemoryQueue(cfg.Cleanup.QueueCapacity)
		defer jobs.Close()
		policy := cleanupPolicy(cfg.Cleanup)
		serviceOpts = append(serviceOpts, core.WithCleanupScheduler(gojob.NewCleanupScheduler(gojob.NewEnqueuerAdapter(jobs))))
		worker = gojob.NewCleanupWorker(
			gojob.NewDequeuerAdapter(jobs, policy),
			connector,
			policy,
			gojob.WithWorkerHook(gojob.NewMetricsHook(metrics)),
			gojob.WithWorkerLogger(provider.GetLogger("contracts.cleanup")),
		)
	}

	service, err := core.NewService(core.Config{}, serviceOpts...)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	serviceCfg := service.Config()

	registry := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterEventCommands(registry, service)
	if err != nil {
		return fmt.Errorf("register event commands: %w", err)
	}
	defer subs.Unsubscribe()
	if err := registry.Initialize(); err != nil {
		return fmt.Errorf("initialize command registry: %w", err)
	}

	dispatcher := &inbound.Dispatcher{
		Offerings: gocommand.BusCommander[contractscommand.OfferingEventMessage]{},
		Quotes:    gocommand.BusCommander[contractscommand.QuoteEventMessage]{},
		Orders:    gocommand.BusCommander[contractscommand.OrderEventMessage]{},
		Store:     inbound.NewInMemoryClaimStore(),
	}
	listener := inbound.NewListener(dispatcher,
		inbound.WithListenerLogger(provider.GetLogger("contracts.inbound")),
		inbound.WithServiceName(serviceCfg.ServiceName),
	)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           listener.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Background work starts only once everything above is built.
	group, ctx := errgroup.WithContext(ctx)
	if worker != nil {
		group.Go(func() error {
			return worker.Run(ctx)
		})
	}

	group.Go(func() error {
		log.Info("listening for notifications",
			"addr", cfg.ListenAddr,
			"organization", serviceCfg.Organization.DID,
			"catalog_sync", serviceCfg.Features.CatalogSync,
			"negotiation", serviceCfg.Features.Negotiation,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cleanupPolicy(cfg CleanupConfig) gojob.RetryPolicy {
	policy := gojob.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	return policy
}
