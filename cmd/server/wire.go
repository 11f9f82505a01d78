package main

import (
	"context"
	"fmt"
	"net/http"

	"mail-agent/backend/internal/auth"
	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/repository"
	"mail-agent/backend/internal/services"
)

// app is every long-lived component, built once at startup. Notifier and
// provisioner stay nil when their own backends are not configured; the
// routes that need them answer 503 while the rest of the service keeps
// working.
type app struct {
	store       repository.Store
	generators  *services.Generators
	notifier    services.Notifier
	provisioner services.Provisioner
	coordinator *services.Coordinator
	auth        *auth.Auth
}

func (a *app) Close() error {
	return a.store.Close()
}

func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	store, err := repository.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}
	if cfg.DB.MigrateOnStart {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info("Record store ready", "driver", cfg.DB.Driver)

	metrics := services.NewMetrics(nil)
	a := &app{store: store, generators: buildGenerators(cfg.LLM, logger)}

	if n, err := buildNotifier(ctx, cfg, logger, metrics); err != nil {
		logger.Warn("Notifier unavailable; mail routes will answer 503", "error", err)
	} else {
		a.notifier = n
	}

	// Accounts can be created without mail; credentials are then reported
	// as not delivered instead of disabling onboarding.
	if p, err := buildProvisioner(ctx, cfg, a.notifier, logger, metrics); err != nil {
		logger.Warn("Provisioner unavailable; onboarding routes will answer 503", "error", err)
	} else {
		a.provisioner = p
	}

	a.coordinator, err = services.NewCoordinator(store, a.generators, a.notifier, a.provisioner, logger, metrics,
		services.CoordinatorOptions{
			DefaultRecipient:   cfg.Workflow.DefaultRecipient,
			LookupLimit:        cfg.Workflow.LookupLimit,
			BulkWorkers:        cfg.Workflow.BulkWorkers,
			BulkRatePerSecond:  cfg.Workflow.BulkRatePerSecond,
			UseModelClassifier: cfg.Workflow.UseModelClassifier,
		})
	if err != nil {
		store.Close()
		return nil, err
	}

	a.auth, err = auth.New(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("auth initialization failed: %w", err)
	}
	if a.auth.Bypass() {
		logger.Warn("DEV auth bypass enabled: every request is authenticated")
	}

	logger.Info("Service layer initialized",
		"generators", a.generators.Available(),
		"default_service", a.generators.Default(),
		"notifier", a.notifier != nil,
		"provisioner", a.provisioner != nil,
	)
	return a, nil
}

func buildGenerators(cfg config.LLMConfig, logger *logging.Logger) *services.Generators {
	gens := services.NewGenerators(cfg.DefaultService)

	if completer, err := services.NewAnthropicCompleter(cfg.Anthropic); err != nil {
		gens.MarkUnavailable(services.ServiceAnthropic, err)
		logger.Debug("generator unavailable", "service", services.ServiceAnthropic, "error", err)
	} else {
		gens.Register(services.ServiceAnthropic, services.NewLLMGenerator(services.ServiceAnthropic, completer, cfg.Timeout))
	}

	if client, err := services.NewHTTPMLClient(cfg.Sidecar.URL, &http.Client{Timeout: cfg.Timeout}); err != nil {
		gens.MarkUnavailable(services.ServiceSidecar, err)
		logger.Debug("generator unavailable", "service", services.ServiceSidecar, "error", err)
	} else {
		gens.Register(services.ServiceSidecar, services.NewLLMGenerator(services.ServiceSidecar, client, cfg.Timeout))
	}

	if cfg.Offline.Enabled {
		gens.Register(services.ServiceOffline, services.NewOfflineGenerator())
	}

	if _, _, err := gens.Resolve(""); err != nil {
		logger.Warn("Default content generator unavailable; requests must name a service", "default", cfg.DefaultService, "error", err)
	}
	return gens
}

func buildNotifier(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *services.Metrics) (*services.MailNotifier, error) {
	transport, err := services.NewMailTransport(cfg.SMTP, logger)
	if err != nil {
		return nil, err
	}
	if cfg.MailArchive.Enabled {
		client, err := services.NewS3Client(ctx, cfg.MailArchive)
		if err != nil {
			return nil, err
		}
		transport = services.NewArchiveTransport(transport, client, cfg.MailArchive.Bucket, cfg.MailArchive.Prefix, logger)
		logger.Info("Mail archive enabled", "bucket", cfg.MailArchive.Bucket, "prefix", cfg.MailArchive.Prefix)
	}
	return services.NewMailNotifier(cfg.SMTP, transport, logger, metrics)
}

func buildProvisioner(ctx context.Context, cfg *config.Config, notifier services.Notifier, logger *logging.Logger, metrics *services.Metrics) (*services.AccountProvisioner, error) {
	directory, err := services.NewDirectory(ctx, cfg.Directory)
	if err != nil {
		return nil, err
	}
	if cfg.Directory.Mode != "graph" {
		logger.Warn("Directory running in simulated mode: no real accounts are created")
	}
	return services.NewAccountProvisioner(directory, notifier, cfg.Provisioning, services.ProvisionerOptions{
		SimulateOnFailure: cfg.Directory.SimulateOnFailure,
		BulkWorkers:       cfg.Workflow.BulkWorkers,
		BulkRatePerSecond: cfg.Workflow.BulkRatePerSecond,
	}, logger, metrics)
}
