// Package main provides the entry point for the citation enrichment Temporal worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/helixir/citation-enrichment-service/internal/config"
	"github.com/helixir/citation-enrichment-service/internal/database"
	"github.com/helixir/citation-enrichment-service/internal/events"
	"github.com/helixir/citation-enrichment-service/internal/observability"
	"github.com/helixir/citation-enrichment-service/internal/registries/crossref"
	"github.com/helixir/citation-enrichment-service/internal/registries/openalex"
	"github.com/helixir/citation-enrichment-service/internal/registries/orcid"
	"github.com/helixir/citation-enrichment-service/internal/repository"
	"github.com/helixir/citation-enrichment-service/internal/temporal"
	"github.com/helixir/citation-enrichment-service/internal/temporal/activities"
	"github.com/helixir/citation-enrichment-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("citation-enrichment-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Create repositories.
	citationRepo := repository.NewPgCitationRepository(db)

	// Create registry clients. Disabled registries still get a client so the
	// activities can report them as skipped rather than failing lookups.
	crossrefClient := crossref.New(crossref.Config{
		BaseURL:   cfg.Registries.Crossref.BaseURL,
		MailTo:    cfg.Registries.Crossref.MailTo,
		APIToken:  cfg.Registries.Crossref.APIToken,
		Timeout:   cfg.Registries.Crossref.Timeout,
		RateLimit: cfg.Registries.Crossref.RateLimit,
		Enabled:   cfg.Registries.Crossref.Enabled,
	})
	openalexClient := openalex.New(openalex.Config{
		BaseURL:   cfg.Registries.OpenAlex.BaseURL,
		MailTo:    cfg.Registries.OpenAlex.MailTo,
		Timeout:   cfg.Registries.OpenAlex.Timeout,
		RateLimit: cfg.Registries.OpenAlex.RateLimit,
		Enabled:   cfg.Registries.OpenAlex.Enabled,
	})
	orcidClient := orcid.New(orcid.Config{
		BaseURL:   cfg.Registries.ORCID.BaseURL,
		APIToken:  cfg.Registries.ORCID.APIToken,
		MailTo:    cfg.Registries.ORCID.MailTo,
		Timeout:   cfg.Registries.ORCID.Timeout,
		RateLimit: cfg.Registries.ORCID.RateLimit,
		Enabled:   cfg.Registries.ORCID.Enabled,
	})
	logger.Info().
		Bool("crossref", cfg.Registries.Crossref.Enabled).
		Bool("openalex", cfg.Registries.OpenAlex.Enabled).
		Bool("orcid", cfg.Registries.ORCID.Enabled).
		Msg("registry clients created")

	// Create the Kafka event publisher if configured.
	metrics := observability.NewMetrics("citation_enrichment")
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, metrics, logger)
		defer func() {
			if closeErr := kafkaPublisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close event publisher")
			}
		}()
		publisher = kafkaPublisher
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher initialized")
	}

	// Create Temporal client.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create WorkerManager.
	workerConfig := temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue)
	manager, err := temporal.NewWorkerManager(temporalClient, workerConfig)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	// Register the workflow under its stable public name so starters are
	// insulated from Go function renames.
	manager.RegisterWorkflowWithName(workflows.CitationEnrichmentWorkflow, temporal.EnrichmentWorkflowName)

	// Create and register all activity structs.
	casRetryLimit := cfg.Pipeline.CasRetryLimit
	extractionActivities := activities.NewExtractionActivities(citationRepo, casRetryLimit, metrics)
	bibliographicActivities := activities.NewBibliographicActivities(citationRepo, crossrefClient, openalexClient, casRetryLimit, metrics)
	identityActivities := activities.NewIdentityActivities(citationRepo, orcidClient, casRetryLimit, metrics)
	lifecycleActivities := activities.NewLifecycleActivities(citationRepo, publisher, casRetryLimit, metrics)

	manager.RegisterActivity(extractionActivities)
	manager.RegisterActivity(bibliographicActivities)
	manager.RegisterActivity(identityActivities)
	manager.RegisterActivity(lifecycleActivities)

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting temporal worker")

	// Start the worker and block until context is cancelled.
	if err := manager.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}

	return nil
}
