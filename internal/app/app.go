// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Pipeline mode: Scheduled feed aggregation, clustering and dispatch
//   - Worker mode: Queue consumer generating five-level research content
//   - Preview mode: One-shot dry run printing articles or topics to stdout
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/lexica-app/lexica-pipeline/internal/core/llm"
	"github.com/lexica-app/lexica-pipeline/internal/ingest/feeds"
	"github.com/lexica-app/lexica-pipeline/internal/platform/config"
	"github.com/lexica-app/lexica-pipeline/internal/platform/observability"
	"github.com/lexica-app/lexica-pipeline/internal/platform/worker"
	"github.com/lexica-app/lexica-pipeline/internal/process/pipeline"
	"github.com/lexica-app/lexica-pipeline/internal/process/research"
	db "github.com/lexica-app/lexica-pipeline/internal/storage"
)

// Preview kinds accepted by RunPreview.
const (
	PreviewArticles = "articles"
	PreviewTopics   = "topics"
)

const pipelineWorkerName = "pipeline"

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunPipeline runs the scheduled ingestion pipeline. With once set it performs
// a single pass and exits, which is the shape a cron-style deployment uses.
func (a *App) RunPipeline(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("Starting pipeline mode")

	p := a.newPipeline()

	if once {
		dispatched, err := p.Run(ctx)
		if err != nil {
			observability.PipelineRuns.WithLabelValues("error").Inc()

			return fmt.Errorf("pipeline run once: %w", err)
		}

		observability.PipelineRuns.WithLabelValues("ok").Inc()
		a.logger.Info().Int("dispatched", dispatched).Msg("pipeline pass complete")

		return nil
	}

	return worker.Loop(ctx, worker.Config{
		Name:         pipelineWorkerName,
		PollInterval: a.cfg.PipelineInterval,
		Process: func(ctx context.Context) error {
			if _, err := p.Run(ctx); err != nil {
				observability.PipelineRuns.WithLabelValues("error").Inc()

				return err
			}

			observability.PipelineRuns.WithLabelValues("ok").Inc()

			return nil
		},
		Logger: a.logger,
	})
}

// RunWorker runs the research queue consumer.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Msg("Starting worker mode")

	w := research.NewWorker(a.database, a.database, a.newLLMClient(), research.Config{
		BatchSize:           a.cfg.WorkerBatchSize,
		PollInterval:        a.cfg.WorkerPollInterval,
		VisibilityTimeout:   a.cfg.QueueVisibilityTimeout,
		MaxReceiveCount:     a.cfg.QueueMaxReceiveCount,
		ReconcileInterval:   a.cfg.ReconcileInterval,
		ReconcileStaleAfter: a.cfg.ReconcileStaleAfter,
	}, a.logger)

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("research worker run: %w", err)
	}

	return nil
}

// RunPreview performs a dry pipeline pass and prints the result as JSON to
// stdout. Nothing is stored or enqueued.
func (a *App) RunPreview(ctx context.Context, kind string) error {
	a.logger.Info().Str("kind", kind).Msg("Starting preview mode")

	p := a.newPipeline()

	var out any

	switch kind {
	case PreviewArticles:
		articles, err := p.PreviewArticles(ctx)
		if err != nil {
			return fmt.Errorf("preview articles: %w", err)
		}

		out = articles
	case PreviewTopics:
		clusters, err := p.PreviewTopics(ctx)
		if err != nil {
			return fmt.Errorf("preview topics: %w", err)
		}

		out = clusters
	default:
		return fmt.Errorf("unknown preview kind %q", kind)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode preview output: %w", err)
	}

	return nil
}

func (a *App) newPipeline() *pipeline.Pipeline {
	aggregator := feeds.NewAggregator(a.cfg.FeedWindow, a.cfg.FeedFetchTimeout, a.logger)

	return pipeline.New(a.database, a.database, a.newLLMClient(), aggregator, a.logger)
}

func (a *App) newLLMClient() llm.Client {
	return llm.New(a.cfg, a.logger)
}
