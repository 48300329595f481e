package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"NewsRelay/internal/caption"
	"NewsRelay/internal/config"
	"NewsRelay/internal/infrastructure/parser"
	"NewsRelay/internal/infrastructure/storage"
	"NewsRelay/internal/infrastructure/telegram"
	"NewsRelay/internal/logging"
	"NewsRelay/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	store    *storage.SQLiteRepository
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New validates cfg and builds every adapter. Nothing is fetched or posted
// until Run.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(nil, cfg.Logging.Level)
	}

	// NewNotifier calls getMe, so a bad token fails here before the store is touched.
	notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.Channel, telegram.Options{
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Timeout:     cfg.HTTP.Timeout,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	pattern := parser.NewArticlePattern(cfg.Index.PathPrefix)
	collector := parser.NewIndexCollector(parser.IndexOptions{
		BaseURL:     cfg.Index.URL,
		Pattern:     pattern,
		Pages:       cfg.Index.Pages,
		PerPageHint: cfg.Index.PerPageHint,
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTP.Timeout,
	}, baseLogger.With("component", "collector"))
	fetcher := parser.NewArticleFetcher(
		&http.Client{Timeout: cfg.HTTP.Timeout},
		cfg.HTTP.UserAgent,
		baseLogger.With("component", "fetcher"),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Collector: collector,
		Fetcher:   fetcher,
		Store:     store,
		Publisher: notifier,
		Formatter: caption.NewFormatter(cfg.Caption.Header, cfg.Caption.Location()),
		Tagger:    pattern,
		Policy: usecase.Policy{
			MaxPosts: cfg.Posting.MaxPerRun,
			Window:   cfg.Posting.Window(),
			Delay:    cfg.Posting.Delay,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, store: store, pipeline: pipeline, logger: baseLogger}, nil
}

// Run performs a single pass and closes the store.
func (a *Application) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := a.store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	if err := a.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	records, err := a.store.Count(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("store opened", "path", a.cfg.Database.Path, "records", records)

	report, err := a.pipeline.Run(ctx)
	a.logger.Info("run finished",
		"collected", report.Collected,
		"fresh", report.Fresh,
		"examined", report.Examined,
		"posted", report.Posted,
		"skipped", report.Skipped,
	)
	return err
}
