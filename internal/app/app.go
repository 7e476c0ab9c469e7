package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/api/handlers"
	"github.com/markdave123-py/inboxpress/internal/config"
	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/core/contentstore"
	"github.com/markdave123-py/inboxpress/internal/core/converter"
	db "github.com/markdave123-py/inboxpress/internal/core/database"
	"github.com/markdave123-py/inboxpress/internal/core/ingestion_engine"
	"github.com/markdave123-py/inboxpress/internal/core/llm"
	objectclient "github.com/markdave123-py/inboxpress/internal/core/object-client"
	"github.com/markdave123-py/inboxpress/internal/logger"
	"github.com/markdave123-py/inboxpress/internal/models"
	"github.com/markdave123-py/inboxpress/internal/pipeline"
	"github.com/markdave123-py/inboxpress/internal/retry"
	"github.com/markdave123-py/inboxpress/internal/services"
)

type App struct {
	Watcher *pipeline.Watcher
	Server  *Server // nil unless STATUS_ADDR is set

	log     *zap.Logger
	closers []io.Closer
}

// NewApp wires the pipeline from cfg. cfg must have passed Validate.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	layout, err := pipeline.NewLayout(cfg.WatchDir)
	if err != nil {
		return nil, err
	}
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	audit, err := logger.OpenAuditLog(cfg.AuditLogPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, audit)

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dbClient)
	log.Info("database initialized and ready")

	embedder, err := a.newEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	completion, err := a.newCompletionChain(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := contentstore.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey, log)
	if err != nil {
		return nil, err
	}

	router := converter.NewService(converter.ExecRunner{}, converter.Options{
		ToolTimeout:     cfg.ConvertTimeout,
		OCRLang:         cfg.OCRLang,
		OCRMaxPages:     cfg.OCRMaxPages,
		WhisperModel:    cfg.WhisperModel,
		WhisperLanguage: cfg.WhisperLanguage,
	}, log)

	vectorizer := ingestion_engine.NewVectorizer(dbClient, embedder, ingestion_engine.IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatchSize,
	}, log)

	topics := services.NewTopicService(dbClient, completion, store, services.TopicConfig{
		BatchSize:  cfg.TopicBatchSize,
		MaxBatches: cfg.TopicMaxBatches,
		Model:      cfg.TopicModel,
		UserID:     cfg.TopicUserID,
	}, log)

	articles := services.NewArticleService(dbClient, embedder, completion, store, services.ArticleConfig{
		Model:    cfg.TopicModel,
		AuthorID: cfg.ArticleAuthorID,
		Category: cfg.ArticleCategory,
	}, log)

	var archiver pipeline.Archiver
	if cfg.ArchiveEnabled() {
		s3, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			return nil, err
		}
		archiver = objectclient.NewRecordArchiver(s3, log)
	}

	reporter := pipeline.NewReporter(os.Stdout)
	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Layout:     layout,
		Router:     router,
		Index:      dbClient,
		Vectorizer: vectorizer,
		Topics:     topics,
		Articles:   articles,
		Mover: pipeline.NewMover(layout.Backup(), retry.Policy{
			MaxAttempts: cfg.MoveMaxAttempts,
			Base:        cfg.MoveBackoffBase,
		}, log),
		Records:  pipeline.NewRecordStore(layout),
		Audit:    audit,
		Reporter: reporter,
		Archiver: archiver,
		Log:      log,
		Timeouts: pipeline.Timeouts{
			Convert:   cfg.ConvertTimeout,
			Vectorize: cfg.VectorizeTimeout,
			Topics:    cfg.TopicsTimeout,
			Articles:  cfg.ArticlesTimeout,
		},
		ArticlesPerRun: cfg.ArticlesPerRun,
	})
	a.Watcher = pipeline.NewWatcher(layout, orch, converter.Classify, cfg.SettleDelay, reporter, log)

	if cfg.StatusAddr != "" {
		progress := func() (models.Progress, error) { return pipeline.Progress(layout, converter.Classify) }
		a.Server = NewServer(cfg.StatusAddr, cfg.CORSOrigins,
			handlers.NewStatusHandler(dbClient, progress, log),
			handlers.NewSearchHandler(dbClient, embedder, log),
			log,
		)
	}
	return a, nil
}

func (a *App) newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "openai":
		return llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel)
	default:
		emb, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, emb)
		return emb, nil
	}
}

// newCompletionChain orders the configured providers DeepSeek, OpenAI, Gemini.
func (a *App) newCompletionChain(ctx context.Context, cfg *config.Config) (*llm.FallbackLLM, error) {
	var providers []llm.Provider
	if cfg.DeepSeekAPIKey != "" {
		p, err := llm.NewDeepSeekLLM(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.OpenAIAPIKey != "" {
		p, err := llm.NewOpenAILLM(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.AIAPIKey != "" {
		p, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p)
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		a.log.Warn("no completion provider configured; topics and articles will fail")
	}
	chain := llm.NewFallbackLLM(a.log, providers...)
	a.log.Info("completion chain ready", zap.Strings("providers", chain.Providers()))
	return chain, nil
}

// Run dispatches on the run mode. It returns nil when ctx is cancelled.
func (a *App) Run(ctx context.Context, one bool, mode string) error {
	switch {
	case one:
		_, err := a.Watcher.ProcessOne(ctx)
		return err
	case mode == "sweep":
		_, err := a.Watcher.Sweep(ctx)
		return err
	default:
		return a.Watcher.Watch(ctx)
	}
}

func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("close", zap.Error(err))
	}
}
