package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/common"
	"github.com/ternarybob/figmaqa/internal/handlers"
	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/jobs"
	"github.com/ternarybob/figmaqa/internal/pipeline"
	"github.com/ternarybob/figmaqa/internal/services/export"
	"github.com/ternarybob/figmaqa/internal/services/figma"
	"github.com/ternarybob/figmaqa/internal/services/llm"
	"github.com/ternarybob/figmaqa/internal/storage"
)

const streamPollInterval = 500 * time.Millisecond

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Services
	FigmaClient *figma.Client
	OAuth       *figma.OAuth
	LLMFactory  *llm.ProviderFactory
	Generator   *llm.Generator
	Exporter    *export.Service

	// Runs
	Jobs    *jobs.Store
	Evictor *jobs.Evictor
	Driver  *pipeline.Driver

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	ConfigHandler    *handlers.ConfigHandler
	AnalyzeHandler   *handlers.AnalyzeHandler
	JobHandler       *handlers.JobHandler
	JobStreamHandler *handlers.JobStreamHandler
	AnalysisHandler  *handlers.AnalysisHandler
	FigmaHandler     *handlers.FigmaHandler
	OAuthHandler     *handlers.OAuthHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("default_level", cfg.Analysis.DefaultLevel).
		Str("default_model", cfg.Analysis.Model).
		Str("output_dir", cfg.Export.OutputDir).
		Bool("oauth_configured", cfg.Figma.OAuth.ClientID != "").
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the design client, generation, export and run services
func (a *App) initServices() error {
	fc := a.Config.Figma

	retry := figma.NewRetryPolicy()
	if fc.MaxRetries > 0 {
		retry.MaxAttempts = fc.MaxRetries
	}

	a.FigmaClient = figma.NewClient(
		figma.WithBaseURL(fc.BaseURL),
		figma.WithHTTPClient(&http.Client{Timeout: fc.Timeout}),
		figma.WithLogger(a.Logger),
		figma.WithRateLimit(fc.RateLimit),
		figma.WithRetryPolicy(retry),
		figma.WithBatchSizes(fc.NodeBatchSize, fc.ImageBatchSize),
		figma.WithConcurrency(fc.FetchConcurrency),
	)

	a.OAuth = figma.NewOAuth(figma.OAuthSettings{
		ClientID:     fc.OAuth.ClientID,
		ClientSecret: fc.OAuth.ClientSecret,
		RedirectURI:  fc.OAuth.RedirectURI,
		Scope:        fc.OAuth.Scope,
	}, nil, a.Logger)

	// Provider clients are created on first use, so missing API keys only
	// surface when a model of that provider is requested
	a.LLMFactory = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, a.Logger)
	a.Generator = llm.NewGenerator(
		a.LLMFactory,
		llm.NewHTTPImageLoader(nil),
		a.Config.Analysis.Model,
		a.Config.LLM.FallbackModels,
		a.Logger,
	)

	a.Exporter = export.NewService(a.Config.Export.OutputDir, a.Logger)

	a.Jobs = jobs.NewStore()
	a.Evictor = jobs.NewEvictor(a.Jobs, a.Config.Jobs.Retention, a.Logger)
	if err := a.Evictor.Start(a.Config.Jobs.EvictSchedule); err != nil {
		return fmt.Errorf("failed to start job evictor: %w", err)
	}

	a.Driver = pipeline.NewDriver(
		a.FigmaClient,
		a.Generator,
		a.StorageManager.AnalysisStorage(),
		a.Exporter,
		a.Jobs,
		pipeline.ConfigFromApp(a.Config),
		a.Logger,
	)

	a.Logger.Debug().
		Str("figma_base_url", fc.BaseURL).
		Int("node_batch_size", fc.NodeBatchSize).
		Int("image_batch_size", fc.ImageBatchSize).
		Str("llm_default_provider", string(a.Config.LLM.DefaultProvider)).
		Strs("fallback_models", a.Config.LLM.FallbackModels).
		Msg("Services initialized")

	return nil
}

// initHandlers builds the HTTP handlers
func (a *App) initHandlers() {
	analyses := a.StorageManager.AnalysisStorage()
	token := a.Config.Figma.Token

	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.ConfigHandler = handlers.NewConfigHandler(a.Logger, a.Config)
	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.Driver, analyses, token, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.Jobs, analyses, a.Logger)
	a.JobStreamHandler = handlers.NewJobStreamHandler(a.Jobs, streamPollInterval, a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(analyses, a.Exporter, a.Logger)
	a.FigmaHandler = handlers.NewFigmaHandler(a.FigmaClient, token, a.Logger)
	a.OAuthHandler = handlers.NewOAuthHandler(a.OAuth, a.Config.Figma.OAuth.PostLoginRedirect, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close stops background work and releases the database
func (a *App) Close() error {
	if a.Evictor != nil {
		a.Evictor.Stop()
		a.Logger.Info().Msg("Job evictor stopped")
	}

	if a.LLMFactory != nil {
		if err := a.LLMFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM clients")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
