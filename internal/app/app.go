package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/guardrails"
	"ShortsPublisher/internal/infrastructure/captions"
	"ShortsPublisher/internal/infrastructure/feed"
	"ShortsPublisher/internal/infrastructure/lease"
	"ShortsPublisher/internal/infrastructure/llm"
	"ShortsPublisher/internal/infrastructure/storage"
	"ShortsPublisher/internal/infrastructure/stt"
	"ShortsPublisher/internal/infrastructure/telegram"
	"ShortsPublisher/internal/infrastructure/threads"
	"ShortsPublisher/internal/logging"
	"ShortsPublisher/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	gate         *usecase.ApprovalGate
	bot          *telegram.ApprovalBot
	db           *sql.DB
	redis        *redis.Client
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	evaluator, err := guardrails.New(cfg.Guardrails)
	if err != nil {
		return nil, fmt.Errorf("build evaluator: %w", err)
	}

	prompt, err := usecase.LoadPrompt(cfg.Generator.PromptsDir, cfg.Generator.Platform)
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	store := storage.NewPostgresStore(db)
	leases := lease.NewRedisLeaseStore(redisClient)
	resume := lease.NewRedisResumeQueue(redisClient)
	bot := telegram.NewApprovalBot(cfg.Telegram, baseLogger)

	detector := usecase.NewDetector(
		feed.NewYouTubeFeed(httpClient, cfg.Feed.FeedURL, cfg.Feed.ChannelID),
		store, cfg.Feed, baseLogger)
	transcriber := usecase.NewTranscriber(
		captions.NewClient(httpClient, ""),
		stt.NewClient(cfg.SpeechToText),
		store, cfg.Captions, cfg.SpeechToText.Enabled, baseLogger)
	generator := usecase.NewGenerator(
		llm.NewClaudeClient(cfg.Generator),
		store, cfg.Generator, prompt, baseLogger)
	gate := usecase.NewApprovalGate(bot, store, resume, cfg.Workflow.MaxEditCycles, baseLogger)
	publisher := usecase.NewPostPublisher(threads.NewClient(cfg.Threads), store, baseLogger)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Detector:    detector,
		Transcriber: transcriber,
		Generator:   generator,
		Gate:        gate,
		Publisher:   publisher,
		Evaluator:   evaluator,
		Store:       store,
		Leases:      leases,
		Resume:      resume,
		Workflow:    cfg.Workflow,
		Tick:        cfg.Feed.PollInterval(),
		Logger:      baseLogger,
	})

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		orchestrator: orchestrator,
		gate:         gate,
		bot:          bot,
		db:           db,
		redis:        redisClient,
	}, nil
}

// Run starts the decision listener and the workflow loop, returning when
// the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.bot.Listen(gctx, a.gate.Resolve)
	})
	g.Go(func() error {
		return a.orchestrator.Run(gctx)
	})

	return g.Wait()
}

// Close releases database and redis connections.
func (a *Application) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("close database: %w", err)
	}
	if err := a.redis.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close redis: %w", err)
	}
	return firstErr
}
