// Command mentoria runs the MentorIA chat backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mhttp "github.com/redmag-edu/mentoria/internal/adapter/http"
	"github.com/redmag-edu/mentoria/internal/adapter/litellm"
	"github.com/redmag-edu/mentoria/internal/adapter/matching"
	mnats "github.com/redmag-edu/mentoria/internal/adapter/nats"
	"github.com/redmag-edu/mentoria/internal/adapter/otel"
	"github.com/redmag-edu/mentoria/internal/adapter/postgres"
	"github.com/redmag-edu/mentoria/internal/adapter/ristretto"
	"github.com/redmag-edu/mentoria/internal/adapter/ws"
	"github.com/redmag-edu/mentoria/internal/config"
	"github.com/redmag-edu/mentoria/internal/logger"
	"github.com/redmag-edu/mentoria/internal/middleware"
	"github.com/redmag-edu/mentoria/internal/port/events"
	"github.com/redmag-edu/mentoria/internal/resilience"
	"github.com/redmag-edu/mentoria/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"message_cap", cfg.Chat.MessageCap,
		"window", cfg.Chat.Window,
	)

	ctx := context.Background()

	shutdownOtel, err := otel.Init(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(shutdownCtx)
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	slog.Info("migrations applied", "version", version)

	var publisher events.Publisher
	if cfg.NATS.Enabled {
		queue, err := mnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		publisher = queue
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	llmClient := litellm.NewClient(cfg.LLM)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	indexClient := matching.NewClient(cfg.Index)
	indexClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	kb, err := service.LoadKnowledgeBase()
	if err != nil {
		return fmt.Errorf("knowledge base: %w", err)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	router := service.NewRouter(llmClient, kb, cfg.LLM.RouterModel, cfg.LLM.MaxTokens, metrics, log)
	specialist := service.NewSpecialist(llmClient, indexClient, kb,
		cfg.LLM.SpecialistModel, cfg.LLM.EmbeddingModel, cfg.LLM.MaxTokens, cfg.Index.TopK, metrics, log)
	assembler := service.NewContextAssembler(store, cfg.Chat.Window, cfg.Chat.MessageCap, log)
	chatSvc := service.NewChatService(store, l1, assembler, router, specialist,
		publisher, hub, metrics, cfg.Cache.ProfileTTL, log)
	convSvc := service.NewConversationService(store, log)
	contentSvc := service.NewContentService(indexClient, llmClient, cfg.LLM.EmbeddingModel, log)

	handlers := mhttp.NewHandlers(chatSvc, convSvc, contentSvc, []mhttp.ReadyCheck{
		{Name: "postgres", Fn: pool.Ping},
		{Name: "litellm", Fn: func(ctx context.Context) error {
			ok, err := llmClient.Health(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("litellm reports unhealthy")
			}
			return nil
		}},
		{Name: "index", Fn: func(ctx context.Context) error {
			ok, err := indexClient.Health(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("index reports unhealthy")
			}
			return nil
		}},
	})

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(mhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(mhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(mhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(90 * time.Second))
	r.Use(limiter.Handler)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.Auth(cfg.Auth.TokenHashes, cfg.Auth.Enabled))

	mhttp.MountRoutes(r, handlers, hub)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
