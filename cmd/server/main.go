package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/attempt"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/database"
	"github.com/stemsi/exstem-mock/internal/event"
	"github.com/stemsi/exstem-mock/internal/handler"
	"github.com/stemsi/exstem-mock/internal/logger"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/program"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/router"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/session"
	"github.com/stemsi/exstem-mock/internal/validator"
	"github.com/stemsi/exstem-mock/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("event_relay", cfg.EventRelay).
		Msg("Starting ExStem Mock")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Attempt Backend ──────────────────────────────────────────
	store, closeStore, err := database.OpenKV(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open attempt store")
	}
	defer closeStore()

	// ─── Question Bank ─────────────────────────────────────────────────
	var bank questionbank.Provider = questionbank.Sample()
	if cfg.QuestionBankDir != "" {
		bank = questionbank.NewFileProvider(os.DirFS(cfg.QuestionBankDir))
		log.Info().Str("dir", cfg.QuestionBankDir).Msg("Using question bank directory")
	}

	// ─── Event Publishing ──────────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	events, broker, rdb := setupEvents(ctx, cfg, log)
	defer broker.Close()
	if rdb != nil {
		defer rdb.Close()
		relay := worker.NewRelayWorker(rdb, broker, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Start(workerCtx)
		}()
	}

	// ─── Initialize Services ──────────────────────────────────────────
	attempts := attempt.NewStore(store, cfg.AttemptNamespace, cfg.MaxStoredAttempts, log)
	programs := program.Defaults()
	sessionService := service.NewExamSessionService(programs, bank, attempts, events, session.SystemClock{}, log)
	attemptService := service.NewAttemptService(attempts, events, log)

	janitor := worker.NewSessionJanitor(sessionService, cfg.FinishedSessionTTL, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		janitor.Start(workerCtx)
	}()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Program: handler.NewProgramHandler(programs),
		Session: handler.NewSessionHandler(sessionService, log),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(sessionService, rdb, cfg.StoreDriver, log),
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, limiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Tear down live sessions; in-progress ones are abandoned, not saved.
	sessionService.Shutdown(shutdownCtx)

	// 3. Stop background workers; the relay flushes its last batch.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// setupEvents returns the publisher services write to, the broker publisher
// and, for the redis relay, the queue client. The broker is always non-nil.
func setupEvents(ctx context.Context, cfg *config.Config, log zerolog.Logger) (event.Publisher, event.Publisher, *redis.Client) {
	if cfg.EventRelay == config.RelayOff {
		return event.Nop{}, event.Nop{}, nil
	}

	broker, err := event.NewAMQPPublisher(cfg.AMQPURL, cfg.EventExchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
	}

	switch cfg.EventRelay {
	case config.RelayDirect:
		return broker, broker, nil
	case config.RelayRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis for the event relay")
		}
		return event.NewRedisQueuePublisher(rdb, config.WorkerKey.AttemptEventsQueue), broker, rdb
	default:
		log.Fatal().Str("event_relay", cfg.EventRelay).Msg("Unknown EVENT_RELAY")
		return nil, nil, nil
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
