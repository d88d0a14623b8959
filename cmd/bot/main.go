package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/annasalon/booking-assistant/internal/assistant"
	"github.com/annasalon/booking-assistant/internal/booking"
	"github.com/annasalon/booking-assistant/internal/bot"
	"github.com/annasalon/booking-assistant/internal/catalog"
	"github.com/annasalon/booking-assistant/internal/config"
	"github.com/annasalon/booking-assistant/internal/console"
	"github.com/annasalon/booking-assistant/internal/i18n"
	"github.com/annasalon/booking-assistant/internal/observability/metrics"
	"github.com/annasalon/booking-assistant/internal/reminder"
	"github.com/annasalon/booking-assistant/internal/session"
	"github.com/annasalon/booking-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bookingMetrics := metrics.NewBookingMetrics(nil)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, history and durable reminders disabled", "error", err)
			redisClient.Close()
			redisClient = nil
		}
	}

	store := session.NewStore(cfg.SessionsPath, cfg.DefaultLanguage, logger)
	if err := store.LoadAll(); err != nil {
		logger.Error("failed to load sessions", "error", err)
		os.Exit(1)
	}
	logger.Info("sessions loaded", "count", store.Len(), "path", cfg.SessionsPath)

	cat := catalog.Default()
	machine := booking.NewMachine(cat, booking.Config{
		WindowDays:   cfg.BookingWindowDays,
		Slots:        booking.HourlySlots(cfg.OpeningHour, cfg.ClosingHour),
		ReminderLead: cfg.ReminderLead,
		Location:     time.Local,
	}, bookingMetrics)

	queue := bot.NewMemoryQueue(256)
	adapter := console.NewAdapter(queue, os.Stdin, os.Stdout, 1, userName(), logger)

	workerOpts := []bot.WorkerOption{
		bot.WithMetrics(bookingMetrics),
		bot.WithConcurrency(cfg.WorkerCount),
	}

	if cfg.GeminiAPIKey != "" {
		llm, err := assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize gemini client", "error", err)
			os.Exit(1)
		}
		defer llm.Close()

		history := assistant.NewHistoryStore(redisClient)
		svc := assistant.NewService(llm, history, cat, logger,
			assistant.WithTimeout(cfg.AssistantTimeout),
			assistant.WithHistoryLimit(int64(cfg.HistoryLimit)),
			assistant.WithMetrics(bookingMetrics),
		)
		workerOpts = append(workerOpts, bot.WithAssistant(svc))
		logger.Info("assistant enabled", "model", cfg.GeminiModelID, "history", redisClient != nil)
	} else {
		logger.Warn("GEMINI_API_KEY not set, free-text answering disabled")
	}

	// The scheduler delivers through the worker and the worker schedules
	// through the scheduler; the delivery closure breaks the cycle.
	var worker *bot.Worker
	scheduler := reminder.NewScheduler(reminder.NewStore(redisClient),
		func(ctx context.Context, payload reminder.Payload) error {
			return worker.DeliverReminder(ctx, payload)
		}, logger, bookingMetrics)
	workerOpts = append(workerOpts, bot.WithScheduler(scheduler))
	worker = bot.NewWorker(queue, adapter, machine, store, i18n.New(), logger, workerOpts...)

	if err := scheduler.Rearm(ctx); err != nil {
		logger.Warn("failed to rearm persisted reminders", "error", err)
	}

	opsServer := newOpsServer(cfg.OpsPort)
	go func() {
		logger.Info("ops server listening", "port", cfg.OpsPort)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", "error", err)
		}
	}()

	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(ctx) }()

	go func() {
		if err := adapter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("console input closed", "error", err)
		}
		cancel()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", "error", err)
	}

	select {
	case <-workerDone:
		logger.Info("worker stopped")
	case <-shutdownCtx.Done():
		logger.Error("worker shutdown timed out", "error", shutdownCtx.Err())
	}

	if err := store.SaveAll(); err != nil {
		logger.Error("final session snapshot failed", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
}

func newOpsServer(port string) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func userName() string {
	if name := os.Getenv("CONSOLE_USER_NAME"); name != "" {
		return name
	}
	return "Guest"
}
