// TechAssist - ticket resolution assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/techassist/internal/api"
	"github.com/ashureev/techassist/internal/assistant"
	"github.com/ashureev/techassist/internal/chat"
	"github.com/ashureev/techassist/internal/config"
	"github.com/ashureev/techassist/internal/identity"
	"github.com/ashureev/techassist/internal/middleware"
	"github.com/ashureev/techassist/internal/store"
	"github.com/ashureev/techassist/internal/telemetry"
	"github.com/ashureev/techassist/internal/transcript"
	"github.com/ashureev/techassist/internal/worknotes"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := telemetry.NewLogger(telemetry.LogConfig{Level: cfg.LogLevel, File: cfg.LogFile}, os.Stdout)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"store", cfg.Store.Driver, "assistant_transport", cfg.Assistant.Transport)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.TraceConfig{
		TracePath:   cfg.Telemetry.TracePath,
		MetricsPath: cfg.Telemetry.MetricsPath,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("Failed to flush telemetry", "error", err)
		}
	}()

	// Initialize dependencies.
	sessionStore, err := store.Open(store.Options{
		Driver:        store.Driver(cfg.Store.Driver),
		DBPath:        cfg.Store.DBPath,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sessionStore.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = sessionStore.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return err
	}
	slog.Info("Session store connected", "driver", cfg.Store.Driver)

	client, err := newAssistantClient(cfg.Assistant, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	transcripts, err := transcript.New(transcript.Config{
		Enabled:         cfg.ConversationLog.Enabled,
		Dir:             cfg.ConversationLog.Dir,
		GlobalEnabled:   cfg.ConversationLog.GlobalEnabled,
		GlobalPath:      cfg.ConversationLog.GlobalPath,
		GlobalMaxSizeMB: cfg.ConversationLog.GlobalMaxSizeMB,
		QueueSize:       cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = transcripts.Close() }()

	hub := worknotes.NewHub(logger)

	sessions := chat.NewRegistry(chat.Options{
		Store:       sessionStore,
		Assistant:   client,
		Publisher:   hub,
		Recorder:    transcripts,
		Logger:      logger,
		CallTimeout: cfg.Assistant.Timeout,
	}, cfg.SessionIdleTTL)
	defer sessions.Close()

	sessions.StartEvictor(ctx, time.Minute)

	// Initialize handlers.
	baseHandler := api.NewHandler(sessions, sessionStore, logger)
	healthHandler := api.NewHealthHandler(baseHandler)
	assistHandler := api.NewAssistHandler(baseHandler)
	wsHandler := worknotes.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	assistHandler.RegisterRoutes(r)
	r.Get("/ws/worknotes", wsHandler.ServeHTTP)

	// POST /messages blocks for up to the assistant timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server stopped successfully", "transcript_events_dropped", transcripts.Dropped())
	return nil
}

func newAssistantClient(cfg config.AssistantConfig, logger *slog.Logger) (*assistant.Client, error) {
	var auth assistant.Authenticator = assistant.NoAuth{}
	if cfg.AuthEnabled {
		auth = assistant.BearerToken{Token: cfg.AuthToken}
	}

	var (
		transport assistant.Transport
		err       error
	)
	switch cfg.Transport {
	case "grpc":
		grpcCfg := assistant.DefaultGRPCConfig(cfg.GRPCAddr)
		grpcCfg.Auth = auth
		slog.Info("Connecting to assistant backend via gRPC", "address", cfg.GRPCAddr)
		transport, err = assistant.NewGRPCTransport(grpcCfg, logger)
	default:
		slog.Info("Using assistant backend over HTTP", "base_url", cfg.BaseURL)
		transport, err = assistant.NewHTTPTransport(assistant.HTTPConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Auth:    auth,
		}, logger)
	}
	if err != nil {
		return nil, err
	}
	return assistant.NewClient(transport, logger), nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
