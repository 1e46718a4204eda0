package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"socratic-chat/internal/config"
	"socratic-chat/internal/handlers"
	"socratic-chat/internal/logger"
	"socratic-chat/internal/markdown"
	"socratic-chat/internal/metrics"
	"socratic-chat/internal/prompt"
	"socratic-chat/internal/router"
	"socratic-chat/internal/services"
	"socratic-chat/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func main() {
	Execute()
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// app holds everything run needs once the wiring is done.
type app struct {
	server *http.Server
	hub    *websocket.Hub
	log    *zap.Logger
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	// ──── Step 1: System Prompt ────
	systemPrompt, err := prompt.Load(cfg.SystemPromptFile)
	if err != nil {
		return nil, err
	}
	log.Info("system prompt loaded", zap.Int("bytes", len(systemPrompt)))

	// ──── Step 2: Completion Provider ────
	var provider services.Provider
	switch cfg.Provider {
	case config.ProviderGemini:
		provider = services.NewGeminiProvider(cfg.GeminiModel, cfg.APIKey)
	default:
		provider = services.NewOpenAIProvider(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.UpstreamTimeout)
	}
	if cfg.APIKey() == "" {
		// Not fatal: the relay answers 500 until the secret is provided.
		log.Warn("completion API key is not set", zap.String("env", cfg.APIKeyEnv))
	}
	log.Info("completion provider ready", zap.String("provider", provider.Name()))

	// ──── Step 3: Services ────
	m := metrics.New()
	chatService := services.NewChatService(
		provider,
		systemPrompt,
		cfg.HistoryWindow,
		services.SamplingParams{
			Temperature:      cfg.Temperature,
			MaxTokens:        cfg.MaxTokens,
			TopP:             cfg.TopP,
			FrequencyPenalty: cfg.FrequencyPenalty,
			PresencePenalty:  cfg.PresencePenalty,
		},
		m,
		log,
	)

	// ──── Step 4: Handlers and WebSocket Hub ────
	renderer := markdown.NewRenderer()
	chatHandler := handlers.NewChatHandler(chatService, renderer, m, log)
	hub := websocket.NewHub(chatService, renderer, m, cfg.FrontendURL, log)

	// ──── Step 5: HTTP Server ────
	r := router.New(chatHandler, hub.HandleWebSocket, m.Handler(), log, cfg.FrontendURL)

	// Completions can be slow; the write deadline has to outlast them.
	writeTimeout := 5 * time.Minute
	if cfg.UpstreamTimeout > 0 {
		writeTimeout = cfg.UpstreamTimeout + 15*time.Second
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &app{server: server, hub: hub, log: log}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.serve(ctx)
}

// serve runs the HTTP server until ctx is done, then shuts it down.
func (a *app) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server ready", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown.
		a.hub.Close()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
