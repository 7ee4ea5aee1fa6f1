// Package main is the entry point for the chat relay API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chatrelay/internal/config"
	"github.com/capitalize-ai/chatrelay/internal/handler"
	"github.com/capitalize-ai/chatrelay/internal/ledger"
	"github.com/capitalize-ai/chatrelay/internal/llm"
	"github.com/capitalize-ai/chatrelay/internal/middleware"
	"github.com/capitalize-ai/chatrelay/internal/scheduler"
	"github.com/capitalize-ai/chatrelay/internal/service"
	"github.com/capitalize-ai/chatrelay/internal/store"
	"github.com/capitalize-ai/chatrelay/internal/store/memory"
	"github.com/capitalize-ai/chatrelay/internal/store/natskv"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
	"github.com/capitalize-ai/chatrelay/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting chat relay")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatrelay", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Persistence backend
	var backend store.Backend
	switch cfg.Backend {
	case "nats":
		natsBackend, err := natskv.Connect(ctx, natskv.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS")
			os.Exit(1)
		}
		defer natsBackend.Close()
		backend = natsBackend
	default:
		backend = memory.NewBackend()
	}

	// Completion gateway
	apiKey := cfg.OpenAIAPIKey
	if llm.Provider(cfg.Provider) == llm.ProviderAnthropic {
		apiKey = cfg.AnthropicAPIKey
	}
	gateway, err := llm.NewGateway(llm.Provider(cfg.Provider), apiKey)
	if err != nil {
		log.Error("failed to create LLM gateway")
		os.Exit(1)
	}

	// Services
	credits := ledger.New(backend.Ledgers(), cfg.MonthlyCredits, log)
	conversationSvc := service.NewConversationService(backend, log)
	exchangeSvc := service.NewExchangeService(backend, gateway, credits, service.ExchangeOptions{
		SystemDirective:   cfg.SystemDirective,
		PromptTokenBudget: cfg.PromptTokenBudget,
		FreeModel:         cfg.FreeModel,
		PremiumModel:      cfg.PremiumModel,
		FreeMaxTokens:     cfg.FreeMaxTokens,
		PremiumMaxTokens:  cfg.PremiumMaxTokens,
		Temperature:       float32(cfg.Temperature),
	}, log)

	// Background credit sweep
	sweeper := scheduler.New(credits, log)
	if err := sweeper.Start(); err != nil {
		log.Error("failed to start scheduler")
		os.Exit(1)
	}
	defer sweeper.Stop()

	// Handlers
	healthHandler := handler.NewHealthHandler(backend)
	chatHandler := handler.NewChatHandler(exchangeSvc, log, cfg.Development)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log, cfg.Development)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/message", chatHandler.SendMessage)
		r.Post("/stream", chatHandler.StreamMessage)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
