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

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/reviewhook/internal/adapter/driven/github"
	openaiadapter "github.com/ericfisherdev/reviewhook/internal/adapter/driven/openai"
	httphandler "github.com/ericfisherdev/reviewhook/internal/adapter/driving/http"
	"github.com/ericfisherdev/reviewhook/internal/application"
	"github.com/ericfisherdev/reviewhook/internal/config"
	"github.com/ericfisherdev/reviewhook/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"app_id", cfg.GitHubAppID,
		"model", cfg.OpenAIModel,
		"review_concurrency", cfg.ReviewConcurrency,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire driven adapters. The credential issuer parses the App key up
	// front so a bad key fails at startup, not on the first delivery.
	issuer, err := githubadapter.NewAppCredentialIssuer(cfg.GitHubAppID, cfg.GitHubPrivateKey)
	if err != nil {
		return err
	}
	factory := githubadapter.NewClientFactory()
	reviewer := openaiadapter.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	reviewer.SetTimeout(cfg.RequestTimeout)

	// 4. Create the pipeline and the webhook handler.
	pipeline := application.NewReviewPipeline(issuer, factory, reviewer, application.PipelineOptions{
		Render: model.RenderOptions{
			LargeThreshold: cfg.LargeThreshold,
			HugeThreshold:  cfg.HugeThreshold,
		},
		Concurrency: cfg.ReviewConcurrency,
		CallTimeout: cfg.RequestTimeout,
	})

	handler := httphandler.NewHandler(pipeline, []byte(cfg.WebhookSecret), slog.Default())
	mux := httphandler.NewServeMux(handler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second, // Pipeline runs within the request.
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("reviewhook started", "listen_addr", cfg.ListenAddr)

	// 5. Wait for shutdown signal, then drain in-flight deliveries.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
