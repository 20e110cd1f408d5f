// Package httphandler is the HTTP driving adapter: it receives GitHub
// webhook deliveries, authenticates them, and hands accepted pull request
// events to the review pipeline.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewhook/internal/application"
	"github.com/ericfisherdev/reviewhook/internal/domain/model"
)

// maxPayloadBytes caps webhook request bodies. GitHub caps payloads at 25 MB;
// anything larger is not a webhook delivery.
const maxPayloadBytes = 25 << 20

// PipelineRunner runs the review pipeline for one accepted event.
type PipelineRunner interface {
	Run(ctx context.Context, event model.PullRequestEvent) (*application.RunResult, error)
}

// Handler serves the webhook endpoint and the health probes.
type Handler struct {
	pipeline PipelineRunner
	secret   []byte
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(pipeline PipelineRunner, secret []byte, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		secret:   secret,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /{$}", h.Liveness)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Webhook processes one GitHub webhook delivery. The pipeline runs
// synchronously within the request so the status code reflects the outcome:
// GitHub's redelivery on non-2xx is the only retry mechanism.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("webhook signature rejected",
			"delivery", r.Header.Get("X-GitHub-Delivery"),
		)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	if event := r.Header.Get("X-GitHub-Event"); event != "pull_request" {
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Reason: "event type " + event})
		return
	}

	var event model.PullRequestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if !event.ShouldProcess() {
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Reason: "action " + event.Action})
		return
	}

	result, err := h.pipeline.Run(r.Context(), event)
	if err != nil {
		var authErr *model.AuthError
		if errors.As(err, &authErr) {
			h.logger.Error("pipeline credential failure", "error", err)
			writeError(w, http.StatusUnauthorized, "github authentication failed")
			return
		}
		h.logger.Error("pipeline run failed",
			"repo", event.Owner()+"/"+event.Repo(),
			"pr_number", event.PullRequest.Number,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "pipeline failed")
		return
	}

	commentsPosted := 0
	for _, o := range result.Outcomes {
		commentsPosted += o.CommentsPosted
	}

	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:         "processed",
		FilesChanged:   result.Stats.FilesChanged,
		NetChange:      result.Stats.NetChange,
		CommentsPosted: commentsPosted,
	})
}

// Liveness returns a static text response for load balancer probes.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("reviewhook is running\n"))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
