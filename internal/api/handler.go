package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shivansh-2508/AI-DB/internal/archive"
	"github.com/Shivansh-2508/AI-DB/internal/assistant"
	"github.com/Shivansh-2508/AI-DB/internal/config"
	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
	"github.com/Shivansh-2508/AI-DB/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// Assistant is the conversation pipeline served over HTTP.
type Assistant interface {
	Ask(ctx context.Context, who assistant.Requester, request assistant.AskRequest) (assistant.Reply, error)
	Confirm(ctx context.Context, who assistant.Requester, decision string) (assistant.Reply, error)
	Cancel(ctx context.Context, who assistant.Requester) (assistant.Reply, error)
	History(ctx context.Context, who assistant.Requester) ([]conversation.Turn, error)
	SaveMessage(ctx context.Context, who assistant.Requester, turn conversation.Turn) ([]conversation.Turn, error)
	Clear(ctx context.Context, who assistant.Requester) error
	Prefetch(ctx context.Context, who assistant.Requester) (assistant.Prefetch, error)
	Schema(ctx context.Context, identity string) (schema.Description, error)
	RefreshSchema(ctx context.Context, identity string) (schema.Description, error)
	ArchivedResult(ctx context.Context, identity, key string) (archive.Table, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	RateLimit         func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Assistant         Assistant
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := newRoutes(cfg, deps)
	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/ask", routes.handleAsk)
	protected.HandleFunc("POST /v1/confirm", routes.handleConfirm)
	protected.HandleFunc("POST /v1/cancel", routes.handleCancel)
	protected.HandleFunc("POST /v1/chat", routes.handleChat)
	protected.HandleFunc("PUT /v1/chat", routes.handleChat)
	protected.HandleFunc("GET /v1/chat/{session}", routes.handleHistory)
	protected.HandleFunc("POST /v1/chat/clear", routes.handleClear)
	protected.HandleFunc("GET /v1/schema", routes.handleSchema)
	protected.HandleFunc("POST /v1/schema/refresh", routes.handleSchemaRefresh)
	protected.HandleFunc("GET /v1/archive/{key...}", routes.handleArchive)

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	if deps.RateLimit != nil {
		protectedHandler = deps.RateLimit(protectedHandler)
	}
	for _, pattern := range []string{
		"POST /v1/ask",
		"POST /v1/confirm",
		"POST /v1/cancel",
		"POST /v1/chat",
		"PUT /v1/chat",
		"GET /v1/chat/{session}",
		"POST /v1/chat/clear",
		"GET /v1/schema",
		"POST /v1/schema/refresh",
		"GET /v1/archive/{key...}",
	} {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckDatabase pings the target database.
func CheckDatabase(pinger interface{ PingContext(context.Context) error }) ReadinessCheck {
	return func(ctx context.Context) error {
		if pinger == nil {
			return errors.New("database is not configured")
		}
		return pinger.PingContext(ctx)
	}
}

// CheckObjectStore reports the archive bucket's reachability. Stores that
// cannot report health are assumed ready.
func CheckObjectStore(store storage.ObjectStore) ReadinessCheck {
	return func(ctx context.Context) error {
		checker, ok := store.(storage.HealthChecker)
		if !ok {
			return nil
		}
		return checker.HealthCheck(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, errorEnvelope(ctx, code, message, retryable, extra))
}

func errorEnvelope(ctx context.Context, code, message string, retryable bool, extra map[string]any) map[string]any {
	return map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	}
}
