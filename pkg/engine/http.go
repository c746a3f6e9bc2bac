package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/billing"
	"github.com/dmitrymomot/actorkit/pkg/collection"
	"github.com/dmitrymomot/actorkit/pkg/httpserver"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/requestid"
)

const maxBodySize = 1 << 20

// Handler returns the HTTP surface of the engine:
//
//	GET  /healthz                             liveness
//	GET  /readyz                              store readiness
//	GET  /metrics                             prometheus metrics
//	POST /actors/{type}/{id}/method/{method}  method call on an actor
//	GET  /collections/{type}                  every entity of a kind
//	GET  /reminders                           persisted reminders
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)

	r.Get("/healthz", httpserver.HealthCheckHandler(e.logger, nil))
	r.Get("/readyz", httpserver.HealthCheckHandler(e.logger, e.readiness()))
	r.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	r.Post("/actors/{type}/{id}/method/{method}", e.callMethod)
	r.Get("/collections/{type}", e.listCollection)
	r.Get("/reminders", e.listReminders)

	return r
}

func (e *Engine) readiness() map[string]httpserver.Check {
	checks := map[string]httpserver.Check{
		"store": func(ctx context.Context) error {
			_, err := e.store.Get(ctx, e.cfg.ReminderIndexKey)
			if err == nil || errors.Is(err, kvstore.ErrNotFound) {
				return nil
			}
			return err
		},
	}
	for name, check := range e.checks {
		checks[name] = check
	}
	return checks
}

func (e *Engine) callMethod(w http.ResponseWriter, r *http.Request) {
	id := actor.ID{Type: chi.URLParam(r, "type"), ID: chi.URLParam(r, "id")}
	method := chi.URLParam(r, "method")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		e.writeError(w, r, http.StatusRequestEntityTooLarge, err)
		return
	}

	out, err := e.runtime.Call(r.Context(), id, method, body)
	if err != nil {
		e.writeError(w, r, statusOf(err), err)
		return
	}

	if len(out) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (e *Engine) listCollection(w http.ResponseWriter, r *http.Request) {
	entities, err := e.services.List(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		e.writeError(w, r, statusOf(err), err)
		return
	}
	e.writeJSON(w, r, entities)
}

func (e *Engine) listReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := e.scheduler.List(r.Context())
	if err != nil {
		e.writeError(w, r, statusOf(err), err)
		return
	}
	e.writeJSON(w, r, reminders)
}

func (e *Engine) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		e.logger.ErrorContext(r.Context(), "failed to write response", logger.Error(err))
	}
}

func (e *Engine) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		e.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, actor.ErrUnknownActorType),
		errors.Is(err, actor.ErrMethodNotFound),
		errors.Is(err, actor.ErrNotDispatcher),
		errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, lifecycle.ErrUnknownMethod),
		errors.Is(err, billing.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, actor.ErrInvalidID),
		errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrAlreadyExists),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, actor.ErrRuntimeStopped),
		errors.Is(err, kvstore.ErrStoreUnavailable),
		errors.Is(err, collection.ErrIndexConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, lifecycle.ErrActivationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
