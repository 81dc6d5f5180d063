package main

import (
	"context"
	"net/http"
	"time"
)

var version = "0.4.0"

// HealthCheck godoc
//
//	@Summary		Healthcheck
//	@Description	Reports whether the document store and the topic registry answer.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	map[string]string
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	data := map[string]string{
		"status":  "ok",
		"env":     app.config.env,
		"version": version,
		"store":   "ok",
	}
	status := http.StatusOK

	if err := app.store.Docs.Ping(ctx); err != nil {
		app.logger.Errorw("health: document store unreachable", "error", err)
		data["store"], data["status"] = "unavailable", "degraded"
		status = http.StatusServiceUnavailable
	}
	if app.subscriptions != nil {
		data["topics"] = "ok"
		if err := app.subscriptions.Ping(ctx); err != nil {
			app.logger.Errorw("health: topic registry unreachable", "error", err)
			data["topics"], data["status"] = "unavailable", "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, data)
}
