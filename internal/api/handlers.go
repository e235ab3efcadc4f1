package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 200
)

func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	models.Heartbeat
	Info
}

// StatusHandler reports the armed state, counters and last alert time
func (h *Handlers) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, statusResponse{Heartbeat: h.status.Status(), Info: h.info})
}

// AlertsHandler lists recent alert history, newest first
func (h *Handlers) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "alert history is not configured", http.StatusNotFound)
		return
	}

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAlertLimit {
			http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = n
	}

	alerts, err := h.history.RecentAlerts(r.Context(), limit)
	if err != nil {
		h.logger.Error("cannot load alert history", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []database.AlertRecord{}
	}
	h.writeJSON(w, alerts)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("cannot write response", zap.Error(err))
	}
}
