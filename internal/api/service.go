package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

type StatusProvider interface {
	Status() models.Heartbeat
}

type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]database.AlertRecord, error)
}

// Info is the static part of the status response
type Info struct {
	Window          string   `json:"window"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	Channels        []string `json:"channels"`
}

type Handlers struct {
	status  StatusProvider
	history AlertHistory
	info    Info
	logger  *zap.Logger
}

// NewHandlers builds the status handlers. history may be nil when no database is configured.
func NewHandlers(status StatusProvider, history AlertHistory, info Info, logger *zap.Logger) *Handlers {
	return &Handlers{status: status, history: history, info: info, logger: logger.Named("api")}
}

func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/status", h.StatusHandler).Methods(http.MethodGet)
	r.HandleFunc("/alerts", h.AlertsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// NewServer wraps the router in an http.Server with sane timeouts
func NewServer(addr string, h *Handlers) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
