package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/config"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
)

const pingTimeout = 2 * time.Second

// Pinger checks a backing store is reachable. *database.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// poolReporter is implemented by *database.DB.
type poolReporter interface {
	PoolStats() database.PoolStats
}

// DependencyStatus describes one backing service in a ping response.
type DependencyStatus struct {
	Status string              `json:"status"`
	Pool   *database.PoolStats `json:"pool,omitempty"`
}

// PingResponse reports version and dependency reachability.
type PingResponse struct {
	Status      string           `json:"status"`
	Service     string           `json:"service"`
	Version     string           `json:"version"`
	Environment string           `json:"environment"`
	Uptime      string           `json:"uptime"`
	Database    DependencyStatus `json:"database"`
	Chat        string           `json:"chat"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	cfg     *config.Config
	db      Pinger
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(cfg *config.Config, db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, started: time.Now(), logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health. It never touches dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping. An unreachable database answers 503 so load
// balancers stop routing to the instance.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	response := PingResponse{
		Status:      "ok",
		Service:     "hodlisma-engine",
		Version:     h.cfg.Version,
		Environment: h.cfg.Env,
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		Database:    h.checkDatabase(r.Context()),
		Chat:        "unconfigured",
	}
	if h.cfg.LLM.IsAvailable() {
		response.Chat = "configured"
	}

	status := http.StatusOK
	if response.Database.Status == "unreachable" {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) DependencyStatus {
	if h.db == nil {
		return DependencyStatus{Status: "unconfigured"}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Database ping failed", zap.Error(err))
		return DependencyStatus{Status: "unreachable"}
	}

	ds := DependencyStatus{Status: "ok"}
	if pr, ok := h.db.(poolReporter); ok {
		stats := pr.PoolStats()
		ds.Pool = &stats
	}
	return ds
}
