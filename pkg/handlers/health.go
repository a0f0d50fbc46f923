package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/config"
	"github.com/yyup/kindergarten-engine/pkg/database"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// ReadyResponse reports per-dependency readiness.
type ReadyResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends"`
}

// HealthHandler handles liveness, readiness and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	db     *database.DB
	redis  *redis.Client // nil when the shared cache layer is disabled
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and redis may be nil;
// readiness then reports them as skipped.
func NewHealthHandler(cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, redis: redisClient, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns a simple "ok" status for load balancer liveness checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /ready requests. Checks each backing store with a
// short timeout and returns 503 when any of them is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	backends := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Database readiness check failed", zap.Error(err))
			backends["postgres"] = "unreachable"
			healthy = false
		} else {
			backends["postgres"] = "ok"
		}
	} else {
		backends["postgres"] = "skipped"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.logger.Warn("Redis readiness check failed", zap.Error(err))
			backends["redis"] = "unreachable"
			healthy = false
		} else {
			backends["redis"] = "ok"
		}
	} else {
		backends["redis"] = "skipped"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	if err := WriteJSON(w, code, ReadyResponse{Status: status, Backends: backends}); err != nil {
		h.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "kindergarten-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
