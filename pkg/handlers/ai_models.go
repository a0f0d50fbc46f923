package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/auth"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/registry"
)

// RegisterModelRequest is the POST body for registering a model.
type RegisterModelRequest struct {
	Name         string   `json:"name"`
	Provider     string   `json:"provider"`
	Endpoint     string   `json:"endpoint,omitempty"`
	Capabilities []string `json:"capabilities"`
	Priority     int      `json:"priority"`
	Active       bool     `json:"active"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
}

// SetModelActiveRequest is the PATCH body for toggling a model.
type SetModelActiveRequest struct {
	Active bool `json:"active"`
}

// AIModelsHandler exposes model registry administration. Admin only.
type AIModelsHandler struct {
	registry registry.ModelRegistry
	logger   *zap.Logger
}

// NewAIModelsHandler creates a new model administration handler.
func NewAIModelsHandler(reg registry.ModelRegistry, logger *zap.Logger) *AIModelsHandler {
	return &AIModelsHandler{registry: reg, logger: logger}
}

// RegisterRoutes registers the model administration routes on the given mux.
func (h *AIModelsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	adminOnly := authMiddleware.RequireRole(models.RoleAdmin)
	mux.HandleFunc("GET /api/ai/models", adminOnly(h.List))
	mux.HandleFunc("POST /api/ai/models", adminOnly(h.Register))
	mux.HandleFunc("PATCH /api/ai/models/{id}", adminOnly(h.SetActive))
}

// List handles GET /api/ai/models.
func (h *AIModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.List(r.Context())
	if err := WriteJSON(w, http.StatusOK, map[string]any{"models": descriptors}); err != nil {
		h.logger.Error("Failed to encode model list", zap.Error(err))
	}
}

// Register handles POST /api/ai/models.
func (h *AIModelsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	descriptor := &models.ModelDescriptor{
		Name:         req.Name,
		Provider:     req.Provider,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
		Priority:     req.Priority,
		Active:       req.Active,
		MaxTokens:    req.MaxTokens,
	}
	if err := h.registry.Register(r.Context(), descriptor); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_model", err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusCreated, descriptor); err != nil {
		h.logger.Error("Failed to encode model", zap.Error(err))
	}
}

// SetActive handles PATCH /api/ai/models/{id}.
func (h *AIModelsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "model id must be a UUID")
		return
	}

	var req SetModelActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	if err := h.registry.SetActive(r.Context(), id, req.Active); err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "model not found")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"active": req.Active}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
