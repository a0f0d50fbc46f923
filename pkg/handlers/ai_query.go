package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/auth"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/services"
)

// TenantMiddleware wraps a handler with tenant-scoped database setup.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// ChatQueryRequest is the POST body for the tiered chat endpoint.
type ChatQueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// DataQueryRequest is the POST body for the natural-language data endpoint.
type DataQueryRequest struct {
	Query string `json:"query"`
}

// QueryEnvelope wraps every AI endpoint response. Pipeline-level
// failures (a query that needs no data, a blocked table, a timeout)
// are reported inside a 200 envelope so the client can render them;
// HTTP status codes are reserved for request-level problems.
type QueryEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// HistoryResponse is a page of query records.
type HistoryResponse struct {
	Records  []*models.QueryRecord `json:"records"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// CleanupResponse reports a cache sweep.
type CleanupResponse struct {
	Deleted int `json:"deleted"`
}

// AIQueryHandler exposes the tiered query pipeline over HTTP.
type AIQueryHandler struct {
	chat    services.ChatService
	data    services.DataQueryService
	history services.HistoryService
	logger  *zap.Logger
}

// NewAIQueryHandler creates a new AI query handler.
func NewAIQueryHandler(chat services.ChatService, data services.DataQueryService, history services.HistoryService, logger *zap.Logger) *AIQueryHandler {
	return &AIQueryHandler{
		chat:    chat,
		data:    data,
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers the AI query routes on the given mux. Every
// endpoint that touches ai_query_records or runs SQL needs a
// tenant-scoped connection, so reads get the tenant middleware too.
func (h *AIQueryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/ai/chat/query",
		authMiddleware.RequireAuth(tenantMiddleware(h.SubmitChat)))
	mux.HandleFunc("POST /api/ai/query",
		authMiddleware.RequireAuth(tenantMiddleware(h.SubmitData)))

	mux.HandleFunc("GET /api/ai/query/history",
		authMiddleware.RequireAuth(tenantMiddleware(h.History)))
	mux.HandleFunc("GET /api/ai/query/statistics",
		authMiddleware.RequireAuth(tenantMiddleware(h.Statistics)))
	mux.HandleFunc("GET /api/ai/query/{id}",
		authMiddleware.RequireAuth(tenantMiddleware(h.Detail)))

	mux.HandleFunc("POST /api/ai/cache/cleanup",
		authMiddleware.RequireRole(models.RoleAdmin, models.RolePrincipal)(h.CleanupCache))
}

// SubmitChat handles POST /api/ai/chat/query.
func (h *AIQueryHandler) SubmitChat(w http.ResponseWriter, r *http.Request) {
	var req ChatQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	userID := auth.GetUserIDFromContext(r.Context())
	result, err := h.chat.SubmitChatQuery(r.Context(), userID, req.ConversationID, req.Query)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.writeEnvelope(w, QueryEnvelope{Success: true, Data: result})
}

// SubmitData handles POST /api/ai/query.
func (h *AIQueryHandler) SubmitData(w http.ResponseWriter, r *http.Request) {
	var req DataQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	ctx := r.Context()
	userID := auth.GetUserIDFromContext(ctx)
	role := auth.GetRoleFromContext(ctx)

	result, err := h.data.SubmitDataQuery(ctx, userID, role, req.Query)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	h.writeEnvelope(w, QueryEnvelope{Success: true, Data: result})
}

// History handles GET /api/ai/query/history.
// Supports type, page and page_size query parameters.
func (h *AIQueryHandler) History(w http.ResponseWriter, r *http.Request) {
	filters := models.QueryHistoryFilters{
		UserID:    auth.GetUserIDFromContext(r.Context()),
		QueryType: r.URL.Query().Get("type"),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 20),
	}
	if filters.QueryType != "" && filters.QueryType != models.QueryTypeChat && filters.QueryType != models.QueryTypeData {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_type", "type must be \"chat\" or \"data\"")
		return
	}

	records, total, err := h.history.GetQueryHistory(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list query history", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list query history")
		return
	}

	h.writeEnvelope(w, QueryEnvelope{Success: true, Data: HistoryResponse{
		Records:  records,
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	}})
}

// Detail handles GET /api/ai/query/{id}.
func (h *AIQueryHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "query record id must be a UUID")
		return
	}

	userID := auth.GetUserIDFromContext(r.Context())
	record, err := h.history.GetQueryDetail(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "query record not found")
			return
		}
		h.logger.Error("Failed to load query record", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to load query record")
		return
	}

	h.writeEnvelope(w, QueryEnvelope{Success: true, Data: record})
}

// Statistics handles GET /api/ai/query/statistics.
func (h *AIQueryHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromContext(r.Context())
	stats, err := h.history.GetQueryStatistics(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to compute query statistics", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to compute query statistics")
		return
	}

	h.writeEnvelope(w, QueryEnvelope{Success: true, Data: stats})
}

// CleanupCache handles POST /api/ai/cache/cleanup.
func (h *AIQueryHandler) CleanupCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.history.CleanupExpiredCache(r.Context())
	if err != nil {
		h.logger.Error("Cache cleanup failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "cache cleanup failed")
		return
	}

	h.writeEnvelope(w, QueryEnvelope{Success: true, Data: CleanupResponse{Deleted: deleted}})
}

// writeQueryError maps pipeline errors onto the response envelope.
// Input problems are 400s; everything the pipeline itself refused is a
// 200 with success=false so clients show the message instead of a
// generic failure page.
func (h *AIQueryHandler) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrEmptyQuery):
		_ = ErrorResponse(w, http.StatusBadRequest, "empty_query", "query text is required")
	case errors.Is(err, apperrors.ErrQueryTooLong):
		_ = ErrorResponse(w, http.StatusBadRequest, "query_too_long", "query text exceeds the maximum length")
	case errors.Is(err, apperrors.ErrNotDataQuery):
		h.writeEnvelope(w, QueryEnvelope{
			Success: false,
			Error:   "not_data_query",
			Message: "this question does not need database access; try the chat endpoint",
		})
	case errors.Is(err, apperrors.ErrTableNotAllowed):
		h.writeEnvelope(w, QueryEnvelope{
			Success: false,
			Error:   "not_permitted",
			Message: "the requested data is not available for your role",
		})
	default:
		var execErr *services.ExecutionError
		if errors.As(err, &execErr) {
			code := "execution_failed"
			if execErr.Timeout {
				code = "execution_timeout"
			}
			h.writeEnvelope(w, QueryEnvelope{Success: false, Error: code, Message: execErr.Message})
			return
		}
		h.logger.Error("Query pipeline failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "query processing failed")
	}
}

func (h *AIQueryHandler) writeEnvelope(w http.ResponseWriter, envelope QueryEnvelope) {
	if err := WriteJSON(w, http.StatusOK, envelope); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
