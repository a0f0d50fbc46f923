package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingLevel is the tier a query was routed to.
type ProcessingLevel string

const (
	LevelDirect   ProcessingLevel = "direct"
	LevelSemantic ProcessingLevel = "semantic"
	LevelComplex  ProcessingLevel = "complex"
)

// QueryType distinguishes the two submission paths.
const (
	QueryTypeChat = "chat"
	QueryTypeData = "data"
)

// QueryRecord is a persisted record of a single query submission.
type QueryRecord struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	ConversationID *string         `json:"conversation_id,omitempty"`
	QueryType      string          `json:"query_type"` // "chat" or "data"
	QueryText      string          `json:"query_text"`
	NormalizedText string          `json:"normalized_text"`
	Level          ProcessingLevel `json:"level,omitempty"`
	Success        bool            `json:"success"`
	CacheServed    bool            `json:"cache_served"`
	IsFallback     bool            `json:"is_fallback"`
	SQL            *string         `json:"sql,omitempty"`
	Response       *string         `json:"response,omitempty"`
	RowCount       *int            `json:"row_count,omitempty"`
	TokensUsed     int             `json:"tokens_used"`
	DurationMs     int64           `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// QueryHistoryFilters contains filters for paging through query records.
type QueryHistoryFilters struct {
	UserID    string
	QueryType string // empty means both types
	Page      int
	PageSize  int
}

// QueryStatistics aggregates a user's query activity.
type QueryStatistics struct {
	TotalQueries  int     `json:"total_queries"`
	DataQueries   int     `json:"data_queries"`
	ChatQueries   int     `json:"chat_queries"`
	CacheHits     int     `json:"cache_hits"`
	Fallbacks     int     `json:"fallbacks"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
