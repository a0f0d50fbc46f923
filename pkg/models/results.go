package models

// IntentAnalysis is the classifier's verdict on a raw query.
type IntentAnalysis struct {
	IsDataQuery    bool     `json:"isDataQuery"`
	QueryType      string   `json:"queryType"`
	Confidence     float64  `json:"confidence"`
	RequiredTables []string `json:"requiredTables"`
	Keywords       []string `json:"keywords"`
	Explanation    string   `json:"explanation"`
}

// ChatResult is the outcome of a tiered chat query.
type ChatResult struct {
	Response        string          `json:"response"`
	Level           ProcessingLevel `json:"level"`
	Confidence      float64         `json:"confidence"`
	TokensUsed      int             `json:"tokensUsed"`
	EstimatedTokens int             `json:"estimatedTokens"`
	TokensSaved     int             `json:"tokensSaved"`
	ProcessingMs    int64           `json:"processingTime"`
	IsFallback      bool            `json:"isFallback,omitempty"`
	Warning         string          `json:"warning,omitempty"`
}

// ColumnInfo describes a single column of a data query result.
type ColumnInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"` // "string", "number", "date", "boolean"
}

// Data query result types. A submission that turns out not to need
// database access is answered by the chat model instead of refused.
const (
	ResultTypeDataQuery  = "data_query"
	ResultTypeAIResponse = "ai_response"
)

// DataQueryResult is the outcome of a data query execution.
type DataQueryResult struct {
	Type          string           `json:"type"`
	Response      string           `json:"response,omitempty"`
	SQL           string           `json:"sql,omitempty"`
	Rows          []map[string]any `json:"rows"`
	Columns       []ColumnInfo     `json:"columns"`
	RowCount      int              `json:"rowCount"`
	Truncated     bool             `json:"truncated,omitempty"`
	Visualization string           `json:"visualization"` // "table", "bar", "line", "pie"
	Explanation   string           `json:"explanation,omitempty"`
	CacheServed   bool             `json:"cacheServed"`
	TokensUsed    int              `json:"tokensUsed"`
	DurationMs    int64            `json:"durationMs"`
}
