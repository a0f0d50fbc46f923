package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/models"
)

// QueryRecordRepository provides data access for processed query records.
type QueryRecordRepository interface {
	Create(ctx context.Context, record *models.QueryRecord) error
	List(ctx context.Context, filters models.QueryHistoryFilters) ([]*models.QueryRecord, int, error)
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.QueryRecord, error)
	Statistics(ctx context.Context, userID string) (*models.QueryStatistics, error)
}

type queryRecordRepository struct{}

func NewQueryRecordRepository() QueryRecordRepository {
	return &queryRecordRepository{}
}

var _ QueryRecordRepository = (*queryRecordRepository)(nil)

func (r *queryRecordRepository) Create(ctx context.Context, record *models.QueryRecord) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `
		INSERT INTO ai_query_records (
			id, user_id, conversation_id,
			query_type, query_text, normalized_text,
			level, success, cache_served, is_fallback,
			sql_text, response, row_count,
			tokens_used, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := scope.Conn.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.ConversationID,
		record.QueryType,
		record.QueryText,
		record.NormalizedText,
		record.Level,
		record.Success,
		record.CacheServed,
		record.IsFallback,
		record.SQL,
		record.Response,
		record.RowCount,
		record.TokensUsed,
		record.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to create query record: %w", err)
	}

	return nil
}

func (r *queryRecordRepository) List(ctx context.Context, filters models.QueryHistoryFilters) ([]*models.QueryRecord, int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	pageSize := filters.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	page := filters.Page
	if page < 1 {
		page = 1
	}

	conditions := []string{"user_id = $1"}
	args := []any{filters.UserID}
	argIdx := 2

	if filters.QueryType != "" {
		conditions = append(conditions, fmt.Sprintf("query_type = $%d", argIdx))
		args = append(args, filters.QueryType)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM ai_query_records WHERE %s`, where)
	var total int
	if err := scope.Conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query records: %w", err)
	}

	dataQuery := fmt.Sprintf(`
		SELECT id, user_id, conversation_id,
		       query_type, query_text, normalized_text,
		       level, success, cache_served, is_fallback,
		       sql_text, response, row_count,
		       tokens_used, duration_ms, created_at
		FROM ai_query_records
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := scope.Conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query records: %w", err)
	}
	defer rows.Close()

	var records []*models.QueryRecord
	for rows.Next() {
		record, err := scanQueryRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating query records: %w", err)
	}

	return records, total, nil
}

func (r *queryRecordRepository) GetByID(ctx context.Context, id uuid.UUID, userID string) (*models.QueryRecord, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, user_id, conversation_id,
		       query_type, query_text, normalized_text,
		       level, success, cache_served, is_fallback,
		       sql_text, response, row_count,
		       tokens_used, duration_ms, created_at
		FROM ai_query_records
		WHERE id = $1 AND user_id = $2`

	row := scope.Conn.QueryRow(ctx, query, id, userID)
	record, err := scanQueryRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *queryRecordRepository) Statistics(ctx context.Context, userID string) (*models.QueryStatistics, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE query_type = 'data'),
		       COUNT(*) FILTER (WHERE query_type = 'chat'),
		       COUNT(*) FILTER (WHERE cache_served),
		       COUNT(*) FILTER (WHERE is_fallback),
		       COALESCE(AVG(duration_ms), 0)
		FROM ai_query_records
		WHERE user_id = $1`

	var stats models.QueryStatistics
	err := scope.Conn.QueryRow(ctx, query, userID).Scan(
		&stats.TotalQueries,
		&stats.DataQueries,
		&stats.ChatQueries,
		&stats.CacheHits,
		&stats.Fallbacks,
		&stats.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute query statistics: %w", err)
	}

	return &stats, nil
}

func scanQueryRecord(row pgx.Row) (*models.QueryRecord, error) {
	var record models.QueryRecord
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ConversationID,
		&record.QueryType,
		&record.QueryText,
		&record.NormalizedText,
		&record.Level,
		&record.Success,
		&record.CacheServed,
		&record.IsFallback,
		&record.SQL,
		&record.Response,
		&record.RowCount,
		&record.TokensUsed,
		&record.DurationMs,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan query record: %w", err)
	}
	return &record, nil
}
