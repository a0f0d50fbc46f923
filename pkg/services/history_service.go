package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/cache"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/repositories"
)

// HistoryService reads back query records and maintains the cache.
type HistoryService interface {
	// GetQueryHistory returns a page of the user's records, newest first.
	GetQueryHistory(ctx context.Context, filters models.QueryHistoryFilters) ([]*models.QueryRecord, int, error)

	// GetQueryDetail returns one record, scoped to its owner.
	GetQueryDetail(ctx context.Context, id uuid.UUID, userID string) (*models.QueryRecord, error)

	// GetQueryStatistics aggregates the user's query activity.
	GetQueryStatistics(ctx context.Context, userID string) (*models.QueryStatistics, error)

	// CleanupExpiredCache sweeps expired cache entries from every layer
	// and returns the number deleted.
	CleanupExpiredCache(ctx context.Context) (int, error)
}

type historyService struct {
	records repositories.QueryRecordRepository
	cache   cache.QueryCache
	logger  *zap.Logger
}

var _ HistoryService = (*historyService)(nil)

func NewHistoryService(records repositories.QueryRecordRepository, queryCache cache.QueryCache, logger *zap.Logger) HistoryService {
	return &historyService{
		records: records,
		cache:   queryCache,
		logger:  logger.Named("history"),
	}
}

func (s *historyService) GetQueryHistory(ctx context.Context, filters models.QueryHistoryFilters) ([]*models.QueryRecord, int, error) {
	return s.records.List(ctx, filters)
}

func (s *historyService) GetQueryDetail(ctx context.Context, id uuid.UUID, userID string) (*models.QueryRecord, error) {
	return s.records.GetByID(ctx, id, userID)
}

func (s *historyService) GetQueryStatistics(ctx context.Context, userID string) (*models.QueryStatistics, error) {
	return s.records.Statistics(ctx, userID)
}

func (s *historyService) CleanupExpiredCache(ctx context.Context) (int, error) {
	deleted, err := s.cache.InvalidateExpired(ctx)
	if err != nil {
		return deleted, err
	}
	s.logger.Info("expired cache entries removed", zap.Int("count", deleted))
	return deleted, nil
}
