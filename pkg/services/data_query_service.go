package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/cache"
	"github.com/yyup/kindergarten-engine/pkg/metrics"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/prompts"
)

// DataQueryService runs the natural-language-to-SQL pipeline: classify,
// synthesize, execute, present. Results are cached per user.
type DataQueryService interface {
	SubmitDataQuery(ctx context.Context, userID, role, queryText string) (*models.DataQueryResult, error)
}

type dataQueryService struct {
	cache          cache.QueryCache
	classifier     IntentClassifier
	synthesizer    SQLSynthesizer
	executor       SQLExecutor
	presenter      ResultPresenter
	responder      TierExecutor
	records        RecordWriter
	maxQueryLength int
	logger         *zap.Logger
}

var _ DataQueryService = (*dataQueryService)(nil)

// DataQueryServiceDeps bundles the pipeline collaborators. Responder
// answers submissions that turn out not to need database access.
type DataQueryServiceDeps struct {
	Cache       cache.QueryCache
	Classifier  IntentClassifier
	Synthesizer SQLSynthesizer
	Executor    SQLExecutor
	Presenter   ResultPresenter
	Responder   TierExecutor
	Records     RecordWriter
}

func NewDataQueryService(deps DataQueryServiceDeps, maxQueryLength int, logger *zap.Logger) DataQueryService {
	if maxQueryLength <= 0 {
		maxQueryLength = 1000
	}
	return &dataQueryService{
		cache:          deps.Cache,
		classifier:     deps.Classifier,
		synthesizer:    deps.Synthesizer,
		executor:       deps.Executor,
		presenter:      deps.Presenter,
		responder:      deps.Responder,
		records:        deps.Records,
		maxQueryLength: maxQueryLength,
		logger:         logger.Named("dataquery"),
	}
}

func (s *dataQueryService) SubmitDataQuery(ctx context.Context, userID, role, queryText string) (*models.DataQueryResult, error) {
	start := time.Now()

	if err := validateQueryText(queryText, s.maxQueryLength); err != nil {
		return nil, err
	}
	if !models.IsValidRole(role) && role != "" {
		s.logger.Debug("unknown role, using default allow-list", zap.String("role", role))
	}

	if entry, ok := s.cache.Get(ctx, queryText, userID); ok {
		metrics.CacheHits.Inc()

		var result models.DataQueryResult
		if err := json.Unmarshal(entry.Payload, &result); err == nil {
			result.CacheServed = true
			result.TokensUsed = 0
			result.DurationMs = time.Since(start).Milliseconds()
			s.record(ctx, userID, queryText, &result, true)
			metrics.ObserveQuery(models.QueryTypeData, string(models.LevelComplex), time.Since(start))
			return &result, nil
		}
		s.logger.Warn("discarding undecodable cache entry", zap.String("key", entry.Key))
	}
	metrics.CacheMisses.Inc()

	intent, intentTokens, err := s.classifier.Classify(ctx, queryText, role)
	if err != nil {
		return nil, err
	}

	// A data query with no identifiable tables is a classification
	// failure. Fail toward the safer non-data path: answer with the
	// chat model instead of generating SQL.
	if !intent.IsDataQuery || len(intent.RequiredTables) == 0 {
		return s.answerAsChat(ctx, userID, queryText, intentTokens, start)
	}

	sqlText, sqlTokens, err := s.synthesizer.Synthesize(ctx, queryText, role, intent)
	if err != nil {
		return nil, err
	}

	rows, err := s.executor.Execute(ctx, sqlText)
	if err != nil {
		return nil, err
	}

	result := s.presenter.Present(sqlText, rows)
	result.Type = models.ResultTypeDataQuery
	result.TokensUsed = intentTokens + sqlTokens
	result.DurationMs = time.Since(start).Milliseconds()
	result.Explanation = intent.Explanation

	if err := s.cacheResult(ctx, userID, queryText, result); err != nil {
		s.logger.Warn("failed to cache data query result", zap.Error(err))
	}

	s.record(ctx, userID, queryText, result, false)
	metrics.ObserveQuery(models.QueryTypeData, string(models.LevelComplex), time.Since(start))
	metrics.TokensUsed.WithLabelValues(string(models.LevelComplex)).Add(float64(result.TokensUsed))

	return result, nil
}

// answerAsChat serves a submission the classifier found to need no
// database access. The chat model answers it; a degraded answer goes
// out uncached rather than as an error.
func (s *dataQueryService) answerAsChat(ctx context.Context, userID, queryText string, intentTokens int, start time.Time) (*models.DataQueryResult, error) {
	if s.responder == nil {
		return nil, fmt.Errorf("query needs no database access: %w", apperrors.ErrNotDataQuery)
	}

	result := &models.DataQueryResult{Type: models.ResultTypeAIResponse}

	chat, err := s.responder.Respond(ctx, queryText)
	if err != nil {
		s.logger.Warn("chat answer for non-data query failed", zap.Error(err))
		result.Response = prompts.FallbackResponse
		result.TokensUsed = intentTokens
		result.DurationMs = time.Since(start).Milliseconds()
		s.record(ctx, userID, queryText, result, false)
		return result, nil
	}

	result.Response = chat.Response
	result.TokensUsed = intentTokens + chat.TokensUsed
	result.DurationMs = time.Since(start).Milliseconds()

	if err := s.cacheResult(ctx, userID, queryText, result); err != nil {
		s.logger.Warn("failed to cache chat answer", zap.Error(err))
	}
	s.record(ctx, userID, queryText, result, false)
	metrics.ObserveQuery(models.QueryTypeData, string(chat.Level), time.Since(start))
	metrics.TokensUsed.WithLabelValues(string(chat.Level)).Add(float64(result.TokensUsed))

	return result, nil
}

func (s *dataQueryService) cacheResult(ctx context.Context, userID, queryText string, result *models.DataQueryResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal data query result: %w", err)
	}
	return s.cache.Set(ctx, &cache.Entry{
		UserID:     userID,
		QueryText:  queryText,
		Level:      models.LevelComplex,
		Payload:    payload,
		TokensUsed: result.TokensUsed,
	})
}

func (s *dataQueryService) record(ctx context.Context, userID, queryText string, result *models.DataQueryResult, cacheServed bool) {
	if s.records == nil {
		return
	}

	record := &models.QueryRecord{
		UserID:         userID,
		QueryType:      models.QueryTypeData,
		QueryText:      queryText,
		NormalizedText: cache.Normalize(queryText),
		Level:          models.LevelComplex,
		Success:        true,
		CacheServed:    cacheServed,
		TokensUsed:     result.TokensUsed,
		DurationMs:     result.DurationMs,
	}
	if result.Type == models.ResultTypeDataQuery {
		rowCount := result.RowCount
		record.SQL = &result.SQL
		record.RowCount = &rowCount
	}

	if err := s.records.Create(ctx, record); err != nil {
		s.logger.Warn("failed to persist query record", zap.Error(err))
	}
}
