package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/cache"
	"github.com/yyup/kindergarten-engine/pkg/metrics"
	"github.com/yyup/kindergarten-engine/pkg/models"
)

// baselineTokens approximates what an untiered pipeline would spend per
// query. Token savings are reported against it.
const baselineTokens = 3000

// ChatService runs the tiered chat pipeline: cache, routing, tier
// execution with fallback, caching and record keeping.
type ChatService interface {
	SubmitChatQuery(ctx context.Context, userID, conversationID, queryText string) (*models.ChatResult, error)
}

type chatService struct {
	cache          cache.QueryCache
	router         QueryRouter
	direct         *DirectResponder
	semantic       *SemanticResponder
	complex        *ComplexResponder
	fallback       *FallbackController
	records        RecordWriter
	maxQueryLength int
	logger         *zap.Logger
}

var _ ChatService = (*chatService)(nil)

// ChatServiceDeps bundles the pipeline collaborators.
type ChatServiceDeps struct {
	Cache    cache.QueryCache
	Router   QueryRouter
	Direct   *DirectResponder
	Semantic *SemanticResponder
	Complex  *ComplexResponder
	Fallback *FallbackController
	Records  RecordWriter
}

func NewChatService(deps ChatServiceDeps, maxQueryLength int, logger *zap.Logger) ChatService {
	if maxQueryLength <= 0 {
		maxQueryLength = 1000
	}
	return &chatService{
		cache:          deps.Cache,
		router:         deps.Router,
		direct:         deps.Direct,
		semantic:       deps.Semantic,
		complex:        deps.Complex,
		fallback:       deps.Fallback,
		records:        deps.Records,
		maxQueryLength: maxQueryLength,
		logger:         logger.Named("chat"),
	}
}

func (s *chatService) SubmitChatQuery(ctx context.Context, userID, conversationID, queryText string) (*models.ChatResult, error) {
	start := time.Now()

	if err := validateQueryText(queryText, s.maxQueryLength); err != nil {
		return nil, err
	}

	if entry, ok := s.cache.Get(ctx, queryText, userID); ok {
		metrics.CacheHits.Inc()

		var result models.ChatResult
		if err := json.Unmarshal(entry.Payload, &result); err == nil {
			result.ProcessingMs = time.Since(start).Milliseconds()
			result.TokensUsed = 0
			result.TokensSaved = baselineTokens
			s.record(ctx, userID, conversationID, queryText, &result, true)
			metrics.ObserveQuery(models.QueryTypeChat, string(result.Level), time.Since(start))
			return &result, nil
		}
		s.logger.Warn("discarding undecodable cache entry", zap.String("key", entry.Key))
	}
	metrics.CacheMisses.Inc()

	decision := s.router.Route(queryText)

	result := s.executeTier(ctx, decision, queryText)
	result.EstimatedTokens = decision.EstimatedTokens
	result.ProcessingMs = time.Since(start).Milliseconds()
	result.TokensSaved = baselineTokens - result.TokensUsed
	if result.TokensSaved < 0 {
		result.TokensSaved = 0
	}

	// Only completed complex answers are cached. Direct answers carry
	// live counts that must not freeze for the TTL window, semantic
	// lookups are already cheap, and degraded answers must reattempt
	// the primary tier on the next identical query.
	if result.Level == models.LevelComplex && !result.IsFallback {
		if err := s.cacheResult(ctx, userID, queryText, result); err != nil {
			s.logger.Warn("failed to cache chat result", zap.Error(err))
		}
	}

	s.record(ctx, userID, conversationID, queryText, result, false)
	metrics.ObserveQuery(models.QueryTypeChat, string(result.Level), time.Since(start))
	metrics.TokensUsed.WithLabelValues(string(result.Level)).Add(float64(result.TokensUsed))

	return result, nil
}

// executeTier runs the routed tier. A failed direct or semantic attempt
// escalates to the complex tier before the fallback apology is
// considered.
func (s *chatService) executeTier(ctx context.Context, decision RouteDecision, queryText string) *models.ChatResult {
	switch decision.Level {
	case models.LevelDirect:
		result, err := s.direct.Respond(ctx, queryText)
		if err == nil {
			return result
		}
		s.logger.Debug("direct tier failed, escalating", zap.Error(err))
		return s.fallback.Execute(ctx, s.complex, queryText)

	case models.LevelSemantic:
		result, err := s.semantic.Respond(ctx, queryText)
		if err == nil {
			return result
		}
		s.logger.Debug("semantic tier missed, escalating", zap.Error(err))
		return s.fallback.Execute(ctx, s.complex, queryText)

	default:
		return s.fallback.Execute(ctx, s.complex, queryText)
	}
}

func (s *chatService) cacheResult(ctx context.Context, userID, queryText string, result *models.ChatResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal chat result: %w", err)
	}
	return s.cache.Set(ctx, &cache.Entry{
		UserID:     userID,
		QueryText:  queryText,
		Level:      result.Level,
		Payload:    payload,
		TokensUsed: result.TokensUsed,
	})
}

func (s *chatService) record(ctx context.Context, userID, conversationID, queryText string, result *models.ChatResult, cacheServed bool) {
	if s.records == nil {
		return
	}

	record := &models.QueryRecord{
		UserID:         userID,
		QueryType:      models.QueryTypeChat,
		QueryText:      queryText,
		NormalizedText: cache.Normalize(queryText),
		Level:          result.Level,
		Success:        true,
		CacheServed:    cacheServed,
		IsFallback:     result.IsFallback,
		Response:       &result.Response,
		TokensUsed:     result.TokensUsed,
		DurationMs:     result.ProcessingMs,
	}
	if conversationID != "" {
		record.ConversationID = &conversationID
	}

	if err := s.records.Create(ctx, record); err != nil {
		s.logger.Warn("failed to persist query record", zap.Error(err))
	}
}

// validateQueryText enforces the input bounds shared by both entry
// points. Length is counted in runes so multibyte text is not
// penalized.
func validateQueryText(queryText string, maxLength int) error {
	if len(queryText) == 0 || len(cache.Normalize(queryText)) == 0 {
		return apperrors.ErrEmptyQuery
	}
	if utf8.RuneCountInString(queryText) > maxLength {
		return fmt.Errorf("query exceeds %d characters: %w", maxLength, apperrors.ErrQueryTooLong)
	}
	return nil
}
