package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/llm"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/prompts"
	"github.com/yyup/kindergarten-engine/pkg/registry"
	"github.com/yyup/kindergarten-engine/pkg/semantic"
)

// TierExecutor produces a chat result for one processing level.
type TierExecutor interface {
	Respond(ctx context.Context, queryText string) (*models.ChatResult, error)
}

// DirectResponder answers direct-routed queries from canned templates,
// filling in live counts when a tenant-scoped connection is available.
type DirectResponder struct {
	router QueryRouter
	logger *zap.Logger
}

var _ TierExecutor = (*DirectResponder)(nil)

func NewDirectResponder(router QueryRouter, logger *zap.Logger) *DirectResponder {
	return &DirectResponder{
		router: router,
		logger: logger.Named("direct"),
	}
}

// actionQueries are the count lookups behind direct-match actions. Only
// enrolled rows count (status = 1).
var actionQueries = map[string]struct {
	sql      string
	template string
}{
	"count_students": {
		sql:      "SELECT COUNT(*) FROM students WHERE status = 1",
		template: "There are currently %d enrolled students.",
	},
	"count_teachers": {
		sql:      "SELECT COUNT(*) FROM teachers WHERE status = 1",
		template: "There are currently %d active teachers.",
	},
	"count_classes": {
		sql:      "SELECT COUNT(*) FROM classes",
		template: "There are %d classes.",
	},
	"today_activities": {
		sql:      "SELECT COUNT(*) FROM activities WHERE start_date::date = CURRENT_DATE",
		template: "There are %d activities scheduled today.",
	},
}

func (d *DirectResponder) Respond(ctx context.Context, queryText string) (*models.ChatResult, error) {
	match := d.router.CheckDirectMatch(queryText)
	if match == nil {
		return nil, fmt.Errorf("no direct match for query")
	}

	response := match.Response
	if action, ok := actionQueries[match.Action]; ok {
		if scope, found := database.GetTenantScope(ctx); found {
			var count int
			if err := scope.Conn.QueryRow(ctx, action.sql).Scan(&count); err != nil {
				d.logger.Warn("direct count lookup failed",
					zap.String("action", match.Action), zap.Error(err))
			} else {
				response = fmt.Sprintf(action.template, count)
			}
		}
	}

	return &models.ChatResult{
		Response:   response,
		Level:      models.LevelDirect,
		Confidence: 1.0,
		TokensUsed: match.Tokens,
	}, nil
}

// RespondFixed returns a canned message at the direct level without
// consulting the router. The fallback path uses it so a degraded answer
// never depends on a model or the database.
func (d *DirectResponder) RespondFixed(response string) *models.ChatResult {
	return &models.ChatResult{
		Response:   response,
		Level:      models.LevelDirect,
		Confidence: 1.0,
	}
}

// SemanticResponder answers from the embedding-indexed document corpus.
type SemanticResponder struct {
	index  semantic.Index
	logger *zap.Logger
}

var _ TierExecutor = (*SemanticResponder)(nil)

func NewSemanticResponder(index semantic.Index, logger *zap.Logger) *SemanticResponder {
	return &SemanticResponder{
		index:  index,
		logger: logger.Named("semantic"),
	}
}

func (s *SemanticResponder) Respond(ctx context.Context, queryText string) (*models.ChatResult, error) {
	if s.index == nil {
		return nil, fmt.Errorf("semantic index not configured")
	}

	matches, err := s.index.Search(ctx, queryText, 1)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no document close enough to answer")
	}

	best := matches[0]
	s.logger.Debug("semantic hit",
		zap.String("document", best.Document.Title),
		zap.Float64("score", best.Score))

	return &models.ChatResult{
		Response:   best.Document.Content,
		Level:      models.LevelSemantic,
		Confidence: best.Score,
	}, nil
}

// ComplexResponder runs the full chat model.
type ComplexResponder struct {
	registry registry.ModelRegistry
	factory  llm.LLMClientFactory
	logger   *zap.Logger
}

var _ TierExecutor = (*ComplexResponder)(nil)

func NewComplexResponder(reg registry.ModelRegistry, factory llm.LLMClientFactory, logger *zap.Logger) *ComplexResponder {
	return &ComplexResponder{
		registry: reg,
		factory:  factory,
		logger:   logger.Named("complex"),
	}
}

func (c *ComplexResponder) Respond(ctx context.Context, queryText string) (*models.ChatResult, error) {
	descriptor, err := c.registry.SelectForCapability(ctx, models.CapabilityChat)
	if err != nil {
		return nil, fmt.Errorf("no chat model: %w", err)
	}

	client, err := c.factory.CreateForModel(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	result, err := client.GenerateResponse(ctx, queryText, prompts.ChatSystemMessage, 0.7, descriptor.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("chat model call failed: %w", err)
	}

	return &models.ChatResult{
		Response:   result.Content,
		Level:      models.LevelComplex,
		Confidence: 0.9,
		TokensUsed: result.TotalTokens,
	}, nil
}
