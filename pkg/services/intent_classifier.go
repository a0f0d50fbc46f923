package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/llm"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/prompts"
	"github.com/yyup/kindergarten-engine/pkg/registry"
	"github.com/yyup/kindergarten-engine/pkg/schema"
)

// IntentClassifier decides whether a query needs database access and
// which tables it requires.
type IntentClassifier interface {
	// Classify analyzes the query against the tables visible to the role.
	// A model or parse failure yields a conservative low-confidence
	// analysis rather than an error; only a missing intent model fails.
	Classify(ctx context.Context, queryText, role string) (*models.IntentAnalysis, int, error)
}

type intentClassifier struct {
	registry registry.ModelRegistry
	factory  llm.LLMClientFactory
	schema   schema.SchemaGateway
	logger   *zap.Logger
}

var _ IntentClassifier = (*intentClassifier)(nil)

func NewIntentClassifier(reg registry.ModelRegistry, factory llm.LLMClientFactory, gateway schema.SchemaGateway, logger *zap.Logger) IntentClassifier {
	return &intentClassifier{
		registry: reg,
		factory:  factory,
		schema:   gateway,
		logger:   logger.Named("intent"),
	}
}

// conservativeAnalysis is returned when the model output cannot be
// interpreted. It claims a data query with no tables, which downstream
// handling treats as the safer non-data path.
func conservativeAnalysis() *models.IntentAnalysis {
	return &models.IntentAnalysis{
		IsDataQuery: true,
		QueryType:   "unknown",
		Confidence:  0.3,
		Explanation: "intent analysis failed, using conservative defaults",
	}
}

func (c *intentClassifier) Classify(ctx context.Context, queryText, role string) (*models.IntentAnalysis, int, error) {
	descriptor, err := c.registry.SelectForCapability(ctx, models.CapabilityIntent)
	if err != nil {
		return nil, 0, fmt.Errorf("no intent model: %w", err)
	}

	client, err := c.factory.CreateForModel(descriptor)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create intent client: %w", err)
	}

	allowed := c.schema.AllowedTables(role)
	names := allowed.Names()
	if allowed.Wildcard() {
		names = schema.KnownTables()
	}
	tables := make([]prompts.TableInfo, 0, len(names))
	for _, name := range names {
		tables = append(tables, prompts.TableInfo{
			Name:        name,
			Description: schema.DescribeTable(name),
		})
	}

	prompt := prompts.BuildIntentAnalysisPrompt(queryText, tables)

	result, err := client.GenerateResponse(ctx, prompt, prompts.IntentSystemMessage, 0.1, 500)
	if err != nil {
		c.logger.Warn("intent model call failed", zap.Error(err))
		return conservativeAnalysis(), 0, nil
	}

	analysis, err := llm.ParseJSONResponse[models.IntentAnalysis](result.Content)
	if err != nil {
		c.logger.Warn("unparseable intent response",
			zap.String("model", descriptor.Name), zap.Error(err))
		return conservativeAnalysis(), result.TotalTokens, nil
	}

	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}

	// Drop tables the role may not see. The gateway re-checks later;
	// filtering here keeps the SQL prompt from mentioning them at all.
	analysis.RequiredTables = allowed.Intersect(analysis.RequiredTables)

	return &analysis, result.TotalTokens, nil
}
