package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/llm"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/prompts"
	"github.com/yyup/kindergarten-engine/pkg/registry"
	"github.com/yyup/kindergarten-engine/pkg/schema"
	sqlguard "github.com/yyup/kindergarten-engine/pkg/sql"
)

// SQLSynthesizer turns a classified query into a validated, read-only
// SELECT. The model prompt constrains the output but is not trusted:
// every statement is re-checked here before it can reach the executor.
type SQLSynthesizer interface {
	Synthesize(ctx context.Context, queryText, role string, intent *models.IntentAnalysis) (string, int, error)
}

type sqlSynthesizer struct {
	registry registry.ModelRegistry
	factory  llm.LLMClientFactory
	schema   schema.SchemaGateway
	logger   *zap.Logger
}

var _ SQLSynthesizer = (*sqlSynthesizer)(nil)

func NewSQLSynthesizer(reg registry.ModelRegistry, factory llm.LLMClientFactory, gateway schema.SchemaGateway, logger *zap.Logger) SQLSynthesizer {
	return &sqlSynthesizer{
		registry: reg,
		factory:  factory,
		schema:   gateway,
		logger:   logger.Named("synthesizer"),
	}
}

func (s *sqlSynthesizer) Synthesize(ctx context.Context, queryText, role string, intent *models.IntentAnalysis) (string, int, error) {
	// Screen the raw user text before it goes anywhere near a prompt.
	if check := sqlguard.CheckParameterForInjection("query", queryText); check != nil {
		s.logger.Warn("injection pattern in user query",
			zap.String("fingerprint", check.Fingerprint))
		return "", 0, fmt.Errorf("query text rejected: %w", apperrors.ErrTableNotAllowed)
	}

	schemaText, visibleTables, err := s.schema.SchemaFor(ctx, role, intent.RequiredTables)
	if err != nil {
		return "", 0, err
	}

	descriptor, err := s.registry.SelectForCapability(ctx, models.CapabilitySQL)
	if err != nil {
		return "", 0, fmt.Errorf("no sql model: %w", err)
	}

	client, err := s.factory.CreateForModel(descriptor)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sql client: %w", err)
	}

	prompt := prompts.BuildSQLGenerationPrompt(queryText, intent.QueryType, intent.Keywords, schemaText)
	system := prompts.SQLSystemMessage(intent.QueryType)

	result, err := client.GenerateResponse(ctx, prompt, system, 0.1, 800)
	if err != nil {
		return "", 0, fmt.Errorf("sql model call failed: %w", err)
	}

	validation := sqlguard.ValidateAndNormalize(result.Content)
	if validation.Error != nil {
		return "", result.TotalTokens, fmt.Errorf("generated sql rejected: %w", validation.Error)
	}
	generated := validation.NormalizedSQL
	if generated == "" {
		return "", result.TotalTokens, fmt.Errorf("sql model returned an empty statement")
	}

	if err := sqlguard.EnsureReadOnlySelect(generated); err != nil {
		return "", result.TotalTokens, fmt.Errorf("generated sql rejected: %w", err)
	}

	// Independent role containment check: everything the statement
	// touches must be visible to the role, regardless of what the model
	// was told.
	referenced := s.schema.TablesReferencedBy(generated)
	if err := s.schema.ValidateTables(role, referenced); err != nil {
		s.logger.Warn("generated sql references disallowed table",
			zap.String("role", role),
			zap.Strings("referenced", referenced),
			zap.Strings("visible", visibleTables))
		return "", result.TotalTokens, err
	}

	return generated, result.TotalTokens, nil
}
