package services

import (
	"context"
	"fmt"

	"github.com/yyup/kindergarten-engine/pkg/llm"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/registry"
	"github.com/yyup/kindergarten-engine/pkg/semantic"
)

// registryEmbedder resolves the embedding model through the registry on
// every call, so toggling models takes effect without a restart.
type registryEmbedder struct {
	registry registry.ModelRegistry
	factory  llm.LLMClientFactory
	model    string
}

var _ semantic.Embedder = (*registryEmbedder)(nil)

// NewRegistryEmbedder creates an Embedder backed by the model registry.
// model names the provider-side embedding model to request.
func NewRegistryEmbedder(reg registry.ModelRegistry, factory llm.LLMClientFactory, model string) semantic.Embedder {
	return &registryEmbedder{
		registry: reg,
		factory:  factory,
		model:    model,
	}
}

func (e *registryEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	descriptor, err := e.registry.SelectForCapability(ctx, models.CapabilityEmbedding)
	if err != nil {
		return nil, fmt.Errorf("no embedding model: %w", err)
	}

	client, err := e.factory.CreateForModel(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return client.CreateEmbedding(ctx, text, e.model)
}
