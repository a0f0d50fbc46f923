package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/config"
	"github.com/yyup/kindergarten-engine/pkg/models"
)

// LLMClientFactory is the interface for creating LLM clients from model
// descriptors. Use this interface for dependency injection and testing.
type LLMClientFactory interface {
	CreateForModel(descriptor *models.ModelDescriptor) (LLMClient, error)
}

// ClientFactory creates provider-specific clients from model descriptors.
// Credentials come from server configuration, never from descriptors.
type ClientFactory struct {
	ai     *config.AIConfig
	logger *zap.Logger
}

// NewClientFactory creates a new factory.
func NewClientFactory(ai *config.AIConfig, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{
		ai:     ai,
		logger: logger,
	}
}

// CreateForModel creates an LLM client for the given model descriptor,
// dispatching on its provider.
func (f *ClientFactory) CreateForModel(descriptor *models.ModelDescriptor) (LLMClient, error) {
	switch descriptor.Provider {
	case models.ProviderOpenAI:
		endpoint := descriptor.Endpoint
		if endpoint == "" {
			endpoint = f.ai.OpenAIBaseURL
		}
		client, err := NewClient(&Config{
			Endpoint: endpoint,
			Model:    descriptor.Name,
			APIKey:   f.ai.OpenAIAPIKey,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil

	case models.ProviderAnthropic:
		endpoint := descriptor.Endpoint
		if endpoint == "" {
			endpoint = f.ai.AnthropicBaseURL
		}
		client, err := NewAnthropicClient(&Config{
			Endpoint: endpoint,
			Model:    descriptor.Name,
			APIKey:   f.ai.AnthropicAPIKey,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown model provider %q", descriptor.Provider)
	}
}

// Ensure ClientFactory implements LLMClientFactory at compile time.
var _ LLMClientFactory = (*ClientFactory)(nil)
