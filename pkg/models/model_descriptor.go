package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies which client implementation serves a model.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Capability tags describe what a registered model can be used for.
const (
	CapabilityIntent    = "intent"
	CapabilitySQL       = "sql"
	CapabilityChat      = "chat"
	CapabilityEmbedding = "embedding"
)

// ModelDescriptor describes a registered model endpoint.
type ModelDescriptor struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`     // Model name, e.g., "gpt-4o"
	Provider     string    `json:"provider"` // "openai" or "anthropic"
	Endpoint     string    `json:"endpoint,omitempty"`
	Capabilities []string  `json:"capabilities"`
	Priority     int       `json:"priority"` // Higher wins
	Active       bool      `json:"active"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// HasCapability reports whether the descriptor carries the given tag.
func (d *ModelDescriptor) HasCapability(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
