// Package llm provides factory functions for creating assistant
// provider clients from settings.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/margo-labs/margo/internal/adapters/driven/llm/anthropic"
	"github.com/margo-labs/margo/internal/adapters/driven/llm/gemini"
	"github.com/margo-labs/margo/internal/adapters/driven/llm/ollama"
	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for connectivity validation.
const pingTimeout = 5 * time.Second

// Ensure NewClient satisfies the factory signature.
var _ driven.AssistantClientFactory = NewClient

// NewClient creates an assistant client for the configured provider.
// It validates the settings but does not contact the provider.
func NewClient(settings domain.AssistantSettings) (driven.AssistantClient, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: provider %q is not configured",
			domain.ErrAssistantUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case domain.AIProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case domain.AIProviderOllama:
		return ollama.NewClient(ollama.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q",
			domain.ErrAssistantUnavailable, settings.Provider)
	}
}

// NewValidatedClient creates an assistant client and validates
// connectivity with a short ping.
func NewValidatedClient(settings domain.AssistantSettings) (driven.AssistantClient, error) {
	client, err := NewClient(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)",
			domain.ErrAssistantUnavailable, err)
	}
	return client, nil
}
