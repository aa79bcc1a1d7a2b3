// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/internal/config"
)

// NewRouterFromConfig assembles the fallback chain: the primary candidate
// first, then each configured fallback in order.
func NewRouterFromConfig(cfg config.AIConfig, logger *zap.Logger) (*FallbackRouter, error) {
	chain := append([]config.AICandidateConfig{{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
	}}, cfg.Fallbacks...)

	clients := make([]Client, 0, len(chain))
	for _, candidate := range chain {
		client, err := newClient(candidate, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s/%s client: %w", candidate.Provider, candidate.Model, err)
		}
		clients = append(clients, client)
	}

	return NewFallbackRouter(logger, cfg.RequestsPerMinute, clients...)
}

func newClient(candidate config.AICandidateConfig, cfg config.AIConfig, logger *zap.Logger) (Client, error) {
	switch candidate.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(candidate, cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(candidate, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %q", candidate.Provider)
	}
}
