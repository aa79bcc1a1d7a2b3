// internal/llmclient/client.go
package llmclient

import "context"

// GenerationRequest is one multimodal prompt: text plus zero or more PNG
// screenshots the model should look at.
type GenerationRequest struct {
	System      string
	Prompt      string
	Images      [][]byte
	Temperature float64
	MaxTokens   int
	// ForceJSON asks the provider for a JSON-only response where the API
	// supports it. The response is still salvage-parsed; this only improves
	// the odds.
	ForceJSON bool
}

// Client is one concrete provider connection.
type Client interface {
	// Generate performs a single generation, retrying transient transport
	// failures internally.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Provider returns the provider name for logging and audit records.
	Provider() string
	// Model returns the model identifier in use.
	Model() string
}

// Generation is a completed response along with the candidate that served
// it. The serving model is a return value, never ambient state.
type Generation struct {
	Text     string
	Provider string
	Model    string
}
