package llmclient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
	"github.com/xkilldash9x/scout-cli/internal/config"
	"github.com/xkilldash9x/scout-cli/internal/llmclient"
)

// scriptedGenerator returns canned responses in order and records every
// request it saw.
type scriptedGenerator struct {
	responses []string
	err       error
	requests  []llmclient.GenerationRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req llmclient.GenerationRequest) (*llmclient.Generation, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	idx := len(g.requests) - 1
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}
	return &llmclient.Generation{
		Text:     g.responses[idx],
		Provider: "gemini",
		Model:    "gemini-2.5-flash",
	}, nil
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{Temperature: 0.2, MaxTokens: 4096}
}

func TestPlanActionParsesStructuredResponse(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"```json\n{\"action\": \"click\", \"element_id\": 0, \"reason\": \"login button\", \"confidence\": 0.95}\n```",
	}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	plan, err := backend.PlanAction(context.Background(), "click the Login button", []byte{1}, "  [0] button \"Login\"")
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, plan.Action)
	require.NotNil(t, plan.ElementID)
	assert.Equal(t, 0, *plan.ElementID)

	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, "click the Login button")
	assert.Contains(t, gen.requests[0].Prompt, `[0] button "Login"`)
	assert.True(t, gen.requests[0].ForceJSON)
	require.Len(t, gen.requests[0].Images, 1)
}

func TestPlanActionUnparseableResponseDeclines(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"I am not sure what to click here."}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	plan, err := backend.PlanAction(context.Background(), "click something", nil, "")
	require.NoError(t, err, "a malformed response is a declined plan, not an error")
	assert.True(t, plan.IsNone())
	assert.Contains(t, plan.Reason, "Failed to parse")
	assert.Zero(t, plan.Confidence)
}

func TestPlanActionTransportFailureIsAnError(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("all candidates failed")}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	_, err := backend.PlanAction(context.Background(), "click", nil, "")
	require.Error(t, err)
}

func TestVerifyAssertion(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"passed": true, "reason": "cart shows 2 items", "confidence": 0.9}`}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	result, err := backend.VerifyAssertion(context.Background(), "the cart shows 2 items", []byte{1}, "")
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, "cart shows 2 items", result.Reason)
}

func TestVerifyAssertionUnparseableIsError(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"probably fine"}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	_, err := backend.VerifyAssertion(context.Background(), "anything", nil, "")
	require.Error(t, err)
}

func TestDecideExplorationCarriesRawResponseOnParseFailure(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"let me think about that"}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	result, err := backend.DecideExploration(context.Background(), schemas.ExplorationQuery{
		URL:              "https://app.example.com",
		MarkedScreenshot: []byte{1},
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.Decision)
	assert.NotEmpty(t, result.Prompt, "the prompt must be auditable even when parsing fails")
	assert.Equal(t, "let me think about that", result.RawResponse)
	assert.Equal(t, "gemini", result.Provider)
}

func TestDecideExplorationStrictModeTightensPrompt(t *testing.T) {
	decision := `{"next_action": {"action": "click", "element_id": 1, "confidence": 0.8}, "observations": ["menu opened"]}`
	gen := &scriptedGenerator{responses: []string{decision, decision}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	query := schemas.ExplorationQuery{URL: "https://app.example.com", MarkedScreenshot: []byte{1}}

	_, err := backend.DecideExploration(context.Background(), query)
	require.NoError(t, err)

	query.Strict = true
	result, err := backend.DecideExploration(context.Background(), query)
	require.NoError(t, err)
	require.NotNil(t, result.Decision)
	assert.Equal(t, []string{"menu opened"}, result.Decision.Observations)

	require.Len(t, gen.requests, 2)
	assert.NotContains(t, gen.requests[0].Prompt, "Return ONLY valid JSON")
	assert.Contains(t, gen.requests[1].Prompt, "Return ONLY valid JSON")
}

func TestDecideExplorationIncludesHistoryAndBothScreenshots(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"next_action": {"action": "done"}}`}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	result, err := backend.DecideExploration(context.Background(), schemas.ExplorationQuery{
		URL:              "https://app.example.com/cart",
		PageTitle:        "Cart",
		RecentActions:    []string{"clicked button: Add to cart", "scrolled down"},
		MarkedScreenshot: []byte{1},
		CleanScreenshot:  []byte{2},
	})
	require.NoError(t, err)
	assert.True(t, result.Decision.Done())

	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, "clicked button: Add to cart")
	assert.Contains(t, gen.requests[0].Prompt, "https://app.example.com/cart")
	assert.Len(t, gen.requests[0].Images, 2)
}

func TestQueryReturnsPlainText(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"  The page shows a login form.  "}}
	backend := llmclient.NewBackendWithGenerator(gen, testAIConfig(), zap.NewNop())

	answer, err := backend.Query(context.Background(), "what is on this page?", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "The page shows a login form.", answer)
	assert.False(t, gen.requests[0].ForceJSON)
}
