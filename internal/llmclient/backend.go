// internal/llmclient/backend.go
package llmclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
	"github.com/xkilldash9x/scout-cli/internal/config"
	"github.com/xkilldash9x/scout-cli/internal/llmutil"
)

const actionSystemPrompt = `You are a browser automation agent. You receive a screenshot of a web page
overlaid with numbered red markers. Each number identifies one interactive
element, listed again in the text summary. You decide exactly one browser
action at a time and you respond with a single JSON object, nothing else.`

const actionSchemaHint = `Respond ONLY with a JSON object of this shape:
{"action": "click|fill|type|select|scroll|wait|hover|none",
 "element_id": <marker number, required for click/fill/type/select/hover>,
 "text": "<text for fill/type, option value for select>",
 "direction": "up|down",
 "duration_ms": <milliseconds, for wait>,
 "reason": "<one sentence>",
 "confidence": <0.0 to 1.0>}
Use "none" when the instruction cannot be satisfied with the visible elements.`

const verifySystemPrompt = `You are a meticulous QA engineer. You receive a screenshot of a web page
and an assertion about it. Judge the assertion strictly on the visual
evidence. Respond with a single JSON object, nothing else.`

const explorationSystemPrompt = `You are an autonomous QA explorer testing a web application for defects.
You receive a screenshot with numbered red markers over the interactive
elements, plus a clean screenshot of the same page. Your job each turn is to
pick ONE next action that exercises behavior you have not tried yet, and to
report any defect you can see.

Rules:
- Prefer elements you have not clicked before. The history of your recent
  actions is provided; do not repeat them unless the page clearly changed.
- If a login or signup form is visible, fill it with obviously fake test
  data (for example user "testscout@example.com", password "Password123!").
  Never use credentials that could belong to a real person.
- Do not leave the application under test: avoid external links, logout
  buttons and destructive-looking actions such as "delete account".
- Report a bug whenever you see an error message, a broken layout, missing
  content, or behavior that contradicts the element's label.
- When you have exercised everything worthwhile, return the action "done".`

const explorationSchemaHint = `Respond ONLY with a JSON object of this shape:
{"next_action": {"action": "click|fill|type|select|scroll|wait|hover|done",
                 "element_id": <marker number>, "text": "...",
                 "reason": "<one sentence>", "confidence": <0.0 to 1.0>},
 "bugs_found": [{"severity": "critical|high|medium|low|info",
                 "title": "...", "description": "..."}],
 "observations": ["<short note about the application>"]}`

const strictJSONSuffix = "\n\nIMPORTANT: Return ONLY valid JSON. No markdown fences, no commentary, no text outside the JSON object."

// generator is the slice of the router the backend depends on.
type generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*Generation, error)
}

// Backend implements schemas.VisionBackend on top of the fallback router and
// owns every prompt template.
type Backend struct {
	gen    generator
	cfg    config.AIConfig
	logger *zap.Logger
}

var _ schemas.VisionBackend = (*Backend)(nil)

// NewBackend builds the vision backend from configuration.
func NewBackend(cfg config.AIConfig, logger *zap.Logger) (*Backend, error) {
	router, err := NewRouterFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{gen: router, cfg: cfg, logger: logger.Named("vision_backend")}, nil
}

// NewBackendWithGenerator wires an explicit generator, used by tests.
func NewBackendWithGenerator(gen generator, cfg config.AIConfig, logger *zap.Logger) *Backend {
	return &Backend{gen: gen, cfg: cfg, logger: logger.Named("vision_backend")}
}

// PlanAction maps one instruction to a structured plan. A response that
// cannot be parsed yields a declined plan, never an error; transport failure
// after all fallbacks is the only error path.
func (b *Backend) PlanAction(ctx context.Context, instruction string, markedScreenshot []byte, elementSummary string) (*schemas.ActionPlan, error) {
	prompt := fmt.Sprintf(`Instruction: %s

Visible interactive elements:
%s

%s`, instruction, elementSummary, actionSchemaHint)

	gen, err := b.gen.Generate(ctx, b.request(actionSystemPrompt, prompt, markedScreenshot))
	if err != nil {
		return nil, fmt.Errorf("action planning failed: %w", err)
	}

	plan, parseErr := llmutil.ParseJSONResponse[schemas.ActionPlan](gen.Text)
	if parseErr != nil {
		b.logger.Warn("Unparseable action plan from model.", zap.Error(parseErr),
			zap.String("model", gen.Model))
		return &schemas.ActionPlan{
			Action:     schemas.ActionNone,
			Reason:     fmt.Sprintf("Failed to parse model response: %v", parseErr),
			Confidence: 0,
		}, nil
	}
	return plan, nil
}

// VerifyAssertion evaluates an assertion against the clean screenshot.
func (b *Backend) VerifyAssertion(ctx context.Context, assertion string, cleanScreenshot []byte, elementSummary string) (*schemas.AssertionResult, error) {
	prompt := fmt.Sprintf(`Assertion: %s

Visible interactive elements:
%s

Respond ONLY with a JSON object: {"passed": true|false, "reason": "<one sentence>", "confidence": <0.0 to 1.0>}`, assertion, elementSummary)

	gen, err := b.gen.Generate(ctx, b.request(verifySystemPrompt, prompt, cleanScreenshot))
	if err != nil {
		return nil, fmt.Errorf("assertion verification failed: %w", err)
	}

	result, parseErr := llmutil.ParseJSONResponse[schemas.AssertionResult](gen.Text)
	if parseErr != nil {
		return nil, fmt.Errorf("unparseable assertion verdict: %w", parseErr)
	}
	return result, nil
}

// Query answers a free form question about the page in plain text.
func (b *Backend) Query(ctx context.Context, question string, screenshot []byte) (string, error) {
	req := b.request("You are a helpful assistant describing a web page screenshot accurately and concisely.", question, screenshot)
	req.ForceJSON = false

	gen, err := b.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("page query failed: %w", err)
	}
	return strings.TrimSpace(gen.Text), nil
}

// DiscoverElements describes the elements relevant to a goal in plain text.
func (b *Backend) DiscoverElements(ctx context.Context, goal string, markedScreenshot []byte, elementSummary string) (string, error) {
	prompt := fmt.Sprintf(`Goal: %s

Visible interactive elements:
%s

Describe which of the numbered elements are relevant to the goal and why, one line each.`, goal, elementSummary)

	req := b.request(actionSystemPrompt, prompt, markedScreenshot)
	req.ForceJSON = false

	gen, err := b.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("element discovery failed: %w", err)
	}
	return strings.TrimSpace(gen.Text), nil
}

// DecideExploration requests the next autonomous step. The returned result
// always carries the prompt, and carries the raw response whenever a model
// answered, even if that answer failed to parse.
func (b *Backend) DecideExploration(ctx context.Context, query schemas.ExplorationQuery) (*schemas.ExplorationResult, error) {
	prompt := b.buildExplorationPrompt(query)
	result := &schemas.ExplorationResult{Prompt: prompt}

	req := b.request(explorationSystemPrompt, prompt, query.MarkedScreenshot)
	if len(query.CleanScreenshot) > 0 {
		req.Images = append(req.Images, query.CleanScreenshot)
	}

	gen, err := b.gen.Generate(ctx, req)
	if err != nil {
		return result, fmt.Errorf("exploration decision failed: %w", err)
	}
	result.RawResponse = gen.Text
	result.Provider = gen.Provider
	result.Model = gen.Model

	decision, parseErr := llmutil.ParseJSONResponse[schemas.ExplorationDecision](gen.Text)
	if parseErr != nil {
		return result, fmt.Errorf("unparseable exploration decision: %w", parseErr)
	}
	result.Decision = decision
	return result, nil
}

func (b *Backend) buildExplorationPrompt(query schemas.ExplorationQuery) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current page: %s", query.URL)
	if query.PageTitle != "" {
		fmt.Fprintf(&sb, " (%q)", query.PageTitle)
	}
	sb.WriteString("\n\nVisible interactive elements:\n")
	sb.WriteString(query.ElementSummary)

	if len(query.RecentActions) > 0 {
		sb.WriteString("\n\nYour recent actions (most recent last):\n")
		for _, action := range query.RecentActions {
			fmt.Fprintf(&sb, "- %s\n", action)
		}
	}

	if len(query.VisitedElements) > 0 {
		sb.WriteString("\nAlready interacted with on this page (prefer untried elements):\n")
		for _, el := range query.VisitedElements {
			fmt.Fprintf(&sb, "- %s\n", el)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(explorationSchemaHint)
	if query.Strict {
		sb.WriteString(strictJSONSuffix)
	}
	return sb.String()
}

func (b *Backend) request(system, prompt string, screenshot []byte) GenerationRequest {
	req := GenerationRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: b.cfg.Temperature,
		MaxTokens:   b.cfg.MaxTokens,
		ForceJSON:   true,
	}
	if len(screenshot) > 0 {
		req.Images = [][]byte{screenshot}
	}
	return req
}
