package schemas

import "context"

// -- Vision Backend Contract --

// ExplorationQuery carries everything the backend needs to choose the next
// exploration step. MarkedScreenshot shows the numbered element markers;
// CleanScreenshot is the unmodified page.
type ExplorationQuery struct {
	URL              string
	PageTitle        string
	ElementSummary   string
	RecentActions    []string
	VisitedElements  []string
	MarkedScreenshot []byte
	CleanScreenshot  []byte
	// Strict demands bare JSON with no surrounding prose. Set on retries
	// after a malformed response.
	Strict bool
}

// ExplorationResult pairs a parsed decision with the exact prompt and raw
// response that produced it, so the audit trail can reproduce the exchange.
// On a parse failure Decision is nil but Prompt and RawResponse are still
// populated.
type ExplorationResult struct {
	Decision    *ExplorationDecision
	Prompt      string
	RawResponse string
	Provider    string
	Model       string
}

// VisionBackend is the single capability interface over vision AI providers.
// The grounding and exploration core depends only on this contract, never on
// a concrete provider, so a deterministic test double can stand in.
type VisionBackend interface {
	// PlanAction maps one natural language instruction plus a marked
	// screenshot to a structured plan. Unparseable output yields a plan with
	// Action none and Confidence 0, not an error.
	PlanAction(ctx context.Context, instruction string, markedScreenshot []byte, elementSummary string) (*ActionPlan, error)

	// VerifyAssertion evaluates a natural language assertion against a clean
	// screenshot.
	VerifyAssertion(ctx context.Context, assertion string, cleanScreenshot []byte, elementSummary string) (*AssertionResult, error)

	// Query answers a free form question about the current page.
	Query(ctx context.Context, question string, screenshot []byte) (string, error)

	// DiscoverElements describes the interactive elements relevant to a goal.
	DiscoverElements(ctx context.Context, goal string, markedScreenshot []byte, elementSummary string) (string, error)

	// DecideExploration requests the next autonomous exploration step.
	DecideExploration(ctx context.Context, query ExplorationQuery) (*ExplorationResult, error)
}
