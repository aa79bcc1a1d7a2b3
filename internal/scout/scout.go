// Package scout turns natural language instructions into grounded browser
// actions. Every instruction runs a fresh scan so the model only ever sees
// elements that exist right now.
package scout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
	"github.com/xkilldash9x/scout-cli/internal/config"
	"github.com/xkilldash9x/scout-cli/internal/registry"
)

// Browser is the slice of the session surface the scout drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, text string, timeout time.Duration) error
	TypeText(ctx context.Context, selector, text string, timeout time.Duration) error
	SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error
	Hover(ctx context.Context, selector string, timeout time.Duration) error
	MouseWheel(ctx context.Context, dy float64) error
	Screenshot(ctx context.Context) ([]byte, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// Elements is the grounding surface: scan, mark, resolve.
type Elements interface {
	Scan(ctx context.Context) (*registry.PageElements, error)
	RenderMarkers(ctx context.Context) error
	Cleanup(ctx context.Context) error
	Resolve(ctx context.Context, snapshot *registry.PageElements, handle int) (string, error)
}

// Telemetry exposes the page's console and network streams.
type Telemetry interface {
	ConsoleLogs() []schemas.ConsoleLog
	NetworkRequests() []schemas.NetworkRequest
}

// VerificationEntry is one attempt in the scout's decision log. The
// screenshot hash ties the verdict to the exact frame it was judged on.
type VerificationEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	Kind           string    `json:"kind"`
	Instruction    string    `json:"instruction"`
	Attempt        int       `json:"attempt"`
	Passed         bool      `json:"passed"`
	Reason         string    `json:"reason,omitempty"`
	LatencyMs      float64   `json:"latency_ms"`
	ScreenshotHash string    `json:"screenshot_hash,omitempty"`
}

const (
	scrollDelta    = 300
	planRetryPause = 500 * time.Millisecond
	defaultWaitMs  = 1000
)

type Scout struct {
	browser   Browser
	elements  Elements
	backend   schemas.VisionBackend
	telemetry Telemetry
	cfg       config.ActConfig
	logger    *zap.Logger

	verifyLog   []VerificationEntry
	consoleMark int
	networkMark int
}

func New(browser Browser, elements Elements, backend schemas.VisionBackend, telemetry Telemetry, cfg config.ActConfig, logger *zap.Logger) *Scout {
	return &Scout{
		browser:   browser,
		elements:  elements,
		backend:   backend,
		telemetry: telemetry,
		cfg:       cfg,
		logger:    logger.Named("scout"),
	}
}

// Act executes a natural language instruction against the live page. It
// returns true on the first successful attempt; a plan of "none", a plan
// the page cannot satisfy, or an execution error all count as failed
// attempts and consume a retry.
func (s *Scout) Act(ctx context.Context, instruction string) bool {
	attempts := s.cfg.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		start := time.Now()
		err := s.attemptAction(ctx, instruction)
		latency := time.Since(start)

		entry := VerificationEntry{
			Timestamp:   time.Now(),
			Kind:        "act",
			Instruction: instruction,
			Attempt:     attempt,
			Passed:      err == nil,
			LatencyMs:   float64(latency.Milliseconds()),
		}
		if err != nil {
			entry.Reason = err.Error()
		}
		s.verifyLog = append(s.verifyLog, entry)

		if err == nil {
			s.logger.Info("Action succeeded.",
				zap.String("instruction", instruction),
				zap.Int("attempt", attempt),
				zap.Duration("latency", latency))
			return true
		}
		s.logger.Warn("Action attempt failed.",
			zap.String("instruction", instruction),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < attempts {
			select {
			case <-time.After(planRetryPause):
			case <-ctx.Done():
				return false
			}
		}
	}
	return false
}

func (s *Scout) attemptAction(ctx context.Context, instruction string) error {
	snapshot, marked, err := s.capturePlanningView(ctx)
	if err != nil {
		return err
	}

	plan, err := s.backend.PlanAction(ctx, instruction, marked, snapshot.PromptSummary())
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}
	if plan.IsNone() {
		return fmt.Errorf("model declined to act: %s", plan.Reason)
	}
	return s.Execute(ctx, plan, snapshot)
}

// capturePlanningView renders marker badges, grabs the marked screenshot the
// model plans against and strips the badges again so later screenshots and
// executed actions see the page as the user would.
func (s *Scout) capturePlanningView(ctx context.Context) (*registry.PageElements, []byte, error) {
	snapshot, err := s.elements.Scan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("element scan failed: %w", err)
	}
	if err := s.elements.RenderMarkers(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to render markers: %w", err)
	}
	marked, shotErr := s.browser.Screenshot(ctx)
	if cleanupErr := s.elements.Cleanup(ctx); cleanupErr != nil {
		s.logger.Warn("Marker cleanup failed.", zap.Error(cleanupErr))
	}
	if shotErr != nil {
		return nil, nil, fmt.Errorf("failed to capture screenshot: %w", shotErr)
	}
	return snapshot, marked, nil
}

// Execute runs a single planned action against the page. Targeted actions
// resolve the element handle against the snapshot they were planned from.
func (s *Scout) Execute(ctx context.Context, plan *schemas.ActionPlan, snapshot *registry.PageElements) error {
	if plan.Action.RequiresTarget() {
		if plan.ElementID == nil {
			return fmt.Errorf("action %q requires an element_id", plan.Action)
		}
		selector, err := s.elements.Resolve(ctx, snapshot, *plan.ElementID)
		if err != nil {
			return err
		}
		switch plan.Action {
		case schemas.ActionClick:
			return s.browser.Click(ctx, selector, s.cfg.Timeout)
		case schemas.ActionFill:
			return s.browser.Fill(ctx, selector, plan.Text, s.cfg.Timeout)
		case schemas.ActionTypeText:
			return s.browser.TypeText(ctx, selector, plan.Text, s.cfg.Timeout)
		case schemas.ActionSelect:
			return s.browser.SelectOption(ctx, selector, plan.Text, s.cfg.Timeout)
		case schemas.ActionHover:
			return s.browser.Hover(ctx, selector, s.cfg.Timeout)
		}
		return fmt.Errorf("unhandled targeted action %q", plan.Action)
	}

	switch plan.Action {
	case schemas.ActionScroll:
		delta := float64(scrollDelta)
		if plan.Direction == "up" {
			delta = -delta
		}
		return s.browser.MouseWheel(ctx, delta)
	case schemas.ActionWait:
		waitMs := plan.DurationMs
		if waitMs <= 0 {
			waitMs = defaultWaitMs
		}
		select {
		case <-time.After(time.Duration(waitMs) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case schemas.ActionDone:
		return nil
	}
	return fmt.Errorf("unhandled action %q", plan.Action)
}

// Verify polls the page until the assertion passes or the window expires.
// Each poll re-captures a clean screenshot and a fresh element scan so
// late-rendering UI still verifies.
func (s *Scout) Verify(ctx context.Context, assertion string) bool {
	deadline := time.Now().Add(s.cfg.VerifyWindow)
	lastReason := "Timeout"
	attempt := 0

	for {
		attempt++
		start := time.Now()
		result, shotHash, err := s.verifyOnce(ctx, assertion)
		latency := time.Since(start)

		entry := VerificationEntry{
			Timestamp:      time.Now(),
			Kind:           "verify",
			Instruction:    assertion,
			Attempt:        attempt,
			LatencyMs:      float64(latency.Milliseconds()),
			ScreenshotHash: shotHash,
		}
		switch {
		case err != nil:
			entry.Reason = err.Error()
			s.logger.Warn("Verification attempt errored.", zap.String("assertion", assertion), zap.Error(err))
		case result.Passed:
			entry.Passed = true
			entry.Reason = result.Reason
			s.verifyLog = append(s.verifyLog, entry)
			s.logger.Info("Assertion verified.", zap.String("assertion", assertion), zap.Int("attempt", attempt))
			return true
		default:
			entry.Reason = result.Reason
			lastReason = result.Reason
		}
		s.verifyLog = append(s.verifyLog, entry)

		if time.Now().After(deadline) || ctx.Err() != nil {
			s.logger.Warn("Assertion failed.",
				zap.String("assertion", assertion),
				zap.String("reason", lastReason),
				zap.Int("attempts", attempt))
			return false
		}
		select {
		case <-time.After(s.cfg.VerifyPoll):
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Scout) verifyOnce(ctx context.Context, assertion string) (*schemas.AssertionResult, string, error) {
	screenshot, err := s.browser.Screenshot(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	hash := registry.FingerprintScreenshot(screenshot)
	snapshot, err := s.elements.Scan(ctx)
	if err != nil {
		return nil, hash, fmt.Errorf("element scan failed: %w", err)
	}
	snapshot.Fingerprint = hash
	result, err := s.backend.VerifyAssertion(ctx, assertion, screenshot, snapshot.PromptSummary())
	return result, hash, err
}

// Query answers a free form question about the current page.
func (s *Scout) Query(ctx context.Context, question string) (string, error) {
	screenshot, err := s.browser.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return s.backend.Query(ctx, question, screenshot)
}

// DiscoverElements asks the model which marked elements are relevant to a
// goal, using the same marked-view capture as action planning.
func (s *Scout) DiscoverElements(ctx context.Context, goal string) (string, error) {
	snapshot, marked, err := s.capturePlanningView(ctx)
	if err != nil {
		return "", err
	}
	return s.backend.DiscoverElements(ctx, goal, marked, snapshot.PromptSummary())
}

// CheckNoErrors reports whether critical console errors or server-side
// failures arrived since the previous check, with one line per problem.
// High water marks keep an old error from failing every later check.
func (s *Scout) CheckNoErrors(ctx context.Context) (bool, []string) {
	if s.telemetry == nil || ctx.Err() != nil {
		return true, nil
	}
	var problems []string
	logs := s.telemetry.ConsoleLogs()
	for _, entry := range logs[min(s.consoleMark, len(logs)):] {
		if entry.IsCritical() {
			problems = append(problems, fmt.Sprintf("console error: %s", entry.Text))
		}
	}
	s.consoleMark = len(logs)

	requests := s.telemetry.NetworkRequests()
	for _, req := range requests[min(s.networkMark, len(requests)):] {
		if req.Status >= 500 {
			problems = append(problems, fmt.Sprintf("server error %d: %s %s", req.Status, req.Method, req.URL))
		} else if req.Failed {
			problems = append(problems, fmt.Sprintf("request failed: %s %s (%s)", req.Method, req.URL, req.FailureReason))
		}
	}
	s.networkMark = len(requests)

	return len(problems) == 0, problems
}

// VerificationLog returns a copy of the attempt log accumulated so far.
func (s *Scout) VerificationLog() []VerificationEntry {
	out := make([]VerificationEntry, len(s.verifyLog))
	copy(out, s.verifyLog)
	return out
}
