// Package explorer drives the autonomous exploration loop: scan the page,
// ask the vision backend what to do next, execute it, and keep a durable
// record of every step. The loop is strictly sequential; deadlines are
// checked between iterations, never mid-action.
package explorer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
	"github.com/xkilldash9x/scout-cli/internal/audit"
	"github.com/xkilldash9x/scout-cli/internal/config"
	"github.com/xkilldash9x/scout-cli/internal/registry"
	"github.com/xkilldash9x/scout-cli/internal/scout"
)

const (
	recentActionWindow   = 5
	maxDecisionAttempts  = 3
	readinessGateTimeout = 15 * time.Second
)

// Browser is the page surface the explorer needs beyond plain actions.
type Browser interface {
	scout.Browser
	Evaluate(ctx context.Context, script string, out any) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	WaitForFunction(ctx context.Context, predicate string, timeout time.Duration) error
}

// Executor runs one planned action against a snapshot it was planned from.
type Executor interface {
	Execute(ctx context.Context, plan *schemas.ActionPlan, snapshot *registry.PageElements) error
}

type Explorer struct {
	browser   Browser
	elements  scout.Elements
	executor  Executor
	backend   schemas.VisionBackend
	telemetry scout.Telemetry
	trail     *audit.Trail
	cfg       config.ExploreConfig
	logger    *zap.Logger

	state       *ExplorationState
	phase       State
	consoleMark int
	networkMark int
	seenBugs    map[string]bool
	seenObs     map[string]bool

	report *schemas.ExplorationReport
}

func New(browser Browser, elements scout.Elements, executor Executor, backend schemas.VisionBackend, telemetry scout.Telemetry, trail *audit.Trail, cfg config.ExploreConfig, logger *zap.Logger) *Explorer {
	return &Explorer{
		browser:   browser,
		elements:  elements,
		executor:  executor,
		backend:   backend,
		telemetry: telemetry,
		trail:     trail,
		cfg:       cfg,
		logger:    logger.Named("explorer"),
		state:     NewExplorationState(),
		phase:     StateStarting,
		seenBugs:  make(map[string]bool),
		seenObs:   make(map[string]bool),
	}
}

// Explore runs one full autonomous session against startURL. It always
// returns a valid report: navigation failure ends the session early but
// still yields an inspectable report and audit bundle.
func (e *Explorer) Explore(ctx context.Context, startURL string) (*schemas.ExplorationReport, error) {
	sessionID := uuid.NewString()
	e.report = &schemas.ExplorationReport{
		SessionID: sessionID,
		StartURL:  startURL,
		StartedAt: time.Now(),
	}
	e.trail.StartSession(sessionID, startURL)
	e.logger.Info("Exploration session starting.",
		zap.String("session_id", sessionID),
		zap.String("start_url", startURL),
		zap.Int("max_actions", e.cfg.MaxActions),
		zap.Duration("max_time", e.cfg.MaxTime))

	if err := e.browser.Navigate(ctx, startURL); err != nil {
		e.recordBug(schemas.Bug{
			Severity:    schemas.SeverityCritical,
			Title:       "Failed to load page",
			Description: fmt.Sprintf("Navigation to %s failed: %v", startURL, err),
			URL:         startURL,
		}, nil)
		return e.finalize(StopError), nil
	}
	e.state.StartURL = startURL
	e.state.MarkURLVisited(startURL)
	e.state.PagesVisited = 1

	e.waitForReadiness(ctx)

	currentURL, _ := e.browser.CurrentURL(ctx)
	if currentURL == "" {
		currentURL = startURL
	}
	if bug := e.checkBlankPage(ctx, currentURL); bug != nil {
		screenshot, _ := e.browser.Screenshot(ctx)
		e.recordBug(*bug, screenshot)
	}

	e.phase = StateLooping
	deadline := time.Now().Add(e.cfg.MaxTime)
	stop := StopActionLimit

	for e.state.ActionsTaken < e.cfg.MaxActions {
		if ctx.Err() != nil {
			stop = StopError
			break
		}
		if time.Now().After(deadline) {
			stop = StopTimeLimit
			break
		}

		reason, done := e.step(ctx)
		if done {
			stop = reason
			break
		}

		select {
		case <-time.After(e.cfg.SettlePause):
		case <-ctx.Done():
			stop = StopError
		}
		if stop == StopError {
			break
		}
	}

	return e.finalize(stop), nil
}

// waitForReadiness applies the optional post-navigation gates in order.
// Gate failures become observations, never session errors.
func (e *Explorer) waitForReadiness(ctx context.Context) {
	if e.cfg.WaitForSelector != "" {
		if err := e.browser.WaitForSelector(ctx, e.cfg.WaitForSelector, readinessGateTimeout); err != nil {
			e.recordObservation(fmt.Sprintf("Readiness selector %q never appeared: %v", e.cfg.WaitForSelector, err))
		}
	}
	if e.cfg.AppReadyScript != "" {
		if err := e.browser.WaitForFunction(ctx, e.cfg.AppReadyScript, readinessGateTimeout); err != nil {
			e.recordObservation(fmt.Sprintf("App readiness predicate never became true: %v", err))
		}
	}
}

// step runs one full iteration: capture, bug sweep, decision, execution,
// state update. It returns (reason, true) when the session should stop.
func (e *Explorer) step(ctx context.Context) (StopReason, bool) {
	url, _ := e.browser.CurrentURL(ctx)

	snapshot, clean, marked, err := e.captureViews(ctx)
	if err != nil {
		e.recordObservation(fmt.Sprintf("Page capture failed: %v", err))
		return StopError, true
	}

	for _, bug := range e.checkForBugs(url) {
		e.recordBug(bug, clean)
	}

	// The full snapshot goes to the audit so visible_elements.json carries
	// the screenshot fingerprint alongside the elements.
	actionNumber := e.trail.StartAction(url, clean, marked, snapshot)

	decision := e.requestDecision(ctx, url, snapshot, clean, marked)
	if decision == nil {
		e.recordObservation("AI could not produce a valid decision; ending session")
		e.trail.CompleteAction(false, fmt.Errorf("no valid decision after %d attempts", maxDecisionAttempts), e.state.Snapshot(url, e.phase))
		return StopAIDeclined, true
	}
	e.trail.RecordDecision(decision)

	for _, reported := range decision.BugsFound {
		e.recordBug(schemas.Bug{
			Severity:    reported.Severity,
			Title:       reported.Title,
			Description: reported.Description,
			URL:         url,
		}, clean)
	}
	for _, obs := range decision.Observations {
		e.recordObservation(obs)
	}

	if decision.Done() {
		e.trail.CompleteAction(true, nil, e.state.Snapshot(url, e.phase))
		return StopDone, true
	}

	execErr := e.executeAction(ctx, &decision.NextAction, snapshot, url)
	e.state.ActionsTaken++
	e.trail.CompleteAction(execErr == nil, execErr, e.state.Snapshot(url, e.phase))

	e.logger.Info("Iteration complete.",
		zap.Int("action", actionNumber),
		zap.String("next_action", string(decision.NextAction.Action)),
		zap.Bool("success", execErr == nil))

	if newURL, _ := e.browser.CurrentURL(ctx); newURL != "" && newURL != url {
		if e.state.MarkURLVisited(newURL) {
			e.state.PagesVisited++
			e.logger.Info("Navigated to new page.", zap.String("url", newURL))
		}
		e.trail.RecordNavigation(url, newURL)

		if newURL == e.state.StartURL {
			e.state.Depth = 0
		} else {
			e.state.Depth++
		}
		if e.cfg.MaxDepth > 0 && e.state.Depth > e.cfg.MaxDepth {
			e.returnToStart(ctx, newURL)
		}
	}
	return "", false
}

// returnToStart brings a session that wandered past the depth ceiling back
// to the entry page. A failed return is left to the next iteration's
// capture to surface.
func (e *Explorer) returnToStart(ctx context.Context, fromURL string) {
	e.logger.Info("Depth ceiling reached, returning to start.",
		zap.Int("depth", e.state.Depth), zap.String("from", fromURL))
	if err := e.browser.Navigate(ctx, e.state.StartURL); err != nil {
		e.logger.Warn("Return to start failed.", zap.Error(err))
		return
	}
	e.state.Depth = 0
	e.state.RecordAction(fmt.Sprintf("returned to %s (depth limit)", e.state.StartURL))
	e.trail.RecordNavigation(fromURL, e.state.StartURL)
}

// captureViews produces the planning inputs for one iteration: a fresh
// scan, a clean screenshot, and a marked screenshot. Markers are removed
// before the clean shot so the model verifies against what a user sees.
func (e *Explorer) captureViews(ctx context.Context) (*registry.PageElements, []byte, []byte, error) {
	snapshot, err := e.elements.Scan(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := e.elements.RenderMarkers(ctx); err != nil {
		return nil, nil, nil, err
	}
	marked, markedErr := e.browser.Screenshot(ctx)
	if err := e.elements.Cleanup(ctx); err != nil {
		e.logger.Warn("Marker cleanup failed.", zap.Error(err))
	}
	if markedErr != nil {
		return nil, nil, nil, markedErr
	}
	clean, err := e.browser.Screenshot(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	snapshot.Fingerprint = registry.FingerprintScreenshot(clean)
	return snapshot, clean, marked, nil
}

// requestDecision asks the backend for the next move, retrying malformed
// output with a stricter prompt. Every attempt's prompt and raw response
// land in the audit trail even when parsing fails.
func (e *Explorer) requestDecision(ctx context.Context, url string, snapshot *registry.PageElements, clean, marked []byte) *schemas.ExplorationDecision {
	title, _ := e.browser.Title(ctx)

	// Visited elements are soft guidance only. The model may still repeat
	// one, which keeps pagination style controls usable.
	var visited []string
	for i := range snapshot.Elements {
		el := &snapshot.Elements[i]
		if e.state.ElementVisited(url, el) {
			visited = append(visited, el.Description())
		}
	}

	query := schemas.ExplorationQuery{
		URL:              url,
		PageTitle:        title,
		ElementSummary:   snapshot.PromptSummary(),
		RecentActions:    e.state.RecentActions(recentActionWindow),
		VisitedElements:  visited,
		MarkedScreenshot: marked,
		CleanScreenshot:  clean,
	}

	for attempt := 1; attempt <= maxDecisionAttempts; attempt++ {
		query.Strict = attempt > 1
		result, err := e.backend.DecideExploration(ctx, query)
		if result != nil {
			e.trail.RecordAIPrompt(result.Prompt)
			if result.RawResponse != "" {
				e.trail.RecordAIResponse(result.RawResponse, result.Provider, result.Model)
			}
			if result.Decision != nil {
				return result.Decision
			}
		}
		e.logger.Warn("Decision attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// executeAction runs the chosen action and folds any failure into a medium
// bug instead of propagating it. Successful targeted actions feed the
// visited set and the action history that steer the model away from loops.
func (e *Explorer) executeAction(ctx context.Context, plan *schemas.ActionPlan, snapshot *registry.PageElements, url string) error {
	var target *registry.DiscoveredElement
	if plan.Action.RequiresTarget() && plan.ElementID != nil {
		target = snapshot.FindByID(*plan.ElementID)
	}

	if err := e.executor.Execute(ctx, plan, snapshot); err != nil {
		e.recordBug(schemas.Bug{
			Severity:    schemas.SeverityMedium,
			Title:       fmt.Sprintf("Action Failed: %s", plan.Action),
			Description: err.Error(),
			URL:         url,
		}, nil)
		return err
	}

	switch plan.Action {
	case schemas.ActionClick:
		if target != nil {
			e.state.RecordAction("clicked " + target.Description())
			e.state.MarkElementVisited(url, target)
		}
	case schemas.ActionFill, schemas.ActionTypeText:
		if target != nil {
			text := plan.Text
			if len(text) > 20 {
				text = text[:20]
			}
			e.state.RecordAction(fmt.Sprintf("filled %s with %q", target.Description(), text))
			e.state.MarkElementVisited(url, target)
		}
	case schemas.ActionSelect:
		if target != nil {
			e.state.RecordAction(fmt.Sprintf("selected %q in %s", plan.Text, target.Description()))
			e.state.MarkElementVisited(url, target)
		}
	case schemas.ActionHover:
		if target != nil {
			e.state.RecordAction("hovered " + target.Description())
		}
	case schemas.ActionScroll:
		direction := plan.Direction
		if direction == "" {
			direction = "down"
		}
		e.state.RecordAction("scrolled " + direction)
	case schemas.ActionWait:
		e.state.RecordAction("waited for the page to settle")
	}
	return nil
}

// recordBug deduplicates by title and URL, enriches with reproduction
// steps, and forwards to the audit trail.
func (e *Explorer) recordBug(bug schemas.Bug, screenshot []byte) {
	key := bug.Title + "\x00" + bug.URL
	if e.seenBugs[key] {
		return
	}
	e.seenBugs[key] = true

	bug.Timestamp = time.Now()
	bug.ReproductionSteps = e.state.RecentActions(recentActionWindow)
	if bug.Screenshot == nil {
		bug.Screenshot = screenshot
	}
	e.report.Bugs = append(e.report.Bugs, bug)
	e.trail.RecordBug(bug)
}

// recordObservation deduplicates by exact text before appending.
func (e *Explorer) recordObservation(text string) {
	if text == "" || e.seenObs[text] {
		return
	}
	e.seenObs[text] = true
	e.report.AIObservations = append(e.report.AIObservations, text)
	e.trail.RecordObservation(text)
}

// finalize closes out the session: flushes the telemetry streams into the
// trail, writes the audit bundle if configured, and returns the report.
func (e *Explorer) finalize(reason StopReason) *schemas.ExplorationReport {
	e.phase = StateStopped
	e.report.EndedAt = time.Now()
	e.report.DurationSecs = e.report.EndedAt.Sub(e.report.StartedAt).Seconds()
	e.report.ActionsTaken = e.state.ActionsTaken
	e.report.PagesVisited = e.state.PagesVisited
	e.report.StopReason = string(reason)

	e.trail.RecordNetworkRequests(e.telemetry.NetworkRequests())
	e.trail.RecordConsoleLogs(e.telemetry.ConsoleLogs())
	e.trail.EndSession()

	if e.cfg.AuditDir != "" {
		if err := e.trail.Save(e.cfg.AuditDir); err != nil {
			e.logger.Error("Failed to save audit bundle.", zap.Error(err))
		}
	}

	e.logger.Info("Exploration session finished.",
		zap.String("stop_reason", string(reason)),
		zap.Int("actions_taken", e.report.ActionsTaken),
		zap.Int("pages_visited", e.report.PagesVisited),
		zap.Int("bugs", len(e.report.Bugs)))
	return e.report
}
