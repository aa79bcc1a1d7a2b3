// internal/audit/audit.go
package audit

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

// TimelineEvent is one entry in the strictly time ordered session log.
// ActionNumber is set when the event belongs to a numbered action.
type TimelineEvent struct {
	Timestamp    time.Time      `json:"timestamp"`
	EventType    string         `json:"event_type"`
	ActionNumber int            `json:"action_number,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// ActionRecord captures one exploration step end to end: the before state,
// the exact AI exchange, the resolved decision and the outcome. Records are
// append only and keyed by a 1-based monotonically increasing action number.
type ActionRecord struct {
	ActionNumber     int       `json:"action_number"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
	URL              string    `json:"url,omitempty"`
	Screenshot       []byte    `json:"-"`
	MarkedScreenshot []byte    `json:"-"`
	VisibleElements  any       `json:"-"`
	AIPrompt         string    `json:"-"`
	AIRawResponse    string    `json:"-"`
	AIProvider       string    `json:"ai_provider,omitempty"`
	AIModel          string    `json:"ai_model,omitempty"`
	Decision         any       `json:"-"`
	State            any       `json:"-"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	DurationMs       float64   `json:"duration_ms"`
}

// Trail is the session's append only forensic recorder. One Trail belongs to
// one session; the exploration loop is single threaded, but the lock keeps
// cross cutting records (console, network) safe to add from anywhere.
type Trail struct {
	logger *zap.Logger

	mu           sync.Mutex
	sessionID    string
	startURL     string
	startedAt    time.Time
	endedAt      time.Time
	actions      []*ActionRecord
	current      *ActionRecord
	timeline     []TimelineEvent
	bugs         []schemas.Bug
	observations []string
	network      []schemas.NetworkRequest
	console      []schemas.ConsoleLog
}

// NewTrail creates an empty audit trail.
func NewTrail(logger *zap.Logger) *Trail {
	return &Trail{logger: logger.Named("audit")}
}

// StartSession brackets the whole session.
func (t *Trail) StartSession(sessionID, startURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = sessionID
	t.startURL = startURL
	t.startedAt = time.Now()
	t.addEventLocked("session_start", 0, map[string]any{"url": startURL, "session_id": sessionID})
}

// EndSession closes the bracket. Idempotent.
func (t *Trail) EndSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.endedAt.IsZero() {
		return
	}
	t.endedAt = time.Now()
	t.addEventLocked("session_end", 0, map[string]any{
		"actions": len(t.actions),
		"bugs":    len(t.bugs),
	})
}

// StartAction opens the next numbered action record, capturing the before
// state. It returns the assigned action number.
func (t *Trail) StartAction(url string, cleanScreenshot, markedScreenshot []byte, visibleElements any) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := &ActionRecord{
		ActionNumber:     len(t.actions) + 1,
		StartedAt:        time.Now(),
		URL:              url,
		Screenshot:       cleanScreenshot,
		MarkedScreenshot: markedScreenshot,
		VisibleElements:  visibleElements,
	}
	t.actions = append(t.actions, record)
	t.current = record
	t.addEventLocked("action_start", record.ActionNumber, map[string]any{"url": url})
	return record.ActionNumber
}

// RecordAIPrompt attaches the exact prompt sent for the open action.
func (t *Trail) RecordAIPrompt(prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.AIPrompt = prompt
}

// RecordAIResponse attaches the raw model response for the open action.
func (t *Trail) RecordAIResponse(raw, provider, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.AIRawResponse = raw
	t.current.AIProvider = provider
	t.current.AIModel = model
}

// RecordDecision attaches the resolved decision for the open action.
func (t *Trail) RecordDecision(decision any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.Decision = decision
	t.addEventLocked("decision", t.current.ActionNumber, nil)
}

// CompleteAction closes the open action record with its outcome and an
// optional state snapshot.
func (t *Trail) CompleteAction(success bool, actionErr error, state any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.CompletedAt = time.Now()
	t.current.DurationMs = t.current.CompletedAt.Sub(t.current.StartedAt).Seconds() * 1000
	t.current.Success = success
	if actionErr != nil {
		t.current.Error = actionErr.Error()
	}
	t.current.State = state
	t.addEventLocked("action_complete", t.current.ActionNumber, map[string]any{
		"success":     success,
		"duration_ms": t.current.DurationMs,
	})
	t.current = nil
}

// RecordBug appends a bug record, tied to the open action when one exists.
func (t *Trail) RecordBug(bug schemas.Bug) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bugs = append(t.bugs, bug)

	actionNumber := 0
	if t.current != nil {
		actionNumber = t.current.ActionNumber
	}
	t.addEventLocked("bug_found", actionNumber, map[string]any{
		"severity": string(bug.Severity),
		"title":    bug.Title,
	})
	t.logger.Info("Bug recorded.",
		zap.String("severity", string(bug.Severity)),
		zap.String("title", bug.Title))
}

// RecordObservation appends a free form AI observation.
func (t *Trail) RecordObservation(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observations = append(t.observations, text)

	actionNumber := 0
	if t.current != nil {
		actionNumber = t.current.ActionNumber
	}
	t.addEventLocked("observation", actionNumber, map[string]any{"text": text})
}

// RecordNavigation notes a page transition.
func (t *Trail) RecordNavigation(fromURL, toURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	actionNumber := 0
	if t.current != nil {
		actionNumber = t.current.ActionNumber
	}
	t.addEventLocked("navigation", actionNumber, map[string]any{"from": fromURL, "to": toURL})
}

// RecordNetworkRequests appends captured network records.
func (t *Trail) RecordNetworkRequests(requests []schemas.NetworkRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.network = append(t.network, requests...)
}

// RecordConsoleLogs appends captured console records.
func (t *Trail) RecordConsoleLogs(logs []schemas.ConsoleLog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.console = append(t.console, logs...)
}

// Actions returns a snapshot of the closed and open action records.
func (t *Trail) Actions() []*ActionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*ActionRecord, len(t.actions))
	copy(out, t.actions)
	return out
}

// Bugs returns a snapshot of the recorded bugs.
func (t *Trail) Bugs() []schemas.Bug {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]schemas.Bug, len(t.bugs))
	copy(out, t.bugs)
	return out
}

// Timeline returns a snapshot of the ordered event stream.
func (t *Trail) Timeline() []TimelineEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimelineEvent, len(t.timeline))
	copy(out, t.timeline)
	return out
}

func (t *Trail) addEventLocked(eventType string, actionNumber int, details map[string]any) {
	t.timeline = append(t.timeline, TimelineEvent{
		Timestamp:    time.Now(),
		EventType:    eventType,
		ActionNumber: actionNumber,
		Details:      details,
	})
}

func padNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}
