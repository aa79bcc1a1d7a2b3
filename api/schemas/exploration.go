package schemas

import (
	"encoding/json"
	"strings"
	"time"
)

// -- Exploration Schemas --

// Severity classifies the impact of a discovered bug.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity normalizes a raw severity string, defaulting unknown values
// to medium so an unrecognized label is never silently dropped.
func ParseSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return Severity(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return SeverityMedium
	}
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSeverity(raw)
	return nil
}

// Bug is one defect observed during a session. Records are append-only and
// never mutated after creation.
type Bug struct {
	Severity          Severity  `json:"severity"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ReproductionSteps []string  `json:"reproduction_steps,omitempty"`
	URL               string    `json:"url,omitempty"`
	Screenshot        []byte    `json:"-"`
	ConsoleErrors     []string  `json:"console_errors,omitempty"`
	NetworkErrors     []string  `json:"network_errors,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// ReportedBug is a bug as stated by the vision backend inside an exploration
// decision, before the explorer enriches it into a full Bug record.
type ReportedBug struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
}

// ExplorationDecision is the structured response driving one loop iteration.
type ExplorationDecision struct {
	NextAction   ActionPlan    `json:"next_action"`
	BugsFound    []ReportedBug `json:"bugs_found,omitempty"`
	Observations []string      `json:"observations,omitempty"`
}

// Done reports whether the backend asked to end the session.
func (d *ExplorationDecision) Done() bool {
	return d.NextAction.Action == ActionDone
}

// ExplorationReport is the caller-facing summary of one finished session.
type ExplorationReport struct {
	SessionID      string    `json:"session_id"`
	StartURL       string    `json:"start_url"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Bugs           []Bug     `json:"bugs"`
	PagesVisited   int       `json:"pages_visited"`
	ActionsTaken   int       `json:"actions_taken"`
	DurationSecs   float64   `json:"duration_seconds"`
	AIObservations []string  `json:"ai_observations"`
	StopReason     string    `json:"stop_reason,omitempty"`
}

// BugsBySeverity tallies the report's bugs for summary rendering.
func (r *ExplorationReport) BugsBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, b := range r.Bugs {
		counts[b.Severity]++
	}
	return counts
}
