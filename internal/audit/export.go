// internal/audit/export.go
package audit

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// summaryDocument is the machine readable index of the bundle. Binary
// evidence is referenced by relative path, never embedded.
type summaryDocument struct {
	SessionID       string                  `json:"session_id"`
	StartURL        string                  `json:"start_url"`
	StartedAt       time.Time               `json:"started_at"`
	EndedAt         time.Time               `json:"ended_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	ActionsTaken    int                     `json:"actions_taken"`
	BugsTotal       int                     `json:"bugs_total"`
	BugsBySeverity  map[schemas.Severity]int `json:"bugs_by_severity"`
	NetworkRequests int                     `json:"network_requests"`
	NetworkFailures int                     `json:"network_failures"`
	ConsoleLogs     int                     `json:"console_logs"`
	ConsoleErrors   int                     `json:"console_errors"`
	Observations    []string                `json:"observations"`
}

// bundle is an immutable copy of the trail taken under the lock so export
// can run without holding it.
type bundle struct {
	summary  summaryDocument
	actions  []*ActionRecord
	timeline []TimelineEvent
	bugs     []schemas.Bug
	network  []schemas.NetworkRequest
	console  []schemas.ConsoleLog
}

// Save writes the self contained audit bundle under dir. The layout is
// stable: summary.json, summary.html, timeline.jsonl, actions/NNN/,
// network/, console/ and bugs/bug_NNN/, with 1-based zero padded numbering.
func (t *Trail) Save(dir string) error {
	b := t.snapshot()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error { return writeSummary(dir, b) })
	g.Go(func() error { return writeTimeline(dir, b.timeline) })
	g.Go(func() error { return writeActions(dir, b.actions) })
	g.Go(func() error { return writeNetwork(dir, b.network) })
	g.Go(func() error { return writeConsole(dir, b.console) })
	g.Go(func() error { return writeBugs(dir, b.bugs) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to export audit bundle: %w", err)
	}
	t.logger.Info("Audit bundle saved.")
	return nil
}

func (t *Trail) snapshot() bundle {
	t.mu.Lock()
	defer t.mu.Unlock()

	endedAt := t.endedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	bySeverity := make(map[schemas.Severity]int)
	for _, bug := range t.bugs {
		bySeverity[bug.Severity]++
	}
	networkFailures := 0
	for _, req := range t.network {
		if req.Failed || req.Status >= 400 {
			networkFailures++
		}
	}
	consoleErrors := 0
	for _, entry := range t.console {
		if strings.EqualFold(entry.Level, "error") {
			consoleErrors++
		}
	}

	observations := make([]string, len(t.observations))
	copy(observations, t.observations)

	b := bundle{
		summary: summaryDocument{
			SessionID:       t.sessionID,
			StartURL:        t.startURL,
			StartedAt:       t.startedAt,
			EndedAt:         endedAt,
			DurationSeconds: endedAt.Sub(t.startedAt).Seconds(),
			ActionsTaken:    len(t.actions),
			BugsTotal:       len(t.bugs),
			BugsBySeverity:  bySeverity,
			NetworkRequests: len(t.network),
			NetworkFailures: networkFailures,
			ConsoleLogs:     len(t.console),
			ConsoleErrors:   consoleErrors,
			Observations:    observations,
		},
		actions:  make([]*ActionRecord, len(t.actions)),
		timeline: make([]TimelineEvent, len(t.timeline)),
		bugs:     make([]schemas.Bug, len(t.bugs)),
		network:  make([]schemas.NetworkRequest, len(t.network)),
		console:  make([]schemas.ConsoleLog, len(t.console)),
	}
	copy(b.actions, t.actions)
	copy(b.timeline, t.timeline)
	copy(b.bugs, t.bugs)
	copy(b.network, t.network)
	copy(b.console, t.console)
	return b
}

// -- Stream writers --

func writeJSONFile(path string, v any) error {
	data, err := fastJSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSONL[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	enc := fastJSON.NewEncoder(f)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("failed to encode record in %s: %w", filepath.Base(path), err)
		}
	}
	return f.Close()
}

func writeTimeline(dir string, timeline []TimelineEvent) error {
	return writeJSONL(filepath.Join(dir, "timeline.jsonl"), timeline)
}

func writeActions(dir string, actions []*ActionRecord) error {
	for _, action := range actions {
		actionDir := filepath.Join(dir, "actions", padNumber(action.ActionNumber))
		if err := os.MkdirAll(actionDir, 0o755); err != nil {
			return err
		}

		if len(action.Screenshot) > 0 {
			if err := os.WriteFile(filepath.Join(actionDir, "screenshot.png"), action.Screenshot, 0o644); err != nil {
				return err
			}
		}
		if len(action.MarkedScreenshot) > 0 {
			if err := os.WriteFile(filepath.Join(actionDir, "screenshot_marked.png"), action.MarkedScreenshot, 0o644); err != nil {
				return err
			}
		}
		if action.VisibleElements != nil {
			if err := writeJSONFile(filepath.Join(actionDir, "visible_elements.json"), action.VisibleElements); err != nil {
				return err
			}
		}
		if action.AIPrompt != "" {
			if err := os.WriteFile(filepath.Join(actionDir, "ai_prompt.txt"), []byte(action.AIPrompt), 0o644); err != nil {
				return err
			}
		}
		if err := writeJSONFile(filepath.Join(actionDir, "ai_response.json"), map[string]string{
			"provider":     action.AIProvider,
			"model":        action.AIModel,
			"raw_response": action.AIRawResponse,
		}); err != nil {
			return err
		}
		if action.Decision != nil {
			if err := writeJSONFile(filepath.Join(actionDir, "decision.json"), action.Decision); err != nil {
				return err
			}
		}
		if action.State != nil {
			if err := writeJSONFile(filepath.Join(actionDir, "state.json"), action.State); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeNetwork(dir string, requests []schemas.NetworkRequest) error {
	networkDir := filepath.Join(dir, "network")
	if err := os.MkdirAll(networkDir, 0o755); err != nil {
		return err
	}

	failures := make([]schemas.NetworkRequest, 0)
	for _, req := range requests {
		if req.Failed || req.Status >= 400 {
			failures = append(failures, req)
		}
	}

	if err := writeJSONL(filepath.Join(networkDir, "requests.jsonl"), requests); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(networkDir, "failures.jsonl"), failures)
}

func writeConsole(dir string, logs []schemas.ConsoleLog) error {
	consoleDir := filepath.Join(dir, "console")
	if err := os.MkdirAll(consoleDir, 0o755); err != nil {
		return err
	}

	errors := make([]schemas.ConsoleLog, 0)
	warnings := make([]schemas.ConsoleLog, 0)
	for _, entry := range logs {
		switch strings.ToLower(entry.Level) {
		case "error":
			errors = append(errors, entry)
		case "warning", "warn":
			warnings = append(warnings, entry)
		}
	}

	if err := writeJSONL(filepath.Join(consoleDir, "all.jsonl"), logs); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(consoleDir, "errors.jsonl"), errors); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(consoleDir, "warnings.jsonl"), warnings)
}

func writeBugs(dir string, bugs []schemas.Bug) error {
	for i, bug := range bugs {
		bugDir := filepath.Join(dir, "bugs", "bug_"+padNumber(i+1))
		if err := os.MkdirAll(bugDir, 0o755); err != nil {
			return err
		}
		if len(bug.Screenshot) > 0 {
			if err := os.WriteFile(filepath.Join(bugDir, "screenshot.png"), bug.Screenshot, 0o644); err != nil {
				return err
			}
		}
		if err := writeJSONFile(filepath.Join(bugDir, "details.json"), bug); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(dir string, b bundle) error {
	if err := writeJSONFile(filepath.Join(dir, "summary.json"), b.summary); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "summary.html"))
	if err != nil {
		return err
	}
	defer f.Close()

	data := struct {
		Summary summaryDocument
		Bugs    []schemas.Bug
	}{Summary: b.summary, Bugs: b.bugs}

	if err := summaryTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render summary.html: %w", err)
	}
	return f.Close()
}

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"severityColor": severityColor,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Audit Summary - {{.Summary.SessionID}}</title>
<style>
  body { font-family: -apple-system, system-ui, sans-serif; margin: 2rem; color: #1f2937; }
  h1 { font-size: 1.4rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #e5e7eb; }
  .stat { display: inline-block; margin-right: 2rem; }
  .stat b { font-size: 1.3rem; display: block; }
  .sev { font-weight: bold; }
</style>
</head>
<body>
<h1>Exploration Audit: {{.Summary.StartURL}}</h1>
<p>Session {{.Summary.SessionID}}, {{printf "%.1f" .Summary.DurationSeconds}}s</p>
<div>
  <span class="stat"><b>{{.Summary.ActionsTaken}}</b> actions</span>
  <span class="stat"><b>{{.Summary.BugsTotal}}</b> bugs</span>
  <span class="stat"><b>{{.Summary.NetworkFailures}}</b> network failures</span>
  <span class="stat"><b>{{.Summary.ConsoleErrors}}</b> console errors</span>
</div>
{{if .Bugs}}
<h2>Bugs</h2>
<table>
<tr><th>Severity</th><th>Title</th><th>URL</th><th>Description</th></tr>
{{range .Bugs}}
<tr>
  <td class="sev" style="color: {{severityColor .Severity}}">{{.Severity}}</td>
  <td>{{.Title}}</td>
  <td>{{.URL}}</td>
  <td>{{.Description}}</td>
</tr>
{{end}}
</table>
{{end}}
{{if .Summary.Observations}}
<h2>Observations</h2>
<ul>
{{range .Summary.Observations}}<li>{{.}}</li>{{end}}
</ul>
{{end}}
</body>
</html>
`))

func severityColor(s schemas.Severity) string {
	switch s {
	case schemas.SeverityCritical:
		return "#dc2626"
	case schemas.SeverityHigh:
		return "#ea580c"
	case schemas.SeverityMedium:
		return "#ca8a04"
	case schemas.SeverityLow:
		return "#16a34a"
	default:
		return "#6b7280"
	}
}
