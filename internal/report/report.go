// Package report renders finished exploration sessions for humans and
// machines. The format is inferred from the output path extension; an empty
// path writes the plain-text summary to stdout.
package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Write renders the report to outputPath, choosing the renderer from the
// file extension: .html, .json, anything else plain text. An empty path or
// "stdout" writes text to standard output.
func Write(report *schemas.ExplorationReport, outputPath string) error {
	if outputPath == "" || outputPath == "stdout" {
		return writeText(os.Stdout, report)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", outputPath, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".html":
		err = writeHTML(f, report)
	case ".json":
		err = writeJSON(f, report)
	default:
		err = writeText(f, report)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, report *schemas.ExplorationReport) error {
	data, err := fastJSON.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeText(w io.Writer, report *schemas.ExplorationReport) error {
	var b strings.Builder
	b.WriteString("Exploration Report\n")
	b.WriteString("==================\n")
	fmt.Fprintf(&b, "Start URL:      %s\n", report.StartURL)
	fmt.Fprintf(&b, "Duration:       %.1fs\n", report.DurationSecs)
	fmt.Fprintf(&b, "Actions taken:  %d\n", report.ActionsTaken)
	fmt.Fprintf(&b, "Pages visited:  %d\n", report.PagesVisited)
	fmt.Fprintf(&b, "Stop reason:    %s\n", report.StopReason)
	fmt.Fprintf(&b, "Bugs found:     %d\n", len(report.Bugs))

	if len(report.Bugs) > 0 {
		b.WriteString("\nBugs\n----\n")
		for i, bug := range report.Bugs {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, strings.ToUpper(string(bug.Severity)), bug.Title)
			if bug.Description != "" {
				fmt.Fprintf(&b, "   %s\n", bug.Description)
			}
			if bug.URL != "" {
				fmt.Fprintf(&b, "   at %s\n", bug.URL)
			}
		}
	}
	if len(report.AIObservations) > 0 {
		b.WriteString("\nObservations\n------------\n")
		for _, obs := range report.AIObservations {
			fmt.Fprintf(&b, "- %s\n", obs)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHTML(w io.Writer, report *schemas.ExplorationReport) error {
	if err := reportTemplate.Execute(w, report); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	return nil
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"severityColor": severityColor,
	"upper":         strings.ToUpper,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Exploration Report - {{.StartURL}}</title>
<style>
  body { font-family: -apple-system, system-ui, sans-serif; margin: 2rem; color: #1f2937; }
  h1 { font-size: 1.4rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #e5e7eb; vertical-align: top; }
  .stat { display: inline-block; margin-right: 2rem; }
  .stat b { font-size: 1.3rem; display: block; }
  .sev { font-weight: bold; white-space: nowrap; }
  ol.repro { margin: 4px 0 0 1rem; padding: 0; color: #6b7280; }
</style>
</head>
<body>
<h1>Exploration Report: {{.StartURL}}</h1>
<p>{{printf "%.1f" .DurationSecs}}s, stopped: {{.StopReason}}</p>
<div>
  <span class="stat"><b>{{.ActionsTaken}}</b> actions</span>
  <span class="stat"><b>{{.PagesVisited}}</b> pages</span>
  <span class="stat"><b>{{len .Bugs}}</b> bugs</span>
</div>
{{if .Bugs}}
<h2>Bugs</h2>
<table>
<tr><th>Severity</th><th>Title</th><th>Details</th></tr>
{{range .Bugs}}
<tr>
  <td class="sev" style="color: {{severityColor .Severity}}">{{upper (printf "%s" .Severity)}}</td>
  <td>{{.Title}}<br><small>{{.URL}}</small></td>
  <td>{{.Description}}
    {{if .ReproductionSteps}}<ol class="repro">{{range .ReproductionSteps}}<li>{{.}}</li>{{end}}</ol>{{end}}
  </td>
</tr>
{{end}}
</table>
{{else}}
<h2>No bugs found</h2>
{{end}}
{{if .AIObservations}}
<h2>Observations</h2>
<ul>
{{range .AIObservations}}<li>{{.}}</li>{{end}}
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
