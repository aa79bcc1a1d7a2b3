package audit_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
	"github.com/xkilldash9x/scout-cli/internal/audit"
)

func populatedTrail(t *testing.T) *audit.Trail {
	t.Helper()
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("sess-42", "https://app.example.com")

	trail.StartAction("https://app.example.com", []byte("clean-png"), []byte("marked-png"), []string{"[0] button Login"})
	trail.RecordAIPrompt("choose the next action")
	trail.RecordAIResponse(`{"next_action":{"action":"click","element_id":0}}`, "gemini", "gemini-2.5-flash")
	trail.RecordDecision(map[string]any{"action": "click", "element_id": 0})
	trail.CompleteAction(true, nil, map[string]any{"actions_taken": 1})

	trail.RecordBug(schemas.Bug{
		Severity:    schemas.SeverityCritical,
		Title:       "Server Error 500",
		Description: "GET /api/cart returned 500",
		URL:         "https://app.example.com",
		Screenshot:  []byte("bug-png"),
		Timestamp:   time.Now(),
	})
	trail.RecordNetworkRequests([]schemas.NetworkRequest{
		{Method: "GET", URL: "https://app.example.com/api/ok", Status: 200},
		{Method: "GET", URL: "https://app.example.com/api/cart", Status: 500},
		{Method: "GET", URL: "https://app.example.com/api/gone", Failed: true, FailureReason: "net::ERR_CONNECTION_RESET"},
	})
	trail.RecordConsoleLogs([]schemas.ConsoleLog{
		{Level: "info", Text: "booted"},
		{Level: "warning", Text: "deprecated API"},
		{Level: "error", Text: "TypeError: Cannot read properties of undefined"},
	})
	trail.EndSession()
	return trail
}

func TestSaveWritesBundleLayout(t *testing.T) {
	dir := t.TempDir()
	trail := populatedTrail(t)
	require.NoError(t, trail.Save(dir))

	for _, path := range []string{
		"summary.json",
		"summary.html",
		"timeline.jsonl",
		filepath.Join("actions", "001", "screenshot.png"),
		filepath.Join("actions", "001", "screenshot_marked.png"),
		filepath.Join("actions", "001", "visible_elements.json"),
		filepath.Join("actions", "001", "ai_prompt.txt"),
		filepath.Join("actions", "001", "ai_response.json"),
		filepath.Join("actions", "001", "decision.json"),
		filepath.Join("actions", "001", "state.json"),
		filepath.Join("network", "requests.jsonl"),
		filepath.Join("network", "failures.jsonl"),
		filepath.Join("console", "all.jsonl"),
		filepath.Join("console", "errors.jsonl"),
		filepath.Join("console", "warnings.jsonl"),
		filepath.Join("bugs", "bug_001", "screenshot.png"),
		filepath.Join("bugs", "bug_001", "details.json"),
	} {
		_, err := os.Stat(filepath.Join(dir, path))
		assert.NoError(t, err, "expected %s in bundle", path)
	}
}

func TestSaveSummaryContents(t *testing.T) {
	dir := t.TempDir()
	trail := populatedTrail(t)
	require.NoError(t, trail.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "sess-42", summary["session_id"])
	assert.Equal(t, "https://app.example.com", summary["start_url"])
	assert.EqualValues(t, 1, summary["actions_taken"])
	assert.EqualValues(t, 1, summary["bugs_total"])
	assert.EqualValues(t, 3, summary["network_requests"])
	assert.EqualValues(t, 2, summary["network_failures"], "500 and Failed both count as failures")
	assert.EqualValues(t, 1, summary["console_errors"])

	// Binary evidence is referenced by sibling files, never embedded.
	assert.NotContains(t, string(data), "clean-png")

	html, err := os.ReadFile(filepath.Join(dir, "summary.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Server Error 500")
	assert.Contains(t, string(html), "#dc2626", "critical bugs use the critical color")
}

func TestSaveStreamSplits(t *testing.T) {
	dir := t.TempDir()
	trail := populatedTrail(t)
	require.NoError(t, trail.Save(dir))

	failures, err := os.ReadFile(filepath.Join(dir, "network", "failures.jsonl"))
	require.NoError(t, err)
	failureLines := nonEmptyLines(string(failures))
	assert.Len(t, failureLines, 2)
	assert.NotContains(t, string(failures), "/api/ok")

	errorsOnly, err := os.ReadFile(filepath.Join(dir, "console", "errors.jsonl"))
	require.NoError(t, err)
	assert.Len(t, nonEmptyLines(string(errorsOnly)), 1)
	assert.Contains(t, string(errorsOnly), "TypeError")

	warnings, err := os.ReadFile(filepath.Join(dir, "console", "warnings.jsonl"))
	require.NoError(t, err)
	assert.Len(t, nonEmptyLines(string(warnings)), 1)

	all, err := os.ReadFile(filepath.Join(dir, "console", "all.jsonl"))
	require.NoError(t, err)
	assert.Len(t, nonEmptyLines(string(all)), 3)
}

func TestSaveActionFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	trail := populatedTrail(t)
	require.NoError(t, trail.Save(dir))

	prompt, err := os.ReadFile(filepath.Join(dir, "actions", "001", "ai_prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "choose the next action", string(prompt))

	respData, err := os.ReadFile(filepath.Join(dir, "actions", "001", "ai_response.json"))
	require.NoError(t, err)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(respData, &resp))
	assert.Equal(t, "gemini", resp["provider"])
	assert.Contains(t, resp["raw_response"], "click")

	shot, err := os.ReadFile(filepath.Join(dir, "actions", "001", "screenshot.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("clean-png"), shot)
}

func TestSaveEmptySession(t *testing.T) {
	dir := t.TempDir()
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("empty", "https://app.example.com")
	trail.EndSession()

	require.NoError(t, trail.Save(dir))

	_, err := os.Stat(filepath.Join(dir, "summary.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "bugs"))
	assert.True(t, os.IsNotExist(err), "no bugs directory for a clean session")
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
