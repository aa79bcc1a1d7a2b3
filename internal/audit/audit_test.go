package audit_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
	"github.com/xkilldash9x/scout-cli/internal/audit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestActionNumbersAreOneBasedAndMonotonic(t *testing.T) {
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("s1", "https://app.example.com")

	first := trail.StartAction("https://app.example.com", nil, nil, nil)
	trail.CompleteAction(true, nil, nil)
	second := trail.StartAction("https://app.example.com/next", nil, nil, nil)
	trail.CompleteAction(false, errors.New("click failed"), nil)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	actions := trail.Actions()
	require.Len(t, actions, 2)
	assert.True(t, actions[0].Success)
	assert.False(t, actions[1].Success)
	assert.Equal(t, "click failed", actions[1].Error)
	assert.False(t, actions[0].CompletedAt.IsZero())
}

func TestActionBracketCapturesAIExchange(t *testing.T) {
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("s1", "https://app.example.com")

	trail.StartAction("https://app.example.com", []byte{1}, []byte{2}, []string{"el"})
	trail.RecordAIPrompt("what next?")
	trail.RecordAIResponse(`{"next_action":{"action":"done"}}`, "gemini", "gemini-2.5-flash")
	trail.RecordDecision(map[string]string{"action": "done"})
	trail.CompleteAction(true, nil, map[string]int{"actions_taken": 1})

	actions := trail.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "what next?", actions[0].AIPrompt)
	assert.Equal(t, "gemini", actions[0].AIProvider)
	assert.Equal(t, "gemini-2.5-flash", actions[0].AIModel)
	assert.NotNil(t, actions[0].Decision)
	assert.Equal(t, []byte{1}, actions[0].Screenshot)
	assert.Equal(t, []byte{2}, actions[0].MarkedScreenshot)
}

func TestRecordsOutsideActionBracketDoNotPanic(t *testing.T) {
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("s1", "https://app.example.com")

	trail.RecordAIPrompt("orphan prompt")
	trail.RecordDecision("orphan decision")
	trail.CompleteAction(true, nil, nil)

	assert.Empty(t, trail.Actions())
}

func TestTimelineIsTotalOrder(t *testing.T) {
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("s1", "https://app.example.com")

	trail.StartAction("https://app.example.com", nil, nil, nil)
	trail.RecordBug(schemas.Bug{Severity: schemas.SeverityCritical, Title: "JavaScript Error"})
	trail.RecordObservation("menu opened")
	trail.CompleteAction(true, nil, nil)
	trail.RecordNavigation("https://app.example.com", "https://app.example.com/cart")
	trail.EndSession()

	timeline := trail.Timeline()
	var types []string
	for _, event := range timeline {
		types = append(types, event.EventType)
	}
	assert.Equal(t, []string{
		"session_start", "action_start", "bug_found", "observation",
		"action_complete", "navigation", "session_end",
	}, types)

	for i := 1; i < len(timeline); i++ {
		assert.False(t, timeline[i].Timestamp.Before(timeline[i-1].Timestamp),
			"timeline must be monotonically ordered")
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("s1", "https://app.example.com")
	trail.EndSession()
	trail.EndSession()

	count := 0
	for _, event := range trail.Timeline() {
		if event.EventType == "session_end" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBugsAccessorCopies(t *testing.T) {
	trail := audit.NewTrail(zap.NewNop())
	trail.StartSession("s1", "u")
	trail.RecordBug(schemas.Bug{Title: "a"})

	bugs := trail.Bugs()
	require.Len(t, bugs, 1)
	bugs[0].Title = "mutated"
	assert.Equal(t, "a", trail.Bugs()[0].Title)
}
