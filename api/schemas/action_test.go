package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

func TestParseActionType(t *testing.T) {
	testCases := []struct {
		raw  string
		want schemas.ActionType
	}{
		{"click", schemas.ActionClick},
		{"CLICK", schemas.ActionClick},
		{"  fill ", schemas.ActionFill},
		{"type", schemas.ActionTypeText},
		{"select", schemas.ActionSelect},
		{"scroll", schemas.ActionScroll},
		{"wait", schemas.ActionWait},
		{"hover", schemas.ActionHover},
		{"none", schemas.ActionNone},
		{"done", schemas.ActionDone},
		{"navigate", schemas.ActionNone},
		{"explode", schemas.ActionNone},
		{"", schemas.ActionNone},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, schemas.ParseActionType(tc.raw), "raw=%q", tc.raw)
	}
}

func TestActionPlanRoundTrip(t *testing.T) {
	elementID := 3
	plans := []schemas.ActionPlan{
		{Action: schemas.ActionClick, ElementID: &elementID, Reason: "login button", Confidence: 0.9},
		{Action: schemas.ActionFill, ElementID: &elementID, Text: "testscout@example.com", Confidence: 0.8},
		{Action: schemas.ActionScroll, Direction: "down", Confidence: 0.5},
		{Action: schemas.ActionWait, DurationMs: 1500, Confidence: 0.4},
		{Action: schemas.ActionNone, Reason: "nothing to do", Confidence: 0.1},
		{Action: schemas.ActionDone, Confidence: 1},
	}
	for _, plan := range plans {
		data, err := json.Marshal(plan)
		require.NoError(t, err)

		var parsed schemas.ActionPlan
		require.NoError(t, json.Unmarshal(data, &parsed))
		assert.Equal(t, plan, parsed)
	}
}

func TestActionPlanUnknownActionBecomesNone(t *testing.T) {
	var plan schemas.ActionPlan
	require.NoError(t, json.Unmarshal([]byte(`{"action":"teleport","element_id":7,"confidence":0.7}`), &plan))
	assert.Equal(t, schemas.ActionNone, plan.Action)
	assert.True(t, plan.IsNone())
	require.NotNil(t, plan.ElementID)
	assert.Equal(t, 7, *plan.ElementID)
}

func TestRequiresTarget(t *testing.T) {
	assert.True(t, schemas.ActionClick.RequiresTarget())
	assert.True(t, schemas.ActionFill.RequiresTarget())
	assert.True(t, schemas.ActionTypeText.RequiresTarget())
	assert.True(t, schemas.ActionSelect.RequiresTarget())
	assert.True(t, schemas.ActionHover.RequiresTarget())

	assert.False(t, schemas.ActionScroll.RequiresTarget())
	assert.False(t, schemas.ActionWait.RequiresTarget())
	assert.False(t, schemas.ActionNone.RequiresTarget())
	assert.False(t, schemas.ActionDone.RequiresTarget())
}

func TestExplorationDecisionDone(t *testing.T) {
	var decision schemas.ExplorationDecision
	require.NoError(t, json.Unmarshal([]byte(`{"next_action":{"action":"done","reason":"covered everything"}}`), &decision))
	assert.True(t, decision.Done())

	require.NoError(t, json.Unmarshal([]byte(`{"next_action":{"action":"click","element_id":0}}`), &decision))
	assert.False(t, decision.Done())
}
