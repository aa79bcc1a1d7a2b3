package llmutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scout-cli/internal/llmutil"
)

type planShape struct {
	Action    string `json:"action"`
	ElementID int    `json:"element_id"`
}

func TestParseJSONResponseDirect(t *testing.T) {
	result, err := llmutil.ParseJSONResponse[planShape](`{"action":"click","element_id":2}`)
	require.NoError(t, err)
	assert.Equal(t, "click", result.Action)
	assert.Equal(t, 2, result.ElementID)
}

func TestParseJSONResponseMarkdownFence(t *testing.T) {
	response := "```json\n{\"action\": \"fill\", \"element_id\": 1}\n```"
	result, err := llmutil.ParseJSONResponse[planShape](response)
	require.NoError(t, err)
	assert.Equal(t, "fill", result.Action)
}

func TestParseJSONResponseBareFence(t *testing.T) {
	response := "```\n{\"action\": \"hover\", \"element_id\": 0}\n```"
	result, err := llmutil.ParseJSONResponse[planShape](response)
	require.NoError(t, err)
	assert.Equal(t, "hover", result.Action)
}

func TestParseJSONResponseSurroundingProse(t *testing.T) {
	response := `Sure! Here is the plan you asked for:
{"action": "click", "element_id": 4}
Let me know if you need anything else.`
	result, err := llmutil.ParseJSONResponse[planShape](response)
	require.NoError(t, err)
	assert.Equal(t, 4, result.ElementID)
}

func TestParseJSONResponseGarbage(t *testing.T) {
	_, err := llmutil.ParseJSONResponse[planShape]("I cannot determine the next action.")
	require.Error(t, err)
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `[1,2,3]`, llmutil.ExtractJSON("```json\n[1,2,3]\n```"))
	assert.Equal(t, `[1,2,3]`, llmutil.ExtractJSON("the values are [1,2,3] as requested"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", llmutil.TruncateString("abc", 10))
	assert.Equal(t, "abcde...", llmutil.TruncateString("abcdefgh", 5))
	assert.Equal(t, "", llmutil.TruncateString("abc", 0))
}
