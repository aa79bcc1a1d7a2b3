// internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Regexes use \x60 for backticks because Go raw strings cannot contain them.
var (
	fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	fencedArrayRegex  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ParseJSONResponse parses a model response into T, tolerating the two
// failure shapes vision models actually produce: the JSON wrapped in a
// markdown fence, and the JSON embedded in leading or trailing prose.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w. Extracted JSON (truncated): %s", err, TruncateString(payload, 500))
	}
	return &result, nil
}

// ExtractJSON returns the best candidate JSON document inside a raw model
// response. The input is returned unchanged when no salvage applies.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	hasObject := strings.Contains(response, "{")
	hasArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if hasObject {
			matches = fencedObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && hasArray {
			matches = fencedArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			return matches[1]
		}
	}

	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// Slice out the outermost structure from surrounding prose.
	if hasObject {
		if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start != -1 && end > start {
			return response[start : end+1]
		}
	}
	if hasArray {
		if start, end := strings.Index(response, "["), strings.LastIndex(response, "]"); start != -1 && end > start {
			return response[start : end+1]
		}
	}
	return response
}

// TruncateString shortens s for log and error output. Truncation is byte
// based, which is acceptable for diagnostics.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
