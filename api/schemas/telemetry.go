package schemas

import (
	"strings"
	"time"
)

// -- Page Telemetry Schemas --

// ConsoleLog is one console message or uncaught exception captured from the
// page under test.
type ConsoleLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
}

// NetworkRequest is one request observed by the session, recorded once its
// response (or failure) is known.
type NetworkRequest struct {
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	URL           string    `json:"url"`
	Status        int       `json:"status,omitempty"`
	ResourceType  string    `json:"resource_type,omitempty"`
	Failed        bool      `json:"failed,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	DurationMs    float64   `json:"duration_ms,omitempty"`
}

// criticalConsolePatterns are substrings that mark a console error as an
// application defect rather than noise. The list covers runtime error
// classes plus the framework-specific failures (React hydration, Vue
// warnings, webpack chunk loads) that reliably indicate a broken page.
var criticalConsolePatterns = []string{
	"ReferenceError",
	"TypeError",
	"SyntaxError",
	"RangeError",
	"URIError",
	"Hydration failed",
	"Maximum update depth exceeded",
	"Minified React error",
	"Invalid hook call",
	"Vue warn",
	"[Vue warn]",
	"ExpressionChangedAfterItHasBeenCheckedError",
	"ChunkLoadError",
	"Loading chunk",
	"is not defined",
	"Cannot read property",
	"Cannot read properties",
	"null is not an object",
	"undefined is not an object",
}

// IsCriticalConsoleText reports whether a console message matches a known
// critical runtime error pattern.
func IsCriticalConsoleText(text string) bool {
	for _, p := range criticalConsolePatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// IsCritical reports whether this log entry is an error matching a critical
// pattern. Non-error levels never qualify, whatever their text.
func (c ConsoleLog) IsCritical() bool {
	return strings.EqualFold(c.Level, "error") && IsCriticalConsoleText(c.Text)
}
