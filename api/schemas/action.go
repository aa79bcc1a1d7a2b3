package schemas

import (
	"encoding/json"
	"strings"
)

// -- Action Schemas --

// ActionType enumerates the browser operations the vision backend may request.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionFill     ActionType = "fill"
	ActionTypeText ActionType = "type"
	ActionSelect   ActionType = "select"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
	ActionHover    ActionType = "hover"
	// ActionNone means the backend declined to act. It must produce no side
	// effect on the page.
	ActionNone ActionType = "none"
	// ActionDone is only meaningful inside an exploration decision, where it
	// asks for a clean session stop.
	ActionDone ActionType = "done"
)

// ParseActionType normalizes a raw action string. Unknown values map to
// ActionNone so a hallucinated verb can never reach the executor.
func ParseActionType(raw string) ActionType {
	switch ActionType(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionClick, ActionFill, ActionTypeText, ActionSelect, ActionScroll, ActionWait, ActionHover, ActionNone, ActionDone:
		return ActionType(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return ActionNone
	}
}

// UnmarshalJSON accepts any string and funnels unrecognized values to
// ActionNone instead of failing the whole plan.
func (a *ActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParseActionType(s)
	return nil
}

// RequiresTarget reports whether the action needs a resolvable element handle.
func (a ActionType) RequiresTarget() bool {
	switch a {
	case ActionClick, ActionFill, ActionTypeText, ActionSelect, ActionHover:
		return true
	default:
		return false
	}
}

// ActionPlan is one structured decision from the vision backend.
type ActionPlan struct {
	Action     ActionType `json:"action"`
	ElementID  *int       `json:"element_id,omitempty"`
	Text       string     `json:"text,omitempty"`
	Direction  string     `json:"direction,omitempty"`
	DurationMs int        `json:"duration_ms,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Confidence float64    `json:"confidence"`
}

// IsNone reports whether the plan declined to act.
func (p *ActionPlan) IsNone() bool {
	return p == nil || p.Action == ActionNone || p.Action == ""
}

// AssertionResult is the backend's verdict on a natural language assertion.
type AssertionResult struct {
	Passed     bool    `json:"passed"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
}
