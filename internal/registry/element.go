// internal/registry/element.go
package registry

import (
	"fmt"
	"strings"
)

// Kind classifies an interactive element for the vision backend.
type Kind string

const (
	KindButton   Kind = "button"
	KindLink     Kind = "link"
	KindInput    Kind = "input"
	KindSelect   Kind = "select"
	KindTextarea Kind = "textarea"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindImage    Kind = "image"
	KindCustom   Kind = "custom"
)

// BoundingBox is the element's viewport rectangle at scan time.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DiscoveredElement is one interactive candidate found during a scan. Handles
// are dense integers starting at 0, assigned in DOM traversal order, and are
// reassigned on every fresh scan; a handle from a prior scan must never be
// reused against a newer one.
type DiscoveredElement struct {
	Handle      int         `json:"handle"`
	Kind        Kind        `json:"kind"`
	Tag         string      `json:"tag"`
	VisibleText string      `json:"visible_text,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	AriaLabel   string      `json:"aria_label,omitempty"`
	Name        string      `json:"name,omitempty"`
	DomID       string      `json:"dom_id,omitempty"`
	CSSClasses  string      `json:"css_classes,omitempty"`
	Href        string      `json:"href,omitempty"`
	Src         string      `json:"src,omitempty"`
	IsVisible   bool        `json:"is_visible"`
	IsEnabled   bool        `json:"is_enabled"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Description returns the content derived identity used for history entries
// and the visited set: tag plus visible text, falling back to the aria label.
// This survives re-scans where handles are reassigned.
func (e *DiscoveredElement) Description() string {
	text := strings.TrimSpace(e.VisibleText)
	if text == "" {
		text = strings.TrimSpace(e.AriaLabel)
	}
	if len(text) > 50 {
		text = text[:50]
	}
	if text == "" {
		return e.Tag
	}
	return fmt.Sprintf("%s: %s", e.Tag, text)
}

// PromptLine renders the element for the AI prompt summary.
func (e *DiscoveredElement) PromptLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%d] %s", e.Handle, e.Kind)
	if text := strings.TrimSpace(e.VisibleText); text != "" {
		if len(text) > 80 {
			text = text[:80]
		}
		fmt.Fprintf(&b, " %q", text)
	}
	if e.Placeholder != "" {
		fmt.Fprintf(&b, " (placeholder: %s)", e.Placeholder)
	}
	if e.AriaLabel != "" {
		fmt.Fprintf(&b, " (aria: %s)", e.AriaLabel)
	}
	if !e.IsEnabled {
		b.WriteString(" (disabled)")
	}
	return b.String()
}
