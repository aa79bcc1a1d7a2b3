// internal/registry/snapshot.go
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// PageElements is one scan's snapshot: every discovered element plus a
// content fingerprint of the clean screenshot taken alongside it. Snapshots
// are immutable once returned and are invalidated by any navigation or DOM
// mutation; callers re-scan rather than reuse.
type PageElements struct {
	URL         string              `json:"url"`
	Elements    []DiscoveredElement `json:"elements"`
	Fingerprint string              `json:"fingerprint,omitempty"`
}

// FindByID returns the element with the given handle, or nil.
func (p *PageElements) FindByID(handle int) *DiscoveredElement {
	if handle < 0 || handle >= len(p.Elements) {
		return nil
	}
	// Handles are dense and index aligned, but verify rather than assume.
	if p.Elements[handle].Handle == handle {
		return &p.Elements[handle]
	}
	for i := range p.Elements {
		if p.Elements[i].Handle == handle {
			return &p.Elements[i]
		}
	}
	return nil
}

// FindByText returns every element whose visible text contains the query, or
// matches it exactly when exact is set. Matching is case insensitive.
func (p *PageElements) FindByText(query string, exact bool) []*DiscoveredElement {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []*DiscoveredElement
	for i := range p.Elements {
		text := strings.ToLower(strings.TrimSpace(p.Elements[i].VisibleText))
		if exact && text == query {
			out = append(out, &p.Elements[i])
		} else if !exact && strings.Contains(text, query) {
			out = append(out, &p.Elements[i])
		}
	}
	return out
}

// FindByKind returns every element of the given kind.
func (p *PageElements) FindByKind(kind Kind) []*DiscoveredElement {
	var out []*DiscoveredElement
	for i := range p.Elements {
		if p.Elements[i].Kind == kind {
			out = append(out, &p.Elements[i])
		}
	}
	return out
}

// Selector returns the marker attribute selector for a handle. It does not
// check liveness; Resolve does.
func (p *PageElements) Selector(handle int) string {
	return fmt.Sprintf(`[%s="%d"]`, markerAttr, handle)
}

// PromptSummary renders a deterministic, handle ordered plain text summary
// for inclusion in AI prompts.
func (p *PageElements) PromptSummary() string {
	if len(p.Elements) == 0 {
		return "  (no interactive elements found)"
	}
	lines := make([]string, 0, len(p.Elements))
	for i := range p.Elements {
		lines = append(lines, p.Elements[i].PromptLine())
	}
	return strings.Join(lines, "\n")
}

// FingerprintScreenshot derives the snapshot's content fingerprint from the
// clean screenshot bytes.
func FingerprintScreenshot(png []byte) string {
	sum := sha256.Sum256(png)
	return hex.EncodeToString(sum[:])
}
