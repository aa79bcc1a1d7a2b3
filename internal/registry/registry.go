// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrTargetNotFound is returned when a handle cannot be resolved against the
// live page, usually because the page mutated between scan and resolution.
// Callers downgrade it to a failed action; it must never crash the loop.
var ErrTargetNotFound = errors.New("target element not found on live page")

// Evaluator is the slice of the browser session the registry needs.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, out any) error
	CurrentURL(ctx context.Context) (string, error)
}

// Registry scans the live page for interactive elements and grounds AI
// chosen handles back to concrete DOM targets.
type Registry struct {
	session Evaluator
	logger  *zap.Logger
}

// New creates a registry over a browser session.
func New(session Evaluator, logger *zap.Logger) *Registry {
	return &Registry{
		session: session,
		logger:  logger.Named("registry"),
	}
}

// Scan discovers the page's interactive elements and returns a fresh
// snapshot with dense handles 0..n-1. A page where scripting fails or where
// nothing is interactive yields an empty snapshot and no error; zero
// elements is a degraded but valid state.
func (r *Registry) Scan(ctx context.Context) (*PageElements, error) {
	start := time.Now()

	var elements []DiscoveredElement
	if err := r.session.Evaluate(ctx, scanScript, &elements); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("Element scan script failed; returning empty snapshot.", zap.Error(err))
		elements = nil
	}

	url, err := r.session.CurrentURL(ctx)
	if err != nil {
		r.logger.Debug("Could not read page URL during scan.", zap.Error(err))
	}

	snapshot := &PageElements{
		URL:      url,
		Elements: elements,
	}
	r.logger.Debug("Scan complete.",
		zap.Int("elements", len(elements)),
		zap.Duration("duration", time.Since(start)))
	return snapshot, nil
}

// RenderMarkers draws the numbered badges for the given snapshot. The
// snapshot must be the most recent scan; marking a stale scan against a live
// page breaks the handle to badge correspondence.
func (r *Registry) RenderMarkers(ctx context.Context) error {
	var count int
	if err := r.session.Evaluate(ctx, highlightScript, &count); err != nil {
		return fmt.Errorf("failed to render element markers: %w", err)
	}
	r.logger.Debug("Markers rendered.", zap.Int("count", count))
	return nil
}

// Cleanup removes every visual marker. Idempotent; calling it twice leaves
// the DOM in the same state as once.
func (r *Registry) Cleanup(ctx context.Context) error {
	var ok bool
	if err := r.session.Evaluate(ctx, cleanupScript, &ok); err != nil {
		return fmt.Errorf("failed to remove element markers: %w", err)
	}
	return nil
}

// Resolve maps a handle from the snapshot to a concrete selector, verifying
// the element is still present on the live page. A handle outside the
// snapshot, or one whose node has since disappeared, yields
// ErrTargetNotFound.
func (r *Registry) Resolve(ctx context.Context, snapshot *PageElements, handle int) (string, error) {
	if snapshot == nil || snapshot.FindByID(handle) == nil {
		return "", fmt.Errorf("handle %d not in current scan: %w", handle, ErrTargetNotFound)
	}

	selector := snapshot.Selector(handle)
	var present bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := r.session.Evaluate(ctx, script, &present); err != nil {
		return "", fmt.Errorf("resolution check failed for handle %d: %w", handle, ErrTargetNotFound)
	}
	if !present {
		return "", fmt.Errorf("handle %d vanished from live page: %w", handle, ErrTargetNotFound)
	}
	return selector, nil
}

// DescriptionKey is the long lived identity of an element for loop
// avoidance: a hash of the page URL and the element's content derived
// description. It survives re-scans where handles are reassigned.
func DescriptionKey(url string, el *DiscoveredElement) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.TrimSpace(url)))
	h.Write([]byte{0})
	h.Write([]byte(el.Description()))
	return h.Sum64()
}
