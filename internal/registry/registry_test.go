package registry_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/internal/registry"
)

// fakeEvaluator simulates the page side of the registry scripts: a scan
// returns the configured elements, presence checks consult livePresent.
type fakeEvaluator struct {
	elements    []registry.DiscoveredElement
	url         string
	scanErr     error
	livePresent map[string]bool
	evalCalls   []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, script string, out any) error {
	f.evalCalls = append(f.evalCalls, script)
	switch target := out.(type) {
	case *[]registry.DiscoveredElement:
		if f.scanErr != nil {
			return f.scanErr
		}
		*target = f.elements
	case *int:
		*target = len(f.elements)
	case *bool:
		if strings.Contains(script, "querySelector") && f.livePresent != nil {
			for selector, present := range f.livePresent {
				if strings.Contains(script, selector) {
					*target = present
					return nil
				}
			}
			*target = false
			return nil
		}
		*target = true
	}
	return nil
}

func (f *fakeEvaluator) CurrentURL(context.Context) (string, error) {
	return f.url, nil
}

func elementFixture(n int) []registry.DiscoveredElement {
	elements := make([]registry.DiscoveredElement, n)
	for i := range elements {
		elements[i] = registry.DiscoveredElement{
			Handle:      i,
			Kind:        registry.KindButton,
			Tag:         "button",
			VisibleText: fmt.Sprintf("Button %d", i),
			IsVisible:   true,
			IsEnabled:   true,
		}
	}
	return elements
}

func TestScanAssignsDenseHandles(t *testing.T) {
	fake := &fakeEvaluator{elements: elementFixture(5), url: "https://app.example.com"}
	reg := registry.New(fake, zap.NewNop())

	snapshot, err := reg.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Elements, 5)

	seen := make(map[int]bool)
	for i, el := range snapshot.Elements {
		assert.Equal(t, i, el.Handle, "handles must be 0..n-1 in order")
		assert.False(t, seen[el.Handle], "handle %d duplicated", el.Handle)
		seen[el.Handle] = true
	}
	assert.Equal(t, "https://app.example.com", snapshot.URL)
}

func TestScanScriptFailureYieldsEmptySnapshot(t *testing.T) {
	fake := &fakeEvaluator{scanErr: errors.New("Execution context was destroyed")}
	reg := registry.New(fake, zap.NewNop())

	snapshot, err := reg.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot.Elements)
	assert.Contains(t, snapshot.PromptSummary(), "no interactive elements")
}

func TestScanPropagatesContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeEvaluator{scanErr: context.Canceled}
	reg := registry.New(fake, zap.NewNop())

	_, err := reg.Scan(ctx)
	require.Error(t, err)
}

func TestResolveKnownHandle(t *testing.T) {
	fake := &fakeEvaluator{
		elements:    elementFixture(3),
		livePresent: map[string]bool{`data-scout-id=\"1\"`: true},
	}
	reg := registry.New(fake, zap.NewNop())

	snapshot, err := reg.Scan(context.Background())
	require.NoError(t, err)

	selector, err := reg.Resolve(context.Background(), snapshot, 1)
	require.NoError(t, err)
	assert.Equal(t, `[data-scout-id="1"]`, selector)
}

func TestResolveUnknownHandleFailsCleanly(t *testing.T) {
	fake := &fakeEvaluator{elements: elementFixture(2)}
	reg := registry.New(fake, zap.NewNop())

	snapshot, err := reg.Scan(context.Background())
	require.NoError(t, err)

	_, err = reg.Resolve(context.Background(), snapshot, 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrTargetNotFound)

	_, err = reg.Resolve(context.Background(), nil, 0)
	assert.ErrorIs(t, err, registry.ErrTargetNotFound)
}

func TestResolveVanishedElement(t *testing.T) {
	fake := &fakeEvaluator{
		elements:    elementFixture(1),
		livePresent: map[string]bool{`data-scout-id=\"0\"`: false},
	}
	reg := registry.New(fake, zap.NewNop())

	snapshot, err := reg.Scan(context.Background())
	require.NoError(t, err)

	_, err = reg.Resolve(context.Background(), snapshot, 0)
	assert.ErrorIs(t, err, registry.ErrTargetNotFound)
}

func TestCleanupTwiceIsIdempotent(t *testing.T) {
	fake := &fakeEvaluator{elements: elementFixture(2)}
	reg := registry.New(fake, zap.NewNop())

	_, err := reg.Scan(context.Background())
	require.NoError(t, err)
	require.NoError(t, reg.RenderMarkers(context.Background()))

	require.NoError(t, reg.Cleanup(context.Background()))
	callsAfterFirst := len(fake.evalCalls)
	require.NoError(t, reg.Cleanup(context.Background()))

	assert.Equal(t, callsAfterFirst+1, len(fake.evalCalls))
	assert.Equal(t, fake.evalCalls[callsAfterFirst-1], fake.evalCalls[callsAfterFirst],
		"the second pass issues the same removal script against an already clean page")
}

func TestDescriptionKeyStableAcrossRescans(t *testing.T) {
	a := &registry.DiscoveredElement{Handle: 0, Tag: "button", VisibleText: "Login"}
	b := &registry.DiscoveredElement{Handle: 7, Tag: "button", VisibleText: "Login"}

	url := "https://app.example.com/login"
	assert.Equal(t, registry.DescriptionKey(url, a), registry.DescriptionKey(url, b),
		"identity must survive handle reassignment")
	assert.NotEqual(t, registry.DescriptionKey(url, a), registry.DescriptionKey("https://other.example.com", a),
		"identity is scoped to the page URL")
}

func TestPromptSummaryListsHandles(t *testing.T) {
	snapshot := &registry.PageElements{Elements: elementFixture(3)}
	summary := snapshot.PromptSummary()
	assert.Contains(t, summary, "[0]")
	assert.Contains(t, summary, "[2]")
	assert.Contains(t, summary, "Button 1")
}

func TestFindByText(t *testing.T) {
	snapshot := &registry.PageElements{Elements: elementFixture(3)}

	matches := snapshot.FindByText("button 2", false)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Handle)

	assert.Empty(t, snapshot.FindByText("missing", false))
}
