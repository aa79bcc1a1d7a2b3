package explorer_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scout-cli/internal/explorer"
	"github.com/xkilldash9x/scout-cli/internal/registry"
)

func TestMarkURLVisitedFirstSightOnly(t *testing.T) {
	state := explorer.NewExplorationState()

	assert.True(t, state.MarkURLVisited("https://app.example.com/"))
	assert.False(t, state.MarkURLVisited("https://app.example.com/"))
	assert.True(t, state.MarkURLVisited("https://app.example.com/settings"))
	assert.Equal(t, 2, state.VisitedURLCount())
}

func TestMarkElementVisitedIsIdempotent(t *testing.T) {
	state := explorer.NewExplorationState()
	el := &registry.DiscoveredElement{Handle: 3, Kind: registry.KindButton, Tag: "button", VisibleText: "Add to Cart"}

	state.MarkElementVisited("https://shop.example.com/", el)
	state.MarkElementVisited("https://shop.example.com/", el)

	assert.Equal(t, 1, state.VisitedElementCount())
	assert.True(t, state.ElementVisited("https://shop.example.com/", el))
}

func TestElementVisitedSurvivesHandleReassignment(t *testing.T) {
	state := explorer.NewExplorationState()
	first := &registry.DiscoveredElement{Handle: 0, Tag: "button", VisibleText: "Checkout"}
	state.MarkElementVisited("https://shop.example.com/cart", first)

	// A re-scan hands the same button a different number.
	rescanned := &registry.DiscoveredElement{Handle: 7, Tag: "button", VisibleText: "Checkout"}
	assert.True(t, state.ElementVisited("https://shop.example.com/cart", rescanned))

	// The same text on another page is a different element.
	assert.False(t, state.ElementVisited("https://shop.example.com/", rescanned))
}

func TestRecentActionsWindow(t *testing.T) {
	state := explorer.NewExplorationState()
	assert.Nil(t, state.RecentActions(5))

	for i := 1; i <= 8; i++ {
		state.RecordAction(fmt.Sprintf("clicked button %d", i))
	}

	want := []string{
		"clicked button 4",
		"clicked button 5",
		"clicked button 6",
		"clicked button 7",
		"clicked button 8",
	}
	if diff := cmp.Diff(want, state.RecentActions(5)); diff != "" {
		t.Errorf("RecentActions mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, state.RecentActions(50), 8, "a wide window returns everything")
	assert.Nil(t, state.RecentActions(0))
}

func TestSnapshotReflectsCounters(t *testing.T) {
	state := explorer.NewExplorationState()
	state.MarkURLVisited("https://app.example.com/")
	state.MarkElementVisited("https://app.example.com/", &registry.DiscoveredElement{Tag: "a", VisibleText: "Docs"})
	state.RecordAction("clicked link \"Docs\"")
	state.ActionsTaken = 1
	state.PagesVisited = 1

	snap := state.Snapshot("https://app.example.com/docs", explorer.StateLooping)
	assert.Equal(t, "https://app.example.com/docs", snap.URL)
	assert.Equal(t, explorer.StateLooping, snap.State)
	assert.Equal(t, 1, snap.ActionsTaken)
	assert.Equal(t, 1, snap.VisitedURLs)
	assert.Equal(t, 1, snap.VisitedElements)
	assert.Equal(t, []string{"clicked link \"Docs\""}, snap.RecentActions)
}
