package explorer

import (
	"github.com/xkilldash9x/scout-cli/internal/registry"
)

// State labels the phase of an exploration session.
type State string

const (
	StateStarting State = "starting"
	StateLooping  State = "looping"
	StateStopped  State = "stopped"
)

// StopReason records why a session ended. Every stop is clean: the report
// and audit trail are finalized regardless of which reason fired.
type StopReason string

const (
	StopDone        StopReason = "done"
	StopActionLimit StopReason = "action_limit"
	StopTimeLimit   StopReason = "time_limit"
	StopAIDeclined  StopReason = "ai_declined"
	StopError       StopReason = "error"
)

// ExplorationState is the loop's working memory. Handles are scan scoped,
// so visited identity is the (url, description) key, which survives the
// handle reassignment of every re-scan.
type ExplorationState struct {
	visitedURLs        map[string]bool
	visitedElementKeys map[uint64]bool
	actionHistory      []string

	StartURL     string
	Depth        int
	ActionsTaken int
	PagesVisited int
}

func NewExplorationState() *ExplorationState {
	return &ExplorationState{
		visitedURLs:        make(map[string]bool),
		visitedElementKeys: make(map[uint64]bool),
	}
}

// MarkURLVisited records a URL, returning true the first time it is seen.
func (s *ExplorationState) MarkURLVisited(url string) bool {
	if s.visitedURLs[url] {
		return false
	}
	s.visitedURLs[url] = true
	return true
}

// MarkElementVisited is idempotent: marking the same element twice does not
// grow the visited set.
func (s *ExplorationState) MarkElementVisited(url string, el *registry.DiscoveredElement) {
	s.visitedElementKeys[registry.DescriptionKey(url, el)] = true
}

func (s *ExplorationState) ElementVisited(url string, el *registry.DiscoveredElement) bool {
	return s.visitedElementKeys[registry.DescriptionKey(url, el)]
}

func (s *ExplorationState) VisitedURLCount() int     { return len(s.visitedURLs) }
func (s *ExplorationState) VisitedElementCount() int { return len(s.visitedElementKeys) }

// RecordAction appends a history entry describing what was actually done,
// phrased from the element's own tag and text rather than the model's
// stated reason.
func (s *ExplorationState) RecordAction(entry string) {
	s.actionHistory = append(s.actionHistory, entry)
}

// RecentActions returns up to n of the most recent history entries, oldest
// first.
func (s *ExplorationState) RecentActions(n int) []string {
	if n <= 0 || len(s.actionHistory) == 0 {
		return nil
	}
	start := len(s.actionHistory) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(s.actionHistory)-start)
	copy(out, s.actionHistory[start:])
	return out
}

// Snapshot is the per-action state document written to the audit trail.
type Snapshot struct {
	URL             string   `json:"url"`
	State           State    `json:"state"`
	Depth           int      `json:"depth"`
	ActionsTaken    int      `json:"actions_taken"`
	PagesVisited    int      `json:"pages_visited"`
	VisitedURLs     int      `json:"visited_urls"`
	VisitedElements int      `json:"visited_elements"`
	RecentActions   []string `json:"recent_actions,omitempty"`
}

func (s *ExplorationState) Snapshot(url string, phase State) Snapshot {
	return Snapshot{
		URL:             url,
		State:           phase,
		Depth:           s.Depth,
		ActionsTaken:    s.ActionsTaken,
		PagesVisited:    s.PagesVisited,
		VisitedURLs:     len(s.visitedURLs),
		VisitedElements: len(s.visitedElementKeys),
		RecentActions:   s.RecentActions(recentActionWindow),
	}
}
