package explorer

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

// blankPageSignals are independent measurements of page liveness taken
// right after navigation settles.
type blankPageSignals struct {
	BodyLength          int `json:"bodyLength"`
	RootContentLength   int `json:"rootContentLength"`
	VisibleTextLength   int `json:"visibleTextLength"`
	InteractiveElements int `json:"interactiveElements"`
}

// A single weak signal is not enough to call a page alive: SPA shells often
// ship a non-empty body that never renders anything.
func (s blankPageSignals) looksBlank() bool {
	positive := 0
	if s.BodyLength > 100 {
		positive++
	}
	if s.RootContentLength > 50 {
		positive++
	}
	if s.VisibleTextLength > 20 {
		positive++
	}
	if s.InteractiveElements > 0 {
		positive++
	}
	return positive <= 1
}

const blankPageProbe = `(() => {
	const body = document.body;
	let rootContentLength = 0;
	for (const sel of ['#root', '#app', '#__next', '.app', '[data-reactroot]']) {
		const el = document.querySelector(sel);
		if (el) rootContentLength = Math.max(rootContentLength, el.innerHTML.length);
	}
	const interactive = document.querySelectorAll(
		'button, a, input, select, [role="button"]');
	return {
		bodyLength: body ? body.innerHTML.length : 0,
		rootContentLength: rootContentLength,
		visibleTextLength: body ? body.innerText.trim().length : 0,
		interactiveElements: interactive.length,
	};
})()`

// checkBlankPage probes the rendered page and emits at most one critical
// bug. The loop continues either way so console and network evidence is
// still collected from a broken page.
func (e *Explorer) checkBlankPage(ctx context.Context, url string) *schemas.Bug {
	var signals blankPageSignals
	if err := e.browser.Evaluate(ctx, blankPageProbe, &signals); err != nil {
		return &schemas.Bug{
			Severity:    schemas.SeverityCritical,
			Title:       "Page unresponsive",
			Description: fmt.Sprintf("Could not inspect page state: %v", err),
			URL:         url,
		}
	}
	if !signals.looksBlank() {
		return nil
	}
	return &schemas.Bug{
		Severity: schemas.SeverityCritical,
		Title:    "Blank page - application failed to render",
		Description: fmt.Sprintf(
			"Page appears blank after load: body=%d bytes, root=%d bytes, visible text=%d chars, interactive elements=%d",
			signals.BodyLength, signals.RootContentLength, signals.VisibleTextLength, signals.InteractiveElements),
		URL: url,
	}
}

// checkForBugs sweeps the console and network streams that arrived since
// the previous sweep. High water marks keep each entry from being reported
// more than once per session.
func (e *Explorer) checkForBugs(url string) []schemas.Bug {
	var bugs []schemas.Bug

	consoleLogs := e.telemetry.ConsoleLogs()
	for _, entry := range consoleLogs[min(e.consoleMark, len(consoleLogs)):] {
		if !entry.IsCritical() {
			continue
		}
		bugs = append(bugs, schemas.Bug{
			Severity:      schemas.SeverityCritical,
			Title:         "JavaScript Error",
			Description:   entry.Text,
			URL:           url,
			ConsoleErrors: []string{entry.Text},
		})
	}
	e.consoleMark = len(consoleLogs)

	requests := e.telemetry.NetworkRequests()
	for _, req := range requests[min(e.networkMark, len(requests)):] {
		detail := fmt.Sprintf("%s %s returned %d", req.Method, req.URL, req.Status)
		switch {
		case req.Status >= 500:
			bugs = append(bugs, schemas.Bug{
				Severity:      schemas.SeverityCritical,
				Title:         fmt.Sprintf("Server Error %d", req.Status),
				Description:   detail,
				URL:           url,
				NetworkErrors: []string{detail},
			})
		case req.Status >= 400:
			bugs = append(bugs, schemas.Bug{
				Severity:      schemas.SeverityMedium,
				Title:         fmt.Sprintf("HTTP Error %d", req.Status),
				Description:   detail,
				URL:           url,
				NetworkErrors: []string{detail},
			})
		}
	}
	e.networkMark = len(requests)

	return bugs
}
