// internal/browser/interaction.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Navigate loads the URL and waits for the page to stabilize. Stabilization
// failure is degraded, not fatal; only the navigation itself can fail.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	quietPeriod := 1500 * time.Millisecond
	if s.cfg.PostLoadWait > 0 {
		quietPeriod = s.cfg.PostLoadWait
	}
	if err := s.stabilize(opCtx, quietPeriod); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Warn("Page stabilization failed after navigation (non-critical).", zap.Error(err))
	}
	return nil
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))
	return s.runWithTimeout(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}, "click", selector)
}

// Fill clears the element's current value and types the text.
func (s *Session) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	s.logger.Debug("Filling element", zap.String("selector", selector), zap.Int("text_length", len(text)))
	return s.runWithTimeout(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	}, "fill", selector)
}

// TypeText appends keystrokes to the element without clearing it first.
func (s *Session) TypeText(ctx context.Context, selector, text string, timeout time.Duration) error {
	s.logger.Debug("Typing into element", zap.String("selector", selector), zap.Int("text_length", len(text)))
	return s.runWithTimeout(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	}, "type", selector)
}

// SelectOption picks an option on a select element by value, falling back to
// the visible option label, then fires input and change events so framework
// listeners see the update.
func (s *Session) SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error {
	s.logger.Debug("Selecting option", zap.String("selector", selector), zap.String("value", value))
	script := fmt.Sprintf(`(function() {
        const el = document.querySelector(%q);
        if (!el || !el.options) { return false; }
        let matched = false;
        for (const opt of el.options) {
            if (opt.value === %q || opt.textContent.trim() === %q) {
                el.value = opt.value;
                matched = true;
                break;
            }
        }
        if (matched) {
            el.dispatchEvent(new Event('input', {bubbles: true}));
            el.dispatchEvent(new Event('change', {bubbles: true}));
        }
        return matched;
    })()`, selector, value, value)

	var matched bool
	err := s.runWithTimeout(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(script, &matched),
	}, "select", selector)
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("select action found no option %q on '%s'", value, selector)
	}
	return nil
}

// Hover moves the mouse to the center of the element.
func (s *Session) Hover(ctx context.Context, selector string, timeout time.Duration) error {
	s.logger.Debug("Hovering element", zap.String("selector", selector))
	hover := chromedp.QueryAfter(selector, func(qctx context.Context, execID runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return fmt.Errorf("no node found for selector '%s'", selector)
		}
		box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(qctx)
		if err != nil {
			return fmt.Errorf("could not get box model: %w", err)
		}
		if len(box.Content) < 8 {
			return fmt.Errorf("degenerate box model for selector '%s'", selector)
		}
		cx := (box.Content[0] + box.Content[4]) / 2
		cy := (box.Content[1] + box.Content[5]) / 2
		return input.DispatchMouseEvent(input.MouseMoved, cx, cy).Do(qctx)
	}, chromedp.ByQuery)

	return s.runWithTimeout(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		hover,
	}, "hover", selector)
}

// MouseWheel scrolls the page by dy pixels at the viewport center. Positive
// dy scrolls down.
func (s *Session) MouseWheel(ctx context.Context, dy float64) error {
	s.logger.Debug("Scrolling page", zap.Float64("delta_y", dy))
	cx := float64(s.cfg.WindowWidth) / 2
	cy := float64(s.cfg.WindowHeight) / 2

	wheel := chromedp.ActionFunc(func(actx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, cx, cy).
			WithDeltaX(0).
			WithDeltaY(dy).
			Do(actx)
	})

	scrollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.runActions(scrollCtx, wheel); err != nil {
		return fmt.Errorf("scroll action failed: %w", err)
	}
	return nil
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	capture := chromedp.ActionFunc(func(actx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(actx)
		return err
	})

	shotCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := s.runActions(shotCtx, capture); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Evaluate runs a script in the page and unmarshals the result into out,
// which may be nil when the result is not needed.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	evalCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := s.runActions(evalCtx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}
	return nil
}

// WaitForSelector blocks until the selector is visible or the timeout fires.
func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.runActions(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for selector '%s' failed: %w", selector, err)
	}
	return nil
}

// WaitForFunction polls a JavaScript predicate until it returns true or the
// timeout fires.
func (s *Session) WaitForFunction(ctx context.Context, predicate string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		var ready bool
		if err := s.Evaluate(ctx, fmt.Sprintf("!!(%s)", predicate), &ready); err == nil && ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("predicate did not become true within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentURL returns the page's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.Evaluate(ctx, "window.location.href", &url); err != nil {
		return "", err
	}
	return url, nil
}

// Title returns the page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.Evaluate(ctx, "document.title", &title); err != nil {
		return "", err
	}
	return title, nil
}

func (s *Session) runWithTimeout(ctx context.Context, timeout time.Duration, tasks chromedp.Tasks, verb, selector string) error {
	if timeout <= 0 {
		timeout = s.cfg.ActionTimeout
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.runActions(opCtx, tasks); err != nil {
		return fmt.Errorf("%s action failed for selector '%s': %w", verb, selector, err)
	}
	return nil
}
