// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/internal/config"
)

// Session owns one browser tab and every primitive operation against it. The
// whole engine runs on a single session; no two actions ever interleave.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCancel context.CancelFunc
	harvester   *Harvester

	mu       sync.Mutex
	isClosed bool
}

// NewSession allocates a browser and opens a tab. The returned session is not
// connected until Initialize runs.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	sessionID := uuid.New().String()
	return &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger.Named("browser").With(zap.String("session_id", sessionID)),
		cfg:         cfg,
	}
}

// Initialize connects to the browser target and starts event harvesting.
func (s *Session) Initialize(ctx context.Context) error {
	initCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(initCtx); err != nil {
		return fmt.Errorf("failed to connect browser target: %w", err)
	}

	s.harvester = NewHarvester(s.ctx, s.logger)
	if err := s.harvester.Start(initCtx); err != nil {
		return fmt.Errorf("failed to start harvester: %w", err)
	}

	s.logger.Debug("Browser session initialized.")
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Harvester exposes the console and network capture streams.
func (s *Session) Harvester() *Harvester {
	return s.harvester
}

// Context returns the underlying tab context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close tears down the tab and the browser process. Safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.harvester != nil {
		s.harvester.Stop()

		// Teardown runs on a detached context so that a canceled caller
		// context cannot strand the tab before the browser hears the close.
		closeCtx, closeCancel := context.WithTimeout(Detach(s.ctx), 2*time.Second)
		if err := chromedp.Run(closeCtx, page.Close()); err != nil {
			s.logger.Debug("Graceful tab close failed.", zap.Error(err))
		}
		closeCancel()
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

// stabilize waits for the DOM to be ready and the network to go quiet.
// Failure here is degraded, not fatal; some pages never reach network idle.
func (s *Session) stabilize(ctx context.Context, quietPeriod time.Duration) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	if s.harvester != nil {
		if err := s.harvester.WaitNetworkIdle(stabCtx, quietPeriod); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debug("Network idle wait failed during stabilization.", zap.Error(err))
		}
	}
	return nil
}

// runActions executes chromedp actions bound to both the session lifetime and
// the caller's context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
