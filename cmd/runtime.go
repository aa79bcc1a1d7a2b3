package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/internal/browser"
	"github.com/xkilldash9x/scout-cli/internal/config"
	"github.com/xkilldash9x/scout-cli/internal/llmclient"
	"github.com/xkilldash9x/scout-cli/internal/registry"
	"github.com/xkilldash9x/scout-cli/internal/scout"
)

// runtime bundles the live components every subcommand drives: one browser
// session, its element registry, the vision backend, and the scout on top.
type runtime struct {
	session  *browser.Session
	elements *registry.Registry
	backend  *llmclient.Backend
	scout    *scout.Scout
	logger   *zap.Logger
}

// newRuntime spins up the browser and wires the component graph. The caller
// owns the returned runtime and must call close.
func newRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	backend, err := llmclient.NewBackend(cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build AI backend: %w", err)
	}

	session := browser.NewSession(ctx, cfg.Browser, logger)
	if err := session.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	elements := registry.New(session, logger)
	sct := scout.New(session, elements, backend, session.Harvester(), cfg.Act, logger)

	return &runtime{
		session:  session,
		elements: elements,
		backend:  backend,
		scout:    sct,
		logger:   logger,
	}, nil
}

func (r *runtime) close() {
	if err := r.session.Close(); err != nil {
		r.logger.Warn("Browser session close failed", zap.Error(err))
	}
}
