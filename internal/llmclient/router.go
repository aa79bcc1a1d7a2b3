// internal/llmclient/router.go
package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FallbackRouter tries an explicit ordered list of provider candidates until
// one answers. The serving candidate is part of every Generation it returns;
// there is no notion of a mutable "currently active model".
type FallbackRouter struct {
	logger     *zap.Logger
	candidates []Client
	limiter    *rate.Limiter
}

// NewFallbackRouter creates a router over the candidate clients in priority
// order. requestsPerMinute throttles the combined call rate; zero disables
// throttling.
func NewFallbackRouter(logger *zap.Logger, requestsPerMinute float64, candidates ...Client) (*FallbackRouter, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("at least one candidate client is required")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1)
	}

	return &FallbackRouter{
		logger:     logger.Named("llm_router"),
		candidates: candidates,
		limiter:    limiter,
	}, nil
}

// Generate walks the candidate list in order, returning the first successful
// generation. Each candidate already retries its own transient failures, so
// a candidate error here means it is exhausted and the next one is tried.
func (r *FallbackRouter) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	var errs []error
	for _, candidate := range r.candidates {
		text, err := candidate.Generate(ctx, req)
		if err == nil {
			return &Generation{
				Text:     text,
				Provider: candidate.Provider(),
				Model:    candidate.Model(),
			}, nil
		}

		r.logger.Warn("Candidate model failed, trying next.",
			zap.String("provider", candidate.Provider()),
			zap.String("model", candidate.Model()),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s/%s: %w", candidate.Provider(), candidate.Model(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("all %d model candidates failed: %w", len(r.candidates), errors.Join(errs...))
}
