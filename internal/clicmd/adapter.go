package clicmd

import (
	"context"
	"time"

	"github.com/henry40408/lmb/internal/adapter"
	"github.com/henry40408/lmb/internal/adapter/redis"
	"github.com/henry40408/lmb/internal/adapter/webhook"
	"github.com/henry40408/lmb/internal/lmbconfig"
	"github.com/henry40408/lmb/internal/lmblog"
)

// buildAdapter constructs the configured run-completion adapter, if any.
// A nil return means no adapter is configured; callers should skip
// publishing rather than treat it as an error.
func buildAdapter(cfg *lmbconfig.Config) (adapter.Adapter, error) {
	if cfg.Adapter == nil {
		return nil, nil
	}
	switch {
	case cfg.Adapter.Redis != nil:
		return redis.New(redis.Config{
			URL:     cfg.Adapter.Redis.URL,
			Channel: cfg.Adapter.Redis.Channel,
		})
	case cfg.Adapter.Webhook != nil:
		return webhook.New(webhook.Config{
			URL:     cfg.Adapter.Webhook.URL,
			Headers: cfg.Adapter.Webhook.Headers,
		})
	default:
		return nil, nil
	}
}

// publishCompletion best-effort publishes an evaluation's outcome; a
// publish failure is logged but never changes the evaluation's own exit
// code or HTTP response, per §6's "ambient observability, never on the
// correctness path" contract.
func publishCompletion(a adapter.Adapter, log *lmblog.Logger, evalID, mode, outcome string, duration time.Duration) {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := &adapter.EvalCompletedEvent{
		EvalID:     evalID,
		Mode:       mode,
		Outcome:    outcome,
		DurationMs: duration.Milliseconds(),
	}
	if err := a.Publish(ctx, event); err != nil {
		log.Warn("adapter publish failed", map[string]any{"error": err.Error()})
	}
}
