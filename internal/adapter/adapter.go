// Package adapter defines the run-completion event-bus adapter boundary
// (§6's supplemental run-completion adapters): after `serve` finishes
// handling a request, or `eval` finishes a one-shot run, a configured
// adapter publishes an event to a downstream system. Purely ambient
// observability, never on the correctness path.
package adapter

import "context"

// EvalCompletedEvent is the payload published when an evaluation
// finishes, whether via `eval` or one `serve` request.
type EvalCompletedEvent struct {
	EvalID     string `json:"eval_id"`
	Mode       string `json:"mode"` // "eval" or "serve"
	Outcome    string `json:"outcome"` // "success", "script_error", "timeout"
	DurationMs int64  `json:"duration_ms"`
}

// Adapter publishes evaluation completion events to a downstream system.
// Implementations must be safe for single-use per evaluation.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *EvalCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
