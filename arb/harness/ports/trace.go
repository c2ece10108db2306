package harnessports

import "context"

// Tracer emits spans/events for observability. Implementations may drop
// everything; the agent loop never depends on a span being recorded.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error))
	Event(ctx context.Context, name string, attrs map[string]any)
}
