package harness

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/agentre-bench/arb/config"
	adapters "github.com/ZanzyTHEbar/agentre-bench/arb/harness/adapters"
	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
	"github.com/ZanzyTHEbar/agentre-bench/arb/harness/tools"
	"github.com/ZanzyTHEbar/agentre-bench/arb/sandbox"
)

// Factory assembles the agent loop and its collaborators from
// configuration, substituting no-op implementations for anything disabled
// or unavailable.
type Factory struct {
	cfg    *config.HarnessConfig
	store  ports.RunStore
	logger zerolog.Logger
}

// NewFactory creates a harness factory. store may be nil when run
// persistence is disabled.
func NewFactory(cfg *config.HarnessConfig, store ports.RunStore, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, store: store, logger: logger}
}

// CreatePolicy derives run bounds from config, clamping nonsense values to
// defaults.
func (f *Factory) CreatePolicy() *Policy {
	policy := DefaultPolicy()
	if f.cfg == nil {
		return policy
	}
	if f.cfg.MaxToolCalls > 0 {
		policy.MaxToolCalls = f.cfg.MaxToolCalls
	} else if f.cfg.MaxToolCalls < 0 {
		f.logger.Warn().Int("max_tool_calls", f.cfg.MaxToolCalls).Msg("invalid max_tool_calls, using default")
	}
	if f.cfg.MaxTokens > 0 {
		policy.MaxTokens = f.cfg.MaxTokens
	} else if f.cfg.MaxTokens < 0 {
		f.logger.Warn().Int("max_tokens", f.cfg.MaxTokens).Msg("invalid max_tokens, using default")
	}
	if f.cfg.WarnRemaining > 0 {
		policy.WarnRemaining = f.cfg.WarnRemaining
	}
	if f.cfg.CriticalRemaining > 0 {
		policy.CriticalRemaining = f.cfg.CriticalRemaining
	}
	return policy
}

// CreateRegistry builds the tool allow-list, falling back to the default
// toolbox when the config names none.
func (f *Factory) CreateRegistry() (*tools.Registry, error) {
	var names []string
	if f.cfg != nil {
		names = f.cfg.AllowedTools
	}
	if len(names) == 0 {
		names = tools.DefaultToolNames()
	}
	return tools.NewRegistry(names)
}

// CreateDispatcher wires the registry, path validator and runner together.
func (f *Factory) CreateDispatcher(paths *sandbox.PathValidator, runner sandbox.Runner) (*Dispatcher, error) {
	registry, err := f.CreateRegistry()
	if err != nil {
		return nil, err
	}
	return NewDispatcher(registry, paths, runner, f.logger), nil
}

// CreateController builds a run controller around the given provider and
// dispatcher.
func (f *Factory) CreateController(provider ports.Provider, dispatcher *Dispatcher) *Controller {
	return NewController(provider, dispatcher, f.CreatePolicy(), f.CreateTracer(), f.logger)
}

// CreateTracer returns a zerolog-backed tracer, or a no-op one when
// tracing is disabled.
func (f *Factory) CreateTracer() ports.Tracer {
	if f.cfg != nil && f.cfg.EnableTracing {
		return adapters.NewZerologTracer(f.logger)
	}
	return noOpTracer{}
}

// CreateCache returns the shared LRU cache, or a no-op one when caching is
// disabled.
func (f *Factory) CreateCache() ports.Cache {
	if f.cfg != nil && f.cfg.CacheEnabled {
		capacity := f.cfg.CacheCapacity
		if capacity <= 0 {
			capacity = 128
		}
		return adapters.NewLRUCache(capacity)
	}
	return noOpCache{}
}

// CreateRateLimiter returns the provider-call rate limiter, or a no-op one
// when rate limiting is disabled.
func (f *Factory) CreateRateLimiter() ports.RateLimiter {
	if f.cfg != nil && f.cfg.RateLimitEnabled {
		capacity := f.cfg.RateLimitCapacity
		if capacity <= 0 {
			capacity = 10
		}
		return adapters.NewTokenBucket(capacity, f.cfg.RateLimitRefillRate)
	}
	return noOpRateLimiter{}
}

// CreateStore returns the configured run store, or a no-op one when
// persistence is disabled.
func (f *Factory) CreateStore() ports.RunStore {
	if f.store != nil {
		return f.store
	}
	return noOpRunStore{}
}

type noOpTracer struct{}

func (noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

type noOpCache struct{}

func (noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (noOpCache) Delete(ctx context.Context, key string) error { return nil }

type noOpRateLimiter struct{}

func (noOpRateLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type noOpRunStore struct{}

func (noOpRunStore) SaveRun(ctx context.Context, run ports.RunSummary) error { return nil }
func (noOpRunStore) LoadRecent(ctx context.Context, taskID string, k int) ([]ports.RunSummary, error) {
	return nil, nil
}
func (noOpRunStore) AppendArtifact(ctx context.Context, runID, name string, payload []byte) error {
	return nil
}

var (
	_ ports.Tracer      = noOpTracer{}
	_ ports.Cache       = noOpCache{}
	_ ports.RateLimiter = noOpRateLimiter{}
	_ ports.RunStore    = noOpRunStore{}
)
