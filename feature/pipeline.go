//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package feature

import (
	"context"
	"fmt"
	"sync"

	"github.com/koog-community/koog-go/log"
)

// handlerEntry binds a registered handler to its owning feature key.
type handlerEntry[H any] struct {
	key Key
	fn  H
}

// installed tracks one installed feature instance.
type installed struct {
	feature     Feature
	config      *Config
	initialized bool
}

// Pipeline is the event dispatch fabric connecting the engine to
// features. Handlers for a single event run sequentially in
// registration order; handler failures are isolated. The handler
// registry is mutated only during install/uninstall and read-only
// during dispatch.
type Pipeline struct {
	mu       sync.RWMutex
	features map[Key]*installed
	order    []Key
	reporter func(error)
	prepared bool

	agentStarting        []handlerEntry[AgentStartingHandler]
	agentCompleted       []handlerEntry[AgentCompletedHandler]
	agentExecutionFailed []handlerEntry[AgentExecutionFailedHandler]
	agentClosing         []handlerEntry[AgentClosingHandler]
	environmentTransform []handlerEntry[EnvironmentTransformingHandler]
	strategyStarting     []handlerEntry[StrategyStartingHandler]
	strategyCompleted    []handlerEntry[StrategyCompletedHandler]
	llmCallStarting      []handlerEntry[LLMCallStartingHandler]
	llmCallCompleted     []handlerEntry[LLMCallCompletedHandler]
	toolCallStarting     []handlerEntry[ToolCallStartingHandler]
	toolValidationFailed []handlerEntry[ToolValidationFailedHandler]
	toolCallFailed       []handlerEntry[ToolCallFailedHandler]
	toolCallCompleted    []handlerEntry[ToolCallCompletedHandler]
	streamingStarting    []handlerEntry[StreamingStartingHandler]
	streamingFrame       []handlerEntry[StreamingFrameReceivedHandler]
	streamingFailed      []handlerEntry[StreamingFailedHandler]
	streamingCompleted   []handlerEntry[StreamingCompletedHandler]
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{features: make(map[Key]*installed)}
}

// SetProblemReporter wires handler failures to the run environment.
// The reporter must not panic.
func (p *Pipeline) SetProblemReporter(reporter func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reporter = reporter
}

// Install installs a feature with its default config plus overrides.
// Installing an already installed key is an error.
func (p *Pipeline) Install(f Feature, opts ...ConfigOption) error {
	cfg := f.DefaultConfig()
	if cfg == nil {
		cfg = &Config{}
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if f.Key() == DebuggerKey && cfg.EventFilter != nil {
		// The debugger observes everything; filtering is forbidden.
		log.Warnf("feature %s forbids event filtering, dropping filter", DebuggerKey)
		cfg.EventFilter = nil
	}

	p.mu.Lock()
	if _, exists := p.features[f.Key()]; exists {
		p.mu.Unlock()
		return fmt.Errorf("feature %q already installed", f.Key())
	}
	p.features[f.Key()] = &installed{feature: f, config: cfg}
	p.order = append(p.order, f.Key())
	p.mu.Unlock()

	// Install registers handlers; it takes the lock through the OnX
	// registration methods.
	if err := f.Install(p, cfg); err != nil {
		p.removeFeature(f.Key())
		return fmt.Errorf("install feature %q: %w", f.Key(), err)
	}
	return nil
}

// IsInstalled reports whether the feature key is installed.
func (p *Pipeline) IsInstalled(key Key) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.features[key]
	return ok
}

// Uninstall removes a feature's handlers and closes its message
// processors.
func (p *Pipeline) Uninstall(ctx context.Context, key Key) error {
	p.mu.Lock()
	entry, ok := p.features[key]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	var firstErr error
	if entry.initialized {
		for _, processor := range entry.config.MessageProcessors {
			if err := processor.Close(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	p.removeFeature(key)
	return firstErr
}

// Fork creates a new pipeline carrying the same features. Every
// feature is installed again on the fresh pipeline with a copy of its
// config, so handler registrations are rebuilt and message processors
// are re-initialized on the next prepare instead of being shared with
// the parent.
func (p *Pipeline) Fork() (*Pipeline, error) {
	p.mu.RLock()
	order := append([]Key(nil), p.order...)
	entries := make([]*installed, 0, len(order))
	for _, key := range order {
		entries = append(entries, p.features[key])
	}
	reporter := p.reporter
	p.mu.RUnlock()

	child := NewPipeline()
	child.SetProblemReporter(reporter)
	for _, entry := range entries {
		cfg := *entry.config
		cfg.MessageProcessors = append([]MessageProcessor(nil), entry.config.MessageProcessors...)
		if err := child.Install(entry.feature, withConfig(cfg)); err != nil {
			return nil, fmt.Errorf("fork pipeline: %w", err)
		}
	}
	return child, nil
}

// withConfig replaces the feature's default config wholesale during a
// re-install on a forked pipeline.
func withConfig(cfg Config) ConfigOption {
	return func(target *Config) {
		*target = cfg
	}
}

// PrepareAllFeatures installs recognized system features and
// sequentially initializes every feature's message processors.
// Idempotent: already-initialized features are skipped.
func (p *Pipeline) PrepareAllFeatures(ctx context.Context) error {
	installSystemFeatures(p)

	p.mu.RLock()
	order := append([]Key(nil), p.order...)
	p.mu.RUnlock()

	for _, key := range order {
		p.mu.Lock()
		entry, ok := p.features[key]
		if !ok || entry.initialized {
			p.mu.Unlock()
			continue
		}
		entry.initialized = true
		processors := entry.config.MessageProcessors
		p.mu.Unlock()

		for _, processor := range processors {
			if err := processor.Initialize(ctx); err != nil {
				return fmt.Errorf("prepare feature %q: %w", key, err)
			}
		}
	}
	p.mu.Lock()
	p.prepared = true
	p.mu.Unlock()
	return nil
}

// CloseAllFeaturesMessageProcessors mirrors PrepareAllFeatures on
// shutdown. Idempotent.
func (p *Pipeline) CloseAllFeaturesMessageProcessors(ctx context.Context) error {
	p.mu.RLock()
	order := append([]Key(nil), p.order...)
	p.mu.RUnlock()

	var firstErr error
	for _, key := range order {
		p.mu.Lock()
		entry, ok := p.features[key]
		if !ok || !entry.initialized {
			p.mu.Unlock()
			continue
		}
		entry.initialized = false
		processors := entry.config.MessageProcessors
		p.mu.Unlock()

		for _, processor := range processors {
			if err := processor.Close(ctx); err != nil {
				log.Errorf("close message processor of feature %q: %v", key, err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

func (p *Pipeline) removeFeature(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.features, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.agentStarting = dropKey(p.agentStarting, key)
	p.agentCompleted = dropKey(p.agentCompleted, key)
	p.agentExecutionFailed = dropKey(p.agentExecutionFailed, key)
	p.agentClosing = dropKey(p.agentClosing, key)
	p.environmentTransform = dropKey(p.environmentTransform, key)
	p.strategyStarting = dropKey(p.strategyStarting, key)
	p.strategyCompleted = dropKey(p.strategyCompleted, key)
	p.llmCallStarting = dropKey(p.llmCallStarting, key)
	p.llmCallCompleted = dropKey(p.llmCallCompleted, key)
	p.toolCallStarting = dropKey(p.toolCallStarting, key)
	p.toolValidationFailed = dropKey(p.toolValidationFailed, key)
	p.toolCallFailed = dropKey(p.toolCallFailed, key)
	p.toolCallCompleted = dropKey(p.toolCallCompleted, key)
	p.streamingStarting = dropKey(p.streamingStarting, key)
	p.streamingFrame = dropKey(p.streamingFrame, key)
	p.streamingFailed = dropKey(p.streamingFailed, key)
	p.streamingCompleted = dropKey(p.streamingCompleted, key)
}

func dropKey[H any](entries []handlerEntry[H], key Key) []handlerEntry[H] {
	kept := entries[:0]
	for _, entry := range entries {
		if entry.key != key {
			kept = append(kept, entry)
		}
	}
	return kept
}

// allowed evaluates the owning feature's event filter for the event.
func (p *Pipeline) allowed(key Key, eventType EventType) bool {
	p.mu.RLock()
	entry, ok := p.features[key]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	if entry.config.EventFilter == nil || key == DebuggerKey {
		return true
	}
	return entry.config.EventFilter(eventType)
}

// safeInvoke isolates a handler failure: logged and reported, never
// propagated.
func (p *Pipeline) safeInvoke(eventType EventType, key Key, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.reportHandlerFailure(eventType, key, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		p.reportHandlerFailure(eventType, key, err)
	}
}

func (p *Pipeline) reportHandlerFailure(eventType EventType, key Key, err error) {
	wrapped := fmt.Errorf("feature %q handler for %s failed: %w", key, eventType, err)
	log.Errorf("%v", wrapped)
	p.mu.RLock()
	reporter := p.reporter
	p.mu.RUnlock()
	if reporter != nil {
		reporter(wrapped)
	}
}

// dispatch runs the entries sequentially in registration order,
// applying the per-feature filter and failure isolation.
func dispatch[H any](p *Pipeline, eventType EventType, entries []handlerEntry[H], invoke func(H) error) {
	for _, entry := range entries {
		if !p.allowed(entry.key, eventType) {
			continue
		}
		p.safeInvoke(eventType, entry.key, func() error { return invoke(entry.fn) })
	}
}

// Registration methods. Handlers are keyed by the installing feature.

// OnAgentStarting registers an agent_starting handler.
func (p *Pipeline) OnAgentStarting(key Key, h AgentStartingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agentStarting = append(p.agentStarting, handlerEntry[AgentStartingHandler]{key, h})
}

// OnAgentCompleted registers an agent_completed handler.
func (p *Pipeline) OnAgentCompleted(key Key, h AgentCompletedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agentCompleted = append(p.agentCompleted, handlerEntry[AgentCompletedHandler]{key, h})
}

// OnAgentExecutionFailed registers an agent_execution_failed handler.
func (p *Pipeline) OnAgentExecutionFailed(key Key, h AgentExecutionFailedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agentExecutionFailed = append(p.agentExecutionFailed, handlerEntry[AgentExecutionFailedHandler]{key, h})
}

// OnAgentClosing registers an agent_closing handler.
func (p *Pipeline) OnAgentClosing(key Key, h AgentClosingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agentClosing = append(p.agentClosing, handlerEntry[AgentClosingHandler]{key, h})
}

// OnEnvironmentTransforming registers an environment fold handler.
func (p *Pipeline) OnEnvironmentTransforming(key Key, h EnvironmentTransformingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.environmentTransform = append(p.environmentTransform, handlerEntry[EnvironmentTransformingHandler]{key, h})
}

// OnStrategyStarting registers a strategy_starting handler.
func (p *Pipeline) OnStrategyStarting(key Key, h StrategyStartingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategyStarting = append(p.strategyStarting, handlerEntry[StrategyStartingHandler]{key, h})
}

// OnStrategyCompleted registers a strategy_completed handler.
func (p *Pipeline) OnStrategyCompleted(key Key, h StrategyCompletedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategyCompleted = append(p.strategyCompleted, handlerEntry[StrategyCompletedHandler]{key, h})
}

// OnLLMCallStarting registers an llm_call_starting handler.
func (p *Pipeline) OnLLMCallStarting(key Key, h LLMCallStartingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.llmCallStarting = append(p.llmCallStarting, handlerEntry[LLMCallStartingHandler]{key, h})
}

// OnLLMCallCompleted registers an llm_call_completed handler.
func (p *Pipeline) OnLLMCallCompleted(key Key, h LLMCallCompletedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.llmCallCompleted = append(p.llmCallCompleted, handlerEntry[LLMCallCompletedHandler]{key, h})
}

// OnToolCallStarting registers a tool_call_starting handler.
func (p *Pipeline) OnToolCallStarting(key Key, h ToolCallStartingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toolCallStarting = append(p.toolCallStarting, handlerEntry[ToolCallStartingHandler]{key, h})
}

// OnToolValidationFailed registers a tool_validation_failed handler.
func (p *Pipeline) OnToolValidationFailed(key Key, h ToolValidationFailedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toolValidationFailed = append(p.toolValidationFailed, handlerEntry[ToolValidationFailedHandler]{key, h})
}

// OnToolCallFailed registers a tool_call_failed handler.
func (p *Pipeline) OnToolCallFailed(key Key, h ToolCallFailedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toolCallFailed = append(p.toolCallFailed, handlerEntry[ToolCallFailedHandler]{key, h})
}

// OnToolCallCompleted registers a tool_call_completed handler.
func (p *Pipeline) OnToolCallCompleted(key Key, h ToolCallCompletedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toolCallCompleted = append(p.toolCallCompleted, handlerEntry[ToolCallCompletedHandler]{key, h})
}

// OnStreamingStarting registers a streaming_starting handler.
func (p *Pipeline) OnStreamingStarting(key Key, h StreamingStartingHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamingStarting = append(p.streamingStarting, handlerEntry[StreamingStartingHandler]{key, h})
}

// OnStreamingFrameReceived registers a streaming_frame_received
// handler.
func (p *Pipeline) OnStreamingFrameReceived(key Key, h StreamingFrameReceivedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamingFrame = append(p.streamingFrame, handlerEntry[StreamingFrameReceivedHandler]{key, h})
}

// OnStreamingFailed registers a streaming_failed handler.
func (p *Pipeline) OnStreamingFailed(key Key, h StreamingFailedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamingFailed = append(p.streamingFailed, handlerEntry[StreamingFailedHandler]{key, h})
}

// OnStreamingCompleted registers a streaming_completed handler.
func (p *Pipeline) OnStreamingCompleted(key Key, h StreamingCompletedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamingCompleted = append(p.streamingCompleted, handlerEntry[StreamingCompletedHandler]{key, h})
}

// Notification methods. Each snapshots the registry and dispatches
// sequentially.

// NotifyAgentStarting dispatches agent_starting.
func (p *Pipeline) NotifyAgentStarting(ctx context.Context, e *AgentStartingContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[AgentStartingHandler](nil), p.agentStarting...)
	p.mu.RUnlock()
	dispatch(p, EventAgentStarting, entries, func(h AgentStartingHandler) error { return h(ctx, e) })
}

// NotifyAgentCompleted dispatches agent_completed.
func (p *Pipeline) NotifyAgentCompleted(ctx context.Context, e *AgentCompletedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[AgentCompletedHandler](nil), p.agentCompleted...)
	p.mu.RUnlock()
	dispatch(p, EventAgentCompleted, entries, func(h AgentCompletedHandler) error { return h(ctx, e) })
}

// NotifyAgentExecutionFailed dispatches agent_execution_failed.
func (p *Pipeline) NotifyAgentExecutionFailed(ctx context.Context, e *AgentExecutionFailedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[AgentExecutionFailedHandler](nil), p.agentExecutionFailed...)
	p.mu.RUnlock()
	dispatch(p, EventAgentExecutionFailed, entries, func(h AgentExecutionFailedHandler) error { return h(ctx, e) })
}

// NotifyAgentClosing dispatches agent_closing.
func (p *Pipeline) NotifyAgentClosing(ctx context.Context, e *AgentClosingContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[AgentClosingHandler](nil), p.agentClosing...)
	p.mu.RUnlock()
	dispatch(p, EventAgentClosing, entries, func(h AgentClosingHandler) error { return h(ctx, e) })
}

// TransformEnvironment folds the environment through the registered
// transform handlers in registration order. A filtered-out or failing
// handler leaves the environment unchanged; the last transform wins.
func (p *Pipeline) TransformEnvironment(ctx context.Context, env Environment) Environment {
	p.mu.RLock()
	entries := append([]handlerEntry[EnvironmentTransformingHandler](nil), p.environmentTransform...)
	p.mu.RUnlock()

	current := env
	for _, entry := range entries {
		if !p.allowed(entry.key, EventEnvironmentTransforming) {
			continue
		}
		p.safeInvoke(EventEnvironmentTransforming, entry.key, func() error {
			next, err := entry.fn(ctx, current)
			if err != nil {
				return err
			}
			if next != nil {
				current = next
			}
			return nil
		})
	}
	return current
}

// NotifyStrategyStarting dispatches strategy_starting.
func (p *Pipeline) NotifyStrategyStarting(ctx context.Context, e *StrategyStartingContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[StrategyStartingHandler](nil), p.strategyStarting...)
	p.mu.RUnlock()
	dispatch(p, EventStrategyStarting, entries, func(h StrategyStartingHandler) error { return h(ctx, e) })
}

// NotifyStrategyCompleted dispatches strategy_completed.
func (p *Pipeline) NotifyStrategyCompleted(ctx context.Context, e *StrategyCompletedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[StrategyCompletedHandler](nil), p.strategyCompleted...)
	p.mu.RUnlock()
	dispatch(p, EventStrategyCompleted, entries, func(h StrategyCompletedHandler) error { return h(ctx, e) })
}

// NotifyLLMCallStarting dispatches llm_call_starting.
func (p *Pipeline) NotifyLLMCallStarting(ctx context.Context, e *LLMCallStartingContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[LLMCallStartingHandler](nil), p.llmCallStarting...)
	p.mu.RUnlock()
	dispatch(p, EventLLMCallStarting, entries, func(h LLMCallStartingHandler) error { return h(ctx, e) })
}

// NotifyLLMCallCompleted dispatches llm_call_completed.
func (p *Pipeline) NotifyLLMCallCompleted(ctx context.Context, e *LLMCallCompletedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[LLMCallCompletedHandler](nil), p.llmCallCompleted...)
	p.mu.RUnlock()
	dispatch(p, EventLLMCallCompleted, entries, func(h LLMCallCompletedHandler) error { return h(ctx, e) })
}

// NotifyToolCallStarting dispatches tool_call_starting.
func (p *Pipeline) NotifyToolCallStarting(ctx context.Context, e *ToolCallStartingContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[ToolCallStartingHandler](nil), p.toolCallStarting...)
	p.mu.RUnlock()
	dispatch(p, EventToolCallStarting, entries, func(h ToolCallStartingHandler) error { return h(ctx, e) })
}

// NotifyToolValidationFailed dispatches tool_validation_failed.
func (p *Pipeline) NotifyToolValidationFailed(ctx context.Context, e *ToolValidationFailedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[ToolValidationFailedHandler](nil), p.toolValidationFailed...)
	p.mu.RUnlock()
	dispatch(p, EventToolValidationFailed, entries, func(h ToolValidationFailedHandler) error { return h(ctx, e) })
}

// NotifyToolCallFailed dispatches tool_call_failed.
func (p *Pipeline) NotifyToolCallFailed(ctx context.Context, e *ToolCallFailedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[ToolCallFailedHandler](nil), p.toolCallFailed...)
	p.mu.RUnlock()
	dispatch(p, EventToolCallFailed, entries, func(h ToolCallFailedHandler) error { return h(ctx, e) })
}

// NotifyToolCallCompleted dispatches tool_call_completed.
func (p *Pipeline) NotifyToolCallCompleted(ctx context.Context, e *ToolCallCompletedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[ToolCallCompletedHandler](nil), p.toolCallCompleted...)
	p.mu.RUnlock()
	dispatch(p, EventToolCallCompleted, entries, func(h ToolCallCompletedHandler) error { return h(ctx, e) })
}

// NotifyStreamingStarting dispatches streaming_starting.
func (p *Pipeline) NotifyStreamingStarting(ctx context.Context, e *StreamingStartingContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[StreamingStartingHandler](nil), p.streamingStarting...)
	p.mu.RUnlock()
	dispatch(p, EventStreamingStarting, entries, func(h StreamingStartingHandler) error { return h(ctx, e) })
}

// NotifyStreamingFrameReceived dispatches streaming_frame_received.
func (p *Pipeline) NotifyStreamingFrameReceived(ctx context.Context, e *StreamingFrameReceivedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[StreamingFrameReceivedHandler](nil), p.streamingFrame...)
	p.mu.RUnlock()
	dispatch(p, EventStreamingFrameReceived, entries, func(h StreamingFrameReceivedHandler) error { return h(ctx, e) })
}

// NotifyStreamingFailed dispatches streaming_failed.
func (p *Pipeline) NotifyStreamingFailed(ctx context.Context, e *StreamingFailedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[StreamingFailedHandler](nil), p.streamingFailed...)
	p.mu.RUnlock()
	dispatch(p, EventStreamingFailed, entries, func(h StreamingFailedHandler) error { return h(ctx, e) })
}

// NotifyStreamingCompleted dispatches streaming_completed.
func (p *Pipeline) NotifyStreamingCompleted(ctx context.Context, e *StreamingCompletedContext) {
	p.mu.RLock()
	entries := append([]handlerEntry[StreamingCompletedHandler](nil), p.streamingCompleted...)
	p.mu.RUnlock()
	dispatch(p, EventStreamingCompleted, entries, func(h StreamingCompletedHandler) error { return h(ctx, e) })
}
