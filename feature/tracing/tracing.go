//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package tracing provides an OpenTelemetry feature that spans agent,
// LLM and tool activity observed on the pipeline.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koog-community/koog-go/feature"
)

// Key identifies the tracing feature.
const Key feature.Key = "tracing"

const instrumentationName = "github.com/koog-community/koog-go/feature/tracing"

func init() {
	feature.RegisterSystemFeature(Key, func() feature.Feature { return New() })
}

// Tracing opens one span per agent run, per LLM call and per tool call.
// Spans are correlated by run ID and tool call ID; the pipeline
// dispatches events sequentially so the bookkeeping only needs a mutex
// for concurrent runs.
type Tracing struct {
	tracer trace.Tracer

	mu        sync.Mutex
	agentSpan map[string]trace.Span
	llmSpan   map[string]trace.Span
	toolSpan  map[string]trace.Span
}

// Option configures the tracing feature.
type Option func(*Tracing)

// WithTracerProvider sets the provider. Defaults to the global one.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(t *Tracing) {
		t.tracer = provider.Tracer(instrumentationName)
	}
}

// New creates the tracing feature.
func New(opts ...Option) *Tracing {
	t := &Tracing{
		agentSpan: make(map[string]trace.Span),
		llmSpan:   make(map[string]trace.Span),
		toolSpan:  make(map[string]trace.Span),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(instrumentationName)
	}
	return t
}

// Key implements feature.Feature.
func (t *Tracing) Key() feature.Key { return Key }

// DefaultConfig implements feature.Feature.
func (t *Tracing) DefaultConfig() *feature.Config { return &feature.Config{} }

// Install implements feature.Feature.
func (t *Tracing) Install(p *feature.Pipeline, _ *feature.Config) error {
	p.OnAgentStarting(Key, func(ctx context.Context, e *feature.AgentStartingContext) error {
		_, span := t.tracer.Start(ctx, "agent.run", trace.WithAttributes(
			attribute.String("agent.run_id", e.RunID),
			attribute.String("agent.id", e.AgentID),
			attribute.String("agent.strategy", e.Strategy),
		))
		t.put(t.agentSpan, e.RunID, span)
		return nil
	})
	p.OnAgentCompleted(Key, func(_ context.Context, e *feature.AgentCompletedContext) error {
		if span := t.take(t.agentSpan, e.RunID); span != nil {
			span.SetAttributes(attribute.String("agent.result_type", e.ResultType))
			span.End()
		}
		return nil
	})
	p.OnAgentExecutionFailed(Key, func(_ context.Context, e *feature.AgentExecutionFailedContext) error {
		if span := t.take(t.agentSpan, e.RunID); span != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
			span.End()
		}
		return nil
	})
	p.OnLLMCallStarting(Key, func(ctx context.Context, e *feature.LLMCallStartingContext) error {
		_, span := t.tracer.Start(ctx, "llm.call", trace.WithAttributes(
			attribute.String("agent.run_id", e.RunID),
			attribute.String("llm.provider", e.Model.Provider),
			attribute.String("llm.model", e.Model.ID),
			attribute.Int("llm.messages", len(e.Messages)),
			attribute.StringSlice("llm.tools", e.Tools),
		))
		t.put(t.llmSpan, e.RunID, span)
		return nil
	})
	p.OnLLMCallCompleted(Key, func(_ context.Context, e *feature.LLMCallCompletedContext) error {
		if span := t.take(t.llmSpan, e.RunID); span != nil {
			span.SetAttributes(attribute.Int("llm.responses", len(e.Responses)))
			span.End()
		}
		return nil
	})
	p.OnToolCallStarting(Key, func(ctx context.Context, e *feature.ToolCallStartingContext) error {
		_, span := t.tracer.Start(ctx, "tool.call", trace.WithAttributes(
			attribute.String("agent.run_id", e.RunID),
			attribute.String("tool.name", e.Call.Name),
			attribute.String("tool.call_id", e.Call.ID),
		))
		t.put(t.toolSpan, e.Call.ID, span)
		return nil
	})
	p.OnToolValidationFailed(Key, func(_ context.Context, e *feature.ToolValidationFailedContext) error {
		if span := t.take(t.toolSpan, e.Call.ID); span != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, "validation failed")
			span.End()
		}
		return nil
	})
	p.OnToolCallFailed(Key, func(_ context.Context, e *feature.ToolCallFailedContext) error {
		if span := t.take(t.toolSpan, e.Call.ID); span != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
			span.End()
		}
		return nil
	})
	p.OnToolCallCompleted(Key, func(_ context.Context, e *feature.ToolCallCompletedContext) error {
		if span := t.take(t.toolSpan, e.Call.ID); span != nil {
			span.End()
		}
		return nil
	})
	p.OnStreamingFailed(Key, func(_ context.Context, e *feature.StreamingFailedContext) error {
		if span := t.take(t.llmSpan, e.RunID); span != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
			span.End()
		}
		return nil
	})
	return nil
}

func (t *Tracing) put(m map[string]trace.Span, key string, span trace.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// An unfinished span under the same key leaks otherwise.
	if prev, ok := m[key]; ok {
		prev.End()
	}
	m[key] = span
}

func (t *Tracing) take(m map[string]trace.Span, key string) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := m[key]
	if !ok {
		return nil
	}
	delete(m, key)
	return span
}
