//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package feature

import (
	"context"

	"github.com/koog-community/koog-go/log"
)

// DebuggerKey identifies the built-in debugger feature.
const DebuggerKey Key = "debugger"

func init() {
	RegisterSystemFeature(DebuggerKey, func() Feature { return &Debugger{} })
}

// Debugger is a system feature that logs every pipeline event. It is
// exempt from event filtering: a debugger that misses events is useless.
type Debugger struct {
	logf func(format string, args ...any)
}

// NewDebugger creates a debugger logging through logf. A nil logf uses
// the package logger.
func NewDebugger(logf func(format string, args ...any)) *Debugger {
	return &Debugger{logf: logf}
}

// Key implements Feature.
func (d *Debugger) Key() Key { return DebuggerKey }

// DefaultConfig implements Feature.
func (d *Debugger) DefaultConfig() *Config { return &Config{} }

// Install implements Feature. It subscribes to every event.
func (d *Debugger) Install(p *Pipeline, _ *Config) error {
	p.OnAgentStarting(DebuggerKey, func(_ context.Context, e *AgentStartingContext) error {
		d.printf("agent starting: run=%s agent=%s strategy=%s", e.RunID, e.AgentID, e.Strategy)
		return nil
	})
	p.OnAgentCompleted(DebuggerKey, func(_ context.Context, e *AgentCompletedContext) error {
		d.printf("agent completed: run=%s agent=%s result_type=%s", e.RunID, e.AgentID, e.ResultType)
		return nil
	})
	p.OnAgentExecutionFailed(DebuggerKey, func(_ context.Context, e *AgentExecutionFailedContext) error {
		d.printf("agent execution failed: run=%s agent=%s err=%v", e.RunID, e.AgentID, e.Err)
		return nil
	})
	p.OnAgentClosing(DebuggerKey, func(_ context.Context, e *AgentClosingContext) error {
		d.printf("agent closing: run=%s agent=%s", e.RunID, e.AgentID)
		return nil
	})
	p.OnStrategyStarting(DebuggerKey, func(_ context.Context, e *StrategyStartingContext) error {
		d.printf("strategy starting: run=%s strategy=%s", e.RunID, e.Strategy)
		return nil
	})
	p.OnStrategyCompleted(DebuggerKey, func(_ context.Context, e *StrategyCompletedContext) error {
		d.printf("strategy completed: run=%s strategy=%s result_type=%s", e.RunID, e.Strategy, e.ResultType)
		return nil
	})
	p.OnLLMCallStarting(DebuggerKey, func(_ context.Context, e *LLMCallStartingContext) error {
		d.printf("llm call starting: run=%s model=%s/%s messages=%d tools=%d",
			e.RunID, e.Model.Provider, e.Model.ID, len(e.Messages), len(e.Tools))
		return nil
	})
	p.OnLLMCallCompleted(DebuggerKey, func(_ context.Context, e *LLMCallCompletedContext) error {
		d.printf("llm call completed: run=%s model=%s/%s responses=%d",
			e.RunID, e.Model.Provider, e.Model.ID, len(e.Responses))
		return nil
	})
	p.OnToolCallStarting(DebuggerKey, func(_ context.Context, e *ToolCallStartingContext) error {
		d.printf("tool call starting: run=%s tool=%s id=%s", e.RunID, e.Call.Name, e.Call.ID)
		return nil
	})
	p.OnToolValidationFailed(DebuggerKey, func(_ context.Context, e *ToolValidationFailedContext) error {
		d.printf("tool validation failed: run=%s tool=%s err=%v", e.RunID, e.Call.Name, e.Err)
		return nil
	})
	p.OnToolCallFailed(DebuggerKey, func(_ context.Context, e *ToolCallFailedContext) error {
		d.printf("tool call failed: run=%s tool=%s err=%v", e.RunID, e.Call.Name, e.Err)
		return nil
	})
	p.OnToolCallCompleted(DebuggerKey, func(_ context.Context, e *ToolCallCompletedContext) error {
		d.printf("tool call completed: run=%s tool=%s id=%s", e.RunID, e.Call.Name, e.Call.ID)
		return nil
	})
	p.OnStreamingStarting(DebuggerKey, func(_ context.Context, e *StreamingStartingContext) error {
		d.printf("streaming starting: run=%s model=%s/%s", e.RunID, e.Model.Provider, e.Model.ID)
		return nil
	})
	p.OnStreamingFrameReceived(DebuggerKey, func(_ context.Context, e *StreamingFrameReceivedContext) error {
		d.printf("streaming frame: run=%s type=%s", e.RunID, e.Frame.Type)
		return nil
	})
	p.OnStreamingFailed(DebuggerKey, func(_ context.Context, e *StreamingFailedContext) error {
		d.printf("streaming failed: run=%s err=%v", e.RunID, e.Err)
		return nil
	})
	p.OnStreamingCompleted(DebuggerKey, func(_ context.Context, e *StreamingCompletedContext) error {
		d.printf("streaming completed: run=%s", e.RunID)
		return nil
	})
	return nil
}

func (d *Debugger) printf(format string, args ...any) {
	if d.logf != nil {
		d.logf(format, args...)
		return
	}
	log.Debugf(format, args...)
}
