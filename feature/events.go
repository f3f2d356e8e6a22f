//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package feature

import (
	"context"

	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/tool"
)

// EventType identifies a lifecycle event on the pipeline.
type EventType string

// Event catalogue.
const (
	// Agent lifecycle.
	EventAgentStarting           EventType = "agent_starting"
	EventAgentCompleted          EventType = "agent_completed"
	EventAgentExecutionFailed    EventType = "agent_execution_failed"
	EventAgentClosing            EventType = "agent_closing"
	EventEnvironmentTransforming EventType = "environment_transforming"

	// Strategy lifecycle.
	EventStrategyStarting  EventType = "strategy_starting"
	EventStrategyCompleted EventType = "strategy_completed"

	// LLM calls.
	EventLLMCallStarting  EventType = "llm_call_starting"
	EventLLMCallCompleted EventType = "llm_call_completed"

	// Tool calls.
	EventToolCallStarting     EventType = "tool_call_starting"
	EventToolValidationFailed EventType = "tool_validation_failed"
	EventToolCallFailed       EventType = "tool_call_failed"
	EventToolCallCompleted    EventType = "tool_call_completed"

	// Streaming.
	EventStreamingStarting      EventType = "streaming_starting"
	EventStreamingFrameReceived EventType = "streaming_frame_received"
	EventStreamingFailed        EventType = "streaming_failed"
	EventStreamingCompleted     EventType = "streaming_completed"
)

// AgentStartingContext is the payload of agent_starting.
type AgentStartingContext struct {
	RunID    string
	AgentID  string
	Strategy string
}

// AgentCompletedContext is the payload of agent_completed.
type AgentCompletedContext struct {
	RunID      string
	AgentID    string
	Result     any
	ResultType string
}

// AgentExecutionFailedContext is the payload of agent_execution_failed.
type AgentExecutionFailedContext struct {
	RunID   string
	AgentID string
	Err     error
}

// AgentClosingContext is the payload of agent_closing.
type AgentClosingContext struct {
	RunID   string
	AgentID string
}

// StrategyStartingContext is the payload of strategy_starting.
type StrategyStartingContext struct {
	RunID    string
	Strategy string
}

// StrategyCompletedContext is the payload of strategy_completed.
type StrategyCompletedContext struct {
	RunID      string
	Strategy   string
	Result     any
	ResultType string
}

// LLMCallStartingContext is the payload of llm_call_starting.
type LLMCallStartingContext struct {
	RunID    string
	Model    model.Model
	Messages []model.Message
	Tools    []string
}

// LLMCallCompletedContext is the payload of llm_call_completed.
type LLMCallCompletedContext struct {
	RunID     string
	Model     model.Model
	Responses []model.Message
}

// ToolCallStartingContext is the payload of tool_call_starting.
type ToolCallStartingContext struct {
	RunID string
	Call  tool.Call
}

// ToolValidationFailedContext is the payload of tool_validation_failed.
type ToolValidationFailedContext struct {
	RunID string
	Call  tool.Call
	Err   error
}

// ToolCallFailedContext is the payload of tool_call_failed.
type ToolCallFailedContext struct {
	RunID string
	Call  tool.Call
	Err   error
}

// ToolCallCompletedContext is the payload of tool_call_completed.
type ToolCallCompletedContext struct {
	RunID  string
	Call   tool.Call
	Result tool.Result
}

// StreamingStartingContext is the payload of streaming_starting.
type StreamingStartingContext struct {
	RunID string
	Model model.Model
}

// StreamingFrameReceivedContext is the payload of
// streaming_frame_received.
type StreamingFrameReceivedContext struct {
	RunID string
	Frame model.StreamFrame
}

// StreamingFailedContext is the payload of streaming_failed.
type StreamingFailedContext struct {
	RunID string
	Err   error
}

// StreamingCompletedContext is the payload of streaming_completed.
type StreamingCompletedContext struct {
	RunID string
}

// Notification handler types. Handlers may suspend; later handlers of
// the same event wait. Handler failures are isolated.
type (
	// AgentStartingHandler handles agent_starting.
	AgentStartingHandler func(ctx context.Context, e *AgentStartingContext) error
	// AgentCompletedHandler handles agent_completed.
	AgentCompletedHandler func(ctx context.Context, e *AgentCompletedContext) error
	// AgentExecutionFailedHandler handles agent_execution_failed.
	AgentExecutionFailedHandler func(ctx context.Context, e *AgentExecutionFailedContext) error
	// AgentClosingHandler handles agent_closing.
	AgentClosingHandler func(ctx context.Context, e *AgentClosingContext) error
	// EnvironmentTransformingHandler folds the run environment. Each
	// handler receives the prior result; the last transform wins on
	// conflicts.
	EnvironmentTransformingHandler func(ctx context.Context, env Environment) (Environment, error)
	// StrategyStartingHandler handles strategy_starting.
	StrategyStartingHandler func(ctx context.Context, e *StrategyStartingContext) error
	// StrategyCompletedHandler handles strategy_completed.
	StrategyCompletedHandler func(ctx context.Context, e *StrategyCompletedContext) error
	// LLMCallStartingHandler handles llm_call_starting.
	LLMCallStartingHandler func(ctx context.Context, e *LLMCallStartingContext) error
	// LLMCallCompletedHandler handles llm_call_completed.
	LLMCallCompletedHandler func(ctx context.Context, e *LLMCallCompletedContext) error
	// ToolCallStartingHandler handles tool_call_starting.
	ToolCallStartingHandler func(ctx context.Context, e *ToolCallStartingContext) error
	// ToolValidationFailedHandler handles tool_validation_failed.
	ToolValidationFailedHandler func(ctx context.Context, e *ToolValidationFailedContext) error
	// ToolCallFailedHandler handles tool_call_failed.
	ToolCallFailedHandler func(ctx context.Context, e *ToolCallFailedContext) error
	// ToolCallCompletedHandler handles tool_call_completed.
	ToolCallCompletedHandler func(ctx context.Context, e *ToolCallCompletedContext) error
	// StreamingStartingHandler handles streaming_starting.
	StreamingStartingHandler func(ctx context.Context, e *StreamingStartingContext) error
	// StreamingFrameReceivedHandler handles streaming_frame_received.
	StreamingFrameReceivedHandler func(ctx context.Context, e *StreamingFrameReceivedContext) error
	// StreamingFailedHandler handles streaming_failed.
	StreamingFailedHandler func(ctx context.Context, e *StreamingFailedContext) error
	// StreamingCompletedHandler handles streaming_completed.
	StreamingCompletedHandler func(ctx context.Context, e *StreamingCompletedContext) error
)
