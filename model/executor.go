//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"fmt"

	"github.com/koog-community/koog-go/tool"
)

// Request is a single LLM request assembled by the engine.
type Request struct {
	// Messages is the prompt message history.
	Messages []Message `json:"messages"`
	// Model is the model binding to execute against.
	Model Model `json:"model"`
	// Tools lists the tool declarations visible to the model.
	Tools []*tool.Declaration `json:"tools,omitempty"`
	// ToolChoice constrains tool usage for this request.
	ToolChoice ToolChoice `json:"tool_choice,omitempty"`
	// NumberOfChoices asks for that many alternative completions.
	// Zero means provider default (one).
	NumberOfChoices int `json:"number_of_choices,omitempty"`
}

// FrameType discriminates streaming frames.
type FrameType string

// Frame types delivered by ExecuteStreaming.
const (
	// FrameContentDelta carries a chunk of assistant content.
	FrameContentDelta FrameType = "content_delta"
	// FrameToolCallStart opens a tool call with id and name.
	FrameToolCallStart FrameType = "tool_call_start"
	// FrameToolCallDelta carries a chunk of tool call arguments.
	FrameToolCallDelta FrameType = "tool_call_delta"
	// FrameToolCallEnd closes a tool call.
	FrameToolCallEnd FrameType = "tool_call_end"
	// FrameError reports a provider-side failure mid stream.
	FrameError FrameType = "error"
	// FrameFinish terminates the stream.
	FrameFinish FrameType = "finish"
)

// StreamFrame is one element of a streaming response. Frames arrive in
// provider order; fragments of a single tool call share a ToolCallID.
type StreamFrame struct {
	// Type is the frame discriminator.
	Type FrameType `json:"type"`
	// Content is the content delta for FrameContentDelta.
	Content string `json:"content,omitempty"`
	// ToolCallID groups tool call fragments.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName is set on FrameToolCallStart.
	ToolName string `json:"tool_name,omitempty"`
	// ArgumentsDelta is the argument chunk for FrameToolCallDelta.
	ArgumentsDelta []byte `json:"arguments_delta,omitempty"`
	// Err is the failure for FrameError frames.
	Err error `json:"-"`
}

// ModerationResult is the outcome of a moderation request.
type ModerationResult struct {
	// Flagged reports whether the prompt violated provider policy.
	Flagged bool `json:"flagged"`
	// Categories maps category names to whether they were triggered.
	Categories map[string]bool `json:"categories,omitempty"`
}

// Choice is one of N alternative responses returned by a multi-choice
// request. Each choice is the full list of response messages.
type Choice []Message

// PromptExecutor executes LLM requests against a provider. Concrete
// transports live outside the engine; the engine only depends on this
// interface.
type PromptExecutor interface {
	// Execute performs a request and returns the response messages.
	Execute(ctx context.Context, req Request) ([]Message, error)
	// ExecuteStreaming performs a request and streams response frames.
	// The returned channel is closed after the finish or error frame.
	ExecuteStreaming(ctx context.Context, req Request) (<-chan StreamFrame, error)
	// ExecuteMultipleChoices performs a request that returns several
	// alternative completions.
	ExecuteMultipleChoices(ctx context.Context, req Request) ([]Choice, error)
	// Moderate runs the provider moderation endpoint over the prompt.
	Moderate(ctx context.Context, req Request) (ModerationResult, error)
	// Close releases provider resources.
	Close() error
}

// LLMCallError wraps an upstream executor failure.
type LLMCallError struct {
	// Model is the model id of the failed request.
	Model string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *LLMCallError) Error() string {
	return fmt.Sprintf("llm call failed for model %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *LLMCallError) Unwrap() error { return e.Err }

// NewLLMCallError wraps err as an LLM call failure for the given model.
func NewLLMCallError(model string, err error) *LLMCallError {
	return &LLMCallError{Model: model, Err: err}
}
