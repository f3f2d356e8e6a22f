//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/koog-community/koog-go/feature"
	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/prompt"
)

// ToolChoiceRetryMessage is the synthetic user message injected when a
// model without tool-choice support replies with plain text where a
// tool call was required.
const ToolChoiceRetryMessage = "# DO NOT CHAT WITH ME DIRECTLY! CALL TOOLS, INSTEAD."

// llmRequestSpec describes one LLM request issued by a node.
type llmRequestSpec struct {
	allowToolCalls  bool
	requireToolCall bool
}

// appendToPrompt appends the node input to the prompt. Strings become
// user messages; messages are appended as-is; nil appends nothing.
func appendToPrompt(rc *Context, input any) error {
	var messages []model.Message
	switch v := input.(type) {
	case nil:
	case string:
		if v != "" {
			messages = []model.Message{model.NewUserMessage(v)}
		}
	case model.Message:
		messages = []model.Message{v}
	case []model.Message:
		messages = v
	default:
		return fmt.Errorf("llm request input must be a string or message, got %T", input)
	}
	if len(messages) == 0 {
		return nil
	}
	return rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.AppendPrompt(messages...)
		return nil
	})
}

// executeLLMRequest performs one LLM request over the current prompt,
// publishing the response and the lifecycle events. A required tool
// call on a model without tool-choice support falls back to the
// synthetic-message retry loop.
func executeLLMRequest(ctx context.Context, rc *Context, spec llmRequestSpec) (model.Message, error) {
	binding := rc.Prompt.Model()

	req := model.Request{Model: binding}
	if spec.allowToolCalls {
		req.Tools = rc.toolDeclarations()
	}
	req.ToolChoice = rc.Config.ToolChoice
	supportsChoice := binding.Supports(model.CapabilityToolChoice)
	if spec.requireToolCall && supportsChoice {
		req.ToolChoice = model.ToolChoice{Mode: model.ToolChoiceRequired}
	}

	attempts := 1
	if spec.requireToolCall && !supportsChoice {
		attempts = rc.Config.MaxAttemptsWithoutToolChoice
		if attempts < 1 {
			attempts = DefaultMaxAttemptsWithoutToolChoice
		}
	}

	toolNames := make([]string, 0, len(req.Tools))
	for _, decl := range req.Tools {
		toolNames = append(toolNames, decl.Name)
	}

	for attempt := 0; attempt < attempts; attempt++ {
		req.Messages = rc.Prompt.Messages()
		if rc.Pipeline != nil {
			rc.Pipeline.NotifyLLMCallStarting(ctx, &feature.LLMCallStartingContext{
				RunID:    rc.RunID,
				Model:    binding,
				Messages: req.Messages,
				Tools:    toolNames,
			})
		}

		responses, err := rc.Executor.Execute(ctx, req)
		if err != nil {
			var callErr *model.LLMCallError
			if errors.As(err, &callErr) {
				return model.Message{}, err
			}
			return model.Message{}, model.NewLLMCallError(binding.ID, err)
		}
		if len(responses) == 0 {
			return model.Message{}, model.NewLLMCallError(binding.ID, errors.New("empty response"))
		}

		if rc.Pipeline != nil {
			rc.Pipeline.NotifyLLMCallCompleted(ctx, &feature.LLMCallCompletedContext{
				RunID:     rc.RunID,
				Model:     binding,
				Responses: responses,
			})
		}

		if err := rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
			s.AppendResponse(responses)
			return nil
		}); err != nil {
			return model.Message{}, err
		}

		last := responses[len(responses)-1]
		if !spec.requireToolCall || last.IsToolCall() {
			return last, nil
		}

		// The model chatted instead of calling tools. Push it back.
		if err := rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
			s.AppendPrompt(model.NewUserMessage(ToolChoiceRetryMessage))
			return nil
		}); err != nil {
			return model.Message{}, err
		}
	}
	return model.Message{}, &ToolChoiceUnsupportedError{Model: binding.ID, Attempts: attempts}
}

// LLMRequestNode appends its input to the prompt and issues one LLM
// request. The response messages are published to the prompt; the node
// output is the last response message.
type LLMRequestNode struct {
	baseNode
	spec llmRequestSpec
}

// LLMOption configures an LLM request node.
type LLMOption func(*llmRequestSpec)

// WithoutToolCalls forbids tool calls for the node's requests.
func WithoutToolCalls() LLMOption {
	return func(spec *llmRequestSpec) {
		spec.allowToolCalls = false
	}
}

// RequiringToolCall makes the node insist on a tool call, using the
// tool-choice constraint or the synthetic-message retry loop.
func RequiringToolCall() LLMOption {
	return func(spec *llmRequestSpec) {
		spec.requireToolCall = true
	}
}

// NewLLMRequestNode creates an LLM request node. Tool calls are allowed
// by default.
func NewLLMRequestNode(name string, opts ...LLMOption) *LLMRequestNode {
	spec := llmRequestSpec{allowToolCalls: true}
	for _, opt := range opts {
		opt(&spec)
	}
	return &LLMRequestNode{baseNode: baseNode{name: name}, spec: spec}
}

// Execute implements Node.
func (n *LLMRequestNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	if err := appendToPrompt(rc, input); err != nil {
		return nil, fmt.Errorf("node %q: %w", n.name, err)
	}
	msg, err := executeLLMRequest(ctx, rc, n.spec)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeInput implements InputDecoder.
func (n *LLMRequestNode) DecodeInput(raw json.RawMessage) (any, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value, nil
	}
	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode input of node %q: %w", n.name, err)
	}
	return msg, nil
}

// InputTypeName implements InputDecoder.
func (n *LLMRequestNode) InputTypeName() string { return "string" }

// LLMStreamingNode issues a streaming LLM request, forwarding every
// frame through the pipeline and assembling the final message.
type LLMStreamingNode struct {
	baseNode
}

// NewLLMStreamingNode creates a streaming LLM request node.
func NewLLMStreamingNode(name string) *LLMStreamingNode {
	return &LLMStreamingNode{baseNode: baseNode{name: name}}
}

// Execute implements Node.
func (n *LLMStreamingNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	if err := appendToPrompt(rc, input); err != nil {
		return nil, fmt.Errorf("node %q: %w", n.name, err)
	}

	binding := rc.Prompt.Model()
	req := model.Request{
		Messages: rc.Prompt.Messages(),
		Model:    binding,
		Tools:    rc.toolDeclarations(),
	}

	if rc.Pipeline != nil {
		rc.Pipeline.NotifyStreamingStarting(ctx, &feature.StreamingStartingContext{
			RunID: rc.RunID,
			Model: binding,
		})
	}
	frames, err := rc.Executor.ExecuteStreaming(ctx, req)
	if err != nil {
		if rc.Pipeline != nil {
			rc.Pipeline.NotifyStreamingFailed(ctx, &feature.StreamingFailedContext{RunID: rc.RunID, Err: err})
		}
		return nil, model.NewLLMCallError(binding.ID, err)
	}

	msg, err := n.collect(ctx, rc, binding, frames)
	if err != nil {
		return nil, err
	}
	if err := rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.AppendPrompt(msg)
		return nil
	}); err != nil {
		return nil, err
	}
	return msg, nil
}

// collect folds the frame stream into one response message.
func (n *LLMStreamingNode) collect(
	ctx context.Context,
	rc *Context,
	binding model.Model,
	frames <-chan model.StreamFrame,
) (model.Message, error) {
	var (
		content string
		calls   []model.ToolCall
		args    = map[string][]byte{}
		names   = map[string]string{}
		order   []string
	)
	for frame := range frames {
		if rc.Pipeline != nil {
			rc.Pipeline.NotifyStreamingFrameReceived(ctx, &feature.StreamingFrameReceivedContext{
				RunID: rc.RunID,
				Frame: frame,
			})
		}
		switch frame.Type {
		case model.FrameContentDelta:
			content += frame.Content
		case model.FrameToolCallStart:
			names[frame.ToolCallID] = frame.ToolName
			order = append(order, frame.ToolCallID)
		case model.FrameToolCallDelta:
			args[frame.ToolCallID] = append(args[frame.ToolCallID], frame.ArgumentsDelta...)
		case model.FrameToolCallEnd:
		case model.FrameError:
			if rc.Pipeline != nil {
				rc.Pipeline.NotifyStreamingFailed(ctx, &feature.StreamingFailedContext{
					RunID: rc.RunID,
					Err:   frame.Err,
				})
			}
			return model.Message{}, model.NewLLMCallError(binding.ID, frame.Err)
		case model.FrameFinish:
		}
	}
	if rc.Pipeline != nil {
		rc.Pipeline.NotifyStreamingCompleted(ctx, &feature.StreamingCompletedContext{RunID: rc.RunID})
	}
	for _, id := range order {
		calls = append(calls, model.ToolCall{ID: id, Name: names[id], Arguments: args[id]})
	}
	if len(calls) > 0 {
		msg := model.NewToolCallMessage(calls...)
		msg.Content = content
		return msg, nil
	}
	return model.NewAssistantMessage(content), nil
}

// DecodeInput implements InputDecoder.
func (n *LLMStreamingNode) DecodeInput(raw json.RawMessage) (any, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode input of node %q: %w", n.name, err)
	}
	return value, nil
}

// InputTypeName implements InputDecoder.
func (n *LLMStreamingNode) InputTypeName() string { return "string" }

// LLMChoicesNode requests several alternative completions and yields
// the choice list without touching the prompt. A downstream select
// node publishes the chosen one.
type LLMChoicesNode struct {
	baseNode
	numberOfChoices int
}

// NewLLMChoicesNode creates a multi-choice request node. A non-positive
// numberOfChoices falls back to the run config.
func NewLLMChoicesNode(name string, numberOfChoices int) *LLMChoicesNode {
	return &LLMChoicesNode{baseNode: baseNode{name: name}, numberOfChoices: numberOfChoices}
}

// Execute implements Node.
func (n *LLMChoicesNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	if err := appendToPrompt(rc, input); err != nil {
		return nil, fmt.Errorf("node %q: %w", n.name, err)
	}

	count := n.numberOfChoices
	if count <= 0 {
		count = rc.Config.NumberOfChoices
	}
	binding := rc.Prompt.Model()
	req := model.Request{
		Messages:        rc.Prompt.Messages(),
		Model:           binding,
		Tools:           rc.toolDeclarations(),
		ToolChoice:      rc.Config.ToolChoice,
		NumberOfChoices: count,
	}

	choices, err := rc.Executor.ExecuteMultipleChoices(ctx, req)
	if err != nil {
		return nil, model.NewLLMCallError(binding.ID, err)
	}
	return choices, nil
}

// SelectChoiceNode applies a choice selection strategy to a choice
// list, publishes the winner to the prompt and yields its last message.
type SelectChoiceNode struct {
	baseNode
	strategy model.ChoiceSelectionStrategy
}

// NewSelectChoiceNode creates a select node. A nil strategy selects the
// first choice.
func NewSelectChoiceNode(name string, strategy model.ChoiceSelectionStrategy) *SelectChoiceNode {
	if strategy == nil {
		strategy = model.FirstChoiceStrategy()
	}
	return &SelectChoiceNode{baseNode: baseNode{name: name}, strategy: strategy}
}

// Execute implements Node.
func (n *SelectChoiceNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	choices, ok := input.([]model.Choice)
	if !ok {
		return nil, fmt.Errorf("node %q: expected input []model.Choice, got %T", n.name, input)
	}
	selected, err := n.strategy.Choose(ctx, choices)
	if err != nil {
		return nil, err
	}
	if err := rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.AppendResponse(selected)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return model.Message{}, nil
	}
	return selected[len(selected)-1], nil
}

// ModerationNode runs the provider moderation endpoint over the current
// prompt and yields the moderation result.
type ModerationNode struct {
	baseNode
}

// NewModerationNode creates a moderation node.
func NewModerationNode(name string) *ModerationNode {
	return &ModerationNode{baseNode: baseNode{name: name}}
}

// Execute implements Node.
func (n *ModerationNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	if err := appendToPrompt(rc, input); err != nil {
		return nil, fmt.Errorf("node %q: %w", n.name, err)
	}
	binding := rc.Prompt.Model()
	result, err := rc.Executor.Moderate(ctx, model.Request{
		Messages: rc.Prompt.Messages(),
		Model:    binding,
	})
	if err != nil {
		return nil, model.NewLLMCallError(binding.ID, err)
	}
	return result, nil
}
