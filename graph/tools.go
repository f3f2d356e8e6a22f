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
	"fmt"

	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/prompt"
	"github.com/koog-community/koog-go/tool"
)

// ToolSelection scopes the tools visible to LLM requests while a
// subgraph runs.
type ToolSelection interface {
	// Filter returns the declarations visible under the selection.
	Filter(decls []*tool.Declaration) []*tool.Declaration
}

type allTools struct{}

// Filter implements ToolSelection.
func (allTools) Filter(decls []*tool.Declaration) []*tool.Declaration { return decls }

// AllTools exposes every registered tool. It is the default selection.
func AllTools() ToolSelection { return allTools{} }

type noTools struct{}

// Filter implements ToolSelection.
func (noTools) Filter([]*tool.Declaration) []*tool.Declaration { return nil }

// NoTools hides every tool.
func NoTools() ToolSelection { return noTools{} }

type namedTools struct {
	names map[string]bool
}

// Filter implements ToolSelection.
func (s namedTools) Filter(decls []*tool.Declaration) []*tool.Declaration {
	var kept []*tool.Declaration
	for _, decl := range decls {
		if s.names[decl.Name] {
			kept = append(kept, decl)
		}
	}
	return kept
}

// ToolsNamed exposes only the named tools.
func ToolsNamed(names ...string) ToolSelection {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return namedTools{names: set}
}

// ToolExecuteNode consumes a tool-call message and executes its calls
// through the run environment. The output is the result list in call
// declaration order.
type ToolExecuteNode struct {
	baseNode
}

// NewToolExecuteNode creates a tool execution node.
func NewToolExecuteNode(name string) *ToolExecuteNode {
	return &ToolExecuteNode{baseNode: baseNode{name: name}}
}

// Execute implements Node.
func (n *ToolExecuteNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	msg, ok := input.(model.Message)
	if !ok {
		return nil, fmt.Errorf("node %q: expected input model.Message, got %T", n.name, input)
	}
	if !msg.IsToolCall() {
		return nil, fmt.Errorf("node %q: message carries no tool calls", n.name)
	}

	calls := make([]tool.Call, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, tool.Call{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	results, err := rc.Environment.ExecuteTools(ctx, calls)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DecodeInput implements InputDecoder.
func (n *ToolExecuteNode) DecodeInput(raw json.RawMessage) (any, error) {
	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode input of node %q: %w", n.name, err)
	}
	return msg, nil
}

// InputTypeName implements InputDecoder.
func (n *ToolExecuteNode) InputTypeName() string { return "model.Message" }

// ToolResultSendNode appends tool results to the prompt and issues the
// follow-up LLM request. With a positive reasoning interval, every Nth
// cycle first asks the model for a tool-free reasoning turn.
type ToolResultSendNode struct {
	baseNode
	spec llmRequestSpec
}

// NewToolResultSendNode creates a tool-result send node. Tool calls are
// allowed in the follow-up request by default.
func NewToolResultSendNode(name string, opts ...LLMOption) *ToolResultSendNode {
	spec := llmRequestSpec{allowToolCalls: true}
	for _, opt := range opts {
		opt(&spec)
	}
	return &ToolResultSendNode{baseNode: baseNode{name: name}, spec: spec}
}

// Execute implements Node.
func (n *ToolResultSendNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	var results []tool.Result
	switch v := input.(type) {
	case tool.Result:
		results = []tool.Result{v}
	case []tool.Result:
		results = v
	default:
		return nil, fmt.Errorf("node %q: expected tool results, got %T", n.name, input)
	}

	messages := make([]model.Message, 0, len(results))
	for _, result := range results {
		messages = append(messages, model.NewToolResultMessage(result.ID, result.Name, result.Content))
	}
	if err := rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.AppendPrompt(messages...)
		return nil
	}); err != nil {
		return nil, err
	}

	if interval := rc.Config.ReasoningInterval; interval > 0 {
		if rc.nextToolCycle()%interval == 0 {
			if _, err := executeLLMRequest(ctx, rc, llmRequestSpec{}); err != nil {
				return nil, err
			}
		}
	}

	msg, err := executeLLMRequest(ctx, rc, n.spec)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeInput implements InputDecoder.
func (n *ToolResultSendNode) DecodeInput(raw json.RawMessage) (any, error) {
	var results []tool.Result
	if err := json.Unmarshal(raw, &results); err == nil {
		return results, nil
	}
	var single tool.Result
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode input of node %q: %w", n.name, err)
	}
	return single, nil
}

// InputTypeName implements InputDecoder.
func (n *ToolResultSendNode) InputTypeName() string { return "[]tool.Result" }
