//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines messages, model bindings and the executor
// interface used to talk to LLM providers.
package model

import (
	"time"
)

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleToolCall, RoleToolResult:
		return true
	default:
		return false
	}
}

// Usage represents token usage information reported by a provider.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the total number of tokens in the response.
	TotalTokens int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ResponseMeta carries provider metadata attached to a response message.
type ResponseMeta struct {
	// Timestamp is when the provider produced the message.
	Timestamp time.Time `json:"timestamp"`
	// Usage is the token usage of the response that produced this
	// message, if the provider reported one.
	Usage *Usage `json:"usage,omitempty"`
	// Provider is the provider that produced the message.
	Provider string `json:"provider,omitempty"`
	// Model is the model id that produced the message.
	Model string `json:"model,omitempty"`
}

// ToolCall describes a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier of the call.
	ID string `json:"id"`
	// Name is the name of the tool to invoke.
	Name string `json:"name"`
	// Arguments is the raw JSON-encoded argument payload.
	Arguments []byte `json:"arguments"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the message content.
	Content string `json:"content,omitempty"`
	// ToolID is the id of the tool call this message belongs to.
	// Set on tool_call and tool_result messages.
	ToolID string `json:"tool_id,omitempty"`
	// ToolName is the tool name for tool_call and tool_result messages.
	ToolName string `json:"tool_name,omitempty"`
	// ToolCalls is the set of calls requested by an assistant turn.
	// A message with a non-empty ToolCalls list has role tool_call.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Meta is the response metadata for provider-produced messages.
	Meta ResponseMeta `json:"meta,omitempty"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolCallMessage creates a new tool call message.
func NewToolCallMessage(calls ...ToolCall) Message {
	msg := Message{Role: RoleToolCall, ToolCalls: calls}
	if len(calls) > 0 {
		msg.ToolID = calls[0].ID
		msg.ToolName = calls[0].Name
	}
	return msg
}

// NewToolResultMessage creates a new tool result message.
func NewToolResultMessage(toolID, toolName, content string) Message {
	return Message{
		Role:     RoleToolResult,
		ToolID:   toolID,
		ToolName: toolName,
		Content:  content,
	}
}

// IsToolCall reports whether the message requests tool invocations.
func (m Message) IsToolCall() bool {
	return m.Role == RoleToolCall || len(m.ToolCalls) > 0
}

// CloneMessages returns a copy of the given message slice. Message
// values are copied; tool call argument buffers are shared because the
// engine never mutates them in place.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	cloned := make([]Message, len(messages))
	copy(cloned, messages)
	for i := range cloned {
		if len(messages[i].ToolCalls) > 0 {
			cloned[i].ToolCalls = make([]ToolCall, len(messages[i].ToolCalls))
			copy(cloned[i].ToolCalls, messages[i].ToolCalls)
		}
	}
	return cloned
}
