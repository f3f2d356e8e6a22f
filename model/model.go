//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package model

// Capability describes an optional provider feature a model supports.
type Capability string

// Capability constants.
const (
	// CapabilityToolChoice means the model honors a forced tool choice.
	CapabilityToolChoice Capability = "tool_choice"
	// CapabilityMultipleChoices means the model can return several
	// alternative completions in one request.
	CapabilityMultipleChoices Capability = "multiple_choices"
	// CapabilityStreaming means the model supports streaming responses.
	CapabilityStreaming Capability = "streaming"
	// CapabilityModeration means the model supports moderation requests.
	CapabilityModeration Capability = "moderation"
)

// Model is the binding to a concrete provider model. It is a value
// type; rebinding the model for a session copies the struct.
type Model struct {
	// Provider is the provider name, e.g. "openai".
	Provider string `json:"provider"`
	// ID is the provider-specific model id.
	ID string `json:"id"`
	// Capabilities lists the optional features the model supports.
	Capabilities []Capability `json:"capabilities,omitempty"`
	// Temperature is the sampling temperature for requests.
	Temperature float64 `json:"temperature,omitempty"`
}

// Supports reports whether the model declares the given capability.
func (m Model) Supports(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ToolChoiceMode restricts how the model may use tools in a request.
type ToolChoiceMode string

// Tool choice modes.
const (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto ToolChoiceMode = "auto"
	// ToolChoiceRequired forces the model to call at least one tool.
	ToolChoiceRequired ToolChoiceMode = "required"
	// ToolChoiceNone forbids tool calls for the request.
	ToolChoiceNone ToolChoiceMode = "none"
	// ToolChoiceNamed forces the model to call one specific tool.
	ToolChoiceNamed ToolChoiceMode = "named"
)

// ToolChoice is the LLM-level constraint that forces (or forbids) tool
// invocation for a single request.
type ToolChoice struct {
	// Mode selects the constraint kind.
	Mode ToolChoiceMode `json:"mode"`
	// Name is the tool to force when Mode is ToolChoiceNamed.
	Name string `json:"name,omitempty"`
}

// ToolChoiceOf is a convenience constructor for a named tool choice.
func ToolChoiceOf(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceNamed, Name: name}
}
