//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package tool provides tool declarations, the tool registry and the
// dispatch executor that runs tool calls requested by a model.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is an external capability callable by the model through the
// engine.
type Tool interface {
	// Declaration returns the tool's metadata and schemas.
	Declaration() *Declaration

	// Call executes the tool with the provided JSON arguments. The
	// arguments have already been validated against the input schema.
	// Call may suspend and must honor ctx cancellation.
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// Declaration describes a tool to the model and to the engine.
type Declaration struct {
	// Name is the unique tool name.
	Name string `json:"name"`
	// Description is the human description shown to the model.
	Description string `json:"description"`
	// InputSchema describes the argument payload.
	InputSchema *Schema `json:"input_schema,omitempty"`
	// OutputSchema describes the result payload.
	OutputSchema *Schema `json:"output_schema,omitempty"`
}

// Call is a single tool invocation request, decoded from a tool call
// message.
type Call struct {
	// ID is the provider-assigned identifier of the call.
	ID string `json:"id"`
	// Name is the tool to invoke.
	Name string `json:"name"`
	// Arguments is the raw JSON argument payload.
	Arguments []byte `json:"arguments"`
	// Required marks a call whose failure must fail the run instead of
	// being surfaced back to the model as text.
	Required bool `json:"required,omitempty"`
}

// Result is the outcome of one tool invocation. Content is always
// populated: on recovered failures it carries the explanatory text that
// is sent back to the model.
type Result struct {
	// ID is the id of the originating call.
	ID string `json:"id"`
	// Name is the tool name.
	Name string `json:"name"`
	// Content is the encoded result text.
	Content string `json:"content"`
	// Err is the failure that produced an error result, if any.
	Err error `json:"-"`
}

// EncodeResult encodes a tool return value to its string form. Strings
// pass through unchanged; everything else is JSON-encoded.
func EncodeResult(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("encode tool result: %w", err)
		}
		return string(data), nil
	}
}

// ValidationError reports that tool call arguments failed to decode or
// validate against the declared input schema.
type ValidationError struct {
	// ToolName is the tool whose arguments were invalid.
	ToolName string
	// Err is the underlying decode or validation failure.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %q argument validation failed: %v", e.ToolName, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Err }

// CallFailedError reports that a tool invocation returned an error or
// panicked.
type CallFailedError struct {
	// ToolName is the tool that failed.
	ToolName string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *CallFailedError) Error() string {
	return fmt.Sprintf("tool %q call failed: %v", e.ToolName, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallFailedError) Unwrap() error { return e.Err }

// NotFoundError reports a call referencing an unregistered tool.
type NotFoundError struct {
	// ToolName is the unknown tool name.
	ToolName string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.ToolName)
}
