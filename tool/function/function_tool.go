//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package function provides function-backed tool implementations.
package function

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/koog-community/koog-go/log"
	"github.com/koog-community/koog-go/tool"
)

// FunctionTool wraps a plain Go function as a tool. Arguments are
// decoded from JSON into I; the result O is encoded by the executor.
type FunctionTool[I, O any] struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
	fn           func(context.Context, I) (O, error)
}

// Option configures a FunctionTool.
type Option func(*options)

type options struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
}

// WithName sets the tool name. Names should match ^[a-zA-Z0-9_-]+$ for
// provider compatibility.
func WithName(name string) Option {
	return func(opts *options) {
		opts.name = name
	}
}

// WithDescription sets the tool description shown to the model.
func WithDescription(description string) Option {
	return func(opts *options) {
		opts.description = description
	}
}

// WithInputSchema sets a custom input schema, skipping automatic schema
// generation.
func WithInputSchema(schema *tool.Schema) Option {
	return func(opts *options) {
		opts.inputSchema = schema
	}
}

// WithOutputSchema sets a custom output schema, skipping automatic
// schema generation.
func WithOutputSchema(schema *tool.Schema) Option {
	return func(opts *options) {
		opts.outputSchema = schema
	}
}

// New creates a FunctionTool for the given function.
func New[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		log.Warnf("function tool: name is empty")
	}
	if o.description == "" {
		log.Warnf("function tool: description is empty")
	}

	var (
		emptyI I
		emptyO O
	)
	if o.inputSchema == nil {
		o.inputSchema = generateSchema(reflect.TypeOf(emptyI))
	}
	if o.outputSchema == nil {
		o.outputSchema = generateSchema(reflect.TypeOf(emptyO))
	}

	return &FunctionTool[I, O]{
		name:         o.name,
		description:  o.description,
		inputSchema:  o.inputSchema,
		outputSchema: o.outputSchema,
		fn:           fn,
	}
}

// Call executes the function with the provided JSON arguments.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var input I
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &input); err != nil {
			return nil, err
		}
	}
	return ft.fn(ctx, input)
}

// Declaration returns the tool's declaration information.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:         ft.name,
		Description:  ft.description,
		InputSchema:  ft.inputSchema,
		OutputSchema: ft.outputSchema,
	}
}
