//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides the strategy graph model and the executor that
// interprets it: node invocation, guarded edge selection, parallel
// fan-out, checkpoint restoration and iteration bounds.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

// Reserved node names every subgraph carries.
const (
	// StartNodeName is the entry node of a subgraph.
	StartNodeName = "__start__"
	// FinishNodeName is the exit node of a subgraph.
	FinishNodeName = "__finish__"
)

// Node is a unit of work on the graph.
type Node interface {
	// Name returns the node name, unique within its subgraph.
	Name() string
	// Execute runs the node against the run context.
	Execute(ctx context.Context, rc *Context, input any) (any, error)
}

// InputDecoder is implemented by nodes whose input type is reified so
// that checkpoint restoration can decode a serialized last input.
type InputDecoder interface {
	// DecodeInput decodes a serialized node input.
	DecodeInput(raw json.RawMessage) (any, error)
	// InputTypeName names the declared input type.
	InputTypeName() string
}

// Container is implemented by nodes that own sub-nodes and therefore
// participate in execution-point enforcement.
type Container interface {
	Node
	// Body returns the owned subgraph.
	Body() *Subgraph
}

type baseNode struct {
	name string
}

// Name implements Node.
func (n *baseNode) Name() string { return n.name }

// TransformNode maps its input to an output, pure with respect to the
// run context unless its function chooses otherwise.
type TransformNode struct {
	baseNode
	fn        func(ctx context.Context, rc *Context, input any) (any, error)
	decode    func(raw json.RawMessage) (any, error)
	inputType string
}

// NewTransformNode creates a transform node with a reified input type.
func NewTransformNode[I any](name string, fn func(ctx context.Context, rc *Context, input I) (any, error)) *TransformNode {
	var zero I
	return &TransformNode{
		baseNode:  baseNode{name: name},
		inputType: fmt.Sprintf("%T", zero),
		fn: func(ctx context.Context, rc *Context, input any) (any, error) {
			typed, err := coerce[I](name, input)
			if err != nil {
				return nil, err
			}
			return fn(ctx, rc, typed)
		},
		decode: func(raw json.RawMessage) (any, error) {
			var value I
			if err := json.Unmarshal(raw, &value); err != nil {
				return nil, fmt.Errorf("decode input of node %q: %w", name, err)
			}
			return value, nil
		},
	}
}

// Execute implements Node.
func (n *TransformNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	return n.fn(ctx, rc, input)
}

// DecodeInput implements InputDecoder.
func (n *TransformNode) DecodeInput(raw json.RawMessage) (any, error) {
	return n.decode(raw)
}

// InputTypeName implements InputDecoder.
func (n *TransformNode) InputTypeName() string { return n.inputType }

// coerce converts an untyped edge value into the node's input type.
func coerce[I any](node string, input any) (I, error) {
	if typed, ok := input.(I); ok {
		return typed, nil
	}
	var zero I
	if input == nil {
		return zero, nil
	}
	return zero, fmt.Errorf("node %q: expected input %T, got %T", node, zero, input)
}

// passthroughNode is the implementation of the start and finish nodes.
type passthroughNode struct {
	baseNode
}

func newPassthroughNode(name string) *passthroughNode {
	return &passthroughNode{baseNode: baseNode{name: name}}
}

// Execute implements Node.
func (n *passthroughNode) Execute(_ context.Context, _ *Context, input any) (any, error) {
	return input, nil
}

// DecodeInput implements InputDecoder. Start and finish carry opaque
// values.
func (n *passthroughNode) DecodeInput(raw json.RawMessage) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode input of node %q: %w", n.name, err)
	}
	return value, nil
}

// InputTypeName implements InputDecoder.
func (n *passthroughNode) InputTypeName() string { return "any" }

// decodeNodeInput decodes a serialized input for the node, falling back
// to untyped JSON when the node's input type is not reified.
func decodeNodeInput(node Node, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if decoder, ok := node.(InputDecoder); ok {
		return decoder.DecodeInput(raw)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode input of node %q: %w", node.Name(), err)
	}
	return value, nil
}
