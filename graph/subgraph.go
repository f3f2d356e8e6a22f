//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"fmt"
)

// Guard inspects the last node output to decide whether an edge fires.
// Guards are non-suspending.
type Guard func(rc *Context, output any) bool

// Transform maps a node output to the next node's input.
type Transform func(rc *Context, output any) (any, error)

// Edge is a guarded, transforming transition between two nodes of the
// same subgraph.
type Edge struct {
	// From is the source node name.
	From string
	// To is the target node name.
	To string

	guard     Guard
	transform Transform
}

// matches reports whether the edge accepts the output.
func (e *Edge) matches(rc *Context, output any) bool {
	if e.guard == nil {
		return true
	}
	return e.guard(rc, output)
}

// apply maps the output to the next input.
func (e *Edge) apply(rc *Context, output any) (any, error) {
	if e.transform == nil {
		return output, nil
	}
	return e.transform(rc, output)
}

// EdgeOption configures an edge.
type EdgeOption func(*Edge)

// WithGuard sets the edge guard.
func WithGuard(guard Guard) EdgeOption {
	return func(e *Edge) {
		e.guard = guard
	}
}

// WithTransform sets the edge transform.
func WithTransform(transform Transform) EdgeOption {
	return func(e *Edge) {
		e.transform = transform
	}
}

// Subgraph is a self-contained graph with its own start and finish,
// a node map keyed by local name and declaration-ordered edges.
type Subgraph struct {
	name          string
	path          string
	nodes         map[string]Node
	order         []string
	edges         map[string][]Edge
	toolSelection ToolSelection
}

// Name returns the subgraph name.
func (s *Subgraph) Name() string { return s.name }

// Path returns the qualified path, assigned when the strategy is built.
func (s *Subgraph) Path() string { return s.path }

// Node returns the named node.
func (s *Subgraph) Node(name string) (Node, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// SubgraphNode embeds a subgraph as a node of its parent. With a retry
// condition it re-runs the body until the condition accepts the output
// or the attempts are exhausted.
type SubgraphNode struct {
	baseNode
	body *Subgraph

	maxRetries     int
	retryCondition func(rc *Context, output any) bool
}

// SubgraphOption configures a subgraph node.
type SubgraphOption func(*SubgraphNode)

// WithRetry re-runs the body up to maxRetries times until condition
// accepts the output. maxRetries must be at least 1; the strategy
// builder rejects anything lower.
func WithRetry(maxRetries int, condition func(rc *Context, output any) bool) SubgraphOption {
	return func(n *SubgraphNode) {
		n.maxRetries = maxRetries
		n.retryCondition = condition
	}
}

// NewSubgraphNode wraps a built subgraph as a node named after it.
func NewSubgraphNode(body *Subgraph, opts ...SubgraphOption) *SubgraphNode {
	n := &SubgraphNode{baseNode: baseNode{name: body.name}, body: body}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Body implements Container.
func (n *SubgraphNode) Body() *Subgraph { return n.body }

// Execute implements Node.
func (n *SubgraphNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	exec := rc.graphExec
	if exec == nil {
		return nil, fmt.Errorf("node %q: subgraph executed outside an executor", n.name)
	}
	if n.retryCondition == nil {
		return exec.runSubgraph(ctx, rc, n.body, input)
	}

	var (
		output  any
		lastErr error
	)
	for attempt := 0; attempt < n.maxRetries; attempt++ {
		output, lastErr = exec.runSubgraph(ctx, rc, n.body, input)
		if lastErr != nil {
			return nil, lastErr
		}
		if n.retryCondition(rc, output) {
			return output, nil
		}
	}
	return output, nil
}
