//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
)

// Builder assembles a subgraph. Defects are collected and reported as a
// single BuildError when the graph is built.
type Builder struct {
	name          string
	nodes         map[string]Node
	order         []string
	edges         []Edge
	toolSelection ToolSelection
	defects       []string
}

// NewBuilder creates a subgraph builder. The start and finish nodes are
// present from the beginning.
func NewBuilder(name string) *Builder {
	b := &Builder{
		name:  name,
		nodes: make(map[string]Node),
	}
	b.addNode(newPassthroughNode(StartNodeName))
	b.addNode(newPassthroughNode(FinishNodeName))
	return b
}

// Start returns the name of the start node.
func (b *Builder) Start() string { return StartNodeName }

// Finish returns the name of the finish node.
func (b *Builder) Finish() string { return FinishNodeName }

// AddNode adds a node. Duplicate names are a build defect.
func (b *Builder) AddNode(node Node) *Builder {
	b.addNode(node)
	return b
}

func (b *Builder) addNode(node Node) {
	name := node.Name()
	if name == "" {
		b.defects = append(b.defects, "node with empty name")
		return
	}
	if _, exists := b.nodes[name]; exists {
		b.defects = append(b.defects, fmt.Sprintf("duplicate node id %q", name))
		return
	}
	if sub, ok := node.(*SubgraphNode); ok {
		if sub.retryCondition != nil && sub.maxRetries < 1 {
			b.defects = append(b.defects,
				fmt.Sprintf("retry subgraph %q requires at least one attempt", name))
		}
	}
	b.nodes[name] = node
	b.order = append(b.order, name)
}

// AddEdge adds an edge between two nodes of this subgraph. Edges are
// evaluated in declaration order.
func (b *Builder) AddEdge(from, to string, opts ...EdgeOption) *Builder {
	edge := Edge{From: from, To: to}
	for _, opt := range opts {
		opt(&edge)
	}
	b.edges = append(b.edges, edge)
	return b
}

// WithToolSelection scopes the tools visible while this subgraph runs.
func (b *Builder) WithToolSelection(sel ToolSelection) *Builder {
	b.toolSelection = sel
	return b
}

// BuildSubgraph validates the builder and returns the subgraph.
func (b *Builder) BuildSubgraph() (*Subgraph, error) {
	defects := append([]string(nil), b.defects...)
	for _, edge := range b.edges {
		if _, ok := b.nodes[edge.From]; !ok {
			defects = append(defects, fmt.Sprintf("edge from unknown node %q", edge.From))
		}
		if _, ok := b.nodes[edge.To]; !ok {
			defects = append(defects, fmt.Sprintf("edge to unknown node %q", edge.To))
		}
	}
	outgoing := make(map[string][]Edge, len(b.nodes))
	for _, edge := range b.edges {
		outgoing[edge.From] = append(outgoing[edge.From], edge)
	}
	for _, name := range b.order {
		if name == FinishNodeName {
			continue
		}
		if len(outgoing[name]) == 0 {
			defects = append(defects, fmt.Sprintf("node %q has no outgoing edge", name))
		}
	}
	if len(defects) > 0 {
		return nil, &BuildError{Graph: b.name, Reason: joinDefects(defects)}
	}

	return &Subgraph{
		name:          b.name,
		nodes:         b.nodes,
		order:         b.order,
		edges:         outgoing,
		toolSelection: b.toolSelection,
	}, nil
}

// Build validates the builder as a top-level strategy and indexes the
// qualified paths.
func (b *Builder) Build() (*Strategy, error) {
	root, err := b.BuildSubgraph()
	if err != nil {
		return nil, err
	}
	strategy := &Strategy{root: root}
	if err := strategy.index(); err != nil {
		return nil, err
	}
	return strategy, nil
}

func joinDefects(defects []string) string {
	out := defects[0]
	for _, defect := range defects[1:] {
		out += "; " + defect
	}
	return out
}
