//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedNode(name string) *TransformNode {
	return NewTransformNode[any](name, func(_ context.Context, _ *Context, input any) (any, error) {
		return input, nil
	})
}

func TestBuilderRejectsDuplicateNodes(t *testing.T) {
	b := NewBuilder("dup")
	b.AddNode(namedNode("work"))
	b.AddNode(namedNode("work"))
	b.AddEdge(b.Start(), "work")
	b.AddEdge("work", b.Finish())

	_, err := b.Build()
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, "duplicate node id")
}

func TestBuilderRejectsDanglingEdges(t *testing.T) {
	b := NewBuilder("dangling")
	b.AddNode(namedNode("work"))
	b.AddEdge(b.Start(), "work")
	b.AddEdge("work", "nowhere")

	_, err := b.Build()
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, `edge to unknown node "nowhere"`)
}

func TestBuilderRequiresOutgoingEdges(t *testing.T) {
	b := NewBuilder("stranded")
	b.AddNode(namedNode("island"))
	b.AddEdge(b.Start(), b.Finish())

	_, err := b.Build()
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, `node "island" has no outgoing edge`)
}

func TestBuilderAggregatesDefects(t *testing.T) {
	b := NewBuilder("broken")
	b.AddNode(namedNode("work"))
	b.AddNode(namedNode("work"))
	b.AddEdge(b.Start(), "missing")

	_, err := b.Build()
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, "duplicate node id")
	assert.Contains(t, buildErr.Reason, "edge to unknown node")
	assert.Contains(t, buildErr.Reason, "has no outgoing edge")
}

func TestBuilderRejectsZeroAttemptRetry(t *testing.T) {
	inner := NewBuilder("inner")
	inner.AddEdge(inner.Start(), inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("outer")
	b.AddNode(NewSubgraphNode(body, WithRetry(0, func(*Context, any) bool { return true })))
	b.AddEdge(b.Start(), "inner")
	b.AddEdge("inner", b.Finish())

	_, err = b.Build()
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, "at least one attempt")
}

func TestStrategyRejectsDuplicateLeafNamesAcrossSubgraphs(t *testing.T) {
	inner := NewBuilder("inner")
	inner.AddNode(namedNode("shared"))
	inner.AddEdge(inner.Start(), "shared")
	inner.AddEdge("shared", inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("outer")
	b.AddNode(namedNode("shared"))
	b.AddNode(NewSubgraphNode(body))
	b.AddEdge(b.Start(), "shared")
	b.AddEdge("shared", "inner")
	b.AddEdge("inner", b.Finish())

	_, err = b.Build()
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, "duplicate node name shared")
}

func TestStartAndFinishMayRepeatAcrossSubgraphs(t *testing.T) {
	inner := NewBuilder("inner")
	inner.AddEdge(inner.Start(), inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("outer")
	b.AddNode(NewSubgraphNode(body))
	b.AddEdge(b.Start(), "inner")
	b.AddEdge("inner", b.Finish())

	_, err = b.Build()
	assert.NoError(t, err)
}

func TestResolveAndWalk(t *testing.T) {
	inner := NewBuilder("inner")
	inner.AddNode(namedNode("leaf"))
	inner.AddEdge(inner.Start(), "leaf")
	inner.AddEdge("leaf", inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("root")
	b.AddNode(NewSubgraphNode(body))
	b.AddEdge(b.Start(), "inner")
	b.AddEdge("inner", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	// A bare name resolves by last segment.
	path, err := strategy.Resolve("leaf")
	require.NoError(t, err)
	assert.Equal(t, "root:inner:leaf", path)

	// A full qualified path resolves to itself.
	same, err := strategy.Resolve("root:inner:leaf")
	require.NoError(t, err)
	assert.Equal(t, path, same)

	chain, err := strategy.Walk(path)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "inner", chain[0].Name())
	assert.Equal(t, "leaf", chain[1].Name())

	_, err = strategy.Resolve("ghost")
	var notFound *NodeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.NodeID)
}

func TestLeafName(t *testing.T) {
	assert.Equal(t, "leaf", LeafName("root:inner:leaf"))
	assert.Equal(t, "bare", LeafName("bare"))
}
