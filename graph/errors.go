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

// BuildError reports an invalid graph at construction time.
type BuildError struct {
	// Graph is the name of the subgraph being built.
	Graph string
	// Reason describes the defect.
	Reason string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build graph %q: %s", e.Graph, e.Reason)
}

// NoRouteError reports that no outgoing edge matched at a branch point.
type NoRouteError struct {
	// Node is the qualified path of the node whose edges all rejected
	// the output.
	Node string
}

// Error implements the error interface.
func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no outgoing edge matched at node %q", e.Node)
}

// IterationLimitError reports that the run exceeded maxAgentIterations.
type IterationLimitError struct {
	// Limit is the configured iteration cap.
	Limit int
}

// Error implements the error interface.
func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit exceeded: more than %d node invocations", e.Limit)
}

// NodeNotFoundError reports a restoration target that resolves to no
// node in the strategy.
type NodeNotFoundError struct {
	// NodeID is the unresolved node id.
	NodeID string
}

// Error implements the error interface.
func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found in strategy", e.NodeID)
}

// NotAContainerError reports that restoration walked through a node
// that owns no sub-nodes.
type NotAContainerError struct {
	// Node is the offending node name.
	Node string
}

// Error implements the error interface.
func (e *NotAContainerError) Error() string {
	return fmt.Sprintf("node %q is not a container and cannot hold an execution point", e.Node)
}

// ToolChoiceUnsupportedError reports that the model could not be forced
// to call tools within the configured number of attempts.
type ToolChoiceUnsupportedError struct {
	// Model is the model id that ignored the tool-choice requirement.
	Model string
	// Attempts is the number of attempts made.
	Attempts int
}

// Error implements the error interface.
func (e *ToolChoiceUnsupportedError) Error() string {
	return fmt.Sprintf("model %q did not call tools after %d attempts", e.Model, e.Attempts)
}
