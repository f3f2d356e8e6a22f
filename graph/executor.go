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

	"github.com/koog-community/koog-go/checkpoint"
	"github.com/koog-community/koog-go/log"
	"github.com/koog-community/koog-go/prompt"
)

// Executor interprets a strategy graph over a run context.
type Executor struct {
	strategy *Strategy
}

// NewExecutor creates an executor for the strategy.
func NewExecutor(strategy *Strategy) *Executor {
	return &Executor{strategy: strategy}
}

// Strategy returns the strategy this executor interprets.
func (e *Executor) Strategy() *Strategy { return e.strategy }

// Execute runs the strategy against the context. A pending rollback
// request on the context is consumed and restored before the first
// node runs.
func (e *Executor) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	rc.mu.Lock()
	rc.graphExec = e
	rc.mu.Unlock()

	if err := e.restore(ctx, rc); err != nil {
		return nil, err
	}
	return e.runSubgraph(ctx, rc, e.strategy.root, input)
}

// runSubgraph drives one subgraph from start (or an enforced execution
// point) to finish.
func (e *Executor) runSubgraph(ctx context.Context, rc *Context, sg *Subgraph, input any) (any, error) {
	prevSelection := rc.setToolSelection(sg.toolSelection)
	defer rc.restoreToolSelection(prevSelection)

	current := sg.nodes[StartNodeName]
	value := input
	if point, ok := rc.takeExecutionPoint(sg.path); ok {
		node, exists := sg.nodes[point.child]
		if !exists {
			return nil, &NodeNotFoundError{NodeID: point.child}
		}
		current = node
		value = point.input
	}

	limit := rc.Config.MaxAgentIterations
	if limit <= 0 {
		limit = DefaultMaxAgentIterations
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Start and finish markers only pass values through; they never
		// draw on the iteration budget.
		if name := current.Name(); name != StartNodeName && name != FinishNodeName {
			if int(rc.iterations.Add(1)) > limit {
				return nil, &IterationLimitError{Limit: limit}
			}
		}

		if err := e.persistOnEntry(ctx, rc, current, value); err != nil {
			return nil, err
		}

		output, err := current.Execute(ctx, rc, value)
		if err != nil {
			return nil, err
		}
		if current.Name() == FinishNodeName {
			return output, nil
		}

		edge, ok := selectEdge(rc, sg.edges[current.Name()], output)
		if !ok {
			return nil, &NoRouteError{Node: sg.path + PathSeparator + current.Name()}
		}
		value, err = edge.apply(rc, output)
		if err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", edge.From, edge.To, err)
		}
		current = sg.nodes[edge.To]
	}
}

// selectEdge picks the first edge in declaration order whose guard
// accepts the output.
func selectEdge(rc *Context, edges []Edge, output any) (Edge, bool) {
	for _, edge := range edges {
		if edge.matches(rc, output) {
			return edge, true
		}
	}
	return Edge{}, false
}

// persistOnEntry checkpoints a node entry with its pre-execution input
// when automatic persistence is enabled. Start and finish nodes carry
// no work worth snapshotting.
func (e *Executor) persistOnEntry(ctx context.Context, rc *Context, node Node, input any) error {
	if !rc.Config.EnableAutomaticPersistence || rc.Checkpoints == nil {
		return nil
	}
	name := node.Name()
	if name == StartNodeName || name == FinishNodeName {
		return nil
	}
	inputType := fmt.Sprintf("%T", input)
	if decoder, ok := node.(InputDecoder); ok {
		inputType = decoder.InputTypeName()
	}
	if _, err := rc.Checkpoints.CreateCheckpoint(ctx, name, input, inputType, rc.Prompt.Messages()); err != nil {
		return fmt.Errorf("automatic persistence at node %q: %w", name, err)
	}
	return nil
}

// restore consumes a pending rollback request and re-establishes the
// recorded execution state.
func (e *Executor) restore(ctx context.Context, rc *Context) error {
	data := rc.TakePendingRollback()
	if data == nil {
		return nil
	}
	log.Debugf("restoring run %s at node %q (%s)", rc.RunID, data.NodeID, data.Strategy)

	replaceMessages := func() error {
		return rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
			s.WithMessages(data.MessageHistory)
			return nil
		})
	}

	if data.Strategy == checkpoint.RollbackMessageHistoryOnly {
		return replaceMessages()
	}

	for _, action := range data.RollbackActions {
		if err := action(ctx); err != nil {
			return fmt.Errorf("rollback action: %w", err)
		}
	}

	path, err := e.strategy.Resolve(data.NodeID)
	if err != nil {
		return err
	}
	chain, err := e.strategy.Walk(path)
	if err != nil {
		return err
	}
	leaf := chain[len(chain)-1]
	input, err := decodeNodeInput(leaf, data.LastInput)
	if err != nil {
		return err
	}

	containerPath := e.strategy.root.path
	for i, node := range chain {
		rc.EnforceExecutionPoint(containerPath, node.Name(), input)
		if i == len(chain)-1 {
			break
		}
		container, ok := node.(Container)
		if !ok {
			return &NotAContainerError{Node: node.Name()}
		}
		containerPath = container.Body().path
	}

	return replaceMessages()
}
