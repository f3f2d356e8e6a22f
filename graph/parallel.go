//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ParallelResult is the outcome of one parallel child: its node name,
// output value and the forked context it ran on.
type ParallelResult struct {
	// Name is the child node name.
	Name string
	// Value is the child output.
	Value any
	// Context is the forked context the child mutated.
	Context *Context
}

// Reducer folds the results of a parallel node into one value and picks
// the child context that continues as the active context. A nil context
// keeps the parent's.
type Reducer interface {
	// Reduce sees results in child declaration order regardless of
	// completion order.
	Reduce(ctx context.Context, results []ParallelResult) (any, *Context, error)
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc func(ctx context.Context, results []ParallelResult) (any, *Context, error)

// Reduce implements Reducer.
func (f ReducerFunc) Reduce(ctx context.Context, results []ParallelResult) (any, *Context, error) {
	return f(ctx, results)
}

// Fold reduces the children left to right in declaration order. The
// parent context stays active.
func Fold(init any, fn func(acc any, result ParallelResult) (any, error)) Reducer {
	return ReducerFunc(func(_ context.Context, results []ParallelResult) (any, *Context, error) {
		acc := init
		for _, result := range results {
			next, err := fn(acc, result)
			if err != nil {
				return nil, nil, err
			}
			acc = next
		}
		return acc, nil, nil
	})
}

// ErrNoWinner is returned when a selection reducer finds no candidate.
var ErrNoWinner = errors.New("graph: parallel selection produced no winner")

// SelectBy picks the first child (in declaration order) the predicate
// accepts. The winner's context becomes active.
func SelectBy(predicate func(result ParallelResult) bool) Reducer {
	return ReducerFunc(func(_ context.Context, results []ParallelResult) (any, *Context, error) {
		for _, result := range results {
			if predicate(result) {
				return result.Value, result.Context, nil
			}
		}
		return nil, nil, ErrNoWinner
	})
}

// SelectByMax picks the child with the highest projection value. The
// winner's context becomes active.
func SelectByMax(projection func(result ParallelResult) float64) Reducer {
	return ReducerFunc(func(_ context.Context, results []ParallelResult) (any, *Context, error) {
		if len(results) == 0 {
			return nil, nil, ErrNoWinner
		}
		winner := results[0]
		best := projection(winner)
		for _, result := range results[1:] {
			if score := projection(result); score > best {
				winner, best = result, score
			}
		}
		return winner.Value, winner.Context, nil
	})
}

// ParallelNode fans one input out to its children, awaits all of them
// and reduces the results. Children run on deep-copied contexts; only
// the reducer's winner (if any) is promoted back into the parent.
type ParallelNode struct {
	baseNode
	children []Node
	reducer  Reducer
}

// NewParallelNode creates a parallel node over the children.
func NewParallelNode(name string, reducer Reducer, children ...Node) *ParallelNode {
	return &ParallelNode{
		baseNode: baseNode{name: name},
		children: children,
		reducer:  reducer,
	}
}

// Execute implements Node.
func (n *ParallelNode) Execute(ctx context.Context, rc *Context, input any) (any, error) {
	if len(n.children) == 0 {
		return nil, fmt.Errorf("node %q: no children", n.name)
	}

	results := make([]ParallelResult, len(n.children))
	group, gctx := errgroup.WithContext(ctx)
	for i, child := range n.children {
		i, child := i, child
		fork := rc.Fork()
		results[i] = ParallelResult{Name: child.Name(), Context: fork}
		group.Go(func() error {
			value, err := child.Execute(gctx, fork, input)
			if err != nil {
				return fmt.Errorf("parallel child %q: %w", child.Name(), err)
			}
			results[i].Value = value
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	value, winner, err := n.reducer.Reduce(ctx, results)
	if err != nil {
		return nil, err
	}
	rc.Adopt(winner)
	return value, nil
}
