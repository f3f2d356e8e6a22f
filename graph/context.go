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
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/koog-community/koog-go/checkpoint"
	"github.com/koog-community/koog-go/feature"
	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/prompt"
	"github.com/koog-community/koog-go/storage"
	"github.com/koog-community/koog-go/tool"
)

// Configuration defaults.
const (
	// DefaultMaxAgentIterations caps working-node invocations per run.
	DefaultMaxAgentIterations = 50
	// DefaultMaxAttemptsWithoutToolChoice caps synthetic-message retries
	// on models without tool-choice support.
	DefaultMaxAttemptsWithoutToolChoice = 3
)

// Config carries the run-level execution knobs.
type Config struct {
	// MaxAgentIterations caps total working-node invocations across the
	// run, parallel branches included. Start and finish markers are
	// free.
	MaxAgentIterations int
	// Temperature is the sampling temperature applied to the model
	// binding.
	Temperature float64
	// ToolChoice is the default tool-choice constraint for LLM requests.
	ToolChoice model.ToolChoice
	// RunMode selects how the calls of one model response are dispatched.
	RunMode tool.RunMode
	// ReasoningInterval inserts a reasoning turn every N tool cycles in
	// ReAct-style subgraphs. Zero disables it.
	ReasoningInterval int
	// MaxAttemptsWithoutToolChoice bounds the synthetic-message retry
	// loop for models without tool-choice support.
	MaxAttemptsWithoutToolChoice int
	// EnableAutomaticPersistence checkpoints every non-trivial node on
	// entry with its pre-execution input.
	EnableAutomaticPersistence bool
	// NumberOfChoices asks LLM requests for that many alternative
	// completions, resolved through a choice selection strategy.
	NumberOfChoices int
}

// DefaultConfig returns the default execution configuration.
func DefaultConfig() Config {
	return Config{
		MaxAgentIterations:           DefaultMaxAgentIterations,
		ToolChoice:                   model.ToolChoice{Mode: model.ToolChoiceAuto},
		RunMode:                      tool.RunModeSingle,
		MaxAttemptsWithoutToolChoice: DefaultMaxAttemptsWithoutToolChoice,
	}
}

// executionPoint directs a container to run a specific child next.
type executionPoint struct {
	child string
	input any
}

// Context is the per-run execution context the executor drives nodes
// with. Prompt, storage and state are owned by the run; the executor,
// pipeline and checkpoint manager are shared with the agent.
type Context struct {
	// RunID identifies the run.
	RunID string
	// AgentID identifies the agent.
	AgentID string
	// Prompt is the run's message history and model binding.
	Prompt *prompt.Prompt
	// Storage is the run's typed key/value store.
	Storage *storage.Store
	// State is the run's state manager.
	State *storage.StateManager
	// Executor performs LLM requests.
	Executor model.PromptExecutor
	// Tools is the registry of tools visible to the run.
	Tools *tool.Registry
	// Pipeline dispatches lifecycle events.
	Pipeline *feature.Pipeline
	// Checkpoints versions snapshots for the agent. Nil disables
	// persistence.
	Checkpoints *checkpoint.Manager
	// Environment executes tools and receives problem reports.
	Environment feature.Environment
	// Config carries the execution knobs.
	Config Config

	// iterations counts working-node invocations (start/finish markers
	// excluded); shared across forks so the cap covers parallel
	// branches.
	iterations *atomic.Int64

	mu            sync.Mutex
	pending       *checkpoint.AgentContextData
	points        map[string]executionPoint
	toolSelection ToolSelection
	graphExec     *Executor
	toolCycles    int
}

// nextToolCycle counts completed tool cycles for ReAct-style reasoning
// intervals.
func (c *Context) nextToolCycle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolCycles++
	return c.toolCycles
}

// NewContext creates an execution context. Callers fill the exported
// fields; the zero Config is replaced with DefaultConfig.
func NewContext() *Context {
	return &Context{
		Config:     DefaultConfig(),
		iterations: &atomic.Int64{},
		points:     make(map[string]executionPoint),
	}
}

// Iterations returns the number of working-node invocations so far.
// Start and finish markers are not counted.
func (c *Context) Iterations() int {
	return int(c.iterations.Load())
}

// SetPendingRollback stores a rollback request to be consumed at the
// start of the next execution attempt.
func (c *Context) SetPendingRollback(data *checkpoint.AgentContextData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = data
}

// HasPendingRollback reports whether a rollback request is queued.
func (c *Context) HasPendingRollback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// TakePendingRollback consumes the queued rollback request, if any.
func (c *Context) TakePendingRollback() *checkpoint.AgentContextData {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.pending
	c.pending = nil
	return data
}

// EnforceExecutionPoint instructs the container at containerPath to run
// the named child next with the given input.
func (c *Context) EnforceExecutionPoint(containerPath, child string, input any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points[containerPath] = executionPoint{child: child, input: input}
}

// takeExecutionPoint consumes the execution point of a container.
func (c *Context) takeExecutionPoint(containerPath string) (executionPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	point, ok := c.points[containerPath]
	if ok {
		delete(c.points, containerPath)
	}
	return point, ok
}

// setToolSelection scopes the visible tools while a subgraph runs. It
// returns the previous selection for restoration on exit.
func (c *Context) setToolSelection(sel ToolSelection) ToolSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.toolSelection
	if sel != nil {
		c.toolSelection = sel
	}
	return prev
}

func (c *Context) restoreToolSelection(sel ToolSelection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolSelection = sel
}

// toolDeclarations returns the declarations visible under the active
// tool selection.
func (c *Context) toolDeclarations() []*tool.Declaration {
	if c.Tools == nil {
		return nil
	}
	decls := c.Tools.Declarations()
	c.mu.Lock()
	sel := c.toolSelection
	c.mu.Unlock()
	if sel == nil {
		return decls
	}
	return sel.Filter(decls)
}

// Fork creates a child context owning deep copies of prompt, storage
// and state. The executor, pipeline, checkpoint manager, environment
// and the iteration counter are shared with the parent: parallel
// branches report through the parent's pipeline and draw on the
// parent's iteration budget. For a detached child run use ForkRun.
func (c *Context) Fork() *Context {
	c.mu.Lock()
	points := make(map[string]executionPoint, len(c.points))
	for k, v := range c.points {
		points[k] = v
	}
	sel := c.toolSelection
	exec := c.graphExec
	c.mu.Unlock()

	return &Context{
		RunID:         c.RunID,
		AgentID:       c.AgentID,
		Prompt:        c.Prompt.Copy(),
		Storage:       c.Storage.Copy(),
		State:         c.State.Copy(),
		Executor:      c.Executor,
		Tools:         c.Tools,
		Pipeline:      c.Pipeline,
		Checkpoints:   c.Checkpoints,
		Environment:   c.Environment,
		Config:        c.Config,
		iterations:    c.iterations,
		points:        points,
		toolSelection: sel,
		graphExec:     exec,
	}
}

// ForkRun creates a detached child run: deep copies of prompt, storage
// and state, a fresh run id and iteration budget, and a distinct
// pipeline with the parent's features installed anew and prepared.
func (c *Context) ForkRun(ctx context.Context) (*Context, error) {
	child := c.Fork()
	child.RunID = uuid.NewString()
	child.iterations = &atomic.Int64{}
	if c.Pipeline != nil {
		forked, err := c.Pipeline.Fork()
		if err != nil {
			return nil, fmt.Errorf("fork run %s: %w", c.RunID, err)
		}
		if err := forked.PrepareAllFeatures(ctx); err != nil {
			return nil, fmt.Errorf("fork run %s: %w", c.RunID, err)
		}
		child.Pipeline = forked
	}
	return child, nil
}

// Adopt replaces this context's run-owned state with the winner's.
// Used after a parallel node to promote the winning child's context.
func (c *Context) Adopt(winner *Context) {
	if winner == nil || winner == c {
		return
	}
	messages := winner.Prompt.Messages()
	binding := winner.Prompt.Model()
	usage := winner.Prompt.LatestTokenUsage()
	_ = c.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.WithMessages(messages)
		s.SetModel(binding)
		s.SetLatestTokenUsage(usage)
		return nil
	})

	c.Storage.Clear()
	c.Storage.PutAll(winner.Storage.Snapshot())

	snapshot := winner.State.Snapshot()
	_ = c.State.Update(func(state storage.State) error {
		for k := range state {
			delete(state, k)
		}
		for k, v := range snapshot {
			state[k] = v
		}
		return nil
	})
}
