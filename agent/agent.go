//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package agent provides the strategy runner: it owns the run
// lifecycle, wires the pipeline, environment and checkpoint manager,
// and drives the graph executor.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/koog-community/koog-go/checkpoint"
	"github.com/koog-community/koog-go/feature"
	"github.com/koog-community/koog-go/graph"
	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/prompt"
	"github.com/koog-community/koog-go/storage"
	"github.com/koog-community/koog-go/tool"
)

// Agent executes a strategy graph against an LLM and a tool registry.
type Agent struct {
	id             string
	strategy       *graph.Strategy
	executor       model.PromptExecutor
	registry       *tool.Registry
	pipeline       *feature.Pipeline
	provider       checkpoint.Provider
	config         graph.Config
	binding        model.Model
	systemPrompt   string
	choiceStrategy model.ChoiceSelectionStrategy
	environment    feature.Environment
}

// Option configures an Agent.
type Option func(*Agent)

// WithID sets the agent id. Defaults to a random uuid.
func WithID(id string) Option {
	return func(a *Agent) { a.id = id }
}

// WithModel sets the model binding runs start with.
func WithModel(binding model.Model) Option {
	return func(a *Agent) { a.binding = binding }
}

// WithSystemPrompt seeds every run's prompt with a system message.
func WithSystemPrompt(text string) Option {
	return func(a *Agent) { a.systemPrompt = text }
}

// WithConfig replaces the execution configuration.
func WithConfig(config graph.Config) Option {
	return func(a *Agent) { a.config = config }
}

// WithCheckpointProvider enables checkpointing through the provider.
func WithCheckpointProvider(provider checkpoint.Provider) Option {
	return func(a *Agent) { a.provider = provider }
}

// WithPipeline replaces the feature pipeline. Useful when features are
// installed before the agent is constructed.
func WithPipeline(pipeline *feature.Pipeline) Option {
	return func(a *Agent) { a.pipeline = pipeline }
}

// WithChoiceSelectionStrategy sets the strategy used when the run asks
// for multiple choices.
func WithChoiceSelectionStrategy(strategy model.ChoiceSelectionStrategy) Option {
	return func(a *Agent) { a.choiceStrategy = strategy }
}

// WithEnvironment replaces the default tool-executing environment.
func WithEnvironment(env feature.Environment) Option {
	return func(a *Agent) { a.environment = env }
}

// New creates an agent for the strategy.
func New(strategy *graph.Strategy, executor model.PromptExecutor, registry *tool.Registry, opts ...Option) *Agent {
	a := &Agent{
		id:       uuid.New().String(),
		strategy: strategy,
		executor: executor,
		registry: registry,
		pipeline: feature.NewPipeline(),
		config:   graph.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.id }

// Pipeline returns the agent's feature pipeline for installs.
func (a *Agent) Pipeline() *feature.Pipeline { return a.pipeline }

// Run executes the strategy with the given input and returns its
// output. A nil output means the strategy finished without producing a
// value.
func (a *Agent) Run(ctx context.Context, input any) (any, error) {
	if err := a.pipeline.PrepareAllFeatures(ctx); err != nil {
		return nil, err
	}

	runID := uuid.New().String()

	toolExec, err := tool.NewExecutor(a.registry,
		tool.WithEvents(&pipelineToolEvents{runID: runID, pipeline: a.pipeline}))
	if err != nil {
		return nil, err
	}
	defer toolExec.Close()

	env := a.environment
	if env == nil {
		env = NewEnvironment(toolExec, WithRunMode(a.config.RunMode))
	}
	env = a.pipeline.TransformEnvironment(ctx, env)
	a.pipeline.SetProblemReporter(env.ReportProblem)

	rc := a.newRunContext(runID, env)

	a.pipeline.NotifyAgentStarting(ctx, &feature.AgentStartingContext{
		RunID:    runID,
		AgentID:  a.id,
		Strategy: a.strategy.Name(),
	})

	result, err := a.executeStrategy(ctx, rc, input)
	if err != nil {
		// Cancellation always re-propagates unreported.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		env.ReportProblem(err)
		a.pipeline.NotifyAgentExecutionFailed(ctx, &feature.AgentExecutionFailedContext{
			RunID:   runID,
			AgentID: a.id,
			Err:     err,
		})
		return nil, err
	}

	a.pipeline.NotifyAgentCompleted(ctx, &feature.AgentCompletedContext{
		RunID:      runID,
		AgentID:    a.id,
		Result:     result,
		ResultType: fmt.Sprintf("%T", result),
	})
	return result, nil
}

// newRunContext assembles the per-run execution context.
func (a *Agent) newRunContext(runID string, env feature.Environment) *graph.Context {
	binding := a.binding
	if a.config.Temperature != 0 {
		binding.Temperature = a.config.Temperature
	}

	var promptExec model.PromptExecutor = a.executor
	if a.config.NumberOfChoices > 1 {
		promptExec = model.NewExecutorWithChoiceSelection(
			a.executor, a.choiceStrategy, a.config.NumberOfChoices)
	}

	var messages []model.Message
	if a.systemPrompt != "" {
		messages = append(messages, model.NewSystemMessage(a.systemPrompt))
	}

	rc := graph.NewContext()
	rc.RunID = runID
	rc.AgentID = a.id
	rc.Prompt = prompt.New(binding, messages...)
	rc.Storage = storage.NewStore()
	rc.State = storage.NewStateManager()
	rc.Executor = promptExec
	rc.Tools = a.registry
	rc.Pipeline = a.pipeline
	rc.Environment = env
	rc.Config = a.config
	if a.provider != nil {
		rc.Checkpoints = checkpoint.NewManager(a.id, a.provider)
	}
	return rc
}

// executeStrategy drives the graph executor, re-running while a node
// scheduled a rollback. The loop terminates because each rollback
// consumes a checkpoint or transitions through a terminal node.
func (a *Agent) executeStrategy(ctx context.Context, rc *graph.Context, input any) (any, error) {
	a.pipeline.NotifyStrategyStarting(ctx, &feature.StrategyStartingContext{
		RunID:    rc.RunID,
		Strategy: a.strategy.Name(),
	})

	executor := graph.NewExecutor(a.strategy)
	for {
		result, err := executor.Execute(ctx, rc, input)
		if err != nil {
			return nil, err
		}
		if result == nil && rc.HasPendingRollback() {
			continue
		}
		a.pipeline.NotifyStrategyCompleted(ctx, &feature.StrategyCompletedContext{
			RunID:      rc.RunID,
			Strategy:   a.strategy.Name(),
			Result:     result,
			ResultType: fmt.Sprintf("%T", result),
		})
		return result, nil
	}
}

// Close emits the closing event, shuts down feature message processors
// and releases the prompt executor.
func (a *Agent) Close(ctx context.Context) error {
	a.pipeline.NotifyAgentClosing(ctx, &feature.AgentClosingContext{AgentID: a.id})
	var firstErr error
	if err := a.pipeline.CloseAllFeaturesMessageProcessors(ctx); err != nil {
		firstErr = err
	}
	if err := a.executor.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RunCatchingCancellable runs fn, re-propagating cancellation untouched
// and reporting any other failure through the environment before
// returning it.
func RunCatchingCancellable(ctx context.Context, env feature.Environment, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	env.ReportProblem(err)
	return err
}
