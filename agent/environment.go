//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"context"

	"github.com/koog-community/koog-go/feature"
	"github.com/koog-community/koog-go/log"
	"github.com/koog-community/koog-go/tool"
)

// Environment is the default run environment: it executes tool calls
// through a tool executor and logs reported problems.
type Environment struct {
	executor *tool.Executor
	runMode  tool.RunMode
	onError  func(err error)
}

// EnvironmentOption configures an Environment.
type EnvironmentOption func(*Environment)

// WithRunMode sets the dispatch mode for tool calls.
func WithRunMode(mode tool.RunMode) EnvironmentOption {
	return func(e *Environment) {
		e.runMode = mode
	}
}

// WithProblemHandler adds a callback invoked on every reported problem.
func WithProblemHandler(fn func(err error)) EnvironmentOption {
	return func(e *Environment) {
		e.onError = fn
	}
}

// NewEnvironment creates an environment over the tool executor.
func NewEnvironment(executor *tool.Executor, opts ...EnvironmentOption) *Environment {
	env := &Environment{
		executor: executor,
		runMode:  tool.RunModeSingle,
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ExecuteTools implements feature.Environment.
func (e *Environment) ExecuteTools(ctx context.Context, calls []tool.Call) ([]tool.Result, error) {
	return e.executor.Execute(ctx, calls, e.runMode)
}

// ReportProblem implements feature.Environment.
func (e *Environment) ReportProblem(err error) {
	log.Errorf("run environment problem: %v", err)
	if e.onError != nil {
		e.onError(err)
	}
}

// pipelineToolEvents forwards tool executor events onto the pipeline.
type pipelineToolEvents struct {
	runID    string
	pipeline *feature.Pipeline
}

// OnToolCallStarting implements tool.Events.
func (e *pipelineToolEvents) OnToolCallStarting(ctx context.Context, call tool.Call) {
	e.pipeline.NotifyToolCallStarting(ctx, &feature.ToolCallStartingContext{
		RunID: e.runID,
		Call:  call,
	})
}

// OnToolValidationFailed implements tool.Events.
func (e *pipelineToolEvents) OnToolValidationFailed(ctx context.Context, call tool.Call, err error) {
	e.pipeline.NotifyToolValidationFailed(ctx, &feature.ToolValidationFailedContext{
		RunID: e.runID,
		Call:  call,
		Err:   err,
	})
}

// OnToolCallFailed implements tool.Events.
func (e *pipelineToolEvents) OnToolCallFailed(ctx context.Context, call tool.Call, err error) {
	e.pipeline.NotifyToolCallFailed(ctx, &feature.ToolCallFailedContext{
		RunID: e.runID,
		Call:  call,
		Err:   err,
	})
}

// OnToolCallCompleted implements tool.Events.
func (e *pipelineToolEvents) OnToolCallCompleted(ctx context.Context, call tool.Call, result tool.Result) {
	e.pipeline.NotifyToolCallCompleted(ctx, &feature.ToolCallCompletedContext{
		RunID:  e.runID,
		Call:   call,
		Result: result,
	})
}
