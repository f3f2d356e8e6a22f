//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/koog-community/koog-go/log"
)

// RunMode selects how the calls of a single model response are
// dispatched.
type RunMode string

// Run modes.
const (
	// RunModeSingle executes one call at a time; the model is expected
	// to issue a single call per response.
	RunModeSingle RunMode = "single_run"
	// RunModeSequential executes all calls of a response one after
	// another in declaration order.
	RunModeSequential RunMode = "single_run_sequential"
	// RunModeParallel executes all calls of a response concurrently.
	// Results are returned in declaration order.
	RunModeParallel RunMode = "parallel"
)

// Events receives per-call notifications from the executor. The agent
// wires this to the feature pipeline.
type Events interface {
	// OnToolCallStarting fires before argument validation.
	OnToolCallStarting(ctx context.Context, call Call)
	// OnToolValidationFailed fires when argument decoding or schema
	// validation fails.
	OnToolValidationFailed(ctx context.Context, call Call, err error)
	// OnToolCallFailed fires when the tool invocation itself fails.
	OnToolCallFailed(ctx context.Context, call Call, err error)
	// OnToolCallCompleted fires after the result is encoded.
	OnToolCallCompleted(ctx context.Context, call Call, result Result)
}

// NopEvents is an Events implementation that ignores everything.
type NopEvents struct{}

// OnToolCallStarting implements Events.
func (NopEvents) OnToolCallStarting(context.Context, Call) {}

// OnToolValidationFailed implements Events.
func (NopEvents) OnToolValidationFailed(context.Context, Call, error) {}

// OnToolCallFailed implements Events.
func (NopEvents) OnToolCallFailed(context.Context, Call, error) {}

// OnToolCallCompleted implements Events.
func (NopEvents) OnToolCallCompleted(context.Context, Call, Result) {}

const defaultParallelism = 8

// Executor dispatches tool calls against a registry.
type Executor struct {
	registry *Registry
	events   Events
	pool     *ants.Pool

	closeOnce sync.Once
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

type executorOptions struct {
	events      Events
	parallelism int
}

// WithEvents sets the per-call event sink.
func WithEvents(events Events) ExecutorOption {
	return func(opts *executorOptions) {
		opts.events = events
	}
}

// WithParallelism bounds the number of concurrently running calls in
// parallel mode.
func WithParallelism(n int) ExecutorOption {
	return func(opts *executorOptions) {
		opts.parallelism = n
	}
}

// NewExecutor creates a tool executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) (*Executor, error) {
	options := executorOptions{
		events:      NopEvents{},
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(&options)
	}

	pool, err := ants.NewPool(options.parallelism)
	if err != nil {
		return nil, fmt.Errorf("create tool worker pool: %w", err)
	}
	return &Executor{
		registry: registry,
		events:   options.events,
		pool:     pool,
	}, nil
}

// Close releases the worker pool. Safe to call multiple times.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		e.pool.Release()
	})
	return nil
}

// Execute dispatches the calls of one model response per the run mode.
// Results are always returned in call declaration order. Per-call
// failures are captured in the results; Execute itself fails only on
// cancellation or when a required call fails.
func (e *Executor) Execute(ctx context.Context, calls []Call, mode RunMode) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]Result, len(calls))
	switch mode {
	case RunModeParallel:
		var wg sync.WaitGroup
		for i := range calls {
			i := i
			wg.Add(1)
			task := func() {
				defer wg.Done()
				results[i] = e.executeOne(ctx, calls[i])
			}
			if err := e.pool.Submit(task); err != nil {
				// Pool exhausted or released: fall back to inline.
				task()
			}
		}
		wg.Wait()
	default:
		for i := range calls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = e.executeOne(ctx, calls[i])
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, result := range results {
		if result.Err == nil {
			continue
		}
		// Cancellation always re-propagates.
		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			return nil, result.Err
		}
		if calls[i].Required {
			return nil, result.Err
		}
	}
	return results, nil
}

// executeOne runs the full per-call contract: validate, invoke, encode.
// Failures are captured in the result so siblings are unaffected.
func (e *Executor) executeOne(ctx context.Context, call Call) Result {
	e.events.OnToolCallStarting(ctx, call)

	result := Result{ID: call.ID, Name: call.Name}

	t, ok := e.registry.Get(call.Name)
	if !ok {
		err := &ValidationError{ToolName: call.Name, Err: &NotFoundError{ToolName: call.Name}}
		e.events.OnToolValidationFailed(ctx, call, err)
		result.Err = err
		result.Content = fmt.Sprintf(
			"Tool %q is not available. Use one of the declared tools.", call.Name)
		return result
	}

	if err := ValidateArguments(e.registry.CompiledInputSchema(call.Name), call.Arguments); err != nil {
		verr := &ValidationError{ToolName: call.Name, Err: err}
		e.events.OnToolValidationFailed(ctx, call, verr)
		result.Err = verr
		result.Content = fmt.Sprintf(
			"Tool call arguments are invalid: %v. Fix the arguments and call the tool again.", err)
		return result
	}

	value, err := e.invoke(ctx, t, call)
	if err != nil {
		ferr := &CallFailedError{ToolName: call.Name, Err: err}
		e.events.OnToolCallFailed(ctx, call, ferr)
		result.Err = ferr
		result.Content = fmt.Sprintf("Tool call failed: %v", err)
		return result
	}

	content, err := EncodeResult(value)
	if err != nil {
		ferr := &CallFailedError{ToolName: call.Name, Err: err}
		e.events.OnToolCallFailed(ctx, call, ferr)
		result.Err = ferr
		result.Content = fmt.Sprintf("Tool call failed: %v", err)
		return result
	}

	result.Content = content
	e.events.OnToolCallCompleted(ctx, call, result)
	return result
}

// invoke runs the tool, converting panics into errors so a misbehaving
// tool cannot take down sibling calls.
func (e *Executor) invoke(ctx context.Context, t Tool, call Call) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("tool %q panicked: %v", call.Name, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Call(ctx, call.Arguments)
}
