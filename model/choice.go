//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when a multi-choice request produced an
// empty choice list.
var ErrNoChoices = errors.New("model: empty choice list")

// ChoiceSelectionStrategy chooses one of several alternative responses.
// Implementations may be interactive and delegate to the environment.
type ChoiceSelectionStrategy interface {
	// Choose picks one choice out of the candidates.
	Choose(ctx context.Context, choices []Choice) (Choice, error)
}

// ChoiceSelectionFunc adapts a function to ChoiceSelectionStrategy.
type ChoiceSelectionFunc func(ctx context.Context, choices []Choice) (Choice, error)

// Choose implements ChoiceSelectionStrategy.
func (f ChoiceSelectionFunc) Choose(ctx context.Context, choices []Choice) (Choice, error) {
	return f(ctx, choices)
}

// FirstChoiceStrategy returns the first candidate. It is the default
// selection strategy.
func FirstChoiceStrategy() ChoiceSelectionStrategy {
	return ChoiceSelectionFunc(func(_ context.Context, choices []Choice) (Choice, error) {
		if len(choices) == 0 {
			return nil, ErrNoChoices
		}
		return choices[0], nil
	})
}

// ExecutorWithChoiceSelection wraps a PromptExecutor so that Execute
// internally requests multiple choices and returns the selected one.
// Streaming and moderation are delegated unchanged.
type ExecutorWithChoiceSelection struct {
	inner     PromptExecutor
	strategy  ChoiceSelectionStrategy
	numchoice int
}

// NewExecutorWithChoiceSelection builds a choice-selecting executor.
// numberOfChoices <= 1 makes Execute equivalent to the inner executor.
func NewExecutorWithChoiceSelection(
	inner PromptExecutor,
	strategy ChoiceSelectionStrategy,
	numberOfChoices int,
) *ExecutorWithChoiceSelection {
	if strategy == nil {
		strategy = FirstChoiceStrategy()
	}
	return &ExecutorWithChoiceSelection{
		inner:     inner,
		strategy:  strategy,
		numchoice: numberOfChoices,
	}
}

// Execute requests multiple choices and returns the selected one.
func (e *ExecutorWithChoiceSelection) Execute(ctx context.Context, req Request) ([]Message, error) {
	if e.numchoice <= 1 {
		return e.inner.Execute(ctx, req)
	}
	req.NumberOfChoices = e.numchoice
	choices, err := e.inner.ExecuteMultipleChoices(ctx, req)
	if err != nil {
		return nil, err
	}
	selected, err := e.strategy.Choose(ctx, choices)
	if err != nil {
		return nil, err
	}
	return selected, nil
}

// ExecuteStreaming delegates to the inner executor; streaming is
// unaffected by choice selection.
func (e *ExecutorWithChoiceSelection) ExecuteStreaming(ctx context.Context, req Request) (<-chan StreamFrame, error) {
	return e.inner.ExecuteStreaming(ctx, req)
}

// ExecuteMultipleChoices delegates to the inner executor.
func (e *ExecutorWithChoiceSelection) ExecuteMultipleChoices(ctx context.Context, req Request) ([]Choice, error) {
	return e.inner.ExecuteMultipleChoices(ctx, req)
}

// Moderate delegates to the inner executor.
func (e *ExecutorWithChoiceSelection) Moderate(ctx context.Context, req Request) (ModerationResult, error) {
	return e.inner.Moderate(ctx, req)
}

// Close closes the inner executor.
func (e *ExecutorWithChoiceSelection) Close() error {
	return e.inner.Close()
}
