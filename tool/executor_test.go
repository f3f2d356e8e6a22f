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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	decl *Declaration
	call func(ctx context.Context, args []byte) (any, error)
}

func (s *stubTool) Declaration() *Declaration { return s.decl }
func (s *stubTool) Call(ctx context.Context, args []byte) (any, error) {
	return s.call(ctx, args)
}

func echoTool(name string) *stubTool {
	return &stubTool{
		decl: &Declaration{Name: name, Description: "echoes its arguments"},
		call: func(_ context.Context, args []byte) (any, error) {
			return string(args), nil
		},
	}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) record(kind, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+name)
}

func (r *recordingEvents) OnToolCallStarting(_ context.Context, call Call) {
	r.record("starting", call.Name)
}
func (r *recordingEvents) OnToolValidationFailed(_ context.Context, call Call, _ error) {
	r.record("validation_failed", call.Name)
}
func (r *recordingEvents) OnToolCallFailed(_ context.Context, call Call, _ error) {
	r.record("failed", call.Name)
}
func (r *recordingEvents) OnToolCallCompleted(_ context.Context, call Call, _ Result) {
	r.record("completed", call.Name)
}

func newTestExecutor(t *testing.T, events Events, tools ...Tool) *Executor {
	t.Helper()
	registry := NewRegistry().MustRegister(tools...)
	opts := []ExecutorOption{}
	if events != nil {
		opts = append(opts, WithEvents(events))
	}
	executor, err := NewExecutor(registry, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = executor.Close() })
	return executor
}

func TestSequentialRunEmitsEventsInCallOrder(t *testing.T) {
	events := &recordingEvents{}
	executor := newTestExecutor(t, events, echoTool("alpha"), echoTool("beta"))

	results, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "alpha", Arguments: []byte(`{"x":1}`)},
		{ID: "2", Name: "beta", Arguments: []byte(`{"y":2}`)},
	}, RunModeSequential)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []string{
		"starting:alpha", "completed:alpha",
		"starting:beta", "completed:beta",
	}, events.events)
}

func TestParallelRunPreservesDeclarationOrder(t *testing.T) {
	// The first tool sleeps so it finishes after the second; results
	// must still come back in call order.
	slow := &stubTool{
		decl: &Declaration{Name: "slow"},
		call: func(ctx context.Context, _ []byte) (any, error) {
			select {
			case <-time.After(30 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return "slow done", nil
		},
	}
	executor := newTestExecutor(t, nil, slow, echoTool("fast"))

	results, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "slow", Arguments: []byte(`{}`)},
		{ID: "2", Name: "fast", Arguments: []byte(`{}`)},
	}, RunModeParallel)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Name)
	assert.Equal(t, "slow done", results[0].Content)
	assert.Equal(t, "fast", results[1].Name)
}

func TestUnknownToolYieldsErrorResult(t *testing.T) {
	events := &recordingEvents{}
	executor := newTestExecutor(t, events, echoTool("known"))

	results, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "ghost", Arguments: []byte(`{}`)},
	}, RunModeSingle)
	require.NoError(t, err)
	require.Len(t, results, 1)

	var verr *ValidationError
	require.ErrorAs(t, results[0].Err, &verr)
	assert.Contains(t, results[0].Content, "not available")
	assert.Equal(t, []string{"starting:ghost", "validation_failed:ghost"}, events.events)
}

func TestSchemaValidationFailureSurfacesToModel(t *testing.T) {
	strict := &stubTool{
		decl: &Declaration{
			Name: "strict",
			InputSchema: ObjectSchema(map[string]*Schema{
				"city": StringSchema("city name"),
			}, "city"),
		},
		call: func(context.Context, []byte) (any, error) {
			return "never reached", nil
		},
	}
	executor := newTestExecutor(t, nil, strict)

	results, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "strict", Arguments: []byte(`{"town":"berlin"}`)},
	}, RunModeSingle)
	require.NoError(t, err)

	var verr *ValidationError
	require.ErrorAs(t, results[0].Err, &verr)
	assert.Contains(t, results[0].Content, "invalid")
}

func TestToolFailureDoesNotAffectSiblings(t *testing.T) {
	failing := &stubTool{
		decl: &Declaration{Name: "failing"},
		call: func(context.Context, []byte) (any, error) {
			return nil, errors.New("backend down")
		},
	}
	executor := newTestExecutor(t, nil, failing, echoTool("healthy"))

	results, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "failing", Arguments: []byte(`{}`)},
		{ID: "2", Name: "healthy", Arguments: []byte(`{}`)},
	}, RunModeSequential)
	require.NoError(t, err)

	var ferr *CallFailedError
	require.ErrorAs(t, results[0].Err, &ferr)
	assert.Contains(t, results[0].Content, "backend down")
	assert.NoError(t, results[1].Err)
}

func TestPanicIsRecoveredIntoErrorResult(t *testing.T) {
	panicking := &stubTool{
		decl: &Declaration{Name: "panicking"},
		call: func(context.Context, []byte) (any, error) {
			panic("blew up")
		},
	}
	executor := newTestExecutor(t, nil, panicking)

	results, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "panicking", Arguments: []byte(`{}`)},
	}, RunModeSingle)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Content, "blew up")
}

func TestRequiredCallFailureFailsTheRun(t *testing.T) {
	failing := &stubTool{
		decl: &Declaration{Name: "critical"},
		call: func(context.Context, []byte) (any, error) {
			return nil, errors.New("must not fail")
		},
	}
	executor := newTestExecutor(t, nil, failing)

	_, err := executor.Execute(context.Background(), []Call{
		{ID: "1", Name: "critical", Arguments: []byte(`{}`), Required: true},
	}, RunModeSingle)
	var ferr *CallFailedError
	require.ErrorAs(t, err, &ferr)
}

func TestCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := newTestExecutor(t, nil, echoTool("echo"))
	_, err := executor.Execute(ctx, []Call{
		{ID: "1", Name: "echo", Arguments: []byte(`{}`)},
	}, RunModeSequential)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeResult(t *testing.T) {
	text, err := EncodeResult("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	encoded, err := EncodeResult(map[string]int{"count": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3}`, encoded)

	empty, err := EncodeResult(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(echoTool("dup")))
	err := registry.Register(echoTool("dup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryDeclarationsKeepRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	for i := 0; i < 5; i++ {
		require.NoError(t, registry.Register(echoTool(fmt.Sprintf("tool-%d", i))))
	}
	decls := registry.Declarations()
	require.Len(t, decls, 5)
	for i, decl := range decls {
		assert.Equal(t, fmt.Sprintf("tool-%d", i), decl.Name)
	}
}
