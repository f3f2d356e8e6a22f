//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koog-community/koog-go/feature"
	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/prompt"
	"github.com/koog-community/koog-go/storage"
)

type countingProcessor struct {
	mu    sync.Mutex
	inits int
}

func (p *countingProcessor) Initialize(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inits++
	return nil
}

func (p *countingProcessor) ProcessMessage(context.Context, any) error { return nil }

func (p *countingProcessor) Close(context.Context) error { return nil }

func (p *countingProcessor) initCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits
}

type countingFeature struct {
	mu       sync.Mutex
	installs int
}

func (f *countingFeature) Key() feature.Key               { return "counting" }
func (f *countingFeature) DefaultConfig() *feature.Config { return &feature.Config{} }

func (f *countingFeature) Install(*feature.Pipeline, *feature.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs++
	return nil
}

func (f *countingFeature) installCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs
}

func TestForkRunOwnsPipelineAndBudget(t *testing.T) {
	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.iterations.Add(4)

	f := &countingFeature{}
	proc := &countingProcessor{}
	pipeline := feature.NewPipeline()
	require.NoError(t, pipeline.Install(f, feature.WithMessageProcessor(proc)))
	rc.Pipeline = pipeline

	child, err := rc.ForkRun(context.Background())
	require.NoError(t, err)

	// The child run gets a distinct pipeline with the parent's features
	// installed anew and prepared.
	require.NotSame(t, rc.Pipeline, child.Pipeline)
	assert.True(t, child.Pipeline.IsInstalled("counting"))
	assert.Equal(t, 2, f.installCount())
	assert.Equal(t, 1, proc.initCount())

	// Fresh identity and iteration budget.
	assert.NotEqual(t, rc.RunID, child.RunID)
	assert.Equal(t, 0, child.Iterations())
	child.iterations.Add(2)
	assert.Equal(t, 4, rc.Iterations())
}

func TestForkRunCopiesRunState(t *testing.T) {
	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	storage.Set(rc.Storage, storage.NewKey[string]("owner"), "parent")

	child, err := rc.ForkRun(context.Background())
	require.NoError(t, err)

	storage.Set(child.Storage, storage.NewKey[string]("owner"), "child")
	require.NoError(t, child.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.AppendPrompt(model.NewUserMessage("child only"))
		return nil
	}))

	owner, _ := storage.Get(rc.Storage, storage.NewKey[string]("owner"))
	assert.Equal(t, "parent", owner)
	assert.Equal(t, 0, rc.Prompt.Len())
}
