//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory checkpoint provider suitable
// for tests and debugging.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/koog-community/koog-go/checkpoint"
)

// Provider stores checkpoints in process memory.
type Provider struct {
	mu      sync.RWMutex
	entries map[string][]*checkpoint.Checkpoint
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{entries: make(map[string][]*checkpoint.Checkpoint)}
}

// SaveCheckpoint persists a checkpoint or tombstone.
func (p *Provider) SaveCheckpoint(_ context.Context, cp *checkpoint.Checkpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[cp.AgentID] = append(p.entries[cp.AgentID], cp)
	sort.Slice(p.entries[cp.AgentID], func(i, j int) bool {
		return p.entries[cp.AgentID][i].Version < p.entries[cp.AgentID][j].Version
	})
	return nil
}

// GetCheckpoints returns live checkpoints in ascending version order.
func (p *Provider) GetCheckpoints(_ context.Context, agentID string) ([]*checkpoint.Checkpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return liveEntries(p.entries[agentID]), nil
}

// GetLatestCheckpoint returns the live checkpoint with the highest
// version, or nil.
func (p *Provider) GetLatestCheckpoint(_ context.Context, agentID string) (*checkpoint.Checkpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	live := liveEntries(p.entries[agentID])
	if len(live) == 0 {
		return nil, nil
	}
	return live[len(live)-1], nil
}

// LatestVersion returns the highest stored version, tombstones
// included.
func (p *Provider) LatestVersion(_ context.Context, agentID string) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := p.entries[agentID]
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Version, nil
}

// DeleteCheckpoints writes a tombstone that logically deletes every
// earlier entry.
func (p *Provider) DeleteCheckpoints(_ context.Context, agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.entries[agentID]
	var version int64
	if len(entries) > 0 {
		version = entries[len(entries)-1].Version
	}
	p.entries[agentID] = append(entries, checkpoint.NewTombstone(agentID, version+1))
	return nil
}

// liveEntries filters out tombstones and everything at or below the
// newest tombstone version.
func liveEntries(entries []*checkpoint.Checkpoint) []*checkpoint.Checkpoint {
	var cutoff int64 = -1
	for _, cp := range entries {
		if cp.IsTombstone() && cp.Version > cutoff {
			cutoff = cp.Version
		}
	}
	var live []*checkpoint.Checkpoint
	for _, cp := range entries {
		if cp.IsTombstone() || cp.Version < cutoff {
			continue
		}
		live = append(live, cp)
	}
	return live
}
