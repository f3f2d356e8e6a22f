//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koog-community/koog-go/model"
)

// ErrNoCheckpoint is returned when a rollback is requested but the
// agent has no live checkpoint.
var ErrNoCheckpoint = errors.New("checkpoint: no live checkpoint for agent")

// Manager versions and persists checkpoints for one agent. All
// operations are serialized per agent.
type Manager struct {
	mu       sync.Mutex
	agentID  string
	provider Provider
}

// NewManager creates a checkpoint manager for the given agent over the
// provider.
func NewManager(agentID string, provider Provider) *Manager {
	return &Manager{agentID: agentID, provider: provider}
}

// AgentID returns the agent this manager serves.
func (m *Manager) AgentID() string {
	return m.agentID
}

// CreateCheckpoint persists a snapshot of the given node input and
// message history with the next monotonically increasing version.
func (m *Manager) CreateCheckpoint(
	ctx context.Context,
	nodeID string,
	lastInput any,
	lastInputType string,
	messageHistory []model.Message,
) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := json.Marshal(lastInput)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode input for node %s: %w", nodeID, err)
	}
	version, err := m.provider.LatestVersion(ctx, m.agentID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read latest version: %w", err)
	}
	cp := &Checkpoint{
		ID:             uuid.New().String(),
		AgentID:        m.agentID,
		NodeID:         nodeID,
		LastInput:      encoded,
		LastInputType:  lastInputType,
		MessageHistory: model.CloneMessages(messageHistory),
		Version:        version + 1,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.provider.SaveCheckpoint(ctx, cp); err != nil {
		return nil, fmt.Errorf("checkpoint: save: %w", err)
	}
	return cp, nil
}

// GetLatestCheckpoint returns the live checkpoint with the highest
// version, or nil when none exists.
func (m *Manager) GetLatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider.GetLatestCheckpoint(ctx, m.agentID)
}

// ListCheckpoints returns all live checkpoints in ascending version
// order.
func (m *Manager) ListCheckpoints(ctx context.Context) ([]*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider.GetCheckpoints(ctx, m.agentID)
}

// RollbackToLatestCheckpoint builds the rollback request for the
// latest live checkpoint using the default strategy. The caller stores
// the returned data on the run context and signals a re-run.
func (m *Manager) RollbackToLatestCheckpoint(ctx context.Context, actions ...RollbackAction) (*AgentContextData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp, err := m.provider.GetLatestCheckpoint(ctx, m.agentID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, ErrNoCheckpoint
	}
	return &AgentContextData{
		NodeID:          cp.NodeID,
		LastInput:       cp.LastInput,
		LastInputType:   cp.LastInputType,
		MessageHistory:  model.CloneMessages(cp.MessageHistory),
		RollbackActions: actions,
		Strategy:        RollbackDefault,
	}, nil
}

// RollbackTo builds a rollback request for a specific checkpoint.
func (m *Manager) RollbackTo(cp *Checkpoint, strategy RollbackStrategy, actions ...RollbackAction) *AgentContextData {
	return &AgentContextData{
		NodeID:          cp.NodeID,
		LastInput:       cp.LastInput,
		LastInputType:   cp.LastInputType,
		MessageHistory:  model.CloneMessages(cp.MessageHistory),
		RollbackActions: actions,
		Strategy:        strategy,
	}
}

// DeleteCheckpoints logically deletes all checkpoints by writing a
// tombstone with the next version.
func (m *Manager) DeleteCheckpoints(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider.DeleteCheckpoints(ctx, m.agentID)
}

// NewTombstone builds a tombstone entry for the agent at the given
// version. Providers use it to implement DeleteCheckpoints.
func NewTombstone(agentID string, version int64) *Checkpoint {
	return &Checkpoint{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		NodeID:    TombstoneNodeID,
		Version:   version,
		CreatedAt: time.Now().UTC(),
	}
}
