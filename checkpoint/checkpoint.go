//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package checkpoint provides execution-state snapshots, rollback
// requests and the manager that versions them per agent.
package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/koog-community/koog-go/model"
)

// TombstoneNodeID is the node id of a tombstone entry. A tombstone
// signals logical deletion of all earlier checkpoints without leaving
// version gaps.
const TombstoneNodeID = "tombstone"

// RollbackStrategy selects how much state a rollback restores.
type RollbackStrategy string

// Rollback strategies.
const (
	// RollbackDefault restores the execution point and the message
	// history and runs additional rollback actions.
	RollbackDefault RollbackStrategy = "default"
	// RollbackMessageHistoryOnly restores only the message history.
	RollbackMessageHistoryOnly RollbackStrategy = "message_history_only"
)

// Checkpoint is a persisted snapshot sufficient to resume execution at
// a specific node.
type Checkpoint struct {
	// ID is the unique checkpoint id.
	ID string `json:"checkpoint_id"`
	// AgentID is the owning agent.
	AgentID string `json:"agent_id"`
	// NodeID is the qualified short name of the node to resume at.
	NodeID string `json:"node_id"`
	// LastInput is the node input serialized with its declared type.
	LastInput json.RawMessage `json:"last_input,omitempty"`
	// LastInputType names the declared input type for decoding.
	LastInputType string `json:"last_input_type,omitempty"`
	// MessageHistory is the prompt at checkpoint time.
	MessageHistory []model.Message `json:"message_history,omitempty"`
	// Version is strictly increasing per agent; the latest checkpoint
	// is the one with the highest version that is not a tombstone.
	Version int64 `json:"version"`
	// CreatedAt is the creation time. Persisted as epoch millis.
	CreatedAt time.Time `json:"created_at"`
}

// IsTombstone reports whether the entry marks a logical deletion.
func (c *Checkpoint) IsTombstone() bool {
	return c.NodeID == TombstoneNodeID
}

// RollbackAction undoes an external side effect (e.g. a tool write)
// during restoration.
type RollbackAction func(ctx context.Context) error

// AgentContextData is a transient per-run rollback request. It is
// consumed exactly once at the start of the next top-level strategy
// execution attempt.
type AgentContextData struct {
	// NodeID is the qualified short name of the node to re-enter.
	NodeID string
	// LastInput is the serialized input for the node.
	LastInput json.RawMessage
	// LastInputType names the declared input type.
	LastInputType string
	// MessageHistory replaces the prompt messages on restore.
	MessageHistory []model.Message
	// RollbackActions run before the execution point is enforced.
	RollbackActions []RollbackAction
	// Strategy selects how much state is restored.
	Strategy RollbackStrategy
}

// Provider is the external checkpoint storage backend. Implementations
// must keep entries ordered by version and honor tombstones.
type Provider interface {
	// GetCheckpoints returns all live checkpoints of the agent in
	// ascending version order. Entries logically deleted by a tombstone
	// are excluded; the tombstone itself is not returned.
	GetCheckpoints(ctx context.Context, agentID string) ([]*Checkpoint, error)
	// GetLatestCheckpoint returns the live checkpoint with the highest
	// version, or nil if none exists.
	GetLatestCheckpoint(ctx context.Context, agentID string) (*Checkpoint, error)
	// SaveCheckpoint persists a checkpoint (or tombstone).
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error
	// LatestVersion returns the highest version stored for the agent,
	// tombstones included, or zero when nothing is stored.
	LatestVersion(ctx context.Context, agentID string) (int64, error)
	// DeleteCheckpoints logically deletes all checkpoints of the agent
	// by writing a tombstone.
	DeleteCheckpoints(ctx context.Context, agentID string) error
}
