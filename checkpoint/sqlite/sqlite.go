//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed checkpoint provider. It
// stores the message history and serialized input as JSON blobs and is
// suitable for production use when paired with a persistent database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Register the SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/koog-community/koog-go/checkpoint"
	"github.com/koog-community/koog-go/model"
)

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"agent_id TEXT NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"node_id TEXT NOT NULL, " +
		"last_input BLOB, " +
		"last_input_type TEXT, " +
		"message_history BLOB, " +
		"version INTEGER NOT NULL, " +
		"created_at INTEGER NOT NULL, " +
		"PRIMARY KEY (agent_id, version)" +
		")"

	sqliteInsertCheckpoint = "INSERT INTO checkpoints (" +
		"agent_id, checkpoint_id, node_id, last_input, last_input_type, " +
		"message_history, version, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"

	sqliteSelectAsc = "SELECT checkpoint_id, node_id, last_input, last_input_type, " +
		"message_history, version, created_at FROM checkpoints " +
		"WHERE agent_id = ? ORDER BY version ASC"

	sqliteSelectLatestVersion = "SELECT COALESCE(MAX(version), 0) FROM checkpoints WHERE agent_id = ?"
)

// Provider is a SQLite-backed checkpoint provider.
type Provider struct {
	db *sql.DB
}

// NewFromDB creates a provider using the provided DB. The DB must use a
// SQLite driver; the constructor creates the schema if needed.
func NewFromDB(db *sql.DB) (*Provider, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Provider{db: db}, nil
}

// Open opens (or creates) a SQLite database at path and returns a
// provider over it.
func Open(path string) (*Provider, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return NewFromDB(db)
}

// Close closes the underlying database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// SaveCheckpoint persists a checkpoint or tombstone.
func (p *Provider) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	var history []byte
	if cp.MessageHistory != nil {
		encoded, err := json.Marshal(cp.MessageHistory)
		if err != nil {
			return fmt.Errorf("encode message history: %w", err)
		}
		history = encoded
	}
	_, err := p.db.ExecContext(ctx, sqliteInsertCheckpoint,
		cp.AgentID, cp.ID, cp.NodeID, []byte(cp.LastInput), cp.LastInputType,
		history, cp.Version, cp.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoints returns live checkpoints in ascending version order.
func (p *Provider) GetCheckpoints(ctx context.Context, agentID string) ([]*checkpoint.Checkpoint, error) {
	rows, err := p.db.QueryContext(ctx, sqliteSelectAsc, agentID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var entries []*checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows, agentID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	// Drop tombstones and everything at or below the newest tombstone.
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
	return live, nil
}

// GetLatestCheckpoint returns the live checkpoint with the highest
// version, or nil.
func (p *Provider) GetLatestCheckpoint(ctx context.Context, agentID string) (*checkpoint.Checkpoint, error) {
	live, err := p.GetCheckpoints(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, nil
	}
	return live[len(live)-1], nil
}

// LatestVersion returns the highest stored version, tombstones
// included.
func (p *Provider) LatestVersion(ctx context.Context, agentID string) (int64, error) {
	var version int64
	if err := p.db.QueryRowContext(ctx, sqliteSelectLatestVersion, agentID).Scan(&version); err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return version, nil
}

// DeleteCheckpoints writes a tombstone with the next version.
func (p *Provider) DeleteCheckpoints(ctx context.Context, agentID string) error {
	version, err := p.LatestVersion(ctx, agentID)
	if err != nil {
		return err
	}
	return p.SaveCheckpoint(ctx, checkpoint.NewTombstone(agentID, version+1))
}

func scanCheckpoint(rows *sql.Rows, agentID string) (*checkpoint.Checkpoint, error) {
	var (
		cp        checkpoint.Checkpoint
		lastInput []byte
		history   []byte
		createdAt int64
	)
	if err := rows.Scan(&cp.ID, &cp.NodeID, &lastInput, &cp.LastInputType,
		&history, &cp.Version, &createdAt); err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	cp.AgentID = agentID
	cp.LastInput = json.RawMessage(lastInput)
	cp.CreatedAt = time.UnixMilli(createdAt).UTC()
	if len(history) > 0 {
		var messages []model.Message
		if err := json.Unmarshal(history, &messages); err != nil {
			return nil, fmt.Errorf("decode message history: %w", err)
		}
		cp.MessageHistory = messages
	}
	return &cp, nil
}
