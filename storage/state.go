//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package storage

import (
	"sync"
)

// State is the mutable state map guarded by a StateManager.
type State map[string]any

// Clone creates a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// StateManager serializes access to run state through a coarse-grained
// critical section. Update must not be called from within an Update
// block of the same manager; recursive acquisition is not supported.
type StateManager struct {
	mu    sync.Mutex
	state State
}

// NewStateManager creates a state manager with an empty state.
func NewStateManager() *StateManager {
	return &StateManager{state: make(State)}
}

// Update runs fn inside the manager's critical section. fn receives
// the live state and may mutate it; the mutation is visible to later
// readers once Update returns.
func (m *StateManager) Update(fn func(state State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

// Snapshot returns a consistent copy of the current state.
func (m *StateManager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Copy creates a deep copy of the manager for run forking. Values
// implementing Cloner are cloned.
func (m *StateManager) Copy() *StateManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := make(State, len(m.state))
	for k, v := range m.state {
		if cloner, ok := v.(Cloner); ok {
			state[k] = cloner.Clone()
			continue
		}
		state[k] = v
	}
	return &StateManager{state: state}
}
