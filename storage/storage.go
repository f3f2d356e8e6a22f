//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package storage provides the typed concurrent key/value store and
// the state manager owned by an agent run.
package storage

import (
	"fmt"
	"sync"
)

// Key is a typed storage key: a unique string name plus a declared
// value type. Two keys with the same name address the same slot; the
// type parameter only guards access.
type Key[T any] struct {
	// Name is the unique key name.
	Name string
}

// NewKey creates a typed storage key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{Name: name}
}

// KeyNotFoundError reports a GetValue miss.
type KeyNotFoundError struct {
	// Key is the missing key name.
	Key string
}

// Error implements the error interface.
func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("storage key %q not found", e.Key)
}

// TypeMismatchError reports a typed read of a slot holding a value of a
// different type.
type TypeMismatchError struct {
	// Key is the key name.
	Key string
	// Value is the stored value.
	Value any
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("storage key %q holds %T, requested type differs", e.Key, e.Value)
}

// Cloner lets stored values participate in deep copies when a run is
// forked. Values that do not implement Cloner are copied by reference.
type Cloner interface {
	// Clone returns a deep copy of the value.
	Clone() any
}

// Store is the concurrency-safe key/value store of a run. The lock is
// held only for the single map access of each operation.
type Store struct {
	mu   sync.Mutex
	data map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]any)}
}

// Set stores a value under the typed key.
func Set[T any](s *Store, key Key[T], value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key.Name] = value
}

// Get returns the value for the typed key, reporting presence.
func Get[T any](s *Store, key Key[T]) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	raw, ok := s.data[key.Name]
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

// GetValue returns the value for the typed key or a KeyNotFoundError.
func GetValue[T any](s *Store, key Key[T]) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	raw, ok := s.data[key.Name]
	if !ok {
		return zero, &KeyNotFoundError{Key: key.Name}
	}
	value, ok := raw.(T)
	if !ok {
		return zero, &TypeMismatchError{Key: key.Name, Value: raw}
	}
	return value, nil
}

// Remove deletes the value stored under the key name.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
}

// Snapshot returns a consistent copy of the whole store.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]any, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	return snapshot
}

// PutAll merges the given entries into the store.
func (s *Store) PutAll(entries map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.data[k] = v
	}
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
}

// Copy creates a deep copy of the store for run forking. Values
// implementing Cloner are cloned; everything else is copied by
// reference.
func (s *Store) Copy() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[string]any, len(s.data))
	for k, v := range s.data {
		if cloner, ok := v.(Cloner); ok {
			data[k] = cloner.Clone()
			continue
		}
		data[k] = v
	}
	return &Store{data: data}
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
