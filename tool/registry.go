//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry maps tool names to registered tools. Registration order is
// preserved so declarations are presented to the model
// deterministically.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	compiled map[string]*jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the registry. Registering a duplicate name or
// a tool whose input schema does not compile is an error.
func (r *Registry) Register(t Tool) error {
	decl := t.Declaration()
	if decl == nil || decl.Name == "" {
		return fmt.Errorf("tool declaration must carry a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[decl.Name]; exists {
		return fmt.Errorf("tool %q already registered", decl.Name)
	}
	if decl.InputSchema != nil {
		compiled, err := decl.InputSchema.Compile()
		if err != nil {
			return fmt.Errorf("tool %q: %w", decl.Name, err)
		}
		r.compiled[decl.Name] = compiled
	}
	r.tools[decl.Name] = t
	r.order = append(r.order, decl.Name)
	return nil
}

// MustRegister registers tools and panics on failure. Intended for
// static registration at strategy build time.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// CompiledInputSchema returns the cached compiled input schema for the
// tool, or nil if the tool declared none.
func (r *Registry) CompiledInputSchema(name string) *jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compiled[name]
}

// Declarations returns the declarations of all registered tools in
// registration order.
func (r *Registry) Declarations() []*Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := make([]*Declaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Declaration())
	}
	return decls
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
