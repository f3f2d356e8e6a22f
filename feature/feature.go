//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package feature provides the pipeline that dispatches lifecycle
// events to installed features.
package feature

import (
	"context"

	"github.com/koog-community/koog-go/tool"
)

// Key identifies a feature on the pipeline. Features are process-wide
// descriptors; instances are per run.
type Key string

// Feature is a pluggable observer/transformer registered on the
// pipeline.
type Feature interface {
	// Key returns the feature's storage key.
	Key() Key
	// DefaultConfig returns the configuration used when the installer
	// passes no overrides.
	DefaultConfig() *Config
	// Install registers the feature's handlers on the pipeline.
	Install(pipeline *Pipeline, config *Config) error
}

// EventFilter decides whether a feature's handlers run for an event.
type EventFilter func(eventType EventType) bool

// Config is the per-installation feature configuration.
type Config struct {
	// EventFilter gates the feature's handlers. A nil filter passes
	// every event. The Debugger feature forbids filtering.
	EventFilter EventFilter
	// MessageProcessors are opened during PrepareAllFeatures and closed
	// during CloseAllFeaturesMessageProcessors.
	MessageProcessors []MessageProcessor
}

// ConfigOption mutates a feature config at install time.
type ConfigOption func(*Config)

// WithEventFilter sets the feature's event filter.
func WithEventFilter(filter EventFilter) ConfigOption {
	return func(cfg *Config) {
		cfg.EventFilter = filter
	}
}

// WithMessageProcessor appends a message processor.
func WithMessageProcessor(processor MessageProcessor) ConfigOption {
	return func(cfg *Config) {
		cfg.MessageProcessors = append(cfg.MessageProcessors, processor)
	}
}

// MessageProcessor is a feature-owned resource with an open/close
// lifecycle, e.g. an exporter connection.
type MessageProcessor interface {
	// Initialize opens the processor's resources.
	Initialize(ctx context.Context) error
	// ProcessMessage handles one feature message.
	ProcessMessage(ctx context.Context, message any) error
	// Close releases the processor's resources.
	Close(ctx context.Context) error
}

// Environment is the external collaborator of an agent run: it
// executes tools and receives problem reports.
type Environment interface {
	// ExecuteTools runs the given tool calls and returns their results
	// in call order.
	ExecuteTools(ctx context.Context, calls []tool.Call) ([]tool.Result, error)
	// ReportProblem reports an engine-observed failure. It must not
	// panic or return an error.
	ReportProblem(err error)
}
