//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package prompt provides the per-run prompt and the read/write
// sessions that serialize prompt access.
package prompt

import (
	"sync"

	"github.com/koog-community/koog-go/model"
)

// Prompt is the ordered message history of a run together with the
// current model binding. Mutation happens only inside a write session;
// sessions are serialized per run.
type Prompt struct {
	mu          sync.RWMutex
	messages    []model.Message
	binding     model.Model
	latestUsage model.Usage
}

// New creates a prompt bound to the given model with optional initial
// messages.
func New(binding model.Model, messages ...model.Message) *Prompt {
	return &Prompt{
		messages: model.CloneMessages(messages),
		binding:  binding,
	}
}

// Messages returns a consistent copy of the current messages.
func (p *Prompt) Messages() []model.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return model.CloneMessages(p.messages)
}

// Model returns the current model binding.
func (p *Prompt) Model() model.Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.binding
}

// LatestTokenUsage returns the token usage of the most recent response
// published through a write session. Compression nodes gate on it.
func (p *Prompt) LatestTokenUsage() model.Usage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latestUsage
}

// Last returns the last message and whether one exists.
func (p *Prompt) Last() (model.Message, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.messages) == 0 {
		return model.Message{}, false
	}
	return p.messages[len(p.messages)-1], true
}

// Len returns the number of messages in the prompt.
func (p *Prompt) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

// Copy creates a deep copy of the prompt for run forking.
func (p *Prompt) Copy() *Prompt {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &Prompt{
		messages:    model.CloneMessages(p.messages),
		binding:     p.binding,
		latestUsage: p.latestUsage,
	}
}

// ReadAccess is the view a read session exposes. It observes the
// prompt immutably; multiple readers may hold sessions concurrently,
// never together with a writer.
type ReadAccess struct {
	prompt *Prompt
}

// Messages returns the messages visible to the session.
func (r ReadAccess) Messages() []model.Message {
	return model.CloneMessages(r.prompt.messages)
}

// Model returns the model binding visible to the session.
func (r ReadAccess) Model() model.Model {
	return r.prompt.binding
}

// LatestTokenUsage returns the usage visible to the session.
func (r ReadAccess) LatestTokenUsage() model.Usage {
	return r.prompt.latestUsage
}

// ReadSession runs fn under a shared read lock.
func (p *Prompt) ReadSession(fn func(s ReadAccess) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(ReadAccess{prompt: p})
}

// WriteSession runs fn with exclusive access to a staged copy of the
// prompt. If fn returns nil the staged state is published atomically on
// session exit; on error the prompt is left untouched. External
// observers see either the pre-session or the post-session prompt,
// never a partial state.
func (p *Prompt) WriteSession(fn func(s *WriteSession) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	session := &WriteSession{
		messages:    model.CloneMessages(p.messages),
		binding:     p.binding,
		latestUsage: p.latestUsage,
	}
	if err := fn(session); err != nil {
		return err
	}
	p.messages = session.messages
	p.binding = session.binding
	p.latestUsage = session.latestUsage
	return nil
}

// WriteSession is the exclusive mutable view over a staged prompt.
type WriteSession struct {
	messages    []model.Message
	binding     model.Model
	latestUsage model.Usage
}

// Messages returns the staged messages.
func (s *WriteSession) Messages() []model.Message {
	return s.messages
}

// Model returns the staged model binding.
func (s *WriteSession) Model() model.Model {
	return s.binding
}

// SetModel re-binds the model for this session onward.
func (s *WriteSession) SetModel(binding model.Model) {
	s.binding = binding
}

// LatestTokenUsage returns the staged usage.
func (s *WriteSession) LatestTokenUsage() model.Usage {
	return s.latestUsage
}

// SetLatestTokenUsage records the token usage of the response that was
// just appended.
func (s *WriteSession) SetLatestTokenUsage(usage model.Usage) {
	s.latestUsage = usage
}

// AppendPrompt appends messages to the staged prompt.
func (s *WriteSession) AppendPrompt(messages ...model.Message) {
	s.messages = append(s.messages, messages...)
}

// WithMessages replaces the staged messages wholesale.
func (s *WriteSession) WithMessages(messages []model.Message) {
	s.messages = model.CloneMessages(messages)
}

// RewritePrompt applies fn to the staged messages and stores the
// result.
func (s *WriteSession) RewritePrompt(fn func(messages []model.Message) []model.Message) {
	s.messages = fn(s.messages)
}

// AppendResponse appends provider response messages and accumulates
// their usage as the latest token usage.
func (s *WriteSession) AppendResponse(messages []model.Message) {
	var usage model.Usage
	for _, msg := range messages {
		if msg.Meta.Usage != nil {
			usage.Add(*msg.Meta.Usage)
		}
	}
	s.messages = append(s.messages, messages...)
	s.latestUsage = usage
}
