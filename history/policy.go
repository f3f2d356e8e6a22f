//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package history provides prompt history compression policies.
//
// Policies are pure functions over a message history. Every policy
// preserves system messages, never drops the original first system
// message, and is idempotent on already-compressed input.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/koog-community/koog-go/model"
)

// summaryMarker prefixes messages produced by compression so that
// re-compression recognizes and keeps them.
const summaryMarker = "[history summary] "

// Policy compresses a message history.
type Policy interface {
	// Name identifies the policy.
	Name() string
	// Compress rewrites the history. The input slice is not mutated.
	Compress(messages []model.Message) []model.Message
}

// IsSummary reports whether the message was produced by a compression
// policy.
func IsSummary(msg model.Message) bool {
	return msg.Role == model.RoleAssistant && strings.HasPrefix(msg.Content, summaryMarker)
}

// summarize folds a run of messages into one summary message.
func summarize(messages []model.Message) model.Message {
	var b strings.Builder
	b.WriteString(summaryMarker)
	b.WriteString(fmt.Sprintf("%d earlier message(s): ", len(messages)))
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("; ")
		}
		content := msg.Content
		if msg.IsToolCall() && content == "" {
			names := make([]string, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				names = append(names, call.Name)
			}
			content = "called " + strings.Join(names, ", ")
		}
		const maxExcerpt = 120
		if len(content) > maxExcerpt {
			content = content[:maxExcerpt] + "..."
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(content)
	}
	return model.NewAssistantMessage(b.String())
}

// split separates the leading system block (and any summaries already
// present) from the compressible tail.
func splitCompressible(messages []model.Message) (kept, compressible []model.Message) {
	for _, msg := range messages {
		if msg.Role == model.RoleSystem || IsSummary(msg) {
			kept = append(kept, msg)
			continue
		}
		compressible = append(compressible, msg)
	}
	return kept, compressible
}

type wholeHistory struct {
	keepAllSystem bool
}

// WholeHistory compresses the entire non-system history into a single
// summary message. Only the first system message is guaranteed a
// position before the summary; later system messages are preserved in
// place.
func WholeHistory() Policy {
	return wholeHistory{}
}

// WholeHistoryMultipleSystemMessages behaves like WholeHistory and is
// explicit about preserving every system message of a multi-system
// prompt.
func WholeHistoryMultipleSystemMessages() Policy {
	return wholeHistory{keepAllSystem: true}
}

// Name implements Policy.
func (p wholeHistory) Name() string {
	if p.keepAllSystem {
		return "whole_history_multiple_system_messages"
	}
	return "whole_history"
}

// Compress implements Policy.
func (p wholeHistory) Compress(messages []model.Message) []model.Message {
	kept, compressible := splitCompressible(messages)
	result := append([]model.Message{}, kept...)
	if len(compressible) > 0 {
		result = append(result, summarize(compressible))
	}
	return result
}

type fromLastN struct {
	n int
}

// FromLastN keeps the last n non-system messages verbatim and
// summarizes everything before them.
func FromLastN(n int) Policy {
	if n < 0 {
		n = 0
	}
	return fromLastN{n: n}
}

// Name implements Policy.
func (p fromLastN) Name() string {
	return fmt.Sprintf("from_last_%d", p.n)
}

// Compress implements Policy.
func (p fromLastN) Compress(messages []model.Message) []model.Message {
	kept, compressible := splitCompressible(messages)
	result := append([]model.Message{}, kept...)
	if len(compressible) <= p.n {
		return append(result, compressible...)
	}
	cut := len(compressible) - p.n
	result = append(result, summarize(compressible[:cut]))
	return append(result, compressible[cut:]...)
}

type fromTimestamp struct {
	ts time.Time
}

// FromTimestamp keeps messages produced at or after ts verbatim and
// summarizes the earlier ones. Messages without a timestamp count as
// earlier.
func FromTimestamp(ts time.Time) Policy {
	return fromTimestamp{ts: ts}
}

// Name implements Policy.
func (p fromTimestamp) Name() string {
	return fmt.Sprintf("from_timestamp_%d", p.ts.UnixMilli())
}

// Compress implements Policy.
func (p fromTimestamp) Compress(messages []model.Message) []model.Message {
	kept, compressible := splitCompressible(messages)
	result := append([]model.Message{}, kept...)

	var older, newer []model.Message
	for _, msg := range compressible {
		if !msg.Meta.Timestamp.IsZero() && !msg.Meta.Timestamp.Before(p.ts) {
			newer = append(newer, msg)
			continue
		}
		older = append(older, msg)
	}
	if len(older) > 0 {
		result = append(result, summarize(older))
	}
	return append(result, newer...)
}

type chunked struct {
	size int
}

// Chunked summarizes the non-system history in chunks of the given
// size, producing one summary message per chunk.
func Chunked(size int) Policy {
	if size < 1 {
		size = 1
	}
	return chunked{size: size}
}

// Name implements Policy.
func (p chunked) Name() string {
	return fmt.Sprintf("chunked_%d", p.size)
}

// Compress implements Policy.
func (p chunked) Compress(messages []model.Message) []model.Message {
	kept, compressible := splitCompressible(messages)
	result := append([]model.Message{}, kept...)
	for start := 0; start < len(compressible); start += p.size {
		end := start + p.size
		if end > len(compressible) {
			end = len(compressible)
		}
		result = append(result, summarize(compressible[start:end]))
	}
	return result
}
