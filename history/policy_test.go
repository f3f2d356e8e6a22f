//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koog-community/koog-go/model"
)

func conversation() []model.Message {
	return []model.Message{
		model.NewSystemMessage("you are terse"),
		model.NewUserMessage("m1"),
		model.NewAssistantMessage("m2"),
		model.NewUserMessage("m3"),
		model.NewAssistantMessage("m4"),
		model.NewUserMessage("m5"),
	}
}

func TestWholeHistoryCollapsesToOneSummary(t *testing.T) {
	out := WholeHistory().Compress(conversation())

	require.Len(t, out, 2)
	assert.Equal(t, model.RoleSystem, out[0].Role)
	assert.True(t, IsSummary(out[1]))
	assert.Contains(t, out[1].Content, "5 earlier message(s)")
}

func TestChunkedProducesOneSummaryPerChunk(t *testing.T) {
	// 5 compressible messages in chunks of 2: summaries over
	// {m1,m2}, {m3,m4}, {m5}.
	out := Chunked(2).Compress(conversation())

	require.Len(t, out, 4)
	assert.Equal(t, model.RoleSystem, out[0].Role)
	for _, msg := range out[1:] {
		assert.True(t, IsSummary(msg))
	}
	assert.Contains(t, out[1].Content, "m1")
	assert.Contains(t, out[1].Content, "m2")
	assert.Contains(t, out[2].Content, "m3")
	assert.Contains(t, out[3].Content, "m5")
}

func TestFromLastNKeepsTailVerbatim(t *testing.T) {
	out := FromLastN(2).Compress(conversation())

	require.Len(t, out, 4)
	assert.Equal(t, model.RoleSystem, out[0].Role)
	assert.True(t, IsSummary(out[1]))
	assert.Equal(t, "m4", out[2].Content)
	assert.Equal(t, "m5", out[3].Content)
}

func TestFromLastNShortHistoryUntouched(t *testing.T) {
	messages := conversation()
	out := FromLastN(10).Compress(messages)
	assert.Equal(t, messages, out)
}

func TestFromTimestampSplitsByResponseTime(t *testing.T) {
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	older := model.NewAssistantMessage("old")
	older.Meta.Timestamp = cutoff.Add(-time.Hour)
	newer := model.NewAssistantMessage("new")
	newer.Meta.Timestamp = cutoff.Add(time.Hour)
	untimed := model.NewUserMessage("untimed")

	out := FromTimestamp(cutoff).Compress([]model.Message{
		model.NewSystemMessage("sys"), older, untimed, newer,
	})

	require.Len(t, out, 3)
	assert.True(t, IsSummary(out[1]))
	// Messages without a timestamp count as earlier.
	assert.Contains(t, out[1].Content, "untimed")
	assert.Equal(t, "new", out[2].Content)
}

func TestMultipleSystemMessagesPreserved(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("first"),
		model.NewUserMessage("m1"),
		model.NewSystemMessage("second"),
		model.NewUserMessage("m2"),
	}
	out := WholeHistoryMultipleSystemMessages().Compress(messages)

	var system []string
	for _, msg := range out {
		if msg.Role == model.RoleSystem {
			system = append(system, msg.Content)
		}
	}
	assert.Equal(t, []string{"first", "second"}, system)
}

func TestPoliciesAreIdempotent(t *testing.T) {
	policies := []Policy{
		WholeHistory(),
		WholeHistoryMultipleSystemMessages(),
		FromLastN(2),
		FromTimestamp(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		Chunked(2),
	}
	for _, policy := range policies {
		t.Run(policy.Name(), func(t *testing.T) {
			once := policy.Compress(conversation())
			twice := policy.Compress(once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestSummarizeNamesToolCalls(t *testing.T) {
	call := model.NewToolCallMessage(model.ToolCall{ID: "c1", Name: "search", Arguments: []byte(`{}`)})
	out := WholeHistory().Compress([]model.Message{call})

	require.Len(t, out, 1)
	assert.Contains(t, out[0].Content, "called search")
}

func TestCompressDoesNotMutateInput(t *testing.T) {
	messages := conversation()
	snapshot := append([]model.Message(nil), messages...)
	_ = Chunked(2).Compress(messages)
	assert.Equal(t, snapshot, messages)
}
