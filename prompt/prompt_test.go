//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package prompt

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koog-community/koog-go/model"
)

func testModel() model.Model {
	return model.Model{Provider: "openai", ID: "gpt-4o"}
}

func TestWriteSessionPublishesAtomically(t *testing.T) {
	p := New(testModel(), model.NewSystemMessage("be helpful"))

	err := p.WriteSession(func(s *WriteSession) error {
		s.AppendPrompt(model.NewUserMessage("hi"))
		s.AppendPrompt(model.NewUserMessage("there"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
}

func TestWriteSessionErrorDiscardsStagedState(t *testing.T) {
	p := New(testModel(), model.NewSystemMessage("be helpful"))
	boom := errors.New("boom")

	err := p.WriteSession(func(s *WriteSession) error {
		s.AppendPrompt(model.NewUserMessage("half-written"))
		s.SetModel(model.Model{ID: "other"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed session is visible.
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "gpt-4o", p.Model().ID)
}

func TestAppendResponseAccumulatesUsage(t *testing.T) {
	p := New(testModel())

	first := model.NewAssistantMessage("a")
	first.Meta.Usage = &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	second := model.NewAssistantMessage("b")
	second.Meta.Usage = &model.Usage{PromptTokens: 0, CompletionTokens: 7, TotalTokens: 7}

	require.NoError(t, p.WriteSession(func(s *WriteSession) error {
		s.AppendResponse([]model.Message{first, second})
		return nil
	}))

	usage := p.LatestTokenUsage()
	assert.Equal(t, 10, usage.PromptTokens)
	assert.Equal(t, 12, usage.CompletionTokens)
	assert.Equal(t, 22, usage.TotalTokens)

	// The next response replaces, not accumulates across sessions.
	third := model.NewAssistantMessage("c")
	third.Meta.Usage = &model.Usage{TotalTokens: 3}
	require.NoError(t, p.WriteSession(func(s *WriteSession) error {
		s.AppendResponse([]model.Message{third})
		return nil
	}))
	assert.Equal(t, 3, p.LatestTokenUsage().TotalTokens)
}

func TestRewritePromptReplacesMessages(t *testing.T) {
	p := New(testModel(),
		model.NewSystemMessage("sys"),
		model.NewUserMessage("one"),
		model.NewUserMessage("two"),
	)

	require.NoError(t, p.WriteSession(func(s *WriteSession) error {
		s.RewritePrompt(func(messages []model.Message) []model.Message {
			return messages[:1]
		})
		return nil
	}))
	assert.Equal(t, 1, p.Len())
	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, model.RoleSystem, last.Role)
}

func TestCopyIsIndependent(t *testing.T) {
	p := New(testModel(), model.NewUserMessage("base"))
	fork := p.Copy()

	require.NoError(t, fork.WriteSession(func(s *WriteSession) error {
		s.AppendPrompt(model.NewUserMessage("fork only"))
		return nil
	}))

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, fork.Len())
}

func TestMessagesReturnsCopy(t *testing.T) {
	p := New(testModel(), model.NewUserMessage("original"))
	messages := p.Messages()
	messages[0].Content = "mutated"

	fresh := p.Messages()
	assert.Equal(t, "original", fresh[0].Content)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	p := New(testModel())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = p.WriteSession(func(s *WriteSession) error {
				s.AppendPrompt(model.NewUserMessage("x"))
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = p.ReadSession(func(s ReadAccess) error {
				_ = s.Messages()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, p.Len())
}
