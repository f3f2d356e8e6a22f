//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package history

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/koog-community/koog-go/log"
	"github.com/koog-community/koog-go/model"
)

// defaultEncoding is the BPE encoding used when the model has no
// specific mapping.
const defaultEncoding = "cl100k_base"

// TokenCounter estimates the token footprint of a message history so
// compression nodes can gate on it.
type TokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter creates a token counter. The BPE encoding is loaded
// lazily on first use; if it cannot be loaded the counter falls back to
// a bytes/4 approximation.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the estimated token count of the messages.
func (c *TokenCounter) Count(messages []model.Message) int {
	c.once.Do(func() {
		encoding, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			log.Warnf("token counter: load encoding %s: %v, using approximation", defaultEncoding, err)
			return
		}
		c.encoding = encoding
	})

	total := 0
	for _, msg := range messages {
		total += c.countText(msg.Content)
		for _, call := range msg.ToolCalls {
			total += c.countText(call.Name)
			total += c.countText(string(call.Arguments))
		}
		// Per-message framing overhead.
		total += 4
	}
	return total
}

func (c *TokenCounter) countText(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return approximateTokens(text)
}

// approximateTokens estimates tokens as one per four bytes, the common
// rule of thumb for English text.
func approximateTokens(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 {
		n = 1
	}
	return n
}
