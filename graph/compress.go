//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"

	"github.com/koog-community/koog-go/history"
	"github.com/koog-community/koog-go/prompt"
)

// CompressHistoryNode rewrites the prompt history by a named policy.
// The input passes through unchanged so the node can sit on any edge.
type CompressHistoryNode struct {
	baseNode
	policy history.Policy

	// tokenThreshold, when positive, skips compression while the latest
	// response usage stays below it.
	tokenThreshold int
	counter        *history.TokenCounter
}

// CompressOption configures a history compression node.
type CompressOption func(*CompressHistoryNode)

// WithTokenThreshold compresses only when the history exceeds the
// given token count. The gate reads the session's latest reported
// usage first; when no response usage has been recorded yet it falls
// back to recounting the prompt with the counter. A nil counter gates
// on reported usage alone.
func WithTokenThreshold(tokens int, counter *history.TokenCounter) CompressOption {
	return func(n *CompressHistoryNode) {
		n.tokenThreshold = tokens
		n.counter = counter
	}
}

// NewCompressHistoryNode creates a compression node for the policy.
func NewCompressHistoryNode(name string, policy history.Policy, opts ...CompressOption) *CompressHistoryNode {
	n := &CompressHistoryNode{baseNode: baseNode{name: name}, policy: policy}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Execute implements Node.
func (n *CompressHistoryNode) Execute(_ context.Context, rc *Context, input any) (any, error) {
	if n.tokenThreshold > 0 && n.belowThreshold(rc) {
		return input, nil
	}
	if err := rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.RewritePrompt(n.policy.Compress)
		return nil
	}); err != nil {
		return nil, err
	}
	return input, nil
}

// belowThreshold reports whether the history is still under the token
// threshold. The session's latest reported usage is the fast path; a
// recount runs only when no usage has been recorded yet.
func (n *CompressHistoryNode) belowThreshold(rc *Context) bool {
	if usage := rc.Prompt.LatestTokenUsage(); usage.TotalTokens > 0 {
		return usage.TotalTokens < n.tokenThreshold
	}
	if n.counter != nil {
		return n.counter.Count(rc.Prompt.Messages()) < n.tokenThreshold
	}
	return false
}
