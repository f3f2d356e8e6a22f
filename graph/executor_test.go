//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koog-community/koog-go/checkpoint"
	"github.com/koog-community/koog-go/checkpoint/inmemory"
	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/prompt"
	"github.com/koog-community/koog-go/storage"
	"github.com/koog-community/koog-go/tool"
)

// scriptedLLM replays a fixed sequence of responses and records the
// requests it saw.
type scriptedLLM struct {
	responses [][]model.Message
	requests  []model.Request
}

func (s *scriptedLLM) Execute(_ context.Context, req model.Request) ([]model.Message, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return []model.Message{model.NewAssistantMessage("out of script")}, nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func (s *scriptedLLM) ExecuteStreaming(context.Context, model.Request) (<-chan model.StreamFrame, error) {
	ch := make(chan model.StreamFrame)
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) ExecuteMultipleChoices(ctx context.Context, req model.Request) ([]model.Choice, error) {
	messages, err := s.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return []model.Choice{messages}, nil
}

func (s *scriptedLLM) Moderate(context.Context, model.Request) (model.ModerationResult, error) {
	return model.ModerationResult{}, nil
}

func (s *scriptedLLM) Close() error { return nil }

type stubEnv struct {
	executed [][]tool.Call
	results  []tool.Result
	problems []error
}

func (s *stubEnv) ExecuteTools(_ context.Context, calls []tool.Call) ([]tool.Result, error) {
	s.executed = append(s.executed, calls)
	if s.results != nil {
		return s.results, nil
	}
	results := make([]tool.Result, len(calls))
	for i, call := range calls {
		results[i] = tool.Result{ID: call.ID, Name: call.Name, Content: "ok"}
	}
	return results, nil
}

func (s *stubEnv) ReportProblem(err error) { s.problems = append(s.problems, err) }

func newTestContext(llm model.PromptExecutor, binding model.Model) *Context {
	rc := NewContext()
	rc.RunID = "run-1"
	rc.AgentID = "agent-1"
	rc.Prompt = prompt.New(binding)
	rc.Storage = storage.NewStore()
	rc.State = storage.NewStateManager()
	rc.Executor = llm
	rc.Environment = &stubEnv{}
	return rc
}

func buildLinear(t *testing.T, name string, nodes ...Node) *Strategy {
	t.Helper()
	b := NewBuilder(name)
	previous := b.Start()
	for _, node := range nodes {
		b.AddNode(node)
		b.AddEdge(previous, node.Name())
		previous = node.Name()
	}
	b.AddEdge(previous, b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)
	return strategy
}

func TestLinearStrategyRuns(t *testing.T) {
	upper := NewTransformNode[string]("upper", func(_ context.Context, _ *Context, input string) (any, error) {
		return strings.ToUpper(input), nil
	})
	strategy := buildLinear(t, "linear", upper)
	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})

	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
	// Only upper counts; the start and finish markers are free.
	assert.Equal(t, 1, rc.Iterations())
}

func TestGuardedEdgesFireFirstMatch(t *testing.T) {
	classify := NewTransformNode[int]("classify", func(_ context.Context, _ *Context, input int) (any, error) {
		return input, nil
	})
	big := NewTransformNode[int]("big", func(_ context.Context, _ *Context, _ int) (any, error) {
		return "big", nil
	})
	small := NewTransformNode[int]("small", func(_ context.Context, _ *Context, _ int) (any, error) {
		return "small", nil
	})

	b := NewBuilder("branching")
	b.AddNode(classify)
	b.AddNode(big)
	b.AddNode(small)
	b.AddEdge(b.Start(), "classify")
	b.AddEdge("classify", "big", WithGuard(func(_ *Context, output any) bool {
		return output.(int) > 10
	}))
	b.AddEdge("classify", "small")
	b.AddEdge("big", b.Finish())
	b.AddEdge("small", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	out, err := NewExecutor(strategy).Execute(context.Background(), rc, 42)
	require.NoError(t, err)
	assert.Equal(t, "big", out)

	rc = newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	out, err = NewExecutor(strategy).Execute(context.Background(), rc, 3)
	require.NoError(t, err)
	assert.Equal(t, "small", out)
}

func TestEdgeTransformMapsValues(t *testing.T) {
	double := NewTransformNode[int]("double", func(_ context.Context, _ *Context, input int) (any, error) {
		return input * 2, nil
	})
	b := NewBuilder("transforming")
	b.AddNode(double)
	b.AddEdge(b.Start(), "double")
	b.AddEdge("double", b.Finish(), WithTransform(func(_ *Context, output any) (any, error) {
		return output.(int) + 1, nil
	}))
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	out, err := NewExecutor(strategy).Execute(context.Background(), rc, 5)
	require.NoError(t, err)
	assert.Equal(t, 11, out)
}

func TestNoMatchingEdgeFailsWithQualifiedPath(t *testing.T) {
	stuck := NewTransformNode[any]("stuck", func(_ context.Context, _ *Context, input any) (any, error) {
		return input, nil
	})
	b := NewBuilder("deadend")
	b.AddNode(stuck)
	b.AddEdge(b.Start(), "stuck")
	b.AddEdge("stuck", b.Finish(), WithGuard(func(*Context, any) bool { return false }))
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	_, err = NewExecutor(strategy).Execute(context.Background(), rc, nil)
	var noRoute *NoRouteError
	require.ErrorAs(t, err, &noRoute)
	assert.Equal(t, "deadend:stuck", noRoute.Node)
}

func TestIterationLimitStopsLoops(t *testing.T) {
	spin := NewTransformNode[any]("spin", func(_ context.Context, _ *Context, input any) (any, error) {
		return input, nil
	})
	b := NewBuilder("loop")
	b.AddNode(spin)
	b.AddEdge(b.Start(), "spin")
	b.AddEdge("spin", "spin")
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.Config.MaxAgentIterations = 5
	_, err = NewExecutor(strategy).Execute(context.Background(), rc, nil)
	var limit *IterationLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 5, limit.Limit)
}

func TestIterationCapOfOneAllowsOneLLMCall(t *testing.T) {
	b := NewBuilder("single-call")
	b.AddNode(NewLLMRequestNode("ask"))
	b.AddEdge(b.Start(), "ask")
	b.AddEdge("ask", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	llm := &scriptedLLM{responses: [][]model.Message{
		{model.NewAssistantMessage("answer")},
	}}
	rc := newTestContext(llm, model.Model{ID: "m"})
	rc.Config.MaxAgentIterations = 1

	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "question")
	require.NoError(t, err)
	msg, ok := out.(model.Message)
	require.True(t, ok)
	assert.Equal(t, "answer", msg.Content)
	assert.Equal(t, 1, rc.Iterations())
}

func TestIterationCapOfOneRejectsSecondNode(t *testing.T) {
	passthrough := func(_ context.Context, _ *Context, input any) (any, error) {
		return input, nil
	}
	first := NewTransformNode[any]("first", passthrough)
	second := NewTransformNode[any]("second", passthrough)
	strategy := buildLinear(t, "tight", first, second)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.Config.MaxAgentIterations = 1
	_, err := NewExecutor(strategy).Execute(context.Background(), rc, nil)
	var limit *IterationLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 1, limit.Limit)
}

func TestCancellationStopsExecution(t *testing.T) {
	strategy := buildLinear(t, "cancellable", namedNode("work"))
	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExecutor(strategy).Execute(ctx, rc, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequiredToolCallUsesToolChoiceWhenSupported(t *testing.T) {
	llm := &scriptedLLM{responses: [][]model.Message{
		{model.NewToolCallMessage(model.ToolCall{ID: "c1", Name: "search", Arguments: []byte(`{}`)})},
	}}
	ask := NewLLMRequestNode("ask", RequiringToolCall())
	strategy := buildLinear(t, "choice", ask)

	binding := model.Model{ID: "m", Capabilities: []model.Capability{model.CapabilityToolChoice}}
	rc := newTestContext(llm, binding)

	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "find it")
	require.NoError(t, err)

	msg, ok := out.(model.Message)
	require.True(t, ok)
	assert.True(t, msg.IsToolCall())
	require.Len(t, llm.requests, 1)
	assert.Equal(t, model.ToolChoiceRequired, llm.requests[0].ToolChoice.Mode)
}

func TestRequiredToolCallRetriesWithSyntheticMessage(t *testing.T) {
	// Model without tool-choice support keeps chatting; every attempt
	// pushes the synthetic correction before retrying.
	llm := &scriptedLLM{responses: [][]model.Message{
		{model.NewAssistantMessage("let me explain")},
		{model.NewAssistantMessage("as I was saying")},
		{model.NewAssistantMessage("anyway")},
	}}
	ask := NewLLMRequestNode("ask", RequiringToolCall())
	strategy := buildLinear(t, "retry", ask)

	rc := newTestContext(llm, model.Model{ID: "plain"})
	_, err := NewExecutor(strategy).Execute(context.Background(), rc, "call the tool")

	var unsupported *ToolChoiceUnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "plain", unsupported.Model)
	assert.Equal(t, DefaultMaxAttemptsWithoutToolChoice, unsupported.Attempts)

	var synthetic int
	for _, msg := range rc.Prompt.Messages() {
		if msg.Role == model.RoleUser && msg.Content == ToolChoiceRetryMessage {
			synthetic++
		}
	}
	assert.Equal(t, DefaultMaxAttemptsWithoutToolChoice, synthetic)
}

func TestRequiredToolCallRetrySucceedsMidway(t *testing.T) {
	llm := &scriptedLLM{responses: [][]model.Message{
		{model.NewAssistantMessage("chatting")},
		{model.NewToolCallMessage(model.ToolCall{ID: "c1", Name: "search", Arguments: []byte(`{}`)})},
	}}
	ask := NewLLMRequestNode("ask", RequiringToolCall())
	strategy := buildLinear(t, "recovered", ask)

	rc := newTestContext(llm, model.Model{ID: "plain"})
	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "go")
	require.NoError(t, err)
	msg, ok := out.(model.Message)
	require.True(t, ok)
	assert.True(t, msg.IsToolCall())
	assert.Len(t, llm.requests, 2)
}

func TestToolCycle(t *testing.T) {
	llm := &scriptedLLM{responses: [][]model.Message{
		{model.NewToolCallMessage(model.ToolCall{ID: "c1", Name: "lookup", Arguments: []byte(`{"q":"x"}`)})},
		{model.NewAssistantMessage("final answer")},
	}}
	ask := NewLLMRequestNode("ask")
	execute := NewToolExecuteNode("execute")
	send := NewToolResultSendNode("send")

	b := NewBuilder("react")
	b.AddNode(ask)
	b.AddNode(execute)
	b.AddNode(send)
	b.AddEdge(b.Start(), "ask")
	b.AddEdge("ask", "execute", WithGuard(func(_ *Context, output any) bool {
		msg, ok := output.(model.Message)
		return ok && msg.IsToolCall()
	}))
	b.AddEdge("ask", b.Finish())
	b.AddEdge("execute", "send")
	b.AddEdge("send", "execute", WithGuard(func(_ *Context, output any) bool {
		msg, ok := output.(model.Message)
		return ok && msg.IsToolCall()
	}))
	b.AddEdge("send", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	env := &stubEnv{}
	rc := newTestContext(llm, model.Model{ID: "m"})
	rc.Environment = env

	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "what is x")
	require.NoError(t, err)

	msg, ok := out.(model.Message)
	require.True(t, ok)
	assert.Equal(t, "final answer", msg.Content)
	require.Len(t, env.executed, 1)
	assert.Equal(t, "lookup", env.executed[0][0].Name)

	// Prompt holds the full cycle: user, tool call, tool result, answer.
	roles := make([]model.Role, 0)
	for _, m := range rc.Prompt.Messages() {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []model.Role{
		model.RoleUser, model.RoleToolCall, model.RoleToolResult, model.RoleAssistant,
	}, roles)
}

func TestAutomaticPersistenceCheckpointsNodeEntry(t *testing.T) {
	upper := NewTransformNode[string]("upper", func(_ context.Context, _ *Context, input string) (any, error) {
		return strings.ToUpper(input), nil
	})
	strategy := buildLinear(t, "persisted", upper)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.Config.EnableAutomaticPersistence = true
	rc.Checkpoints = checkpoint.NewManager("agent-1", inmemory.New())

	_, err := NewExecutor(strategy).Execute(context.Background(), rc, "hi")
	require.NoError(t, err)

	list, err := rc.Checkpoints.ListCheckpoints(context.Background())
	require.NoError(t, err)
	// Start and finish are not checkpointed.
	require.Len(t, list, 1)
	assert.Equal(t, "upper", list[0].NodeID)
	assert.Equal(t, "string", list[0].LastInputType)
	assert.JSONEq(t, `"hi"`, string(list[0].LastInput))
}

func TestRollbackResumesAtCheckpointedNode(t *testing.T) {
	var inputs []string
	record := NewTransformNode[string]("record", func(_ context.Context, _ *Context, input string) (any, error) {
		inputs = append(inputs, input)
		return input, nil
	})
	strategy := buildLinear(t, "resumable", record)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.Config.EnableAutomaticPersistence = true
	rc.Checkpoints = checkpoint.NewManager("agent-1", inmemory.New())

	executor := NewExecutor(strategy)
	_, err := executor.Execute(context.Background(), rc, "first")
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, inputs)

	data, err := rc.Checkpoints.RollbackToLatestCheckpoint(context.Background())
	require.NoError(t, err)
	rc.SetPendingRollback(data)

	// The re-run ignores the fresh input and resumes at the recorded
	// node with the checkpointed one.
	out, err := executor.Execute(context.Background(), rc, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", out)
	assert.Equal(t, []string{"first", "first"}, inputs)
	assert.False(t, rc.HasPendingRollback())
}

func TestRollbackRunsActionsAndReplacesHistory(t *testing.T) {
	strategy := buildLinear(t, "restorable", namedNode("work"))

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	require.NoError(t, rc.Prompt.WriteSession(func(s *prompt.WriteSession) error {
		s.AppendPrompt(model.NewUserMessage("stale"))
		return nil
	}))

	var undone bool
	rc.SetPendingRollback(&checkpoint.AgentContextData{
		NodeID:         "work",
		MessageHistory: []model.Message{model.NewUserMessage("restored")},
		RollbackActions: []checkpoint.RollbackAction{
			func(context.Context) error { undone = true; return nil },
		},
		Strategy: checkpoint.RollbackDefault,
	})

	_, err := NewExecutor(strategy).Execute(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.True(t, undone)

	messages := rc.Prompt.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "restored", messages[0].Content)
}

func TestMessageHistoryOnlyRollbackKeepsExecutionPoint(t *testing.T) {
	var ran int
	strategy := buildLinear(t, "historyonly",
		NewTransformNode[any]("work", func(_ context.Context, _ *Context, input any) (any, error) {
			ran++
			return input, nil
		}))

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.SetPendingRollback(&checkpoint.AgentContextData{
		NodeID:         "work",
		MessageHistory: []model.Message{model.NewUserMessage("only history")},
		Strategy:       checkpoint.RollbackMessageHistoryOnly,
	})

	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "fresh")
	require.NoError(t, err)
	// Execution starts from the beginning with the fresh input.
	assert.Equal(t, "fresh", out)
	assert.Equal(t, 1, ran)

	messages := rc.Prompt.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "only history", messages[0].Content)
}

func TestRollbackIntoNestedSubgraph(t *testing.T) {
	var leafInputs []string
	leaf := NewTransformNode[string]("leaf", func(_ context.Context, _ *Context, input string) (any, error) {
		leafInputs = append(leafInputs, input)
		return input, nil
	})
	inner := NewBuilder("inner")
	inner.AddNode(leaf)
	inner.AddEdge(inner.Start(), "leaf")
	inner.AddEdge("leaf", inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("outer")
	b.AddNode(NewSubgraphNode(body))
	b.AddEdge(b.Start(), "inner")
	b.AddEdge("inner", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.SetPendingRollback(&checkpoint.AgentContextData{
		NodeID:    "leaf",
		LastInput: []byte(`"restored input"`),
		Strategy:  checkpoint.RollbackDefault,
	})

	out, err := NewExecutor(strategy).Execute(context.Background(), rc, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "restored input", out)
	assert.Equal(t, []string{"restored input"}, leafInputs)
}

func TestRollbackToUnknownNodeFails(t *testing.T) {
	strategy := buildLinear(t, "strict", namedNode("work"))
	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	rc.SetPendingRollback(&checkpoint.AgentContextData{
		NodeID:   "ghost",
		Strategy: checkpoint.RollbackDefault,
	})

	_, err := NewExecutor(strategy).Execute(context.Background(), rc, nil)
	var notFound *NodeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.NodeID)
}

func TestSubgraphRetryReRunsBody(t *testing.T) {
	var attempts int
	flaky := NewTransformNode[any]("flaky", func(_ context.Context, _ *Context, input any) (any, error) {
		attempts++
		return attempts, nil
	})
	inner := NewBuilder("flakybody")
	inner.AddNode(flaky)
	inner.AddEdge(inner.Start(), "flaky")
	inner.AddEdge("flaky", inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("retrying")
	b.AddNode(NewSubgraphNode(body, WithRetry(3, func(_ *Context, output any) bool {
		return output.(int) >= 2
	})))
	b.AddEdge(b.Start(), "flakybody")
	b.AddEdge("flakybody", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	out, err := NewExecutor(strategy).Execute(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out)
	assert.Equal(t, 2, attempts)
}

func TestSubgraphRetryExhaustedReturnsLastOutput(t *testing.T) {
	var attempts int
	stubborn := NewTransformNode[any]("stubborn", func(_ context.Context, _ *Context, _ any) (any, error) {
		attempts++
		return "still wrong", nil
	})
	inner := NewBuilder("stubbornbody")
	inner.AddNode(stubborn)
	inner.AddEdge(inner.Start(), "stubborn")
	inner.AddEdge("stubborn", inner.Finish())
	body, err := inner.BuildSubgraph()
	require.NoError(t, err)

	b := NewBuilder("exhausted")
	b.AddNode(NewSubgraphNode(body, WithRetry(2, func(*Context, any) bool { return false })))
	b.AddEdge(b.Start(), "stubbornbody")
	b.AddEdge("stubbornbody", b.Finish())
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(&scriptedLLM{}, model.Model{ID: "m"})
	out, err := NewExecutor(strategy).Execute(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "still wrong", out)
	assert.Equal(t, 2, attempts)
}

func TestToolSelectionScopesDeclarations(t *testing.T) {
	registry := tool.NewRegistry()
	for _, name := range []string{"search", "write", "delete"} {
		require.NoError(t, registry.Register(&declOnlyTool{name: name}))
	}

	llm := &scriptedLLM{responses: [][]model.Message{
		{model.NewAssistantMessage("scoped")},
	}}
	ask := NewLLMRequestNode("ask")

	b := NewBuilder("scopedtools")
	b.AddNode(ask)
	b.AddEdge(b.Start(), "ask")
	b.AddEdge("ask", b.Finish())
	b.WithToolSelection(ToolsNamed("search"))
	strategy, err := b.Build()
	require.NoError(t, err)

	rc := newTestContext(llm, model.Model{ID: "m"})
	rc.Tools = registry
	_, err = NewExecutor(strategy).Execute(context.Background(), rc, "go")
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	require.Len(t, llm.requests[0].Tools, 1)
	assert.Equal(t, "search", llm.requests[0].Tools[0].Name)
}

type declOnlyTool struct {
	name string
}

func (d *declOnlyTool) Declaration() *tool.Declaration {
	return &tool.Declaration{Name: d.name, Description: "test tool"}
}

func (d *declOnlyTool) Call(context.Context, []byte) (any, error) {
	return nil, nil
}
