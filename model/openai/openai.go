//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides a PromptExecutor backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/koog-community/koog-go/log"
	"github.com/koog-community/koog-go/model"
	"github.com/koog-community/koog-go/tool"
)

// Executor is an OpenAI-backed prompt executor.
type Executor struct {
	client openai.Client
}

// Option configures the executor.
type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	clientOpts []openaiopt.RequestOption
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithClientOptions appends raw client options.
func WithClientOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// New creates an OpenAI executor.
func New(opts ...Option) *Executor {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	clientOpts := o.clientOpts
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	return &Executor{client: openai.NewClient(clientOpts...)}
}

// Execute implements model.PromptExecutor.
func (e *Executor) Execute(ctx context.Context, req model.Request) ([]model.Message, error) {
	params := buildParams(req)
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, model.NewLLMCallError(req.Model.ID, err)
	}
	if len(resp.Choices) == 0 {
		return nil, model.NewLLMCallError(req.Model.ID, fmt.Errorf("no choices in response"))
	}
	return convertChoice(resp.Choices[0], req.Model, usageOf(resp)), nil
}

// ExecuteMultipleChoices implements model.PromptExecutor.
func (e *Executor) ExecuteMultipleChoices(ctx context.Context, req model.Request) ([]model.Choice, error) {
	params := buildParams(req)
	if req.NumberOfChoices > 1 {
		params.N = openai.Int(int64(req.NumberOfChoices))
	}
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, model.NewLLMCallError(req.Model.ID, err)
	}
	choices := make([]model.Choice, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		choices = append(choices, convertChoice(choice, req.Model, usageOf(resp)))
	}
	return choices, nil
}

// ExecuteStreaming implements model.PromptExecutor. Frames are emitted
// in provider arrival order; fragments of one tool call share an id.
func (e *Executor) ExecuteStreaming(ctx context.Context, req model.Request) (<-chan model.StreamFrame, error) {
	params := buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}
	stream := e.client.Chat.Completions.NewStreaming(ctx, params)

	frames := make(chan model.StreamFrame)
	go func() {
		defer close(frames)
		defer stream.Close()

		openCall := ""
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				frames <- model.StreamFrame{Type: model.FrameContentDelta, Content: delta.Content}
			}
			for _, call := range delta.ToolCalls {
				if call.ID != "" && call.ID != openCall {
					if openCall != "" {
						frames <- model.StreamFrame{Type: model.FrameToolCallEnd, ToolCallID: openCall}
					}
					openCall = call.ID
					frames <- model.StreamFrame{
						Type:       model.FrameToolCallStart,
						ToolCallID: call.ID,
						ToolName:   call.Function.Name,
					}
				}
				if call.Function.Arguments != "" {
					frames <- model.StreamFrame{
						Type:           model.FrameToolCallDelta,
						ToolCallID:     openCall,
						ArgumentsDelta: []byte(call.Function.Arguments),
					}
				}
			}
		}
		if openCall != "" {
			frames <- model.StreamFrame{Type: model.FrameToolCallEnd, ToolCallID: openCall}
		}
		if err := stream.Err(); err != nil {
			frames <- model.StreamFrame{Type: model.FrameError, Err: err}
			return
		}
		frames <- model.StreamFrame{Type: model.FrameFinish}
	}()
	return frames, nil
}

// Moderate implements model.PromptExecutor.
func (e *Executor) Moderate(ctx context.Context, req model.Request) (model.ModerationResult, error) {
	var text string
	for _, msg := range req.Messages {
		if msg.Content == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += msg.Content
	}
	resp, err := e.client.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return model.ModerationResult{}, model.NewLLMCallError(req.Model.ID, err)
	}
	result := model.ModerationResult{Categories: map[string]bool{}}
	if len(resp.Results) == 0 {
		return result, nil
	}
	result.Flagged = resp.Results[0].Flagged
	raw, err := json.Marshal(resp.Results[0].Categories)
	if err == nil {
		if err := json.Unmarshal(raw, &result.Categories); err != nil {
			log.Debugf("decode moderation categories: %v", err)
		}
	}
	return result, nil
}

// Close implements model.PromptExecutor.
func (e *Executor) Close() error { return nil }

// buildParams translates an engine request into chat completion params.
func buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model.ID),
		Messages: convertMessages(req.Messages),
		Tools:    convertTools(req.Tools),
	}
	if req.Model.Temperature != 0 {
		params.Temperature = openai.Float(req.Model.Temperature)
	}
	params.ToolChoice = convertToolChoice(req.ToolChoice)
	return params
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case model.RoleUser:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case model.RoleAssistant, model.RoleToolCall:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case model.RoleToolResult:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					ToolCallID: msg.ToolID,
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		default:
			log.Warnf("skipping message with unknown role %q", msg.Role)
		}
	}
	return result
}

func convertTools(decls []*tool.Declaration) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, decl := range decls {
		schemaBytes, err := json.Marshal(decl.InputSchema)
		if err != nil {
			log.Errorf("marshal schema of tool %s: %v", decl.Name, err)
			continue
		}
		var parameters shared.FunctionParameters
		if err := json.Unmarshal(schemaBytes, &parameters); err != nil {
			log.Errorf("unmarshal schema of tool %s: %v", decl.Name, err)
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        decl.Name,
				Description: openai.String(decl.Description),
				Parameters:  parameters,
			},
		})
	}
	return result
}

func convertToolChoice(choice model.ToolChoice) openai.ChatCompletionToolChoiceOptionUnionParam {
	switch choice.Mode {
	case model.ToolChoiceRequired:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
	case model.ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	case model.ToolChoiceNamed:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
			},
		}
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{}
	}
}

// convertChoice maps one provider choice to engine messages.
func convertChoice(choice openai.ChatCompletionChoice, binding model.Model, usage *model.Usage) []model.Message {
	meta := model.ResponseMeta{
		Timestamp: time.Now().UTC(),
		Usage:     usage,
		Provider:  binding.Provider,
		Model:     binding.ID,
	}

	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]model.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, call := range choice.Message.ToolCalls {
			calls = append(calls, model.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: []byte(call.Function.Arguments),
			})
		}
		msg := model.NewToolCallMessage(calls...)
		msg.Content = choice.Message.Content
		msg.Meta = meta
		return []model.Message{msg}
	}

	msg := model.NewAssistantMessage(choice.Message.Content)
	msg.Meta = meta
	return []model.Message{msg}
}

func usageOf(resp *openai.ChatCompletion) *model.Usage {
	if resp == nil {
		return nil
	}
	return &model.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
}
