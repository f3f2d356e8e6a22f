//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	City  string   `json:"city" description:"city to look up"`
	Days  int      `json:"days,omitempty"`
	Units *string  `json:"units"`
	Tags  []string `json:"tags,omitempty"`
	note  string
}

type weatherResult struct {
	Forecast string `json:"forecast"`
}

func TestCallDecodesArguments(t *testing.T) {
	ft := New(func(_ context.Context, args weatherArgs) (weatherResult, error) {
		return weatherResult{Forecast: "sunny in " + args.City}, nil
	}, WithName("get_weather"), WithDescription("looks up the weather"))

	out, err := ft.Call(context.Background(), []byte(`{"city":"Oslo"}`))
	require.NoError(t, err)
	assert.Equal(t, weatherResult{Forecast: "sunny in Oslo"}, out)
}

func TestCallEmptyArgumentsUseZeroValue(t *testing.T) {
	ft := New(func(_ context.Context, args weatherArgs) (string, error) {
		return args.City, nil
	}, WithName("echo_city"), WithDescription("echoes"))

	out, err := ft.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCallMalformedArgumentsFail(t *testing.T) {
	ft := New(func(context.Context, weatherArgs) (string, error) {
		return "", nil
	}, WithName("strict"), WithDescription("strict"))

	_, err := ft.Call(context.Background(), []byte(`{"city":`))
	assert.Error(t, err)
}

func TestCallPropagatesFunctionError(t *testing.T) {
	boom := errors.New("lookup failed")
	ft := New(func(context.Context, weatherArgs) (string, error) {
		return "", boom
	}, WithName("failing"), WithDescription("fails"))

	_, err := ft.Call(context.Background(), []byte(`{"city":"x"}`))
	assert.ErrorIs(t, err, boom)
}

func TestDeclarationSchemaGeneration(t *testing.T) {
	ft := New(func(context.Context, weatherArgs) (weatherResult, error) {
		return weatherResult{}, nil
	}, WithName("get_weather"), WithDescription("looks up the weather"))

	decl := ft.Declaration()
	assert.Equal(t, "get_weather", decl.Name)

	in := decl.InputSchema
	require.NotNil(t, in)
	assert.Equal(t, "object", in.Type)

	require.Contains(t, in.Properties, "city")
	assert.Equal(t, "string", in.Properties["city"].Type)
	assert.Equal(t, "city to look up", in.Properties["city"].Description)

	require.Contains(t, in.Properties, "days")
	assert.Equal(t, "integer", in.Properties["days"].Type)

	// Pointer fields are nullable and never required; omitempty fields
	// are optional.
	require.Contains(t, in.Properties, "units")
	assert.True(t, in.Properties["units"].Nullable)
	assert.ElementsMatch(t, []string{"city"}, in.Required)

	require.Contains(t, in.Properties, "tags")
	assert.Equal(t, "array", in.Properties["tags"].Type)
	assert.Equal(t, "string", in.Properties["tags"].Items.Type)

	// Unexported fields are skipped.
	assert.NotContains(t, in.Properties, "note")

	out := decl.OutputSchema
	require.NotNil(t, out)
	assert.Equal(t, "object", out.Type)
	assert.Contains(t, out.Properties, "forecast")
}

func TestCustomSchemasAreKeptVerbatim(t *testing.T) {
	ft := New(func(context.Context, map[string]any) (string, error) {
		return "", nil
	},
		WithName("raw"),
		WithDescription("raw schema"),
		WithInputSchema(generateSchema(nil)),
	)

	decl := ft.Declaration()
	assert.Equal(t, "object", decl.InputSchema.Type)
	assert.Empty(t, decl.InputSchema.Properties)
}
