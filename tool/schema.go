//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a JSON-schema style description of a tool parameter or
// payload. It supports the composite anyOf form and nullable variants.
type Schema struct {
	// Type is the JSON type: "object", "array", "string", "number",
	// "integer", "boolean" or "null".
	Type string `json:"type,omitempty"`
	// Description documents the value for the model.
	Description string `json:"description,omitempty"`
	// Properties lists object member schemas.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Required lists mandatory object members.
	Required []string `json:"required,omitempty"`
	// Items is the element schema for arrays.
	Items *Schema `json:"items,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`
	// AnyOf is the composite variant form.
	AnyOf []*Schema `json:"anyOf,omitempty"`
	// Nullable additionally permits null. Encoded as anyOf with a null
	// branch when marshalled for validation.
	Nullable bool `json:"-"`
}

// MarshalJSON encodes the schema, expanding Nullable into an anyOf
// with a null branch so that standard validators understand it.
func (s *Schema) MarshalJSON() ([]byte, error) {
	type plain Schema
	if !s.Nullable {
		return json.Marshal((*plain)(s))
	}
	clone := *s
	clone.Nullable = false
	return json.Marshal(map[string]any{
		"anyOf": []any{
			(*plain)(&clone),
			map[string]string{"type": "null"},
		},
	})
}

// ObjectSchema builds an object schema from property schemas.
func ObjectSchema(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: properties, Required: required}
}

// StringSchema builds a string schema with a description.
func StringSchema(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// NumberSchema builds a number schema with a description.
func NumberSchema(description string) *Schema {
	return &Schema{Type: "number", Description: description}
}

// IntegerSchema builds an integer schema with a description.
func IntegerSchema(description string) *Schema {
	return &Schema{Type: "integer", Description: description}
}

// BooleanSchema builds a boolean schema with a description.
func BooleanSchema(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// AnyOfSchema builds a composite schema matching any listed variant.
func AnyOfSchema(variants ...*Schema) *Schema {
	return &Schema{AnyOf: variants}
}

// Compile compiles the schema into a validator. The compiled form is
// cached by the registry so tools pay the cost once.
func (s *Schema) Compile() (*jsonschema.Schema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// ValidateArguments decodes jsonArgs and validates them against the
// compiled schema. A nil compiled schema only checks that the payload
// is valid JSON.
func ValidateArguments(compiled *jsonschema.Schema, jsonArgs []byte) error {
	if len(jsonArgs) == 0 {
		jsonArgs = []byte("{}")
	}
	var decoded any
	if err := json.Unmarshal(jsonArgs, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if compiled == nil {
		return nil
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("validate arguments: %w", err)
	}
	return nil
}
