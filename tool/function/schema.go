//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"reflect"
	"strings"

	"github.com/koog-community/koog-go/tool"
)

// generateSchema derives a tool.Schema from a Go type. Struct fields
// follow their json tags; pointer fields become nullable and optional.
func generateSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	return schemaForType(t, false)
}

func schemaForType(t reflect.Type, nullable bool) *tool.Schema {
	switch t.Kind() {
	case reflect.Pointer:
		return schemaForType(t.Elem(), true)
	case reflect.String:
		return &tool.Schema{Type: "string", Nullable: nullable}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean", Nullable: nullable}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer", Nullable: nullable}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number", Nullable: nullable}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{
			Type:     "array",
			Items:    schemaForType(t.Elem(), false),
			Nullable: nullable,
		}
	case reflect.Map:
		return &tool.Schema{Type: "object", Nullable: nullable}
	case reflect.Struct:
		return schemaForStruct(t, nullable)
	default:
		// Interfaces and other dynamic kinds accept anything.
		return &tool.Schema{Nullable: nullable}
	}
}

func schemaForStruct(t reflect.Type, nullable bool) *tool.Schema {
	properties := make(map[string]*tool.Schema)
	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitempty, skip := jsonFieldName(field)
		if skip {
			continue
		}
		fieldSchema := schemaForType(field.Type, false)
		if description := field.Tag.Get("description"); description != "" {
			fieldSchema.Description = description
		}
		properties[name] = fieldSchema
		if !omitempty && field.Type.Kind() != reflect.Pointer {
			required = append(required, name)
		}
	}
	return &tool.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
		Nullable:   nullable,
	}
}

func jsonFieldName(field reflect.StructField) (name string, omitempty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	if tag != "" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, part := range parts[1:] {
			if part == "omitempty" {
				omitempty = true
			}
		}
	}
	return name, omitempty, false
}
