// Package validate checks model output against the expected shape. Every
// check returns an Outcome value; nothing here returns an error or panics on
// malformed input.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Shape is the coarse form the caller expects back.
type Shape string

const (
	ShapeText    Shape = "text"
	ShapeJSON    Shape = "json"
	ShapeMermaid Shape = "mermaid"
)

// Valid reports whether s is a known shape.
func (s Shape) Valid() bool {
	switch s {
	case ShapeText, ShapeJSON, ShapeMermaid:
		return true
	}
	return false
}

// Structured reports whether the shape is subject to repair on failure.
func (s Shape) Structured() bool {
	return s == ShapeJSON || s == ShapeMermaid
}

// Outcome is the result of one validation. Data holds the decoded JSON value
// or, for diagrams, the extracted diagram source.
type Outcome struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func fail(format string, args ...any) Outcome {
	return Outcome{Error: fmt.Sprintf(format, args...)}
}

// Validate dispatches on shape. A mermaid schema selects the diagram check
// regardless of shape. With no shape, a schema name implies JSON. Plain
// text satisfies the overview schema.
func Validate(raw string, shape Shape, schemaName string) Outcome {
	switch {
	case shape == ShapeMermaid, schemaName == SchemaMermaid:
		return Mermaid(raw)
	case shape == ShapeJSON:
		return JSON(raw, schemaName)
	case shape == "" && schemaName != "":
		return JSON(raw, schemaName)
	default:
		return Text(raw)
	}
}

// Compatible reports whether a schema can be checked in the given shape.
// The overview schema accepts text or JSON; diagrams need the mermaid
// shape; the remaining schemas need JSON.
func Compatible(shape Shape, schemaName string) bool {
	switch schemaName {
	case "":
		return true
	case SchemaMermaid:
		return shape == ShapeMermaid
	case SchemaOverview:
		return shape == ShapeText || shape == ShapeJSON
	default:
		return shape == ShapeJSON
	}
}

// Text accepts any non-blank output.
func Text(raw string) Outcome {
	if strings.TrimSpace(raw) == "" {
		return fail("empty response")
	}
	return Outcome{OK: true, Data: raw}
}

// JSON normalizes raw, parses it and, when schemaName is set, checks it
// against the named schema. Parse failures embed the decoder's message.
func JSON(raw, schemaName string) Outcome {
	normalized := Normalize(raw)
	if normalized == "" {
		return fail("empty response")
	}

	data, err := decode(normalized)
	if err != nil {
		return fail("invalid JSON: %v", err)
	}
	if schemaName == "" {
		return Outcome{OK: true, Data: data}
	}

	schema, ok := compiled[schemaName]
	if !ok {
		return fail("unknown schema %q", schemaName)
	}
	if schemaName == SchemaQuizItems {
		data = unwrapItems(data)
	}
	if err := schema.Validate(data); err != nil {
		return fail("schema %s: %s", schemaName, flatten(err))
	}
	return Outcome{OK: true, Data: data}
}

// decode parses exactly one JSON value. Numbers stay json.Number so large
// integers survive re-encoding.
func decode(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return data, nil
}

// unwrapItems accepts the {"items": [...]} convention for quiz output.
func unwrapItems(data any) any {
	obj, ok := data.(map[string]any)
	if !ok {
		return data
	}
	if items, ok := obj["items"].([]any); ok {
		return items
	}
	return data
}

func flatten(err error) string {
	detail := fmt.Sprintf("%#v", err)
	detail = strings.Join(strings.Fields(detail), " ")
	if detail == "" {
		return err.Error()
	}
	return detail
}
