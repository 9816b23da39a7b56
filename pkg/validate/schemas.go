package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names understood by the validator.
const (
	SchemaModuleList     = "module_list"
	SchemaAssignmentList = "assignment_list"
	SchemaQuizItems      = "quiz_items"
	SchemaOverview       = "overview"
	SchemaMermaid        = "mermaid"
)

var schemaSources = map[string]string{
	SchemaModuleList: `{
		"type": "object",
		"required": ["modules"],
		"properties": {
			"modules": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "title", "summary"],
					"properties": {
						"id": {"type": "string"},
						"title": {"type": "string"},
						"summary": {"type": "string"}
					}
				}
			}
		}
	}`,
	SchemaAssignmentList: `{
		"type": "object",
		"required": ["assignments"],
		"properties": {
			"assignments": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["chunk_id", "module_id", "confidence"],
					"properties": {
						"chunk_id": {"type": "string"},
						"module_id": {"type": "string"},
						"confidence": {"type": "number"}
					}
				}
			}
		}
	}`,
	SchemaQuizItems: `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["q", "choices", "correctIndex", "explanation"],
			"properties": {
				"q": {"type": "string"},
				"choices": {
					"type": "array",
					"minItems": 4,
					"maxItems": 4,
					"items": {"type": "string"}
				},
				"correctIndex": {"type": "number"},
				"explanation": {"type": "string"}
			}
		}
	}`,
	SchemaOverview: `{
		"type": "object",
		"required": ["overview"],
		"properties": {
			"overview": {"type": "string", "minLength": 1}
		}
	}`,
}

var compiled = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(schemaSources))
	for name, src := range schemaSources {
		url := name + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
			panic(fmt.Sprintf("validate: add schema %s: %v", name, err))
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("validate: compile schema %s: %v", name, err))
		}
		out[name] = schema
	}
	return out
}

// KnownSchema reports whether name is a schema the validator can check.
func KnownSchema(name string) bool {
	if name == SchemaMermaid {
		return true
	}
	_, ok := compiled[name]
	return ok
}

// SchemaNames lists every known schema, sorted.
func SchemaNames() []string {
	names := []string{SchemaMermaid}
	for name := range compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
