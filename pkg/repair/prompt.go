// Package repair builds the single follow-up request that asks a model to
// fix its own invalid structured output.
package repair

import (
	"fmt"
	"strings"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/validate"
)

// JSONInstruction asks for schema-conformant JSON only.
func JSONInstruction(schemaName, validationError string) string {
	var sb strings.Builder
	sb.WriteString("Your previous response was invalid")
	if validationError != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", validationError))
	}
	sb.WriteString(".\n")
	if schemaName != "" {
		sb.WriteString(fmt.Sprintf("Conform exactly to the %s schema.\n", schemaName))
	}
	sb.WriteString("Return ONLY valid JSON. No prose, no Markdown fences, no trailing commas.")
	return sb.String()
}

// MermaidInstruction embeds the broken diagram and the validator's error.
func MermaidInstruction(broken, validationError string) string {
	var sb strings.Builder
	sb.WriteString("Fix the following broken Mermaid diagram.\n\n")
	sb.WriteString("Error: ")
	sb.WriteString(validationError)
	sb.WriteString("\n\n---\n")
	sb.WriteString(broken)
	sb.WriteString("\n---\n\n")
	sb.WriteString("Return only the corrected diagram in a single ```mermaid code block. ")
	sb.WriteString("The first line must name the diagram type (for example `flowchart TD`).")
	return sb.String()
}

// Messages appends the repair turn to the original history. The invalid
// output is replayed as the assistant turn so the model sees what it said.
// The returned slice never aliases history.
func Messages(history []adapter.Message, shape validate.Shape, schemaName, invalid, validationError string) []adapter.Message {
	out := make([]adapter.Message, 0, len(history)+2)
	out = append(out, history...)

	if shape == validate.ShapeMermaid || schemaName == validate.SchemaMermaid {
		return append(out, adapter.UserMessage(MermaidInstruction(invalid, validationError)))
	}

	out = append(out, adapter.Message{Role: adapter.RoleAssistant, Content: invalid})
	return append(out, adapter.UserMessage(JSONInstruction(schemaName, validationError)))
}
