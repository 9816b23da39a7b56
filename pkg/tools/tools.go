// Package tools exposes the generation tools as a closed set of call
// variants. Each variant knows its task, output shape and schema, and
// builds the router request for itself.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/validate"
)

// Tool names accepted by Parse.
const (
	NameTopicMap          = "topic_map"
	NameAssignChunks      = "assign_chunks"
	NameGenerateQuiz      = "generate_quiz"
	NameSummarizeOverview = "summarize_overview"
	NameRenderDiagram     = "render_diagram"
)

// ErrUnknownTool is returned by Parse for a name outside the tool set.
var ErrUnknownTool = errors.New("unknown tool")

var argValidator = validator.New()

// Call is one tool invocation. The set of implementations is closed: only
// the variants in this package satisfy it.
type Call interface {
	Name() string
	Request() router.Request
	isCall()
}

// Chunk is a piece of source text to place into a module.
type Chunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Module is a target for chunk assignment.
type Module struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// TopicMap asks for a module list covering Text.
type TopicMap struct {
	Text       string      `json:"text" validate:"required"`
	MaxModules int         `json:"max_modules,omitempty" validate:"gte=0"`
	Mode       config.Mode `json:"mode,omitempty"`
}

// AssignChunks maps chunks onto known modules.
type AssignChunks struct {
	Modules []Module    `json:"modules" validate:"required,min=1"`
	Chunks  []Chunk     `json:"chunks" validate:"required,min=1"`
	Mode    config.Mode `json:"mode,omitempty"`
}

// GenerateQuiz asks for multiple-choice questions about Text.
type GenerateQuiz struct {
	Text  string      `json:"text" validate:"required"`
	Count int         `json:"count,omitempty" validate:"gte=0,lte=50"`
	Mode  config.Mode `json:"mode,omitempty"`
}

// SummarizeOverview asks for a short overview of Text.
type SummarizeOverview struct {
	Text string      `json:"text" validate:"required"`
	Mode config.Mode `json:"mode,omitempty"`
}

// RenderDiagram asks for a Mermaid diagram of Description.
type RenderDiagram struct {
	Description string      `json:"description" validate:"required"`
	Kind        string      `json:"kind,omitempty"`
	Mode        config.Mode `json:"mode,omitempty"`
}

func (TopicMap) isCall()          {}
func (AssignChunks) isCall()      {}
func (GenerateQuiz) isCall()      {}
func (SummarizeOverview) isCall() {}
func (RenderDiagram) isCall()     {}

func (TopicMap) Name() string          { return NameTopicMap }
func (AssignChunks) Name() string      { return NameAssignChunks }
func (GenerateQuiz) Name() string      { return NameGenerateQuiz }
func (SummarizeOverview) Name() string { return NameSummarizeOverview }
func (RenderDiagram) Name() string     { return NameRenderDiagram }

// Request builds the module-list request.
func (c TopicMap) Request() router.Request {
	limit := ""
	if c.MaxModules > 0 {
		limit = fmt.Sprintf(" Use at most %d modules.", c.MaxModules)
	}
	return router.Request{
		TaskID:     router.TaskTopicMap,
		Prompt:     fmt.Sprintf("Split the following material into learning modules.%s Respond with JSON {\"modules\":[{\"id\",\"title\",\"summary\"}]}.\n\n%s", limit, c.Text),
		Shape:      validate.ShapeJSON,
		SchemaName: validate.SchemaModuleList,
		Mode:       c.Mode,
	}
}

// Request builds the assignment request.
func (c AssignChunks) Request() router.Request {
	var sb strings.Builder
	sb.WriteString("Assign each chunk to the best matching module. Respond with JSON ")
	sb.WriteString("{\"assignments\":[{\"chunk_id\",\"module_id\",\"confidence\"}]} where confidence is between 0 and 1.\n\nModules:\n")
	for _, m := range c.Modules {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", m.ID, m.Title))
	}
	sb.WriteString("\nChunks:\n")
	for _, ch := range c.Chunks {
		sb.WriteString(fmt.Sprintf("[%s]\n%s\n\n", ch.ID, ch.Text))
	}
	return router.Request{
		TaskID:     router.TaskChunkAssign,
		Prompt:     sb.String(),
		Shape:      validate.ShapeJSON,
		SchemaName: validate.SchemaAssignmentList,
		Mode:       c.Mode,
	}
}

// Request builds the quiz request.
func (c GenerateQuiz) Request() router.Request {
	count := c.Count
	if count <= 0 {
		count = 5
	}
	return router.Request{
		TaskID:     router.TaskQuizGenerate,
		Prompt:     fmt.Sprintf("Write %d multiple choice questions about the text below. Respond with a JSON array of {\"q\",\"choices\" (exactly 4),\"correctIndex\",\"explanation\"}.\n\n%s", count, c.Text),
		Shape:      validate.ShapeJSON,
		SchemaName: validate.SchemaQuizItems,
		Mode:       c.Mode,
	}
}

// Request builds the overview request.
func (c SummarizeOverview) Request() router.Request {
	return router.Request{
		TaskID:     router.TaskOverviewSummarize,
		Prompt:     fmt.Sprintf("Summarize the following text as a short overview. Respond with JSON {\"overview\": \"...\"}.\n\n%s", c.Text),
		Shape:      validate.ShapeJSON,
		SchemaName: validate.SchemaOverview,
		Mode:       c.Mode,
	}
}

// Request builds the diagram request.
func (c RenderDiagram) Request() router.Request {
	kind := c.Kind
	if kind == "" {
		kind = "flowchart TD"
	}
	return router.Request{
		TaskID:     router.TaskDiagramMermaid,
		Prompt:     fmt.Sprintf("Draw a Mermaid %s diagram for the following. Return it in a ```mermaid code block.\n\n%s", kind, c.Description),
		Shape:      validate.ShapeMermaid,
		SchemaName: validate.SchemaMermaid,
		Mode:       c.Mode,
	}
}

// Names lists every tool name, sorted.
func Names() []string {
	names := []string{NameTopicMap, NameAssignChunks, NameGenerateQuiz, NameSummarizeOverview, NameRenderDiagram}
	sort.Strings(names)
	return names
}

// Parse decodes args into the variant for name. Unknown argument fields
// are rejected.
func Parse(name string, args json.RawMessage) (Call, error) {
	switch name {
	case NameTopicMap:
		return decode[TopicMap](args)
	case NameAssignChunks:
		return decode[AssignChunks](args)
	case NameGenerateQuiz:
		return decode[GenerateQuiz](args)
	case NameSummarizeOverview:
		return decode[SummarizeOverview](args)
	case NameRenderDiagram:
		return decode[RenderDiagram](args)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func decode[T Call](args json.RawMessage) (Call, error) {
	var call T
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&call); err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", call.Name(), err)
	}
	if err := argValidator.Struct(call); err != nil {
		return nil, fmt.Errorf("invalid %s arguments: %w", call.Name(), err)
	}
	return call, nil
}

// Router is the routing surface Run needs.
type Router interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

// Run executes call through r.
func Run(ctx context.Context, r Router, call Call) (*router.Result, error) {
	if call == nil {
		return nil, errors.New("tools: nil call")
	}
	return r.Route(ctx, call.Request())
}
