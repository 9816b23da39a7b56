package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/validate"
)

type recordingRouter struct {
	got router.Request
}

func (r *recordingRouter) Route(_ context.Context, req router.Request) (*router.Result, error) {
	r.got = req
	return &router.Result{TaskID: req.TaskID, ModelUsed: "stub"}, nil
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name   string
		args   string
		task   string
		shape  validate.Shape
		schema string
	}{
		{name: NameTopicMap, args: `{"text":"course notes","max_modules":4}`, task: router.TaskTopicMap, shape: validate.ShapeJSON, schema: validate.SchemaModuleList},
		{name: NameAssignChunks, args: `{"modules":[{"id":"m1","title":"Intro"}],"chunks":[{"id":"c1","text":"hello"}]}`, task: router.TaskChunkAssign, shape: validate.ShapeJSON, schema: validate.SchemaAssignmentList},
		{name: NameGenerateQuiz, args: `{"text":"go routines","count":3}`, task: router.TaskQuizGenerate, shape: validate.ShapeJSON, schema: validate.SchemaQuizItems},
		{name: NameSummarizeOverview, args: `{"text":"long text"}`, task: router.TaskOverviewSummarize, shape: validate.ShapeJSON, schema: validate.SchemaOverview},
		{name: NameRenderDiagram, args: `{"description":"request flow"}`, task: router.TaskDiagramMermaid, shape: validate.ShapeMermaid, schema: validate.SchemaMermaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := Parse(tt.name, json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.name, call.Name())

			req := call.Request()
			assert.Equal(t, tt.task, req.TaskID)
			assert.Equal(t, tt.shape, req.Shape)
			assert.Equal(t, tt.schema, req.SchemaName)
			assert.NotEmpty(t, req.Prompt)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("delete_everything", json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownTool))

	_, err = Parse(NameTopicMap, json.RawMessage(`{"text":"x","colour":"red"}`))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse(NameTopicMap, json.RawMessage(`{}`))
	assert.Error(t, err, "text is required")

	_, err = Parse(NameAssignChunks, json.RawMessage(`{"modules":[],"chunks":[{"id":"c1","text":"x"}]}`))
	assert.Error(t, err, "at least one module is required")

	_, err = Parse(NameGenerateQuiz, json.RawMessage(`{"text":"x","count":500}`))
	assert.Error(t, err)
}

func TestRequestContents(t *testing.T) {
	req := AssignChunks{
		Modules: []Module{{ID: "m1", Title: "Intro"}, {ID: "m2", Title: "Advanced"}},
		Chunks:  []Chunk{{ID: "c7", Text: "channels"}},
	}.Request()
	assert.Contains(t, req.Prompt, "m2: Advanced")
	assert.Contains(t, req.Prompt, "[c7]")

	quiz := GenerateQuiz{Text: "t"}.Request()
	assert.True(t, strings.HasPrefix(quiz.Prompt, "Write 5 "))

	diagram := RenderDiagram{Description: "d", Kind: "sequenceDiagram"}.Request()
	assert.Contains(t, diagram.Prompt, "sequenceDiagram")
}

func TestRun(t *testing.T) {
	r := &recordingRouter{}
	res, err := Run(context.Background(), r, SummarizeOverview{Text: "abc", Mode: "cheap"})
	require.NoError(t, err)
	assert.Equal(t, router.TaskOverviewSummarize, res.TaskID)
	assert.Equal(t, "cheap", string(r.got.Mode))

	_, err = Run(context.Background(), r, nil)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Len(t, Names(), 5)
}
