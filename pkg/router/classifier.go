package router

import "strings"

// Task identifiers.
const (
	TaskTopicMap          = "topic_map"
	TaskChunkAssign       = "chunk_assign"
	TaskQuizGenerate      = "quiz_generate"
	TaskOverviewSummarize = "overview_summarize"
	TaskDiagramMermaid    = "diagram_mermaid"
	TaskOther             = "other"
)

// KnownTasks lists every task identifier the classifier can produce.
var KnownTasks = []string{
	TaskTopicMap,
	TaskChunkAssign,
	TaskQuizGenerate,
	TaskOverviewSummarize,
	TaskDiagramMermaid,
	TaskOther,
}

type keywordGroup struct {
	task     string
	keywords []string
}

// Groups are tested in order; the first group with a matching keyword wins.
var keywordGroups = []keywordGroup{
	{task: TaskDiagramMermaid, keywords: []string{"mermaid", "diagram", "flowchart", "graph td", "sequence diagram"}},
	{task: TaskQuizGenerate, keywords: []string{"quiz", "multiple choice", "question", "mcq"}},
	{task: TaskChunkAssign, keywords: []string{"assign", "chunk", "map chunks"}},
	{task: TaskTopicMap, keywords: []string{"module", "topic map", "syllabus", "curriculum", "outline"}},
	{task: TaskOverviewSummarize, keywords: []string{"overview", "summarize", "summary", "tl;dr"}},
}

// Classify maps a prompt to a task identifier. It is a routing hint only:
// the same prompt always yields the same task.
func Classify(prompt string) string {
	task, _ := ClassifyWithKeyword(prompt)
	return task
}

// ClassifyWithKeyword also returns the keyword that matched, or "" for
// TaskOther.
func ClassifyWithKeyword(prompt string) (string, string) {
	lower := strings.ToLower(prompt)
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.task, kw
			}
		}
	}
	return TaskOther, ""
}
