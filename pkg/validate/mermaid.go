package validate

import (
	"regexp"
	"strings"
)

var (
	codeBlock  = regexp.MustCompile("(?s)```([A-Za-z0-9_-]*)[ \\t]*\\r?\\n(.*?)```")
	nodeLine   = regexp.MustCompile(`^\s*[A-Za-z_][\w-]*\s*([\[\(\{>]|$)`)
	connectors = []string{"-->", "---", "==>", "-.-", "->>", "-)", "--x", "--o"}
)

var diagramTypes = []string{
	"graph",
	"flowchart",
	"sequenceDiagram",
	"classDiagram",
	"stateDiagram-v2",
	"stateDiagram",
	"erDiagram",
	"journey",
	"gantt",
	"pie",
	"mindmap",
	"timeline",
	"gitGraph",
	"quadrantChart",
	"requirementDiagram",
	"C4Context",
}

// ExtractDiagram returns the first fenced block tagged mermaid or, failing
// that, the first fenced block containing a graph connector.
func ExtractDiagram(raw string) (string, bool) {
	blocks := codeBlock.FindAllStringSubmatch(raw, -1)
	for _, b := range blocks {
		if strings.EqualFold(b[1], "mermaid") {
			return strings.TrimSpace(b[2]), true
		}
	}
	for _, b := range blocks {
		if hasConnector(b[2]) {
			return strings.TrimSpace(b[2]), true
		}
	}
	return "", false
}

// Mermaid extracts and syntax-checks diagram markup. On success Data is the
// diagram source without fences.
func Mermaid(raw string) Outcome {
	code, ok := ExtractDiagram(raw)
	if !ok {
		return fail("no mermaid code block found")
	}
	if code == "" {
		return fail("mermaid code block is empty")
	}
	if err := checkDiagram(code); err != "" {
		return fail("%s", err)
	}
	return Outcome{OK: true, Data: code}
}

func checkDiagram(code string) string {
	lines := strings.Split(code, "\n")

	first := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			continue
		}
		first = i
		break
	}
	if first < 0 {
		return "mermaid code block is empty"
	}

	header := strings.TrimSpace(lines[first])
	if !knownDiagramType(header) {
		return "unrecognized diagram type: " + firstWord(header)
	}
	if hasConnector(header) {
		return ""
	}

	for _, line := range lines[first+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			continue
		}
		if hasConnector(trimmed) || nodeLine.MatchString(trimmed) {
			return ""
		}
	}
	return "diagram has no connectors or node definitions"
}

func knownDiagramType(header string) bool {
	word := firstWord(header)
	for _, t := range diagramTypes {
		if word == t {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return strings.TrimSuffix(fields[0], ";")
	}
	return ""
}

func hasConnector(s string) bool {
	for _, c := range connectors {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
