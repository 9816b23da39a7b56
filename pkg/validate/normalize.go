package validate

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\r?\\n(.*?)```")

// Normalize applies the text fixes small models commonly need before their
// JSON parses: fence stripping, then trailing-comma removal.
func Normalize(raw string) string {
	return RemoveTrailingCommas(StripFences(raw))
}

// StripFences returns the body of the first Markdown code fence in raw, with
// or without a language tag. Text without a fence is returned trimmed. An
// opening fence that is never closed is dropped.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			return strings.TrimSpace(s[nl+1:])
		}
		return ""
	}
	return s
}

// RemoveTrailingCommas drops commas that directly precede a closing brace or
// bracket, ignoring whitespace in between. Commas inside string literals are
// left alone.
func RemoveTrailingCommas(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			sb.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case ',':
			if closesNext(s, i+1) {
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func closesNext(s string, from int) bool {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}
