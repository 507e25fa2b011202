package analysis

import (
	"strings"
)

const codeFence = "```"

// CleanJSON extracts the JSON payload from raw model text. It prefers the
// content of a fenced code block, then trims to the outermost object or
// array, whichever opens first. Text with no brackets is returned trimmed.
func CleanJSON(text string) string {
	if text == "" {
		return ""
	}
	clean := strings.TrimSpace(text)
	if inner, ok := fencedContent(clean); ok {
		clean = inner
	}

	objStart := strings.Index(clean, "{")
	arrStart := strings.Index(clean, "[")

	switch {
	case objStart != -1 && (arrStart == -1 || objStart < arrStart):
		if end := strings.LastIndex(clean, "}"); end > objStart {
			return clean[objStart : end+1]
		}
	case arrStart != -1:
		if end := strings.LastIndex(clean, "]"); end > arrStart {
			return clean[arrStart : end+1]
		}
	}
	return clean
}

// fencedContent returns the trimmed body of the first fenced code block,
// dropping an optional "json" language tag.
func fencedContent(s string) (string, bool) {
	open := strings.Index(s, codeFence)
	if open == -1 {
		return "", false
	}
	body := s[open+len(codeFence):]
	closing := strings.Index(body, codeFence)
	if closing == -1 {
		return "", false
	}
	body = body[:closing]
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	return strings.TrimSpace(body), true
}
