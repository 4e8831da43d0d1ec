package assistant

import (
	"bytes"
	"encoding/json"
	"strings"
)

// knowledgeMatchers are tried in order; the first non-empty string wins.
var knowledgeMatchers = [][]string{
	{"output", "data", "content"},
	{"output", "data"},
	{"output", "data", "response"},
	{"output", "data", "answer"},
	{},
	{"content"},
	{"response"},
	{"answer"},
	{"solution"},
	{"data"},
	{"data", "content"},
}

// ExtractKnowledge turns a knowledge payload of unknown shape into the
// text that seeds the opening assistant turn. Payloads with no recognized
// text field are rendered as compact JSON.
func ExtractKnowledge(content json.RawMessage) string {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	if !json.Valid(trimmed) {
		return string(trimmed)
	}

	for _, path := range knowledgeMatchers {
		if s, ok := stringAt(trimmed, path...); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return compact(trimmed)
}
