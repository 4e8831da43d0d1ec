package assistant

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ashureev/techassist/internal/domain"
)

const (
	// InitialFallbackText is used when an isolated-ask response carries no
	// recognizable text.
	InitialFallbackText = "Initial resolution steps generated successfully."

	// StatusFallbackText is used when a failed-status response has no message.
	StatusFallbackText = "I received your message but couldn't process it properly."
)

// DecodeInitial extracts the free text of a RouteAskInIsolation response.
func DecodeInitial(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return InitialFallbackText
	}
	if !json.Valid(trimmed) {
		return string(trimmed)
	}

	matchers := [][]string{
		{"output", "data"},
		{"output", "data", "response"},
		{"data"},
		{"response"},
		{},
	}
	for _, path := range matchers {
		if s, ok := stringAt(trimmed, path...); ok && s != "" {
			return s
		}
	}
	return InitialFallbackText
}

// DecodeExchange classifies a RouteAct response into a Reply.
//
// Responses carrying a status code other than 200 decode as ReplyStatus.
// Otherwise the first matching shape wins: a list under output decodes as
// records, a response or string under output.data as text, a root message
// as a message. Anything else is kept verbatim as ReplyUnknown. A context
// found at the root replaces one found under output.data.
func DecodeExchange(body []byte) Reply {
	trimmed := bytes.TrimSpace(body)
	if !isObject(trimmed) {
		return Reply{Kind: ReplyUnknown, Text: string(trimmed)}
	}

	if code, ok := numberAt(trimmed, "code"); !ok || code != 200 {
		text, _ := stringAt(trimmed, "message")
		if text == "" {
			text = StatusFallbackText
		}
		return Reply{Kind: ReplyStatus, Text: text}
	}

	if records, ok := recordsAt(trimmed, "output"); ok {
		return Reply{Kind: ReplyRecords, Records: records}
	}

	var reply Reply
	data := lookup(trimmed, "output", "data")
	switch {
	case data != nil && isObject(data):
		if text, ok := stringAt(data, "response"); ok {
			reply = Reply{Kind: ReplyText, Text: text}
			reply.WorkNotes, _ = stringAt(data, "work_notes_or_comments")
			if ctx, ok := contextAt(data, "context"); ok {
				reply.Context, reply.ReplacesContext = ctx, true
			}
		} else {
			reply = Reply{Kind: ReplyUnknown, Text: compact(data)}
		}
	case data != nil:
		if text, ok := stringAt(data); ok {
			reply = Reply{Kind: ReplyText, Text: text}
		} else {
			reply = Reply{Kind: ReplyUnknown, Text: compact(data)}
		}
	default:
		if text, ok := stringAt(trimmed, "message"); ok && text != "" {
			reply = Reply{Kind: ReplyMessage, Text: text}
		} else {
			reply = Reply{Kind: ReplyUnknown, Text: compact(trimmed)}
		}
	}

	if ctx, ok := contextAt(trimmed, "context"); ok {
		reply.Context, reply.ReplacesContext = ctx, true
	}
	return reply
}

// lookup walks object keys and returns the raw value at path, or nil.
func lookup(raw json.RawMessage, path ...string) json.RawMessage {
	cur := raw
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil
		}
		next, ok := obj[key]
		if !ok {
			return nil
		}
		cur = next
	}
	if len(cur) == 0 || string(cur) == "null" {
		return nil
	}
	return cur
}

func stringAt(raw json.RawMessage, path ...string) (string, bool) {
	v := lookup(raw, path...)
	if v == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func numberAt(raw json.RawMessage, path ...string) (float64, bool) {
	v := lookup(raw, path...)
	if v == nil {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return n, err == nil
}

func recordsAt(raw json.RawMessage, path ...string) ([]domain.TicketRecord, bool) {
	v := lookup(raw, path...)
	if v == nil || v[0] != '[' {
		return nil, false
	}
	var records []domain.TicketRecord
	if err := json.Unmarshal(v, &records); err != nil {
		return nil, false
	}
	return records, true
}

// contextAt accepts either {"context": [...]} or a bare list.
func contextAt(raw json.RawMessage, path ...string) ([]domain.ContextEntry, bool) {
	v := lookup(raw, path...)
	if v == nil {
		return nil, false
	}
	if isObject(v) {
		v = lookup(v, "context")
		if v == nil {
			return nil, false
		}
	}
	if v[0] != '[' {
		return nil, false
	}
	entries := []domain.ContextEntry{}
	if err := json.Unmarshal(v, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func isObject(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '{' && json.Valid(raw)
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
