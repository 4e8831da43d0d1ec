package assistant

import (
	"testing"

	"github.com/ashureev/techassist/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestDecodeExchange(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Reply
	}{
		{
			name: "records",
			body: `{"code":200,"output":[{"number":"INC1","sys_id":"a"},{"number":"INC2"}]}`,
			want: Reply{Kind: ReplyRecords, Records: []domain.TicketRecord{
				{Number: "INC1", SysID: "a"},
				{Number: "INC2"},
			}},
		},
		{
			name: "empty records",
			body: `{"code":200,"output":[]}`,
			want: Reply{Kind: ReplyRecords, Records: []domain.TicketRecord{}},
		},
		{
			name: "structured text with notes and nested context",
			body: `{"code":200,"output":{"data":{"response":"Restart it","work_notes_or_comments":"note A",` +
				`"context":{"context":[{"role":"system","content":"x"}]}}}}`,
			want: Reply{
				Kind:            ReplyText,
				Text:            "Restart it",
				WorkNotes:       "note A",
				Context:         []domain.ContextEntry{{Role: domain.RoleSystem, Content: "x"}},
				ReplacesContext: true,
			},
		},
		{
			name: "string data",
			body: `{"code":200,"output":{"data":"plain answer"}}`,
			want: Reply{Kind: ReplyText, Text: "plain answer"},
		},
		{
			name: "root context wins",
			body: `{"code":200,"output":{"data":{"response":"r","context":[{"role":"user","content":"a"}]}},` +
				`"context":[{"role":"system","content":"b"}]}`,
			want: Reply{
				Kind:            ReplyText,
				Text:            "r",
				Context:         []domain.ContextEntry{{Role: domain.RoleSystem, Content: "b"}},
				ReplacesContext: true,
			},
		},
		{
			name: "message only",
			body: `{"code":200,"message":"Done."}`,
			want: Reply{Kind: ReplyMessage, Text: "Done."},
		},
		{
			name: "failed status with message",
			body: `{"code":500,"message":"backend exploded"}`,
			want: Reply{Kind: ReplyStatus, Text: "backend exploded"},
		},
		{
			name: "failed status without message",
			body: `{"code":404}`,
			want: Reply{Kind: ReplyStatus, Text: StatusFallbackText},
		},
		{
			name: "missing status",
			body: `{"output":{"data":"x"}}`,
			want: Reply{Kind: ReplyStatus, Text: StatusFallbackText},
		},
		{
			name: "string status code",
			body: `{"code":"200","message":"ok"}`,
			want: Reply{Kind: ReplyMessage, Text: "ok"},
		},
		{
			name: "unknown data shape",
			body: `{"code":200,"output":{"data":{"foo": 1}}}`,
			want: Reply{Kind: ReplyUnknown, Text: `{"foo":1}`},
		},
		{
			name: "unknown body",
			body: `{"code":200, "weird":true}`,
			want: Reply{Kind: ReplyUnknown, Text: `{"code":200,"weird":true}`},
		},
		{
			name: "not an object",
			body: `["a"]`,
			want: Reply{Kind: ReplyUnknown, Text: `["a"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeExchange([]byte(tt.body))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeExchange mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInitial(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"output data", `{"output":{"data":"1. Reboot"}}`, "1. Reboot"},
		{"output data response", `{"output":{"data":{"response":"steps"}}}`, "steps"},
		{"root data", `{"data":"from data"}`, "from data"},
		{"root response", `{"response":"from response"}`, "from response"},
		{"bare string", `"just text"`, "just text"},
		{"plain text body", "not json at all", "not json at all"},
		{"unrecognized", `{"foo":"bar"}`, InitialFallbackText},
		{"empty", "", InitialFallbackText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeInitial([]byte(tt.body)); got != tt.want {
				t.Errorf("DecodeInitial(%s) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestExtractKnowledge(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"output data content", `{"output":{"data":{"content":"KB-1"}}}`, "KB-1"},
		{"output data string", `{"output":{"data":"KB-2"}}`, "KB-2"},
		{"output data answer", `{"output":{"data":{"answer":"KB-3"}}}`, "KB-3"},
		{"bare string", `"KB-4"`, "KB-4"},
		{"root content", `{"content":"KB-5"}`, "KB-5"},
		{"root solution", `{"solution":"KB-6"}`, "KB-6"},
		{"data content", `{"data":{"content":"KB-7"}}`, "KB-7"},
		{"blank content falls through", `{"content":"  ","answer":"KB-8"}`, "KB-8"},
		{"fallback json", `{"items": [1, 2]}`, `{"items":[1,2]}`},
		{"null", `null`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractKnowledge([]byte(tt.content)); got != tt.want {
				t.Errorf("ExtractKnowledge(%s) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
