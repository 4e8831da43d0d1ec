package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/techassist/internal/domain"
	"github.com/containerd/errdefs"
)

func newHTTPTransportForTest(t *testing.T, handler http.HandlerFunc, auth Authenticator) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := NewHTTPTransport(HTTPConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second, Auth: auth}, nil)
	if err != nil {
		t.Fatalf("NewHTTPTransport failed: %v", err)
	}
	return tr
}

func TestHTTPTransportRoutesAndHeaders(t *testing.T) {
	var gotPath, gotAuth, gotRequestID string
	var gotBody QueryRequest
	tr := newHTTPTransportForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"data":"1. Reboot the host"}}`))
	}, BearerToken{Token: "tok"})

	client := NewClient(tr, nil)
	text, err := client.AskInIsolation(context.Background(), "help")
	if err != nil {
		t.Fatalf("AskInIsolation failed: %v", err)
	}

	if gotPath != DefaultHTTPPaths[RouteAskInIsolation] {
		t.Errorf("expected path %q, got %q", DefaultHTTPPaths[RouteAskInIsolation], gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected X-Request-ID header")
	}
	if gotBody.Query != "help" {
		t.Errorf("expected query 'help', got %q", gotBody.Query)
	}
	if text != "1. Reboot the host" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestHTTPTransportNoAuthOmitsHeader(t *testing.T) {
	var sawAuth bool
	tr := newHTTPTransportForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{}`))
	}, nil)

	if _, err := tr.Call(context.Background(), RouteKnowledge, QueryRequest{Query: "q"}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if sawAuth {
		t.Error("expected no Authorization header without credentials")
	}
}

func TestHTTPTransportActPayload(t *testing.T) {
	var got ActRequest
	tr := newHTTPTransportForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"code":200,"message":"ok"}`))
	}, nil)

	client := NewClient(tr, nil)
	reply, err := client.Act(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Act failed: %v", err)
	}
	if got.Context.Context == nil {
		t.Error("expected context envelope to carry an empty list, not null")
	}
	if reply.Kind != ReplyMessage {
		t.Errorf("expected message reply, got %+v", reply)
	}
}

func TestHTTPTransportStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, errdefs.IsUnauthorized},
		{http.StatusUnprocessableEntity, errdefs.IsInvalidArgument},
		{http.StatusInternalServerError, errdefs.IsInternal},
		{http.StatusBadGateway, func(err error) bool { return errors.Is(err, errBackendStatus) }},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			tr := newHTTPTransportForTest(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}, nil)
			_, err := tr.Call(context.Background(), RouteAct, ActRequest{})
			if err == nil || !tt.check(err) {
				t.Fatalf("status %d: unexpected error %v", tt.status, err)
			}
		})
	}
}

func TestHTTPTransportUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr, err := NewHTTPTransport(HTTPConfig{BaseURL: url, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewHTTPTransport failed: %v", err)
	}
	_, err = tr.Call(context.Background(), RouteAct, ActRequest{})
	if !errdefs.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestHTTPTransportDeadline(t *testing.T) {
	release := make(chan struct{})
	tr := newHTTPTransportForTest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Call(ctx, RouteAct, ActRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFetchKnowledgeQueriesTicketNarrative(t *testing.T) {
	var got QueryRequest
	tr := newHTTPTransportForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"output":{"data":{"content":"KB"}}}`))
	}, nil)

	client := NewClient(tr, nil)
	raw, err := client.FetchKnowledge(context.Background(), domain.Ticket{ID: "1", Summary: "Disk full", Detail: "on /var"})
	if err != nil {
		t.Fatalf("FetchKnowledge failed: %v", err)
	}
	if got.Query != "Disk full\non /var" {
		t.Errorf("unexpected knowledge query %q", got.Query)
	}
	if ExtractKnowledge(raw) != "KB" {
		t.Errorf("unexpected knowledge %s", raw)
	}
}
