package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 4 << 20

// DefaultHTTPPaths are the backend endpoints for each route.
var DefaultHTTPPaths = map[Route]string{
	RouteAskInIsolation: "/llm/api/v1/ask_llm_in_isolation/",
	RouteAct:            "/resolution_management/api/v1/act_for_demo_on_ask",
	RouteKnowledge:      "/kb_management/api/v1/get_contextual_response/",
}

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Auth    Authenticator
	Paths   map[Route]string
	Client  *http.Client
}

// HTTPTransport talks to the backend over JSON-over-HTTP.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	auth    Authenticator
	paths   map[Route]string
	logger  *slog.Logger
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg HTTPConfig, logger *slog.Logger) (*HTTPTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("assistant base URL is required")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	auth := cfg.Auth
	if auth == nil {
		auth = NoAuth{}
	}
	paths := cfg.Paths
	if paths == nil {
		paths = DefaultHTTPPaths
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		auth:    auth,
		paths:   paths,
		logger:  logger,
	}, nil
}

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, route Route, payload any) ([]byte, error) {
	path, ok := t.paths[route]
	if !ok {
		return nil, fmt.Errorf("%s: %w: no HTTP path configured", route, errdefs.ErrInvalidArgument)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	authz, err := t.auth.Authorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", route, errdefs.ErrUnauthenticated, err)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", route, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%s: %w: %w", route, errdefs.ErrUnavailable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("failed to close response body", "route", route, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %w", route, errdefs.ErrUnavailable, err)
	}

	t.logger.Debug("Assistant call completed",
		"route", route,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", req.Header.Get("X-Request-ID"),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorForHTTPStatus(route, resp.StatusCode)
	}
	return data, nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
