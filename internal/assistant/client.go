package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/techassist/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ashureev/techassist/internal/assistant"

// Client issues the three backend operations over a Transport.
type Client struct {
	transport Transport
	tracer    trace.Tracer
	calls     metric.Int64Counter
	latency   metric.Float64Histogram
	logger    *slog.Logger
}

// NewClient creates a Client. Spans and metrics go to the global otel
// providers.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter(instrumentationName)
	calls, err := meter.Int64Counter("assistant.calls",
		metric.WithDescription("Assistant backend calls by route and outcome"))
	if err != nil {
		logger.Warn("failed to create assistant call counter", "error", err)
	}
	latency, err := meter.Float64Histogram("assistant.latency",
		metric.WithDescription("Assistant backend call latency"),
		metric.WithUnit("ms"))
	if err != nil {
		logger.Warn("failed to create assistant latency histogram", "error", err)
	}

	return &Client{
		transport: transport,
		tracer:    otel.Tracer(instrumentationName),
		calls:     calls,
		latency:   latency,
		logger:    logger,
	}
}

// AskInIsolation sends a single query with no conversation state and
// returns the extracted text.
func (c *Client) AskInIsolation(ctx context.Context, query string) (string, error) {
	body, err := c.call(ctx, RouteAskInIsolation, QueryRequest{Query: query})
	if err != nil {
		return "", err
	}
	return DecodeInitial(body), nil
}

// Act runs one conversational turn with the given context log.
func (c *Client) Act(ctx context.Context, query string, history []domain.ContextEntry) (Reply, error) {
	if history == nil {
		history = []domain.ContextEntry{}
	}
	body, err := c.call(ctx, RouteAct, ActRequest{
		Query:   query,
		Context: ContextEnvelope{Context: history},
	})
	if err != nil {
		return Reply{}, err
	}
	return DecodeExchange(body), nil
}

// FetchKnowledge retrieves knowledge-base content relevant to a ticket.
func (c *Client) FetchKnowledge(ctx context.Context, ticket domain.Ticket) (json.RawMessage, error) {
	query := strings.TrimSpace(ticket.Summary + "\n" + ticket.Detail)
	body, err := c.call(ctx, RouteKnowledge, QueryRequest{Query: query})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) call(ctx context.Context, route Route, payload any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "assistant."+string(route),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("assistant.route", string(route))),
	)
	defer span.End()

	start := time.Now()
	body, err := c.transport.Call(ctx, route, payload)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Assistant call failed", "route", route, "error", err)
	} else {
		span.SetAttributes(attribute.Int("assistant.response_bytes", len(body)))
	}

	attrs := metric.WithAttributes(
		attribute.String("route", string(route)),
		attribute.String("outcome", outcome),
	)
	if c.calls != nil {
		c.calls.Add(ctx, 1, attrs)
	}
	if c.latency != nil {
		c.latency.Record(ctx, elapsed, attrs)
	}
	return body, err
}
