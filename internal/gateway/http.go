package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartapi"
)

// DefaultTimeout bounds a single request when no client is supplied.
const DefaultTimeout = 10 * time.Second

const tracerName = "github.com/roach88/cartsync/internal/gateway"

// HTTPGateway talks to the cart API over HTTP/JSON.
// Safe for concurrent use.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) { g.client = c }
}

// WithTracerProvider sets the provider used for per-call spans.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) HTTPOption {
	return func(g *HTTPGateway) { g.tracer = tp.Tracer(tracerName) }
}

// NewHTTP creates a gateway rooted at baseURL (e.g. "https://shop.example/api").
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch reads the cart.
func (g *HTTPGateway) Fetch(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	ctx, span := g.tracer.Start(ctx, "cart.fetch")
	defer span.End()

	u := g.baseURL + cartapi.PathCart + "?" + url.Values{cartapi.QuerySessionID: {sessionID}}.Encode()
	env, err := g.roundTrip(ctx, span, "fetch", http.MethodGet, u, nil)
	if err != nil {
		return cart.Snapshot{}, err
	}

	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		span.SetAttributes(attribute.Bool("cart.empty_response", true))
		return cart.Empty(), nil
	}

	var snap cart.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		err = fmt.Errorf("fetch: decode cart: %w", err)
		recordError(span, err)
		return cart.Snapshot{}, err
	}
	span.SetAttributes(attribute.Int("cart.lines", len(snap.Lines)))
	return snap, nil
}

// Add posts a new item.
func (g *HTTPGateway) Add(ctx context.Context, sessionID, foodItemID string, quantity int) error {
	ctx, span := g.tracer.Start(ctx, "cart.add", trace.WithAttributes(
		attribute.String("cart.food_item_id", foodItemID),
		attribute.Int("cart.quantity", quantity),
	))
	defer span.End()

	body := cartapi.AddRequest{FoodItemID: foodItemID, Quantity: quantity, SessionID: sessionID}
	return g.mutate(ctx, span, "add", http.MethodPost, g.baseURL+cartapi.PathAdd, body)
}

// Update puts a new quantity for a line.
func (g *HTTPGateway) Update(ctx context.Context, sessionID, lineID string, quantity int) error {
	ctx, span := g.tracer.Start(ctx, "cart.update", trace.WithAttributes(
		attribute.String("cart.line_id", lineID),
		attribute.Int("cart.quantity", quantity),
	))
	defer span.End()

	body := cartapi.UpdateRequest{Quantity: quantity, SessionID: sessionID}
	return g.mutate(ctx, span, "update", http.MethodPut, g.linePath(lineID), body)
}

// Remove deletes a line.
func (g *HTTPGateway) Remove(ctx context.Context, sessionID, lineID string) error {
	ctx, span := g.tracer.Start(ctx, "cart.remove", trace.WithAttributes(
		attribute.String("cart.line_id", lineID),
	))
	defer span.End()

	body := cartapi.SessionRequest{SessionID: sessionID}
	return g.mutate(ctx, span, "remove", http.MethodDelete, g.linePath(lineID), body)
}

// Clear empties the cart.
func (g *HTTPGateway) Clear(ctx context.Context, sessionID string) error {
	ctx, span := g.tracer.Start(ctx, "cart.clear")
	defer span.End()

	body := cartapi.SessionRequest{SessionID: sessionID}
	return g.mutate(ctx, span, "clear", http.MethodPost, g.baseURL+cartapi.PathClear, body)
}

func (g *HTTPGateway) linePath(lineID string) string {
	return g.baseURL + cartapi.PathCart + "/" + url.PathEscape(lineID)
}

// mutate sends a write and requires a success indicator in the reply.
func (g *HTTPGateway) mutate(ctx context.Context, span trace.Span, op, method, u string, body any) error {
	env, err := g.roundTrip(ctx, span, op, method, u, body)
	if err != nil {
		return err
	}
	if !env.Success {
		err := &StatusError{Op: op, StatusCode: http.StatusOK, Message: env.Message}
		recordError(span, err)
		return err
	}
	return nil
}

// roundTrip performs the request and decodes the envelope.
// Non-2xx statuses become *StatusError.
func (g *HTTPGateway) roundTrip(ctx context.Context, span trace.Span, op, method, u string, body any) (cartapi.Envelope, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return cartapi.Envelope{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return cartapi.Envelope{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		recordError(span, err)
		return cartapi.Envelope{}, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	var env cartapi.Envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
		recordError(span, err)
		return cartapi.Envelope{}, err
	}
	if decodeErr != nil && decodeErr != io.EOF {
		err := fmt.Errorf("%s: decode response: %w", op, decodeErr)
		recordError(span, err)
		return cartapi.Envelope{}, err
	}
	return env, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
