package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultTimeout = 30 * time.Second

// Reply is the responder's answer to one user message. Emotion is empty when
// the backend did not classify the reply.
type Reply struct {
	Text    string
	Emotion string
}

// Client is a stateless request/response wrapper around the responder
// endpoint. One request per call, no internal retries; retry policy belongs to
// the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithTimeout overrides the per-call timeout guarding against indefinite hangs.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying HTTP client, preserving the
// configured timeout if the replacement has none.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient.Timeout == 0 {
			httpClient.Timeout = c.httpClient.Timeout
		}
		c.httpClient = httpClient
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, request *http.Request) string {
					return fmt.Sprintf("%s %s", request.Method, request.URL.Path)
				}),
			),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Send posts one user message and returns the reply. Failures are classified
// as ErrTimeout, ErrUnreachable, ErrServerError or ErrBadResponse.
func (c *Client) Send(ctx context.Context, text string) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "send message to responder")
	defer span.End()

	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/session/message", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		classified := classifyTransportError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		return nil, classified
	}
	defer response.Body.Close()

	span.SetAttributes(attribute.Int("responder.status_code", response.StatusCode))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		err := fmt.Errorf("%w: status %d", ErrServerError, response.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrBadResponse, err)
	}

	var parsed struct {
		Reply   string `json:"reply"`
		Emotion string `json:"emotion"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if strings.TrimSpace(parsed.Reply) == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrBadResponse)
	}

	return &Reply{Text: parsed.Reply, Emotion: parsed.Emotion}, nil
}

// Health probes the responder's health endpoint. Any non-2xx status or
// transport failure is an error.
func (c *Client) Health(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return classifyTransportError(err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%w: health status %d", ErrServerError, response.StatusCode)
	}

	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
