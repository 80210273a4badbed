package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"agenda-view/domain"
)

const (
	tracerName      = "agenda-view/storage"
	maxResponseSize = 4 << 20
	requestIDHeader = "X-Request-ID"
)

// Client talks to the remote task service over its JSON REST API.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client

	log    *log.Logger
	tracer trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTP.Timeout = d }
}

// WithTracerProvider sets the provider spans are recorded with. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL, bearer string, logger *log.Logger, opts ...Option) *Client {
	if logger == nil {
		panic("storage.New: logger is nil")
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bearer:  bearer,
		HTTP:    &http.Client{},
		log:     logger,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type bearerKey struct{}

// WithBearer returns a context whose requests authenticate with token
// instead of the client's configured bearer.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func (c *Client) bearer(ctx context.Context) string {
	if tok, ok := ctx.Value(bearerKey{}).(string); ok && tok != "" {
		return tok
	}
	return c.Bearer
}

// ListTasks returns every task in server order.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if err := c.do(ctx, "list_tasks", http.MethodGet, "/tasks", "", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, "get_task", http.MethodGet, taskPath(id), id, nil, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// CreateTask submits a new task and returns the stored record.
func (c *Client) CreateTask(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, "create_task", http.MethodPost, "/tasks", "", draft, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask replaces the task at id with the full record and returns the
// stored version.
func (c *Client) UpdateTask(ctx context.Context, id domain.TaskID, record domain.Task) (domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, "update_task", http.MethodPut, taskPath(id), id, record, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask removes the task at id.
func (c *Client) DeleteTask(ctx context.Context, id domain.TaskID) error {
	return c.do(ctx, "delete_task", http.MethodDelete, taskPath(id), id, nil, nil)
}

func taskPath(id domain.TaskID) string {
	return "/tasks/" + url.PathEscape(string(id))
}

func (c *Client) do(ctx context.Context, op, method, path string, id domain.TaskID, body, out any) (err error) {
	metrics := newRequestMetrics(c.log, op, method)
	ctx, span := c.startSpan(ctx, op, method, id)
	defer func() {
		endSpan(span, metrics.status, err)
		metrics.Log(err)
	}()

	var reader io.Reader
	if body != nil {
		payload, encErr := sonic.Marshal(body)
		if encErr != nil {
			metrics.SetErrorStage("encode_request")
			return &domain.TransportError{Op: op, Err: encErr}
		}
		reader = bytes.NewReader(payload)
	}

	req, reqErr := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if reqErr != nil {
		metrics.SetErrorStage("build_request")
		return &domain.TransportError{Op: op, Err: reqErr}
	}
	requestID := uuid.NewString()
	metrics.SetRequestID(requestID)
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, doErr := c.HTTP.Do(req)
	if doErr != nil {
		metrics.SetErrorStage("transport")
		return &domain.TransportError{Op: op, Err: doErr}
	}
	defer resp.Body.Close()
	metrics.SetStatus(resp.StatusCode)

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if readErr != nil {
		metrics.SetErrorStage("read_response")
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: readErr}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.SetErrorStage("not_found")
		return fmt.Errorf("%s %s: %w", op, id, domain.ErrNotFound)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		metrics.SetErrorStage("validation")
		return decodeValidationError(data)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.SetErrorStage("status")
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", snippet(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if decErr := sonic.Unmarshal(unwrapData(data), out); decErr != nil {
		metrics.SetErrorStage("decode_response")
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: decErr}
	}
	return nil
}

type envelope struct {
	Data sonic.NoCopyRawMessage `json:"data"`
}

// unwrapData strips the {"data": ...} envelope the service wraps payloads
// in. Bare payloads are returned unchanged.
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := sonic.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 {
		return trimmed
	}
	return env.Data
}

type validationBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func decodeValidationError(data []byte) error {
	var body validationBody
	if err := sonic.Unmarshal(data, &body); err != nil {
		return &domain.ValidationError{Message: snippet(data)}
	}
	return &domain.ValidationError{Message: body.Message, Fields: body.Errors}
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
