package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
	"github.com/evanschultz/boardsync/internal/domain"
)

const tracerName = "github.com/evanschultz/boardsync/internal/adapters/transport/httpclient"

// ErrNoRemote reports a client built without a base URL.
var ErrNoRemote = errors.New("remote url is required")

// StatusError reports a non-2xx response from the remote.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

// Error implements error.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Permanent reports a 4xx rejection that resending the same event cannot fix.
// Timeouts, conflicts that may clear and rate limits stay retryable.
func (e *StatusError) Permanent() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

// Config holds configuration for the remote client.
type Config struct {
	BaseURL    string
	StreamPath string
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      func() time.Time
	Logger     *charmLog.Logger
}

// Client talks to the remote board service. It implements app.Loader and
// app.Emitter and consumes the server-sent push channel.
type Client struct {
	base       *url.URL
	streamPath string
	timeout    time.Duration
	http       *http.Client
	clock      func() time.Time
	logger     *charmLog.Logger
	tracer     trace.Tracer
}

// New constructs a client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, ErrNoRemote
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: unsupported scheme", raw)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = "/events/stream"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = charmLog.New(io.Discard)
	}
	return &Client{
		base:       base,
		streamPath: "/" + strings.TrimLeft(cfg.StreamPath, "/"),
		timeout:    cfg.Timeout,
		http:       cfg.HTTPClient,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func projectPath(projectID, suffix string) string {
	return "/projects/" + url.PathEscape(projectID) + suffix
}

// Emit posts one outbound event to the project's event endpoint.
func (c *Client) Emit(ctx context.Context, ev domain.Outbound) error {
	if ev == nil {
		return fmt.Errorf("emit: %w", domain.ErrUnknownEvent)
	}
	ctx, span := c.tracer.Start(ctx, "boardsync.emit", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("boardsync.event.kind", string(ev.Kind())),
			attribute.String("boardsync.project_id", ev.Project()),
		))
	defer span.End()

	body, err := wire.EncodeOutbound(ev)
	if err != nil {
		return recordErr(span, fmt.Errorf("encode outbound: %w", err))
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.endpoint(projectPath(ev.Project(), "/events"), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return recordErr(span, fmt.Errorf("build emit request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return recordErr(span, fmt.Errorf("emit %s: %w", ev.Kind(), err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err := checkStatus(resp); err != nil {
		return recordErr(span, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LoadTasks fetches the full board for projectID.
func (c *Client) LoadTasks(ctx context.Context, projectID string) (domain.Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "boardsync.load_tasks", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("boardsync.project_id", projectID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.endpoint(projectPath(projectID, "/board"), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Snapshot{}, recordErr(span, fmt.Errorf("build load request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Snapshot{}, recordErr(span, fmt.Errorf("load board %q: %w", projectID, err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err := checkStatus(resp); err != nil {
		return domain.Snapshot{}, recordErr(span, err)
	}

	var dto wire.SnapshotDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return domain.Snapshot{}, recordErr(span, fmt.Errorf("decode board: %w", err))
	}
	if dto.ProjectID == "" {
		dto.ProjectID = projectID
	}
	snap, err := dto.ToSnapshot(c.clock())
	if err != nil {
		return domain.Snapshot{}, recordErr(span, fmt.Errorf("decode board: %w", err))
	}
	span.SetAttributes(attribute.Int("boardsync.task_count", len(snap.Tasks)))
	return snap, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method: resp.Request.Method,
		URL:    resp.Request.URL.String(),
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
