package httpclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
	"github.com/evanschultz/boardsync/internal/domain"
)

// InboundHandler receives each decoded push event in arrival order.
type InboundHandler func(domain.Inbound)

// Stream consumes the server-sent push channel for projectID until the
// server closes it or ctx ends. Malformed frames are logged and skipped.
func (c *Client) Stream(ctx context.Context, projectID string, fn InboundHandler) error {
	ctx, span := c.tracer.Start(ctx, "boardsync.stream", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("boardsync.project_id", projectID)))
	defer span.End()

	target := c.endpoint(c.streamPath, url.Values{"project_id": {projectID}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return recordErr(span, fmt.Errorf("build stream request: %w", err))
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return recordErr(span, fmt.Errorf("open stream: %w", err))
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return recordErr(span, err)
	}

	received := 0
	err = readEvents(resp.Body, func(data string) {
		ev, err := wire.DecodeInbound([]byte(data), c.clock())
		if err != nil {
			c.logger.Warn("dropping malformed push event", "project_id", projectID, "err", err)
			return
		}
		received++
		fn(ev)
	})
	span.SetAttributes(attribute.Int("boardsync.events_received", received))
	if err != nil && ctx.Err() == nil {
		return recordErr(span, fmt.Errorf("read stream: %w", err))
	}
	return nil
}

// Follow keeps the push channel open, reconnecting after backoff whenever
// the stream drops, until ctx ends.
func (c *Client) Follow(ctx context.Context, projectID string, backoff time.Duration, fn InboundHandler) error {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	for {
		err := c.Stream(ctx, projectID, fn)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Warn("push stream dropped", "project_id", projectID, "err", err, "retry_in", backoff)
		} else {
			c.logger.Debug("push stream closed by server", "project_id", projectID)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

// readEvents splits an event-stream body into data payloads. Multi-line data
// fields are joined with newlines; comments and other fields are ignored.
func readEvents(r io.Reader, fn func(string)) error {
	reader := bufio.NewReader(r)
	var data []string
	dispatch := func() {
		if len(data) > 0 {
			fn(strings.Join(data, "\n"))
		}
		data = data[:0]
	}
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				dispatch()
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		if errors.Is(err, io.EOF) {
			dispatch()
			return nil
		}
		if err != nil {
			return err
		}
	}
}
