package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
	"github.com/evanschultz/boardsync/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    srv.URL + "/",
		StreamPath: "events/stream",
		HTTPClient: srv.Client(),
		Timeout:    time.Second,
		Clock:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return c
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNoRemote)
	_, err = New(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestEmitPostsEnvelope(t *testing.T) {
	var (
		gotPath string
		gotType string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newClient(t, srv)
	ev := domain.FieldChange{ProjectID: "p1", TaskID: "A", Field: domain.FieldName, Value: "Renamed"}
	require.NoError(t, c.Emit(context.Background(), ev))
	require.Equal(t, "/projects/p1/events", gotPath)
	require.Equal(t, "application/json", gotType)

	decoded, err := wire.DecodeOutbound(gotBody)
	require.NoError(t, err)
	require.Equal(t, ev, decoded)
}

func TestEmitReportsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newClient(t, srv).Emit(context.Background(), domain.FieldChange{ProjectID: "p1", TaskID: "A", Field: domain.FieldName, Value: "x"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	require.Equal(t, "nope", statusErr.Body)
	require.False(t, statusErr.Permanent())
}

func TestStatusErrorPermanent(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusNotFound:            true,
		http.StatusGone:                true,
		http.StatusUnprocessableEntity: true,
		http.StatusRequestTimeout:      false,
		http.StatusTooEarly:            false,
		http.StatusTooManyRequests:     false,
		http.StatusInternalServerError: false,
		http.StatusBadGateway:          false,
	}
	for code, want := range cases {
		err := &StatusError{Method: http.MethodPost, URL: "/projects/p1/events", Code: code}
		require.Equal(t, want, err.Permanent(), "status %d", code)
	}
}

func TestLoadTasksDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/p1/board", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wire.SnapshotDTO{
			Tasks: []wire.TaskDTO{
				{ID: "A", Name: "Alpha", StatusID: "todo", SortOrders: wire.SortOrdersDTO{Status: 0}},
				{ID: "B", Name: "Beta", StatusID: "todo", SortOrders: wire.SortOrdersDTO{Status: 1}},
			},
			Groups: wire.CatalogDTO{Statuses: []wire.GroupDefDTO{{ID: "todo", Name: "To Do"}}},
		})
	}))
	defer srv.Close()

	snap, err := newClient(t, srv).LoadTasks(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", snap.ProjectID)
	require.Len(t, snap.Tasks, 2)
	require.Equal(t, "p1", snap.Tasks[0].ProjectID)
	require.Equal(t, testNow, snap.Tasks[0].UpdatedAt)
	require.Len(t, snap.Groups.Statuses, 1)
}

func TestLoadTasksRejectsInvalidBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tasks":[{"id":"","name":"x"}]}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).LoadTasks(context.Background(), "p1")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestStreamDeliversEventsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events/stream", r.URL.Path)
		require.Equal(t, "p1", r.URL.Query().Get("project_id"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"type\":\"task.deleted\",\"payload\":{\"task_id\":\"A\"}}\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "event: update\ndata: {\"type\":\"task.field_changed\",\n")
		fmt.Fprint(w, "data: \"payload\":{\"task_id\":\"B\",\"field\":\"name\",\"value\":\"Bee\"}}\n\n")
	}))
	defer srv.Close()

	var got []domain.Inbound
	err := newClient(t, srv).Stream(context.Background(), "p1", func(ev domain.Inbound) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, domain.TaskDeleted{TaskID: "A"}, got[0])
	change, ok := got[1].(domain.FieldChanged)
	require.True(t, ok)
	require.Equal(t, "Bee", change.Value)
	require.True(t, change.At.IsZero())
}

func TestFollowReconnectsUntilCancelled(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		fmt.Fprint(w, "data: {\"type\":\"task.archived\",\"payload\":{\"task_id\":\"A\"}}\n\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan domain.Inbound, 8)
	done := make(chan error, 1)
	c := newClient(t, srv)
	go func() {
		done <- c.Follow(ctx, "p1", 10*time.Millisecond, func(ev domain.Inbound) {
			select {
			case received <- ev:
			default:
			}
		})
	}()
	for range 2 {
		select {
		case ev := <-received:
			require.Equal(t, domain.KindTaskArchived, ev.Kind())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pushed event")
		}
	}
	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, calls, 2)
}

func TestReadEventsFlushesTrailingFrame(t *testing.T) {
	var frames []string
	require.NoError(t, readEvents(strings.NewReader("data: a\r\ndata: b"), func(s string) {
		frames = append(frames, s)
	}))
	require.Equal(t, []string{"a\nb"}, frames)
}
