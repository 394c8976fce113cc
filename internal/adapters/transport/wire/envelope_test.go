package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evanschultz/boardsync/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func TestDecodeInboundFieldChanged(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{
		"type": "task.field_changed",
		"payload": {"task_id": "A", "field": "status", "value": null, "at": "2026-02-21T11:59:00Z"}
	}`), testNow)
	require.NoError(t, err)
	change, ok := ev.(domain.FieldChanged)
	require.True(t, ok)
	require.Equal(t, "A", change.TaskID)
	require.Equal(t, domain.FieldStatus, change.Field)
	require.Equal(t, "", change.Value)
	require.Equal(t, testNow.Add(-time.Minute), change.At)
}

func TestDecodeInboundRejectedSkipsValue(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"type":"task.field_changed","payload":{"task_id":"A","field":"status","rejected":true}}`), testNow)
	require.NoError(t, err)
	require.True(t, ev.(domain.FieldChanged).Rejected)
}

func TestDecodeInboundSortOrderChanged(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"type":"task.sort_order_changed","payload":{
		"project_id":"p1","group_by":"priority",
		"task_updates":[{"task_id":"B","sort_order":0,"priority_id":"high"},{"task_id":"A","sort_order":1}]
	}}`), testNow)
	require.NoError(t, err)
	change := ev.(domain.SortOrderChanged)
	require.Equal(t, domain.GroupByPriority, change.GroupBy)
	require.Equal(t, []domain.SortUpdate{
		{TaskID: "B", SortOrder: 0, PriorityID: "high"},
		{TaskID: "A", SortOrder: 1},
	}, change.Updates)
}

func TestDecodeInboundErrors(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"task.exploded","payload":{}}`), testNow)
	require.ErrorIs(t, err, domain.ErrUnknownEvent)

	cases := []string{
		`not json`,
		`{"type":"task.deleted"}`,
		`{"type":"task.field_changed","payload":{"task_id":"A","field":"mood","value":"x"}}`,
		`{"type":"task.field_changed","payload":{"task_id":"A","field":"progress","value":"lots"}}`,
		`{"type":"task.sort_order_changed","payload":{"group_by":"assignee","task_updates":[]}}`,
		`{"type":"task.created","payload":{"task":{"id":"","name":"x"}}}`,
	}
	for _, raw := range cases {
		_, err := DecodeInbound([]byte(raw), testNow)
		require.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestInboundEnvelopeRoundTrip(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	task, err := domain.NewTask(domain.TaskInput{
		ID:          "T1",
		ProjectID:   "p1",
		Name:        "Ship it",
		StatusID:    "doing",
		ParentID:    "P",
		SortOrders:  domain.SortOrders{Status: 3, Priority: 1},
		LabelIDs:    []string{"bug"},
		StartDate:   &start,
		Estimation:  90 * time.Minute,
		Progress:    40,
		Subscribers: []string{"u1"},
	}, testNow)
	require.NoError(t, err)

	events := []domain.Inbound{
		domain.FieldChanged{TaskID: "A", Field: domain.FieldEstimation, Value: 2 * time.Hour, At: testNow},
		domain.FieldChanged{TaskID: "A", Field: domain.FieldLabels, Value: []string{"x", "y"}, At: testNow},
		domain.TaskCreated{Task: task, TempID: "temp-1"},
		domain.TaskDeleted{TaskID: "A"},
		domain.TaskArchived{TaskID: "A"},
		domain.AssigneesChanged{TaskID: "A", IDs: []string{"u1"}},
		domain.SubscribersChanged{TaskID: "A", IDs: []string{}},
	}
	for _, ev := range events {
		data, err := EncodeInbound(ev)
		require.NoError(t, err)
		decoded, err := DecodeInbound(data, testNow)
		require.NoError(t, err)
		require.Equal(t, ev.Kind(), decoded.Kind())
	}

	data, err := EncodeInbound(events[0])
	require.NoError(t, err)
	decoded, err := DecodeInbound(data, testNow)
	require.NoError(t, err)
	require.Equal(t, 120, decoded.(domain.FieldChanged).Value)

	data, err = EncodeInbound(events[2])
	require.NoError(t, err)
	decoded, err = DecodeInbound(data, testNow)
	require.NoError(t, err)
	require.Equal(t, task, decoded.(domain.TaskCreated).Task)
}

func TestOutboundEnvelopeRoundTrip(t *testing.T) {
	end := testNow.Add(48 * time.Hour)
	events := []domain.Outbound{
		domain.SortOrderChange{
			ProjectID:   "p1",
			GroupBy:     domain.GroupByStatus,
			TaskID:      "A",
			TaskUpdates: []domain.SortUpdate{{TaskID: "B", SortOrder: 0, StatusID: "todo"}, {TaskID: "A", SortOrder: 1, StatusID: "todo"}},
			FromGroupID: "todo",
			ToGroupID:   "todo",
		},
		domain.FieldChange{ProjectID: "p1", TaskID: "A", Field: domain.FieldEndDate, Value: &end},
		domain.FieldChange{ProjectID: "p1", TaskID: "A", Field: domain.FieldPhase, Value: ""},
		domain.CreateTask{Name: "new", ProjectID: "p1", GroupBy: domain.GroupByPhase, ClientRef: "temp-9"},
		domain.BulkAction{Action: domain.BulkLabels, TaskIDs: []string{"A", "B"}, ProjectID: "p1", Payload: domain.BulkPayload{IDs: []string{"l1"}}},
	}
	for _, ev := range events {
		data, err := EncodeOutbound(ev)
		require.NoError(t, err)
		decoded, err := DecodeOutbound(data)
		require.NoError(t, err)
		require.Equal(t, ev, decoded)
	}
}

func TestEncodeOutboundFieldValueShapes(t *testing.T) {
	data, err := EncodeOutbound(domain.FieldChange{ProjectID: "p1", TaskID: "A", Field: domain.FieldStatus, Value: ""})
	require.NoError(t, err)
	var env struct {
		Type    string `json:"type"`
		Payload struct {
			Value json.RawMessage `json:"value"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "emit.field_change", env.Type)
	require.JSONEq(t, `null`, string(env.Payload.Value))

	_, err = EncodeOutbound(domain.FieldChange{Field: domain.FieldProgress, Value: 101})
	require.ErrorIs(t, err, domain.ErrInvalidFieldValue)
}

func TestSnapshotDTOConversion(t *testing.T) {
	dto := SnapshotDTO{
		ProjectID: "p1",
		Tasks: []TaskDTO{
			{ID: "A", Name: "Alpha", StatusID: "todo", SortOrders: SortOrdersDTO{Status: 1}},
			{ID: "B", Name: "Beta", ParentID: "A"},
		},
		Groups:  CatalogDTO{Statuses: []GroupDefDTO{{ID: "todo"}, {ID: "in_review", Color: "#fff"}}},
		Columns: []ColumnDTO{{Key: "name", Name: "Name", Visible: true, Pinned: true}},
	}
	snap, err := dto.ToSnapshot(testNow)
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 2)
	require.Equal(t, "p1", snap.Tasks[1].ProjectID)
	require.Equal(t, "In Review", snap.Groups.Statuses[1].Name)
	require.True(t, snap.Columns[0].Pinned)

	back := FromSnapshot(snap)
	require.Equal(t, "p1", back.ProjectID)
	require.Equal(t, int64(1), back.Tasks[0].SortOrders.Status)

	dto.Columns = []ColumnDTO{{Key: "", Name: "x"}}
	_, err = dto.ToSnapshot(testNow)
	require.ErrorIs(t, err, domain.ErrInvalidID)
}
