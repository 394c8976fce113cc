package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

// ErrMalformed reports an envelope that cannot be decoded.
var ErrMalformed = errors.New("malformed event")

// Envelope wraps every event on the wire. Type carries the domain event kind.
type Envelope struct {
	Type    domain.EventKind `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

type fieldChangedPayload struct {
	TaskID       string          `json:"task_id"`
	Field        string          `json:"field"`
	Value        json.RawMessage `json:"value"`
	ParentTaskID string          `json:"parent_task_id,omitempty"`
	At           time.Time       `json:"at,omitzero"`
	Rejected     bool            `json:"rejected,omitempty"`
}

type taskCreatedPayload struct {
	Task          TaskDTO `json:"task"`
	TempID        string  `json:"temp_id,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

type taskRefPayload struct {
	TaskID string `json:"task_id"`
}

type idsPayload struct {
	TaskID string   `json:"task_id"`
	IDs    []string `json:"ids"`
}

type sortUpdatePayload struct {
	TaskID     string `json:"task_id"`
	SortOrder  int64  `json:"sort_order"`
	StatusID   string `json:"status_id,omitempty"`
	PriorityID string `json:"priority_id,omitempty"`
	PhaseID    string `json:"phase_id,omitempty"`
}

type sortOrderChangedPayload struct {
	ProjectID   string              `json:"project_id,omitempty"`
	GroupBy     string              `json:"group_by"`
	TaskUpdates []sortUpdatePayload `json:"task_updates"`
}

type sortOrderChangePayload struct {
	ProjectID   string              `json:"project_id"`
	GroupBy     string              `json:"group_by"`
	TaskID      string              `json:"task_id"`
	TaskUpdates []sortUpdatePayload `json:"task_updates"`
	FromGroup   string              `json:"from_group"`
	ToGroup     string              `json:"to_group"`
}

type fieldChangePayload struct {
	ProjectID    string          `json:"project_id"`
	TaskID       string          `json:"task_id"`
	Field        string          `json:"field"`
	Value        json.RawMessage `json:"value"`
	ParentTaskID string          `json:"parent_task_id,omitempty"`
}

type createTaskPayload struct {
	Name               string `json:"name"`
	ProjectID          string `json:"project_id"`
	GroupBy            string `json:"group_by"`
	ClassifyingFieldID string `json:"classifying_field_id,omitempty"`
	ReporterID         string `json:"reporter_id,omitempty"`
	TeamID             string `json:"team_id,omitempty"`
	ParentTaskID       string `json:"parent_task_id,omitempty"`
	ClientRef          string `json:"client_ref,omitempty"`
}

type bulkPayload struct {
	ValueID string   `json:"value_id,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

type bulkActionPayload struct {
	Action    string      `json:"action"`
	TaskIDs   []string    `json:"task_ids"`
	ProjectID string      `json:"project_id"`
	Payload   bulkPayload `json:"payload"`
}

// DecodeInbound parses one server-pushed envelope. Unknown types wrap
// domain.ErrUnknownEvent so callers can log and skip them.
func DecodeInbound(data []byte, now time.Time) (domain.Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env.Inbound(now)
}

// Inbound decodes the envelope payload as a server-pushed event.
func (env Envelope) Inbound(now time.Time) (domain.Inbound, error) {
	switch env.Type {
	case domain.KindFieldChanged:
		var p fieldChangedPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		field, err := domain.ParseField(p.Field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		ev := domain.FieldChanged{
			TaskID:       p.TaskID,
			Field:        field,
			ParentTaskID: p.ParentTaskID,
			At:           p.At,
			Rejected:     p.Rejected,
		}
		if !p.Rejected {
			if ev.Value, err = DecodeFieldValue(field, p.Value); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
		return ev, nil
	case domain.KindTaskCreated:
		var p taskCreatedPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		task, err := p.Task.ToTask(now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return domain.TaskCreated{Task: task, TempID: p.TempID, CorrelationID: p.CorrelationID}, nil
	case domain.KindTaskDeleted, domain.KindTaskArchived:
		var p taskRefPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if env.Type == domain.KindTaskDeleted {
			return domain.TaskDeleted{TaskID: p.TaskID}, nil
		}
		return domain.TaskArchived{TaskID: p.TaskID}, nil
	case domain.KindAssigneesChanged, domain.KindLabelsChanged, domain.KindSubscribersChanged:
		var p idsPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		switch env.Type {
		case domain.KindAssigneesChanged:
			return domain.AssigneesChanged{TaskID: p.TaskID, IDs: p.IDs}, nil
		case domain.KindLabelsChanged:
			return domain.LabelsChanged{TaskID: p.TaskID, IDs: p.IDs}, nil
		default:
			return domain.SubscribersChanged{TaskID: p.TaskID, IDs: p.IDs}, nil
		}
	case domain.KindSortOrderChanged:
		var p sortOrderChangedPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		mode, err := domain.ParseGroupingMode(p.GroupBy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return domain.SortOrderChanged{ProjectID: p.ProjectID, GroupBy: mode, Updates: toSortUpdates(p.TaskUpdates)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Type)
	}
}

// EncodeInbound wraps a server-side event in an envelope.
func EncodeInbound(ev domain.Inbound) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case domain.FieldChanged:
		p := fieldChangedPayload{
			TaskID:       e.TaskID,
			Field:        string(e.Field),
			ParentTaskID: e.ParentTaskID,
			At:           e.At,
			Rejected:     e.Rejected,
		}
		if !e.Rejected {
			raw, err := EncodeFieldValue(e.Field, e.Value)
			if err != nil {
				return nil, err
			}
			p.Value = raw
		}
		payload = p
	case domain.TaskCreated:
		payload = taskCreatedPayload{Task: FromTask(e.Task), TempID: e.TempID, CorrelationID: e.CorrelationID}
	case domain.TaskDeleted:
		payload = taskRefPayload{TaskID: e.TaskID}
	case domain.TaskArchived:
		payload = taskRefPayload{TaskID: e.TaskID}
	case domain.AssigneesChanged:
		payload = idsPayload{TaskID: e.TaskID, IDs: e.IDs}
	case domain.LabelsChanged:
		payload = idsPayload{TaskID: e.TaskID, IDs: e.IDs}
	case domain.SubscribersChanged:
		payload = idsPayload{TaskID: e.TaskID, IDs: e.IDs}
	case domain.SortOrderChanged:
		payload = sortOrderChangedPayload{ProjectID: e.ProjectID, GroupBy: string(e.GroupBy), TaskUpdates: fromSortUpdates(e.Updates)}
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
	return encode(ev.Kind(), payload)
}

// EncodeOutbound wraps an engine emit in an envelope.
func EncodeOutbound(ev domain.Outbound) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case domain.SortOrderChange:
		payload = sortOrderChangePayload{
			ProjectID:   e.ProjectID,
			GroupBy:     string(e.GroupBy),
			TaskID:      e.TaskID,
			TaskUpdates: fromSortUpdates(e.TaskUpdates),
			FromGroup:   e.FromGroupID,
			ToGroup:     e.ToGroupID,
		}
	case domain.FieldChange:
		raw, err := EncodeFieldValue(e.Field, e.Value)
		if err != nil {
			return nil, err
		}
		payload = fieldChangePayload{ProjectID: e.ProjectID, TaskID: e.TaskID, Field: string(e.Field), Value: raw, ParentTaskID: e.ParentTaskID}
	case domain.CreateTask:
		payload = createTaskPayload{
			Name:               e.Name,
			ProjectID:          e.ProjectID,
			GroupBy:            string(e.GroupBy),
			ClassifyingFieldID: e.ClassifyingFieldID,
			ReporterID:         e.ReporterID,
			TeamID:             e.TeamID,
			ParentTaskID:       e.ParentTaskID,
			ClientRef:          e.ClientRef,
		}
	case domain.BulkAction:
		payload = bulkActionPayload{
			Action:    string(e.Action),
			TaskIDs:   e.TaskIDs,
			ProjectID: e.ProjectID,
			Payload:   bulkPayload{ValueID: e.Payload.ValueID, IDs: e.Payload.IDs},
		}
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
	return encode(ev.Kind(), payload)
}

// DecodeOutbound restores an emit persisted with EncodeOutbound.
func DecodeOutbound(data []byte) (domain.Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Type {
	case domain.KindEmitSortOrder:
		var p sortOrderChangePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		mode, err := domain.ParseGroupingMode(p.GroupBy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return domain.SortOrderChange{
			ProjectID:   p.ProjectID,
			GroupBy:     mode,
			TaskID:      p.TaskID,
			TaskUpdates: toSortUpdates(p.TaskUpdates),
			FromGroupID: p.FromGroup,
			ToGroupID:   p.ToGroup,
		}, nil
	case domain.KindEmitFieldEdit:
		var p fieldChangePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		field, err := domain.ParseField(p.Field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		value, err := DecodeFieldValue(field, p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if value, err = domain.NormalizeFieldValue(field, value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return domain.FieldChange{ProjectID: p.ProjectID, TaskID: p.TaskID, Field: field, Value: value, ParentTaskID: p.ParentTaskID}, nil
	case domain.KindEmitCreate:
		var p createTaskPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		mode, err := domain.ParseGroupingMode(p.GroupBy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return domain.CreateTask{
			Name:               p.Name,
			ProjectID:          p.ProjectID,
			GroupBy:            mode,
			ClassifyingFieldID: p.ClassifyingFieldID,
			ReporterID:         p.ReporterID,
			TeamID:             p.TeamID,
			ParentTaskID:       p.ParentTaskID,
			ClientRef:          p.ClientRef,
		}, nil
	case domain.KindEmitBulkAction:
		var p bulkActionPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		action, err := domain.ParseBulkAction(p.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return domain.BulkAction{
			Action:    action,
			TaskIDs:   p.TaskIDs,
			ProjectID: p.ProjectID,
			Payload:   domain.BulkPayload{ValueID: p.Payload.ValueID, IDs: p.Payload.IDs},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Type)
	}
}

func encode(kind domain.EventKind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	data, err := json.Marshal(Envelope{Type: kind, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return data, nil
}

func decodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

func toSortUpdates(in []sortUpdatePayload) []domain.SortUpdate {
	out := make([]domain.SortUpdate, 0, len(in))
	for _, u := range in {
		out = append(out, domain.SortUpdate(u))
	}
	return out
}

func fromSortUpdates(in []domain.SortUpdate) []sortUpdatePayload {
	out := make([]sortUpdatePayload, 0, len(in))
	for _, u := range in {
		out = append(out, sortUpdatePayload(u))
	}
	return out
}
