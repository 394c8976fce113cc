// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a request that is valid but cannot apply to the current board state.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a board that is not loaded or an engine that has stopped.
var ErrUnavailable = errors.New("board unavailable")

// Selection modes accepted by Select.
const (
	SelectSingle = "single"
	SelectToggle = "toggle"
	SelectRange  = "range"
	SelectGroup  = "group"
	SelectClear  = "clear"
)

// SupportedSelectModes returns every accepted selection mode in canonical order.
func SupportedSelectModes() []string {
	return []string{SelectSingle, SelectToggle, SelectRange, SelectGroup, SelectClear}
}

// ActorRef carries caller attribution on mutating requests.
type ActorRef struct {
	ActorID   string `json:"actor_id,omitempty"`
	ActorType string `json:"actor_type,omitempty"`
}

// GroupView describes one group of the current partition.
type GroupView struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Color      string   `json:"color,omitempty"`
	Unmapped   bool     `json:"unmapped"`
	Collapsed  bool     `json:"collapsed"`
	Check      string   `json:"check"`
	TaskIDs    []string `json:"task_ids"`
	RowCount   int      `json:"row_count"`
	StartIndex int      `json:"start_index"`
}

// RowView is one flattened renderable row.
type RowView struct {
	Kind    string `json:"kind"`
	GroupID string `json:"group_id"`
	TaskID  string `json:"task_id,omitempty"`
}

// BoardView is the read model returned by board queries.
type BoardView struct {
	ProjectID string         `json:"project_id"`
	GroupBy   string         `json:"group_by"`
	Groups    []GroupView    `json:"groups"`
	Rows      []RowView      `json:"rows"`
	Tasks     []wire.TaskDTO `json:"tasks"`
	Selected  []string       `json:"selected"`
}

// TaskView is one task plus its local edit state.
type TaskView struct {
	wire.TaskDTO
	Temporary     bool     `json:"temporary,omitempty"`
	Selected      bool     `json:"selected"`
	PendingFields []string `json:"pending_fields,omitempty"`
}

// UpdateFieldRequest edits one task field. Value uses the wire encoding.
type UpdateFieldRequest struct {
	TaskID string          `json:"task_id"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
	ActorRef
}

// MoveTaskRequest reorders one task within its group, onto a target task or
// the end of the group.
type MoveTaskRequest struct {
	TaskID       string `json:"task_id"`
	TargetTaskID string `json:"target_task_id,omitempty"`
	GroupID      string `json:"group_id,omitempty"`
	End          bool   `json:"end,omitempty"`
	ActorRef
}

// MoveResult reports the outcome of a move.
type MoveResult struct {
	Committed   bool     `json:"committed"`
	TaskID      string   `json:"task_id"`
	FromGroupID string   `json:"from_group_id,omitempty"`
	ToGroupID   string   `json:"to_group_id,omitempty"`
	FromIndex   int      `json:"from_index"`
	ToIndex     int      `json:"to_index"`
	Order       []string `json:"order,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// CreateTaskRequest creates a top-level task in GroupID or a sub-task under ParentID.
type CreateTaskRequest struct {
	Name     string `json:"name"`
	GroupID  string `json:"group_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	ActorRef
}

// ToggleGroupRequest flips or sets one group's collapsed state.
type ToggleGroupRequest struct {
	GroupID   string `json:"group_id"`
	Collapsed *bool  `json:"collapsed,omitempty"`
}

// SetGroupingRequest switches the grouping mode.
type SetGroupingRequest struct {
	GroupBy string `json:"group_by"`
}

// SelectRequest changes the selection. GroupID is used by the group mode.
type SelectRequest struct {
	Mode    string `json:"mode"`
	TaskID  string `json:"task_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// BulkRequest applies one bulk action to the selection.
type BulkRequest struct {
	Action  string   `json:"action"`
	ValueID string   `json:"value_id,omitempty"`
	IDs     []string `json:"ids,omitempty"`
	ActorRef
}

// BulkResult reports the tasks a bulk action touched.
type BulkResult struct {
	Action  string   `json:"action"`
	TaskIDs []string `json:"task_ids"`
}

// BoardService is the engine surface shared by the HTTP and MCP adapters.
type BoardService interface {
	Board(context.Context) (BoardView, error)
	Task(context.Context, string) (TaskView, error)
	UpdateField(context.Context, UpdateFieldRequest) (TaskView, error)
	MoveTask(context.Context, MoveTaskRequest) (MoveResult, error)
	CreateTask(context.Context, CreateTaskRequest) (TaskView, error)
	ToggleGroup(context.Context, ToggleGroupRequest) (GroupView, error)
	SetGrouping(context.Context, SetGroupingRequest) (BoardView, error)
	Select(context.Context, SelectRequest) ([]string, error)
	Bulk(context.Context, BulkRequest) (BulkResult, error)
	Publish(context.Context, []byte) error
}
