package domain

import "time"

// EventKind identifies an event on the board bus and on the wire.
type EventKind string

const (
	KindFieldChanged       EventKind = "task.field_changed"
	KindTaskCreated        EventKind = "task.created"
	KindTaskDeleted        EventKind = "task.deleted"
	KindTaskArchived       EventKind = "task.archived"
	KindAssigneesChanged   EventKind = "task.assignees_changed"
	KindLabelsChanged      EventKind = "task.labels_changed"
	KindSubscribersChanged EventKind = "task.subscribers_changed"
	KindSortOrderChanged   EventKind = "task.sort_order_changed"

	KindEmitSortOrder  EventKind = "emit.sort_order_change"
	KindEmitFieldEdit  EventKind = "emit.field_change"
	KindEmitCreate     EventKind = "emit.create"
	KindEmitBulkAction EventKind = "emit.bulk_action"

	KindBoardChanged EventKind = "board.changed"
)

// InboundKinds lists every kind the realtime channel may deliver.
func InboundKinds() []EventKind {
	return []EventKind{
		KindFieldChanged,
		KindTaskCreated,
		KindTaskDeleted,
		KindTaskArchived,
		KindAssigneesChanged,
		KindLabelsChanged,
		KindSubscribersChanged,
		KindSortOrderChanged,
	}
}

// OutboundKinds lists every kind the engine emits toward the server.
func OutboundKinds() []EventKind {
	return []EventKind{KindEmitSortOrder, KindEmitFieldEdit, KindEmitCreate, KindEmitBulkAction}
}

// Event is the closed set of messages carried by the board bus.
// The unexported marker keeps implementations inside this package.
type Event interface {
	Kind() EventKind
	event()
}

// Inbound is an event pushed by the server.
type Inbound interface {
	Event
	inbound()
}

// Outbound is an event the engine sends to the server.
type Outbound interface {
	Event
	outbound()
	Project() string
}

// FieldChanged reports a server-side edit of one task field.
// Rejected marks a refused local edit that should be reverted.
type FieldChanged struct {
	TaskID       string
	Field        Field
	Value        any
	ParentTaskID string
	At           time.Time
	Rejected     bool
}

// TaskCreated carries a new task. TempID or CorrelationID match a local placeholder.
type TaskCreated struct {
	Task          Task
	TempID        string
	CorrelationID string
}

type TaskDeleted struct {
	TaskID string
}

type TaskArchived struct {
	TaskID string
}

type AssigneesChanged struct {
	TaskID string
	IDs    []string
}

type LabelsChanged struct {
	TaskID string
	IDs    []string
}

type SubscribersChanged struct {
	TaskID string
	IDs    []string
}

// SortUpdate is one entry of a full project order.
type SortUpdate struct {
	TaskID     string
	SortOrder  int64
	StatusID   string
	PriorityID string
	PhaseID    string
}

// SortOrderChanged is the server-confirmed order for one grouping mode.
type SortOrderChanged struct {
	ProjectID string
	GroupBy   GroupingMode
	Updates   []SortUpdate
}

func (FieldChanged) Kind() EventKind       { return KindFieldChanged }
func (TaskCreated) Kind() EventKind        { return KindTaskCreated }
func (TaskDeleted) Kind() EventKind        { return KindTaskDeleted }
func (TaskArchived) Kind() EventKind       { return KindTaskArchived }
func (AssigneesChanged) Kind() EventKind   { return KindAssigneesChanged }
func (LabelsChanged) Kind() EventKind      { return KindLabelsChanged }
func (SubscribersChanged) Kind() EventKind { return KindSubscribersChanged }
func (SortOrderChanged) Kind() EventKind   { return KindSortOrderChanged }

func (FieldChanged) event()       {}
func (TaskCreated) event()        {}
func (TaskDeleted) event()        {}
func (TaskArchived) event()       {}
func (AssigneesChanged) event()   {}
func (LabelsChanged) event()      {}
func (SubscribersChanged) event() {}
func (SortOrderChanged) event()   {}

func (FieldChanged) inbound()       {}
func (TaskCreated) inbound()        {}
func (TaskDeleted) inbound()        {}
func (TaskArchived) inbound()       {}
func (AssigneesChanged) inbound()   {}
func (LabelsChanged) inbound()      {}
func (SubscribersChanged) inbound() {}
func (SortOrderChanged) inbound()   {}

// SortOrderChange is sent once per committed reorder with the entire recomputed order.
type SortOrderChange struct {
	ProjectID   string
	GroupBy     GroupingMode
	TaskID      string
	TaskUpdates []SortUpdate
	FromGroupID string
	ToGroupID   string
}

// FieldChange is sent once per committed inline edit.
type FieldChange struct {
	ProjectID    string
	TaskID       string
	Field        Field
	Value        any
	ParentTaskID string
}

// CreateTask requests a task or sub-task. ClientRef lets the echo replace the placeholder.
type CreateTask struct {
	Name               string
	ProjectID          string
	GroupBy            GroupingMode
	ClassifyingFieldID string
	ReporterID         string
	TeamID             string
	ParentTaskID       string
	ClientRef          string
}

// BulkActionKind names a bulk operation over selected tasks.
type BulkActionKind string

const (
	BulkStatus    BulkActionKind = "status"
	BulkPriority  BulkActionKind = "priority"
	BulkPhase     BulkActionKind = "phase"
	BulkLabels    BulkActionKind = "labels"
	BulkAssignees BulkActionKind = "assignees"
	BulkArchive   BulkActionKind = "archive"
	BulkDelete    BulkActionKind = "delete"
)

// ParseBulkAction normalizes a raw bulk action name.
func ParseBulkAction(raw string) (BulkActionKind, error) {
	switch action := BulkActionKind(raw); action {
	case BulkStatus, BulkPriority, BulkPhase, BulkLabels, BulkAssignees, BulkArchive, BulkDelete:
		return action, nil
	default:
		return "", ErrInvalidBulkAction
	}
}

// BulkPayload carries the target value of a bulk action.
type BulkPayload struct {
	ValueID string
	IDs     []string
}

type BulkAction struct {
	Action    BulkActionKind
	TaskIDs   []string
	ProjectID string
	Payload   BulkPayload
}

func (SortOrderChange) Kind() EventKind { return KindEmitSortOrder }
func (FieldChange) Kind() EventKind     { return KindEmitFieldEdit }
func (CreateTask) Kind() EventKind      { return KindEmitCreate }
func (BulkAction) Kind() EventKind      { return KindEmitBulkAction }

func (SortOrderChange) event() {}
func (FieldChange) event()     {}
func (CreateTask) event()      {}
func (BulkAction) event()      {}

func (SortOrderChange) outbound() {}
func (FieldChange) outbound()     {}
func (CreateTask) outbound()      {}
func (BulkAction) outbound()      {}

func (e SortOrderChange) Project() string { return e.ProjectID }
func (e FieldChange) Project() string     { return e.ProjectID }
func (e CreateTask) Project() string      { return e.ProjectID }
func (e BulkAction) Project() string      { return e.ProjectID }

// BoardChanged is published after any store mutation so hosts can redraw.
type BoardChanged struct {
	Reason string
}

func (BoardChanged) Kind() EventKind { return KindBoardChanged }
func (BoardChanged) event()          {}
