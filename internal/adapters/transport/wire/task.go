package wire

import (
	"fmt"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

// TaskDTO is the wire and fixture shape of one task.
type TaskDTO struct {
	ID                string        `json:"id" yaml:"id"`
	ProjectID         string        `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Name              string        `json:"name" yaml:"name"`
	Description       string        `json:"description,omitempty" yaml:"description,omitempty"`
	StatusID          string        `json:"status_id,omitempty" yaml:"status,omitempty"`
	PriorityID        string        `json:"priority_id,omitempty" yaml:"priority,omitempty"`
	PhaseID           string        `json:"phase_id,omitempty" yaml:"phase,omitempty"`
	ParentID          string        `json:"parent_id,omitempty" yaml:"parent,omitempty"`
	SubTaskIDs        []string      `json:"sub_task_ids,omitempty" yaml:"sub_tasks,omitempty"`
	SortOrders        SortOrdersDTO `json:"sort_orders" yaml:"sort,omitempty"`
	AssigneeIDs       []string      `json:"assignee_ids,omitempty" yaml:"assignees,omitempty"`
	LabelIDs          []string      `json:"label_ids,omitempty" yaml:"labels,omitempty"`
	SubscriberIDs     []string      `json:"subscriber_ids,omitempty" yaml:"subscribers,omitempty"`
	StartDate         *time.Time    `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate           *time.Time    `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	EstimationMinutes int           `json:"estimation_minutes,omitempty" yaml:"estimation_minutes,omitempty"`
	Progress          int           `json:"progress,omitempty" yaml:"progress,omitempty"`
	CommentsCount     int           `json:"comments_count,omitempty" yaml:"comments,omitempty"`
	AttachmentsCount  int           `json:"attachments_count,omitempty" yaml:"attachments,omitempty"`
	HasDependencies   bool          `json:"has_dependencies,omitempty" yaml:"has_dependencies,omitempty"`
	Recurring         bool          `json:"recurring,omitempty" yaml:"recurring,omitempty"`
	ShowSubTasks      bool          `json:"show_sub_tasks,omitempty" yaml:"show_sub_tasks,omitempty"`
	ClientRef         string        `json:"client_ref,omitempty" yaml:"client_ref,omitempty"`
	ArchivedAt        *time.Time    `json:"archived_at,omitempty" yaml:"archived_at,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

type SortOrdersDTO struct {
	Status   int64 `json:"status" yaml:"status"`
	Priority int64 `json:"priority" yaml:"priority"`
	Phase    int64 `json:"phase" yaml:"phase"`
}

type GroupDefDTO struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

type CatalogDTO struct {
	Statuses   []GroupDefDTO `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	Priorities []GroupDefDTO `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	Phases     []GroupDefDTO `json:"phases,omitempty" yaml:"phases,omitempty"`
}

type ColumnDTO struct {
	Key      string `json:"key" yaml:"key"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
	Width    int    `json:"width,omitempty" yaml:"width,omitempty"`
	Visible  bool   `json:"visible" yaml:"visible"`
	Pinned   bool   `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// SnapshotDTO is the board payload returned by a project load.
type SnapshotDTO struct {
	ProjectID string      `json:"project_id" yaml:"project_id"`
	Tasks     []TaskDTO   `json:"tasks" yaml:"tasks"`
	Groups    CatalogDTO  `json:"groups" yaml:"groups"`
	Columns   []ColumnDTO `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// FromTask converts a domain task.
func FromTask(task domain.Task) TaskDTO {
	return TaskDTO{
		ID:                task.ID,
		ProjectID:         task.ProjectID,
		Name:              task.Name,
		Description:       task.Description,
		StatusID:          task.StatusID,
		PriorityID:        task.PriorityID,
		PhaseID:           task.PhaseID,
		ParentID:          task.ParentID,
		SubTaskIDs:        task.SubTaskIDs,
		SortOrders:        SortOrdersDTO(task.SortOrders),
		AssigneeIDs:       task.AssigneeIDs,
		LabelIDs:          task.LabelIDs,
		SubscriberIDs:     task.SubscriberIDs,
		StartDate:         task.StartDate,
		EndDate:           task.EndDate,
		EstimationMinutes: int(task.Estimation / time.Minute),
		Progress:          task.Progress,
		CommentsCount:     task.CommentsCount,
		AttachmentsCount:  task.AttachmentsCount,
		HasDependencies:   task.HasDependencies,
		Recurring:         task.Recurring,
		ShowSubTasks:      task.ShowSubTasks,
		ClientRef:         task.ClientRef,
		ArchivedAt:        task.ArchivedAt,
		UpdatedAt:         task.UpdatedAt,
	}
}

// ToTask validates the DTO into a domain task. A zero UpdatedAt uses now.
func (d TaskDTO) ToTask(now time.Time) (domain.Task, error) {
	if !d.UpdatedAt.IsZero() {
		now = d.UpdatedAt
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:               d.ID,
		ProjectID:        d.ProjectID,
		Name:             d.Name,
		Description:      d.Description,
		StatusID:         d.StatusID,
		PriorityID:       d.PriorityID,
		PhaseID:          d.PhaseID,
		ParentID:         d.ParentID,
		SubTaskIDs:       d.SubTaskIDs,
		SortOrders:       domain.SortOrders(d.SortOrders),
		AssigneeIDs:      d.AssigneeIDs,
		LabelIDs:         d.LabelIDs,
		Subscribers:      d.SubscriberIDs,
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		Estimation:       time.Duration(d.EstimationMinutes) * time.Minute,
		Progress:         d.Progress,
		CommentsCount:    d.CommentsCount,
		AttachmentsCount: d.AttachmentsCount,
		HasDependencies:  d.HasDependencies,
		Recurring:        d.Recurring,
		ClientRef:        d.ClientRef,
	}, now)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %q: %w", d.ID, err)
	}
	task.ShowSubTasks = d.ShowSubTasks
	if d.ArchivedAt != nil {
		task.Archive(*d.ArchivedAt)
		task.UpdatedAt = now.UTC()
	}
	return task, nil
}

// FromSnapshot converts a domain snapshot.
func FromSnapshot(snap domain.Snapshot) SnapshotDTO {
	out := SnapshotDTO{
		ProjectID: snap.ProjectID,
		Tasks:     make([]TaskDTO, 0, len(snap.Tasks)),
		Groups: CatalogDTO{
			Statuses:   fromDefs(snap.Groups.Statuses),
			Priorities: fromDefs(snap.Groups.Priorities),
			Phases:     fromDefs(snap.Groups.Phases),
		},
	}
	for _, task := range snap.Tasks {
		out.Tasks = append(out.Tasks, FromTask(task))
	}
	for _, col := range snap.Columns {
		out.Columns = append(out.Columns, ColumnDTO(col))
	}
	return out
}

// ToSnapshot validates the DTO into a domain snapshot.
func (d SnapshotDTO) ToSnapshot(now time.Time) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		ProjectID: d.ProjectID,
		Tasks:     make([]domain.Task, 0, len(d.Tasks)),
	}
	for _, dto := range d.Tasks {
		if dto.ProjectID == "" {
			dto.ProjectID = d.ProjectID
		}
		task, err := dto.ToTask(now)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snap.Tasks = append(snap.Tasks, task)
	}
	var err error
	if snap.Groups.Statuses, err = toDefs("statuses", d.Groups.Statuses); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Groups.Priorities, err = toDefs("priorities", d.Groups.Priorities); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Groups.Phases, err = toDefs("phases", d.Groups.Phases); err != nil {
		return domain.Snapshot{}, err
	}
	for _, dto := range d.Columns {
		col, err := domain.NewColumn(dto.Key, dto.Name, dto.Position, dto.Width, dto.Visible)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("column %q: %w", dto.Key, err)
		}
		col.Pinned = dto.Pinned
		snap.Columns = append(snap.Columns, col)
	}
	return snap, nil
}

func fromDefs(defs []domain.GroupDef) []GroupDefDTO {
	if len(defs) == 0 {
		return nil
	}
	out := make([]GroupDefDTO, 0, len(defs))
	for _, def := range defs {
		out = append(out, GroupDefDTO(def))
	}
	return out
}

func toDefs(name string, in []GroupDefDTO) ([]domain.GroupDef, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]domain.GroupDef, 0, len(in))
	for i, dto := range in {
		def, err := domain.NewGroupDef(dto.ID, dto.Name, dto.Color)
		if err != nil {
			return nil, fmt.Errorf("groups.%s[%d]: %w", name, i, err)
		}
		out = append(out, def)
	}
	return out, nil
}
