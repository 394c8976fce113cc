package domain

import (
	"slices"
	"strings"
	"time"
)

// SortOrders keeps one order key per grouping mode.
type SortOrders struct {
	Status   int64
	Priority int64
	Phase    int64
}

// Get returns the key used by mode.
func (s SortOrders) Get(mode GroupingMode) int64 {
	switch mode {
	case GroupByPriority:
		return s.Priority
	case GroupByPhase:
		return s.Phase
	default:
		return s.Status
	}
}

// With returns a copy of s with the key for mode replaced.
func (s SortOrders) With(mode GroupingMode, key int64) SortOrders {
	switch mode {
	case GroupByPriority:
		s.Priority = key
	case GroupByPhase:
		s.Phase = key
	default:
		s.Status = key
	}
	return s
}

type Task struct {
	ID          string
	ProjectID   string
	Name        string
	Description string

	StatusID   string
	PriorityID string
	PhaseID    string

	ParentID   string
	SubTaskIDs []string
	SortOrders SortOrders

	AssigneeIDs   []string
	LabelIDs      []string
	SubscriberIDs []string

	StartDate  *time.Time
	EndDate    *time.Time
	Estimation time.Duration
	Progress   int

	CommentsCount    int
	AttachmentsCount int
	HasDependencies  bool
	Recurring        bool

	ShowSubTasks bool
	Temporary    bool
	ClientRef    string

	ArchivedAt *time.Time
	UpdatedAt  time.Time
}

type TaskInput struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	StatusID    string
	PriorityID  string
	PhaseID     string
	ParentID    string
	SubTaskIDs  []string
	SortOrders  SortOrders
	AssigneeIDs []string
	LabelIDs    []string
	Subscribers []string
	StartDate   *time.Time
	EndDate     *time.Time
	Estimation  time.Duration
	Progress    int

	CommentsCount    int
	AttachmentsCount int
	HasDependencies  bool
	Recurring        bool
	Temporary        bool
	ClientRef        string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Name == "" {
		return Task{}, ErrInvalidName
	}
	if in.Progress < 0 || in.Progress > 100 || in.Estimation < 0 {
		return Task{}, ErrInvalidFieldValue
	}
	if in.CommentsCount < 0 || in.AttachmentsCount < 0 {
		return Task{}, ErrInvalidPosition
	}
	parentID := strings.TrimSpace(in.ParentID)
	if parentID == in.ID {
		return Task{}, ErrInvalidID
	}

	return Task{
		ID:               in.ID,
		ProjectID:        strings.TrimSpace(in.ProjectID),
		Name:             in.Name,
		Description:      strings.TrimSpace(in.Description),
		StatusID:         strings.TrimSpace(in.StatusID),
		PriorityID:       strings.TrimSpace(in.PriorityID),
		PhaseID:          strings.TrimSpace(in.PhaseID),
		ParentID:         parentID,
		SubTaskIDs:       normalizeIDs(in.SubTaskIDs),
		SortOrders:       in.SortOrders,
		AssigneeIDs:      normalizeIDs(in.AssigneeIDs),
		LabelIDs:         normalizeIDs(in.LabelIDs),
		SubscriberIDs:    normalizeIDs(in.Subscribers),
		StartDate:        normalizeDate(in.StartDate),
		EndDate:          normalizeDate(in.EndDate),
		Estimation:       in.Estimation,
		Progress:         in.Progress,
		CommentsCount:    in.CommentsCount,
		AttachmentsCount: in.AttachmentsCount,
		HasDependencies:  in.HasDependencies,
		Recurring:        in.Recurring,
		Temporary:        in.Temporary,
		ClientRef:        strings.TrimSpace(in.ClientRef),
		UpdatedAt:        now.UTC(),
	}, nil
}

// TopLevel reports whether t can appear in a top-level group.
func (t Task) TopLevel() bool {
	return t.ParentID == ""
}

// HasSubscribers reports whether anyone follows t.
func (t Task) HasSubscribers() bool {
	return len(t.SubscriberIDs) > 0
}

// Classifier returns the group value of t under mode.
func (t Task) Classifier(mode GroupingMode) string {
	switch mode {
	case GroupByPriority:
		return t.PriorityID
	case GroupByPhase:
		return t.PhaseID
	default:
		return t.StatusID
	}
}

// Value returns the current value of field in the canonical type used by NormalizeFieldValue.
func (t Task) Value(field Field) any {
	switch field {
	case FieldName:
		return t.Name
	case FieldDescription:
		return t.Description
	case FieldStatus:
		return t.StatusID
	case FieldPriority:
		return t.PriorityID
	case FieldPhase:
		return t.PhaseID
	case FieldStartDate:
		return cloneTime(t.StartDate)
	case FieldEndDate:
		return cloneTime(t.EndDate)
	case FieldEstimation:
		return t.Estimation
	case FieldProgress:
		return t.Progress
	case FieldLabels:
		return slices.Clone(t.LabelIDs)
	case FieldAssignees:
		return slices.Clone(t.AssigneeIDs)
	default:
		return nil
	}
}

// SetField overwrites one field after normalizing value.
func (t *Task) SetField(field Field, value any, now time.Time) error {
	v, err := NormalizeFieldValue(field, value)
	if err != nil {
		return err
	}
	switch field {
	case FieldName:
		t.Name = v.(string)
	case FieldDescription:
		t.Description = v.(string)
	case FieldStatus:
		t.StatusID = v.(string)
	case FieldPriority:
		t.PriorityID = v.(string)
	case FieldPhase:
		t.PhaseID = v.(string)
	case FieldStartDate:
		t.StartDate = v.(*time.Time)
	case FieldEndDate:
		t.EndDate = v.(*time.Time)
	case FieldEstimation:
		t.Estimation = v.(time.Duration)
	case FieldProgress:
		t.Progress = v.(int)
	case FieldLabels:
		t.LabelIDs = v.([]string)
	case FieldAssignees:
		t.AssigneeIDs = v.([]string)
	}
	t.UpdatedAt = now.UTC()
	return nil
}

// SetClassifier moves t to value under mode.
func (t *Task) SetClassifier(mode GroupingMode, value string, now time.Time) {
	_ = t.SetField(mode.ClassifyingField(), value, now)
}

// ReplaceSubscribers overwrites the subscriber list wholesale.
func (t *Task) ReplaceSubscribers(ids []string, now time.Time) {
	t.SubscriberIDs = normalizeIDs(ids)
	t.UpdatedAt = now.UTC()
}

// AddSubTask appends id to the sub-task list once.
func (t *Task) AddSubTask(id string) {
	if id == "" || slices.Contains(t.SubTaskIDs, id) {
		return
	}
	t.SubTaskIDs = append(t.SubTaskIDs, id)
}

// RemoveSubTask drops id from the sub-task list.
func (t *Task) RemoveSubTask(id string) {
	t.SubTaskIDs = slices.DeleteFunc(t.SubTaskIDs, func(existing string) bool {
		return existing == id
	})
}

// ReplaceSubTask swaps oldID for newID in place, keeping the list position.
func (t *Task) ReplaceSubTask(oldID, newID string) {
	idx := slices.Index(t.SubTaskIDs, oldID)
	if idx < 0 {
		t.AddSubTask(newID)
		return
	}
	if slices.Contains(t.SubTaskIDs, newID) {
		t.RemoveSubTask(oldID)
		return
	}
	t.SubTaskIDs[idx] = newID
}

func (t *Task) Archive(now time.Time) {
	ts := now.UTC()
	t.ArchivedAt = &ts
	t.UpdatedAt = ts
}

// Clone returns a deep copy safe to hand to readers.
func (t Task) Clone() Task {
	out := t
	out.SubTaskIDs = slices.Clone(t.SubTaskIDs)
	out.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	out.LabelIDs = slices.Clone(t.LabelIDs)
	out.SubscriberIDs = slices.Clone(t.SubscriberIDs)
	out.StartDate = cloneTime(t.StartDate)
	out.EndDate = cloneTime(t.EndDate)
	out.ArchivedAt = cloneTime(t.ArchivedAt)
	return out
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	out := *ts
	return &out
}
