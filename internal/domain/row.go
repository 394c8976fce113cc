package domain

// RowKind tags a RowDescriptor.
type RowKind int

const (
	RowTask RowKind = iota
	RowAddTask
)

func (k RowKind) String() string {
	switch k {
	case RowTask:
		return "task"
	case RowAddTask:
		return "addTask"
	default:
		return "unknown"
	}
}

// RowDescriptor is one renderable row of the flattened board.
// Task rows carry TaskID; add-task rows carry only GroupID.
type RowDescriptor struct {
	Kind    RowKind
	TaskID  string
	GroupID string
}

// TaskRow builds a task row descriptor.
func TaskRow(groupID, taskID string) RowDescriptor {
	return RowDescriptor{Kind: RowTask, TaskID: taskID, GroupID: groupID}
}

// AddTaskRow builds an add-task affordance row.
func AddTaskRow(groupID string) RowDescriptor {
	return RowDescriptor{Kind: RowAddTask, GroupID: groupID}
}

// Layout is the flattened view handed to a virtualizing renderer.
// GroupIDs, Counts and StartIndex are parallel and include collapsed groups.
type Layout struct {
	Rows       []RowDescriptor
	GroupIDs   []string
	Counts     []int
	StartIndex []int
}

// CountFor returns the row count for groupID, or -1 when unknown.
func (l Layout) CountFor(groupID string) int {
	for i, id := range l.GroupIDs {
		if id == groupID {
			return l.Counts[i]
		}
	}
	return -1
}

// TaskIDs returns the task ids of every task row in display order.
func (l Layout) TaskIDs() []string {
	out := make([]string, 0, len(l.Rows))
	for _, row := range l.Rows {
		if row.Kind == RowTask {
			out = append(out, row.TaskID)
		}
	}
	return out
}
