package app

import "github.com/evanschultz/boardsync/internal/domain"

// Flatten maps ordered groups onto one scrollable row sequence. Visible groups
// emit their task rows followed by one add-task row; collapsed groups emit
// nothing but keep a zero count so headers stay aligned with Counts.
func Flatten(groups []domain.Group, collapsed map[string]bool) domain.Layout {
	layout := domain.Layout{
		Rows:       []domain.RowDescriptor{},
		GroupIDs:   make([]string, 0, len(groups)),
		Counts:     make([]int, 0, len(groups)),
		StartIndex: make([]int, 0, len(groups)),
	}
	for _, group := range groups {
		layout.GroupIDs = append(layout.GroupIDs, group.ID)
		layout.StartIndex = append(layout.StartIndex, len(layout.Rows))
		if collapsed[group.ID] {
			layout.Counts = append(layout.Counts, 0)
			continue
		}
		for _, id := range group.TaskIDs {
			layout.Rows = append(layout.Rows, domain.TaskRow(group.ID, id))
		}
		layout.Rows = append(layout.Rows, domain.AddTaskRow(group.ID))
		layout.Counts = append(layout.Counts, len(group.TaskIDs)+1)
	}
	return layout
}
