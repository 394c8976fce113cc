package app

import "github.com/evanschultz/boardsync/internal/domain"

// Reindex walks groups in display order and assigns every member a dense key
// starting at zero. Keys are unique across the whole project.
func Reindex(groups []domain.Group) map[string]int64 {
	keys := map[string]int64{}
	var next int64
	for _, group := range groups {
		for _, id := range group.TaskIDs {
			if _, done := keys[id]; done {
				continue
			}
			keys[id] = next
			next++
		}
	}
	return keys
}

// sortUpdates lists keys in display order together with each task's classifying ids.
func sortUpdates(groups []domain.Group, keys map[string]int64, store *Store) []domain.SortUpdate {
	out := make([]domain.SortUpdate, 0, len(keys))
	emitted := make(map[string]struct{}, len(keys))
	for _, group := range groups {
		for _, id := range group.TaskIDs {
			if _, done := emitted[id]; done {
				continue
			}
			emitted[id] = struct{}{}
			update := domain.SortUpdate{TaskID: id, SortOrder: keys[id]}
			if task, ok := store.Get(id); ok {
				update.StatusID = task.StatusID
				update.PriorityID = task.PriorityID
				update.PhaseID = task.PhaseID
			}
			out = append(out, update)
		}
	}
	return out
}
