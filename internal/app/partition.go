package app

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/evanschultz/boardsync/internal/domain"
)

// Partition derives the ordered groups for mode. Groups follow defs, members are
// top-level tasks sorted by the mode's key with ties kept in input order. Tasks
// whose value is blank or unknown land in the Unmapped group, which is appended
// when non-empty, or always in phase mode when the project has no phases.
func Partition(tasks []domain.Task, mode domain.GroupingMode, defs []domain.GroupDef) []domain.Group {
	groups := make([]domain.Group, 0, len(defs)+1)
	index := make(map[string]int, len(defs))
	for _, def := range defs {
		if _, dup := index[def.ID]; dup || def.ID == domain.UnmappedGroupID {
			continue
		}
		index[def.ID] = len(groups)
		groups = append(groups, domain.Group{
			ID:      def.ID,
			Title:   def.Name,
			Color:   def.Color,
			TaskIDs: []string{},
		})
	}

	buckets := make([][]domain.Task, len(groups))
	var unmapped []domain.Task
	for _, task := range tasks {
		if !task.TopLevel() || task.ArchivedAt != nil {
			continue
		}
		if idx, ok := index[task.Classifier(mode)]; ok {
			buckets[idx] = append(buckets[idx], task)
			continue
		}
		unmapped = append(unmapped, task)
	}

	byKey := func(a, b domain.Task) int {
		return cmp.Compare(a.SortOrders.Get(mode), b.SortOrders.Get(mode))
	}
	for i, bucket := range buckets {
		slices.SortStableFunc(bucket, byKey)
		groups[i].TaskIDs = taskIDs(bucket)
	}
	if len(unmapped) > 0 || (mode == domain.GroupByPhase && len(defs) == 0) {
		slices.SortStableFunc(unmapped, byKey)
		groups = append(groups, domain.Group{
			ID:      domain.UnmappedGroupID,
			Title:   domain.UnmappedGroupID,
			TaskIDs: taskIDs(unmapped),
		})
	}
	return groups
}

func taskIDs(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}

// Partitioner memoizes Partition against the store revision, the grouping mode
// and the catalog revision.
type Partitioner struct {
	valid      bool
	revision   uint64
	mode       domain.GroupingMode
	catalogRev uint64
	groups     []domain.Group
}

// Groups returns the cached partition, recomputing it when any key changed.
func (p *Partitioner) Groups(store *Store, mode domain.GroupingMode, catalog domain.Catalog, catalogRev uint64) []domain.Group {
	if p.valid && p.revision == store.Revision() && p.mode == mode && p.catalogRev == catalogRev {
		return p.groups
	}
	p.groups = Partition(store.Tasks(), mode, catalog.Defs(mode))
	p.valid = true
	p.revision = store.Revision()
	p.mode = mode
	p.catalogRev = catalogRev
	return p.groups
}

// Invalidate forces the next Groups call to recompute from scratch.
func (p *Partitioner) Invalidate() {
	p.valid = false
	p.groups = nil
}

// VerifyPartition checks that groups form a disjoint cover of the store's
// visible top-level tasks.
func VerifyPartition(groups []domain.Group, store *Store) error {
	seen := map[string]string{}
	for _, group := range groups {
		for _, id := range group.TaskIDs {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: task %q in groups %q and %q", ErrPartitionInvariant, id, prev, group.ID)
			}
			task, ok := store.Get(id)
			if !ok {
				return fmt.Errorf("%w: group %q references missing task %q", ErrPartitionInvariant, group.ID, id)
			}
			if !task.TopLevel() {
				return fmt.Errorf("%w: sub-task %q listed in group %q", ErrPartitionInvariant, id, group.ID)
			}
			seen[id] = group.ID
		}
	}
	for _, task := range store.Tasks() {
		if !task.TopLevel() || task.ArchivedAt != nil {
			continue
		}
		if _, ok := seen[task.ID]; !ok {
			return fmt.Errorf("%w: task %q is in no group", ErrPartitionInvariant, task.ID)
		}
	}
	return nil
}
