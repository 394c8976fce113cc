package app

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/evanschultz/boardsync/internal/domain"
)

func TestPartitionUnmappedRules(t *testing.T) {
	tasks := []domain.Task{
		mustTask(t, "A", "todo", 1),
		mustTask(t, "B", "mystery", 0),
		mustTask(t, "C", "", 2),
		mustTask(t, "D", "todo", 0),
	}
	groups := Partition(tasks, domain.GroupByStatus, testCatalog().Statuses)
	if len(groups) != 4 {
		t.Fatalf("expected three defined groups plus unmapped, got %#v", groups)
	}
	if !slices.Equal(groups[0].TaskIDs, []string{"D", "A"}) {
		t.Fatalf("unexpected todo order %#v", groups[0].TaskIDs)
	}
	last := groups[len(groups)-1]
	if !last.Unmapped() || !slices.Equal(last.TaskIDs, []string{"B", "C"}) {
		t.Fatalf("unexpected unmapped group %#v", last)
	}

	groups = Partition(tasks[:1], domain.GroupByStatus, testCatalog().Statuses)
	for _, group := range groups {
		if group.Unmapped() {
			t.Fatal("expected no unmapped group when every task maps")
		}
	}

	groups = Partition(nil, domain.GroupByPhase, nil)
	if len(groups) != 1 || !groups[0].Unmapped() || len(groups[0].TaskIDs) != 0 {
		t.Fatalf("expected empty unmapped phase group, got %#v", groups)
	}
}

func TestPartitionSkipsSubTasksArchivedAndDuplicateDefs(t *testing.T) {
	parent := mustTask(t, "P", "todo", 0)
	child := mustTask(t, "C", "todo", 1)
	child.ParentID = "P"
	archived := mustTask(t, "X", "todo", 2)
	archived.Archive(testNow)
	defs := []domain.GroupDef{{ID: "todo"}, {ID: "todo"}, {ID: domain.UnmappedGroupID}}

	groups := Partition([]domain.Task{parent, child, archived}, domain.GroupByStatus, defs)
	if len(groups) != 1 || !slices.Equal(groups[0].TaskIDs, []string{"P"}) {
		t.Fatalf("unexpected groups %#v", groups)
	}
}

func TestPartitionTiesKeepInputOrder(t *testing.T) {
	tasks := []domain.Task{
		mustTask(t, "B", "todo", 1),
		mustTask(t, "A", "todo", 1),
		mustTask(t, "C", "todo", 0),
	}
	groups := Partition(tasks, domain.GroupByStatus, testCatalog().Statuses)
	if !slices.Equal(groups[0].TaskIDs, []string{"C", "B", "A"}) {
		t.Fatalf("unexpected order %#v", groups[0].TaskIDs)
	}
}

func TestPartitionIsDisjointCoverForRandomBoards(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	statuses := []string{"todo", "doing", "done", "", "stray"}
	priorities := []string{"high", "medium", "low", ""}
	for round := range 50 {
		store := NewStore()
		for i := range rng.IntN(40) {
			task := mustTask(t, fmt.Sprintf("t%d-%d", round, i), statuses[rng.IntN(len(statuses))], int64(rng.IntN(10)))
			task.PriorityID = priorities[rng.IntN(len(priorities))]
			if i > 0 && rng.IntN(5) == 0 {
				task.ParentID = fmt.Sprintf("t%d-%d", round, rng.IntN(i))
			}
			store.Put(task)
		}
		for _, mode := range domain.GroupingModes() {
			groups := Partition(store.Tasks(), mode, testCatalog().Defs(mode))
			if err := VerifyPartition(groups, store); err != nil {
				t.Fatalf("round %d mode %s: %v", round, mode, err)
			}
			for _, group := range groups {
				for i := 1; i < len(group.TaskIDs); i++ {
					prev, _ := store.Get(group.TaskIDs[i-1])
					cur, _ := store.Get(group.TaskIDs[i])
					if prev.SortOrders.Get(mode) > cur.SortOrders.Get(mode) {
						t.Fatalf("round %d mode %s: group %s not sorted", round, mode, group.ID)
					}
				}
			}
		}
	}
}

func TestVerifyPartitionReportsViolations(t *testing.T) {
	store := NewStore()
	store.Put(mustTask(t, "A", "todo", 0))
	store.Put(mustTask(t, "B", "todo", 1))

	cases := map[string][]domain.Group{
		"duplicate": {{ID: "todo", TaskIDs: []string{"A", "B"}}, {ID: "done", TaskIDs: []string{"A"}}},
		"missing":   {{ID: "todo", TaskIDs: []string{"A", "B", "ghost"}}},
		"uncovered": {{ID: "todo", TaskIDs: []string{"A"}}},
	}
	for name, groups := range cases {
		if err := VerifyPartition(groups, store); !errors.Is(err, ErrPartitionInvariant) {
			t.Fatalf("%s: expected ErrPartitionInvariant, got %v", name, err)
		}
	}
}

func TestPartitionerRecomputesOnStoreChange(t *testing.T) {
	store := NewStore()
	store.Put(mustTask(t, "A", "todo", 0))
	var p Partitioner
	first := p.Groups(store, domain.GroupByStatus, testCatalog(), 1)
	if len(first[0].TaskIDs) != 1 {
		t.Fatalf("unexpected first partition %#v", first)
	}
	store.Put(mustTask(t, "B", "todo", 1))
	second := p.Groups(store, domain.GroupByStatus, testCatalog(), 1)
	if !slices.Equal(second[0].TaskIDs, []string{"A", "B"}) {
		t.Fatalf("expected recompute after put, got %#v", second[0].TaskIDs)
	}
}

func TestReindexDenseAndOrderPreserving(t *testing.T) {
	groups := []domain.Group{
		{ID: "todo", TaskIDs: []string{"C", "A"}},
		{ID: "doing", TaskIDs: []string{}},
		{ID: "done", TaskIDs: []string{"B"}},
	}
	keys := Reindex(groups)
	want := map[string]int64{"C": 0, "A": 1, "B": 2}
	for id, key := range want {
		if keys[id] != key {
			t.Fatalf("key of %s = %d, want %d", id, keys[id], key)
		}
	}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys %#v", keys)
	}

	store := NewStore()
	for _, id := range []string{"A", "B", "C"} {
		store.Put(mustTask(t, id, "todo", 0))
	}
	updates := sortUpdates(groups, keys, store)
	if len(updates) != 3 || updates[0].TaskID != "C" || updates[2].TaskID != "B" || updates[2].SortOrder != 2 {
		t.Fatalf("unexpected updates %#v", updates)
	}
}

func TestMoveID(t *testing.T) {
	cases := []struct {
		from, to int
		want     []string
	}{
		{0, 2, []string{"B", "C", "A"}},
		{2, 0, []string{"C", "A", "B"}},
		{0, 3, []string{"B", "C", "A"}},
		{1, 1, []string{"A", "B", "C"}},
		{5, 0, []string{"A", "B", "C"}},
	}
	for _, tc := range cases {
		got := MoveID([]string{"A", "B", "C"}, tc.from, tc.to)
		if !slices.Equal(got, tc.want) {
			t.Fatalf("MoveID(%d, %d) = %#v, want %#v", tc.from, tc.to, got, tc.want)
		}
	}
}
