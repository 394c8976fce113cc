package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeLoader struct {
	snap  domain.Snapshot
	err   error
	calls int
}

func (f *fakeLoader) LoadTasks(_ context.Context, projectID string) (domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return domain.Snapshot{}, f.err
	}
	snap := f.snap
	if snap.ProjectID == "" {
		snap.ProjectID = projectID
	}
	return snap, nil
}

func seqIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%d", n)
	}
}

func testCatalog() domain.Catalog {
	return domain.Catalog{
		Statuses: []domain.GroupDef{
			{ID: "todo", Name: "To Do"},
			{ID: "doing", Name: "Doing"},
			{ID: "done", Name: "Done"},
		},
		Priorities: []domain.GroupDef{
			{ID: "high", Name: "High"},
			{ID: "medium", Name: "Medium"},
			{ID: "low", Name: "Low"},
		},
	}
}

func mustTask(t *testing.T, id, status string, key int64) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:         id,
		ProjectID:  "p1",
		Name:       "Task " + id,
		StatusID:   status,
		PriorityID: "medium",
		SortOrders: domain.SortOrders{Status: key, Priority: key},
	}, testNow)
	if err != nil {
		t.Fatalf("NewTask(%q) error = %v", id, err)
	}
	return task
}

func newTestEngine(t *testing.T, tasks ...domain.Task) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: testNow}
	loader := &fakeLoader{snap: domain.Snapshot{ProjectID: "p1", Tasks: tasks, Groups: testCatalog()}}
	engine := NewEngine(loader, seqIDs(), clock.Now, EngineConfig{
		ProjectID:  "p1",
		TeamID:     "team-1",
		ReporterID: "user-1",
		GroupBy:    domain.GroupByStatus,
		Debug:      true,
	})
	if err := engine.Load(context.Background(), "p1"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return engine, clock
}

func record(e *Engine, kinds ...domain.EventKind) *[]domain.Event {
	got := []domain.Event{}
	for _, kind := range kinds {
		e.Subscribe(kind, func(ev domain.Event) {
			got = append(got, ev)
		})
	}
	return &got
}

func groupByID(t *testing.T, groups []domain.Group, id string) domain.Group {
	t.Helper()
	for _, group := range groups {
		if group.ID == id {
			return group
		}
	}
	t.Fatalf("group %q not found in %#v", id, groups)
	return domain.Group{}
}
