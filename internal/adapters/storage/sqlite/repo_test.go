package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func fieldChange(taskID string, value any) domain.FieldChange {
	return domain.FieldChange{ProjectID: "p1", TaskID: taskID, Field: domain.FieldName, Value: value}
}

func TestRepository_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for i, id := range []string{"e1", "e2", "e3"} {
		entry := app.OutboxEntry{
			ID:        id,
			Event:     fieldChange("A", "rename "+id),
			CreatedAt: testNow.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	pending, err := repo.Pending(ctx, 2)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "e1" || pending[1].ID != "e2" {
		t.Fatalf("unexpected pending page %#v", pending)
	}
	if pending[0].Kind != domain.KindEmitFieldEdit || pending[0].ProjectID != "p1" {
		t.Fatalf("unexpected entry metadata %#v", pending[0])
	}
	change, ok := pending[0].Event.(domain.FieldChange)
	if !ok || change.Value != "rename e1" {
		t.Fatalf("unexpected decoded event %#v", pending[0].Event)
	}
	if !pending[0].CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected created_at %s", pending[0].CreatedAt)
	}

	if err := repo.MarkFailed(ctx, "e1", "connection refused", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := repo.Ack(ctx, "e2"); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}

	all, err := repo.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending(all) error = %v", err)
	}
	if len(all) != 2 || all[0].ID != "e1" || all[1].ID != "e3" {
		t.Fatalf("unexpected remaining entries %#v", all)
	}
	if all[0].Attempts != 1 || all[0].LastError != "connection refused" {
		t.Fatalf("expected failure bookkeeping, got %#v", all[0])
	}
	if !all[0].UpdatedAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("unexpected updated_at %s", all[0].UpdatedAt)
	}

	n, err := repo.CountPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountPending() = %d, %v", n, err)
	}
	purged, err := repo.Purge(ctx)
	if err != nil || purged != 2 {
		t.Fatalf("Purge() = %d, %v", purged, err)
	}
}

func TestRepository_DeadLetterMovesEntry(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for _, id := range []string{"e1", "e2"} {
		if err := repo.Append(ctx, app.OutboxEntry{ID: id, Event: fieldChange("A", id), CreatedAt: testNow}); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	if err := repo.DeadLetter(ctx, "e1", "status 404", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("DeadLetter() error = %v", err)
	}
	pending, err := repo.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "e2" {
		t.Fatalf("dead letter should leave the queue, got %#v", pending)
	}
	dead, err := repo.DeadLetters(ctx, 0)
	if err != nil {
		t.Fatalf("DeadLetters() error = %v", err)
	}
	if len(dead) != 1 || dead[0].ID != "e1" || dead[0].Attempts != 1 || dead[0].LastError != "status 404" {
		t.Fatalf("unexpected dead letters %#v", dead)
	}
	if change, ok := dead[0].Event.(domain.FieldChange); !ok || change.Value != "e1" {
		t.Fatalf("unexpected dead letter event %#v", dead[0].Event)
	}

	if err := repo.DeadLetter(ctx, "missing", "x", testNow); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_AppendAssignsID(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if err := repo.Append(ctx, app.OutboxEntry{Event: fieldChange("A", "x")}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	pending, err := repo.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || len(pending[0].ID) != 26 {
		t.Fatalf("expected generated ulid id, got %#v", pending)
	}
	if pending[0].CreatedAt.IsZero() || !pending[0].UpdatedAt.Equal(pending[0].CreatedAt) {
		t.Fatalf("expected default timestamps, got %#v", pending[0])
	}
}

func TestRepository_AppendRejectsMissingEvent(t *testing.T) {
	repo := newRepo(t)
	err := repo.Append(context.Background(), app.OutboxEntry{ID: "e1"})
	if !errors.Is(err, domain.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestRepository_NotFoundCases(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if err := repo.Ack(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("Ack() expected ErrNotFound, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "missing", "boom", testNow); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("MarkFailed() expected ErrNotFound, got %v", err)
	}
	if _, err := repo.LoadSnapshot(ctx, "p1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("LoadSnapshot() expected ErrNotFound, got %v", err)
	}
}

func TestRepository_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "boardsync.db")
	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	task, err := domain.NewTask(domain.TaskInput{
		ID:         "A",
		ProjectID:  "p1",
		Name:       "Alpha",
		StatusID:   "todo",
		SortOrders: domain.SortOrders{Status: 4},
		LabelIDs:   []string{"bug"},
		Progress:   30,
	}, testNow)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	todo, err := domain.NewGroupDef("todo", "To Do", "#ccc")
	if err != nil {
		t.Fatalf("NewGroupDef() error = %v", err)
	}
	snap := domain.Snapshot{
		ProjectID: "p1",
		Tasks:     []domain.Task{task},
		Groups:    domain.Catalog{Statuses: []domain.GroupDef{todo}},
	}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	loaded, err := repo.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].Name != "Alpha" || loaded.Tasks[0].SortOrders.Status != 4 {
		t.Fatalf("unexpected loaded tasks %#v", loaded.Tasks)
	}
	if loaded.Tasks[0].Progress != 30 || len(loaded.Tasks[0].LabelIDs) != 1 {
		t.Fatalf("unexpected loaded fields %#v", loaded.Tasks[0])
	}
	if len(loaded.Groups.Statuses) != 1 || loaded.Groups.Statuses[0].Name != "To Do" {
		t.Fatalf("unexpected loaded groups %#v", loaded.Groups)
	}

	snap.Tasks = nil
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot(replace) error = %v", err)
	}
	loaded, err = repo.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadSnapshot(replace) error = %v", err)
	}
	if len(loaded.Tasks) != 0 {
		t.Fatalf("expected replaced snapshot, got %d tasks", len(loaded.Tasks))
	}
}

func TestRepositoryOpenValidation(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("expected error for blank path")
	}
	repo := newRepo(t)
	if err := repo.SaveSnapshot(context.Background(), domain.Snapshot{}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestRepositoryImplementsPorts(t *testing.T) {
	var _ app.Outbox = (*Repository)(nil)
	var _ app.SnapshotStore = (*Repository)(nil)
}
