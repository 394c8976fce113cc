package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evanschultz/boardsync/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

const board = `
tasks:
  - id: A
    name: Write docs
    status: todo
    priority: high
    sort: {status: 1, priority: 0}
    labels: [docs]
    estimation_minutes: 90
  - id: B
    name: Review
    status: todo
    sort: {status: 0}
  - id: B1
    name: Check links
    parent: B
groups:
  statuses:
    - id: todo
      name: To Do
      color: "#a0a0a0"
    - id: in_review
columns:
  - key: name
    name: Name
    visible: true
    pinned: true
`

func TestParseBoard(t *testing.T) {
	snap, err := Parse([]byte(board), "p1", testNow)
	require.NoError(t, err)
	require.Equal(t, "p1", snap.ProjectID)
	require.Len(t, snap.Tasks, 3)

	a := snap.Tasks[0]
	require.Equal(t, "p1", a.ProjectID)
	require.Equal(t, "high", a.PriorityID)
	require.Equal(t, int64(1), a.SortOrders.Status)
	require.Equal(t, []string{"docs"}, a.LabelIDs)
	require.Equal(t, 90*time.Minute, a.Estimation)
	require.Equal(t, "B", snap.Tasks[2].ParentID)

	require.Len(t, snap.Groups.Statuses, 2)
	require.Equal(t, "In Review", snap.Groups.Statuses[1].Name)
	require.Equal(t, "#a0a0a0", snap.Groups.Statuses[0].Color)
	require.True(t, snap.Columns[0].Pinned)
}

func TestParseRejectsOtherProject(t *testing.T) {
	_, err := Parse([]byte("project_id: other\ntasks: []\n"), "p1", testNow)
	require.ErrorIs(t, err, ErrProjectMismatch)

	_, err = Parse([]byte("tasks:\n  - id: A\n    name: \"\"\n"), "p1", testNow)
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = Parse([]byte("tasks: [oops"), "p1", testNow)
	require.Error(t, err)
}

func TestLoaderReadsFileOnEveryLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(board), 0o644))

	loader, err := NewLoader(path, func() time.Time { return testNow })
	require.NoError(t, err)
	snap, err := loader.LoadTasks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 3)

	require.NoError(t, os.WriteFile(path, []byte("tasks:\n  - id: Z\n    name: Only\n"), 0o644))
	snap, err = loader.LoadTasks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 1)
	require.Equal(t, testNow, snap.Tasks[0].UpdatedAt)

	_, err = NewLoader(" ", nil)
	require.Error(t, err)
}
