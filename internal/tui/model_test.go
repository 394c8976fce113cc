package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/domain"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

var (
	testAccent = lipgloss.Color("62")
	testMuted  = lipgloss.Color("241")
)

type fakeLoader struct {
	snap  domain.Snapshot
	err   error
	calls int
}

func (f *fakeLoader) LoadTasks(_ context.Context, _ string) (domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return domain.Snapshot{}, f.err
	}
	return f.snap, nil
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
		},
	}
}

func mustTask(t *testing.T, id, status string, key int64) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:          id,
		ProjectID:   "p1",
		Name:        "Task " + id,
		Description: "Notes for **" + id + "**",
		StatusID:    status,
		PriorityID:  "medium",
		SortOrders:  domain.SortOrders{Status: key, Priority: key},
	}, testNow)
	if err != nil {
		t.Fatalf("NewTask(%q) error = %v", id, err)
	}
	return task
}

func testSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	return domain.Snapshot{
		ProjectID: "p1",
		Tasks: []domain.Task{
			mustTask(t, "A", "todo", 0),
			mustTask(t, "B", "todo", 1),
			mustTask(t, "C", "todo", 2),
			mustTask(t, "D", "doing", 0),
		},
		Groups: testCatalog(),
	}
}

func newTestEngine(t *testing.T) *app.Engine {
	t.Helper()
	n := 0
	engine := app.NewEngine(nil, func() string {
		n++
		return strings.Repeat("x", n)
	}, func() time.Time { return testNow }, app.EngineConfig{ProjectID: "p1"})
	return engine
}

// newLoadedModel returns a sized model over A, B, C in todo and D in doing.
// Lines: 0 todo header, 1 A, 2 B, 3 C, 4 add, 5 doing header, 6 D, 7 add, 8 done header, 9 add.
func newLoadedModel(t *testing.T, opts ...Option) (Model, *app.Engine) {
	t.Helper()
	engine := newTestEngine(t)
	if err := engine.ApplySnapshot(testSnapshot(t)); err != nil {
		t.Fatalf("ApplySnapshot() error = %v", err)
	}
	m := NewModel(engine, nil, append([]Option{WithSweepInterval(0)}, opts...)...)
	m = applyMsg(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, engine
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	return out
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m = applyMsg(t, m, keyMsg(k))
	}
	return m
}

func keyMsg(k string) tea.KeyPressMsg {
	switch k {
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	case "tab":
		return tea.KeyPressMsg{Code: tea.KeyTab}
	case "space":
		return tea.KeyPressMsg{Code: tea.KeySpace}
	case "shift+space":
		return tea.KeyPressMsg{Code: tea.KeySpace, Mod: tea.ModShift}
	default:
		r := []rune(k)[0]
		return tea.KeyPressMsg{Code: r, Text: k}
	}
}

func groupOrder(t *testing.T, engine *app.Engine, groupID string) []string {
	t.Helper()
	group, err := engine.Group(groupID)
	if err != nil {
		t.Fatalf("Group(%q) error = %v", groupID, err)
	}
	return group.TaskIDs
}

func TestModelLoadsThroughLoader(t *testing.T) {
	loader := &fakeLoader{snap: testSnapshot(t)}
	m := NewModel(newTestEngine(t), loader, WithSweepInterval(0))
	if m.status != "loading..." {
		t.Fatalf("status = %q, want loading...", m.status)
	}

	msg := m.loadCmd()()
	m = applyMsg(t, m, msg)
	if !m.engine.Loaded() {
		t.Fatalf("engine not loaded after loadedMsg")
	}
	if m.status != "loaded 4 tasks" {
		t.Fatalf("status = %q, want loaded 4 tasks", m.status)
	}
	if got := len(m.lines()); got != 10 {
		t.Fatalf("lines = %d, want 10", got)
	}

	m = press(t, m, "R")
	if m.status != "refreshing..." {
		t.Fatalf("status = %q, want refreshing...", m.status)
	}
}

func TestModelLoadFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("offline")}
	m := NewModel(newTestEngine(t), loader, WithSweepInterval(0))
	m = applyMsg(t, m, m.loadCmd()())
	if m.err == nil || !strings.Contains(m.err.Error(), "offline") {
		t.Fatalf("err = %v, want offline", m.err)
	}

	loaded, _ := newLoadedModel(t)
	loaded.loader = loader
	loaded = applyMsg(t, loaded, loaded.loadCmd()())
	if loaded.err != nil {
		t.Fatalf("refresh failure should keep the loaded board, err = %v", loaded.err)
	}
	if !strings.HasPrefix(loaded.status, "refresh failed") {
		t.Fatalf("status = %q, want refresh failed", loaded.status)
	}
}

func TestModelCursorAndSelection(t *testing.T) {
	m, engine := newLoadedModel(t)

	m = press(t, m, "j", "space")
	if !engine.IsSelected("A") {
		t.Fatalf("A not selected")
	}
	m = press(t, m, "j", "j", "shift+space")
	if got := engine.Selected(); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("selected = %#v, want A B C", got)
	}
	if engine.GroupCheckState("todo") != app.CheckAll {
		t.Fatalf("todo check state = %s, want all", engine.GroupCheckState("todo"))
	}

	m = press(t, m, "a")
	if len(engine.Selected()) != 0 {
		t.Fatalf("group toggle should deselect a full group, got %#v", engine.Selected())
	}
	m = press(t, m, "a", "esc")
	if len(engine.Selected()) != 0 {
		t.Fatalf("esc should clear selection, got %#v", engine.Selected())
	}

	for range 20 {
		m = press(t, m, "j")
	}
	if m.cursor != 9 {
		t.Fatalf("cursor = %d, want clamped 9", m.cursor)
	}
}

func TestModelCollapseAndGrouping(t *testing.T) {
	m, engine := newLoadedModel(t)

	m = press(t, m, "enter")
	if !engine.Collapsed("todo") {
		t.Fatalf("todo not collapsed")
	}
	if got := len(m.lines()); got != 6 {
		t.Fatalf("lines = %d, want 6 after collapse", got)
	}
	m = press(t, m, "tab")
	if engine.Collapsed("todo") {
		t.Fatalf("todo still collapsed")
	}

	m = press(t, m, "z")
	if got := len(m.lines()); got != 3 {
		t.Fatalf("lines = %d, want 3 headers", got)
	}
	m = press(t, m, "Z")
	if got := len(m.lines()); got != 10 {
		t.Fatalf("lines = %d, want 10 after expand", got)
	}

	m = press(t, m, "j", "g")
	if engine.Mode() != domain.GroupByPriority {
		t.Fatalf("mode = %s, want priority", engine.Mode())
	}
	line, _ := m.currentLine()
	if line.taskID != "A" {
		t.Fatalf("cursor should follow A across regrouping, got %#v", line)
	}
}

func TestModelKeyboardDragReorders(t *testing.T) {
	m, engine := newLoadedModel(t)
	var emitted []domain.Event
	engine.Subscribe(domain.KindEmitSortOrder, func(ev domain.Event) { emitted = append(emitted, ev) })

	m = press(t, m, "j", "m")
	if m.mode != modeDrag {
		t.Fatalf("mode = %v, want drag", m.mode)
	}
	if engine.DragStatus().State != app.DragDragging {
		t.Fatalf("drag state = %s, want dragging", engine.DragStatus().State)
	}
	m = press(t, m, "j", "j")
	if status := engine.DragStatus(); status.OverID != "C" || status.DropPosition != app.DropAfter {
		t.Fatalf("drag status = %#v, want over C after", status)
	}
	board := m.renderBoard(testAccent, testMuted, 40)
	if !strings.Contains(board, "drop after") {
		t.Fatalf("board missing drop marker:\n%s", board)
	}

	m = press(t, m, "enter")
	if m.mode != modeNone {
		t.Fatalf("mode = %v, want none after drop", m.mode)
	}
	if got := groupOrder(t, engine, "todo"); !slices.Equal(got, []string{"B", "C", "A"}) {
		t.Fatalf("order = %#v, want B C A", got)
	}
	if len(emitted) != 1 {
		t.Fatalf("sort order emits = %d, want 1", len(emitted))
	}
	if line, _ := m.currentLine(); line.taskID != "A" {
		t.Fatalf("cursor should follow the moved task, got %#v", line)
	}
}

func TestModelKeyboardDragToEndAndCancel(t *testing.T) {
	m, engine := newLoadedModel(t)

	m = press(t, m, "j", "j", "m", "j", "j", "j", "j")
	if status := engine.DragStatus(); !status.OverEnd || status.OverGroupID != "todo" {
		t.Fatalf("drag status = %#v, want end of todo", status)
	}
	m = press(t, m, "enter")
	if got := groupOrder(t, engine, "todo"); !slices.Equal(got, []string{"A", "C", "B"}) {
		t.Fatalf("order = %#v, want A C B", got)
	}

	m = press(t, m, "m", "k", "esc")
	if m.mode != modeNone || engine.DragStatus().State != app.DragIdle {
		t.Fatalf("drag not cancelled: mode=%v state=%s", m.mode, engine.DragStatus().State)
	}
	if got := groupOrder(t, engine, "todo"); !slices.Equal(got, []string{"A", "C", "B"}) {
		t.Fatalf("cancel changed order: %#v", got)
	}
	if m.status != "move cancelled" {
		t.Fatalf("status = %q, want move cancelled", m.status)
	}
}

func TestModelDragCancelledByRemoteDelete(t *testing.T) {
	m, engine := newLoadedModel(t)

	m = press(t, m, "j", "m")
	m = applyMsg(t, m, InboundMsg{Event: domain.TaskDeleted{TaskID: "A"}})
	if m.mode != modeNone {
		t.Fatalf("mode = %v, want none after remote delete", m.mode)
	}
	if engine.DragStatus().State != app.DragIdle {
		t.Fatalf("drag state = %s, want idle", engine.DragStatus().State)
	}
	if got := groupOrder(t, engine, "todo"); !slices.Equal(got, []string{"B", "C"}) {
		t.Fatalf("order = %#v, want B C", got)
	}
}

func TestModelRenameAndCreate(t *testing.T) {
	m, engine := newLoadedModel(t)

	m = press(t, m, "j", "r")
	if m.mode != modeRename || m.input.Value() != "Task A" {
		t.Fatalf("rename not started: mode=%v value=%q", m.mode, m.input.Value())
	}
	m.input.SetValue("Alpha")
	m = press(t, m, "enter")
	task, err := engine.Task("A")
	if err != nil {
		t.Fatalf("Task(A) error = %v", err)
	}
	if task.Name != "Alpha" {
		t.Fatalf("name = %q, want Alpha", task.Name)
	}
	if _, ok := engine.Pending("A", domain.FieldName); !ok {
		t.Fatalf("rename should leave a pending edit")
	}
	if !strings.Contains(m.renderBoard(testAccent, testMuted, 40), "*") {
		t.Fatalf("pending marker missing")
	}

	m = press(t, m, "j", "j", "j", "enter")
	if m.mode != modeAddTask || m.inputGroupID != "todo" {
		t.Fatalf("add not started: mode=%v group=%q", m.mode, m.inputGroupID)
	}
	m = press(t, m, "enter")
	if m.status != "name required" || m.mode != modeAddTask {
		t.Fatalf("blank create should be refused, status=%q", m.status)
	}
	m.input.SetValue("Fresh")
	m = press(t, m, "enter")
	order := groupOrder(t, engine, "todo")
	if len(order) != 4 || !strings.HasPrefix(order[3], "temp-") {
		t.Fatalf("order = %#v, want temp task appended", order)
	}
	if line, _ := m.currentLine(); line.taskID != order[3] {
		t.Fatalf("cursor should land on the new task, got %#v", line)
	}

	m = press(t, m, "r", "esc")
	if m.mode != modeNone || m.status != "cancelled" {
		t.Fatalf("esc should cancel input, mode=%v status=%q", m.mode, m.status)
	}
}

func TestModelDescriptionAndCopy(t *testing.T) {
	var copied []string
	m, _ := newLoadedModel(t, WithClipboard(func(text string) error {
		copied = append(copied, text)
		return nil
	}))

	m = press(t, m, "j", "d")
	if m.mode != modeDescription || m.descTaskID != "A" {
		t.Fatalf("description not opened: mode=%v task=%q", m.mode, m.descTaskID)
	}
	if pane := m.renderDescription(testAccent, testMuted); !strings.Contains(pane, "Task A") {
		t.Fatalf("pane missing title:\n%s", pane)
	}
	m = press(t, m, "esc")
	if m.mode != modeNone {
		t.Fatalf("mode = %v, want none", m.mode)
	}

	updated, cmd := m.Update(keyMsg("y"))
	if cmd == nil {
		t.Fatalf("copy should return a command")
	}
	m = applyMsg(t, updated.(Model), cmd())
	if !slices.Equal(copied, []string{"A"}) {
		t.Fatalf("copied = %#v, want A", copied)
	}
	if m.status != "copied A" {
		t.Fatalf("status = %q, want copied A", m.status)
	}
}

func TestModelBulkArchive(t *testing.T) {
	m, engine := newLoadedModel(t)

	m = press(t, m, "X")
	if m.status != "select tasks first" {
		t.Fatalf("status = %q, want select tasks first", m.status)
	}
	m = press(t, m, "j", "space", "j", "space", "X")
	if got := groupOrder(t, engine, "todo"); !slices.Equal(got, []string{"C"}) {
		t.Fatalf("order = %#v, want C", got)
	}
	if m.status != "archived 2 tasks" {
		t.Fatalf("status = %q, want archived 2 tasks", m.status)
	}
}

func TestModelSubTasksAndQuit(t *testing.T) {
	m, engine := newLoadedModel(t)
	m = press(t, m, "j", "s")
	task, err := engine.Task("A")
	if err != nil {
		t.Fatalf("Task(A) error = %v", err)
	}
	if !task.ShowSubTasks {
		t.Fatalf("sub-tasks not expanded")
	}

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatalf("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestWindowBounds(t *testing.T) {
	cases := []struct {
		total, selected, size int
		start, end            int
	}{
		{0, 0, 5, 0, 0},
		{3, 1, 5, 0, 3},
		{10, 0, 4, 0, 4},
		{10, 5, 4, 3, 7},
		{10, 9, 4, 6, 10},
	}
	for _, tc := range cases {
		start, end := windowBounds(tc.total, tc.selected, tc.size)
		if start != tc.start || end != tc.end {
			t.Fatalf("windowBounds(%d,%d,%d) = %d,%d want %d,%d", tc.total, tc.selected, tc.size, start, end, tc.start, tc.end)
		}
	}
}

func TestFitLinesAndTruncate(t *testing.T) {
	if got := fitLines("a\nb\nc", 2); got != "a\n…" {
		t.Fatalf("fitLines cut = %q", got)
	}
	if got := fitLines("a", 3); got != "a\n\n" {
		t.Fatalf("fitLines pad = %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
}
