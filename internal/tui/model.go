package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/domain"
)

// loadTimeout bounds one board load.
const loadTimeout = 30 * time.Second

// inputMode represents the active interaction mode.
type inputMode int

// modeNone and related constants define the interaction modes.
const (
	modeNone inputMode = iota
	modeDrag
	modeRename
	modeAddTask
	modeDescription
)

// lineKind tags one cursor stop on the board.
type lineKind int

const (
	lineHeader lineKind = iota
	lineTask
	lineAdd
)

// boardLine is one cursor stop: a group header, a task row or an add-task row.
type boardLine struct {
	kind    lineKind
	groupID string
	taskID  string
}

// Model hosts one board engine inside a bubbletea program. The engine is only
// touched from Update and View, which bubbletea runs on one goroutine.
type Model struct {
	engine *app.Engine
	loader app.Loader

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap

	cursor int
	mode   inputMode

	input        textinput.Model
	inputTaskID  string
	inputGroupID string
	descTaskID   string

	dragGroupID string
	dragIndex   int

	sweepEvery time.Duration
	copy       CopyFunc
	markdown   *markdownRenderer
}

// loadedMsg carries one loader result.
type loadedMsg struct {
	snap domain.Snapshot
	err  error
}

// sweepMsg triggers one pending-edit sweep.
type sweepMsg time.Time

// copiedMsg reports one clipboard write.
type copiedMsg struct {
	id  string
	err error
}

// InboundMsg delivers one realtime event into the program. Hosts forward
// push-channel events with Program.Send.
type InboundMsg struct {
	Event domain.Inbound
}

// NewModel constructs a board model. A nil loader means the engine was
// loaded by the caller and refresh is unavailable.
func NewModel(engine *app.Engine, loader app.Loader, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	input := textinput.New()
	input.CharLimit = 240
	m := Model{
		engine:     engine,
		loader:     loader,
		status:     "loading...",
		help:       h,
		keys:       newKeyMap(),
		input:      input,
		sweepEvery: defaultSweepInterval,
		copy:       systemClipboard,
		markdown:   &markdownRenderer{},
	}
	if engine.Loaded() {
		m.status = "ready"
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init starts the initial load and the sweep ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.sweepCmd())
}

// loadCmd fetches a snapshot off the update goroutine.
func (m Model) loadCmd() tea.Cmd {
	if m.loader == nil {
		return nil
	}
	loader, projectID := m.loader, m.engine.ProjectID()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		snap, err := loader.LoadTasks(ctx, projectID)
		if err == nil && snap.ProjectID == "" {
			snap.ProjectID = projectID
		}
		return loadedMsg{snap: snap, err: err}
	}
}

// sweepCmd schedules the next pending-edit sweep.
func (m Model) sweepCmd() tea.Cmd {
	if m.sweepEvery <= 0 {
		return nil
	}
	return tea.Tick(m.sweepEvery, func(at time.Time) tea.Msg {
		return sweepMsg(at)
	})
}

// copyCmd writes id to the clipboard off the update goroutine.
func (m Model) copyCmd(id string) tea.Cmd {
	write := m.copy
	return func() tea.Msg {
		return copiedMsg{id: id, err: write(id)}
	}
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(max(0, msg.Width-2))
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			if m.engine.Loaded() {
				m.status = "refresh failed: " + msg.err.Error()
				return m, nil
			}
			m.err = msg.err
			return m, nil
		}
		if err := m.engine.ApplySnapshot(msg.snap); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("loaded %d tasks", len(msg.snap.Tasks))
		m.syncAfterChange()
		return m, nil

	case sweepMsg:
		if expired := m.engine.Sweep(); len(expired) > 0 {
			m.status = fmt.Sprintf("%d pending edits expired", len(expired))
		}
		return m, m.sweepCmd()

	case InboundMsg:
		if m.engine.Apply(msg.Event) {
			m.syncAfterChange()
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = "copied " + msg.id
		}
		return m, nil

	case tea.KeyPressMsg:
		switch m.mode {
		case modeDrag:
			return m.handleDragKey(msg)
		case modeRename, modeAddTask:
			return m.handleInputKey(msg)
		case modeDescription:
			return m.handleDescriptionKey(msg)
		default:
			return m.handleNormalKey(msg)
		}
	}

	if m.mode == modeRename || m.mode == modeAddTask {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// syncAfterChange keeps mode state valid after the board changed underneath it.
func (m *Model) syncAfterChange() {
	m.cursor = clamp(m.cursor, 0, len(m.lines())-1)
	if m.mode == modeDrag && m.engine.DragStatus().State != app.DragDragging {
		m.mode = modeNone
		m.status = "move cancelled: task changed remotely"
	}
	if m.mode == modeDescription {
		if _, err := m.engine.Task(m.descTaskID); err != nil {
			m.mode = modeNone
		}
	}
	if m.mode == modeRename {
		if _, err := m.engine.Task(m.inputTaskID); err != nil {
			m.mode = modeNone
			m.input.Blur()
			m.status = "rename cancelled: task removed"
		}
	}
}

// lines derives the cursor stops from the flattened layout.
func (m Model) lines() []boardLine {
	if !m.engine.Loaded() {
		return nil
	}
	layout := m.engine.Layout()
	out := make([]boardLine, 0, len(layout.Rows)+len(layout.GroupIDs))
	for i, groupID := range layout.GroupIDs {
		out = append(out, boardLine{kind: lineHeader, groupID: groupID})
		start, count := layout.StartIndex[i], layout.Counts[i]
		for _, row := range layout.Rows[start : start+count] {
			switch row.Kind {
			case domain.RowTask:
				out = append(out, boardLine{kind: lineTask, groupID: row.GroupID, taskID: row.TaskID})
			case domain.RowAddTask:
				out = append(out, boardLine{kind: lineAdd, groupID: row.GroupID})
			}
		}
	}
	return out
}

// currentLine returns the line under the cursor.
func (m Model) currentLine() (boardLine, bool) {
	lines := m.lines()
	if len(lines) == 0 {
		return boardLine{}, false
	}
	return lines[clamp(m.cursor, 0, len(lines)-1)], true
}

// focusTask moves the cursor onto taskID when it is visible.
func (m *Model) focusTask(taskID string) bool {
	for i, line := range m.lines() {
		if line.kind == lineTask && line.taskID == taskID {
			m.cursor = i
			return true
		}
	}
	return false
}

// focusGroup moves the cursor onto the header of groupID.
func (m *Model) focusGroup(groupID string) {
	for i, line := range m.lines() {
		if line.kind == lineHeader && line.groupID == groupID {
			m.cursor = i
			return
		}
	}
}

// handleNormalKey handles keys while no modal mode is active.
func (m Model) handleNormalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		if m.loader == nil {
			m.status = "refresh unavailable"
			return m, nil
		}
		m.status = "refreshing..."
		return m, m.loadCmd()
	}
	if !m.engine.Loaded() {
		return m, nil
	}

	lines := m.lines()
	if len(lines) == 0 {
		return m, nil
	}
	line, _ := m.currentLine()
	switch {
	case key.Matches(msg, m.keys.moveDown):
		m.cursor = clamp(m.cursor+1, 0, len(lines)-1)
	case key.Matches(msg, m.keys.moveUp):
		m.cursor = clamp(m.cursor-1, 0, len(lines)-1)
	case key.Matches(msg, m.keys.rangeSelect):
		if line.kind != lineTask {
			return m, nil
		}
		if err := m.engine.SelectRange(line.taskID); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%d selected", len(m.engine.Selected()))
	case key.Matches(msg, m.keys.toggleSelect):
		if line.kind != lineTask {
			return m, nil
		}
		if _, err := m.engine.ToggleSelected(line.taskID); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%d selected", len(m.engine.Selected()))
	case key.Matches(msg, m.keys.toggleGroupSel):
		state, err := m.engine.ToggleGroupSelection(line.groupID)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("group %s: %s", line.groupID, state)
	case key.Matches(msg, m.keys.toggleGroup):
		if line.kind == lineAdd && msg.String() == "enter" {
			return m.startAddTask(line.groupID)
		}
		collapsed := m.engine.ToggleGroup(line.groupID)
		m.focusGroup(line.groupID)
		if collapsed {
			m.status = "collapsed " + line.groupID
		} else {
			m.status = "expanded " + line.groupID
		}
	case key.Matches(msg, m.keys.collapseAll):
		m.engine.CollapseAll()
		m.focusGroup(line.groupID)
		m.status = "collapsed all groups"
	case key.Matches(msg, m.keys.expandAll):
		m.engine.ExpandAll()
		m.focusGroup(line.groupID)
		m.status = "expanded all groups"
	case key.Matches(msg, m.keys.cycleGrouping):
		next := m.engine.Mode().Next()
		if err := m.engine.SetGrouping(next); err != nil {
			m.status = err.Error()
			return m, nil
		}
		if line.kind != lineTask || !m.focusTask(line.taskID) {
			m.cursor = 0
		}
		m.status = "grouped by " + string(next)
	case key.Matches(msg, m.keys.grab):
		return m.startDrag(line)
	case key.Matches(msg, m.keys.addTask):
		return m.startAddTask(line.groupID)
	case key.Matches(msg, m.keys.rename):
		if line.kind != lineTask {
			return m, nil
		}
		return m.startRename(line.taskID)
	case key.Matches(msg, m.keys.description):
		if line.kind != lineTask {
			return m, nil
		}
		m.mode = modeDescription
		m.descTaskID = line.taskID
	case key.Matches(msg, m.keys.subtasks):
		if line.kind != lineTask {
			return m, nil
		}
		expanded, err := m.engine.ToggleSubTasks(line.taskID)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("sub-tasks shown: %t", expanded)
	case key.Matches(msg, m.keys.copyID):
		if line.kind != lineTask {
			return m, nil
		}
		return m, m.copyCmd(line.taskID)
	case key.Matches(msg, m.keys.archive):
		action, err := m.engine.BulkAction(domain.BulkArchive, domain.BulkPayload{})
		if errors.Is(err, app.ErrNothingSelected) {
			m.status = "select tasks first"
			return m, nil
		}
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.cursor = clamp(m.cursor, 0, len(m.lines())-1)
		m.status = fmt.Sprintf("archived %d tasks", len(action.TaskIDs))
	case key.Matches(msg, m.keys.cancel):
		if n := len(m.engine.Selected()); n > 0 {
			m.engine.ClearSelection()
			m.status = fmt.Sprintf("cleared %d selected", n)
		}
	}
	return m, nil
}

// startDrag grabs the focused task for a keyboard reorder.
func (m Model) startDrag(line boardLine) (tea.Model, tea.Cmd) {
	if line.kind != lineTask {
		m.status = "move: focus a task first"
		return m, nil
	}
	if err := m.engine.PointerDown(line.taskID, app.PointerKeyboard, app.Point{}); err != nil {
		m.status = err.Error()
		return m, nil
	}
	group, err := m.engine.Group(line.groupID)
	if err != nil {
		m.engine.CancelDrag()
		m.status = err.Error()
		return m, nil
	}
	m.mode = modeDrag
	m.dragGroupID = group.ID
	m.dragIndex = group.IndexOf(line.taskID)
	m.engine.Hover(app.DropTarget{TaskID: line.taskID})
	m.status = "moving " + m.taskName(line.taskID)
	return m, nil
}

// handleDragKey moves the drop candidate, drops or cancels.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		m.engine.CancelDrag()
		return m, tea.Quit
	case key.Matches(msg, m.keys.moveDown):
		m.dragIndex++
		m.hoverCandidate()
	case key.Matches(msg, m.keys.moveUp):
		m.dragIndex--
		m.hoverCandidate()
	case key.Matches(msg, m.keys.drop):
		result := m.engine.Drop()
		m.mode = modeNone
		if result.Committed() {
			m.focusTask(result.TaskID)
			m.status = fmt.Sprintf("moved %s to position %d", m.taskName(result.TaskID), result.ToIndex+1)
		} else {
			m.focusTask(result.TaskID)
			m.status = "move cancelled: " + result.Reason
		}
	case key.Matches(msg, m.keys.cancel):
		result := m.engine.CancelDrag()
		m.mode = modeNone
		m.focusTask(result.TaskID)
		m.status = "move cancelled"
	}
	return m, nil
}

// hoverCandidate points the drag at the slot under dragIndex. The slot past
// the last member is the end of the group.
func (m *Model) hoverCandidate() {
	group, err := m.engine.Group(m.dragGroupID)
	if err != nil {
		m.engine.CancelDrag()
		m.mode = modeNone
		m.status = "move cancelled: group vanished"
		return
	}
	m.dragIndex = clamp(m.dragIndex, 0, len(group.TaskIDs))
	if m.dragIndex == len(group.TaskIDs) {
		m.engine.Hover(app.EndOfGroup(group.ID))
		return
	}
	m.engine.Hover(app.DropTarget{TaskID: group.TaskIDs[m.dragIndex]})
}

// startRename opens the rename input for taskID.
func (m Model) startRename(taskID string) (tea.Model, tea.Cmd) {
	task, err := m.engine.Task(taskID)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.mode = modeRename
	m.inputTaskID = taskID
	m.input.Prompt = "rename: "
	m.input.Placeholder = "task name"
	m.input.SetValue(task.Name)
	return m, m.input.Focus()
}

// startAddTask opens the new-task input for groupID.
func (m Model) startAddTask(groupID string) (tea.Model, tea.Cmd) {
	if groupID == "" {
		return m, nil
	}
	m.mode = modeAddTask
	m.inputGroupID = groupID
	m.input.Prompt = "new task: "
	m.input.Placeholder = "task name"
	m.input.SetValue("")
	return m, m.input.Focus()
}

// handleInputKey handles keys while the text input is focused.
func (m Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput applies the rename or create typed into the input.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		m.status = "name required"
		return m, nil
	}
	mode := m.mode
	m.mode = modeNone
	m.input.Blur()
	switch mode {
	case modeRename:
		if err := m.engine.UpdateField(m.inputTaskID, domain.FieldName, value); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "renamed"
	case modeAddTask:
		task, err := m.engine.CreateTask(value, m.inputGroupID, "")
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.focusTask(task.ID)
		m.status = "created " + task.Name
	}
	return m, nil
}

// handleDescriptionKey closes the description pane.
func (m Model) handleDescriptionKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.description), key.Matches(msg, m.keys.quit):
		m.mode = modeNone
		m.descTaskID = ""
	case key.Matches(msg, m.keys.copyID):
		return m, m.copyCmd(m.descTaskID)
	}
	return m, nil
}

// taskName returns the display name of taskID, or the id itself.
func (m Model) taskName(taskID string) string {
	task, err := m.engine.Task(taskID)
	if err != nil {
		return taskID
	}
	return task.Name
}

// View renders the board.
func (m Model) View() tea.View {
	if m.err != nil {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress R to retry • q quit\n")
		v.AltScreen = true
		return v
	}
	if !m.ready || !m.engine.Loaded() {
		v := tea.NewView(m.status)
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("boardsync") + statusStyle.Render(fmt.Sprintf(
		"  %s · grouped by %s · %d selected",
		m.engine.ProjectID(), m.engine.Mode(), len(m.engine.Selected()),
	))

	footer := m.renderFooter(muted, dim)
	bodyHeight := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(footer))

	var body string
	if m.mode == modeDescription {
		body = m.renderDescription(accent, muted)
	} else {
		body = m.renderBoard(accent, muted, bodyHeight)
	}
	body = fitLines(body, bodyHeight)

	v := tea.NewView(header + "\n" + body + "\n" + footer)
	v.AltScreen = true
	return v
}

// renderFooter renders the status line, any input and the help bubble.
func (m Model) renderFooter(muted, dim color.Color) string {
	parts := []string{}
	if m.mode == modeRename || m.mode == modeAddTask {
		parts = append(parts, m.input.View())
	}
	if status := strings.TrimSpace(m.status); status != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(dim).Render(status))
	}
	helpView := m.help.View(m.keys)
	if m.mode == modeDrag {
		helpView = m.help.ShortHelpView(m.keys.dragHelp())
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpView))
	return strings.Join(parts, "\n")
}

// renderBoard renders the window of lines around the cursor.
func (m Model) renderBoard(accent, muted color.Color, height int) string {
	lines := m.lines()
	groups := map[string]domain.Group{}
	for _, group := range m.engine.Groups() {
		groups[group.ID] = group
	}
	drag := m.engine.DragStatus()
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)

	start, end := windowBounds(len(lines), m.cursor, height)
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		line := lines[i]
		var text string
		switch line.kind {
		case lineHeader:
			text = m.renderHeader(groups[line.groupID])
		case lineTask:
			text = m.renderTask(line.taskID, drag)
		case lineAdd:
			text = mutedStyle.Render("    + add task")
			if drag.State == app.DragDragging && drag.OverEnd && drag.OverGroupID == line.groupID {
				text += cursorStyle.Render("  ← drop at end")
			}
		}
		if i == m.cursor {
			text = cursorStyle.Render("›") + text
		} else {
			text = " " + text
		}
		out = append(out, text)
		if line.kind == lineTask {
			out = append(out, m.renderSubTasks(line.taskID, mutedStyle)...)
		}
	}
	return strings.Join(out, "\n")
}

// renderHeader renders one group header with its checkbox and count.
func (m Model) renderHeader(group domain.Group) string {
	chevron := "▾"
	if group.Collapsed {
		chevron = "▸"
	}
	style := lipgloss.NewStyle().Bold(true)
	if group.Color != "" {
		style = style.Foreground(lipgloss.Color(group.Color))
	}
	return fmt.Sprintf("%s %s %s (%d)",
		chevron,
		checkBox(m.engine.GroupCheckState(group.ID)),
		style.Render(group.Title),
		len(group.TaskIDs),
	)
}

// renderTask renders one task row with selection, pending and drag markers.
func (m Model) renderTask(taskID string, drag app.DragStatus) string {
	task, err := m.engine.Task(taskID)
	if err != nil {
		return "  ?" + taskID
	}
	mark := "○"
	if m.engine.IsSelected(taskID) {
		mark = "●"
	}
	grip := " "
	if drag.State == app.DragDragging && drag.ActiveID == taskID {
		grip = "≡"
	}
	meta := []string{}
	if task.Progress > 0 {
		meta = append(meta, fmt.Sprintf("%d%%", task.Progress))
	}
	if n := len(task.SubTaskIDs); n > 0 {
		meta = append(meta, fmt.Sprintf("⊂%d", n))
	}
	if task.Temporary {
		meta = append(meta, "saving")
	}
	if m.hasPending(taskID) {
		meta = append(meta, "*")
	}
	text := fmt.Sprintf("  %s %s %s", grip, mark, truncate(task.Name, max(12, m.width-24)))
	if len(meta) > 0 {
		text += "  " + strings.Join(meta, " ")
	}
	if drag.State == app.DragDragging && !drag.OverEnd && drag.OverID == taskID && drag.ActiveID != taskID {
		text += fmt.Sprintf("  ← drop %s", drag.DropPosition)
	}
	return text
}

// renderSubTasks renders the expanded sub-tasks of taskID.
func (m Model) renderSubTasks(taskID string, style lipgloss.Style) []string {
	task, err := m.engine.Task(taskID)
	if err != nil || !task.ShowSubTasks {
		return nil
	}
	subs, err := m.engine.SubTasks(taskID)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		out = append(out, style.Render("        └ "+sub.Name))
	}
	return out
}

// renderDescription renders the focused task description through glamour.
func (m Model) renderDescription(accent, muted color.Color) string {
	task, err := m.engine.Task(m.descTaskID)
	if err != nil {
		return "task not found"
	}
	width := max(24, m.width-6)
	body := m.markdown.renderTask(task, width)
	if body == "" {
		body = lipgloss.NewStyle().Foreground(muted).Render("(no details)")
	}
	title := lipgloss.NewStyle().Bold(true).Render(task.Name) +
		lipgloss.NewStyle().Foreground(muted).Render("  "+task.ID)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(max(0, m.width-2)).
		Render(title + "\n\n" + body)
}

// hasPending reports whether any field of taskID awaits its echo.
func (m Model) hasPending(taskID string) bool {
	for _, field := range domain.Fields() {
		if _, ok := m.engine.Pending(taskID, field); ok {
			return true
		}
	}
	return false
}

// checkBox renders a tri-state group checkbox.
func checkBox(state app.CheckState) string {
	switch state {
	case app.CheckAll:
		return "[x]"
	case app.CheckPartial:
		return "[-]"
	default:
		return "[ ]"
	}
}

// windowBounds returns an inclusive-exclusive list window that keeps selected visible.
func windowBounds(total, selected, windowSize int) (int, int) {
	if total <= 0 || windowSize <= 0 {
		return 0, 0
	}
	if total <= windowSize {
		return 0, total
	}
	selected = clamp(selected, 0, total-1)
	start := max(0, selected-windowSize/2)
	end := start + windowSize
	if end > total {
		end = total
		start = max(0, end-windowSize)
	}
	return start, end
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	return min(max(v, minV), maxV)
}

// fitLines pads or cuts content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
