package app

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/boardsync/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// EngineConfig holds configuration for the engine.
type EngineConfig struct {
	ProjectID      string
	TeamID         string
	ReporterID     string
	GroupBy        domain.GroupingMode
	Catalog        domain.Catalog
	Drag           DragActivation
	PendingEditTTL time.Duration
	Debug          bool
	Logger         *charmLog.Logger
}

// Engine is the single owner of board state. It is not safe for concurrent
// use; hosts serialize access through a Loop or their own event loop.
type Engine struct {
	loader Loader
	idGen  IDGenerator
	clock  Clock
	cfg    EngineConfig
	logger *charmLog.Logger

	bus         *Bus
	store       *Store
	selection   *Selection
	pending     *PendingEdits
	drag        *DragCoordinator
	sync        *SyncAdapter
	partitioner Partitioner

	projectID  string
	mode       domain.GroupingMode
	catalog    domain.Catalog
	catalogRev uint64
	columns    []domain.Column
	collapsed  map[string]bool
	loaded     bool
}

// NewEngine constructs an engine with an empty store.
func NewEngine(loader Loader, idGen IDGenerator, clock Clock, cfg EngineConfig) *Engine {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = charmLog.New(io.Discard)
	}
	if cfg.GroupBy == "" {
		cfg.GroupBy = domain.GroupByStatus
	}

	e := &Engine{
		loader:    loader,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    cfg.Logger,
		bus:       NewBus(cfg.Logger),
		store:     NewStore(),
		selection: NewSelection(),
		pending:   NewPendingEdits(cfg.PendingEditTTL),
		drag:      NewDragCoordinator(cfg.Drag, cfg.Logger),
		projectID: strings.TrimSpace(cfg.ProjectID),
		mode:      cfg.GroupBy,
		catalog:   cfg.Catalog,
		collapsed: map[string]bool{},
	}
	e.sync = NewSyncAdapter(e.store, e.pending, e.selection, e.drag, clock, cfg.Logger, func() (string, domain.GroupingMode) {
		return e.projectID, e.mode
	})
	return e
}

// Subscribe registers h on the engine bus.
func (e *Engine) Subscribe(kind domain.EventKind, h Handler) Token {
	return e.bus.Subscribe(kind, h)
}

// Unsubscribe removes a bus subscription.
func (e *Engine) Unsubscribe(tok Token) bool {
	return e.bus.Unsubscribe(tok)
}

// Load fetches a snapshot through the loader and applies it.
func (e *Engine) Load(ctx context.Context, projectID string) error {
	if e.loader == nil {
		return fmt.Errorf("load project %q: %w", projectID, ErrNotLoaded)
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		projectID = e.projectID
	}
	snap, err := e.loader.LoadTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %q: %w", projectID, err)
	}
	if snap.ProjectID == "" {
		snap.ProjectID = projectID
	}
	return e.ApplySnapshot(snap)
}

// ApplySnapshot replaces the store with snap, keeping selection, pending
// edits and collapse flags for tasks and groups that still exist.
func (e *Engine) ApplySnapshot(snap domain.Snapshot) error {
	seen := make(map[string]struct{}, len(snap.Tasks))
	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, task := range snap.Tasks {
		if task.ID == "" {
			return fmt.Errorf("apply snapshot: %w", domain.ErrInvalidID)
		}
		if _, dup := seen[task.ID]; dup {
			return fmt.Errorf("apply snapshot: duplicate task %q: %w", task.ID, domain.ErrInvalidID)
		}
		seen[task.ID] = struct{}{}
		tasks = append(tasks, task.Clone())
	}

	e.store.Replace(tasks)
	if snap.ProjectID != "" {
		e.projectID = snap.ProjectID
	}
	if !snap.Groups.IsZero() {
		e.catalog = snap.Groups
	} else if e.catalog.IsZero() {
		e.catalog = e.cfg.Catalog
	}
	e.catalogRev++
	e.columns = slices.Clone(snap.Columns)
	slices.SortStableFunc(e.columns, func(a, b domain.Column) int { return a.Position - b.Position })
	e.loaded = true

	e.selection.Prune(e.store.Has)
	e.pending.Prune(e.store.Has)
	if status := e.drag.Status(); status.ActiveID != "" && !e.store.Has(status.ActiveID) {
		e.drag.Cancel()
	}
	e.partitioner.Invalidate()
	e.changed("snapshot")
	return nil
}

// Loaded reports whether a snapshot has been applied.
func (e *Engine) Loaded() bool {
	return e.loaded
}

// ProjectID returns the active project.
func (e *Engine) ProjectID() string {
	return e.projectID
}

// Mode returns the active grouping mode.
func (e *Engine) Mode() domain.GroupingMode {
	return e.mode
}

// SetGrouping switches the grouping mode. Any drag in progress is cancelled.
func (e *Engine) SetGrouping(mode domain.GroupingMode) error {
	mode, err := domain.ParseGroupingMode(string(mode))
	if err != nil {
		return err
	}
	if mode == e.mode {
		return nil
	}
	e.drag.Cancel()
	e.mode = mode
	e.changed("grouping")
	return nil
}

// Catalog returns the canonical group orderings.
func (e *Engine) Catalog() domain.Catalog {
	return e.catalog
}

// Columns returns the column definitions from the last snapshot.
func (e *Engine) Columns() []domain.Column {
	return slices.Clone(e.columns)
}

func (e *Engine) groups() []domain.Group {
	return e.partitioner.Groups(e.store, e.mode, e.catalog, e.catalogRev)
}

// Groups returns a copy of the current partition with collapse flags applied.
func (e *Engine) Groups() []domain.Group {
	groups := e.groups()
	out := make([]domain.Group, 0, len(groups))
	for _, group := range groups {
		group.TaskIDs = slices.Clone(group.TaskIDs)
		group.Collapsed = e.collapsed[group.ID]
		out = append(out, group)
	}
	return out
}

// Group returns one group of the current partition.
func (e *Engine) Group(groupID string) (domain.Group, error) {
	group, ok := e.group(groupID)
	if !ok {
		return domain.Group{}, fmt.Errorf("group %q: %w", groupID, ErrNotFound)
	}
	group.TaskIDs = slices.Clone(group.TaskIDs)
	group.Collapsed = e.collapsed[group.ID]
	return group, nil
}

// Layout flattens the current partition for a virtualizing renderer.
func (e *Engine) Layout() domain.Layout {
	return Flatten(e.groups(), e.collapsed)
}

// Task returns a copy of one task.
func (e *Engine) Task(id string) (domain.Task, error) {
	task, ok := e.store.Get(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return task.Clone(), nil
}

// Tasks returns copies of every task in insertion order.
func (e *Engine) Tasks() []domain.Task {
	tasks := e.store.Tasks()
	for i := range tasks {
		tasks[i] = tasks[i].Clone()
	}
	return tasks
}

// SubTasks returns the loaded sub-tasks of parentID in list order.
func (e *Engine) SubTasks(parentID string) ([]domain.Task, error) {
	parent, ok := e.store.Get(parentID)
	if !ok {
		return nil, fmt.Errorf("task %q: %w", parentID, ErrNotFound)
	}
	out := make([]domain.Task, 0, len(parent.SubTaskIDs))
	for _, id := range parent.SubTaskIDs {
		if task, ok := e.store.Get(id); ok {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

// ToggleSubTasks flips the sub-task expansion flag of taskID.
func (e *Engine) ToggleSubTasks(taskID string) (bool, error) {
	var expanded bool
	ok := e.store.Update(taskID, func(task *domain.Task) {
		task.ShowSubTasks = !task.ShowSubTasks
		expanded = task.ShowSubTasks
	})
	if !ok {
		return false, fmt.Errorf("task %q: %w", taskID, ErrNotFound)
	}
	e.changed("subtasks")
	return expanded, nil
}

// Collapsed reports whether groupID is collapsed.
func (e *Engine) Collapsed(groupID string) bool {
	return e.collapsed[groupID]
}

// ToggleGroup flips the collapse flag of groupID and returns the new value.
func (e *Engine) ToggleGroup(groupID string) bool {
	e.SetGroupCollapsed(groupID, !e.collapsed[groupID])
	return e.collapsed[groupID]
}

// SetGroupCollapsed sets the collapse flag of groupID. Ids outside the current
// partition are ignored and reported as false.
func (e *Engine) SetGroupCollapsed(groupID string, collapsed bool) bool {
	if !slices.ContainsFunc(e.groups(), func(g domain.Group) bool { return g.ID == groupID }) {
		e.logger.Debug("collapse of unknown group ignored", "group_id", groupID)
		return false
	}
	if collapsed {
		e.collapsed[groupID] = true
	} else {
		delete(e.collapsed, groupID)
	}
	e.changed("collapse")
	return true
}

// CollapseAll collapses every current group.
func (e *Engine) CollapseAll() {
	for _, group := range e.groups() {
		e.collapsed[group.ID] = true
	}
	e.changed("collapse")
}

// ExpandAll clears every collapse flag.
func (e *Engine) ExpandAll() {
	clear(e.collapsed)
	e.changed("collapse")
}

// Select adds taskID to the selection.
func (e *Engine) Select(taskID string) error {
	if !e.store.Has(taskID) {
		return fmt.Errorf("select %q: %w", taskID, ErrNotFound)
	}
	e.selection.Select(taskID)
	e.changed("selection")
	return nil
}

// ToggleSelected flips taskID and reports whether it is now selected.
func (e *Engine) ToggleSelected(taskID string) (bool, error) {
	if !e.store.Has(taskID) {
		return false, fmt.Errorf("select %q: %w", taskID, ErrNotFound)
	}
	selected := e.selection.Toggle(taskID)
	e.changed("selection")
	return selected, nil
}

// SelectRange selects from the anchor to taskID over visible task rows.
func (e *Engine) SelectRange(taskID string) error {
	if !e.store.Has(taskID) {
		return fmt.Errorf("select %q: %w", taskID, ErrNotFound)
	}
	e.selection.SelectRange(taskID, e.Layout().TaskIDs())
	e.changed("selection")
	return nil
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.selection.Clear()
	e.changed("selection")
}

// Selected returns the selected ids.
func (e *Engine) Selected() []string {
	return e.selection.IDs()
}

// IsSelected reports whether taskID is selected.
func (e *Engine) IsSelected(taskID string) bool {
	return e.selection.Contains(taskID)
}

// SelectionAnchor returns the range anchor.
func (e *Engine) SelectionAnchor() string {
	return e.selection.Anchor()
}

// GroupCheckState derives the header checkbox of groupID.
func (e *Engine) GroupCheckState(groupID string) CheckState {
	group, ok := e.group(groupID)
	if !ok {
		return CheckNone
	}
	return e.selection.GroupState(group.TaskIDs)
}

// ToggleGroupSelection selects every member of groupID unless all already are,
// in which case it deselects them.
func (e *Engine) ToggleGroupSelection(groupID string) (CheckState, error) {
	group, ok := e.group(groupID)
	if !ok {
		return CheckNone, fmt.Errorf("group %q: %w", groupID, ErrNotFound)
	}
	if e.selection.GroupState(group.TaskIDs) == CheckAll {
		e.selection.DeselectAll(group.TaskIDs)
	} else {
		e.selection.SelectAll(group.TaskIDs)
	}
	e.changed("selection")
	return e.selection.GroupState(group.TaskIDs), nil
}

// PointerDown arms a drag on taskID.
func (e *Engine) PointerDown(taskID string, kind PointerKind, at Point) error {
	if !e.drag.PointerDown(taskID, kind, at, e.clock(), e) {
		if !e.store.Has(taskID) {
			return fmt.Errorf("drag %q: %w", taskID, ErrNotFound)
		}
		return fmt.Errorf("drag %q: %w", taskID, ErrDragInactive)
	}
	return nil
}

// PointerMove feeds pointer motion and the candidate under it, if any.
func (e *Engine) PointerMove(at Point, target *DropTarget) {
	e.drag.PointerMove(at, e.clock(), target, e)
}

// Hover sets the drop candidate without pointer geometry.
func (e *Engine) Hover(target DropTarget) {
	e.drag.Hover(target, e)
}

// DragStatus returns the coordinator view.
func (e *Engine) DragStatus() DragStatus {
	return e.drag.Status()
}

// CancelDrag aborts the gesture without mutation.
func (e *Engine) CancelDrag() DropResult {
	return e.drag.Cancel()
}

// Drop ends the gesture. A committed drop splices the group order, reindexes
// every task and emits one SortOrderChange carrying the full order.
func (e *Engine) Drop() DropResult {
	result := e.drag.Drop(e)
	if !result.Committed() {
		e.logger.Debug("drop cancelled", "task_id", result.TaskID, "reason", result.Reason)
		return result
	}
	e.commitReorder(result)
	return result
}

// MoveTask runs a complete keyboard drag of taskID onto target.
func (e *Engine) MoveTask(taskID string, target DropTarget) (DropResult, error) {
	if err := e.PointerDown(taskID, PointerKeyboard, Point{}); err != nil {
		return DropResult{}, err
	}
	e.Hover(target)
	return e.Drop(), nil
}

func (e *Engine) commitReorder(result DropResult) {
	groups := e.groups()
	for i := range groups {
		if groups[i].ID == result.FromGroupID {
			groups[i].TaskIDs = result.Order
		}
	}
	keys := Reindex(groups)
	for id, key := range keys {
		e.store.Update(id, func(task *domain.Task) {
			task.SortOrders = task.SortOrders.With(e.mode, key)
		})
	}
	updates := sortUpdates(groups, keys, e.store)
	e.partitioner.Invalidate()
	e.bus.Publish(domain.SortOrderChange{
		ProjectID:   e.projectID,
		GroupBy:     e.mode,
		TaskID:      result.TaskID,
		TaskUpdates: updates,
		FromGroupID: result.FromGroupID,
		ToGroupID:   result.ToGroupID,
	})
	e.changed("reorder")
}

// UpdateField applies a local edit optimistically, records it as pending and
// emits a FieldChange.
func (e *Engine) UpdateField(taskID string, field domain.Field, value any) error {
	task, ok := e.store.Get(taskID)
	if !ok {
		return fmt.Errorf("update %s of %q: %w", field, taskID, ErrNotFound)
	}
	normalized, err := domain.NormalizeFieldValue(field, value)
	if err != nil {
		return fmt.Errorf("update %s of %q: %w", field, taskID, err)
	}
	now := e.clock()
	previous := task.Value(field)
	if err := task.SetField(field, normalized, now); err != nil {
		return fmt.Errorf("update %s of %q: %w", field, taskID, err)
	}
	e.store.Put(task)
	e.pending.Record(taskID, field, normalized, previous, now)
	e.bus.Publish(domain.FieldChange{
		ProjectID:    e.projectID,
		TaskID:       taskID,
		Field:        field,
		Value:        normalized,
		ParentTaskID: task.ParentID,
	})
	e.changed("field")
	return nil
}

// CreateTask inserts a temporary placeholder and emits a CreateTask. For a
// top-level task groupID picks the classifying value; for a sub-task parentID
// names the parent and groupID is ignored.
func (e *Engine) CreateTask(name, groupID, parentID string) (domain.Task, error) {
	tempID := "temp-" + e.idGen()
	in := domain.TaskInput{
		ID:        tempID,
		ProjectID: e.projectID,
		Name:      name,
		ParentID:  parentID,
		Temporary: true,
		ClientRef: tempID,
	}
	classifying := ""
	if parentID != "" {
		parent, ok := e.store.Get(parentID)
		if !ok {
			return domain.Task{}, fmt.Errorf("create sub-task of %q: %w", parentID, ErrNotFound)
		}
		in.StatusID, in.PriorityID, in.PhaseID = parent.StatusID, parent.PriorityID, parent.PhaseID
		classifying = parent.Classifier(e.mode)
	} else {
		if _, ok := e.group(groupID); !ok {
			return domain.Task{}, fmt.Errorf("create in group %q: %w", groupID, ErrNotFound)
		}
		if groupID != domain.UnmappedGroupID {
			classifying = groupID
		}
		in.SortOrders = in.SortOrders.With(e.mode, e.nextKey())
	}
	task, err := domain.NewTask(in, e.clock())
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	if parentID == "" {
		task.SetClassifier(e.mode, classifying, e.clock())
	}
	e.store.Put(task)
	if parentID != "" {
		e.store.Update(parentID, func(parent *domain.Task) { parent.ShowSubTasks = true })
	}
	e.bus.Publish(domain.CreateTask{
		Name:               task.Name,
		ProjectID:          e.projectID,
		GroupBy:            e.mode,
		ClassifyingFieldID: classifying,
		ReporterID:         e.cfg.ReporterID,
		TeamID:             e.cfg.TeamID,
		ParentTaskID:       parentID,
		ClientRef:          task.ClientRef,
	})
	e.changed("create")
	return task.Clone(), nil
}

// DiscardPlaceholder drops a temporary task whose creation will not be confirmed.
func (e *Engine) DiscardPlaceholder(tempID string) error {
	task, ok := e.store.Get(tempID)
	if !ok || !task.Temporary {
		return fmt.Errorf("placeholder %q: %w", tempID, ErrNotFound)
	}
	e.store.Remove(tempID)
	e.selection.Prune(e.store.Has)
	e.pending.ClearTask(tempID)
	e.drag.Forget(tempID)
	e.changed("discard")
	return nil
}

func (e *Engine) nextKey() int64 {
	var next int64
	for _, task := range e.store.Tasks() {
		if key := task.SortOrders.Get(e.mode); key >= next {
			next = key + 1
		}
	}
	return next
}

// BulkAction applies action to every selected task, emits one BulkAction and
// clears the selection.
func (e *Engine) BulkAction(action domain.BulkActionKind, payload domain.BulkPayload) (domain.BulkAction, error) {
	if _, err := domain.ParseBulkAction(string(action)); err != nil {
		return domain.BulkAction{}, err
	}
	ids := e.selection.IDs()
	if len(ids) == 0 {
		return domain.BulkAction{}, ErrNothingSelected
	}
	now := e.clock()
	for _, id := range ids {
		task, ok := e.store.Get(id)
		if !ok {
			continue
		}
		switch action {
		case domain.BulkStatus, domain.BulkPriority, domain.BulkPhase:
			field := bulkField(action)
			e.pending.Record(id, field, payload.ValueID, task.Value(field), now)
			_ = task.SetField(field, payload.ValueID, now)
			e.store.Put(task)
		case domain.BulkLabels, domain.BulkAssignees:
			_ = task.SetField(bulkField(action), payload.IDs, now)
			e.store.Put(task)
		case domain.BulkArchive, domain.BulkDelete:
			for _, removed := range e.store.Remove(id) {
				e.pending.ClearTask(removed)
				e.drag.Forget(removed)
			}
		}
	}
	out := domain.BulkAction{
		Action:    action,
		TaskIDs:   ids,
		ProjectID: e.projectID,
		Payload:   payload,
	}
	e.selection.Clear()
	e.bus.Publish(out)
	e.changed("bulk")
	return out, nil
}

func bulkField(action domain.BulkActionKind) domain.Field {
	switch action {
	case domain.BulkPriority:
		return domain.FieldPriority
	case domain.BulkPhase:
		return domain.FieldPhase
	case domain.BulkLabels:
		return domain.FieldLabels
	case domain.BulkAssignees:
		return domain.FieldAssignees
	default:
		return domain.FieldStatus
	}
}

// Apply merges one inbound realtime event. It never fails; malformed or stale
// events are logged and dropped.
func (e *Engine) Apply(ev domain.Inbound) bool {
	if ev == nil {
		e.logger.Warn("nil inbound event dropped")
		return false
	}
	if !e.sync.Apply(ev) {
		return false
	}
	e.changed(string(ev.Kind()))
	return true
}

// Sweep expires pending edits older than the configured ttl.
func (e *Engine) Sweep() []PendingEdit {
	expired := e.pending.Sweep(e.clock())
	for _, edit := range expired {
		e.logger.Debug("pending edit expired", "task_id", edit.TaskID, "field", edit.Field)
	}
	return expired
}

// Pending returns the live pending edit for a task field.
func (e *Engine) Pending(taskID string, field domain.Field) (PendingEdit, bool) {
	return e.pending.Get(taskID, field)
}

func (e *Engine) changed(reason string) {
	e.verify()
	e.bus.Publish(domain.BoardChanged{Reason: reason})
}

// verify asserts the partition invariant in debug mode and otherwise heals
// by recomputing from scratch.
func (e *Engine) verify() {
	if err := VerifyPartition(e.groups(), e.store); err != nil {
		if e.cfg.Debug {
			panic(err)
		}
		e.logger.Error("partition invariant violated, recomputing", "err", err)
		e.partitioner.Invalidate()
	}
}

func (e *Engine) groupOf(taskID string) (domain.Group, int, bool) {
	for _, group := range e.groups() {
		if idx := group.IndexOf(taskID); idx >= 0 {
			return group, idx, true
		}
	}
	return domain.Group{}, -1, false
}

func (e *Engine) group(groupID string) (domain.Group, bool) {
	for _, group := range e.groups() {
		if group.ID == groupID {
			return group, true
		}
	}
	return domain.Group{}, false
}
