package app

import (
	"io"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/boardsync/internal/domain"
)

// SyncAdapter merges inbound realtime events into the store. Every handler
// keys on task id and overwrites, so replaying an event is a no-op.
type SyncAdapter struct {
	store     *Store
	pending   *PendingEdits
	selection *Selection
	drag      *DragCoordinator
	clock     Clock
	logger    *charmLog.Logger
	view      func() (projectID string, mode domain.GroupingMode)
}

// NewSyncAdapter wires the adapter to the engine-owned components.
func NewSyncAdapter(store *Store, pending *PendingEdits, selection *Selection, drag *DragCoordinator, clock Clock, logger *charmLog.Logger, view func() (string, domain.GroupingMode)) *SyncAdapter {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &SyncAdapter{
		store:     store,
		pending:   pending,
		selection: selection,
		drag:      drag,
		clock:     clock,
		logger:    logger,
		view:      view,
	}
}

// Apply dispatches ev to its handler and reports whether the store changed.
func (s *SyncAdapter) Apply(ev domain.Inbound) bool {
	switch e := ev.(type) {
	case domain.FieldChanged:
		return s.applyField(e)
	case domain.TaskCreated:
		return s.applyCreated(e)
	case domain.TaskDeleted:
		return s.remove(e.TaskID, "deleted")
	case domain.TaskArchived:
		return s.remove(e.TaskID, "archived")
	case domain.AssigneesChanged:
		return s.replaceCollection(e.TaskID, domain.FieldAssignees, e.IDs)
	case domain.LabelsChanged:
		return s.replaceCollection(e.TaskID, domain.FieldLabels, e.IDs)
	case domain.SubscribersChanged:
		return s.replaceSubscribers(e)
	case domain.SortOrderChanged:
		return s.applySortOrder(e)
	default:
		s.logger.Warn("inbound event ignored", "kind", ev.Kind(), "err", domain.ErrUnknownEvent)
		return false
	}
}

func (s *SyncAdapter) applyField(e domain.FieldChanged) bool {
	task, ok := s.store.Get(e.TaskID)
	if !ok {
		s.logger.Debug("field change for unknown task dropped", "task_id", e.TaskID, "field", e.Field)
		return false
	}
	now := s.clock()

	if e.Rejected {
		edit, ok := s.pending.Get(e.TaskID, e.Field)
		if !ok {
			return false
		}
		s.pending.Clear(e.TaskID, e.Field)
		if err := task.SetField(e.Field, edit.Previous, now); err != nil {
			s.logger.Warn("revert of rejected edit failed", "task_id", e.TaskID, "field", e.Field, "err", err)
			return false
		}
		s.store.Put(task)
		s.logger.Info("server rejected local edit", "task_id", e.TaskID, "field", e.Field)
		return true
	}

	value, err := domain.NormalizeFieldValue(e.Field, e.Value)
	if err != nil {
		s.logger.Warn("malformed field change dropped", "task_id", e.TaskID, "field", e.Field, "err", err)
		return false
	}
	at := e.At
	if at.IsZero() {
		at = now
	}
	if s.pending.Shields(e.TaskID, e.Field, at, now) {
		s.logger.Debug("stale remote echo discarded", "task_id", e.TaskID, "field", e.Field, "event_at", at)
		return false
	}
	s.pending.Clear(e.TaskID, e.Field)
	if domain.FieldValuesEqual(task.Value(e.Field), value) {
		return false
	}
	if err := task.SetField(e.Field, value, now); err != nil {
		s.logger.Warn("field change rejected by task", "task_id", e.TaskID, "field", e.Field, "err", err)
		return false
	}
	s.store.Put(task)
	return true
}

func (s *SyncAdapter) applyCreated(e domain.TaskCreated) bool {
	created := e.Task
	if created.ID == "" || created.Name == "" {
		s.logger.Warn("malformed task created event dropped", "task_id", created.ID)
		return false
	}

	placeholder, found := s.placeholderFor(e)
	if found && placeholder.ID != created.ID {
		if created.ParentID != "" {
			s.store.Update(created.ParentID, func(parent *domain.Task) {
				parent.ReplaceSubTask(placeholder.ID, created.ID)
			})
		}
		s.store.Remove(placeholder.ID)
		s.selection.Rename(placeholder.ID, created.ID)
		s.pending.Rename(placeholder.ID, created.ID)
		s.drag.Forget(placeholder.ID)
	}
	if existing, ok := s.store.Get(created.ID); ok && len(created.SubTaskIDs) == 0 {
		created.SubTaskIDs = existing.SubTaskIDs
		created.ShowSubTasks = existing.ShowSubTasks
	}
	created.Temporary = false
	s.store.Put(created)
	return true
}

func (s *SyncAdapter) placeholderFor(e domain.TaskCreated) (domain.Task, bool) {
	if e.TempID != "" {
		if task, ok := s.store.Get(e.TempID); ok && task.Temporary {
			return task, true
		}
	}
	if e.CorrelationID == "" {
		return domain.Task{}, false
	}
	return s.store.Find(func(task domain.Task) bool {
		return task.Temporary && task.ClientRef == e.CorrelationID
	})
}

func (s *SyncAdapter) remove(taskID, reason string) bool {
	removed := s.store.Remove(taskID)
	if len(removed) == 0 {
		s.logger.Debug("removal of unknown task dropped", "task_id", taskID, "reason", reason)
		return false
	}
	for _, id := range removed {
		s.pending.ClearTask(id)
		s.drag.Forget(id)
	}
	s.selection.Prune(s.store.Has)
	return true
}

func (s *SyncAdapter) replaceCollection(taskID string, field domain.Field, ids []string) bool {
	task, ok := s.store.Get(taskID)
	if !ok {
		s.logger.Debug("collection change for unknown task dropped", "task_id", taskID, "field", field)
		return false
	}
	value, err := domain.NormalizeFieldValue(field, ids)
	if err != nil {
		s.logger.Warn("malformed collection change dropped", "task_id", taskID, "field", field, "err", err)
		return false
	}
	if domain.FieldValuesEqual(task.Value(field), value) {
		return false
	}
	if err := task.SetField(field, value, s.clock()); err != nil {
		s.logger.Warn("collection change rejected by task", "task_id", taskID, "field", field, "err", err)
		return false
	}
	s.store.Put(task)
	return true
}

func (s *SyncAdapter) replaceSubscribers(e domain.SubscribersChanged) bool {
	ok := s.store.Update(e.TaskID, func(task *domain.Task) {
		task.ReplaceSubscribers(e.IDs, s.clock())
	})
	if !ok {
		s.logger.Debug("subscriber change for unknown task dropped", "task_id", e.TaskID)
	}
	return ok
}

func (s *SyncAdapter) applySortOrder(e domain.SortOrderChanged) bool {
	projectID, mode := s.view()
	if e.GroupBy != mode {
		s.logger.Debug("sort order for other grouping ignored", "event_group_by", e.GroupBy, "active", mode)
		return false
	}
	if e.ProjectID != "" && projectID != "" && e.ProjectID != projectID {
		s.logger.Debug("sort order for other project ignored", "event_project", e.ProjectID, "project", projectID)
		return false
	}
	changed := false
	for _, update := range e.Updates {
		task, ok := s.store.Get(update.TaskID)
		if !ok {
			continue
		}
		if task.SortOrders.Get(mode) == update.SortOrder {
			continue
		}
		task.SortOrders = task.SortOrders.With(mode, update.SortOrder)
		s.store.Put(task)
		changed = true
	}
	return changed
}
