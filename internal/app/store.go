package app

import (
	"slices"

	"github.com/evanschultz/boardsync/internal/domain"
)

// Store is the normalized task collection. It owns task records but no ordering
// beyond insertion order, which keeps iteration deterministic.
type Store struct {
	tasks    map[string]domain.Task
	order    []string
	revision uint64
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{tasks: map[string]domain.Task{}}
}

// Revision increases on every mutation.
func (s *Store) Revision() uint64 {
	return s.revision
}

func (s *Store) Len() int {
	return len(s.tasks)
}

func (s *Store) Has(id string) bool {
	_, ok := s.tasks[id]
	return ok
}

// Get returns the stored record. Callers outside the engine should Clone it.
func (s *Store) Get(id string) (domain.Task, bool) {
	task, ok := s.tasks[id]
	return task, ok
}

// Put inserts or overwrites a task and links it under its parent.
func (s *Store) Put(task domain.Task) {
	if _, ok := s.tasks[task.ID]; !ok {
		s.order = append(s.order, task.ID)
	}
	s.tasks[task.ID] = task
	if task.ParentID != "" {
		if parent, ok := s.tasks[task.ParentID]; ok {
			parent.AddSubTask(task.ID)
			s.tasks[parent.ID] = parent
		}
	}
	s.revision++
}

// Update applies fn to the stored task. It reports false when id is unknown.
func (s *Store) Update(id string, fn func(*domain.Task)) bool {
	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(&task)
	s.tasks[id] = task
	s.revision++
	return true
}

// Remove deletes id and its descendants, returning every removed id.
func (s *Store) Remove(id string) []string {
	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	removed := []string{}
	var walk func(string)
	walk = func(current string) {
		t, ok := s.tasks[current]
		if !ok {
			return
		}
		delete(s.tasks, current)
		removed = append(removed, current)
		for _, child := range t.SubTaskIDs {
			walk(child)
		}
	}
	walk(id)
	if task.ParentID != "" {
		if parent, ok := s.tasks[task.ParentID]; ok {
			parent.RemoveSubTask(id)
			s.tasks[parent.ID] = parent
		}
	}
	s.order = slices.DeleteFunc(s.order, func(existing string) bool {
		_, ok := s.tasks[existing]
		return !ok
	})
	s.revision++
	return removed
}

// Replace resets the store to exactly tasks. Later duplicates overwrite earlier ones.
func (s *Store) Replace(tasks []domain.Task) {
	s.tasks = make(map[string]domain.Task, len(tasks))
	s.order = s.order[:0]
	for _, task := range tasks {
		if _, ok := s.tasks[task.ID]; !ok {
			s.order = append(s.order, task.ID)
		}
		s.tasks[task.ID] = task
	}
	for _, id := range s.order {
		task := s.tasks[id]
		if task.ParentID == "" {
			continue
		}
		if parent, ok := s.tasks[task.ParentID]; ok {
			parent.AddSubTask(task.ID)
			s.tasks[parent.ID] = parent
		}
	}
	s.revision++
}

// Tasks returns every record in insertion order.
func (s *Store) Tasks() []domain.Task {
	out := make([]domain.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

// Find returns the first task matching fn in insertion order.
func (s *Store) Find(fn func(domain.Task) bool) (domain.Task, bool) {
	for _, id := range s.order {
		if task := s.tasks[id]; fn(task) {
			return task, true
		}
	}
	return domain.Task{}, false
}
