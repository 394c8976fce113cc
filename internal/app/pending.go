package app

import (
	"cmp"
	"slices"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

// DefaultPendingEditTTL bounds how long a local edit shields its field from older echoes.
const DefaultPendingEditTTL = 5 * time.Second

// PendingEdit records one optimistic local edit awaiting reconciliation.
// Previous holds the value before the first unreconciled edit so a
// server rejection can restore it.
type PendingEdit struct {
	TaskID   string
	Field    domain.Field
	Value    any
	Previous any
	At       time.Time
	Seq      uint64
}

type pendingKey struct {
	taskID string
	field  domain.Field
}

// PendingEdits is the single table of optimistic edits keyed by task and field.
// Expiry is handled only by Sweep and by the ttl check in Shields.
type PendingEdits struct {
	ttl   time.Duration
	seq   uint64
	edits map[pendingKey]PendingEdit
}

// NewPendingEdits constructs a table. A non-positive ttl uses DefaultPendingEditTTL.
func NewPendingEdits(ttl time.Duration) *PendingEdits {
	if ttl <= 0 {
		ttl = DefaultPendingEditTTL
	}
	return &PendingEdits{ttl: ttl, edits: map[pendingKey]PendingEdit{}}
}

func (p *PendingEdits) TTL() time.Duration {
	return p.ttl
}

func (p *PendingEdits) Len() int {
	return len(p.edits)
}

// Record stores a local edit. A newer edit to the same field keeps the
// first Previous value.
func (p *PendingEdits) Record(taskID string, field domain.Field, value, previous any, at time.Time) PendingEdit {
	key := pendingKey{taskID: taskID, field: field}
	if existing, ok := p.edits[key]; ok {
		previous = existing.Previous
	}
	p.seq++
	edit := PendingEdit{
		TaskID:   taskID,
		Field:    field,
		Value:    value,
		Previous: previous,
		At:       at.UTC(),
		Seq:      p.seq,
	}
	p.edits[key] = edit
	return edit
}

func (p *PendingEdits) Get(taskID string, field domain.Field) (PendingEdit, bool) {
	edit, ok := p.edits[pendingKey{taskID: taskID, field: field}]
	return edit, ok
}

func (p *PendingEdits) Clear(taskID string, field domain.Field) {
	delete(p.edits, pendingKey{taskID: taskID, field: field})
}

// ClearTask drops every pending edit of taskID.
func (p *PendingEdits) ClearTask(taskID string) {
	for key := range p.edits {
		if key.taskID == taskID {
			delete(p.edits, key)
		}
	}
}

// Rename moves pending edits from a placeholder id to the confirmed id.
func (p *PendingEdits) Rename(oldID, newID string) {
	for key, edit := range p.edits {
		if key.taskID != oldID {
			continue
		}
		delete(p.edits, key)
		edit.TaskID = newID
		p.edits[pendingKey{taskID: newID, field: key.field}] = edit
	}
}

// Shields reports whether a live pending edit is newer than a remote change made at eventAt.
func (p *PendingEdits) Shields(taskID string, field domain.Field, eventAt, now time.Time) bool {
	edit, ok := p.Get(taskID, field)
	if !ok || p.expired(edit, now) {
		return false
	}
	return edit.At.After(eventAt)
}

func (p *PendingEdits) expired(edit PendingEdit, now time.Time) bool {
	return now.Sub(edit.At) >= p.ttl
}

// Sweep removes expired edits and returns them in recording order.
func (p *PendingEdits) Sweep(now time.Time) []PendingEdit {
	var out []PendingEdit
	for key, edit := range p.edits {
		if p.expired(edit, now) {
			delete(p.edits, key)
			out = append(out, edit)
		}
	}
	slices.SortFunc(out, func(a, b PendingEdit) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

// Prune drops edits whose task no longer exists.
func (p *PendingEdits) Prune(exists func(string) bool) {
	for key := range p.edits {
		if !exists(key.taskID) {
			delete(p.edits, key)
		}
	}
}
