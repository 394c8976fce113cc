package app

import (
	"io"
	"math"
	"slices"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/boardsync/internal/domain"
)

// DragState is the coordinator phase.
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragCommitting
	DragCancelled
)

func (s DragState) String() string {
	switch s {
	case DragDragging:
		return "dragging"
	case DragCommitting:
		return "committing"
	case DragCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// DropPosition says on which side of the candidate the dragged task lands.
type DropPosition string

const (
	DropNone   DropPosition = ""
	DropBefore DropPosition = "before"
	DropAfter  DropPosition = "after"
)

// PointerKind selects the activation rule for a press.
type PointerKind int

const (
	PointerMouse PointerKind = iota
	PointerTouch
	PointerKeyboard
)

// Point is a pointer position in host pixels.
type Point struct {
	X float64
	Y float64
}

func (p Point) distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// DragActivation holds the thresholds that separate a drag from a click.
type DragActivation struct {
	Distance       float64
	TouchDelay     time.Duration
	TouchTolerance float64
}

// DefaultDragActivation matches the pointer and touch sensors of the web board.
func DefaultDragActivation() DragActivation {
	return DragActivation{Distance: 8, TouchDelay: 250 * time.Millisecond, TouchTolerance: 5}
}

// DropTarget is the candidate under the pointer. EndOfGroup marks the
// synthetic slot after the last member of GroupID.
type DropTarget struct {
	TaskID     string
	GroupID    string
	EndOfGroup bool
}

// EndOfGroup builds the synthetic end-of-group candidate.
func EndOfGroup(groupID string) DropTarget {
	return DropTarget{GroupID: groupID, EndOfGroup: true}
}

// DropResult describes how a drop ended. Order is the group's new member
// order and is set only when State is DragCommitting.
type DropResult struct {
	State       DragState
	TaskID      string
	FromGroupID string
	ToGroupID   string
	FromIndex   int
	ToIndex     int
	Position    DropPosition
	Order       []string
	Reason      string
}

// Committed reports whether the drop mutates the board.
func (r DropResult) Committed() bool {
	return r.State == DragCommitting
}

// DragStatus is a read-only view of the coordinator.
type DragStatus struct {
	State        DragState
	ActiveID     string
	OverID       string
	OverGroupID  string
	OverEnd      bool
	DropPosition DropPosition
	CrossGroup   bool
}

// groupLookup resolves task membership against the current partition.
type groupLookup interface {
	groupOf(taskID string) (domain.Group, int, bool)
	group(groupID string) (domain.Group, bool)
}

// DragCoordinator runs Idle -> Dragging -> {Committing | Cancelled} -> Idle.
// It never touches the store; the engine applies committed results.
type DragCoordinator struct {
	activation DragActivation
	logger     *charmLog.Logger

	state   DragState
	armed   bool
	pointer PointerKind
	origin  Point
	armedAt time.Time

	activeID      string
	originGroupID string
	overID        string
	overGroupID   string
	overEnd       bool
	dropPosition  DropPosition
}

// NewDragCoordinator constructs an idle coordinator.
func NewDragCoordinator(activation DragActivation, logger *charmLog.Logger) *DragCoordinator {
	if activation.Distance <= 0 {
		activation.Distance = DefaultDragActivation().Distance
	}
	if activation.TouchDelay <= 0 {
		activation.TouchDelay = DefaultDragActivation().TouchDelay
	}
	if activation.TouchTolerance <= 0 {
		activation.TouchTolerance = DefaultDragActivation().TouchTolerance
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &DragCoordinator{activation: activation, logger: logger}
}

// Status returns the current coordinator view.
func (d *DragCoordinator) Status() DragStatus {
	return DragStatus{
		State:        d.state,
		ActiveID:     d.activeID,
		OverID:       d.overID,
		OverGroupID:  d.overGroupID,
		OverEnd:      d.overEnd,
		DropPosition: d.dropPosition,
		CrossGroup:   d.crossGroup(),
	}
}

func (d *DragCoordinator) crossGroup() bool {
	return d.state == DragDragging && d.overGroupID != "" && d.overGroupID != d.originGroupID
}

// PointerDown arms a press on taskID. Keyboard presses activate immediately;
// mouse and touch presses wait for PointerMove to pass the threshold.
func (d *DragCoordinator) PointerDown(taskID string, kind PointerKind, at Point, now time.Time, lookup groupLookup) bool {
	if d.state != DragIdle {
		return false
	}
	group, _, ok := lookup.groupOf(taskID)
	if !ok {
		d.logger.Debug("drag press on unknown task dropped", "task_id", taskID)
		return false
	}
	d.armed = true
	d.pointer = kind
	d.origin = at
	d.armedAt = now
	d.activeID = taskID
	d.originGroupID = group.ID
	if kind == PointerKeyboard {
		d.activate()
	}
	return true
}

// PointerMove advances activation and, while dragging, tracks the candidate.
func (d *DragCoordinator) PointerMove(at Point, now time.Time, target *DropTarget, lookup groupLookup) {
	if d.armed && d.state == DragIdle {
		moved := at.distance(d.origin)
		switch d.pointer {
		case PointerTouch:
			if moved > d.activation.TouchTolerance && now.Sub(d.armedAt) < d.activation.TouchDelay {
				d.reset()
				return
			}
			if now.Sub(d.armedAt) >= d.activation.TouchDelay {
				d.activate()
			}
		default:
			if moved > d.activation.Distance {
				d.activate()
			}
		}
	}
	if d.state != DragDragging || target == nil {
		return
	}
	d.hover(*target, lookup)
}

func (d *DragCoordinator) activate() {
	d.state = DragDragging
	d.armed = false
}

// Hover sets the candidate directly, as keyboard hosts do.
func (d *DragCoordinator) Hover(target DropTarget, lookup groupLookup) {
	if d.state != DragDragging {
		return
	}
	d.hover(target, lookup)
}

func (d *DragCoordinator) hover(target DropTarget, lookup groupLookup) {
	groupID := target.GroupID
	candidateIdx := -1
	if !target.EndOfGroup {
		group, idx, ok := lookup.groupOf(target.TaskID)
		if !ok {
			d.logger.Debug("drag hover on unknown task dropped", "task_id", target.TaskID)
			return
		}
		groupID = group.ID
		candidateIdx = idx
	} else {
		group, ok := lookup.group(groupID)
		if !ok {
			d.logger.Debug("drag hover on unknown group dropped", "group_id", groupID)
			return
		}
		candidateIdx = len(group.TaskIDs)
	}

	d.overID = target.TaskID
	d.overGroupID = groupID
	d.overEnd = target.EndOfGroup

	if groupID != d.originGroupID {
		d.dropPosition = DropBefore
		if target.EndOfGroup {
			d.dropPosition = DropAfter
		}
		d.logger.Debug("cross-group drag hover observed", "task_id", d.activeID, "from_group", d.originGroupID, "over_group", groupID)
		return
	}
	_, activeIdx, _ := lookup.groupOf(d.activeID)
	switch {
	case candidateIdx > activeIdx:
		d.dropPosition = DropAfter
	case candidateIdx < activeIdx:
		d.dropPosition = DropBefore
	default:
		d.dropPosition = DropNone
	}
}

// Drop ends the gesture. Only a within-group drop that changes the order
// commits; every other outcome cancels. The coordinator returns to Idle.
func (d *DragCoordinator) Drop(lookup groupLookup) DropResult {
	defer d.reset()
	if d.state != DragDragging {
		return DropResult{State: DragCancelled, TaskID: d.activeID, Reason: "inactive"}
	}
	result := d.plan(lookup)
	d.state = result.State
	return result
}

func (d *DragCoordinator) plan(lookup groupLookup) DropResult {
	cancel := func(reason string) DropResult {
		return DropResult{
			State:       DragCancelled,
			TaskID:      d.activeID,
			FromGroupID: d.originGroupID,
			ToGroupID:   d.overGroupID,
			Reason:      reason,
		}
	}
	if d.overID == "" && !d.overEnd {
		return cancel("no candidate")
	}
	if d.overID == d.activeID {
		return cancel("self")
	}
	group, fromIdx, ok := lookup.groupOf(d.activeID)
	if !ok {
		return cancel("stale task")
	}
	if d.overGroupID != group.ID {
		d.logger.Debug("cross-group drop not applied", "task_id", d.activeID, "from_group", group.ID, "to_group", d.overGroupID)
		return cancel("cross-group")
	}
	toIdx := len(group.TaskIDs)
	if !d.overEnd {
		toIdx = group.IndexOf(d.overID)
		if toIdx < 0 {
			return cancel("stale candidate")
		}
	}
	order := MoveID(group.TaskIDs, fromIdx, toIdx)
	if slices.Equal(order, group.TaskIDs) {
		return cancel("origin")
	}
	position := DropBefore
	if toIdx > fromIdx {
		position = DropAfter
	}
	return DropResult{
		State:       DragCommitting,
		TaskID:      d.activeID,
		FromGroupID: group.ID,
		ToGroupID:   group.ID,
		FromIndex:   fromIdx,
		ToIndex:     slices.Index(order, d.activeID),
		Position:    position,
		Order:       order,
	}
}

// Cancel aborts any press or drag without touching the board.
func (d *DragCoordinator) Cancel() DropResult {
	result := DropResult{State: DragCancelled, TaskID: d.activeID, FromGroupID: d.originGroupID, Reason: "cancelled"}
	d.state = DragCancelled
	d.reset()
	return result
}

// Forget cancels the gesture when its task disappeared.
func (d *DragCoordinator) Forget(taskID string) bool {
	if d.activeID == "" || (d.activeID != taskID && d.overID != taskID) {
		return false
	}
	if d.activeID == taskID {
		d.Cancel()
		return true
	}
	d.overID = ""
	d.overGroupID = ""
	d.dropPosition = DropNone
	return true
}

func (d *DragCoordinator) reset() {
	d.state = DragIdle
	d.armed = false
	d.activeID = ""
	d.originGroupID = ""
	d.overID = ""
	d.overGroupID = ""
	d.overEnd = false
	d.dropPosition = DropNone
}

// MoveID returns a copy of ids with the element at from moved to index to.
// to may equal len(ids) to address the end of the list.
func MoveID(ids []string, from, to int) []string {
	out := slices.Clone(ids)
	if from < 0 || from >= len(out) {
		return out
	}
	id := out[from]
	out = slices.Delete(out, from, from+1)
	to = min(max(to, 0), len(out))
	return slices.Insert(out, to, id)
}
