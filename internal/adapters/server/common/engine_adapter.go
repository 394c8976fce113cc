package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/domain"
)

// EngineAdapter maps transport contracts onto an engine owned by an app.Loop.
type EngineAdapter struct {
	loop   *app.Loop
	clock  func() time.Time
	logger *charmLog.Logger
}

// NewEngineAdapter builds one common adapter over a running loop.
func NewEngineAdapter(loop *app.Loop, clock func() time.Time, logger *charmLog.Logger) *EngineAdapter {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &EngineAdapter{loop: loop, clock: clock, logger: logger}
}

// do runs fn on the loop and maps engine errors to transport errors.
func (a *EngineAdapter) do(ctx context.Context, operation string, fn func(*app.Engine) error) error {
	if a == nil || a.loop == nil {
		return fmt.Errorf("%s: engine adapter is not configured: %w", operation, ErrUnavailable)
	}
	return mapAppError(operation, a.loop.Do(ctx, fn))
}

// mutation attaches actor attribution and logs one mutating request.
func (a *EngineAdapter) mutation(ctx context.Context, operation string, ref ActorRef, kv ...any) context.Context {
	actor := app.Actor{ID: ref.ActorID, Type: app.ActorType(ref.ActorType)}
	if strings.TrimSpace(actor.ID) == "" {
		actor = app.Actor{ID: "api", Type: app.ActorSystem}
	}
	ctx = app.WithActor(ctx, actor)
	actor, _ = app.ActorFromContext(ctx)
	a.logger.Info(operation, append([]any{"actor_id", actor.ID, "actor_type", actor.Type}, kv...)...)
	return ctx
}

// Board returns the flattened board view.
func (a *EngineAdapter) Board(ctx context.Context) (BoardView, error) {
	var out BoardView
	err := a.do(ctx, "board", func(e *app.Engine) error {
		if !e.Loaded() {
			return app.ErrNotLoaded
		}
		out = boardView(e)
		return nil
	})
	return out, err
}

// Task returns one task view.
func (a *EngineAdapter) Task(ctx context.Context, taskID string) (TaskView, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return TaskView{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	var out TaskView
	err := a.do(ctx, "get task", func(e *app.Engine) error {
		task, err := e.Task(taskID)
		if err != nil {
			return err
		}
		out = taskView(e, task)
		return nil
	})
	return out, err
}

// UpdateField applies one optimistic field edit.
func (a *EngineAdapter) UpdateField(ctx context.Context, in UpdateFieldRequest) (TaskView, error) {
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return TaskView{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	field, err := domain.ParseField(in.Field)
	if err != nil {
		return TaskView{}, fmt.Errorf("update field: %w", errors.Join(ErrInvalidRequest, err))
	}
	value, err := wire.DecodeFieldValue(field, in.Value)
	if err != nil {
		return TaskView{}, fmt.Errorf("update field: %w", errors.Join(ErrInvalidRequest, err))
	}
	ctx = a.mutation(ctx, "update field", in.ActorRef, "task_id", taskID, "field", field)

	var out TaskView
	err = a.do(ctx, "update field", func(e *app.Engine) error {
		if err := e.UpdateField(taskID, field, value); err != nil {
			return err
		}
		task, err := e.Task(taskID)
		if err != nil {
			return err
		}
		out = taskView(e, task)
		return nil
	})
	return out, err
}

// MoveTask runs a keyboard drag of one task onto a target.
func (a *EngineAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (MoveResult, error) {
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return MoveResult{}, fmt.Errorf("task_id is required: %w", ErrInvalidRequest)
	}
	target := app.DropTarget{TaskID: strings.TrimSpace(in.TargetTaskID)}
	if in.End {
		target = app.EndOfGroup(strings.TrimSpace(in.GroupID))
	}
	if target.TaskID == "" && !target.EndOfGroup {
		return MoveResult{}, fmt.Errorf("target_task_id or end is required: %w", ErrInvalidRequest)
	}
	ctx = a.mutation(ctx, "move task", in.ActorRef, "task_id", taskID, "target_task_id", target.TaskID, "end", target.EndOfGroup)

	var out MoveResult
	err := a.do(ctx, "move task", func(e *app.Engine) error {
		if target.EndOfGroup && target.GroupID == "" {
			group, err := groupOfTask(e, taskID)
			if err != nil {
				return err
			}
			target.GroupID = group
		}
		result, err := e.MoveTask(taskID, target)
		if err != nil {
			return err
		}
		out = MoveResult{
			Committed:   result.Committed(),
			TaskID:      result.TaskID,
			FromGroupID: result.FromGroupID,
			ToGroupID:   result.ToGroupID,
			FromIndex:   result.FromIndex,
			ToIndex:     result.ToIndex,
			Order:       result.Order,
			Reason:      result.Reason,
		}
		return nil
	})
	return out, err
}

// CreateTask inserts an optimistic placeholder.
func (a *EngineAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (TaskView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return TaskView{}, fmt.Errorf("name is required: %w", ErrInvalidRequest)
	}
	ctx = a.mutation(ctx, "create task", in.ActorRef, "group_id", in.GroupID, "parent_id", in.ParentID)

	var out TaskView
	err := a.do(ctx, "create task", func(e *app.Engine) error {
		task, err := e.CreateTask(name, strings.TrimSpace(in.GroupID), strings.TrimSpace(in.ParentID))
		if err != nil {
			return err
		}
		out = taskView(e, task)
		return nil
	})
	return out, err
}

// ToggleGroup flips or sets one group's collapsed flag.
func (a *EngineAdapter) ToggleGroup(ctx context.Context, in ToggleGroupRequest) (GroupView, error) {
	groupID := strings.TrimSpace(in.GroupID)
	if groupID == "" {
		return GroupView{}, fmt.Errorf("group_id is required: %w", ErrInvalidRequest)
	}
	var out GroupView
	err := a.do(ctx, "toggle group", func(e *app.Engine) error {
		if _, err := e.Group(groupID); err != nil {
			return err
		}
		if in.Collapsed != nil {
			e.SetGroupCollapsed(groupID, *in.Collapsed)
		} else {
			e.ToggleGroup(groupID)
		}
		view, ok := findGroup(boardView(e), groupID)
		if !ok {
			return app.ErrNotFound
		}
		out = view
		return nil
	})
	return out, err
}

// SetGrouping switches the grouping mode and returns the regrouped board.
func (a *EngineAdapter) SetGrouping(ctx context.Context, in SetGroupingRequest) (BoardView, error) {
	mode, err := domain.ParseGroupingMode(strings.TrimSpace(in.GroupBy))
	if err != nil {
		return BoardView{}, fmt.Errorf("set grouping: %w", errors.Join(ErrInvalidRequest, err))
	}
	var out BoardView
	err = a.do(ctx, "set grouping", func(e *app.Engine) error {
		if err := e.SetGrouping(mode); err != nil {
			return err
		}
		out = boardView(e)
		return nil
	})
	return out, err
}

// Select changes the selection and returns the selected ids.
func (a *EngineAdapter) Select(ctx context.Context, in SelectRequest) ([]string, error) {
	mode := strings.TrimSpace(strings.ToLower(in.Mode))
	if mode == "" {
		mode = SelectSingle
	}
	taskID := strings.TrimSpace(in.TaskID)
	groupID := strings.TrimSpace(in.GroupID)
	switch mode {
	case SelectSingle, SelectToggle, SelectRange:
		if taskID == "" {
			return nil, fmt.Errorf("task_id is required for mode %q: %w", mode, ErrInvalidRequest)
		}
	case SelectGroup:
		if groupID == "" {
			return nil, fmt.Errorf("group_id is required for mode %q: %w", mode, ErrInvalidRequest)
		}
	case SelectClear:
	default:
		return nil, fmt.Errorf("unsupported selection mode %q: %w", in.Mode, ErrInvalidRequest)
	}

	var out []string
	err := a.do(ctx, "select", func(e *app.Engine) error {
		var err error
		switch mode {
		case SelectSingle:
			err = e.Select(taskID)
		case SelectToggle:
			_, err = e.ToggleSelected(taskID)
		case SelectRange:
			err = e.SelectRange(taskID)
		case SelectGroup:
			_, err = e.ToggleGroupSelection(groupID)
		case SelectClear:
			e.ClearSelection()
		}
		if err != nil {
			return err
		}
		out = e.Selected()
		return nil
	})
	return out, err
}

// Bulk applies one bulk action to the selection.
func (a *EngineAdapter) Bulk(ctx context.Context, in BulkRequest) (BulkResult, error) {
	action, err := domain.ParseBulkAction(strings.TrimSpace(strings.ToLower(in.Action)))
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk %q: %w", in.Action, errors.Join(ErrInvalidRequest, err))
	}
	ctx = a.mutation(ctx, "bulk action", in.ActorRef, "action", action)

	var out BulkResult
	err = a.do(ctx, "bulk action", func(e *app.Engine) error {
		emitted, err := e.BulkAction(action, domain.BulkPayload{ValueID: strings.TrimSpace(in.ValueID), IDs: in.IDs})
		if err != nil {
			return err
		}
		out = BulkResult{Action: string(emitted.Action), TaskIDs: emitted.TaskIDs}
		return nil
	})
	return out, err
}

// Publish decodes one pushed envelope and applies it on the loop.
func (a *EngineAdapter) Publish(ctx context.Context, data []byte) error {
	ev, err := wire.DecodeInbound(data, a.clock())
	if err != nil {
		return fmt.Errorf("publish: %w", errors.Join(ErrInvalidRequest, err))
	}
	return a.do(ctx, "publish", func(e *app.Engine) error {
		e.Apply(ev)
		return nil
	})
}

func boardView(e *app.Engine) BoardView {
	layout := e.Layout()
	out := BoardView{
		ProjectID: e.ProjectID(),
		GroupBy:   string(e.Mode()),
		Groups:    []GroupView{},
		Rows:      make([]RowView, 0, len(layout.Rows)),
		Tasks:     []wire.TaskDTO{},
		Selected:  e.Selected(),
	}
	for i, group := range e.Groups() {
		view := GroupView{
			ID:        group.ID,
			Title:     group.Title,
			Color:     group.Color,
			Unmapped:  group.Unmapped(),
			Collapsed: group.Collapsed,
			Check:     e.GroupCheckState(group.ID).String(),
			TaskIDs:   group.TaskIDs,
		}
		if i < len(layout.Counts) {
			view.RowCount = layout.Counts[i]
			view.StartIndex = layout.StartIndex[i]
		}
		out.Groups = append(out.Groups, view)
	}
	for _, row := range layout.Rows {
		out.Rows = append(out.Rows, RowView{Kind: row.Kind.String(), GroupID: row.GroupID, TaskID: row.TaskID})
		if row.Kind != domain.RowTask {
			continue
		}
		if task, err := e.Task(row.TaskID); err == nil {
			out.Tasks = append(out.Tasks, wire.FromTask(task))
		}
	}
	return out
}

func taskView(e *app.Engine, task domain.Task) TaskView {
	out := TaskView{
		TaskDTO:   wire.FromTask(task),
		Temporary: task.Temporary,
		Selected:  e.IsSelected(task.ID),
	}
	for _, field := range domain.Fields() {
		if _, ok := e.Pending(task.ID, field); ok {
			out.PendingFields = append(out.PendingFields, string(field))
		}
	}
	return out
}

func findGroup(board BoardView, groupID string) (GroupView, bool) {
	for _, group := range board.Groups {
		if group.ID == groupID {
			return group, true
		}
	}
	return GroupView{}, false
}

func groupOfTask(e *app.Engine, taskID string) (string, error) {
	for _, group := range e.Groups() {
		for _, id := range group.TaskIDs {
			if id == taskID {
				return group.ID, nil
			}
		}
	}
	return "", fmt.Errorf("task %q is not in any group: %w", taskID, app.ErrNotFound)
}

// mapAppError maps engine and domain errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrNotLoaded), errors.Is(err, app.ErrLoopClosed):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, app.ErrNothingSelected), errors.Is(err, app.ErrDragInactive):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidGroupingMode),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrInvalidFieldValue),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInvalidBulkAction),
		errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, wire.ErrMalformed):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
