package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/domain"
)

// rowsOptions holds flags for the rows command.
type rowsOptions struct {
	groupBy   string
	collapsed []string
}

// newRowsCommand builds the rows command, which prints the flattened board.
func newRowsCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var rows rowsOptions
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Load the board and print its flattened rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRows(cmd.Context(), opts, rows, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&rows.groupBy, "group-by", "", "grouping mode: status, priority or phase")
	cmd.Flags().StringSliceVar(&rows.collapsed, "collapse", nil, "group ids to collapse")
	return cmd
}

// runRows loads the board once and renders it as two tables.
func runRows(ctx context.Context, opts *globalOptions, rows rowsOptions, stdout, stderr io.Writer) error {
	env, err := bootstrap(ctx, opts, "rows", stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	env.logger.Info("command flow start", "command", "rows")

	source, err := newBoardSource(env, opts.fixturePath)
	if err != nil {
		return err
	}
	engine := newEngine(env, source.loader)
	if raw := strings.TrimSpace(rows.groupBy); raw != "" {
		mode, err := domain.ParseGroupingMode(raw)
		if err != nil {
			return err
		}
		if err := engine.SetGrouping(mode); err != nil {
			return err
		}
	}
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := engine.Load(loadCtx, env.cfg.Board.ProjectID); err != nil {
		env.logger.Error("command flow failed", "command", "rows", "err", err)
		return fmt.Errorf("load board: %w", err)
	}
	for _, groupID := range rows.collapsed {
		if !engine.SetGroupCollapsed(strings.TrimSpace(groupID), true) {
			env.logger.Warn("unknown group not collapsed", "group_id", groupID)
		}
	}

	_, _ = fmt.Fprintln(stdout, renderGroupTable(engine))
	_, _ = fmt.Fprintln(stdout, renderRowTable(engine))
	env.logger.Info("command flow complete", "command", "rows", "rows", len(engine.Layout().Rows))
	return nil
}

// newTable returns the shared table style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// renderGroupTable lists every group with its row count and start index.
func renderGroupTable(engine *app.Engine) string {
	layout := engine.Layout()
	titles := map[string]domain.Group{}
	for _, group := range engine.Groups() {
		titles[group.ID] = group
	}
	t := newTable("Group", "Title", "Tasks", "Rows", "Start", "Collapsed")
	for i, groupID := range layout.GroupIDs {
		group := titles[groupID]
		t.Row(
			groupID,
			group.Title,
			strconv.Itoa(len(group.TaskIDs)),
			strconv.Itoa(layout.Counts[i]),
			strconv.Itoa(layout.StartIndex[i]),
			strconv.FormatBool(group.Collapsed),
		)
	}
	return t.String()
}

// renderRowTable lists every flattened row in display order.
func renderRowTable(engine *app.Engine) string {
	t := newTable("#", "Kind", "Group", "Task", "Name")
	for i, row := range engine.Layout().Rows {
		name := "+ add task"
		if row.Kind == domain.RowTask {
			if task, err := engine.Task(row.TaskID); err == nil {
				name = task.Name
			}
		}
		t.Row(strconv.Itoa(i), row.Kind.String(), row.GroupID, row.TaskID, name)
	}
	return t.String()
}
