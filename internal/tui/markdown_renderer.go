package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/evanschultz/boardsync/internal/domain"
)

// markdownRenderer turns a task into the description pane body. The glamour
// renderer is rebuilt on width changes and the last output is memoized, since
// View runs on every message.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer

	lastSource string
	lastWidth  int
	lastOut    string
}

// renderTask renders the detail list plus the task description. An empty
// result means the task has neither.
func (r *markdownRenderer) renderTask(task domain.Task, width int) string {
	source := taskDocument(task)
	if source == "" {
		return ""
	}
	wrap := max(width, 24)
	if source == r.lastSource && wrap == r.lastWidth {
		return r.lastOut
	}
	out := r.render(source, wrap)
	r.lastSource, r.lastWidth, r.lastOut = source, wrap, out
	return out
}

// render falls back to the raw markdown when glamour fails.
func (r *markdownRenderer) render(markdown string, wrap int) string {
	if r.style == "" {
		r.style = "dark"
	}
	if r.renderer == nil || r.width != wrap {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return markdown
		}
		r.renderer, r.width = renderer, wrap
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// taskDocument lists the set classifiers and attributes, then the description.
func taskDocument(task domain.Task) string {
	var details []string
	add := func(label, value string) {
		if value != "" {
			details = append(details, fmt.Sprintf("- **%s:** %s", label, value))
		}
	}
	add("Status", task.StatusID)
	add("Priority", task.PriorityID)
	add("Phase", task.PhaseID)
	add("Assignees", strings.Join(task.AssigneeIDs, ", "))
	add("Labels", strings.Join(task.LabelIDs, ", "))
	add("Start", formatDate(task.StartDate))
	add("Due", formatDate(task.EndDate))
	if task.Estimation > 0 {
		add("Estimate", task.Estimation.String())
	}
	if task.Progress > 0 {
		add("Progress", fmt.Sprintf("%d%%", task.Progress))
	}
	if n := len(task.SubTaskIDs); n > 0 {
		add("Sub-tasks", fmt.Sprintf("%d", n))
	}

	description := strings.TrimSpace(task.Description)
	switch {
	case len(details) == 0:
		return description
	case description == "":
		return strings.Join(details, "\n")
	default:
		return strings.Join(details, "\n") + "\n\n---\n\n" + description
	}
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
