package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GroupingMode selects which task attribute decides group membership.
type GroupingMode string

const (
	GroupByStatus   GroupingMode = "status"
	GroupByPriority GroupingMode = "priority"
	GroupByPhase    GroupingMode = "phase"
)

// UnmappedGroupID is the sentinel group for tasks lacking the active attribute.
const UnmappedGroupID = "Unmapped"

var groupingModes = []GroupingMode{GroupByStatus, GroupByPriority, GroupByPhase}

// GroupingModes returns every supported mode in cycle order.
func GroupingModes() []GroupingMode {
	return append([]GroupingMode(nil), groupingModes...)
}

// ParseGroupingMode normalizes raw input into a grouping mode.
func ParseGroupingMode(raw string) (GroupingMode, error) {
	mode := GroupingMode(strings.TrimSpace(strings.ToLower(raw)))
	switch mode {
	case GroupByStatus, GroupByPriority, GroupByPhase:
		return mode, nil
	case "":
		return GroupByStatus, nil
	default:
		return "", ErrInvalidGroupingMode
	}
}

// Next returns the mode that follows m in cycle order.
func (m GroupingMode) Next() GroupingMode {
	for i, mode := range groupingModes {
		if mode == m {
			return groupingModes[(i+1)%len(groupingModes)]
		}
	}
	return GroupByStatus
}

// ClassifyingField returns the task field backing the mode.
func (m GroupingMode) ClassifyingField() Field {
	switch m {
	case GroupByPriority:
		return FieldPriority
	case GroupByPhase:
		return FieldPhase
	default:
		return FieldStatus
	}
}

// GroupDef is one entry of a canonical, server-provided group ordering.
type GroupDef struct {
	ID    string
	Name  string
	Color string
}

var titleCaser = cases.Title(language.English)

// NewGroupDef validates a group definition. A blank name is derived from the id.
func NewGroupDef(id, name, color string) (GroupDef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return GroupDef{}, ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = titleCaser.String(strings.NewReplacer("_", " ", "-", " ").Replace(id))
	}
	return GroupDef{
		ID:    id,
		Name:  name,
		Color: strings.TrimSpace(color),
	}, nil
}

// Catalog holds the canonical group orderings for every grouping mode.
type Catalog struct {
	Statuses   []GroupDef
	Priorities []GroupDef
	Phases     []GroupDef
}

// Defs returns the canonical order for mode.
func (c Catalog) Defs(mode GroupingMode) []GroupDef {
	switch mode {
	case GroupByPriority:
		return c.Priorities
	case GroupByPhase:
		return c.Phases
	default:
		return c.Statuses
	}
}

// IsZero reports whether no mode has any definitions.
func (c Catalog) IsZero() bool {
	return len(c.Statuses) == 0 && len(c.Priorities) == 0 && len(c.Phases) == 0
}

// Has reports whether id is a known value for mode.
func (c Catalog) Has(mode GroupingMode, id string) bool {
	for _, def := range c.Defs(mode) {
		if def.ID == id {
			return true
		}
	}
	return false
}

// Group is an ordered bucket of top-level task ids sharing a classifying value.
type Group struct {
	ID        string
	Title     string
	Color     string
	TaskIDs   []string
	Collapsed bool
}

// Unmapped reports whether g is the sentinel group.
func (g Group) Unmapped() bool {
	return g.ID == UnmappedGroupID
}

// IndexOf returns the position of taskID inside g, or -1.
func (g Group) IndexOf(taskID string) int {
	for i, id := range g.TaskIDs {
		if id == taskID {
			return i
		}
	}
	return -1
}
