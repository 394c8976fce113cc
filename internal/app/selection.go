package app

import "slices"

// CheckState is the derived checkbox state of a group header.
type CheckState int

const (
	CheckNone CheckState = iota
	CheckPartial
	CheckAll
)

func (c CheckState) String() string {
	switch c {
	case CheckAll:
		return "all"
	case CheckPartial:
		return "partial"
	default:
		return "none"
	}
}

// Selection tracks selected task ids plus the anchor used for range selection.
type Selection struct {
	ids    map[string]struct{}
	anchor string
}

// NewSelection constructs an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: map[string]struct{}{}}
}

func (s *Selection) Len() int {
	return len(s.ids)
}

func (s *Selection) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Anchor returns the last clicked id.
func (s *Selection) Anchor() string {
	return s.anchor
}

// IDs returns the selection sorted for stable output.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Select adds id and makes it the anchor.
func (s *Selection) Select(id string) {
	s.ids[id] = struct{}{}
	s.anchor = id
}

// Toggle flips id and makes it the anchor. It reports whether id is now selected.
func (s *Selection) Toggle(id string) bool {
	s.anchor = id
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SelectRange selects every id between the anchor and id in visible order,
// inclusive. Without a visible anchor only id is selected and becomes the anchor.
func (s *Selection) SelectRange(id string, visible []string) {
	to := slices.Index(visible, id)
	if to < 0 {
		return
	}
	from := slices.Index(visible, s.anchor)
	if from < 0 {
		s.Select(id)
		return
	}
	if from > to {
		from, to = to, from
	}
	for _, rangeID := range visible[from : to+1] {
		s.ids[rangeID] = struct{}{}
	}
}

// SelectAll adds every id.
func (s *Selection) SelectAll(ids []string) {
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// DeselectAll removes every id.
func (s *Selection) DeselectAll(ids []string) {
	for _, id := range ids {
		delete(s.ids, id)
	}
	if slices.Contains(ids, s.anchor) {
		s.anchor = ""
	}
}

// Clear empties the selection and the anchor.
func (s *Selection) Clear() {
	clear(s.ids)
	s.anchor = ""
}

// Prune drops ids for which exists reports false and returns them.
func (s *Selection) Prune(exists func(string) bool) []string {
	var pruned []string
	for id := range s.ids {
		if !exists(id) {
			delete(s.ids, id)
			pruned = append(pruned, id)
		}
	}
	if s.anchor != "" && !exists(s.anchor) {
		s.anchor = ""
	}
	slices.Sort(pruned)
	return pruned
}

// Rename carries selection state from a placeholder id to its confirmed id.
func (s *Selection) Rename(oldID, newID string) {
	if _, ok := s.ids[oldID]; ok {
		delete(s.ids, oldID)
		s.ids[newID] = struct{}{}
	}
	if s.anchor == oldID {
		s.anchor = newID
	}
}

// GroupState derives the checkbox state for a group's member ids.
func (s *Selection) GroupState(taskIDs []string) CheckState {
	if len(taskIDs) == 0 {
		return CheckNone
	}
	selected := 0
	for _, id := range taskIDs {
		if s.Contains(id) {
			selected++
		}
	}
	switch selected {
	case 0:
		return CheckNone
	case len(taskIDs):
		return CheckAll
	default:
		return CheckPartial
	}
}
