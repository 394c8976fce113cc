package app

import (
	"slices"
	"testing"
)

func TestSelectionRangeUsesAnchor(t *testing.T) {
	visible := []string{"A", "B", "C", "D", "E"}
	sel := NewSelection()
	sel.Select("D")
	sel.SelectRange("B", visible)
	if !slices.Equal(sel.IDs(), []string{"B", "C", "D"}) {
		t.Fatalf("unexpected range %#v", sel.IDs())
	}
	if sel.Anchor() != "D" {
		t.Fatalf("anchor = %q, want D", sel.Anchor())
	}

	sel.Clear()
	sel.SelectRange("C", visible)
	if !slices.Equal(sel.IDs(), []string{"C"}) || sel.Anchor() != "C" {
		t.Fatalf("expected lone selection without anchor, got %#v anchor %q", sel.IDs(), sel.Anchor())
	}
	sel.SelectRange("hidden", visible)
	if sel.Len() != 1 {
		t.Fatal("expected invisible range target ignored")
	}
}

func TestSelectionToggleAndGroupState(t *testing.T) {
	sel := NewSelection()
	members := []string{"A", "B"}
	if sel.GroupState(nil) != CheckNone || sel.GroupState(members) != CheckNone {
		t.Fatal("expected none")
	}
	if !sel.Toggle("A") {
		t.Fatal("expected A selected")
	}
	if got := sel.GroupState(members); got != CheckPartial {
		t.Fatalf("state = %s, want partial", got)
	}
	sel.SelectAll(members)
	if got := sel.GroupState(members); got != CheckAll {
		t.Fatalf("state = %s, want all", got)
	}
	sel.DeselectAll(members)
	if sel.Len() != 0 || sel.Anchor() != "" {
		t.Fatalf("expected empty selection, got %#v anchor %q", sel.IDs(), sel.Anchor())
	}
	if sel.Toggle("B") != true || sel.Toggle("B") != false {
		t.Fatal("expected toggle to flip")
	}
}

func TestSelectionPruneAndRename(t *testing.T) {
	sel := NewSelection()
	sel.SelectAll([]string{"A", "B", "temp-1"})
	sel.Select("B")
	pruned := sel.Prune(func(id string) bool { return id != "B" })
	if !slices.Equal(pruned, []string{"B"}) || sel.Anchor() != "" {
		t.Fatalf("unexpected prune %#v anchor %q", pruned, sel.Anchor())
	}
	sel.Rename("temp-1", "T1")
	if !slices.Equal(sel.IDs(), []string{"A", "T1"}) {
		t.Fatalf("unexpected ids after rename %#v", sel.IDs())
	}
}
