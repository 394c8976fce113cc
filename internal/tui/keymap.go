package tui

import (
	"strings"
	"unicode"

	"charm.land/bubbles/v2/key"
)

// keyMap holds the board bindings.
type keyMap struct {
	quit           key.Binding
	toggleHelp     key.Binding
	refresh        key.Binding
	moveUp         key.Binding
	moveDown       key.Binding
	toggleSelect   key.Binding
	rangeSelect    key.Binding
	toggleGroupSel key.Binding
	toggleGroup    key.Binding
	collapseAll    key.Binding
	expandAll      key.Binding
	cycleGrouping  key.Binding
	grab           key.Binding
	drop           key.Binding
	cancel         key.Binding
	addTask        key.Binding
	rename         key.Binding
	description    key.Binding
	subtasks       key.Binding
	copyID         key.Binding
	archive        key.Binding
}

// newKeyMap constructs the default board bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		refresh:        key.NewBinding(key.WithKeys("R", "shift+r"), key.WithHelp("R", "refresh")),
		moveUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		toggleSelect:   key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "select")),
		rangeSelect:    key.NewBinding(key.WithKeys("shift+space"), key.WithHelp("shift+space", "select range")),
		toggleGroupSel: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select group")),
		toggleGroup:    key.NewBinding(key.WithKeys("enter", "tab"), key.WithHelp("enter/tab", "collapse group")),
		collapseAll:    key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "collapse all")),
		expandAll:      key.NewBinding(key.WithKeys("Z", "shift+z"), key.WithHelp("Z", "expand all")),
		cycleGrouping:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "group by")),
		grab:           key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move task")),
		drop:           key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		cancel:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		addTask:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		rename:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		description:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "description")),
		subtasks:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sub-tasks")),
		copyID:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		archive:        key.NewBinding(key.WithKeys("X", "shift+x"), key.WithHelp("X", "archive selected")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.moveDown, k.toggleSelect, k.toggleGroup, k.cycleGrouping, k.grab, k.rename, k.toggleHelp, k.quit,
	}
}

// FullHelp returns every binding grouped by concern.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.toggleGroup, k.collapseAll, k.expandAll, k.cycleGrouping},
		{k.toggleSelect, k.rangeSelect, k.toggleGroupSel, k.archive},
		{k.grab, k.drop, k.cancel},
		{k.addTask, k.rename, k.description, k.subtasks, k.copyID, k.refresh, k.toggleHelp, k.quit},
	}
}

// dragHelp returns the bindings active while a task is grabbed.
func (k keyMap) dragHelp() []key.Binding {
	return []key.Binding{k.moveDown, k.moveUp, k.drop, k.cancel}
}

// KeyConfig overrides a subset of the default bindings. Blank fields keep the default.
type KeyConfig struct {
	Grab          string
	Rename        string
	AddTask       string
	Archive       string
	CycleGrouping string
	CopyID        string
}

// applyConfig applies binding overrides.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.grab, cfg.Grab, "m", "move task")
	configureBinding(&k.rename, cfg.Rename, "r", "rename")
	configureBinding(&k.addTask, cfg.AddTask, "n", "new task")
	configureBinding(&k.archive, cfg.Archive, "X", "archive selected")
	configureBinding(&k.cycleGrouping, cfg.CycleGrouping, "g", "group by")
	configureBinding(&k.copyID, cfg.CopyID, "y", "copy id")
}

// configureBinding rebinds b to raw, or to fallback when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher keys and help text.
// A single uppercase rune also matches its shift form.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") || raw == " " {
		return []string{" ", "space"}, "space"
	}
	runes := []rune(raw)
	if len(runes) == 1 {
		r := runes[0]
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}
