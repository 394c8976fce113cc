package tui

import (
	"testing"

	"charm.land/bubbles/v2/key"
)

// TestParseBindingKeys verifies key parsing behavior for configured overrides.
func TestParseBindingKeys(t *testing.T) {
	t.Run("space aliases", func(t *testing.T) {
		keys, help := parseBindingKeys("space", "m")
		if len(keys) != 2 || keys[0] != " " || keys[1] != "space" {
			t.Fatalf("unexpected parsed space keys %#v", keys)
		}
		if help != "space" {
			t.Fatalf("unexpected space help text %q", help)
		}
	})

	t.Run("uppercase rune includes shift alias", func(t *testing.T) {
		keys, help := parseBindingKeys("M", "m")
		if len(keys) != 2 || keys[0] != "M" || keys[1] != "shift+m" {
			t.Fatalf("unexpected uppercase parsed keys %#v", keys)
		}
		if help != "M" {
			t.Fatalf("unexpected uppercase help text %q", help)
		}
	})

	t.Run("multi rune lowercases key matcher", func(t *testing.T) {
		keys, help := parseBindingKeys("Ctrl+G", "g")
		if len(keys) != 1 || keys[0] != "ctrl+g" {
			t.Fatalf("unexpected multi-rune parsed keys %#v", keys)
		}
		if help != "Ctrl+G" {
			t.Fatalf("unexpected multi-rune help text %q", help)
		}
	})

	t.Run("blank uses fallback", func(t *testing.T) {
		keys, help := parseBindingKeys("  ", "y")
		if len(keys) != 1 || keys[0] != "y" {
			t.Fatalf("unexpected fallback parsed keys %#v", keys)
		}
		if help != "y" {
			t.Fatalf("unexpected fallback help text %q", help)
		}
	})
}

// TestConfigureBinding verifies binding override application behavior.
func TestConfigureBinding(t *testing.T) {
	b := key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "old"))
	configureBinding(&b, "v", "m", "move task")
	keys := b.Keys()
	if len(keys) != 1 || keys[0] != "v" {
		t.Fatalf("unexpected configured keys %#v", keys)
	}
	if b.Help().Key != "v" || b.Help().Desc != "move task" {
		t.Fatalf("unexpected configured help %#v", b.Help())
	}
}

// TestKeyMapApplyConfig verifies dynamic key map override behavior.
func TestKeyMapApplyConfig(t *testing.T) {
	k := newKeyMap()
	k.applyConfig(KeyConfig{
		Grab:    "v",
		Archive: "D",
		CopyID:  "ctrl+y",
	})

	assertKeys := func(name string, binding key.Binding, expected ...string) {
		t.Helper()
		got := binding.Keys()
		if len(got) != len(expected) {
			t.Fatalf("%s key count mismatch got=%#v expected=%#v", name, got, expected)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Fatalf("%s key mismatch got=%#v expected=%#v", name, got, expected)
			}
		}
	}

	assertKeys("grab", k.grab, "v")
	assertKeys("archive", k.archive, "D", "shift+d")
	assertKeys("copy id", k.copyID, "ctrl+y")
	assertKeys("rename", k.rename, "r")
	assertKeys("add task", k.addTask, "n")
	assertKeys("cycle grouping", k.cycleGrouping, "g")
}

// TestKeyMapHelpCoversBindings verifies the help views expose the board actions.
func TestKeyMapHelpCoversBindings(t *testing.T) {
	k := newKeyMap()
	if got := len(k.ShortHelp()); got != 8 {
		t.Fatalf("short help count = %d, want 8", got)
	}
	total := 0
	for _, column := range k.FullHelp() {
		total += len(column)
	}
	if total != 21 {
		t.Fatalf("full help count = %d, want 21", total)
	}
	drag := k.dragHelp()
	if len(drag) != 4 || drag[2].Help().Desc != "drop" {
		t.Fatalf("unexpected drag help %#v", drag)
	}
}

// TestModelUsesKeyConfig verifies overrides reach the model.
func TestModelUsesKeyConfig(t *testing.T) {
	m, _ := newLoadedModel(t, WithKeyConfig(KeyConfig{Grab: "v"}))
	m = press(t, m, "j", "m")
	if m.mode != modeNone {
		t.Fatalf("old grab key should be unbound, mode=%v", m.mode)
	}
	m = press(t, m, "v")
	if m.mode != modeDrag {
		t.Fatalf("mode = %v, want drag", m.mode)
	}
}
