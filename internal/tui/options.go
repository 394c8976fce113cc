package tui

import (
	"time"

	"github.com/atotto/clipboard"
)

// Option configures a Model.
type Option func(*Model)

// CopyFunc writes text to the system clipboard.
type CopyFunc func(string) error

// defaultSweepInterval is used when no sweep interval is configured.
const defaultSweepInterval = time.Second

// WithSweepInterval sets how often expired pending edits are swept.
// Non-positive values disable sweeping.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Model) {
		m.sweepEvery = d
	}
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(fn CopyFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.copy = fn
		}
	}
}

// WithMarkdownStyle selects the glamour style used by the description pane.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		if style != "" {
			m.markdown.style = style
		}
	}
}

// systemClipboard writes through the OS clipboard.
func systemClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// WithKeyConfig applies binding overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}
