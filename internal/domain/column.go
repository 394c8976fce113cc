package domain

import (
	"strings"
)

// Column represents one list column the host may render for each task row.
type Column struct {
	Key      string
	Name     string
	Position int
	Width    int
	Visible  bool
	Pinned   bool
}

// NewColumn constructs a new value for this package.
func NewColumn(key, name string, position, width int, visible bool) (Column, error) {
	key = strings.TrimSpace(key)
	name = strings.TrimSpace(name)
	if key == "" {
		return Column{}, ErrInvalidID
	}
	if name == "" {
		return Column{}, ErrInvalidName
	}
	if position < 0 {
		return Column{}, ErrInvalidPosition
	}
	if width < 0 {
		return Column{}, ErrInvalidPosition
	}

	return Column{
		Key:      key,
		Name:     name,
		Position: position,
		Width:    width,
		Visible:  visible,
	}, nil
}

// SetVisible handles set visible.
func (c *Column) SetVisible(visible bool) {
	if c.Pinned {
		return
	}
	c.Visible = visible
}

// SetPosition handles set position.
func (c *Column) SetPosition(position int) error {
	if position < 0 {
		return ErrInvalidPosition
	}
	c.Position = position
	return nil
}
