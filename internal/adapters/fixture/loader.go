package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
	"github.com/evanschultz/boardsync/internal/domain"
)

// ErrProjectMismatch reports a fixture that belongs to another project.
var ErrProjectMismatch = errors.New("fixture project mismatch")

// Loader serves a board from a YAML file. The file is re-read on every load
// so edits show up on the next refresh.
type Loader struct {
	path  string
	clock func() time.Time
}

// NewLoader constructs a fixture loader.
func NewLoader(path string, clock func() time.Time) (*Loader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("fixture path is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Loader{path: path, clock: clock}, nil
}

// LoadTasks implements app.Loader.
func (l *Loader) LoadTasks(ctx context.Context, projectID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data, projectID, l.clock())
}

// Parse decodes a YAML board. A fixture without project_id adopts projectID.
func Parse(data []byte, projectID string, now time.Time) (domain.Snapshot, error) {
	var dto wire.SnapshotDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode fixture: %w", err)
	}
	switch {
	case dto.ProjectID == "":
		dto.ProjectID = projectID
	case projectID != "" && dto.ProjectID != projectID:
		return domain.Snapshot{}, fmt.Errorf("%w: file has %q, want %q", ErrProjectMismatch, dto.ProjectID, projectID)
	}
	snap, err := dto.ToSnapshot(now)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode fixture: %w", err)
	}
	return snap, nil
}
