package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/boardsync/internal/domain"
)

// CachingLoader loads from a primary source and falls back to the last cached
// snapshot when the primary fails.
type CachingLoader struct {
	primary Loader
	cache   SnapshotStore
	logger  *charmLog.Logger
}

// NewCachingLoader constructs a caching loader. A nil cache disables fallback.
func NewCachingLoader(primary Loader, cache SnapshotStore, logger *charmLog.Logger) *CachingLoader {
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &CachingLoader{primary: primary, cache: cache, logger: logger}
}

// LoadTasks implements Loader.
func (c *CachingLoader) LoadTasks(ctx context.Context, projectID string) (domain.Snapshot, error) {
	snap, err := c.primary.LoadTasks(ctx, projectID)
	if err == nil {
		if c.cache != nil {
			if snap.ProjectID == "" {
				snap.ProjectID = projectID
			}
			if saveErr := c.cache.SaveSnapshot(ctx, snap); saveErr != nil {
				c.logger.Warn("snapshot cache write failed", "project_id", projectID, "err", saveErr)
			}
		}
		return snap, nil
	}
	if c.cache == nil {
		return domain.Snapshot{}, err
	}
	cached, cacheErr := c.cache.LoadSnapshot(ctx, projectID)
	if cacheErr != nil {
		if errors.Is(cacheErr, ErrNotFound) {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{}, fmt.Errorf("%w; cache: %v", err, cacheErr)
	}
	c.logger.Warn("remote load failed, using cached snapshot", "project_id", projectID, "err", err)
	return cached, nil
}
