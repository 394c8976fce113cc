package app

import (
	"context"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

// Loader fetches the full board for a project.
type Loader interface {
	LoadTasks(context.Context, string) (domain.Snapshot, error)
}

// Emitter delivers one outbound event to the server.
type Emitter interface {
	Emit(context.Context, domain.Outbound) error
}

// OutboxEntry represents one persisted outbound event awaiting delivery.
type OutboxEntry struct {
	ID        string
	Kind      domain.EventKind
	ProjectID string
	Event     domain.Outbound
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outbox stores outbound events until the emitter confirms them.
type Outbox interface {
	Append(context.Context, OutboxEntry) error
	Pending(context.Context, int) ([]OutboxEntry, error)
	Ack(context.Context, string) error
	MarkFailed(context.Context, string, string, time.Time) error
	DeadLetter(context.Context, string, string, time.Time) error
}

// SnapshotStore caches the last good snapshot per project.
type SnapshotStore interface {
	SaveSnapshot(context.Context, domain.Snapshot) error
	LoadSnapshot(context.Context, string) (domain.Snapshot, error)
}
