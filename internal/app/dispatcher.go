package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/evanschultz/boardsync/internal/domain"
)

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	BatchSize int
	NewID     IDGenerator
	Clock     Clock
	Logger    *charmLog.Logger
}

// Dispatcher moves outbound events from the engine bus into a durable outbox
// and delivers them in FIFO order. Failed deliveries stay queued; local
// optimistic state is never rolled back.
type Dispatcher struct {
	emitter Emitter
	outbox  Outbox
	batch   int
	newID   IDGenerator
	clock   Clock
	logger  *charmLog.Logger

	mu     sync.Mutex
	queue  []domain.Outbound
	notify chan struct{}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(emitter Emitter, outbox Outbox, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return ulid.Make().String() }
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = charmLog.New(io.Discard)
	}
	return &Dispatcher{
		emitter: emitter,
		outbox:  outbox,
		batch:   cfg.BatchSize,
		newID:   cfg.NewID,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		notify:  make(chan struct{}, 1),
	}
}

// Attach subscribes the dispatcher to every outbound kind on e.
func (d *Dispatcher) Attach(e *Engine) []Token {
	tokens := make([]Token, 0, len(domain.OutboundKinds()))
	for _, kind := range domain.OutboundKinds() {
		tokens = append(tokens, e.Subscribe(kind, func(ev domain.Event) {
			if out, ok := ev.(domain.Outbound); ok {
				d.Enqueue(out)
			}
		}))
	}
	return tokens
}

// Enqueue buffers ev without blocking the caller.
func (d *Dispatcher) Enqueue(ev domain.Outbound) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) drain() []domain.Outbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.queue
	d.queue = nil
	return out
}

// Flush persists buffered events and sends pending entries until the outbox
// is empty or a send fails. A permanent rejection moves the entry to the dead
// letters and delivery continues with the next one. It returns the number of
// delivered entries.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	if err := d.persist(ctx); err != nil {
		return 0, err
	}

	sent := 0
	for {
		entries, err := d.outbox.Pending(ctx, d.batch)
		if err != nil {
			return sent, fmt.Errorf("list pending outbox entries: %w", err)
		}
		if len(entries) == 0 {
			return sent, nil
		}
		for _, entry := range entries {
			err := d.emitter.Emit(ctx, entry.Event)
			switch {
			case err == nil:
				if err := d.outbox.Ack(ctx, entry.ID); err != nil {
					return sent, fmt.Errorf("ack outbox entry: %w", err)
				}
				sent++
			case IsPermanent(err):
				d.logger.Warn("outbound event rejected, dead-lettering", "id", entry.ID, "kind", entry.Kind, "err", err)
				if dlErr := d.outbox.DeadLetter(ctx, entry.ID, err.Error(), d.clock().UTC()); dlErr != nil {
					return sent, fmt.Errorf("dead-letter outbox entry: %w", dlErr)
				}
			default:
				d.logger.Warn("outbound send failed, keeping entry", "id", entry.ID, "kind", entry.Kind, "attempts", entry.Attempts+1, "err", err)
				if markErr := d.outbox.MarkFailed(ctx, entry.ID, err.Error(), d.clock().UTC()); markErr != nil {
					return sent, fmt.Errorf("mark outbox entry failed: %w", markErr)
				}
				return sent, nil
			}
		}
	}
}

// persist appends buffered events to the outbox in order. Events that could
// not be stored go back to the front of the buffer for the next flush.
func (d *Dispatcher) persist(ctx context.Context) error {
	buffered := d.drain()
	for i, ev := range buffered {
		now := d.clock().UTC()
		entry := OutboxEntry{
			ID:        d.newID(),
			Kind:      ev.Kind(),
			ProjectID: ev.Project(),
			Event:     ev,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := d.outbox.Append(ctx, entry); err != nil {
			d.requeue(buffered[i:])
			return fmt.Errorf("append outbox entry: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) requeue(events []domain.Outbound) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(append([]domain.Outbound(nil), events...), d.queue...)
}

// Buffered returns the number of events not yet persisted.
func (d *Dispatcher) Buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run flushes whenever events arrive and on every interval tick until ctx ends.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.notify:
		case <-ticker.C:
		}
		if _, err := d.Flush(ctx); err != nil {
			d.logger.Error("outbox flush failed", "err", err)
		}
	}
}

// MemoryOutbox is an in-process Outbox used when no database is configured.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries []OutboxEntry
	dead    []OutboxEntry
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (m *MemoryOutbox) Append(_ context.Context, entry OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryOutbox) Pending(_ context.Context, limit int) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(limit, len(m.entries))
	if limit <= 0 {
		n = len(m.entries)
	}
	return append([]OutboxEntry(nil), m.entries[:n]...), nil
}

func (m *MemoryOutbox) Ack(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range m.entries {
		if entry.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("outbox entry %q: %w", id, ErrNotFound)
}

func (m *MemoryOutbox) MarkFailed(_ context.Context, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Attempts++
			m.entries[i].LastError = reason
			m.entries[i].UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("outbox entry %q: %w", id, ErrNotFound)
}

func (m *MemoryOutbox) DeadLetter(_ context.Context, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range m.entries {
		if entry.ID == id {
			entry.Attempts++
			entry.LastError = reason
			entry.UpdatedAt = at
			m.dead = append(m.dead, entry)
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("outbox entry %q: %w", id, ErrNotFound)
}

// DeadLetters returns entries the remote rejected permanently.
func (m *MemoryOutbox) DeadLetters() []OutboxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboxEntry(nil), m.dead...)
}
