package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/evanschultz/boardsync/internal/adapters/transport/wire"
	"github.com/evanschultz/boardsync/internal/app"
	"github.com/evanschultz/boardsync/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists the outbound event outbox and the last good board
// snapshot per project.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			project_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_project ON outbox(project_id, seq);`,
		`CREATE TABLE IF NOT EXISTS outbox_dead (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			project_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS board_snapshots (
			project_id TEXT PRIMARY KEY,
			payload_json TEXT NOT NULL,
			task_count INTEGER NOT NULL DEFAULT 0,
			saved_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Append stores one outbound event at the tail of the outbox. A blank id is
// replaced with a fresh ULID.
func (r *Repository) Append(ctx context.Context, entry app.OutboxEntry) error {
	if entry.Event == nil {
		return fmt.Errorf("append outbox entry: %w", domain.ErrUnknownEvent)
	}
	payload, err := wire.EncodeOutbound(entry.Event)
	if err != nil {
		return fmt.Errorf("encode outbox entry: %w", err)
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	projectID := entry.ProjectID
	if projectID == "" {
		projectID = entry.Event.Project()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO outbox(id, kind, project_id, payload_json, attempts, last_error, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Event.Kind()), projectID, string(payload), entry.Attempts, entry.LastError, ts(entry.CreatedAt), ts(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Pending lists entries in FIFO order. A non-positive limit lists all.
func (r *Repository) Pending(ctx context.Context, limit int) ([]app.OutboxEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, project_id, payload_json, attempts, last_error, created_at, updated_at
		FROM outbox
		ORDER BY seq ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	out := []app.OutboxEntry{}
	for rows.Next() {
		entry, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return out, nil
}

// Ack removes a delivered entry.
func (r *Repository) Ack(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ack outbox entry: %w", err)
	}
	return translateNoRows(res)
}

// MarkFailed records a failed delivery attempt and keeps the entry queued.
func (r *Repository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?
	`, reason, ts(at), id)
	if err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return translateNoRows(res)
}

// DeadLetter moves an entry the remote rejected permanently out of the
// delivery queue, recording the final attempt.
func (r *Repository) DeadLetter(ctx context.Context, id, reason string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dead-letter tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_dead(id, kind, project_id, payload_json, attempts, last_error, created_at, updated_at)
		SELECT id, kind, project_id, payload_json, attempts + 1, ?, created_at, ?
		FROM outbox
		WHERE id = ?
	`, reason, ts(at), id)
	if err != nil {
		return fmt.Errorf("dead-letter outbox entry: %w", err)
	}
	if err := translateNoRows(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("dead-letter outbox entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dead-letter tx: %w", err)
	}
	return nil
}

// DeadLetters lists permanently rejected entries, oldest first. A
// non-positive limit lists all.
func (r *Repository) DeadLetters(ctx context.Context, limit int) ([]app.OutboxEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, project_id, payload_json, attempts, last_error, created_at, updated_at
		FROM outbox_dead
		ORDER BY seq ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	out := []app.OutboxEntry{}
	for rows.Next() {
		entry, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return out, nil
}

// CountPending returns the number of queued entries.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// Purge drops every queued entry and returns how many were removed.
func (r *Repository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox`)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return res.RowsAffected()
}

// SaveSnapshot replaces the cached snapshot for the project.
func (r *Repository) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if strings.TrimSpace(snap.ProjectID) == "" {
		return fmt.Errorf("save snapshot: %w", domain.ErrInvalidID)
	}
	payload, err := json.Marshal(wire.FromSnapshot(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO board_snapshots(project_id, payload_json, task_count, saved_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			payload_json = excluded.payload_json,
			task_count = excluded.task_count,
			saved_at = excluded.saved_at
	`, snap.ProjectID, string(payload), len(snap.Tasks), ts(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshot returns the cached snapshot or app.ErrNotFound.
func (r *Repository) LoadSnapshot(ctx context.Context, projectID string) (domain.Snapshot, error) {
	var payload, savedRaw string
	err := r.db.QueryRowContext(ctx, `
		SELECT payload_json, saved_at FROM board_snapshots WHERE project_id = ?
	`, projectID).Scan(&payload, &savedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var dto wire.SnapshotDTO
	if err := json.Unmarshal([]byte(payload), &dto); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return dto.ToSnapshot(parseTS(savedRaw))
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanOutboxEntry(s scanner) (app.OutboxEntry, error) {
	var (
		entry                  app.OutboxEntry
		kind, payload          string
		createdRaw, updatedRaw string
	)
	if err := s.Scan(&entry.ID, &kind, &entry.ProjectID, &payload, &entry.Attempts, &entry.LastError, &createdRaw, &updatedRaw); err != nil {
		return app.OutboxEntry{}, fmt.Errorf("scan outbox entry: %w", err)
	}
	ev, err := wire.DecodeOutbound([]byte(payload))
	if err != nil {
		return app.OutboxEntry{}, fmt.Errorf("decode outbox entry %q: %w", entry.ID, err)
	}
	entry.Kind = domain.EventKind(kind)
	entry.Event = ev
	entry.CreatedAt = parseTS(createdRaw)
	entry.UpdatedAt = parseTS(updatedRaw)
	return entry, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
