package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/event-timetable/internal/models"
	appErrors "github.com/noah-isme/event-timetable/pkg/errors"
)

// TimetableRepository persists event timetables as versioned snapshots.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const (
	insertTimetableNodeQuery = `
INSERT INTO timetable_nodes (event_id, handle, kind, title, description, conference_handle, session_handle, timezone,
    start_at, duration_seconds, default_duration_seconds, closed, poster, status, position, entry_counter)
VALUES (:event_id, :handle, :kind, :title, :description, :conference_handle, :session_handle, :timezone,
    :start_at, :duration_seconds, :default_duration_seconds, :closed, :poster, :status, :position, :entry_counter)`

	insertTimetableEntryQuery = `
INSERT INTO timetable_entries (event_id, holder, entry_id, kind, target, title, description, start_at, duration_seconds, position)
VALUES (:event_id, :holder, :entry_id, :kind, :target, :title, :description, :start_at, :duration_seconds, :position)`

	insertTimetableNotificationQuery = `
INSERT INTO timetable_notifications (id, event_id, subject, reason, target, boundary, created_at)
VALUES (:id, :event_id, :subject, :reason, :target, :boundary, :created_at)`
)

// SaveSnapshot replaces the stored timetable of an event in one transaction
// and returns the new snapshot version. Notifications are appended.
func (r *TimetableRepository) SaveSnapshot(ctx context.Context, data *models.TimetableSnapshotData) (int, error) {
	if data == nil || data.Snapshot.EventID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "snapshot requires an event id")
	}
	eventID := data.Snapshot.EventID
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin timetable snapshot tx: %w", err)
	}
	rollback := func(err error) (int, error) {
		_ = tx.Rollback()
		return 0, err
	}

	var current int
	if err := tx.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM timetable_snapshots WHERE event_id = $1`, eventID); err != nil {
		return rollback(fmt.Errorf("read timetable version: %w", err))
	}

	snapshot := data.Snapshot
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	snapshot.Version = current + 1
	snapshot.CreatedAt = now
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO timetable_snapshots (id, event_id, version, created_at)
VALUES (:id, :event_id, :version, :created_at)`, snapshot); err != nil {
		return rollback(fmt.Errorf("insert timetable snapshot: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_entries WHERE event_id = $1`, eventID); err != nil {
		return rollback(fmt.Errorf("clear timetable entries: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM timetable_nodes WHERE event_id = $1`, eventID); err != nil {
		return rollback(fmt.Errorf("clear timetable nodes: %w", err))
	}

	for i := range data.Nodes {
		node := data.Nodes[i]
		node.EventID = eventID
		if _, err := tx.NamedExecContext(ctx, insertTimetableNodeQuery, node); err != nil {
			return rollback(fmt.Errorf("insert timetable node %s: %w", node.Handle, err))
		}
	}
	for i := range data.Entries {
		entry := data.Entries[i]
		entry.EventID = eventID
		if _, err := tx.NamedExecContext(ctx, insertTimetableEntryQuery, entry); err != nil {
			return rollback(fmt.Errorf("insert timetable entry %s/%s: %w", entry.Holder, entry.EntryID, err))
		}
	}
	for i := range data.Notifications {
		note := data.Notifications[i]
		note.EventID = eventID
		if note.ID == "" {
			note.ID = uuid.NewString()
		}
		if note.CreatedAt.IsZero() {
			note.CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertTimetableNotificationQuery, note); err != nil {
			return rollback(fmt.Errorf("insert timetable notification: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit timetable snapshot tx: %w", err)
	}
	return snapshot.Version, nil
}

// LoadSnapshot returns the latest stored timetable of an event.
func (r *TimetableRepository) LoadSnapshot(ctx context.Context, eventID string) (*models.TimetableSnapshotData, error) {
	var data models.TimetableSnapshotData
	const snapshotQuery = `SELECT id, event_id, version, created_at FROM timetable_snapshots
WHERE event_id = $1 ORDER BY version DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &data.Snapshot, snapshotQuery, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no timetable stored for event %s", eventID))
		}
		return nil, fmt.Errorf("get timetable snapshot: %w", err)
	}

	const nodesQuery = `SELECT event_id, handle, kind, title, description, conference_handle, session_handle, timezone,
start_at, duration_seconds, default_duration_seconds, closed, poster, status, position, entry_counter
FROM timetable_nodes WHERE event_id = $1 ORDER BY position ASC`
	if err := r.db.SelectContext(ctx, &data.Nodes, nodesQuery, eventID); err != nil {
		return nil, fmt.Errorf("list timetable nodes: %w", err)
	}

	const entriesQuery = `SELECT event_id, holder, entry_id, kind, target, title, description, start_at, duration_seconds, position
FROM timetable_entries WHERE event_id = $1 ORDER BY holder ASC, position ASC`
	if err := r.db.SelectContext(ctx, &data.Entries, entriesQuery, eventID); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return &data, nil
}

// ListNotifications returns the most recent boundary notifications of an event.
func (r *TimetableRepository) ListNotifications(ctx context.Context, eventID string, limit int) ([]models.TimetableNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, event_id, subject, reason, target, boundary, created_at
FROM timetable_notifications WHERE event_id = $1 ORDER BY created_at DESC LIMIT $2`
	var notes []models.TimetableNotification
	if err := r.db.SelectContext(ctx, &notes, query, eventID, limit); err != nil {
		return nil, fmt.Errorf("list timetable notifications: %w", err)
	}
	return notes, nil
}
