package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mteam-client/internal/repository"
)

const createDownloadEventsTable = `
CREATE TABLE IF NOT EXISTS download_events (
	release_id TEXT PRIMARY KEY,
	recorded_at DATETIME NOT NULL
);
`

// eventCapacity caps the per-release download-event history.
const eventCapacity = 100

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createDownloadEventsTable); err != nil {
		return fmt.Errorf("create download events table: %w", err)
	}
	return nil
}

func (r *EventRepository) Record(ctx context.Context, releaseID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer tx.Rollback()

	// re-downloading moves the release to the head rather than duplicating it
	if _, err := tx.ExecContext(ctx, `
INSERT INTO download_events (release_id, recorded_at) VALUES (?, ?)
ON CONFLICT (release_id) DO UPDATE SET recorded_at = excluded.recorded_at`,
		releaseID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("record download event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM download_events
WHERE rowid NOT IN (
	SELECT rowid FROM download_events ORDER BY recorded_at DESC LIMIT ?
)`, eventCapacity); err != nil {
		return fmt.Errorf("truncate download events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit download event: %w", err)
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT release_id FROM download_events ORDER BY recorded_at DESC LIMIT ?`, eventCapacity)
	if err != nil {
		return nil, fmt.Errorf("query download events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan download event: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
