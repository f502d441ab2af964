package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mteam-client/internal/domain"
	"mteam-client/internal/repository"
)

const createSearchHistoryTable = `
CREATE TABLE IF NOT EXISTS search_history (
	keyword TEXT NOT NULL,
	category TEXT NOT NULL,
	searched_at DATETIME NOT NULL,
	PRIMARY KEY (keyword, category)
);
`

// historyCapacity bounds the list to the most recent distinct searches.
const historyCapacity = 20

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSearchHistoryTable); err != nil {
		return fmt.Errorf("create search history table: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Add(ctx context.Context, keyword string, category domain.Category) error {
	// trim at the write point so "foo " and "foo" dedupe to one entry
	keyword = strings.TrimSpace(keyword)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	// upsert refreshes recency instead of duplicating the pair
	if _, err := tx.ExecContext(ctx, `
INSERT INTO search_history (keyword, category, searched_at)
VALUES (?, ?, ?)
ON CONFLICT (keyword, category) DO UPDATE SET searched_at = excluded.searched_at`,
		keyword, string(category), now,
	); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM search_history
WHERE rowid NOT IN (
	SELECT rowid FROM search_history ORDER BY searched_at DESC LIMIT ?
)`, historyCapacity); err != nil {
		return fmt.Errorf("truncate history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history add: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Remove(ctx context.Context, keyword string, category domain.Category) error {
	if _, err := r.db.ExecContext(ctx, `
DELETE FROM search_history WHERE keyword = ? AND category = ?`,
		strings.TrimSpace(keyword), string(category),
	); err != nil {
		return fmt.Errorf("remove history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM search_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context) ([]domain.SearchHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT keyword, category, searched_at
FROM search_history
ORDER BY searched_at DESC
LIMIT ?`, historyCapacity)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.SearchHistoryEntry
	for rows.Next() {
		var (
			entry      domain.SearchHistoryEntry
			category   string
			searchedAt string
		)
		if err := rows.Scan(&entry.Keyword, &category, &searchedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.Category = domain.Category(category)
		if t, err := time.Parse(time.RFC3339Nano, searchedAt); err == nil {
			entry.SearchedAt = t.Local()
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
