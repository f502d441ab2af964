package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mteam-client/internal/repository"
)

const createFavoritesTable = `
CREATE TABLE IF NOT EXISTS favorites (
	release_id TEXT PRIMARY KEY,
	added_at DATETIME NOT NULL
);
`

type FavoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) repository.FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFavoritesTable); err != nil {
		return fmt.Errorf("create favorites table: %w", err)
	}
	return nil
}

func (r *FavoriteRepository) Add(ctx context.Context, releaseID string) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO favorites (release_id, added_at) VALUES (?, ?)
ON CONFLICT (release_id) DO NOTHING`,
		releaseID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, releaseID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE release_id = ?`, releaseID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepository) Contains(ctx context.Context, releaseID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM favorites WHERE release_id = ?`, releaseID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return true, nil
}

func (r *FavoriteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT release_id FROM favorites ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
