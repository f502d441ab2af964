package repository

import (
	"context"

	"mteam-client/internal/domain"
)

// HistoryRepository keeps the bounded, deduplicated search history.
type HistoryRepository interface {
	Init(ctx context.Context) error
	// Add inserts or refreshes the (keyword, category) pair at the head and
	// truncates to the capacity.
	Add(ctx context.Context, keyword string, category domain.Category) error
	Remove(ctx context.Context, keyword string, category domain.Category) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]domain.SearchHistoryEntry, error)
}

// FavoriteRepository keeps the set of favorited release ids.
type FavoriteRepository interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, releaseID string) error
	Remove(ctx context.Context, releaseID string) error
	Contains(ctx context.Context, releaseID string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// EventRepository records which releases were sent to download, newest
// first, capped.
type EventRepository interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, releaseID string) error
	List(ctx context.Context) ([]string, error)
}
