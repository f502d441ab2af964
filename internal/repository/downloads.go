package repository

import (
	"context"

	"mteam-client/internal/domain"
)

// DownloadRepository persists completed-download records. Listing order is
// most-recent-first.
type DownloadRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, file *domain.DownloadedFile) error
	List(ctx context.Context) ([]domain.DownloadedFile, error)
	Get(ctx context.Context, id string) (*domain.DownloadedFile, error)
	Delete(ctx context.Context, id string) error
}
