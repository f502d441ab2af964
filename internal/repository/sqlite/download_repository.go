package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mteam-client/internal/domain"
	"mteam-client/internal/repository"
)

const createDownloadsTable = `
CREATE TABLE IF NOT EXISTS downloads (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	local_path TEXT NOT NULL,
	downloaded_at DATETIME NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	release_name TEXT NOT NULL DEFAULT '',
	release_id TEXT NOT NULL DEFAULT '',
	info_hash TEXT NOT NULL DEFAULT '',
	size_bytes INTEGER NOT NULL DEFAULT 0
);
`

// ErrDownloadNotFound is returned when a record id does not exist.
var ErrDownloadNotFound = errors.New("download record not found")

type DownloadRepository struct {
	db *sql.DB
}

func NewDownloadRepository(db *sql.DB) repository.DownloadRepository {
	return &DownloadRepository{db: db}
}

func (r *DownloadRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createDownloadsTable); err != nil {
		return fmt.Errorf("create downloads table: %w", err)
	}
	return nil
}

func (r *DownloadRepository) Insert(ctx context.Context, file *domain.DownloadedFile) error {
	if file.DownloadedAt.IsZero() {
		file.DownloadedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO downloads (id, file_name, local_path, downloaded_at, source_url, release_name, release_id, info_hash, size_bytes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.FileName,
		file.LocalPath,
		file.DownloadedAt.UTC().Format(time.RFC3339),
		file.SourceURL,
		file.ReleaseName,
		file.ReleaseID,
		file.InfoHash,
		file.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("insert download record: %w", err)
	}
	return nil
}

func (r *DownloadRepository) List(ctx context.Context) ([]domain.DownloadedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, file_name, local_path, downloaded_at, source_url, release_name, release_id, info_hash, size_bytes
FROM downloads
ORDER BY downloaded_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var files []domain.DownloadedFile
	for rows.Next() {
		file, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

func (r *DownloadRepository) Get(ctx context.Context, id string) (*domain.DownloadedFile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, file_name, local_path, downloaded_at, source_url, release_name, release_id, info_hash, size_bytes
FROM downloads
WHERE id = ?`, id)

	file, err := scanDownload(row)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (r *DownloadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete download record: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("download delete rows affected: %w", err)
	}
	if aff == 0 {
		return ErrDownloadNotFound
	}
	return nil
}

func scanDownload(scanner interface {
	Scan(dest ...any) error
}) (*domain.DownloadedFile, error) {
	var (
		file         domain.DownloadedFile
		downloadedAt string
	)
	if err := scanner.Scan(
		&file.ID,
		&file.FileName,
		&file.LocalPath,
		&downloadedAt,
		&file.SourceURL,
		&file.ReleaseName,
		&file.ReleaseID,
		&file.InfoHash,
		&file.SizeBytes,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDownloadNotFound
		}
		return nil, fmt.Errorf("scan download record: %w", err)
	}

	t, err := time.Parse(time.RFC3339, downloadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse download timestamp: %w", err)
	}
	file.DownloadedAt = t.Local()
	return &file, nil
}
