// Package downloader owns the lifecycle of torrent-metadata file downloads:
// concurrent fetches with per-task progress, filename resolution, collision
// safe persistence and a restart-surviving download history.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mteam-client/internal/domain"
	"mteam-client/internal/repository"
	"mteam-client/internal/storage"
	"mteam-client/internal/tracker"
)

// Result is the terminal outcome of one download task. Exactly one of File
// and Err is set.
type Result struct {
	File *domain.DownloadedFile
	Err  error
}

// Request describes one download to enqueue. OnComplete, when set, fires
// exactly once with the terminal result.
type Request struct {
	SourceURL   string
	ReleaseName string
	ReleaseID   string
	OnComplete  func(Result)
}

// Manager coordinates metadata-file downloads and the persisted history.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(req Request) (string, error)
	Tasks() []domain.DownloadTask
	History(ctx context.Context) ([]domain.DownloadedFile, error)
	Delete(ctx context.Context, id string) error
}

type Config struct {
	DownloadDir   string
	MaxConcurrent int
	HTTPClient    *http.Client
	Logger        *logrus.Logger
	// Archive, when non-nil, receives a copy of every completed file.
	Archive       storage.Service
	ArchiveBucket string
}

type manager struct {
	cfg       Config
	downloads repository.DownloadRepository
	events    repository.EventRepository

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*domain.DownloadTask

	// pathMu serializes destination claims so concurrent downloads of the
	// same name cannot race to the same path
	pathMu sync.Mutex

	now func() time.Time
}

func NewManager(cfg Config, downloads repository.DownloadRepository, events repository.EventRepository) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:       cfg,
		downloads: downloads,
		events:    events,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		active:    make(map[string]*domain.DownloadTask),
		now:       time.Now,
	}
}

// Start prepares the downloads directory and heals the persisted history:
// records whose backing file has been removed out-of-band are dropped
// before anything can observe them.
func (m *manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create downloads dir: %w", err)
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.healHistory(m.ctx); err != nil {
		return fmt.Errorf("heal download history: %w", err)
	}

	m.cfg.Logger.Infof("download manager started, downloads dir: %s", m.cfg.DownloadDir)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("download manager stopped")
}

// Enqueue validates the URL, registers the task and begins the transfer in
// the background. There is no cancellation of a started download; it runs
// to completion or transport failure.
func (m *manager) Enqueue(req Request) (string, error) {
	parsed, err := url.ParseRequestURI(req.SourceURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", tracker.NewError(tracker.KindInvalidURL, "malformed download URL", err)
	}

	task := &domain.DownloadTask{
		ID:          uuid.NewString(),
		SourceURL:   req.SourceURL,
		ReleaseName: req.ReleaseName,
		ReleaseID:   req.ReleaseID,
		State:       domain.TaskStatePending,
		StartedAt:   m.now(),
	}
	m.register(task)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.unregister(task.ID)

		select {
		case <-m.ctx.Done():
			m.finish(req, Result{Err: m.ctx.Err()})
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		}

		file, err := m.fetch(task, req)
		if err != nil {
			m.setState(task.ID, domain.TaskStateFailed)
			m.cfg.Logger.WithField("task_id", task.ID).Errorf("download failed: %v", err)
			m.finish(req, Result{Err: err})
			return
		}
		m.setState(task.ID, domain.TaskStateCompleted)
		m.finish(req, Result{File: file})
	}()

	return task.ID, nil
}

// Tasks snapshots the in-flight table for the HTTP layer.
func (m *manager) Tasks() []domain.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]domain.DownloadTask, 0, len(m.active))
	for _, t := range m.active {
		tasks = append(tasks, *t)
	}
	return tasks
}

func (m *manager) History(ctx context.Context) ([]domain.DownloadedFile, error) {
	return m.downloads.List(ctx)
}

// Delete removes the backing file and then the record. A failed file
// removal (other than the file already being gone) keeps the record and
// surfaces the error so history never silently diverges from disk.
func (m *manager) Delete(ctx context.Context, id string) error {
	file, err := m.downloads.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(file.LocalPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove downloaded file: %w", err)
	}
	if err := m.downloads.Delete(ctx, id); err != nil {
		return err
	}
	m.cfg.Logger.Infof("deleted download %s (%s)", id, file.FileName)
	return nil
}

func (m *manager) fetch(task *domain.DownloadTask, req Request) (*domain.DownloadedFile, error) {
	logger := m.cfg.Logger.WithField("task_id", task.ID)
	m.setState(task.ID, domain.TaskStateInProgress)

	httpReq, err := http.NewRequestWithContext(m.ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return nil, tracker.NewError(tracker.KindInvalidURL, "build download request", err)
	}

	resp, err := m.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, tracker.NewError(tracker.KindNetwork, "download transport failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, tracker.NewError(tracker.KindNetwork, fmt.Sprintf("download returned HTTP %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp(m.cfg.DownloadDir, ".fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := m.copyWithProgress(task.ID, tmp, resp.Body, resp.ContentLength)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, tracker.NewError(tracker.KindNetwork, "write download", err)
	}

	finalPath, err := m.claimDestination(resp, req.ReleaseName)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(finalPath)
		return nil, fmt.Errorf("move download into place: %w", err)
	}

	file := &domain.DownloadedFile{
		ID:           uuid.NewString(),
		FileName:     filepath.Base(finalPath),
		LocalPath:    finalPath,
		DownloadedAt: m.now(),
		SourceURL:    req.SourceURL,
		ReleaseName:  req.ReleaseName,
		ReleaseID:    req.ReleaseID,
		SizeBytes:    written,
	}

	// metainfo parse is best effort; a malformed payload still counts as a
	// completed download
	if mi, err := metainfo.LoadFromFile(finalPath); err == nil {
		file.InfoHash = mi.HashInfoBytes().HexString()
	} else {
		logger.Debugf("metainfo parse: %v", err)
	}

	if err := m.downloads.Insert(m.ctx, file); err != nil {
		return nil, fmt.Errorf("persist download record: %w", err)
	}
	if req.ReleaseID != "" {
		if err := m.events.Record(m.ctx, req.ReleaseID); err != nil {
			logger.Warnf("record download event: %v", err)
		}
	}

	m.archive(file, logger)

	logger.Infof("download completed: %s (%d bytes)", file.FileName, written)
	return file, nil
}

// copyWithProgress streams the body to disk, publishing progress as the
// ratio of written bytes to the expected total. An unknown or zero expected
// size leaves progress at 0 rather than dividing by it.
func (m *manager) copyWithProgress(taskID string, dst io.Writer, src io.Reader, expected int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if expected > 0 {
				m.setProgress(taskID, float64(written)/float64(expected))
			}
		}
		if readErr == io.EOF {
			if expected > 0 {
				m.setProgress(taskID, 1)
			}
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// claimDestination reserves the final file path with an exclusive create,
// walking collision names until one is free. The zero-byte placeholder is
// replaced by the rename that follows, so a second download of the same
// name can never clobber the first even when both land in the same second.
func (m *manager) claimDestination(resp *http.Response, releaseName string) (string, error) {
	m.pathMu.Lock()
	defer m.pathMu.Unlock()

	name := sanitizeFileName(resolveFileName(resp, releaseName, m.now()))
	for attempt := 0; ; attempt++ {
		candidate := name
		if attempt > 0 {
			candidate = collisionName(name, m.now(), attempt)
		}
		dest := filepath.Join(m.cfg.DownloadDir, candidate)
		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			f.Close()
			return dest, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("claim destination: %w", err)
		}
	}
}

func (m *manager) archive(file *domain.DownloadedFile, logger *logrus.Entry) {
	if m.cfg.Archive == nil || m.cfg.ArchiveBucket == "" {
		return
	}
	dest, err := m.cfg.Archive.UploadFile(m.ctx, file.LocalPath, storage.UploadOptions{
		Bucket:    m.cfg.ArchiveBucket,
		KeyPrefix: "torrents",
	})
	if err != nil {
		logger.Warnf("archive upload: %v", err)
		return
	}
	logger.Infof("archived to %s", dest)
}

// healHistory drops records whose backing file no longer exists. Runs once
// at startup before the history is exposed to consumers.
func (m *manager) healHistory(ctx context.Context) error {
	files, err := m.downloads.List(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := os.Stat(f.LocalPath); os.IsNotExist(err) {
			m.cfg.Logger.Infof("pruning stale download record %s (%s)", f.ID, f.FileName)
			if err := m.downloads.Delete(ctx, f.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *manager) finish(req Request, res Result) {
	if req.OnComplete != nil {
		req.OnComplete(res)
	}
}

func (m *manager) register(task *domain.DownloadTask) {
	m.mu.Lock()
	m.active[task.ID] = task
	m.mu.Unlock()
}

func (m *manager) unregister(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *manager) setState(id string, state domain.TaskState) {
	m.mu.Lock()
	if task, ok := m.active[id]; ok {
		task.State = state
	}
	m.mu.Unlock()
}

func (m *manager) setProgress(id string, progress float64) {
	m.mu.Lock()
	if task, ok := m.active[id]; ok {
		task.Progress = progress
	}
	m.mu.Unlock()
}

var _ Manager = (*manager)(nil)
