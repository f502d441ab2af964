package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mteam-client/internal/domain"
	"mteam-client/internal/tracker"
)

type memDownloadRepo struct {
	mu    sync.Mutex
	files []domain.DownloadedFile
}

func (r *memDownloadRepo) Init(ctx context.Context) error { return nil }

func (r *memDownloadRepo) Insert(ctx context.Context, file *domain.DownloadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, *file)
	return nil
}

func (r *memDownloadRepo) List(ctx context.Context) ([]domain.DownloadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DownloadedFile, len(r.files))
	copy(out, r.files)
	return out, nil
}

func (r *memDownloadRepo) Get(ctx context.Context, id string) (*domain.DownloadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.ID == id {
			found := f
			return &found, nil
		}
	}
	return nil, os.ErrNotExist
}

func (r *memDownloadRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.files {
		if f.ID == id {
			r.files = append(r.files[:i], r.files[i+1:]...)
			return nil
		}
	}
	return nil
}

type memEventRepo struct {
	mu  sync.Mutex
	ids []string
}

func (r *memEventRepo) Init(ctx context.Context) error { return nil }

func (r *memEventRepo) Record(ctx context.Context, releaseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, releaseID)
	return nil
}

func (r *memEventRepo) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out, nil
}

func newTestManager(t *testing.T, dir string) (Manager, *memDownloadRepo, *memEventRepo) {
	t.Helper()
	downloads := &memDownloadRepo{}
	events := &memEventRepo{}
	m := NewManager(Config{
		DownloadDir:   dir,
		MaxConcurrent: 2,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}, downloads, events)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Shutdown)
	return m, downloads, events
}

func enqueueAndWait(t *testing.T, m Manager, req Request) Result {
	t.Helper()
	done := make(chan Result, 1)
	req.OnComplete = func(res Result) { done <- res }

	_, err := m.Enqueue(req)
	require.NoError(t, err)

	select {
	case res := <-done:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("download did not finish in time")
		return Result{}
	}
}

func TestDownloadCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="release.torrent"`)
		w.Write([]byte("d8:announce0:e"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m, downloads, events := newTestManager(t, dir)

	res := enqueueAndWait(t, m, Request{
		SourceURL:   srv.URL,
		ReleaseName: "release",
		ReleaseID:   "42",
	})
	require.NoError(t, res.Err)
	require.NotNil(t, res.File)

	assert.Equal(t, "release.torrent", res.File.FileName)
	assert.Equal(t, filepath.Join(dir, "release.torrent"), res.File.LocalPath)
	assert.FileExists(t, res.File.LocalPath)
	assert.Equal(t, int64(14), res.File.SizeBytes)

	persisted, err := downloads.List(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	recorded, err := events.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, recorded)
}

func TestDownloadCollisionKeepsBothFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="same.torrent"`)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m, _, _ := newTestManager(t, dir)

	first := enqueueAndWait(t, m, Request{SourceURL: srv.URL})
	require.NoError(t, first.Err)

	second := enqueueAndWait(t, m, Request{SourceURL: srv.URL})
	require.NoError(t, second.Err)

	assert.FileExists(t, first.File.LocalPath)
	assert.FileExists(t, second.File.LocalPath)
	assert.NotEqual(t, first.File.LocalPath, second.File.LocalPath)
	assert.Contains(t, second.File.FileName, "same_")
}

func TestSameSecondCollisionsKeepEveryFile(t *testing.T) {
	payloads := []string{"d8:announce1:ae", "d8:announce1:be", "d8:announce1:ce"}
	var served atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="same.torrent"`)
		w.Write([]byte(payloads[served.Add(1)-1]))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m, _, _ := newTestManager(t, dir)

	// freeze the clock so every collision lands in the same second
	fixed := time.Unix(1700000000, 0)
	m.(*manager).now = func() time.Time { return fixed }

	var paths []string
	for range payloads {
		res := enqueueAndWait(t, m, Request{SourceURL: srv.URL, ReleaseName: "same"})
		require.NoError(t, res.Err)
		paths = append(paths, res.File.LocalPath)
	}

	assert.Equal(t, filepath.Join(dir, "same.torrent"), paths[0])
	assert.Equal(t, filepath.Join(dir, "same_1700000000.torrent"), paths[1])
	assert.Equal(t, filepath.Join(dir, "same_1700000000-1.torrent"), paths[2])

	var contents []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		contents = append(contents, string(data))
	}
	assert.ElementsMatch(t, payloads, contents)
}

func TestEnqueueRejectsMalformedURL(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())

	for _, bad := range []string{"", "not a url", "ftp://example.com/x", "http://"} {
		_, err := m.Enqueue(Request{SourceURL: bad})
		assert.Equal(t, tracker.KindInvalidURL, tracker.KindOf(err), "url=%q", bad)
	}
}

func TestDownloadFailureIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, downloads, _ := newTestManager(t, t.TempDir())

	res := enqueueAndWait(t, m, Request{SourceURL: srv.URL})
	require.Error(t, res.Err)
	assert.Equal(t, tracker.KindNetwork, tracker.KindOf(res.Err))

	// nothing is persisted for a failed transfer
	persisted, err := downloads.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestStartHealsMissingFiles(t *testing.T) {
	dir := t.TempDir()

	kept := filepath.Join(dir, "kept.torrent")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))

	downloads := &memDownloadRepo{files: []domain.DownloadedFile{
		{ID: "kept", FileName: "kept.torrent", LocalPath: kept},
		{ID: "gone", FileName: "gone.torrent", LocalPath: filepath.Join(dir, "gone.torrent")},
	}}

	m := NewManager(Config{DownloadDir: dir}, downloads, &memEventRepo{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Shutdown()

	files, err := m.History(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "kept", files[0].ID)
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "del.torrent")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	downloads := &memDownloadRepo{files: []domain.DownloadedFile{
		{ID: "del", FileName: "del.torrent", LocalPath: path},
	}}
	m := NewManager(Config{DownloadDir: dir}, downloads, &memEventRepo{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Shutdown()

	require.NoError(t, m.Delete(context.Background(), "del"))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	files, err := m.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDeleteToleratesAlreadyRemovedFile(t *testing.T) {
	dir := t.TempDir()
	downloads := &memDownloadRepo{files: []domain.DownloadedFile{
		{ID: "del", FileName: "del.torrent", LocalPath: filepath.Join(dir, "already-gone.torrent")},
	}}
	m := NewManager(Config{DownloadDir: dir}, downloads, &memEventRepo{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Shutdown()

	// Start already healed the record away; re-seed to exercise Delete itself
	downloads.mu.Lock()
	downloads.files = []domain.DownloadedFile{
		{ID: "del", FileName: "del.torrent", LocalPath: filepath.Join(dir, "already-gone.torrent")},
	}
	downloads.mu.Unlock()

	require.NoError(t, m.Delete(context.Background(), "del"))

	files, err := m.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}
