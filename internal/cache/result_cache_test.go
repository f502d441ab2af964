package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mteam-client/internal/domain"
)

func testPage(ids ...string) *domain.ResultPage {
	releases := make([]domain.Release, len(ids))
	for i, id := range ids {
		releases[i] = domain.Release{ID: id, Name: "release-" + id}
	}
	return &domain.ResultPage{
		Releases:    releases,
		TotalCount:  len(releases),
		CurrentPage: 1,
		TotalPages:  1,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	q := domain.NewSearchQuery("foo", domain.CategoryAll, 1, 20)
	c.Put(q, testPage("1", "2"))

	got := c.Get(q)
	require.NotNil(t, got)
	assert.Len(t, got.Releases, 2)
	assert.Equal(t, "1", got.Releases[0].ID)
}

func TestGetMissReturnsNil(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	q := domain.NewSearchQuery("nothing", domain.CategoryAll, 1, 20)
	assert.Nil(t, c.Get(q))
}

func TestDiskTierSurvivesMemoryClear(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	q := domain.NewSearchQuery("foo", domain.CategoryMovie, 1, 20)
	c.Put(q, testPage("1"))

	// drop the memory tier only; the disk entry must still serve
	c.memory.clear()

	got := c.Get(q)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.Releases[0].ID)
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	clock := time.Now()
	c, err := New(t.TempDir(), nil,
		WithTTL(5*time.Minute),
		WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	q := domain.NewSearchQuery("foo", domain.CategoryAll, 1, 20)
	c.Put(q, testPage("1"))

	clock = clock.Add(6 * time.Minute)
	assert.Nil(t, c.Get(q))
}

func TestCorruptDiskEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	q := domain.NewSearchQuery("foo", domain.CategoryAll, 1, 20)
	c.Put(q, testPage("1"))
	c.memory.clear()

	path := c.filePath(q.CacheKey(), cacheFileSuffix)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	assert.Nil(t, c.Get(q))
	// the corrupt file is removed so the next load does not retry it
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestClearWipesBothTiers(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	q := domain.NewSearchQuery("foo", domain.CategoryAll, 1, 20)
	c.Put(q, testPage("1"))
	c.PutImage("http://example.com/poster.jpg", []byte("jpegdata"))

	c.Clear()

	assert.Nil(t, c.Get(q))
	assert.Nil(t, c.GetImage("http://example.com/poster.jpg"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweepDeletesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, WithTTL(5*time.Minute))
	require.NoError(t, err)

	q := domain.NewSearchQuery("old", domain.CategoryAll, 1, 20)
	c.Put(q, testPage("1"))

	// age the file past the TTL
	path := c.filePath(q.CacheKey(), cacheFileSuffix)
	stale := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(path, stale, stale))

	c.Sweep()

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweepWipesWhenOverQuota(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, WithQuota(16))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cache"), make([]byte, 32), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cache"), make([]byte, 32), 0o644))

	c.Sweep()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	data := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	c.PutImage("http://example.com/p.jpg", data)

	assert.Equal(t, data, c.GetImage("http://example.com/p.jpg"))

	// disk tier alone must serve after a memory wipe
	c.memory.clear()
	assert.Equal(t, data, c.GetImage("http://example.com/p.jpg"))
}
