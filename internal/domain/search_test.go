package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSearchQueryClamps(t *testing.T) {
	q := NewSearchQuery("foo", CategoryMovie, 0, 0)
	assert.Equal(t, 1, q.PageNumber)
	assert.Equal(t, 20, q.PageSize)

	q = NewSearchQuery("foo", CategoryMovie, -3, 500)
	assert.Equal(t, 1, q.PageNumber)
	assert.Equal(t, 100, q.PageSize)
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := NewSearchQuery("进击的巨人", CategoryTVShow, 2, 20)
	b := NewSearchQuery("进击的巨人", CategoryTVShow, 2, 20)
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.Equal(t, "进击的巨人_tvshow_2_20", a.CacheKey())

	c := NewSearchQuery("进击的巨人", CategoryTVShow, 3, 20)
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryTVShow, ParseCategory("tvshow"))
	assert.Equal(t, CategoryMovie, ParseCategory("movie"))
	assert.Equal(t, CategoryAll, ParseCategory("normal"))
	assert.Equal(t, CategoryAll, ParseCategory("whatever"))
}

func TestResultPageHasMore(t *testing.T) {
	p := ResultPage{CurrentPage: 1, TotalPages: 3}
	assert.True(t, p.HasMore())

	p.CurrentPage = 3
	assert.False(t, p.HasMore())
}
