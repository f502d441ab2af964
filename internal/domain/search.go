package domain

import (
	"fmt"
	"time"
)

// SearchQuery identifies one page of one keyword search. Immutable value;
// the four fields fully determine the cache slot.
type SearchQuery struct {
	Keyword    string
	Category   Category
	PageNumber int
	PageSize   int
}

// NewSearchQuery builds a query with page bounds clamped to what the tracker
// accepts (page >= 1, size 1..100).
func NewSearchQuery(keyword string, category Category, pageNumber, pageSize int) SearchQuery {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return SearchQuery{
		Keyword:    keyword,
		Category:   category,
		PageNumber: pageNumber,
		PageSize:   pageSize,
	}
}

// CacheKey derives the deterministic cache slot for this query.
func (q SearchQuery) CacheKey() string {
	return fmt.Sprintf("%s_%s_%d_%d", q.Keyword, q.Category, q.PageNumber, q.PageSize)
}

// ResultPage is one page of search results plus pagination metadata.
type ResultPage struct {
	Releases    []Release `json:"releases"`
	TotalCount  int       `json:"totalCount"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
}

// HasMore reports whether a further page exists.
func (p ResultPage) HasMore() bool {
	return p.CurrentPage < p.TotalPages
}

// SearchHistoryEntry records one submitted search. Equality for dedup is
// (Keyword, Category); SearchedAt only refreshes recency.
type SearchHistoryEntry struct {
	Keyword    string    `json:"keyword"`
	Category   Category  `json:"category"`
	SearchedAt time.Time `json:"searchedAt"`
}
