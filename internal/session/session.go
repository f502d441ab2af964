// Package session orchestrates the search flow: cache lookups, tracker
// fetches, ranking and pagination, plus the recency-ordered search history.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"mteam-client/internal/cache"
	"mteam-client/internal/domain"
	"mteam-client/internal/ranking"
	"mteam-client/internal/repository"
	"mteam-client/internal/tracker"
)

// SearchClient is the slice of the tracker client the session needs.
type SearchClient interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.ResultPage, error)
}

// State is the published view of the session. Consumers receive copies.
type State struct {
	Keyword      string                `json:"keyword"`
	Category     domain.Category       `json:"category"`
	Sort         ranking.SortMode      `json:"sort"`
	Releases     []domain.Release      `json:"releases"`
	CurrentPage  int                   `json:"currentPage"`
	HasMore      bool                  `json:"hasMore"`
	TotalCount   int                   `json:"totalCount"`
	LoadingMore  bool                  `json:"loadingMore"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
}

// prefetchWindow triggers a load-more when one of the last N visible items
// appears.
const prefetchWindow = 3

const defaultPageSize = 20

// Session drives one search flow at a time. A new Search supersedes any
// in-flight one; the stale result is discarded, not surfaced as an error.
type Session struct {
	client  SearchClient
	cache   *cache.ResultCache
	history repository.HistoryRepository
	logger  *logrus.Logger

	pageSize int

	mu         sync.Mutex
	generation uint64
	state      State
}

func New(client SearchClient, resultCache *cache.ResultCache, history repository.HistoryRepository, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		client:   client,
		cache:    resultCache,
		history:  history,
		logger:   logger,
		pageSize: defaultPageSize,
		state:    State{Sort: ranking.SortRecommended, CurrentPage: 1},
	}
}

// Submit is the explicit user-initiated search: it records history (unlike
// debounce-triggered re-searches) and then runs the search.
func (s *Session) Submit(ctx context.Context, keyword string, category domain.Category) error {
	if strings.TrimSpace(keyword) != "" {
		if err := s.history.Add(ctx, keyword, category); err != nil {
			s.logger.Warnf("record search history: %v", err)
		}
	}
	return s.Search(ctx, keyword, category)
}

// Search replaces the current result set with page one for the keyword.
// A blank keyword clears the results.
func (s *Session) Search(ctx context.Context, keyword string, category domain.Category) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state.Keyword = keyword
	s.state.Category = category
	s.state.CurrentPage = 1
	s.state.ErrorMessage = ""
	// a superseded load-more never gets to clear this flag itself; the new
	// generation must, or pagination deadlocks on the guard in LoadMore
	s.state.LoadingMore = false
	sort := s.state.Sort
	s.mu.Unlock()

	if strings.TrimSpace(keyword) == "" {
		s.clearResults(gen)
		return nil
	}

	query := domain.NewSearchQuery(keyword, category, 1, s.pageSize)

	if page := s.cache.Get(query); page != nil {
		s.applyPage(gen, page, sort, false)
		return nil
	}

	page, err := s.client.Search(ctx, query)
	if err != nil {
		return s.applyError(gen, err)
	}
	s.cache.Put(query, page)
	s.applyPage(gen, page, sort, false)
	return nil
}

// LoadMore appends the next page. The page counter is advanced before the
// fetch and rolled back on failure so a retry reuses the same page number.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.state.LoadingMore || !s.state.HasMore || strings.TrimSpace(s.state.Keyword) == "" {
		s.mu.Unlock()
		return nil
	}
	s.state.LoadingMore = true
	s.state.CurrentPage++
	gen := s.generation
	query := domain.NewSearchQuery(s.state.Keyword, s.state.Category, s.state.CurrentPage, s.pageSize)
	sort := s.state.Sort
	s.mu.Unlock()

	page := s.cache.Get(query)
	if page == nil {
		var err error
		page, err = s.client.Search(ctx, query)
		if err != nil {
			s.mu.Lock()
			if gen == s.generation {
				s.state.CurrentPage--
				s.state.LoadingMore = false
			}
			s.mu.Unlock()
			return s.applyError(gen, err)
		}
		s.cache.Put(query, page)
	}

	s.applyPage(gen, page, sort, true)
	return nil
}

// ReleaseAppeared implements the prefetch-ahead policy: seeing one of the
// last few items in the current list triggers the next page.
func (s *Session) ReleaseAppeared(ctx context.Context, releaseID string) error {
	s.mu.Lock()
	index := -1
	for i, r := range s.state.Releases {
		if r.ID == releaseID {
			index = i
			break
		}
	}
	total := len(s.state.Releases)
	s.mu.Unlock()

	if index < 0 || index < total-prefetchWindow {
		return nil
	}
	return s.LoadMore(ctx)
}

// Refresh wipes the cache and re-runs the current search (pull-to-refresh).
func (s *Session) Refresh(ctx context.Context) error {
	s.cache.Clear()

	s.mu.Lock()
	keyword := s.state.Keyword
	category := s.state.Category
	s.mu.Unlock()

	return s.Search(ctx, keyword, category)
}

// SetSort re-orders the already-loaded results.
func (s *Session) SetSort(mode ranking.SortMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sort = mode
	s.state.Releases = ranking.Sorted(s.state.Releases, mode)
}

// Snapshot returns a copy of the published state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	out.Releases = make([]domain.Release, len(s.state.Releases))
	copy(out.Releases, s.state.Releases)
	return out
}

func (s *Session) applyPage(gen uint64, page *domain.ResultPage, sort ranking.SortMode, appendTo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// superseded by a newer search; drop silently
		return
	}

	if appendTo {
		s.state.Releases = ranking.Sorted(append(s.state.Releases, page.Releases...), sort)
		s.state.LoadingMore = false
	} else {
		s.state.Releases = ranking.Sorted(page.Releases, sort)
	}
	s.state.HasMore = page.HasMore()
	s.state.TotalCount = page.TotalCount
	s.state.ErrorMessage = ""
}

func (s *Session) applyError(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return nil
	}
	s.state.ErrorMessage = userMessage(err)
	return err
}

func (s *Session) clearResults(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.state.Releases = nil
	s.state.CurrentPage = 1
	s.state.HasMore = false
	s.state.TotalCount = 0
	s.state.ErrorMessage = ""
}

// userMessage maps the error taxonomy to a retryable user-facing message.
func userMessage(err error) string {
	switch tracker.KindOf(err) {
	case tracker.KindInvalidCredential:
		return "API key is invalid or expired"
	case tracker.KindNetwork:
		return "network error, please retry"
	case tracker.KindRemoteAPI:
		var terr *tracker.Error
		if errors.As(err, &terr) {
			return "tracker error: " + terr.Message
		}
		return "tracker error"
	case tracker.KindDecoding:
		return "unexpected response from tracker"
	default:
		return "search failed, please retry"
	}
}
