// Package ranking scores releases by a composite quality heuristic and
// produces the user-selectable sort orders.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"mteam-client/internal/domain"
)

// SortMode selects one of the five orderings.
type SortMode string

const (
	SortRecommended SortMode = "recommended"
	SortNewest      SortMode = "newest"
	SortSizeAsc     SortMode = "size_asc"
	SortSizeDesc    SortMode = "size_desc"
	SortSeeders     SortMode = "seeders"
)

// ParseSortMode maps a user-supplied mode name, defaulting to recommended.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortNewest, SortSizeAsc, SortSizeDesc, SortSeeders:
		return SortMode(s)
	default:
		return SortRecommended
	}
}

const (
	idealEpisodeGB = 2.5
	idealMovieGB   = 10.0

	oversizedEpisodeGB = 3.0
	oversizedMovieGB   = 20.0

	recommendedThreshold = 70.0
)

// Score computes the recommendation score in [0, 100]: size fitness (0-50),
// resolution (0-30) and health (0-20). Pure function of the release.
func Score(r domain.Release) float64 {
	return sizeScore(r) + resolutionScore(r.Resolution()) + healthScore(r)
}

// Recommended reports whether the release clears the recommendation bar.
func Recommended(r domain.Release) bool {
	return Score(r) >= recommendedThreshold
}

// Oversized warns about releases past the recommended size ceiling:
// per-episode for series packs, total for movies.
func Oversized(r domain.Release) bool {
	if r.IsTVShow() {
		return r.AverageFileSizeGB() > oversizedEpisodeGB
	}
	return r.SizeGB() > oversizedMovieGB
}

// OversizeWarning explains why a release tripped the size ceiling; empty
// when it did not.
func OversizeWarning(r domain.Release) string {
	if !Oversized(r) {
		return ""
	}
	if r.IsTVShow() {
		return fmt.Sprintf("averages %.1f GB per episode (over the %.0f GB guideline)",
			r.AverageFileSizeGB(), oversizedEpisodeGB)
	}
	return fmt.Sprintf("%.1f GB total (over the %.0f GB guideline)",
		r.SizeGB(), oversizedMovieGB)
}

// sizeScore decays with a gaussian as the release deviates from the ideal
// size. Deviation 0 scores 50, deviation 1 about 18.4, deviation 2 about 6.8.
func sizeScore(r domain.Release) float64 {
	var ideal, actual float64
	if r.IsTVShow() {
		ideal = idealEpisodeGB
		actual = r.AverageFileSizeGB()
	} else {
		ideal = idealMovieGB
		actual = r.SizeGB()
	}

	deviation := math.Abs(actual-ideal) / ideal
	return 50.0 * math.Exp(-deviation*deviation/0.5)
}

// resolutionScore favors 1080p; 4K is penalized because the files are
// usually far past the size sweet spot.
func resolutionScore(res domain.Resolution) float64 {
	switch res {
	case domain.Resolution1080p:
		return 30
	case domain.Resolution2K:
		return 24
	case domain.Resolution720p:
		return 18
	case domain.Resolution4K:
		return 10
	case domain.ResolutionSD:
		return 6
	default:
		return 0
	}
}

// healthScore grows with seeders, saturating at 10 seeders.
func healthScore(r domain.Release) float64 {
	seeders := r.Seeders()
	if seeders < 0 {
		return 0
	}
	return math.Min(float64(seeders)*2, 20)
}

// Sort orders releases in place by the given mode. All modes are stable:
// ties keep their input order.
func Sort(releases []domain.Release, mode SortMode) {
	switch mode {
	case SortNewest:
		sort.SliceStable(releases, func(i, j int) bool {
			return createdAt(releases[i]).After(createdAt(releases[j]))
		})
	case SortSizeAsc:
		sort.SliceStable(releases, func(i, j int) bool {
			return releases[i].SizeBytes() < releases[j].SizeBytes()
		})
	case SortSizeDesc:
		sort.SliceStable(releases, func(i, j int) bool {
			return releases[i].SizeBytes() > releases[j].SizeBytes()
		})
	case SortSeeders:
		sort.SliceStable(releases, func(i, j int) bool {
			return seedersOrZero(releases[i]) > seedersOrZero(releases[j])
		})
	default:
		sort.SliceStable(releases, func(i, j int) bool {
			return Score(releases[i]) > Score(releases[j])
		})
	}
}

// Sorted returns a sorted copy, leaving the input untouched.
func Sorted(releases []domain.Release, mode SortMode) []domain.Release {
	out := make([]domain.Release, len(releases))
	copy(out, releases)
	Sort(out, mode)
	return out
}

// createdAt parses the tracker timestamp; unparseable values sort as oldest.
func createdAt(r domain.Release) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, r.CreatedDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

func seedersOrZero(r domain.Release) int {
	if s := r.Seeders(); s > 0 {
		return s
	}
	return 0
}
