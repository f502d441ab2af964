package domain

import (
	"strconv"
	"strings"
)

// Category narrows a search to a tracker browse mode.
type Category string

const (
	CategoryAll    Category = "normal"
	CategoryTVShow Category = "tvshow"
	CategoryMovie  Category = "movie"
)

// ParseCategory maps a user-supplied category name to a tracker mode,
// defaulting to CategoryAll for anything unrecognized.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tvshow", "tv":
		return CategoryTVShow
	case "movie":
		return CategoryMovie
	default:
		return CategoryAll
	}
}

// HealthStatus buckets a release by seeder count.
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
	HealthUnknown   HealthStatus = "unknown"
)

// DiscountKind mirrors the tracker's promotion codes.
type DiscountKind string

const (
	DiscountNone         DiscountKind = ""
	DiscountFree         DiscountKind = "FREE"
	DiscountPercent50    DiscountKind = "PERCENT_50"
	DiscountPercent30    DiscountKind = "PERCENT_30"
	DiscountPercent70    DiscountKind = "PERCENT_70"
	Discount2XFree       DiscountKind = "_2X_FREE"
	Discount2X           DiscountKind = "_2X"
	Discount2XPercent50  DiscountKind = "_2X_PERCENT_50"
)

// ReleaseStatus carries the live counters attached to a listing. The tracker
// serializes every number as a string, so the raw fields stay strings and the
// parsed views live on Release.
type ReleaseStatus struct {
	Seeders  string `json:"seeders"`
	Leechers string `json:"leechers"`
	Discount string `json:"discount"`
}

// Release is a single torrent listing returned by a search. Immutable once
// fetched; identity is the tracker-assigned ID.
type Release struct {
	ID           string        `json:"id"`
	CreatedDate  string        `json:"createdDate"`
	Name         string        `json:"name"`
	SmallDescr   string        `json:"smallDescr"`
	IMDBRating   string        `json:"imdbRating"`
	DoubanRating string        `json:"doubanRating"`
	Standard     string        `json:"standard"`
	NumFiles     string        `json:"numfiles"`
	Size         string        `json:"size"`
	Labels       []string      `json:"labelsNew"`
	ImageList    []string      `json:"imageList"`
	Status       ReleaseStatus `json:"status"`
}

// DisplayTitle prefers the first segment of the short description over the
// raw release name.
func (r Release) DisplayTitle() string {
	if d := strings.TrimSpace(r.SmallDescr); d != "" {
		first := strings.TrimSpace(strings.SplitN(d, " | ", 2)[0])
		if first != "" {
			return first
		}
	}
	return r.Name
}

// SizeBytes parses the size field, treating failures as 0.
func (r Release) SizeBytes() float64 {
	v, err := strconv.ParseFloat(r.Size, 64)
	if err != nil {
		return 0
	}
	return v
}

// SizeGB is the total size in gibibytes.
func (r Release) SizeGB() float64 {
	return r.SizeBytes() / 1024 / 1024 / 1024
}

// FileCount parses numfiles, defaulting to 1.
func (r Release) FileCount() int {
	n, err := strconv.Atoi(r.NumFiles)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// IsTVShow reports whether the release looks like a multi-episode pack.
// Multi-file releases on this tracker are almost always series.
func (r Release) IsTVShow() bool {
	return r.FileCount() > 1
}

// AverageFileSizeGB is the per-file size used when judging series packs.
func (r Release) AverageFileSizeGB() float64 {
	n := r.FileCount()
	if n <= 0 {
		return r.SizeGB()
	}
	return r.SizeGB() / float64(n)
}

// Seeders parses the seeder counter; -1 means absent or unparseable.
func (r Release) Seeders() int {
	s := strings.TrimSpace(r.Status.Seeders)
	if s == "" {
		return -1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// Health buckets the release by seeder count (thresholds 10/5/1).
func (r Release) Health() HealthStatus {
	seeders := r.Seeders()
	switch {
	case seeders < 0:
		return HealthUnknown
	case seeders >= 10:
		return HealthExcellent
	case seeders >= 5:
		return HealthGood
	case seeders >= 1:
		return HealthFair
	default:
		return HealthPoor
	}
}

// Discount returns the promotion kind, treating unknown codes as none.
func (r Release) Discount() DiscountKind {
	switch k := DiscountKind(r.Status.Discount); k {
	case DiscountFree, DiscountPercent50, DiscountPercent30, DiscountPercent70,
		Discount2XFree, Discount2X, Discount2XPercent50:
		return k
	default:
		return DiscountNone
	}
}

// Resolution extracts the video resolution, preferring labels over the
// tracker's standard code.
func (r Release) Resolution() Resolution {
	if res := ResolutionFromLabels(r.Labels); res != ResolutionUnknown {
		return res
	}
	return ResolutionFromStandard(r.Standard)
}
