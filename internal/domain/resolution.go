package domain

import "strings"

// Resolution is the video resolution class of a release.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	ResolutionSD
	Resolution720p
	Resolution1080p
	Resolution2K
	Resolution4K
)

func (r Resolution) String() string {
	switch r {
	case ResolutionSD:
		return "SD"
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution2K:
		return "2K"
	case Resolution4K:
		return "4K"
	default:
		return "unknown"
	}
}

// ResolutionFromLabels matches release labels case-insensitively against
// ordered substring rules. Plain "hd" only counts when the label is not
// already claimed by uhd/fhd.
func ResolutionFromLabels(labels []string) Resolution {
	lower := make([]string, len(labels))
	for i, l := range labels {
		lower[i] = strings.ToLower(l)
	}

	contains := func(match func(string) bool) bool {
		for _, l := range lower {
			if match(l) {
				return true
			}
		}
		return false
	}

	if contains(func(l string) bool {
		return strings.Contains(l, "4k") || strings.Contains(l, "2160p") || strings.Contains(l, "uhd")
	}) {
		return Resolution4K
	}
	if contains(func(l string) bool {
		return strings.Contains(l, "2k") || strings.Contains(l, "1440p")
	}) {
		return Resolution2K
	}
	if contains(func(l string) bool {
		return strings.Contains(l, "1080p") || strings.Contains(l, "1080i") || strings.Contains(l, "fhd")
	}) {
		return Resolution1080p
	}
	if contains(func(l string) bool {
		if strings.Contains(l, "720p") || strings.Contains(l, "720i") {
			return true
		}
		return strings.Contains(l, "hd") && !strings.Contains(l, "uhd") && !strings.Contains(l, "fhd")
	}) {
		return Resolution720p
	}
	if contains(func(l string) bool {
		return strings.Contains(l, "sd") || strings.Contains(l, "480p") || strings.Contains(l, "576p")
	}) {
		return ResolutionSD
	}

	return ResolutionUnknown
}

// ResolutionFromStandard maps the tracker's numeric standard codes.
func ResolutionFromStandard(code string) Resolution {
	switch code {
	case "6":
		return Resolution4K
	case "5":
		return Resolution2K
	case "4":
		return Resolution1080p
	case "3":
		return Resolution720p
	case "2", "1":
		return ResolutionSD
	default:
		return ResolutionUnknown
	}
}
