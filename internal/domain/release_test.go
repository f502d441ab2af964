package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayTitle(t *testing.T) {
	r := Release{
		Name:       "Some.Show.S01.1080p.WEB-DL",
		SmallDescr: "中文剧名 第一季 | 全12集 | 简繁字幕",
	}
	assert.Equal(t, "中文剧名 第一季", r.DisplayTitle())

	r.SmallDescr = "   "
	assert.Equal(t, "Some.Show.S01.1080p.WEB-DL", r.DisplayTitle())
}

func TestSizeParsing(t *testing.T) {
	r := Release{Size: "3221225472"}
	assert.InDelta(t, 3.0, r.SizeGB(), 1e-9)

	r.Size = "not-a-number"
	assert.Zero(t, r.SizeBytes())
	assert.Zero(t, r.SizeGB())
}

func TestFileCountAndTVShow(t *testing.T) {
	assert.Equal(t, 1, Release{NumFiles: ""}.FileCount())
	assert.Equal(t, 1, Release{NumFiles: "0"}.FileCount())
	assert.Equal(t, 12, Release{NumFiles: "12"}.FileCount())

	assert.False(t, Release{NumFiles: "1"}.IsTVShow())
	assert.True(t, Release{NumFiles: "2"}.IsTVShow())
}

func TestAverageFileSize(t *testing.T) {
	// 24 GiB across 12 files
	r := Release{Size: "25769803776", NumFiles: "12"}
	assert.InDelta(t, 2.0, r.AverageFileSizeGB(), 1e-9)
}

func TestHealthThresholds(t *testing.T) {
	cases := []struct {
		seeders string
		want    HealthStatus
	}{
		{"", HealthUnknown},
		{"abc", HealthUnknown},
		{"0", HealthPoor},
		{"1", HealthFair},
		{"4", HealthFair},
		{"5", HealthGood},
		{"9", HealthGood},
		{"10", HealthExcellent},
		{"250", HealthExcellent},
	}
	for _, tc := range cases {
		r := Release{Status: ReleaseStatus{Seeders: tc.seeders}}
		assert.Equal(t, tc.want, r.Health(), "seeders=%q", tc.seeders)
	}
}

func TestResolutionLabelsTakePriorityOverStandard(t *testing.T) {
	r := Release{
		Labels:   []string{"4K", "HDR"},
		Standard: "4", // would say 1080p
	}
	assert.Equal(t, Resolution4K, r.Resolution())
}

func TestResolutionFallsBackToStandard(t *testing.T) {
	r := Release{Labels: []string{"DIY", "中字"}, Standard: "6"}
	assert.Equal(t, Resolution4K, r.Resolution())

	r.Standard = "9"
	assert.Equal(t, ResolutionUnknown, r.Resolution())
}

func TestResolutionFromLabels(t *testing.T) {
	cases := []struct {
		labels []string
		want   Resolution
	}{
		{[]string{"2160p"}, Resolution4K},
		{[]string{"UHD BluRay"}, Resolution4K},
		{[]string{"1440p"}, Resolution2K},
		{[]string{"1080i"}, Resolution1080p},
		{[]string{"FHD"}, Resolution1080p},
		{[]string{"720p"}, Resolution720p},
		// plain hd counts as 720p, but uhd/fhd must not
		{[]string{"HD"}, Resolution720p},
		{[]string{"576p"}, ResolutionSD},
		{[]string{"DIY"}, ResolutionUnknown},
		{nil, ResolutionUnknown},
		// 4k beats 1080p regardless of label order
		{[]string{"1080p", "4k remux"}, Resolution4K},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolutionFromLabels(tc.labels), "labels=%v", tc.labels)
	}
}

func TestResolutionFromStandard(t *testing.T) {
	assert.Equal(t, Resolution4K, ResolutionFromStandard("6"))
	assert.Equal(t, Resolution2K, ResolutionFromStandard("5"))
	assert.Equal(t, Resolution1080p, ResolutionFromStandard("4"))
	assert.Equal(t, Resolution720p, ResolutionFromStandard("3"))
	assert.Equal(t, ResolutionSD, ResolutionFromStandard("2"))
	assert.Equal(t, ResolutionSD, ResolutionFromStandard("1"))
	assert.Equal(t, ResolutionUnknown, ResolutionFromStandard(""))
}

func TestDiscountUnknownCodesAreNone(t *testing.T) {
	assert.Equal(t, DiscountFree, Release{Status: ReleaseStatus{Discount: "FREE"}}.Discount())
	assert.Equal(t, DiscountNone, Release{Status: ReleaseStatus{Discount: "MYSTERY"}}.Discount())
	assert.Equal(t, DiscountNone, Release{}.Discount())
}
