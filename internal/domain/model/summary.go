package model

// Typed dashboard summary structures. The aggregation engine assembles these
// instead of loosely-typed maps so the response shape is stable and
// reproducible run to run.

// DatedCount is one point of a count-per-day series.
type DatedCount struct {
	Date  string
	Count int
}

// DatedRate is one point of a rate-per-day series.
type DatedRate struct {
	Date string
	Rate float64
}

// StabilitySummary reports pipeline success/failure rates over a window plus
// the failure-class sub-rates as a fraction of total failures.
type StabilitySummary struct {
	TotalSuccess int
	TotalFailed  int

	SuccessRate float64
	FailedRate  float64

	BusinessFailedRate    float64
	ToolFailedRate        float64
	EnvironmentFailedRate float64
}

// DayComponentCount is one component's task volume on one day.
type DayComponentCount struct {
	Date       string
	Component  string
	BuildCount int
}

// DayTrend is the per-day top-N component slice of the build trend.
type DayTrend struct {
	Date       string
	Components []DayComponentCount
}

// ComponentBuildSummary aggregates one component across the whole window.
// Share is the component's fraction of the top-N total task volume.
type ComponentBuildSummary struct {
	Component       string
	AllTask         int
	SuccessTask     int
	SuccessRate     float64
	AverageDuration float64
	Share           float64
}

// BuildTrend combines the per-day top-N view with the whole-window
// per-component top-N view.
type BuildTrend struct {
	Daily      []DayTrend
	Components []ComponentBuildSummary
}

// ModuleItemSummary is one test module item aggregated over the window.
type ModuleItemSummary struct {
	Item      string
	PassRate  float64
	Duration  float64
	TotalSize int
}

// ItemDuration is one item's summed duration within a single day.
type ItemDuration struct {
	Item     string
	Duration float64
}

// DayModuleDurations holds the per-day duration sums of the globally
// selected top-N items.
type DayModuleDurations struct {
	Date      string
	Durations []ItemDuration
}

// ModuleBreakdown is the two-stage module/item aggregation: the global
// top-N item summaries and the per-day duration sums restricted to exactly
// those items.
type ModuleBreakdown struct {
	Items []ModuleItemSummary
	Daily []DayModuleDurations
}

// EfficacyHistogram buckets event durations (minutes) into four fixed bands
// expressed as percentages of the total. A nil histogram means the input set
// was empty: the bucket values are absent, not zero.
type EfficacyHistogram struct {
	Under15        float64
	Between15And20 float64
	Between20And30 float64
	Above30        float64
}

// CacheBand is one cache-hit-rate band: how many builds landed in it and how
// many of those additionally ran 900 seconds or longer.
type CacheBand struct {
	Total     int
	SlowCount int
}

// CacheHitDistribution indexes bands 1-4 (0-85, 86-90, 91-95, 96-100) plus
// the totals band at index 0. All five entries are always present.
type CacheHitDistribution [5]CacheBand

// StageTimeConsume is the window-average of each pipeline stage duration,
// plus the cache-hit average over builds that reported a positive hit rate.
type StageTimeConsume struct {
	EventDuration        float64
	BuildDuration        float64
	TestDuration         float64
	InitDuration         float64
	DownloadDuration     float64
	FetchDuration        float64
	GitLfsDuration       float64
	PreCompileDuration   float64
	MainCompileDuration  float64
	AfterCompileDuration float64
	ArchiveDuration      float64
	UploadDuration       float64
	CacheHitRate         float64
}

// OverviewSummary is the nested structure the dashboard renders. Slices are
// sorted ascending by the numeric day key; pointer fields are nil when the
// underlying input set was empty and the operation defines absence rather
// than zeros. Sections belonging to views the caller did not select stay at
// their zero values.
type OverviewSummary struct {
	EventTrend       []DatedCount
	PRTrend          []DatedCount
	DailySuccessRate []DatedRate
	Stability        StabilitySummary
	BuildTrend       BuildTrend
	Modules          ModuleBreakdown
	Efficacy         *EfficacyHistogram
	CacheHits        CacheHitDistribution
	TimeConsume      StageTimeConsume
}
