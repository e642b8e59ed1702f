package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
	"github.com/gateboard/gateboard/internal/mathutil"
	"github.com/gateboard/gateboard/internal/timeutil"
)

const (
	// topComponents trims the build-trend views to the busiest components.
	topComponents = 10
	// slowBuildSeconds marks a build as slow inside a cache-hit band.
	slowBuildSeconds = 900
)

// OverviewService assembles the dashboard aggregations. All rates round
// half-up to two decimals and every date-keyed series sorts ascending by the
// numeric value of its day key, so identical inputs always produce identical
// summaries.
type OverviewService struct {
	events    driven.EventStore
	builds    driven.BuildStore
	pipelines driven.PipelineStore
	params    driven.ParamStore
	logger    *slog.Logger
}

func NewOverviewService(events driven.EventStore, builds driven.BuildStore,
	pipelines driven.PipelineStore, params driven.ParamStore, logger *slog.Logger) *OverviewService {
	return &OverviewService{
		events:    events,
		builds:    builds,
		pipelines: pipelines,
		params:    params,
		logger:    logger,
	}
}

// DailySuccessRate computes the per-day build success rate over the window.
func (s *OverviewService) DailySuccessRate(ctx context.Context, project, branch, start, end string) ([]model.DatedRate, error) {
	records, err := s.builds.ListByWindow(ctx, project, branch, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing build records: %w", err)
	}

	type dayCount struct {
		total   int
		success int
	}
	days := make(map[string]*dayCount)
	for _, r := range records {
		d, ok := days[r.BuildDate]
		if !ok {
			d = &dayCount{}
			days[r.BuildDate] = d
		}
		d.total++
		if r.Success {
			d.success++
		}
	}

	out := make([]model.DatedRate, 0, len(days))
	for date, d := range days {
		out = append(out, model.DatedRate{
			Date: date,
			Rate: mathutil.Percent(float64(d.success), float64(d.total)),
		})
	}
	sortRatesByDay(out)
	return out, nil
}

// StabilityBreakdown computes pipeline success/failure rates over the window
// plus the share of each failure class among the failures.
func (s *OverviewService) StabilityBreakdown(ctx context.Context, project, branch, start, end string) (model.StabilitySummary, error) {
	records, err := s.pipelines.ListByWindow(ctx, project, branch, start, end)
	if err != nil {
		return model.StabilitySummary{}, fmt.Errorf("listing pipeline records: %w", err)
	}

	var sum model.StabilitySummary
	classes := make(map[model.FailureClass]int)
	for _, r := range records {
		if r.Success {
			sum.TotalSuccess++
			continue
		}
		sum.TotalFailed++
		classes[model.ClassifyFailure(r.FailType)]++
	}

	total := float64(sum.TotalSuccess + sum.TotalFailed)
	sum.SuccessRate = mathutil.Percent(float64(sum.TotalSuccess), total)
	sum.FailedRate = mathutil.Percent(float64(sum.TotalFailed), total)

	// Sub-rates are fractions of the failures, not of the whole window.
	failed := float64(sum.TotalFailed)
	sum.BusinessFailedRate = mathutil.Percent(float64(classes[model.BusinessFailure]), failed)
	sum.ToolFailedRate = mathutil.Percent(float64(classes[model.ToolFailure]), failed)
	sum.EnvironmentFailedRate = mathutil.Percent(float64(classes[model.EnvironmentFailure]), failed)
	return sum, nil
}

// BuildTrend computes both build-trend views: the per-day busiest components
// and the whole-window per-component totals, each trimmed to the top ten by
// task count. Sorting is stable with a first-seen tie-break so equal counts
// never reorder between runs.
func (s *OverviewService) BuildTrend(ctx context.Context, project, branch, start, end string) (model.BuildTrend, error) {
	records, err := s.pipelines.ListTrendRecords(ctx, project, branch, start, end)
	if err != nil {
		return model.BuildTrend{}, fmt.Errorf("listing trend records: %w", err)
	}

	return model.BuildTrend{
		Daily:      dailyTrend(records),
		Components: componentTrend(records),
	}, nil
}

func dailyTrend(records []model.TrendRecord) []model.DayTrend {
	byDay := make(map[string][]model.DayComponentCount)
	var dayOrder []string
	for _, r := range records {
		if _, ok := byDay[r.Date]; !ok {
			dayOrder = append(dayOrder, r.Date)
		}
		byDay[r.Date] = append(byDay[r.Date], model.DayComponentCount{
			Date:       r.Date,
			Component:  r.Component,
			BuildCount: r.AllTask,
		})
	}

	out := make([]model.DayTrend, 0, len(dayOrder))
	for _, date := range dayOrder {
		counts := byDay[date]
		sort.SliceStable(counts, func(i, j int) bool {
			return counts[i].BuildCount > counts[j].BuildCount
		})
		if len(counts) > topComponents {
			counts = counts[:topComponents]
		}
		out = append(out, model.DayTrend{Date: date, Components: counts})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return timeutil.KeyNumeric(out[i].Date) < timeutil.KeyNumeric(out[j].Date)
	})
	return out
}

func componentTrend(records []model.TrendRecord) []model.ComponentBuildSummary {
	type acc struct {
		allTask     int
		successTask int
		durationSum float64
		records     int
	}
	byComponent := make(map[string]*acc)
	var order []string
	for _, r := range records {
		a, ok := byComponent[r.Component]
		if !ok {
			a = &acc{}
			byComponent[r.Component] = a
			order = append(order, r.Component)
		}
		a.allTask += r.AllTask
		a.successTask += r.SuccessTask
		a.durationSum += r.AverageDuration
		a.records++
	}

	out := make([]model.ComponentBuildSummary, 0, len(order))
	for _, component := range order {
		a := byComponent[component]
		out = append(out, model.ComponentBuildSummary{
			Component:       component,
			AllTask:         a.allTask,
			SuccessTask:     a.successTask,
			SuccessRate: mathutil.Percent(float64(a.successTask), float64(a.allTask)),
			// Mean of the per-day averages, not weighted by task count.
			AverageDuration: mathutil.DivideHalfUp(a.durationSum, float64(mathutil.SafeSize(a.records)), 2),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AllTask > out[j].AllTask
	})
	if len(out) > topComponents {
		out = out[:topComponents]
	}

	topTotal := 0
	for _, c := range out {
		topTotal += c.AllTask
	}
	for i := range out {
		out[i].Share = mathutil.Percent(float64(out[i].AllTask), float64(topTotal))
	}
	return out
}

// ModuleBreakdown aggregates test-board module records in two explicit
// stages: first the global top-N items by record count, then the per-day
// duration sums restricted to exactly that item set. The selection is passed
// between the stages, never recomputed.
func (s *OverviewService) ModuleBreakdown(ctx context.Context, project, branch string,
	components []string, topItems int) (model.ModuleBreakdown, error) {
	if topItems <= 0 {
		topItems = topComponents
	}
	records, err := s.pipelines.ListTestModules(ctx, project, branch, components)
	if err != nil {
		return model.ModuleBreakdown{}, fmt.Errorf("listing test modules: %w", err)
	}

	items := topModuleItems(records, topItems)
	return model.ModuleBreakdown{
		Items: items,
		Daily: dailyModuleDurations(records, items),
	}, nil
}

func topModuleItems(records []model.TestModuleRecord, topItems int) []model.ModuleItemSummary {
	type acc struct {
		total    int
		passed   int
		duration float64
	}
	byItem := make(map[string]*acc)
	var order []string
	for _, r := range records {
		a, ok := byItem[r.Item]
		if !ok {
			a = &acc{}
			byItem[r.Item] = a
			order = append(order, r.Item)
		}
		a.total++
		if r.Result == "passed" {
			a.passed++
		}
		a.duration += r.Duration
	}

	out := make([]model.ModuleItemSummary, 0, len(order))
	for _, item := range order {
		a := byItem[item]
		out = append(out, model.ModuleItemSummary{
			Item:      item,
			PassRate:  mathutil.Percent(float64(a.passed), float64(a.total)),
			Duration:  mathutil.Round2(a.duration),
			TotalSize: a.total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSize > out[j].TotalSize
	})
	if len(out) > topItems {
		out = out[:topItems]
	}
	return out
}

func dailyModuleDurations(records []model.TestModuleRecord, items []model.ModuleItemSummary) []model.DayModuleDurations {
	selected := make(map[string]int, len(items))
	for i, item := range items {
		selected[item.Item] = i
	}

	byDay := make(map[string][]float64)
	for _, r := range records {
		idx, ok := selected[r.Item]
		if !ok {
			continue
		}
		sums, ok := byDay[r.BuildStartTime]
		if !ok {
			sums = make([]float64, len(items))
			byDay[r.BuildStartTime] = sums
		}
		sums[idx] += r.Duration
	}

	out := make([]model.DayModuleDurations, 0, len(byDay))
	for date, sums := range byDay {
		day := model.DayModuleDurations{Date: date, Durations: make([]model.ItemDuration, len(items))}
		for i, item := range items {
			day.Durations[i] = model.ItemDuration{Item: item.Item, Duration: mathutil.Round2(sums[i])}
		}
		out = append(out, day)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return timeutil.KeyNumeric(out[i].Date) < timeutil.KeyNumeric(out[j].Date)
	})
	return out
}

// EfficacyHistogram buckets event durations (minutes) into the four fixed
// bands as percentages of the input size. Three bands are counted directly
// and the 15-20 band is the remaining count, so the four counts partition
// the input and every rate stays within 0-100. Returns nil on an empty
// input: absence, not zeros.
func EfficacyHistogram(durations []float64) *model.EfficacyHistogram {
	if len(durations) == 0 {
		return nil
	}

	var under15, between20And30, above30 int
	for _, d := range durations {
		switch {
		case d < 15:
			under15++
		case d >= 20 && d <= 30:
			between20And30++
		case d > 30:
			above30++
		}
	}
	between15And20 := len(durations) - under15 - between20And30 - above30

	total := float64(len(durations))
	return &model.EfficacyHistogram{
		Under15:        mathutil.Percent(float64(under15), total),
		Between15And20: mathutil.Percent(float64(between15And20), total),
		Between20And30: mathutil.Percent(float64(between20And30), total),
		Above30:        mathutil.Percent(float64(above30), total),
	}
}

// CacheHitDistribution buckets build records by their ccache hit rate into
// four bands (0-85, 86-90, 91-95, 96-100) plus the totals band at index 0.
// Each band also counts builds that ran 900 seconds or longer. Records with
// an unparseable hit rate are skipped entirely.
func CacheHitDistribution(records []model.BuildRecord) model.CacheHitDistribution {
	var dist model.CacheHitDistribution
	for _, r := range records {
		rate := r.CacheHitRateNum
		if rate < 0 {
			// The -1 sentinel for an unparseable ccache summary would land
			// in the lowest band and read as a real sub-85 hit rate, so the
			// record stays out of the distribution entirely.
			continue
		}
		var band int
		switch {
		case rate <= 85:
			band = 1
		case rate <= 90:
			band = 2
		case rate <= 95:
			band = 3
		default:
			band = 4
		}
		dist[0].Total++
		dist[band].Total++
		if r.BuildDuration >= slowBuildSeconds {
			dist[0].SlowCount++
			dist[band].SlowCount++
		}
	}
	return dist
}

// StageTimeConsume averages each pipeline stage duration over the window,
// skipping the unparseable (-1) bounds per stage. The cache-hit average is
// restricted to records that reported a positive hit rate.
func StageTimeConsume(records []model.BuildRecord) model.StageTimeConsume {
	type stage struct {
		pick func(model.BuildRecord) int
		set  func(*model.StageTimeConsume, float64)
	}
	stages := []stage{
		{func(r model.BuildRecord) int { return r.EventDuration }, func(t *model.StageTimeConsume, v float64) { t.EventDuration = v }},
		{func(r model.BuildRecord) int { return r.BuildDuration }, func(t *model.StageTimeConsume, v float64) { t.BuildDuration = v }},
		{func(r model.BuildRecord) int { return r.TestDuration }, func(t *model.StageTimeConsume, v float64) { t.TestDuration = v }},
		{func(r model.BuildRecord) int { return r.InitDuration }, func(t *model.StageTimeConsume, v float64) { t.InitDuration = v }},
		{func(r model.BuildRecord) int { return r.DownloadDuration }, func(t *model.StageTimeConsume, v float64) { t.DownloadDuration = v }},
		{func(r model.BuildRecord) int { return r.FetchDuration }, func(t *model.StageTimeConsume, v float64) { t.FetchDuration = v }},
		{func(r model.BuildRecord) int { return r.GitLfsDuration }, func(t *model.StageTimeConsume, v float64) { t.GitLfsDuration = v }},
		{func(r model.BuildRecord) int { return r.PreCompileDuration }, func(t *model.StageTimeConsume, v float64) { t.PreCompileDuration = v }},
		{func(r model.BuildRecord) int { return r.MainCompileDuration }, func(t *model.StageTimeConsume, v float64) { t.MainCompileDuration = v }},
		{func(r model.BuildRecord) int { return r.AfterCompileDuration }, func(t *model.StageTimeConsume, v float64) { t.AfterCompileDuration = v }},
		{func(r model.BuildRecord) int { return r.ArchiveDuration }, func(t *model.StageTimeConsume, v float64) { t.ArchiveDuration = v }},
		{func(r model.BuildRecord) int { return r.UploadDuration }, func(t *model.StageTimeConsume, v float64) { t.UploadDuration = v }},
	}

	var out model.StageTimeConsume
	for _, st := range stages {
		var sum float64
		var count int
		for _, r := range records {
			if v := st.pick(r); v >= 0 {
				sum += float64(v)
				count++
			}
		}
		st.set(&out, mathutil.DivideHalfUp(sum, float64(mathutil.SafeSize(count)), 2))
	}

	var hitSum float64
	var hitCount int
	for _, r := range records {
		if r.CacheHitRateNum > 0 {
			hitSum += r.CacheHitRateNum
			hitCount++
		}
	}
	out.CacheHitRate = mathutil.DivideHalfUp(hitSum, float64(mathutil.SafeSize(hitCount)), 2)
	return out
}

// SummaryKind selects the view-specific sections of an overview summary.
type SummaryKind int

const (
	// SummaryGate is the merge-gate view: stability breakdown plus the
	// event-duration histogram. Unrecognized kinds resolve here.
	SummaryGate SummaryKind = iota + 1
	// SummaryDailyBuild is the build view: component trends, test modules,
	// cache-hit bands and stage time averages.
	SummaryDailyBuild
	// SummaryQuality is the static-analysis view. Its body comes from an
	// external analyzer feed, so only the common sections are filled here.
	SummaryQuality
)

// ComputeOverviewSummary assembles the dashboard summary for the
// project/branch window. The common sections (event trend, PR trend, daily
// success rate) are always filled; kind picks which view-specific sections
// are computed on top of them. Identical inputs always produce an identical
// summary value.
func (s *OverviewService) ComputeOverviewSummary(ctx context.Context, project, branch, start, end string,
	kind SummaryKind) (*model.OverviewSummary, error) {
	events, err := s.events.ListByWindow(ctx, project, branch, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	dailyRate, err := s.DailySuccessRate(ctx, project, branch, start, end)
	if err != nil {
		return nil, err
	}

	summary := &model.OverviewSummary{
		EventTrend:       eventTrend(events),
		PRTrend:          prTrend(events),
		DailySuccessRate: dailyRate,
	}

	switch kind {
	case SummaryDailyBuild:
		builds, err := s.builds.ListByWindow(ctx, project, branch, start, end)
		if err != nil {
			return nil, fmt.Errorf("listing build records: %w", err)
		}
		buildTrend, err := s.BuildTrend(ctx, project, branch, start, end)
		if err != nil {
			return nil, err
		}
		modules, err := s.ModuleBreakdown(ctx, project, branch, s.testBoardComponents(ctx), topComponents)
		if err != nil {
			return nil, err
		}
		summary.BuildTrend = buildTrend
		summary.Modules = modules
		summary.CacheHits = CacheHitDistribution(builds)
		summary.TimeConsume = StageTimeConsume(builds)
	case SummaryQuality:
	default:
		stability, err := s.StabilityBreakdown(ctx, project, branch, start, end)
		if err != nil {
			return nil, err
		}
		durations := make([]float64, 0, len(events))
		for _, ev := range events {
			if ev.Duration > 0 {
				durations = append(durations, ev.Duration)
			}
		}
		summary.Stability = stability
		summary.Efficacy = EfficacyHistogram(durations)
	}
	return summary, nil
}

// testBoardComponents flattens the per-category test-board component lists
// into one set, in category-key order so the result is deterministic. A
// missing or malformed parameter degrades to an empty list with a warning.
func (s *OverviewService) testBoardComponents(ctx context.Context) []string {
	params, err := s.params.GetCustomParameter(ctx, driven.ParamTestBoardComponents)
	if err != nil {
		s.logger.Warn("loading test-board components failed, using empty list", "error", err)
		return nil
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []string
	for _, key := range keys {
		switch components := params[key].(type) {
		case []string:
			out = append(out, components...)
		case []any:
			for _, c := range components {
				if name, ok := c.(string); ok {
					out = append(out, name)
				}
			}
		}
	}
	return out
}

func eventTrend(events []model.Event) []model.DatedCount {
	counts := make(map[string]int)
	for _, ev := range events {
		if day := timeutil.DayKey(ev.Timestamp); day != "" {
			counts[day]++
		}
	}
	return sortedCounts(counts)
}

func prTrend(events []model.Event) []model.DatedCount {
	counts := make(map[string]int)
	for _, ev := range events {
		day := timeutil.DayKey(ev.Timestamp)
		if day == "" {
			continue
		}
		counts[day] += len(ev.PRs)
	}
	return sortedCounts(counts)
}

func sortedCounts(counts map[string]int) []model.DatedCount {
	out := make([]model.DatedCount, 0, len(counts))
	for date, count := range counts {
		out = append(out, model.DatedCount{Date: date, Count: count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return timeutil.KeyNumeric(out[i].Date) < timeutil.KeyNumeric(out[j].Date)
	})
	return out
}

func sortRatesByDay(rates []model.DatedRate) {
	sort.SliceStable(rates, func(i, j int) bool {
		return timeutil.KeyNumeric(rates[i].Date) < timeutil.KeyNumeric(rates[j].Date)
	})
}
