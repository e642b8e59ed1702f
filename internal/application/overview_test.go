package application

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

type fakeBuildStore struct {
	records []model.BuildRecord
}

func (f *fakeBuildStore) ExistsByUUIDAndComponent(_ context.Context, uuid, component string) (bool, error) {
	for _, r := range f.records {
		if r.UUID == uuid && r.Component == component {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBuildStore) Insert(_ context.Context, record model.BuildRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeBuildStore) ListByWindow(_ context.Context, project, branch, start, end string) ([]model.BuildRecord, error) {
	return f.records, nil
}

func (f *fakeBuildStore) ListByComponents(_ context.Context, project, branch, start, end string, components []string) ([]model.BuildRecord, error) {
	return f.records, nil
}

type fakePipelineStore struct {
	pipelines []model.PipelineRecord
	modules   []model.TestModuleRecord
	trends    []model.TrendRecord
	runs      []*model.PipelineRun
}

func (f *fakePipelineStore) ListByTimeRange(_ context.Context, start, end string) ([]model.PipelineRecord, error) {
	return f.pipelines, nil
}

func (f *fakePipelineStore) ListByWindow(_ context.Context, project, branch, start, end string) ([]model.PipelineRecord, error) {
	return f.pipelines, nil
}

func (f *fakePipelineStore) ListTestModules(_ context.Context, project, branch string, components []string) ([]model.TestModuleRecord, error) {
	return f.modules, nil
}

func (f *fakePipelineStore) ListTrendRecords(_ context.Context, project, branch, start, end string) ([]model.TrendRecord, error) {
	return f.trends, nil
}

func (f *fakePipelineStore) GetRunDetail(_ context.Context, uuid, component string) (*model.PipelineRun, error) {
	for _, run := range f.runs {
		if run.UUID == uuid && run.Component == component {
			return run, nil
		}
	}
	return nil, nil
}

func newTestOverviewService(events *fakeEventStore, builds *fakeBuildStore, pipelines *fakePipelineStore) *OverviewService {
	if events == nil {
		events = &fakeEventStore{events: map[string]*model.Event{}}
	}
	if builds == nil {
		builds = &fakeBuildStore{}
	}
	if pipelines == nil {
		pipelines = &fakePipelineStore{}
	}
	params := &fakeParamStore{params: map[string]map[string]any{
		driven.ParamTestBoardComponents: {"components": []string{"widget"}},
	}}
	return NewOverviewService(events, builds, pipelines, params, slog.New(slog.DiscardHandler))
}

func buildRecord(date string, success bool) model.BuildRecord {
	return model.BuildRecord{
		Project:   "widget",
		Branch:    "main",
		Component: "core",
		BuildDate: date,
		Success:   success,
	}
}

func TestDailySuccessRate(t *testing.T) {
	builds := &fakeBuildStore{}
	for i := 0; i < 10; i++ {
		builds.records = append(builds.records, buildRecord("20240102", i < 7))
	}
	builds.records = append(builds.records, buildRecord("20240101", true))
	svc := newTestOverviewService(nil, builds, nil)

	got, err := svc.DailySuccessRate(context.Background(), "widget", "main", "20240101", "20240103")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.DatedRate{Date: "20240101", Rate: 100}, got[0])
	assert.Equal(t, model.DatedRate{Date: "20240102", Rate: 70}, got[1])
}

func TestDailySuccessRateSortsMixedDayKeys(t *testing.T) {
	builds := &fakeBuildStore{records: []model.BuildRecord{
		buildRecord("2024-01-03", true),
		buildRecord("20240101", true),
		buildRecord("2024-01-02", true),
	}}
	svc := newTestOverviewService(nil, builds, nil)

	got, err := svc.DailySuccessRate(context.Background(), "widget", "main", "20240101", "20240104")

	require.NoError(t, err)
	require.Len(t, got, 3)
	// Separator style must not affect the ordering.
	assert.Equal(t, "20240101", got[0].Date)
	assert.Equal(t, "2024-01-02", got[1].Date)
	assert.Equal(t, "2024-01-03", got[2].Date)
}

func TestStabilityBreakdown(t *testing.T) {
	pipelines := &fakePipelineStore{pipelines: []model.PipelineRecord{
		{Success: true},
		{Success: true},
		{Success: false, FailType: "compile_failed"},
		{Success: false, FailType: "fetch_pr_failed"},
		{Success: false, FailType: "node_offline"},
	}}
	svc := newTestOverviewService(nil, nil, pipelines)

	got, err := svc.StabilityBreakdown(context.Background(), "widget", "main", "20240101", "20240102")

	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalSuccess)
	assert.Equal(t, 3, got.TotalFailed)
	assert.Equal(t, 40.0, got.SuccessRate)
	assert.Equal(t, 60.0, got.FailedRate)
	assert.Equal(t, 33.33, got.BusinessFailedRate)
	assert.Equal(t, 33.33, got.ToolFailedRate)
	assert.Equal(t, 33.33, got.EnvironmentFailedRate)
}

func TestStabilityBreakdownEmptyWindow(t *testing.T) {
	svc := newTestOverviewService(nil, nil, nil)

	got, err := svc.StabilityBreakdown(context.Background(), "widget", "main", "20240101", "20240102")

	require.NoError(t, err)
	assert.Equal(t, model.StabilitySummary{}, got)
}

func TestBuildTrendTopTenFirstSeenTieBreak(t *testing.T) {
	pipelines := &fakePipelineStore{}
	// Twelve components with identical task counts: only the first ten seen
	// may survive the trim, in encounter order.
	for i := 0; i < 12; i++ {
		pipelines.trends = append(pipelines.trends, model.TrendRecord{
			Date: "20240101", Component: fmt.Sprintf("comp-%02d", i), AllTask: 5, SuccessTask: 5,
		})
	}
	svc := newTestOverviewService(nil, nil, pipelines)

	first, err := svc.BuildTrend(context.Background(), "widget", "main", "20240101", "20240102")
	require.NoError(t, err)
	second, err := svc.BuildTrend(context.Background(), "widget", "main", "20240101", "20240102")
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	require.Len(t, first.Components, 10)
	for i, c := range first.Components {
		assert.Equal(t, fmt.Sprintf("comp-%02d", i), c.Component)
		assert.Equal(t, 10.0, c.Share)
	}
	require.Len(t, first.Daily, 1)
	assert.Len(t, first.Daily[0].Components, 10)
}

func TestBuildTrendComponentAggregation(t *testing.T) {
	pipelines := &fakePipelineStore{trends: []model.TrendRecord{
		{Date: "20240101", Component: "core", AllTask: 4, SuccessTask: 3, AverageDuration: 100},
		{Date: "20240102", Component: "core", AllTask: 6, SuccessTask: 6, AverageDuration: 200},
		{Date: "20240101", Component: "ui", AllTask: 2, SuccessTask: 1, AverageDuration: 50},
	}}
	svc := newTestOverviewService(nil, nil, pipelines)

	got, err := svc.BuildTrend(context.Background(), "widget", "main", "20240101", "20240103")

	require.NoError(t, err)
	require.Len(t, got.Components, 2)
	core := got.Components[0]
	assert.Equal(t, "core", core.Component)
	assert.Equal(t, 10, core.AllTask)
	assert.Equal(t, 9, core.SuccessTask)
	assert.Equal(t, 90.0, core.SuccessRate)
	// Mean of the per-day averages: (100 + 200) / 2, not weighted by the
	// day's task count.
	assert.Equal(t, 150.0, core.AverageDuration)
	assert.Equal(t, 83.33, core.Share)
}

func TestModuleBreakdownTwoStage(t *testing.T) {
	pipelines := &fakePipelineStore{modules: []model.TestModuleRecord{
		{Item: "unit", BuildStartTime: "20240101", Result: "passed", Duration: 10},
		{Item: "unit", BuildStartTime: "20240102", Result: "failed", Duration: 12},
		{Item: "unit", BuildStartTime: "20240102", Result: "passed", Duration: 8},
		{Item: "fuzz", BuildStartTime: "20240101", Result: "passed", Duration: 30},
		{Item: "fuzz", BuildStartTime: "20240101", Result: "passed", Duration: 20},
		{Item: "bench", BuildStartTime: "20240102", Result: "passed", Duration: 5},
	}}
	svc := newTestOverviewService(nil, nil, pipelines)

	got, err := svc.ModuleBreakdown(context.Background(), "widget", "main", []string{"widget"}, 2)

	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "unit", got.Items[0].Item)
	assert.Equal(t, 66.67, got.Items[0].PassRate)
	assert.Equal(t, 30.0, got.Items[0].Duration)
	assert.Equal(t, "fuzz", got.Items[1].Item)
	assert.Equal(t, 100.0, got.Items[1].PassRate)

	// The daily stage is restricted to exactly the selected items; "bench"
	// never appears even on its own day.
	require.Len(t, got.Daily, 2)
	day1 := got.Daily[0]
	assert.Equal(t, "20240101", day1.Date)
	assert.Equal(t, []model.ItemDuration{{Item: "unit", Duration: 10}, {Item: "fuzz", Duration: 50}}, day1.Durations)
	day2 := got.Daily[1]
	assert.Equal(t, "20240102", day2.Date)
	assert.Equal(t, []model.ItemDuration{{Item: "unit", Duration: 20}, {Item: "fuzz", Duration: 0}}, day2.Durations)
}

func TestEfficacyHistogram(t *testing.T) {
	t.Run("empty input is absent", func(t *testing.T) {
		assert.Nil(t, EfficacyHistogram(nil))
	})

	t.Run("boundary durations land in the middle band", func(t *testing.T) {
		got := EfficacyHistogram([]float64{20, 30})
		require.NotNil(t, got)
		assert.Equal(t, 0.0, got.Under15)
		assert.Equal(t, 0.0, got.Between15And20)
		assert.Equal(t, 0.0, got.Above30)
		assert.Equal(t, 100.0, got.Between20And30)
	})

	t.Run("the 15-20 band is the remaining count", func(t *testing.T) {
		got := EfficacyHistogram([]float64{10, 17, 40})
		require.NotNil(t, got)
		assert.Equal(t, 33.33, got.Under15)
		assert.Equal(t, 33.33, got.Between15And20)
		assert.Equal(t, 0.0, got.Between20And30)
		assert.Equal(t, 33.33, got.Above30)
	})

	t.Run("heavy rounding never pushes a band out of range", func(t *testing.T) {
		// Four of six durations land above 30; each direct band rounds up
		// (16.67, 66.67), which must not drag any derived value negative.
		got := EfficacyHistogram([]float64{10, 16, 31, 31, 31, 31})
		require.NotNil(t, got)
		assert.Equal(t, 16.67, got.Under15)
		assert.Equal(t, 16.67, got.Between15And20)
		assert.Equal(t, 0.0, got.Between20And30)
		assert.Equal(t, 66.67, got.Above30)
		for _, band := range []float64{got.Under15, got.Between15And20, got.Between20And30, got.Above30} {
			assert.GreaterOrEqual(t, band, 0.0)
			assert.LessOrEqual(t, band, 100.0)
		}
	})
}

func TestCacheHitDistribution(t *testing.T) {
	records := []model.BuildRecord{
		{CacheHitRateNum: 92.3, BuildDuration: 950},
		{CacheHitRateNum: 85, BuildDuration: 100},
		{CacheHitRateNum: 86, BuildDuration: 900},
		{CacheHitRateNum: 99.9, BuildDuration: 100},
		{CacheHitRateNum: -1, BuildDuration: 2000}, // unparseable, skipped
	}

	got := CacheHitDistribution(records)

	assert.Equal(t, model.CacheBand{Total: 4, SlowCount: 2}, got[0])
	assert.Equal(t, model.CacheBand{Total: 1, SlowCount: 0}, got[1])
	assert.Equal(t, model.CacheBand{Total: 1, SlowCount: 1}, got[2])
	assert.Equal(t, model.CacheBand{Total: 1, SlowCount: 1}, got[3])
	assert.Equal(t, model.CacheBand{Total: 1, SlowCount: 0}, got[4])
}

func TestStageTimeConsume(t *testing.T) {
	records := []model.BuildRecord{
		{
			EventDuration: 100, BuildDuration: 60, TestDuration: 30,
			InitDuration: 10, MainCompileDuration: 40, CacheHitRateNum: 90,
		},
		{
			EventDuration: 200, BuildDuration: 80, TestDuration: 50,
			InitDuration: -1, MainCompileDuration: 60, CacheHitRateNum: 0,
		},
	}

	got := StageTimeConsume(records)

	assert.Equal(t, 150.0, got.EventDuration)
	assert.Equal(t, 70.0, got.BuildDuration)
	assert.Equal(t, 40.0, got.TestDuration)
	// The unparseable init bound is excluded from its average.
	assert.Equal(t, 10.0, got.InitDuration)
	assert.Equal(t, 50.0, got.MainCompileDuration)
	// Only positive hit rates feed the cache average.
	assert.Equal(t, 90.0, got.CacheHitRate)
}

func TestComputeOverviewSummaryIsDeterministic(t *testing.T) {
	events := &fakeEventStore{events: map[string]*model.Event{}}
	for i := 0; i < 6; i++ {
		ev := &model.Event{
			UUID:      fmt.Sprintf("uuid-%d", i),
			Project:   "widget",
			Branch:    "main",
			Timestamp: fmt.Sprintf("2024010%d120000", i%3+1),
			Duration:  float64(10 + i*5),
			PRs:       []model.PRRef{{URL: testPRURL}},
		}
		events.events[ev.UUID] = ev
	}
	builds := &fakeBuildStore{records: []model.BuildRecord{
		buildRecord("20240101", true),
		buildRecord("20240101", false),
		{Project: "widget", Branch: "main", BuildDate: "20240102", Success: true,
			CacheHitRateNum: 92.3, BuildDuration: 950},
	}}
	pipelines := &fakePipelineStore{
		pipelines: []model.PipelineRecord{{Success: true}, {Success: false, FailType: "compile_failed"}},
		trends:    []model.TrendRecord{{Date: "20240101", Component: "core", AllTask: 3, SuccessTask: 2}},
		modules:   []model.TestModuleRecord{{Item: "unit", BuildStartTime: "20240101", Result: "passed", Duration: 9}},
	}
	svc := newTestOverviewService(events, builds, pipelines)

	first, err := svc.ComputeOverviewSummary(context.Background(), "widget", "main", "20240101", "20240104", SummaryGate)
	require.NoError(t, err)
	second, err := svc.ComputeOverviewSummary(context.Background(), "widget", "main", "20240101", "20240104", SummaryGate)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	require.NotNil(t, first.Efficacy)
	assert.Len(t, first.EventTrend, 3)
	assert.Len(t, first.PRTrend, 3)
}

func TestComputeOverviewSummaryByKind(t *testing.T) {
	newStores := func() (*fakeEventStore, *fakeBuildStore, *fakePipelineStore) {
		events := &fakeEventStore{events: map[string]*model.Event{
			"uuid-1": {
				UUID: "uuid-1", Project: "widget", Branch: "main",
				Timestamp: "20240101120000", Duration: 12,
				PRs: []model.PRRef{{URL: testPRURL}},
			},
		}}
		builds := &fakeBuildStore{records: []model.BuildRecord{
			{Project: "widget", Branch: "main", BuildDate: "20240101", Success: true,
				CacheHitRateNum: 92.3, BuildDuration: 950},
		}}
		pipelines := &fakePipelineStore{
			pipelines: []model.PipelineRecord{{Success: true}, {Success: false, FailType: "compile_failed"}},
			trends:    []model.TrendRecord{{Date: "20240101", Component: "core", AllTask: 3, SuccessTask: 2}},
			modules:   []model.TestModuleRecord{{Item: "unit", BuildStartTime: "20240101", Result: "passed", Duration: 9}},
		}
		return events, builds, pipelines
	}

	t.Run("gate", func(t *testing.T) {
		svc := newTestOverviewService(newStores())

		got, err := svc.ComputeOverviewSummary(context.Background(), "widget", "main", "20240101", "20240102", SummaryGate)

		require.NoError(t, err)
		assert.Equal(t, 1, got.Stability.TotalSuccess)
		assert.Equal(t, 1, got.Stability.TotalFailed)
		require.NotNil(t, got.Efficacy)
		assert.Equal(t, 100.0, got.Efficacy.Under15)
		// Build-view sections stay untouched.
		assert.Empty(t, got.BuildTrend.Components)
		assert.Equal(t, 0, got.CacheHits[0].Total)
	})

	t.Run("daily build", func(t *testing.T) {
		svc := newTestOverviewService(newStores())

		got, err := svc.ComputeOverviewSummary(context.Background(), "widget", "main", "20240101", "20240102", SummaryDailyBuild)

		require.NoError(t, err)
		require.Len(t, got.BuildTrend.Components, 1)
		assert.Equal(t, "core", got.BuildTrend.Components[0].Component)
		require.Len(t, got.Modules.Items, 1)
		assert.Equal(t, 1, got.CacheHits[0].Total)
		assert.Equal(t, 950.0, got.TimeConsume.BuildDuration)
		// Gate-view sections stay untouched.
		assert.Nil(t, got.Efficacy)
		assert.Equal(t, model.StabilitySummary{}, got.Stability)
	})

	t.Run("quality carries only the common sections", func(t *testing.T) {
		svc := newTestOverviewService(newStores())

		got, err := svc.ComputeOverviewSummary(context.Background(), "widget", "main", "20240101", "20240102", SummaryQuality)

		require.NoError(t, err)
		assert.Len(t, got.EventTrend, 1)
		assert.Len(t, got.PRTrend, 1)
		assert.Len(t, got.DailySuccessRate, 1)
		assert.Nil(t, got.Efficacy)
		assert.Equal(t, model.StabilitySummary{}, got.Stability)
		assert.Empty(t, got.BuildTrend.Components)
	})
}
