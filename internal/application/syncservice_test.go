package application

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateboard/gateboard/internal/domain/model"
)

const syncTestUUID = "6c1d3f9e-0a52-4d2f-9c27-1f53a8e2b4d0"

func testPipelineRun(uuid, component string) *model.PipelineRun {
	return &model.PipelineRun{
		PipelineRecord: model.PipelineRecord{
			UUID:      uuid,
			Component: component,
			Timestamp: "20240101120000",
			Success:   true,
		},
		TriggerUser: "kmercer",
		BuildResult: "success",
		TestResult:  "success",
		Stages: []model.StageSpan{
			{Name: model.StageInit, Start: "20240101120000", End: "20240101120010"},
			{Name: model.StageFetchPR, Start: "20240101120010", End: "20240101120025"},
			{Name: model.StageMainCompile, Start: "20240101120025", End: "20240101121525"},
			{Name: model.StageUpload, Start: "20240101121525", End: "20240101121540"},
		},
		CcacheLines: []string{
			"cache hit (direct)            1234",
			"cache hit (preprocessed)       567",
			"cache miss                     890",
			"cache hit rate               92.30 %",
		},
	}
}

func TestSyncWindow(t *testing.T) {
	ev := testEvent(model.CommunityPassed, testPRURL)
	ev.UUID = syncTestUUID
	ev.Duration = 18

	pipelines := &fakePipelineStore{
		pipelines: []model.PipelineRecord{
			{UUID: syncTestUUID, Component: "core", Timestamp: "20240101120000", Success: true},
			{UUID: syncTestUUID, Component: "already-synced", Timestamp: "20240101130000"},
			{UUID: syncTestUUID, Component: "no-detail", Timestamp: "20240101140000"},
		},
		runs: []*model.PipelineRun{testPipelineRun(syncTestUUID, "core")},
	}
	builds := &fakeBuildStore{records: []model.BuildRecord{
		{UUID: syncTestUUID, Component: "already-synced"},
	}}
	blue := &fakeBlueClient{results: []model.BlueResult{{PRURL: testPRURL, Result: model.BlueResultPass}}}
	resolver := newTestResolutionService(ev, blue, &fakeYellowClient{})
	svc := NewSyncService(pipelines, builds, resolver, slog.New(slog.DiscardHandler), 1)

	outcomes, err := svc.SyncWindow(context.Background(), "20240101000000", "20240102000000")

	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Skipped)
	assert.True(t, outcomes[1].Skipped)
	require.Error(t, outcomes[2].Err)
	assert.Contains(t, outcomes[2].Err.Error(), "run detail missing")

	// Exactly one new record inserted, fully converted.
	require.Len(t, builds.records, 2)
	record := builds.records[1]
	assert.Equal(t, syncTestUUID, record.UUID)
	assert.Equal(t, "core", record.Component)
	assert.Equal(t, "20240101", record.BuildDate)
	assert.Equal(t, "widget", record.Project)
	assert.Equal(t, "pass", record.GateResult)
	assert.Equal(t, 10, record.InitDuration)
	assert.Equal(t, 15, record.FetchDuration)
	assert.Equal(t, 900, record.MainCompileDuration)
	assert.Equal(t, 15, record.UploadDuration)
	assert.Equal(t, -1, record.DownloadDuration)
	assert.Equal(t, 940, record.BuildDuration)
	assert.Equal(t, 18*60, record.EventDuration)
	assert.Equal(t, "1234", record.CacheHitDirect)
	assert.Equal(t, "567", record.CacheHitPreprocessed)
	assert.Equal(t, "890", record.CacheMiss)
	assert.Equal(t, 92.3, record.CacheHitRateNum)
}

func TestSyncWindowIsIdempotent(t *testing.T) {
	ev := testEvent(model.CommunityPassed, testPRURL)
	ev.UUID = syncTestUUID

	pipelines := &fakePipelineStore{
		pipelines: []model.PipelineRecord{
			{UUID: syncTestUUID, Component: "core", Timestamp: "20240101120000", Success: true},
		},
		runs: []*model.PipelineRun{testPipelineRun(syncTestUUID, "core")},
	}
	builds := &fakeBuildStore{}
	resolver := newTestResolutionService(ev, &fakeBlueClient{}, &fakeYellowClient{})
	svc := NewSyncService(pipelines, builds, resolver, slog.New(slog.DiscardHandler), 1)

	_, err := svc.SyncWindow(context.Background(), "20240101000000", "20240102000000")
	require.NoError(t, err)
	second, err := svc.SyncWindow(context.Background(), "20240101000000", "20240102000000")
	require.NoError(t, err)

	assert.Len(t, builds.records, 1)
	assert.True(t, second[0].Skipped)
}

func TestSyncWindowWithoutEvent(t *testing.T) {
	pipelines := &fakePipelineStore{
		pipelines: []model.PipelineRecord{
			{UUID: syncTestUUID, Component: "core", Timestamp: "20240101120000", Success: true},
		},
		runs: []*model.PipelineRun{testPipelineRun(syncTestUUID, "core")},
	}
	builds := &fakeBuildStore{}
	resolver := newTestResolutionService(nil, &fakeBlueClient{}, &fakeYellowClient{})
	svc := NewSyncService(pipelines, builds, resolver, slog.New(slog.DiscardHandler), 1)

	outcomes, err := svc.SyncWindow(context.Background(), "20240101000000", "20240102000000")

	require.NoError(t, err)
	assert.NoError(t, outcomes[0].Err)
	// A run whose event is gone still produces a record, just without the
	// gate fields.
	require.Len(t, builds.records, 1)
	assert.Empty(t, builds.records[0].GateResult)
	assert.Equal(t, -1, builds.records[0].EventDuration)
}

func TestBuildRecordFromRunUnparseableStages(t *testing.T) {
	run := testPipelineRun(syncTestUUID, "core")
	run.Stages = []model.StageSpan{
		{Name: model.StageInit, Start: "garbage", End: "20240101120010"},
		{Name: model.StageUpload, Start: "20240101120025", End: "20240101120010"}, // negative
	}
	run.CcacheLines = nil

	record := buildRecordFromRun(run, nil, "")

	assert.Equal(t, -1, record.InitDuration)
	assert.Equal(t, -1, record.UploadDuration)
	assert.Equal(t, -1.0, record.CacheHitRateNum)
	assert.Empty(t, record.CacheHitRate)
}

func TestParseCcacheSummary(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		wantRate string
		wantNum  float64
	}{
		{
			name:     "rate with spaced percent sign",
			lines:    []string{"cache hit rate               92.30 %"},
			wantRate: "92.30",
			wantNum:  92.3,
		},
		{
			name:     "rate with attached percent sign",
			lines:    []string{"cache hit rate 87.5%"},
			wantRate: "87.5",
			wantNum:  87.5,
		},
		{
			name:     "garbage rate",
			lines:    []string{"cache hit rate n/a"},
			wantRate: "n/a",
			wantNum:  -1,
		},
		{
			name:    "no lines",
			wantNum: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, rate, num := parseCcacheSummary(tt.lines)
			assert.Equal(t, tt.wantRate, rate)
			assert.Equal(t, tt.wantNum, num)
		})
	}
}
