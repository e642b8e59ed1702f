package application

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
	"github.com/gateboard/gateboard/internal/timeutil"
)

// SyncOutcome is one worker's tagged result. The orchestrator collects these
// and logs failures centrally; a failed unit never aborts its siblings.
type SyncOutcome struct {
	UUID      string
	Component string
	Skipped   bool
	Err       error
}

// SyncService converts finished pipeline runs into build records. Each run
// is processed exactly once: a record that already exists for the
// (uuid, component) pair is skipped, so re-running a window is safe.
type SyncService struct {
	pipelines driven.PipelineStore
	builds    driven.BuildStore
	resolver  *ResolutionService
	logger    *slog.Logger
	workers   int
}

// NewSyncService creates a sync service fanning out over at most workers
// goroutines; workers <= 0 selects runtime.NumCPU().
func NewSyncService(pipelines driven.PipelineStore, builds driven.BuildStore,
	resolver *ResolutionService, logger *slog.Logger, workers int) *SyncService {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &SyncService{
		pipelines: pipelines,
		builds:    builds,
		resolver:  resolver,
		logger:    logger,
		workers:   workers,
	}
}

// SyncComponentBuilds syncs yesterday's pipeline runs.
func (s *SyncService) SyncComponentBuilds(ctx context.Context) ([]SyncOutcome, error) {
	today := time.Now().Truncate(24 * time.Hour)
	start := timeutil.FormatLinked(today.AddDate(0, 0, -1))
	end := timeutil.FormatLinked(today)
	return s.SyncWindow(ctx, start, end)
}

// SyncWindow syncs the pipeline runs triggered in [start, end) over a
// bounded worker pool. The returned outcomes are in listing order; the
// returned error is non-nil only when the listing itself or the context
// failed, never for per-unit conversion errors.
func (s *SyncService) SyncWindow(ctx context.Context, start, end string) ([]SyncOutcome, error) {
	runs, err := s.pipelines.ListByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing pipeline runs: %w", err)
	}

	outcomes := make([]SyncOutcome, len(runs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, run := range runs {
		g.Go(func() error {
			outcomes[i] = s.syncOne(ctx, run)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	for _, o := range outcomes {
		if o.Err != nil {
			s.logger.Warn("pipeline run sync failed",
				"uuid", o.UUID, "component", o.Component, "error", o.Err)
		}
	}
	return outcomes, nil
}

func (s *SyncService) syncOne(ctx context.Context, run model.PipelineRecord) SyncOutcome {
	out := SyncOutcome{UUID: run.UUID, Component: run.Component}

	exists, err := s.builds.ExistsByUUIDAndComponent(ctx, run.UUID, run.Component)
	if err != nil {
		out.Err = fmt.Errorf("checking existing record: %w", err)
		return out
	}
	if exists {
		out.Skipped = true
		return out
	}

	detail, err := s.pipelines.GetRunDetail(ctx, run.UUID, run.Component)
	if err != nil {
		out.Err = fmt.Errorf("loading run detail: %w", err)
		return out
	}
	if detail == nil {
		out.Err = fmt.Errorf("run detail missing for %s/%s", run.UUID, run.Component)
		return out
	}

	// The gate verdict is best-effort: a run whose event is gone still gets
	// a record, just without the gate fields.
	var ev *model.Event
	var gate string
	if resolvedEv, res, err := s.resolver.ResolveEvent(ctx, run.UUID); err != nil {
		s.logger.Warn("gate resolution unavailable for run",
			"uuid", run.UUID, "component", run.Component, "error", err)
	} else {
		ev = resolvedEv
		gate = res.Final.WireString()
	}

	if err := s.builds.Insert(ctx, buildRecordFromRun(detail, ev, gate)); err != nil {
		out.Err = fmt.Errorf("inserting build record: %w", err)
	}
	return out
}

// buildRecordFromRun converts one pipeline run and its (optional) event into
// the immutable build record the aggregations read.
func buildRecordFromRun(run *model.PipelineRun, ev *model.Event, gate string) model.BuildRecord {
	record := model.BuildRecord{
		UUID:        run.UUID,
		Component:   run.Component,
		BuildDate:   timeutil.DayKey(run.Timestamp),
		Timestamp:   run.Timestamp,
		TriggerUser: run.TriggerUser,
		Committers:  run.Committers,
		GateResult:  gate,
		BuildResult: run.BuildResult,
		TestResult:  run.TestResult,
		Success:     run.Success,
		FailType:    run.FailType,
	}
	if ev != nil {
		record.Project = ev.Project
		record.Branch = ev.Branch
		record.EventStatus = string(ev.CommunityState())
		record.EventDuration = int(ev.Duration * 60)
	} else {
		record.EventDuration = -1
	}

	stages := map[string]*int{
		model.StageInit:         &record.InitDuration,
		model.StageDownload:     &record.DownloadDuration,
		model.StageFetchPR:      &record.FetchDuration,
		model.StageGitLfs:       &record.GitLfsDuration,
		model.StagePreCompile:   &record.PreCompileDuration,
		model.StageMainCompile:  &record.MainCompileDuration,
		model.StageAfterCompile: &record.AfterCompileDuration,
		model.StageArchive:      &record.ArchiveDuration,
		model.StageUpload:       &record.UploadDuration,
		model.StageTest:         &record.TestDuration,
	}
	for name := range stages {
		*stages[name] = -1
	}
	for _, span := range run.Stages {
		if target, ok := stages[span.Name]; ok {
			*target = stageSeconds(span)
		}
	}
	record.BuildDuration = runSeconds(run.Stages)

	record.CacheHitDirect, record.CacheHitPreprocessed, record.CacheMiss,
		record.CacheHitRate, record.CacheHitRateNum = parseCcacheSummary(run.CcacheLines)
	return record
}

// stageSeconds is the span length in whole seconds, -1 when either bound is
// unparseable or the span is negative.
func stageSeconds(span model.StageSpan) int {
	start, err := timeutil.ParseLinked(span.Start)
	if err != nil {
		return -1
	}
	end, err := timeutil.ParseLinked(span.End)
	if err != nil {
		return -1
	}
	d := end.Sub(start)
	if d < 0 {
		return -1
	}
	return int(d / time.Second)
}

// runSeconds spans the whole run, earliest parseable start to latest
// parseable end, -1 when no span parses.
func runSeconds(stages []model.StageSpan) int {
	var earliest, latest time.Time
	for _, span := range stages {
		if start, err := timeutil.ParseLinked(span.Start); err == nil {
			if earliest.IsZero() || start.Before(earliest) {
				earliest = start
			}
		}
		if end, err := timeutil.ParseLinked(span.End); err == nil {
			if end.After(latest) {
				latest = end
			}
		}
	}
	if earliest.IsZero() || latest.IsZero() || latest.Before(earliest) {
		return -1
	}
	return int(latest.Sub(earliest) / time.Second)
}

// parseCcacheSummary extracts the hit/miss counters and the hit rate from
// the raw ccache -s output lines. Counters keep their raw string form for
// display; the rate additionally parses to a number, -1 when unparseable.
func parseCcacheSummary(lines []string) (direct, preprocessed, miss, rate string, rateNum float64) {
	rateNum = -1
	for _, line := range lines {
		switch {
		case strings.Contains(line, "cache hit (direct)"):
			direct = lastField(line)
		case strings.Contains(line, "cache hit (preprocessed)"):
			preprocessed = lastField(line)
		case strings.Contains(line, "cache miss"):
			miss = lastField(line)
		case strings.Contains(line, "cache hit rate"):
			rate = strings.TrimSuffix(lastField(strings.TrimSuffix(strings.TrimSpace(line), "%")), "%")
			if n, err := strconv.ParseFloat(rate, 64); err == nil {
				rateNum = n
			}
		}
	}
	return direct, preprocessed, miss, rate, rateNum
}

func lastField(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
