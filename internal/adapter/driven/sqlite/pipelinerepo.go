package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PipelineStore = (*PipelineRepo)(nil)

// PipelineRepo is the SQLite implementation of the PipelineStore port
// interface. Rows are written by the ingestion pipeline; the stage spans and
// ccache output land as JSON columns since only the sync conversion ever
// reads them.
type PipelineRepo struct {
	db *DB
}

// NewPipelineRepo creates a new PipelineRepo backed by the given DB.
func NewPipelineRepo(db *DB) *PipelineRepo {
	return &PipelineRepo{db: db}
}

// InsertRun stores one pipeline run with its full detail. The ingestion
// pipeline calls this; sync and aggregation only read.
func (r *PipelineRepo) InsertRun(ctx context.Context, project, branch string, run *model.PipelineRun) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("encode stages for %s/%s: %w", run.UUID, run.Component, err)
	}
	ccache, err := json.Marshal(run.CcacheLines)
	if err != nil {
		return fmt.Errorf("encode ccache lines for %s/%s: %w", run.UUID, run.Component, err)
	}

	success := 0
	if run.Success {
		success = 1
	}
	const query = `
		INSERT INTO pipeline_runs (uuid, component, project, branch, timestamp,
			success, fail_type, trigger_user, committers, build_result, test_result,
			stages, ccache_lines)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid, component) DO UPDATE SET
			timestamp = excluded.timestamp,
			success = excluded.success,
			fail_type = excluded.fail_type,
			trigger_user = excluded.trigger_user,
			committers = excluded.committers,
			build_result = excluded.build_result,
			test_result = excluded.test_result,
			stages = excluded.stages,
			ccache_lines = excluded.ccache_lines
	`
	if _, err := r.db.Writer.ExecContext(ctx, query,
		run.UUID, run.Component, project, branch, run.Timestamp,
		success, run.FailType, run.TriggerUser, run.Committers,
		run.BuildResult, run.TestResult, string(stages), string(ccache),
	); err != nil {
		return fmt.Errorf("insert pipeline run %s/%s: %w", run.UUID, run.Component, err)
	}
	return nil
}

// ListByTimeRange returns the pipeline runs triggered in [start, end),
// ordered by timestamp.
func (r *PipelineRepo) ListByTimeRange(ctx context.Context, start, end string) ([]model.PipelineRecord, error) {
	const query = `
		SELECT uuid, component, timestamp, success, fail_type
		FROM pipeline_runs
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, uuid, component
	`
	return r.listRecords(ctx, query, start, end)
}

// ListByWindow returns the project/branch pipeline runs inside [start, end],
// ordered by timestamp.
func (r *PipelineRepo) ListByWindow(ctx context.Context, project, branch, start, end string) ([]model.PipelineRecord, error) {
	const query = `
		SELECT uuid, component, timestamp, success, fail_type
		FROM pipeline_runs
		WHERE project = ? AND branch = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp, uuid, component
	`
	return r.listRecords(ctx, query, project, branch, start, end)
}

// GetRunDetail returns the full run detail, or (nil, nil) when the run is
// unknown.
func (r *PipelineRepo) GetRunDetail(ctx context.Context, uuid, component string) (*model.PipelineRun, error) {
	const query = `
		SELECT uuid, component, timestamp, success, fail_type,
			trigger_user, committers, build_result, test_result, stages, ccache_lines
		FROM pipeline_runs
		WHERE uuid = ? AND component = ?
	`
	var run model.PipelineRun
	var success int
	var stages, ccache string
	err := r.db.Reader.QueryRowContext(ctx, query, uuid, component).Scan(
		&run.UUID, &run.Component, &run.Timestamp, &success, &run.FailType,
		&run.TriggerUser, &run.Committers, &run.BuildResult, &run.TestResult,
		&stages, &ccache,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline run %s/%s: %w", uuid, component, err)
	}
	run.Success = success != 0

	if err := json.Unmarshal([]byte(stages), &run.Stages); err != nil {
		return nil, fmt.Errorf("decode stages for %s/%s: %w", uuid, component, err)
	}
	if err := json.Unmarshal([]byte(ccache), &run.CcacheLines); err != nil {
		return nil, fmt.Errorf("decode ccache lines for %s/%s: %w", uuid, component, err)
	}
	return &run, nil
}

// InsertTestModule stores one test-board module measurement.
func (r *PipelineRepo) InsertTestModule(ctx context.Context, project, branch, component string, record model.TestModuleRecord) error {
	const query = `
		INSERT INTO test_modules (project, branch, component, item, build_start_time, result, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.Writer.ExecContext(ctx, query,
		project, branch, component, record.Item, record.BuildStartTime,
		record.Result, record.Duration,
	); err != nil {
		return fmt.Errorf("insert test module %s: %w", record.Item, err)
	}
	return nil
}

// ListTestModules returns the test-board module records for the
// project/branch restricted to the given components. An empty component set
// matches nothing.
func (r *PipelineRepo) ListTestModules(ctx context.Context, project, branch string, components []string) ([]model.TestModuleRecord, error) {
	if len(components) == 0 {
		return nil, nil
	}
	query := `
		SELECT item, build_start_time, result, duration
		FROM test_modules
		WHERE project = ? AND branch = ?
		AND component IN (?` + strings.Repeat(", ?", len(components)-1) + `)
		ORDER BY build_start_time, item, rowid
	`
	args := []any{project, branch}
	for _, c := range components {
		args = append(args, c)
	}
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list test modules for %s/%s: %w", project, branch, err)
	}
	defer rows.Close()

	var records []model.TestModuleRecord
	for rows.Next() {
		var record model.TestModuleRecord
		if err := rows.Scan(&record.Item, &record.BuildStartTime, &record.Result, &record.Duration); err != nil {
			return nil, fmt.Errorf("scan test module: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test modules: %w", err)
	}
	return records, nil
}

// UpsertTrendRecord stores one (day, component) build-volume observation.
func (r *PipelineRepo) UpsertTrendRecord(ctx context.Context, project, branch string, record model.TrendRecord) error {
	const query = `
		INSERT INTO trend_records (project, branch, date, component, all_task, success_task, average_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, branch, date, component) DO UPDATE SET
			all_task = excluded.all_task,
			success_task = excluded.success_task,
			average_duration = excluded.average_duration
	`
	if _, err := r.db.Writer.ExecContext(ctx, query,
		project, branch, record.Date, record.Component,
		record.AllTask, record.SuccessTask, record.AverageDuration,
	); err != nil {
		return fmt.Errorf("upsert trend record %s/%s: %w", record.Date, record.Component, err)
	}
	return nil
}

// ListTrendRecords returns the (day, component) build-volume records for the
// project/branch inside [start, end], ordered by date.
func (r *PipelineRepo) ListTrendRecords(ctx context.Context, project, branch, start, end string) ([]model.TrendRecord, error) {
	const query = `
		SELECT date, component, all_task, success_task, average_duration
		FROM trend_records
		WHERE project = ? AND branch = ? AND date >= ? AND date <= ?
		ORDER BY date, component
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, project, branch, start, end)
	if err != nil {
		return nil, fmt.Errorf("list trend records for %s/%s: %w", project, branch, err)
	}
	defer rows.Close()

	var records []model.TrendRecord
	for rows.Next() {
		var record model.TrendRecord
		if err := rows.Scan(&record.Date, &record.Component, &record.AllTask,
			&record.SuccessTask, &record.AverageDuration); err != nil {
			return nil, fmt.Errorf("scan trend record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend records: %w", err)
	}
	return records, nil
}

func (r *PipelineRepo) listRecords(ctx context.Context, query string, args ...any) ([]model.PipelineRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	var records []model.PipelineRecord
	for rows.Next() {
		var record model.PipelineRecord
		var success int
		if err := rows.Scan(&record.UUID, &record.Component, &record.Timestamp,
			&success, &record.FailType); err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		record.Success = success != 0
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline runs: %w", err)
	}
	return records, nil
}
