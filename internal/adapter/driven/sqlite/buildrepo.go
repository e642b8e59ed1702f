package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BuildStore = (*BuildRepo)(nil)

// BuildRepo is the SQLite implementation of the BuildStore port interface.
type BuildRepo struct {
	db *DB
}

// NewBuildRepo creates a new BuildRepo backed by the given DB.
func NewBuildRepo(db *DB) *BuildRepo {
	return &BuildRepo{db: db}
}

const buildColumns = `uuid, component, project, branch, build_date, timestamp,
	trigger_user, committers, event_status, gate_result, build_result, test_result,
	success, fail_type,
	init_duration, download_duration, fetch_duration, git_lfs_duration,
	pre_compile_duration, main_compile_duration, after_compile_duration,
	archive_duration, upload_duration,
	event_duration, build_duration, test_duration,
	cache_hit_direct, cache_hit_preprocessed, cache_miss, cache_hit_rate, cache_hit_rate_num`

// ExistsByUUIDAndComponent reports whether a record for this pipeline run was
// already synced.
func (r *BuildRepo) ExistsByUUIDAndComponent(ctx context.Context, uuid, component string) (bool, error) {
	const query = `SELECT 1 FROM build_records WHERE uuid = ? AND component = ? LIMIT 1`
	var one int
	err := r.db.Reader.QueryRowContext(ctx, query, uuid, component).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check build record %s/%s: %w", uuid, component, err)
}

// Insert stores one build record. Records are write-once; a duplicate
// (uuid, component) pair is a caller bug and surfaces as a constraint error.
func (r *BuildRepo) Insert(ctx context.Context, record model.BuildRecord) error {
	query := `INSERT INTO build_records (` + buildColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	success := 0
	if record.Success {
		success = 1
	}
	if _, err := r.db.Writer.ExecContext(ctx, query,
		record.UUID, record.Component, record.Project, record.Branch,
		record.BuildDate, record.Timestamp,
		record.TriggerUser, record.Committers, record.EventStatus, record.GateResult,
		record.BuildResult, record.TestResult, success, record.FailType,
		record.InitDuration, record.DownloadDuration, record.FetchDuration,
		record.GitLfsDuration, record.PreCompileDuration, record.MainCompileDuration,
		record.AfterCompileDuration, record.ArchiveDuration, record.UploadDuration,
		record.EventDuration, record.BuildDuration, record.TestDuration,
		record.CacheHitDirect, record.CacheHitPreprocessed, record.CacheMiss,
		record.CacheHitRate, record.CacheHitRateNum,
	); err != nil {
		return fmt.Errorf("insert build record %s/%s: %w", record.UUID, record.Component, err)
	}
	return nil
}

// ListByWindow returns the project/branch build records whose timestamp falls
// inside [start, end], ordered by timestamp.
func (r *BuildRepo) ListByWindow(ctx context.Context, project, branch, start, end string) ([]model.BuildRecord, error) {
	query := `SELECT ` + buildColumns + `
		FROM build_records
		WHERE project = ? AND branch = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp, uuid, component`
	return r.list(ctx, query, project, branch, start, end)
}

// ListByComponents restricts ListByWindow to the given component set. An
// empty set matches nothing.
func (r *BuildRepo) ListByComponents(ctx context.Context, project, branch, start, end string, components []string) ([]model.BuildRecord, error) {
	if len(components) == 0 {
		return nil, nil
	}
	query := `SELECT ` + buildColumns + `
		FROM build_records
		WHERE project = ? AND branch = ? AND timestamp >= ? AND timestamp <= ?
		AND component IN (?` + strings.Repeat(", ?", len(components)-1) + `)
		ORDER BY timestamp, uuid, component`
	args := []any{project, branch, start, end}
	for _, c := range components {
		args = append(args, c)
	}
	return r.list(ctx, query, args...)
}

// ProjectBranch is one distinct (project, branch) pair seen in a window.
type ProjectBranch struct {
	Project string
	Branch  string
}

// ProjectBranches returns the distinct project/branch pairs with build
// records inside [start, end]. The composition root uses this to decide
// which cached summaries a sync may have invalidated.
func (r *BuildRepo) ProjectBranches(ctx context.Context, start, end string) ([]ProjectBranch, error) {
	const query = `
		SELECT DISTINCT project, branch
		FROM build_records
		WHERE timestamp >= ? AND timestamp <= ? AND project != ''
		ORDER BY project, branch
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("list project branches: %w", err)
	}
	defer rows.Close()

	var pairs []ProjectBranch
	for rows.Next() {
		var pb ProjectBranch
		if err := rows.Scan(&pb.Project, &pb.Branch); err != nil {
			return nil, fmt.Errorf("scan project branch: %w", err)
		}
		pairs = append(pairs, pb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project branches: %w", err)
	}
	return pairs, nil
}

func (r *BuildRepo) list(ctx context.Context, query string, args ...any) ([]model.BuildRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list build records: %w", err)
	}
	defer rows.Close()

	var records []model.BuildRecord
	for rows.Next() {
		var record model.BuildRecord
		var success int
		if err := rows.Scan(
			&record.UUID, &record.Component, &record.Project, &record.Branch,
			&record.BuildDate, &record.Timestamp,
			&record.TriggerUser, &record.Committers, &record.EventStatus, &record.GateResult,
			&record.BuildResult, &record.TestResult, &success, &record.FailType,
			&record.InitDuration, &record.DownloadDuration, &record.FetchDuration,
			&record.GitLfsDuration, &record.PreCompileDuration, &record.MainCompileDuration,
			&record.AfterCompileDuration, &record.ArchiveDuration, &record.UploadDuration,
			&record.EventDuration, &record.BuildDuration, &record.TestDuration,
			&record.CacheHitDirect, &record.CacheHitPreprocessed, &record.CacheMiss,
			&record.CacheHitRate, &record.CacheHitRateNum,
		); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		record.Success = success != 0
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build records: %w", err)
	}
	return records, nil
}
