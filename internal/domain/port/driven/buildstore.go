package driven

import (
	"context"

	"github.com/gateboard/gateboard/internal/domain/model"
)

// BuildStore defines the driven port for per-component build-record
// persistence. Records are written once by the sync service and only read
// afterwards.
type BuildStore interface {
	// ExistsByUUIDAndComponent reports whether a record for this pipeline run
	// was already synced; the sync service uses it to stay idempotent.
	ExistsByUUIDAndComponent(ctx context.Context, uuid, component string) (bool, error)
	Insert(ctx context.Context, record model.BuildRecord) error
	// ListByWindow returns build records for the project/branch whose
	// timestamp falls inside [start, end].
	ListByWindow(ctx context.Context, project, branch, start, end string) ([]model.BuildRecord, error)
	// ListByComponents restricts ListByWindow to the given component set.
	ListByComponents(ctx context.Context, project, branch, start, end string, components []string) ([]model.BuildRecord, error)
}

// PipelineStore defines the driven port for raw pipeline-run reads produced
// by the upstream CI scheduler.
type PipelineStore interface {
	// ListByTimeRange returns pipeline runs triggered in [start, end)
	// (linked timestamps), the bulk-sync input.
	ListByTimeRange(ctx context.Context, start, end string) ([]model.PipelineRecord, error)
	// ListByWindow returns pipeline runs for the project/branch inside
	// [start, end], the stability-breakdown input.
	ListByWindow(ctx context.Context, project, branch, start, end string) ([]model.PipelineRecord, error)
	// ListTestModules returns test-board module records for the
	// project/branch, the module-breakdown input.
	ListTestModules(ctx context.Context, project, branch string, components []string) ([]model.TestModuleRecord, error)
	// ListTrendRecords returns per-(day, component) build volume data for the
	// build-trend view.
	ListTrendRecords(ctx context.Context, project, branch, start, end string) ([]model.TrendRecord, error)
	// GetRunDetail returns the full run detail (stage spans, ccache summary)
	// for one pipeline run, or (nil, nil) when the run is unknown.
	GetRunDetail(ctx context.Context, uuid, component string) (*model.PipelineRun, error)
}
