package model

// BuildRecord is one component's build/test outcome for one day, assembled
// by the sync service from a pipeline run and its event. Immutable once
// produced; the aggregation engine only reads and groups these.
type BuildRecord struct {
	UUID      string
	Project   string
	Branch    string
	Component string
	BuildDate string // yyyyMMdd day key of the synced day.
	Timestamp string // Linked trigger time of the originating event.

	TriggerUser string
	Committers  string
	EventStatus string
	GateResult  string // Resolved gate verdict wire token.

	BuildResult string
	TestResult  string
	Success     bool
	FailType    string // Raw failure-type code, classified on demand.

	// Stage durations in seconds; -1 marks an unparseable stage bound.
	InitDuration         int
	DownloadDuration     int
	FetchDuration        int
	GitLfsDuration       int
	PreCompileDuration   int
	MainCompileDuration  int
	AfterCompileDuration int
	ArchiveDuration      int
	UploadDuration       int

	EventDuration int
	BuildDuration int
	TestDuration  int

	// Ccache metrics from the pipeline's cache summary stage.
	CacheHitDirect       string
	CacheHitPreprocessed string
	CacheMiss            string
	CacheHitRate         string
	CacheHitRateNum      float64 // Parsed percentage; -1 when unparseable.
}

// PipelineRecord is one pipeline run as the stability breakdown consumes it:
// a success flag plus the raw failure-type code for classification.
type PipelineRecord struct {
	UUID      string
	Component string
	Timestamp string // Linked timestamp.
	Success   bool
	FailType  string
}

// StageSpan is one pipeline stage with its linked-time bounds as the
// upstream scheduler reports them.
type StageSpan struct {
	Name  string
	Start string
	End   string
}

// Stage names the upstream scheduler uses in its span list.
const (
	StageInit         = "init"
	StageDownload     = "download"
	StageFetchPR      = "fetch_pr"
	StageGitLfs       = "git_lfs"
	StagePreCompile   = "pre_compile"
	StageMainCompile  = "main_compile"
	StageAfterCompile = "after_compile"
	StageArchive      = "archive"
	StageUpload       = "upload"
	StageTest         = "test"
)

// PipelineRun is the full detail of one pipeline run, the sync input. It
// extends the bare record with the stage spans and the raw ccache summary
// the conversion into a BuildRecord consumes.
type PipelineRun struct {
	PipelineRecord

	TriggerUser string
	Committers  string
	BuildResult string
	TestResult  string

	Stages      []StageSpan
	CcacheLines []string
}

// TestModuleRecord is one test-board module measurement: the input of the
// module/item breakdown.
type TestModuleRecord struct {
	Item           string
	BuildStartTime string // yyyyMMdd day key.
	Result         string // "passed" or a failure token.
	Duration       float64
}

// TrendRecord is one (day, component) build-volume observation feeding the
// build-trend view.
type TrendRecord struct {
	Date            string
	Component       string
	AllTask         int
	SuccessTask     int
	AverageDuration float64
}
