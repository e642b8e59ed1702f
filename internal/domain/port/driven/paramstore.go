package driven

import "context"

// Custom-parameter configuration keys.
const (
	// ParamInnerRepos resolves the inner-repositories allow-list
	// ("gitUrls" entry).
	ParamInnerRepos = "innerProjectRepos"
	// ParamTestBoardComponents resolves the test-board component lists
	// ("tdd" / "xts" / "fuzz" entries).
	ParamTestBoardComponents = "testBoardComponent"
)

// ParamStore defines the driven port for custom-parameter configuration
// lookups. Values are read fresh at each computation boundary; callers hold
// them as immutable snapshots, never as process-global state.
type ParamStore interface {
	// GetCustomParameter returns the parameter map for the configuration
	// key. A missing configuration returns an empty map, not an error.
	GetCustomParameter(ctx context.Context, configKey string) (map[string]any, error)
}
