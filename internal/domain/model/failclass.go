package model

// FailureClass partitions raw failure-type codes into the three dashboard
// categories. Codes outside every membership set are UnknownClass and
// contribute to no bucket.
type FailureClass int

const (
	UnknownClass FailureClass = iota
	BusinessFailure
	ToolFailure
	EnvironmentFailure
)

// Membership tables. Shared by the resolution and analytics paths so both
// classify identically; do not duplicate these sets elsewhere.
var (
	businessFailTypes = map[string]bool{
		"compile_failed":    true,
		"build_failed":      true,
		"test_failed":       true,
		"codecheck_failed":  true,
		"static_check_fail": true,
	}

	toolFailTypes = map[string]bool{
		"fetch_pr_failed":  true,
		"download_failed":  true,
		"git_lfs_failed":   true,
		"archive_failed":   true,
		"upload_failed":    true,
		"tool_chain_error": true,
	}

	environmentFailTypes = map[string]bool{
		"init_failed":       true,
		"node_offline":      true,
		"docker_error":      true,
		"disk_full":         true,
		"network_timeout":   true,
		"environment_error": true,
	}
)

// ClassifyFailure maps a raw failure-type code to its class. Total and
// deterministic: unknown codes map to UnknownClass.
func ClassifyFailure(code string) FailureClass {
	switch {
	case businessFailTypes[code]:
		return BusinessFailure
	case toolFailTypes[code]:
		return ToolFailure
	case environmentFailTypes[code]:
		return EnvironmentFailure
	default:
		return UnknownClass
	}
}
