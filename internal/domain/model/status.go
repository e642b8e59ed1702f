package model

// StatusKind enumerates the closed set of resolved gate states. Raw wire
// strings from the upstream regions are mapped into this set at the boundary
// and back out via WireString, so precedence logic never compares free-form
// strings.
type StatusKind int

const (
	// StatusUnknown is the zero value: no signal has produced a verdict yet.
	// The special-project blue collapse returns it when the result set is
	// inconclusive.
	StatusUnknown StatusKind = iota
	StatusPending
	StatusPassed
	StatusFailed
	// StatusSuppressed marks a per-PR result that must not be shown: the
	// repository is outside the inner allow-list, hard-excluded, or the blue
	// region produced no results for the event.
	StatusSuppressed
	// StatusAnomalous marks a terminal error state of the yellow region
	// itself (timed out, empty sub-check list), distinct from a check
	// failure.
	StatusAnomalous
)

// Anomaly reasons attached to StatusAnomalous results.
const (
	AnomalyTimeout        = "yellow check timed out"
	AnomalyEmptySubChecks = "empty sub-check list"
)

// Status is a resolved gate verdict: a kind plus, for anomalous results, the
// reason. The zero value is StatusUnknown.
type Status struct {
	Kind   StatusKind
	Reason string
}

var (
	Unknown    = Status{Kind: StatusUnknown}
	Pending    = Status{Kind: StatusPending}
	Passed     = Status{Kind: StatusPassed}
	Failed     = Status{Kind: StatusFailed}
	Suppressed = Status{Kind: StatusSuppressed}
)

// Anomalous builds an anomalous terminal status with the given reason.
func Anomalous(reason string) Status {
	return Status{Kind: StatusAnomalous, Reason: reason}
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	switch s.Kind {
	case StatusPassed, StatusFailed, StatusAnomalous:
		return true
	default:
		return false
	}
}

// Wire tokens consumed by the dashboard frontend. These match what the
// upstream event pages historically rendered.
const (
	wirePass       = "pass"
	wireFailed     = "failed"
	wireRunning    = "running"
	wireSuppressed = "--"
	wireTimeout    = "Y-CodeCheck-Time-Out"
	wireError      = "Y-CodeCheck-Error"
)

// WireString maps the status to the dashboard token. Anomalous statuses map
// by reason so a timed-out yellow check stays distinguishable from a corrupt
// one.
func (s Status) WireString() string {
	switch s.Kind {
	case StatusPending:
		return wireRunning
	case StatusPassed:
		return wirePass
	case StatusFailed:
		return wireFailed
	case StatusSuppressed:
		return wireSuppressed
	case StatusAnomalous:
		if s.Reason == AnomalyEmptySubChecks {
			return wireError
		}
		return wireTimeout
	default:
		return wireSuppressed
	}
}

// CommunityStatus is the state of the baseline static check attached directly
// to the event. Absent means the check was never triggered.
type CommunityStatus string

const (
	CommunityAbsent  CommunityStatus = ""
	CommunityRunning CommunityStatus = "running"
	CommunityFailed  CommunityStatus = "failed"
	CommunityPassed  CommunityStatus = "pass"
)

// Blue-region per-PR result tokens.
const (
	BlueResultPass   = "pass"
	BlueResultFail   = "fail"
	BlueResultNoPass = "no_pass"
)
