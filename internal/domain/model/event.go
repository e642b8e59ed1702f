package model

import "strings"

// Event is one CI gate run triggered by a merge request. It is created by
// the ingestion pipeline; the resolution engine only annotates it with
// derived statuses and never persists it.
type Event struct {
	ID          string // Document id of the event record.
	UUID        string // Pipeline-wide correlation id shared by all regions.
	Project     string
	Branch      string
	TriggerUser string
	Timestamp   string // Linked yyyyMMddHHmmss trigger time.
	Duration    float64
	PRs         []PRRef
	Community   *CheckDescriptor // nil when the static check was never triggered.
}

// CheckDescriptor carries the community static-check state attached directly
// to the event.
type CheckDescriptor struct {
	Status CommunityStatus
}

// CommunityState returns the community status, treating a missing descriptor
// as absent.
func (e *Event) CommunityState() CommunityStatus {
	if e == nil || e.Community == nil {
		return CommunityAbsent
	}
	return e.Community.Status
}

// PRRef is one pull request associated with an event. Owned by its event;
// resolution only fills the derived fields.
type PRRef struct {
	URL       string
	Committer string
	RepoName  string

	// Derived by the resolution engine.
	Result    Status
	SubChecks []SubCheckItem
}

// RepoGitURL derives the bare repository git URL from the PR URL, the form
// the inner-repositories allow-list stores. Returns "" when the URL does not
// look like a pull-request URL.
func (p PRRef) RepoGitURL() (repoURL, gitURL string) {
	i := strings.Index(p.URL, "/pulls")
	if i < 0 {
		return "", ""
	}
	return p.URL[:i], p.URL[:i] + ".git"
}

// BlueResult is one blue-region per-PR verdict for an event uuid.
type BlueResult struct {
	PRURL  string
	Result string // pass / fail / no_pass / other tokens.
}

// DevCloudCheck is the yellow-region record for one event. TotalResult is
// non-nil only once the asynchronous check has terminated; a running
// CurrentStatus together with a non-nil TotalResult is the stale-running
// anomaly handled by the resolution engine.
type DevCloudCheck struct {
	CurrentStatus string // "running" or a terminal token.
	TotalResult   *string
	StartedAt     string // Linked timestamp of the running stage, may be blank.
	BuildDuration float64
	// SubChecks maps a (double URL-encoded) PR URL to its sub-check items.
	SubChecks map[string][]SubCheckItem
}

// Running reports whether the yellow check still claims to be in progress.
func (d *DevCloudCheck) Running() bool {
	return d != nil && d.CurrentStatus == "running"
}

// SubCheckItem is one yellow-region sub-check result for a PR.
type SubCheckItem struct {
	Name       string
	Result     string
	Detail     string
	Report     string
	JSONReport string
}
