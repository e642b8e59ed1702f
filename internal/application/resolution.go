// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
	"github.com/gateboard/gateboard/internal/timeutil"
)

// checkTimeout is the business-rule deadline: a check still running this long
// after its start counts as failed. It is a wall-clock comparison, not an
// execution deadline.
const checkTimeout = 30 * time.Minute

// ResolutionSnapshot is the read-only configuration a single resolution call
// operates on. It is re-fetched at each call boundary, never mutated in place.
type ResolutionSnapshot struct {
	// InnerRepos is the allow-list of repository git URLs for which
	// yellow-region results are meaningful.
	InnerRepos []string
	// ExcludedRepoURL is hard-excluded by exact repository URL match.
	ExcludedRepoURL string
	// SpecialProjectURL is hard-excluded by prefix match; events of
	// SpecialProject resolve purely from their blue aggregate.
	SpecialProjectURL string
	SpecialProject    string
}

func (s ResolutionSnapshot) innerRepo(gitURL string) bool {
	for _, repo := range s.InnerRepos {
		if repo == gitURL {
			return true
		}
	}
	return false
}

// Resolution is the outcome of resolving one event: the authoritative event
// status plus one status per associated PR, in event.PRs order.
type Resolution struct {
	Final model.Status
	PerPR []model.Status
}

// ResolveEventStatus deterministically resolves the overall status of an
// event and each of its PRs from the three region signals. Precedence,
// first match wins:
//
//  1. community check never triggered        -> passed (untriggered never blocks)
//  2. community running                      -> pending, failed after 30 min
//  3. blue aggregate failed                  -> failed
//  4. community failed                       -> failed
//  5. community passed                       -> consult the yellow region
//
// Malformed timestamps count as "timeout already elapsed" so a parse error
// degrades toward failed, never silently toward passed.
func ResolveEventStatus(ev *model.Event, blue []model.BlueResult, yellow *model.DevCloudCheck,
	now time.Time, snap ResolutionSnapshot) Resolution {
	final := resolveFinal(ev, blue, yellow, now, snap)

	perPR := make([]model.Status, len(ev.PRs))
	for i := range ev.PRs {
		perPR[i] = resolvePR(&ev.PRs[i], ev, blue, yellow, now, snap)
		ev.PRs[i].Result = perPR[i]
	}

	return Resolution{Final: final, PerPR: perPR}
}

func resolveFinal(ev *model.Event, blue []model.BlueResult, yellow *model.DevCloudCheck,
	now time.Time, snap ResolutionSnapshot) model.Status {
	community := ev.CommunityState()

	// Rule 1: untriggered checks never block.
	if community == model.CommunityAbsent {
		return model.Passed
	}

	// The special project is exempted from the yellow region entirely.
	if snap.SpecialProject != "" && ev.Project == snap.SpecialProject {
		return resolveSpecialProject(community, blue, snap)
	}

	// Rule 2: community still running, with timeout escalation.
	if community == model.CommunityRunning {
		if timedOut(checkStartTime(yellow, ev), now) {
			return model.Failed
		}
		return model.Pending
	}

	// Rule 3: the blue aggregate takes precedence over everything terminal.
	if reduceBlueAggregate(blue) == model.Failed {
		return model.Failed
	}

	// Rule 4.
	if community == model.CommunityFailed {
		return model.Failed
	}

	// Rule 5: community passed, the yellow region decides.
	return resolveYellow(ev, blue, yellow, now, snap)
}

func resolveYellow(ev *model.Event, blue []model.BlueResult, yellow *model.DevCloudCheck,
	now time.Time, snap ResolutionSnapshot) model.Status {
	if yellow == nil {
		return model.Passed
	}

	if yellowAggregate(yellow, ev.PRs, snap) == model.Failed {
		return model.Failed
	}

	if yellow.Running() {
		if yellow.TotalResult != nil {
			// Stale-running anomaly: the status still says running but the
			// aggregate already terminated. Mirror the stale aggregate.
			if isPassToken(*yellow.TotalResult) {
				return model.Passed
			}
			return model.Failed
		}
		if timedOut(checkStartTime(yellow, ev), now) {
			return model.Failed
		}
		return model.Pending
	}

	return model.Passed
}

// resolveSpecialProject collapses the blue results of PRs under the special
// project URL three ways: any fail/no_pass fails, a singleton pass set
// passes, anything else stays inconclusive.
func resolveSpecialProject(community model.CommunityStatus, blue []model.BlueResult,
	snap ResolutionSnapshot) model.Status {
	if community == model.CommunityRunning {
		return model.Pending
	}

	set := make(map[string]bool)
	for _, r := range blue {
		if strings.HasPrefix(r.PRURL, snap.SpecialProjectURL) {
			set[r.Result] = true
		}
	}
	switch {
	case set[model.BlueResultFail], set[model.BlueResultNoPass]:
		return model.Failed
	case len(set) == 1 && set[model.BlueResultPass]:
		return model.Passed
	default:
		return model.Unknown
	}
}

func resolvePR(pr *model.PRRef, ev *model.Event, blue []model.BlueResult,
	yellow *model.DevCloudCheck, now time.Time, snap ResolutionSnapshot) model.Status {
	repoURL, gitURL := pr.RepoGitURL()

	// Suppression: yellow-region results are meaningless for these PRs and
	// must not be shown at all.
	switch {
	case ev.CommunityState() == model.CommunityAbsent,
		!snap.innerRepo(gitURL),
		repoURL == snap.ExcludedRepoURL,
		snap.SpecialProjectURL != "" && strings.HasPrefix(repoURL, snap.SpecialProjectURL),
		len(blue) == 0:
		return model.Suppressed
	}

	// Same rule order as the event resolution: a running community check is
	// decided before any terminal signal, so a PR never fails while its event
	// is still pending.
	if ev.CommunityState() == model.CommunityRunning {
		if timedOut(checkStartTime(yellow, ev), now) {
			return model.Failed
		}
		return model.Pending
	}
	if reduceBlueAggregate(blue) == model.Failed {
		return model.Failed
	}
	if ev.CommunityState() == model.CommunityFailed {
		return model.Failed
	}

	if yellow == nil {
		return model.Passed
	}

	if yellow.TotalResult == nil {
		// Still waiting on the yellow region for this PR; report the
		// region-specific timeout token rather than a plain failure.
		if timedOut(checkStartTime(yellow, ev), now) {
			return model.Anomalous(model.AnomalyTimeout)
		}
		return model.Pending
	}

	if len(yellow.SubChecks) == 0 {
		// A terminated yellow check with no sub-check map is an error state
		// of the region, never a silent pass or fail.
		return model.Anomalous(model.AnomalyEmptySubChecks)
	}

	return mergeSubChecks(pr, yellow)
}

// mergeSubChecks attaches the sub-check items whose key, after double
// URL-decoding, matches the PR URL exactly, and derives the per-PR verdict
// from them.
func mergeSubChecks(pr *model.PRRef, yellow *model.DevCloudCheck) model.Status {
	for key, items := range yellow.SubChecks {
		if decodeTwice(key) != pr.URL {
			continue
		}
		if len(items) == 0 {
			return model.Anomalous(model.AnomalyEmptySubChecks)
		}
		pr.SubChecks = append(pr.SubChecks[:0], items...)
		for _, item := range items {
			if item.Result == model.BlueResultFail {
				return model.Failed
			}
		}
		return model.Passed
	}
	// No sub-check entry for this PR: no verdict to show.
	return model.Unknown
}

// reduceBlueAggregate collapses the blue-region result set: any fail or
// no_pass fails the aggregate, a singleton pass set passes, and anything else
// (including an empty, inconclusive set) passes by default.
func reduceBlueAggregate(blue []model.BlueResult) model.Status {
	set := make(map[string]bool, len(blue))
	for _, r := range blue {
		set[r.Result] = true
	}
	switch {
	case set[model.BlueResultFail], set[model.BlueResultNoPass]:
		return model.Failed
	default:
		return model.Passed
	}
}

// yellowAggregate derives the yellow-region verdict restricted to PRs on the
// inner-repositories allow-list. Only a terminated check can fail it.
func yellowAggregate(yellow *model.DevCloudCheck, prs []model.PRRef, snap ResolutionSnapshot) model.Status {
	if yellow == nil || yellow.TotalResult == nil {
		return model.Passed
	}

	inner := make(map[string]bool, len(prs))
	for _, pr := range prs {
		if _, gitURL := pr.RepoGitURL(); snap.innerRepo(gitURL) {
			inner[pr.URL] = true
		}
	}

	for key, items := range yellow.SubChecks {
		if !inner[decodeTwice(key)] {
			continue
		}
		for _, item := range items {
			if item.Result == model.BlueResultFail {
				return model.Failed
			}
		}
	}

	if !isPassToken(*yellow.TotalResult) && len(inner) > 0 {
		return model.Failed
	}
	return model.Passed
}

func isPassToken(result string) bool {
	return result == model.BlueResultPass || result == "passed" || result == "success"
}

// checkStartTime picks the timeout anchor: the yellow check's own start time
// when present, otherwise the event trigger time.
func checkStartTime(yellow *model.DevCloudCheck, ev *model.Event) string {
	if yellow != nil && yellow.StartedAt != "" {
		return yellow.StartedAt
	}
	return ev.Timestamp
}

// timedOut applies the 30-minute escalation. An unparseable start time counts
// as already elapsed so malformed data fails safe instead of passing.
func timedOut(start string, now time.Time) bool {
	t, err := timeutil.ParseFlexible(start)
	if err != nil {
		return true
	}
	return now.Sub(t) > checkTimeout
}

// decodeTwice reverses the double URL-encoding the yellow region applies to
// its sub-check keys. A key that does not decode is returned as-is.
func decodeTwice(s string) string {
	once, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	twice, err := url.QueryUnescape(once)
	if err != nil {
		return once
	}
	return twice
}

// ResolutionService resolves event statuses from the live region clients and
// the configuration snapshot fetched at each call boundary.
type ResolutionService struct {
	events driven.EventStore
	blue   driven.BlueRegionClient
	yellow driven.YellowRegionClient
	params driven.ParamStore
	logger *slog.Logger

	excludedRepoURL   string
	specialProject    string
	specialProjectURL string
}

// NewResolutionService creates a resolution service with the given
// dependencies. The exclusion URLs and special project come from static
// deployment configuration, not the parameter store.
func NewResolutionService(events driven.EventStore, blue driven.BlueRegionClient,
	yellow driven.YellowRegionClient, params driven.ParamStore, logger *slog.Logger,
	excludedRepoURL, specialProject, specialProjectURL string) *ResolutionService {
	return &ResolutionService{
		events:            events,
		blue:              blue,
		yellow:            yellow,
		params:            params,
		logger:            logger,
		excludedRepoURL:   excludedRepoURL,
		specialProject:    specialProject,
		specialProjectURL: specialProjectURL,
	}
}

// ResolveEvent looks up the event by UUID, fetches both region results, and
// resolves the final and per-PR statuses. A region fetch failure degrades to
// an absent result with a warning rather than failing the whole resolution.
func (s *ResolutionService) ResolveEvent(ctx context.Context, eventUUID string) (*model.Event, Resolution, error) {
	if _, err := uuid.Parse(eventUUID); err != nil {
		return nil, Resolution{}, fmt.Errorf("invalid event uuid %q: %w", eventUUID, err)
	}

	ev, err := s.events.MustGetByUUID(ctx, eventUUID)
	if err != nil {
		return nil, Resolution{}, fmt.Errorf("loading event %s: %w", eventUUID, err)
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, Resolution{}, err
	}

	blue, err := s.blue.FetchResults(ctx, eventUUID)
	if err != nil {
		s.logger.Warn("blue region fetch failed, treating results as absent",
			"uuid", eventUUID, "error", err)
		blue = nil
	}

	yellow, err := s.yellow.FetchCheck(ctx, eventUUID)
	if err != nil {
		s.logger.Warn("yellow region fetch failed, treating check as absent",
			"uuid", eventUUID, "error", err)
		yellow = nil
	}

	res := ResolveEventStatus(ev, blue, yellow, time.Now(), snap)
	return ev, res, nil
}

func (s *ResolutionService) loadSnapshot(ctx context.Context) (ResolutionSnapshot, error) {
	snap := ResolutionSnapshot{
		ExcludedRepoURL:   s.excludedRepoURL,
		SpecialProject:    s.specialProject,
		SpecialProjectURL: s.specialProjectURL,
	}

	params, err := s.params.GetCustomParameter(ctx, driven.ParamInnerRepos)
	if err != nil {
		return snap, fmt.Errorf("loading inner repositories: %w", err)
	}
	if raw, ok := params["gitUrls"]; ok {
		switch urls := raw.(type) {
		case []string:
			snap.InnerRepos = urls
		case []any:
			for _, u := range urls {
				if s, ok := u.(string); ok {
					snap.InnerRepos = append(snap.InnerRepos, s)
				}
			}
		}
	}
	return snap, nil
}
