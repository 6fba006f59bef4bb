// Package external defines the abstract shapes of the system's five
// caller-facing request/response pairs (spec §6) as plain Go
// interfaces/structs with no transport bound to them. The HTTP/GraphQL
// surface, auth middleware, and OpenAPI model classes that would normally
// carry these across a wire are out of scope; this package is the
// boundary a transport layer would sit behind, and the boundary the
// planner and miners sit in front of.
package external

import (
	"context"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/checkrun"
	"github.com/catherinevee/prodflow/pkg/metrics"
	"github.com/catherinevee/prodflow/pkg/planner"
)

// DateRange is the inclusive day-resolution range the filter* requests
// share, mirroring the original source's bare date_from/date_to pair.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Service is every caller-facing operation the core pipeline exposes.
// A transport adapter (HTTP handler, GraphQL resolver) implements its
// wire format in terms of this interface; none of this package's callers
// need to know which.
type Service interface {
	// MetricsCurrentValues computes one value per (metric, team, interval)
	// cell the request names, by way of the planner.
	MetricsCurrentValues(ctx context.Context, accountID account.ID, req MetricsCurrentValuesRequest) (MetricsCurrentValuesResponse, error)
	// FilterPullRequests lists PRs matching the given window and filters,
	// with per-stage timings and participants attached.
	FilterPullRequests(ctx context.Context, accountID account.ID, req FilterPullRequestsRequest) (FilterPullRequestsResponse, error)
	// FilterCommits lists commits matching the given window and property.
	FilterCommits(ctx context.Context, accountID account.ID, req FilterCommitsRequest) (FilterCommitsResponse, error)
	// FilterReleases lists releases matching the given window, with stats.
	FilterReleases(ctx context.Context, accountID account.ID, req FilterReleasesRequest) (FilterReleasesResponse, error)
	// FilterCheckRuns returns a timeline plus per-(repository,name) stats.
	FilterCheckRuns(ctx context.Context, accountID account.ID, req FilterCheckRunsRequest) (FilterCheckRunsResponse, error)
}

// MetricsCurrentValuesRequest asks for a set of metrics over one team,
// evaluated as of ValidFrom through ExpiresAt — spec §6's
// `metricsCurrentValues(accountId, { teamId, metrics[], validFrom,
// expiresAt })`.
type MetricsCurrentValuesRequest struct {
	TeamID     int64
	Metrics    []string
	ValidFrom  time.Time
	ExpiresAt  time.Time
}

// Validate enforces spec §4.1's error conditions ahead of planning: the
// window must not be inverted, and ValidFrom must not be in the future
// relative to now. `ValidFrom == ExpiresAt` is explicitly permitted (spec
// §8's boundary behavior) and yields an empty-but-well-formed window.
func (r MetricsCurrentValuesRequest) Validate(now time.Time) error {
	if r.ValidFrom.After(r.ExpiresAt) {
		return apierr.Invalid(".valid_from", "valid_from must not be after expires_at")
	}
	if r.ValidFrom.After(now) {
		return apierr.Invalid(".valid_from", "valid_from must not be in the future")
	}
	return nil
}

// MetricValues is one metric's value for every team in a TeamTree, spec
// §6's "teamTree-with-values" result shape flattened to a single root
// team (the planner's Result already carries the per-team breakdown).
type MetricValues struct {
	Metric string
	Values map[int64]metrics.Value // team id -> value
}

// MetricsCurrentValuesResponse is the array of per-metric results spec §6
// names, one entry per requested metric name.
type MetricsCurrentValuesResponse struct {
	Metrics []MetricValues
}

// ToRequest lowers a validated MetricsCurrentValuesRequest into the
// planner's Request shape over a single interval [ValidFrom, ExpiresAt],
// scoped to the one team this request names.
func (r MetricsCurrentValuesRequest) ToRequest(members []account.UserNodeID) planner.Request {
	return planner.Request{
		Metrics:   r.Metrics,
		Intervals: []planner.Interval{{From: r.ValidFrom, To: r.ExpiresAt}},
		Teams:     map[int64][]account.UserNodeID{r.TeamID: members},
	}
}

// FromResult lifts a planner.Result back into this request's response
// shape, collapsing the single [ValidFrom, ExpiresAt] interval the
// request evaluated and keeping only r.TeamID's column, one
// MetricValues entry per requested metric name (in request order, so an
// unmatched metric still surfaces as a present-but-empty entry rather
// than silently vanishing).
func (r MetricsCurrentValuesRequest) FromResult(result planner.Result) MetricsCurrentValuesResponse {
	iv := planner.Interval{From: r.ValidFrom, To: r.ExpiresAt}
	byMetric := result[iv]

	resp := MetricsCurrentValuesResponse{Metrics: make([]MetricValues, 0, len(r.Metrics))}
	for _, name := range r.Metrics {
		mv := MetricValues{Metric: name, Values: make(map[int64]metrics.Value)}
		if v, ok := byMetric[name][r.TeamID]; ok {
			mv.Values[r.TeamID] = v
		}
		resp.Metrics = append(resp.Metrics, mv)
	}
	return resp
}

// Role mirrors spec §6's `with:{role→logins[]}` participant filter keys.
type Role string

const (
	RoleAuthor     Role = "author"
	RoleReviewer   Role = "reviewer"
	RoleCommenter  Role = "commenter"
	RoleMerger     Role = "merger"
)

// FilterPullRequestsRequest is spec §6's `filterPullRequests` shape.
type FilterPullRequestsRequest struct {
	Window          DateRange
	Repositories    []account.RepoNodeID
	Properties      []string
	With            map[Role][]account.UserNodeID
	LabelsInclude   [][]string
	LabelsExclude   []string
	ExcludeInactive bool
}

// PullRequestSummary is one row of FilterPullRequestsResponse: a PR with
// its participants and per-stage timings, the shape spec §6 names
// "list of PRs with participants and per-stage timings."
type PullRequestSummary struct {
	NodeID       string
	Repository   account.RepoNodeID
	Author       account.UserNodeID
	Participants map[Role][]account.UserNodeID
	Labels       map[string]string
	Stages       map[string]time.Time // stage name -> timestamp, absent stages omitted
}

// FilterPullRequestsResponse is the list FilterPullRequests returns.
type FilterPullRequestsResponse struct {
	PullRequests []PullRequestSummary
}

// CommitProperty is spec §6's `property ∈ {bypassing_prs, no_pr_merges,
// everything}` commit filter discriminant.
type CommitProperty string

const (
	CommitPropertyBypassingPRs CommitProperty = "bypassing_prs"
	CommitPropertyNoPRMerges   CommitProperty = "no_pr_merges"
	CommitPropertyEverything   CommitProperty = "everything"
)

// FilterCommitsRequest is spec §6's `filterCommits` shape.
type FilterCommitsRequest struct {
	Window        DateRange
	Repositories  []account.RepoNodeID
	Property      CommitProperty
	WithAuthor    []account.UserNodeID
	WithCommitter []account.UserNodeID
}

// CommitSummary is one row of FilterCommitsResponse, carrying the
// included-user avatars spec §6 names (modeled here as resolved logins;
// avatar URLs are a presentation-layer concern this package doesn't own).
type CommitSummary struct {
	SHA           string
	Repository    account.RepoNodeID
	Author        account.UserNodeID
	Committer     account.UserNodeID
	AuthoredAt    time.Time
	BypassedPR    bool
}

// FilterCommitsResponse is the list FilterCommits returns.
type FilterCommitsResponse struct {
	Commits []CommitSummary
}

// FilterReleasesRequest is spec §6's `filterReleases` shape.
type FilterReleasesRequest struct {
	Window       DateRange
	Repositories []account.RepoNodeID
}

// ReleaseSummary is one row of FilterReleasesResponse.
type ReleaseSummary struct {
	ID           string
	Repository   account.RepoNodeID
	Name         string
	MatchKind    account.MatchKind
	PublishedAt  time.Time
	Authors      []account.UserNodeID
	PullRequests int
}

// FilterReleasesResponse is the list FilterReleases returns.
type FilterReleasesResponse struct {
	Releases []ReleaseSummary
}

// FilterCheckRunsRequest is spec §6's `filterCheckRuns` shape. Quantiles
// is the [lo, hi] trim fraction pkg/checkrun.Aggregate uses to compute
// mean_execution_time.
type FilterCheckRunsRequest struct {
	Window       DateRange
	Repositories []account.RepoNodeID
	Pushers      []account.UserNodeID
	Quantiles    [2]float64
}

// FilterCheckRunsResponse is the `(timeline[], list of per-(repo,name)
// stats)` pair spec §6 names, carried straight from pkg/checkrun's
// aggregation result.
type FilterCheckRunsResponse struct {
	Groups []checkrun.GroupResult
}
