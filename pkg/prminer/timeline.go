package prminer

import (
	"sort"
	"time"
)

// PRRow is the subset of a pull request row the metadata store returns
// directly, independent of its associated commits/reviews/comments.
type PRRow struct {
	NodeID    PRNodeID
	RepoNode  string
	Author    string
	Merger    string
	Created   time.Time
	MergedAt  *time.Time
	ClosedAt  *time.Time
	Additions int
	Deletions int
	Files     int
}

// DeriveTimeline computes the canonical per-PR lifecycle facts from the raw
// rows fetched for it, per spec §3/§8. Missing stages are left as the zero
// Time (absent), never backfilled with a sentinel.
func DeriveTimeline(pr PRRow, events []Event, commits []Commit) Timestamps {
	t := Timestamps{Created: pr.Created}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	if len(commits) > 0 {
		byTime := make([]Commit, len(commits))
		copy(byTime, commits)
		sort.Slice(byTime, func(i, j int) bool { return byTime[i].At.Before(byTime[j].At) })
		t.FirstCommit = byTime[0].At
		t.LastCommit = byTime[len(byTime)-1].At
	}

	t.WorkBegan = t.Created
	if !t.FirstCommit.IsZero() && t.FirstCommit.Before(t.WorkBegan) {
		t.WorkBegan = t.FirstCommit
	}

	for _, e := range sorted {
		switch e.Kind {
		case "review_request":
			if t.FirstReviewRequest.IsZero() {
				t.FirstReviewRequest = e.At
			}
		case "comment":
			if !t.FirstReviewRequest.IsZero() && t.FirstCommentOnFirstReview.IsZero() && e.At.After(t.FirstReviewRequest) {
				t.FirstCommentOnFirstReview = e.At
			}
		case "review":
			if t.FirstReviewRequest.IsZero() || e.At.After(t.FirstReviewRequest) || e.At.Equal(t.FirstReviewRequest) {
				if t.FirstCommentOnFirstReview.IsZero() {
					t.FirstCommentOnFirstReview = e.At
				}
			}
			if t.LastReview.IsZero() || e.At.After(t.LastReview) {
				t.LastReview = e.At
			}
			if e.ReviewState == "approved" && (t.Approved.IsZero() || e.At.Before(t.Approved)) {
				t.Approved = e.At
			}
		}

		if !t.FirstCommit.IsZero() && e.At.Before(t.FirstCommit) {
			if t.LastCommitBeforeFirstReview.IsZero() && !t.FirstReviewRequest.IsZero() && e.At.Before(t.FirstReviewRequest) {
				t.LastCommitBeforeFirstReview = e.At
			}
		}
	}

	if pr.MergedAt != nil {
		t.Merged = *pr.MergedAt
	}
	if pr.ClosedAt != nil {
		t.Closed = *pr.ClosedAt
	}

	return t
}

// Has reports whether stage is present (non-zero) on t.
func (t Timestamps) Has(stage time.Time) bool {
	return !stage.IsZero()
}

// Valid enforces the spec §3 ordering invariants across present stages,
// returning the first violated constraint's description, or "" if all
// present stages are consistent.
func (t Timestamps) Valid() string {
	le := func(a, b time.Time, name string) string {
		if a.IsZero() || b.IsZero() {
			return ""
		}
		if a.After(b) {
			return name
		}
		return ""
	}

	if v := le(t.Created, t.FirstReviewRequest, "created<=first_review_request"); v != "" {
		return v
	}
	if v := le(t.FirstReviewRequest, t.FirstCommentOnFirstReview, "first_review_request<=first_comment_on_first_review"); v != "" {
		return v
	}
	if v := le(t.FirstCommentOnFirstReview, t.LastReview, "first_comment_on_first_review<=last_review"); v != "" {
		return v
	}
	if v := le(t.FirstCommentOnFirstReview, t.Approved, "first_comment_on_first_review<=approved"); v != "" {
		return v
	}
	if v := le(t.Approved, t.Merged, "approved<=merged"); v != "" {
		return v
	}
	if v := le(t.Merged, t.Released, "merged<=released"); v != "" {
		return v
	}
	if !t.Released.IsZero() && t.Merged.IsZero() {
		return "released_implies_merged"
	}
	if v := le(t.FirstCommit, t.LastCommit, "first_commit<=last_commit"); v != "" {
		return v
	}
	for _, stage := range []time.Time{t.Created, t.FirstReviewRequest, t.FirstCommentOnFirstReview, t.Approved, t.LastReview, t.Merged, t.FirstCommit, t.LastCommit} {
		if v := le(stage, t.Closed, "closed>=prior_stage"); v != "" {
			return v
		}
	}
	return ""
}
