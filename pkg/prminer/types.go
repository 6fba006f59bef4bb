// Package prminer mines pull-request facts for the planner and the heater.
// Candidate enumeration and the fetch-then-filter shape are grounded on the
// teacher's internal/discovery/engine.go (cache-check before fetch,
// provider-keyed fan-out); the canonical timeline derivation is new, built
// to the lifecycle invariants spec §3/§8 require, following
// original_source's athenian.api.controllers.miners.github package (no
// direct file survived distillation, but test_pull_request.py documents the
// expected field semantics this package reproduces).
package prminer

import (
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
)

// PRNodeID is the stable metadata-store identity of a pull request.
type PRNodeID string

// Role is a participation role used by the participant filter.
type Role string

const (
	RoleAuthor         Role = "author"
	RoleReviewer       Role = "reviewer"
	RoleCommitAuthor   Role = "commit_author"
	RoleCommitCommitter Role = "commit_committer"
	RoleCommenter      Role = "commenter"
	RoleMerger         Role = "merger"
)

// ParticipantFilter restricts mining to PRs touched by any of Users in any
// of Roles (an empty Roles set means "any role").
type ParticipantFilter struct {
	Users account.UserNodeID
	Roles []Role
}

// LabelFilter is the deferred include/exclude label predicate (spec §4.2
// step 4). Each inner slice is a disjunction; outer slices are ANDed, so
// Include = [["a","b"],["c"]] reads "(a OR b) AND c".
type LabelFilter struct {
	Include [][]string
	Exclude []string
}

// Window is the closed activity window [From, To] a mining call covers.
type Window struct {
	From time.Time
	To   time.Time
}

// Overlaps reports whether a PR's activity span intersects the window.
func (w Window) Overlaps(activityFrom, activityTo time.Time) bool {
	return !activityTo.Before(w.From) && !activityFrom.After(w.To)
}

// Timestamps holds the lifecycle stages spec §3 names. A zero Time means
// the stage is absent, never "zero as a sentinel value" — callers must
// check Has before reading a field they need present.
type Timestamps struct {
	Created                 time.Time
	FirstCommit              time.Time
	LastCommit               time.Time
	WorkBegan                time.Time
	LastCommitBeforeFirstReview time.Time
	FirstReviewRequest       time.Time
	FirstCommentOnFirstReview time.Time
	Approved                 time.Time
	LastReview               time.Time
	Merged                   time.Time
	Closed                   time.Time
	Released                 time.Time
}

// Size is the PR's diff footprint.
type Size struct {
	Additions    int
	Deletions    int
	FilesChanged int
}

// Event is a raw timeline-relevant row fetched from the metadata store:
// a commit, review, review request, comment, or label change, normalized
// to a single shape so Mine can sort them chronologically before deriving
// Timestamps.
type Event struct {
	Kind      string // "commit" | "review" | "review_request" | "comment" | "label" | "merge"
	At        time.Time
	Actor     account.UserNodeID
	ReviewState string // "approved" | "changes_requested" | "commented", set only for Kind=="review"
}

// Commit is one commit reachable from the PR's head ref.
type Commit struct {
	SHA       string
	Author    account.UserNodeID
	Committer account.UserNodeID
	At        time.Time
}

// ReleaseLink ties a PR to the release that first contains it, set by the
// release miner; absent (ReleaseID == "") until that pass runs.
type ReleaseLink struct {
	ReleaseID    string
	MatchKind    account.MatchKind
	PublishedAt  time.Time
}

// PRBundle is the per-PR mining result spec §4.2 names: the raw rows plus
// the derived lifecycle facts.
type PRBundle struct {
	NodeID   PRNodeID
	RepoNode account.RepoNodeID
	Author   account.UserNodeID
	Merger   account.UserNodeID
	Labels   map[string]string // label name -> color, case preserved as stored

	Events  []Event
	Commits []Commit
	Release ReleaseLink

	Times Timestamps
	Size  Size
}
