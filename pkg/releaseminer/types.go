// Package releaseminer resolves release-match rules per repository, walks
// the commit DAG from HEAD toward root to assign each PR to the first
// release that contains it, and flags each repository-matchkind's earliest
// observed release so lead-time metrics can exclude it. Grounded on the
// teacher's internal/graph/dependency_graph.go — the map[string][]string
// adjacency representation and its recursive visited-map DFS
// (TopologicalSort), generalized from a dependency graph to a commit
// ancestry graph walked newest-to-oldest.
package releaseminer

import (
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
)

// ReleaseID is the stable metadata-store identity of a release (a tag or a
// branch-head commit, depending on MatchKind).
type ReleaseID string

// Release is one resolved release row.
type Release struct {
	ID            ReleaseID
	Repo          account.RepoNodeID
	Name          string
	CommitSHA     string
	MatchKind     account.MatchKind
	PublishedAt   time.Time
	CommitAuthors []account.UserNodeID
}

// DAG is the HEAD->ROOT commit adjacency for one repository: sha -> parent
// shas, exactly the shape pkg/factcache.CommitHistory persists.
type DAG map[string][]string

// PR is the minimal shape the release miner needs from a PR to assign it
// to a release: its merge commit and the time it merged.
type PR struct {
	NodeID    string
	MergeSHA  string
	MergedAt  time.Time
}

// Assignment ties a PR to the first release that contains its merge
// commit.
type Assignment struct {
	PRNodeID  string
	ReleaseID ReleaseID
}
