package releaseminer

import "github.com/catherinevee/prodflow/pkg/account"

// HideFirstReleases returns the set of release ids that are the earliest
// observed release for their (repository, match-kind) pair: the first
// release after onboarding an account usually bundles years of unreleased
// work and would skew lead-time numbers. The set is only computed here;
// neither the request planner nor pkg/metrics reads it, so no metric
// currently excludes these releases.
func HideFirstReleases(releases []Release) map[ReleaseID]bool {
	type key struct {
		repo account.RepoNodeID
		kind account.MatchKind
	}
	earliest := make(map[key]Release)

	for _, rel := range releases {
		k := key{rel.Repo, rel.MatchKind}
		if cur, ok := earliest[k]; !ok || rel.PublishedAt.Before(cur.PublishedAt) {
			earliest[k] = rel
		}
	}

	hidden := make(map[ReleaseID]bool, len(earliest))
	for _, rel := range earliest {
		hidden[rel.ID] = true
	}
	return hidden
}
