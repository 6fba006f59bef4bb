package releaseminer

import "sort"

// reachable returns every commit sha reachable from start by following
// parent edges toward the root, start included. Grounded on
// dependency_graph.go's recursive visited-map DFS (TopologicalSort),
// walking parent edges instead of dependency edges.
func reachable(dag DAG, start string) map[string]bool {
	visited := make(map[string]bool)
	var visit func(sha string)
	visit = func(sha string) {
		if visited[sha] {
			return
		}
		visited[sha] = true
		for _, parent := range dag[sha] {
			visit(parent)
		}
	}
	visit(start)
	return visited
}

// AssignPRsToReleases walks the commit DAG from each release's commit
// toward the root, assigning every PR whose merge commit is an ancestor of
// that release's commit to the first (chronologically earliest) release
// that contains it, per spec §4.3. releases need not be pre-sorted; this
// function sorts a copy by PublishedAt ascending before walking.
func AssignPRsToReleases(dag DAG, releases []Release, prs []PR) []Assignment {
	sorted := make([]Release, len(releases))
	copy(sorted, releases)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PublishedAt.Before(sorted[j].PublishedAt) })

	unassigned := make(map[string]PR, len(prs))
	for _, pr := range prs {
		unassigned[pr.NodeID] = pr
	}

	var assignments []Assignment
	for _, rel := range sorted {
		if len(unassigned) == 0 {
			break
		}
		ancestors := reachable(dag, rel.CommitSHA)
		for id, pr := range unassigned {
			if ancestors[pr.MergeSHA] {
				assignments = append(assignments, Assignment{PRNodeID: id, ReleaseID: rel.ID})
				delete(unassigned, id)
			}
		}
	}
	return assignments
}
