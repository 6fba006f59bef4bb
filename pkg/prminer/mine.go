package prminer

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// Request is the full set of mining parameters spec §4.2's contract names.
type Request struct {
	Window            Window
	Repos             []account.RepoNodeID
	Participants      *ParticipantFilter
	Labels            LabelFilter
	Blacklist         map[PRNodeID]bool
	ReleaseFingerprint string
	ExcludeInactive   bool
}

// cacheKey joins the mining inputs into the cache key: window, repos,
// blacklist, release fingerprint, the exclude_inactive flag, and the
// participant filter when set. Labels are left out, since label filtering
// is applied after the cached bundle set is read.
func (r Request) cacheKey() string {
	repos := make([]string, len(r.Repos))
	for i, repo := range r.Repos {
		repos[i] = string(repo)
	}
	sort.Strings(repos)

	blacklist := make([]string, 0, len(r.Blacklist))
	for id := range r.Blacklist {
		blacklist = append(blacklist, string(id))
	}
	sort.Strings(blacklist)

	parts := []string{
		r.Window.From.UTC().Format(time.RFC3339),
		r.Window.To.UTC().Format(time.RFC3339),
		strings.Join(repos, ","),
		strings.Join(blacklist, ","),
		r.ReleaseFingerprint,
		fmt.Sprintf("exclude_inactive=%v", r.ExcludeInactive),
	}
	if r.Participants != nil {
		roles := make([]string, len(r.Participants.Roles))
		for i, role := range r.Participants.Roles {
			roles[i] = string(role)
		}
		sort.Strings(roles)
		parts = append(parts, string(r.Participants.Users), strings.Join(roles, ","))
	}
	return strings.Join(parts, "|")
}

// Mine implements spec §4.2: candidate fetch honoring blacklist and
// participant filter, associated-row fetch, canonical timeline derivation,
// deferred label filtering, and optional inactive-PR elision. Label
// filtering and exclude_inactive are applied after the cached bundle set is
// retrieved, since they must never influence what gets cached (spec §4.2
// step 4's "PR attribution... never depends on labels").
func Mine(ctx context.Context, gw *storage.Gateway, cache *factcache.Cache, req Request) (iter.Seq[PRBundle], error) {
	bundles, err := mineUncached(ctx, gw, cache, req)
	if err != nil {
		return nil, err
	}

	return func(yield func(PRBundle) bool) {
		for _, b := range bundles {
			if !req.Labels.Matches(b.Labels) {
				continue
			}
			if req.ExcludeInactive && !activeIn(b, req.Window) {
				continue
			}
			if !yield(b) {
				return
			}
		}
	}, nil
}

func activeIn(b PRBundle, win Window) bool {
	stages := []time.Time{b.Times.Created, b.Times.FirstCommit, b.Times.LastCommit, b.Times.FirstReviewRequest, b.Times.LastReview, b.Times.Approved, b.Times.Merged, b.Times.Closed, b.Times.Released}
	for _, t := range stages {
		if !t.IsZero() && !t.Before(win.From) && !t.After(win.To) {
			return true
		}
	}
	return false
}

func mineUncached(ctx context.Context, gw *storage.Gateway, cache *factcache.Cache, req Request) ([]PRBundle, error) {
	key := req.cacheKey()
	build := func(ctx context.Context) ([]byte, error) {
		bundles, err := mineFresh(ctx, gw, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(bundles)
	}

	payload, err := cache.GetOrBuild(ctx, "pr_bundles", key, build)
	if err != nil {
		return nil, err
	}

	var bundles []PRBundle
	if err := json.Unmarshal(payload, &bundles); err != nil {
		return nil, apierr.Internal(fmt.Errorf("prminer: decode cached bundle set: %w", err))
	}
	return bundles, nil
}

func mineFresh(ctx context.Context, gw *storage.Gateway, req Request) ([]PRBundle, error) {
	candidates, err := fetchCandidates(ctx, gw, req.Repos, req.Window, req.Blacklist, nil)
	if err != nil {
		return nil, err
	}

	bundles := make([]PRBundle, 0, len(candidates))
	for _, pr := range candidates {
		events, commits, labels, err := fetchAssociated(ctx, gw, pr)
		if err != nil {
			return nil, err
		}
		if req.Participants != nil && !req.Participants.matchesRow(pr) && !req.Participants.matchesAssociated(events, commits) {
			continue
		}

		times := DeriveTimeline(pr, events, commits)
		if v := times.Valid(); v != "" {
			return nil, apierr.Internal(fmt.Errorf("prminer: %s violates invariant %s", pr.NodeID, v))
		}

		bundles = append(bundles, PRBundle{
			NodeID:   pr.NodeID,
			RepoNode: account.RepoNodeID(pr.RepoNode),
			Author:   account.UserNodeID(pr.Author),
			Merger:   account.UserNodeID(pr.Merger),
			Labels:   labels,
			Events:   events,
			Commits:  commits,
			Times:    times,
			Size:     Size{Additions: pr.Additions, Deletions: pr.Deletions, FilesChanged: pr.Files},
		})
	}
	return bundles, nil
}
