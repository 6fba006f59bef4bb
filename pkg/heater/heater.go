// Package heater runs the batch "pre-heating" pass that keeps an account's
// precomputed facts warm: it mines releases and pull-request facts for
// every repository an account tracks, and marks the repository set
// precomputed on first success. Grounded on the teacher's
// internal/discovery/engine.go batch-driver shape (per-job goroutine, each
// job writing its outcome into its own pre-allocated result slot, one job's
// failure never blocks its siblings) and internal/infrastructure/config's env-var override
// idiom for the CI full-history toggle.
package heater

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/accountstore"
	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/obslog"
	"github.com/catherinevee/prodflow/pkg/prefixer"
	"github.com/catherinevee/prodflow/pkg/prminer"
	"github.com/catherinevee/prodflow/pkg/releaseminer"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// Config mirrors pkg/config.HeaterConfig's tunables so this package stays
// free of a direct dependency on the config loader.
type Config struct {
	Concurrency     int
	LookbackYears   int
	FullHistoryInCI bool
	CreateBotsTeam  bool
	LabelSyncBatch  int
	FormatVersion   int
}

// TeamCreator is the narrow hook the heater uses to materialize a
// synthetic "Bots" team from an account's bot participants. Left as an
// interface since team storage is account.Store's concern, not this
// package's.
type TeamCreator interface {
	EnsureBotsTeam(ctx context.Context, accountID account.ID, members []account.UserNodeID) error
}

// Dependencies collects everything one heater Run needs. Now defaults to
// time.Now when left nil.
type Dependencies struct {
	Accounts    account.Store
	Storage     *storage.Gateway
	Cache       *factcache.Cache
	PRFacts     *factcache.PRFactsRepo
	Notifier    Notifier
	TeamCreator TeamCreator
	// Secrets, if set, is consulted once per account before mining to
	// confirm its GitHub App installation credentials are present and
	// its installation JWT can actually be minted. Left nil skips the
	// check entirely (e.g. in tests and --dry-run, where no Vault-backed
	// secret store is configured).
	Secrets accountstore.Store
	Logger  obslog.Logger
	Now         func() time.Time
	IsCI        func() bool
	// Progress, if set, is called once per account immediately after its
	// outcome is known, in addition to the outcome landing in the returned
	// Report. Lets a caller stream per-account progress (e.g. to a
	// websocket-connected operator console) without waiting for the whole
	// batch to finish.
	Progress func(AccountOutcome)
}

// Heater drives the batch pre-heating pass.
type Heater struct {
	cfg  Config
	deps Dependencies
}

// New builds a Heater. A nil deps.Now is replaced with time.Now, and a nil
// deps.Logger with a component logger, so callers can omit both in tests.
func New(cfg Config, deps Dependencies) *Heater {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = obslog.New("heater")
	}
	if deps.IsCI == nil {
		deps.IsCI = isCI
	}
	return &Heater{cfg: cfg, deps: deps}
}

// AccountOutcome is one account's result from a Run.
type AccountOutcome struct {
	AccountID       account.ID
	ReleasesMined   int
	PRsMined        int
	DeploymentsSeen int
	Err             error
}

// Report is the full batch result: every account's outcome, in the order
// Accounts.Active returned them.
type Report struct {
	Outcomes []AccountOutcome
}

// Failures returns the subset of outcomes that errored.
func (r Report) Failures() []AccountOutcome {
	var out []AccountOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Run iterates every active account and heats it. One account's failure is
// logged and recorded in the returned Report, never aborting the batch —
// the same per-job error isolation the teacher's DiscoverResourcesParallel
// uses for provider jobs.
func (h *Heater) Run(ctx context.Context) (Report, error) {
	accounts, err := h.deps.Accounts.Active(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("heater: list active accounts: %w", err)
	}

	outcomes := make([]AccountOutcome, len(accounts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(1, h.cfg.Concurrency))

	for i, acc := range accounts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, acc account.Account) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := h.runAccount(ctx, acc)
			outcomes[i] = outcome
			if outcome.Err != nil {
				h.deps.Logger.Error("heater: account failed", obslog.AccountID(int64(acc.ID)), obslog.Any("error", outcome.Err.Error()))
			}
			if h.deps.Progress != nil {
				h.deps.Progress(outcome)
			}
		}(i, acc)
	}
	wg.Wait()

	return Report{Outcomes: outcomes}, nil
}

// runAccount heats a single account: release mining, PR-facts mining,
// optional Bots team creation, and an announce notification. Every step
// past prefixer load is best-effort per repository; the first hard error
// aborts the account (but never the batch).
func (h *Heater) runAccount(ctx context.Context, acc account.Account) AccountOutcome {
	out := AccountOutcome{AccountID: acc.ID}
	logger := h.deps.Logger.WithFields(obslog.AccountID(int64(acc.ID)))

	if h.deps.Secrets != nil {
		h.checkCredentials(ctx, acc, logger)
	}

	pfx, err := prefixer.Load(ctx, h.deps.Storage, acc)
	if err != nil {
		out.Err = fmt.Errorf("load prefixer: %w", err)
		return out
	}

	bundles, err := h.mineBundles(ctx, acc)
	if err != nil {
		out.Err = fmt.Errorf("mine pr bundles: %w", err)
		return out
	}
	byRepo := groupByRepo(bundles)

	var releases, deployments int
	for _, repo := range acc.RepositorySet.Repositories {
		n, err := h.mineReleasesForRepo(ctx, acc, repo, pfx, bundles, byRepo[repo.NodeID])
		if err != nil {
			logger.Warn("heater: release mining failed for repository", obslog.String("repository", string(repo.NodeID)), obslog.Any("error", err.Error()))
			continue
		}
		releases += n

		d, err := countDeployments(ctx, h.deps.Storage, repo.NodeID)
		if err != nil {
			logger.Warn("heater: deployment read failed for repository", obslog.String("repository", string(repo.NodeID)), obslog.Any("error", err.Error()))
			continue
		}
		deployments += d
	}
	out.ReleasesMined = releases
	out.DeploymentsSeen = deployments

	prCount, err := h.persistBundles(ctx, bundles)
	if err != nil {
		out.Err = fmt.Errorf("persist pr facts: %w", err)
		return out
	}
	out.PRsMined = prCount

	if h.cfg.CreateBotsTeam && h.deps.TeamCreator != nil {
		bots := botParticipants(pfx)
		if err := h.deps.TeamCreator.EnsureBotsTeam(ctx, acc.ID, bots); err != nil {
			logger.Warn("heater: bots team creation failed", obslog.Any("error", err.Error()))
		}
	}

	if err := h.deps.Accounts.MarkPrecomputed(ctx, acc.ID); err != nil {
		out.Err = fmt.Errorf("mark precomputed: %w", err)
		return out
	}

	if h.deps.Notifier != nil {
		event := Event{AccountID: acc.ID, AccountName: acc.Name, ReleasesMined: releases, PRsMined: prCount}
		if err := h.deps.Notifier.Announce(ctx, event); err != nil {
			logger.Warn("heater: announce failed", obslog.Any("error", err.Error()))
		}
	}

	return out
}

// checkCredentials resolves the account's GitHub App secrets and mints a
// trial installation JWT, logging a warning (never aborting the account)
// if the credential bundle is missing or malformed. This is a readiness
// check only: nothing in this pipeline makes a live GitHub API call with
// the minted token, since ingestion is out of this repository's scope.
func (h *Heater) checkCredentials(ctx context.Context, acc account.Account, logger obslog.Logger) {
	secrets, err := h.deps.Secrets.GetSecrets(ctx, acc.ID)
	if err != nil {
		logger.Warn("heater: github app credentials unavailable", obslog.Any("error", err.Error()))
		return
	}
	if _, err := accountstore.IssueInstallationJWT(secrets, h.deps.Now()); err != nil {
		logger.Warn("heater: github app installation jwt could not be minted", obslog.Any("error", err.Error()))
	}
}

// botParticipants returns every resolved user whose login carries
// GitHub's "[bot]" app-account suffix, the heuristic spec §4.6's "Bots"
// team is built from in the absence of a dedicated bot-detection service.
func botParticipants(pfx *prefixer.Prefixer) []account.UserNodeID {
	var bots []account.UserNodeID
	for id, login := range pfx.UserLogins {
		if strings.HasSuffix(login, "[bot]") {
			bots = append(bots, id)
		}
	}
	return bots
}

// mineBundles mines every tracked repository's PR facts over the
// configured lookback window (or full history when FullHistoryInCI is set
// and the process is running under CI, matching the teacher's env-gated
// behavior), materializing the mined sequence since release assignment
// below needs a second, per-repository pass over it.
func (h *Heater) mineBundles(ctx context.Context, acc account.Account) ([]prminer.PRBundle, error) {
	repos := make([]account.RepoNodeID, 0, len(acc.RepositorySet.Repositories))
	for _, r := range acc.RepositorySet.Repositories {
		repos = append(repos, r.NodeID)
	}
	if len(repos) == 0 {
		return nil, nil
	}

	seq, err := prminer.Mine(ctx, h.deps.Storage, h.deps.Cache, prminer.Request{
		Window: h.lookbackWindow(),
		Repos:  repos,
	})
	if err != nil {
		return nil, err
	}

	var bundles []prminer.PRBundle
	for b := range seq {
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func groupByRepo(bundles []prminer.PRBundle) map[account.RepoNodeID][]int {
	byRepo := make(map[account.RepoNodeID][]int)
	for i, b := range bundles {
		byRepo[b.RepoNode] = append(byRepo[b.RepoNode], i)
	}
	return byRepo
}

// mineReleasesForRepo resolves repo's release-match candidates, walks the
// commit DAG to assign each already-mined, already-merged PR to the first
// release that contains it, and writes the assignment back onto the
// matching entries in bundles so persistBundles stores it.
func (h *Heater) mineReleasesForRepo(ctx context.Context, acc account.Account, repo account.Repository, pfx *prefixer.Prefixer, bundles []prminer.PRBundle, indices []int) (int, error) {
	settings, ok := acc.ReleaseSettings[repo.NodeID]
	if !ok {
		return 0, nil
	}

	candidates, err := releaseminer.FetchCandidates(ctx, h.deps.Storage, repo.NodeID)
	if err != nil {
		return 0, fmt.Errorf("fetch candidates: %w", err)
	}
	releases, err := releaseminer.ResolveMatches(repo.NodeID, settings, candidates)
	if err != nil {
		return 0, fmt.Errorf("resolve matches: %w", err)
	}

	dag, err := releaseminer.FetchDAG(ctx, h.deps.Storage, h.deps.PRFacts, pfx.RepoFullName(repo.NodeID), h.cfg.FormatVersion)
	if err != nil {
		return 0, fmt.Errorf("fetch dag: %w", err)
	}

	hidden := releaseminer.HideFirstReleases(releases)
	byID := make(map[releaseminer.ReleaseID]releaseminer.Release, len(releases))
	for _, r := range releases {
		byID[r.ID] = r
	}

	var mergedPRs []releaseminer.PR
	for _, i := range indices {
		b := bundles[i]
		if sha := mergeSHA(b); sha != "" {
			mergedPRs = append(mergedPRs, releaseminer.PR{NodeID: string(b.NodeID), MergeSHA: sha, MergedAt: b.Times.Merged})
		}
	}

	assignedByPR := make(map[string]releaseminer.ReleaseID, len(mergedPRs))
	for _, a := range releaseminer.AssignPRsToReleases(dag, releases, mergedPRs) {
		assignedByPR[a.PRNodeID] = a.ReleaseID
	}

	// hidden marks each repository-matchkind's earliest release. It is only
	// logged here; no calculator in pkg/metrics reads it, so the flagged
	// releases are not removed from any metric. The assignment itself is
	// stored regardless.
	if len(hidden) > 0 {
		h.deps.Logger.Debug("heater: earliest releases flagged for lead-time exclusion", obslog.String("repository", string(repo.NodeID)), obslog.Int("count", len(hidden)))
	}

	for _, i := range indices {
		relID, ok := assignedByPR[string(bundles[i].NodeID)]
		if !ok {
			continue
		}
		rel := byID[relID]
		bundles[i].Release = prminer.ReleaseLink{ReleaseID: string(rel.ID), MatchKind: rel.MatchKind, PublishedAt: rel.PublishedAt}
	}

	return len(releases), nil
}

// mergeSHA derives a PR's merge commit as the SHA of its chronologically
// last mined commit, since prminer.PRBundle doesn't carry a dedicated
// merge-commit field and the release miner's DAG walk only needs one
// ancestor to start from.
func mergeSHA(b prminer.PRBundle) string {
	var latest prminer.Commit
	for _, c := range b.Commits {
		if latest.SHA == "" || c.At.After(latest.At) {
			latest = c
		}
	}
	return latest.SHA
}

// persistBundles writes every mined PR bundle's derived timestamps,
// diff footprint, and (if assigned above) release link to PRFactsRepo.
func (h *Heater) persistBundles(ctx context.Context, bundles []prminer.PRBundle) (int, error) {
	count := 0
	for _, b := range bundles {
		row := factcache.PRFactsRow{
			PRNodeID:      string(b.NodeID),
			ReleaseMatch:  string(b.Release.MatchKind),
			FormatVersion: h.cfg.FormatVersion,
			Category:      prCategory(b),
			Labels:        b.Labels,
		}
		payload, err := marshalTimestamps(b)
		if err != nil {
			return count, fmt.Errorf("marshal pr %s: %w", b.NodeID, err)
		}
		row.Payload = payload
		if err := h.deps.PRFacts.Upsert(ctx, row); err != nil {
			return count, fmt.Errorf("upsert pr %s: %w", b.NodeID, err)
		}
		count++
	}
	return count, nil
}

func prCategory(b prminer.PRBundle) factcache.PRCategory {
	switch {
	case !b.Times.Released.IsZero():
		return factcache.CategoryDone
	case !b.Times.Merged.IsZero():
		return factcache.CategoryMerged
	default:
		return factcache.CategoryOpen
	}
}

func (h *Heater) lookbackWindow() prminer.Window {
	now := h.deps.Now()
	years := h.cfg.LookbackYears
	if years <= 0 {
		years = 2
	}
	if h.cfg.FullHistoryInCI && h.deps.IsCI() {
		return prminer.Window{From: time.Time{}, To: now}
	}
	return prminer.Window{From: now.AddDate(-years, 0, 0), To: now}
}
