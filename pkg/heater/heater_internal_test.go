package heater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/prefixer"
	"github.com/catherinevee/prodflow/pkg/prminer"
)

func at(h int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
}

func TestMergeSHA_PicksChronologicallyLastCommit(t *testing.T) {
	b := prminer.PRBundle{Commits: []prminer.Commit{
		{SHA: "c1", At: at(0)},
		{SHA: "c3", At: at(5)},
		{SHA: "c2", At: at(2)},
	}}
	assert.Equal(t, "c3", mergeSHA(b))
}

func TestMergeSHA_EmptyCommitsReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", mergeSHA(prminer.PRBundle{}))
}

func TestGroupByRepo_PartitionsIndicesByRepoNode(t *testing.T) {
	bundles := []prminer.PRBundle{
		{NodeID: "pr1", RepoNode: "repo-a"},
		{NodeID: "pr2", RepoNode: "repo-b"},
		{NodeID: "pr3", RepoNode: "repo-a"},
	}
	byRepo := groupByRepo(bundles)
	require.Equal(t, []int{0, 2}, byRepo["repo-a"])
	require.Equal(t, []int{1}, byRepo["repo-b"])
}

func TestBotParticipants_MatchesGitHubBotSuffix(t *testing.T) {
	pfx := &prefixer.Prefixer{UserLogins: map[account.UserNodeID]string{
		"u1": "alice",
		"u2": "dependabot[bot]",
		"u3": "renovate[bot]",
	}}
	bots := botParticipants(pfx)
	assert.ElementsMatch(t, []account.UserNodeID{"u2", "u3"}, bots)
}

func TestPRCategory_ClassifiesByLifecycleStage(t *testing.T) {
	assert.Equal(t, factcache.CategoryOpen, prCategory(prminer.PRBundle{}))
	assert.Equal(t, factcache.CategoryMerged, prCategory(prminer.PRBundle{Times: prminer.Timestamps{Merged: at(1)}}))
	assert.Equal(t, factcache.CategoryDone, prCategory(prminer.PRBundle{Times: prminer.Timestamps{Merged: at(1), Released: at(2)}}))
}

func TestLookbackWindow_DefaultsToTwoYears(t *testing.T) {
	fixedNow := at(0)
	h := New(Config{}, Dependencies{Now: func() time.Time { return fixedNow }})
	win := h.lookbackWindow()
	assert.Equal(t, fixedNow.AddDate(-2, 0, 0), win.From)
	assert.Equal(t, fixedNow, win.To)
}

func TestLookbackWindow_HonorsConfiguredYears(t *testing.T) {
	fixedNow := at(0)
	h := New(Config{LookbackYears: 5}, Dependencies{Now: func() time.Time { return fixedNow }})
	win := h.lookbackWindow()
	assert.Equal(t, fixedNow.AddDate(-5, 0, 0), win.From)
}

func TestLookbackWindow_FullHistoryOnlyAppliesUnderCI(t *testing.T) {
	fixedNow := at(0)
	h := New(Config{FullHistoryInCI: true}, Dependencies{
		Now:  func() time.Time { return fixedNow },
		IsCI: func() bool { return false },
	})
	win := h.lookbackWindow()
	assert.Equal(t, fixedNow.AddDate(-2, 0, 0), win.From, "not running under CI, lookback should stay bounded")
}

func TestLookbackWindow_FullHistoryUnderCI(t *testing.T) {
	fixedNow := at(0)
	h := New(Config{FullHistoryInCI: true}, Dependencies{
		Now:  func() time.Time { return fixedNow },
		IsCI: func() bool { return true },
	})
	win := h.lookbackWindow()
	assert.True(t, win.From.IsZero(), "running under CI, lookback should cover full history")
}
