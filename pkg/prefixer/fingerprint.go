package prefixer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/catherinevee/prodflow/pkg/account"
)

// ReleaseFingerprint produces the stable content-addressed key the fact
// cache indexes PR/release facts under for one repository's release-match
// configuration. The same account across a settings reload that resolves
// to byte-identical match rules collapses onto the same fingerprint, so a
// precomputed build is reused instead of remined. The account id is part
// of the hashed payload, so two different accounts never share one.
func ReleaseFingerprint(acc account.Account, repo account.RepoNodeID, settings account.ReleaseMatchSettings) string {
	data := fingerprintPayload(acc.ID, repo, settings)
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func fingerprintPayload(accID account.ID, repo account.RepoNodeID, settings account.ReleaseMatchSettings) string {
	return strings.Join([]string{
		fmt.Sprintf("account=%d", accID),
		fmt.Sprintf("repo=%s", repo),
		fmt.Sprintf("match=%s", settings.Match),
		fmt.Sprintf("tag_regexp=%s", settings.TagRegexp),
		fmt.Sprintf("branch_glob=%s", settings.BranchGlob),
	}, "|")
}

// SetFingerprint extends ReleaseFingerprint across a whole repository set,
// sorted by node id so the combined fingerprint is order-independent of
// map iteration.
func SetFingerprint(acc account.Account) string {
	repos := make([]account.RepoNodeID, 0, len(acc.RepositorySet.Repositories))
	for _, r := range acc.RepositorySet.Repositories {
		repos = append(repos, r.NodeID)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i] < repos[j] })

	var parts []string
	for _, repo := range repos {
		settings := acc.ReleaseSettings[repo]
		parts = append(parts, fingerprintPayload(acc.ID, repo, settings))
	}
	sum := md5.Sum([]byte(strings.Join(parts, "||")))
	return hex.EncodeToString(sum[:])
}
