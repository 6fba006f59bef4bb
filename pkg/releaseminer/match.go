package releaseminer

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
)

// RawRef is a candidate tag, branch head, or release event fetched from
// the metadata store, before it has been checked against an account's
// release-match settings.
type RawRef struct {
	Name    string // tag name, branch name, or release event title
	SHA     string
	At      time.Time
	Authors []account.UserNodeID
}

// ResolveMatches filters candidates down to the releases settings
// actually selects for repo, per its MatchKind.
func ResolveMatches(repo account.RepoNodeID, settings account.ReleaseMatchSettings, candidates []RawRef) ([]Release, error) {
	switch settings.Match {
	case account.MatchTag:
		return matchByTagRegexp(repo, settings.TagRegexp, candidates)
	case account.MatchBranch:
		return matchByBranchGlob(repo, settings.BranchGlob, candidates)
	case account.MatchEvent:
		return matchByEvent(repo, candidates), nil
	case account.MatchTagOrBranch:
		tagRel, err := matchByTagRegexp(repo, settings.TagRegexp, candidates)
		if err != nil {
			return nil, err
		}
		branchRel, err := matchByBranchGlob(repo, settings.BranchGlob, candidates)
		if err != nil {
			return nil, err
		}
		return append(tagRel, branchRel...), nil
	default:
		return nil, apierr.Invalid("/release_settings/match", "unrecognized release match kind")
	}
}

func matchByTagRegexp(repo account.RepoNodeID, pattern string, candidates []RawRef) ([]Release, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apierr.Invalidf("/release_settings/tag_regexp", "invalid tag regexp: %v", err)
	}
	var out []Release
	for _, c := range candidates {
		if re.MatchString(c.Name) {
			out = append(out, toRelease(repo, account.MatchTag, c))
		}
	}
	return out, nil
}

func matchByBranchGlob(repo account.RepoNodeID, glob string, candidates []RawRef) ([]Release, error) {
	var out []Release
	for _, c := range candidates {
		matched, err := filepath.Match(glob, c.Name)
		if err != nil {
			return nil, apierr.Invalidf("/release_settings/branch_glob", "invalid branch glob: %v", err)
		}
		if matched {
			out = append(out, toRelease(repo, account.MatchBranch, c))
		}
	}
	return out, nil
}

func matchByEvent(repo account.RepoNodeID, candidates []RawRef) []Release {
	out := make([]Release, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, toRelease(repo, account.MatchEvent, c))
	}
	return out
}

func toRelease(repo account.RepoNodeID, kind account.MatchKind, c RawRef) Release {
	return Release{
		ID:            ReleaseID(string(repo) + "@" + c.SHA),
		Repo:          repo,
		Name:          c.Name,
		CommitSHA:     c.SHA,
		MatchKind:     kind,
		PublishedAt:   c.At,
		CommitAuthors: c.Authors,
	}
}
