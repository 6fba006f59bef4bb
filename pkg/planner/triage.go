package planner

import (
	"fmt"

	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/metrics"
)

// Registries is the planner's view of the three metric-family tables it
// triages names against (spec §4.1). Assembling them is the caller's job
// (typically metrics.DefaultPRRegistry and friends), keeping pkg/planner
// free of a direct dependency on any calculator implementation.
type Registries struct {
	PR      metrics.PRRegistry
	Release metrics.ReleaseRegistry
	JIRA    metrics.JIRARegistry
}

// Triage routes each name in names to exactly one family, or fails the
// whole batch with a field-precise request_invalid error the moment it
// sees a name in none of the three registries (spec §4.1's "any unknown
// metric fails the whole request").
func (r Registries) Triage(names []string) (pr, release, jira []string, err error) {
	for _, name := range names {
		switch {
		case r.PR.Has(name):
			pr = append(pr, name)
		case r.Release.Has(name):
			release = append(release, name)
		case r.JIRA.Has(name):
			jira = append(jira, name)
		default:
			return nil, nil, nil, apierr.Invalid(".metrics", fmt.Sprintf("unknown metric %q", name))
		}
	}
	return pr, release, jira, nil
}
