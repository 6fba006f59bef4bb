// Package prefixer loads the per-account lookup maps every miner needs to
// turn metadata-store node identities into human-readable names, and
// derives the stable per-repository fingerprint the fact cache keys on.
// Grounded on the teacher's internal/tenant/account_manager.go settings
// loading and internal/fingerprint/resource_fingerprint.go's md5 content
// addressing, trimmed from that file's pattern-detection machinery down to
// its generateFingerprint idiom.
package prefixer

import (
	"context"
	"database/sql"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// Prefixer resolves a single account's node-identity lookup maps: the
// login a user node id displays as, and the full repository name a repo
// node id displays as. Built once per request/heater pass and reused
// across every miner call for that account.
type Prefixer struct {
	UserLogins map[account.UserNodeID]string
	RepoNames  map[account.RepoNodeID]string
}

// Load resolves the login/full-name maps for acc's repository set and its
// repository participants from the metadata store.
func Load(ctx context.Context, gw *storage.Gateway, acc account.Account) (*Prefixer, error) {
	p := &Prefixer{
		UserLogins: make(map[account.UserNodeID]string),
		RepoNames:  make(map[account.RepoNodeID]string),
	}

	for _, repo := range acc.RepositorySet.Repositories {
		p.RepoNames[repo.NodeID] = repo.FullName
	}

	err := gw.Query(ctx, gw.Metadata, "prefixer.load_users", func(ctx context.Context) error {
		rows, err := gw.Metadata.DB.QueryContext(ctx, `
			SELECT node_id, login FROM repository_participants WHERE account_id = ?
		`, acc.ID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var nodeID account.UserNodeID
			var login string
			if err := rows.Scan(&nodeID, &login); err != nil {
				return err
			}
			p.UserLogins[nodeID] = login
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apierr.Upstreamf(err, "prefixer: load user logins for account %d", acc.ID)
	}

	return p, nil
}

// Login returns the display login for a user node id, falling back to the
// raw node id when the metadata store has no record of it yet.
func (p *Prefixer) Login(id account.UserNodeID) string {
	if login, ok := p.UserLogins[id]; ok {
		return login
	}
	return string(id)
}

// RepoFullName returns the display full name for a repository node id,
// falling back to the raw node id when unresolved.
func (p *Prefixer) RepoFullName(id account.RepoNodeID) string {
	if name, ok := p.RepoNames[id]; ok {
		return name
	}
	return string(id)
}
