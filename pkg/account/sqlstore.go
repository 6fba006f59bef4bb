package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/storage"
)

// SQLStore is the tenant-state-store-backed Store this package's doc
// comment promises: accounts persist across process restarts, unlike
// Registry. Repository set, release settings, JIRA installation, and
// feature flags are stored as opaque JSON blobs (the same "durable
// payload, queryable columns pulled out alongside it" shape
// pkg/factcache.PRFactsRow uses), since none of those need independent
// SQL predicates — only ID, Name, and ExpiresAt do.
type SQLStore struct {
	store *storage.Store
	gw    *storage.Gateway
}

// NewSQLStore builds a Store over the state store, ensuring its schema
// exists.
func NewSQLStore(ctx context.Context, gw *storage.Gateway) (*SQLStore, error) {
	s := &SQLStore{store: gw.State, gw: gw}
	if err := s.store.WithWriteLock(func() error { return s.migrate() }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.store.DB.Exec(`
	CREATE TABLE IF NOT EXISTS accounts (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		repository_set    TEXT NOT NULL DEFAULT '{}',
		release_settings  TEXT NOT NULL DEFAULT '{}',
		jira_installation TEXT,
		feature_flags     TEXT NOT NULL DEFAULT '{}',
		expires_at        TIMESTAMP NOT NULL
	);
	`)
	return err
}

// Put inserts or replaces an account, the SQL-backed counterpart of
// Registry.Put. Not part of Store; used by account provisioning/the
// invitation-acceptance flow this package's doc comment calls out as the
// lifecycle entry point (spec §3, out of scope to implement here).
func (s *SQLStore) Put(ctx context.Context, a Account) error {
	repoSetJSON, err := json.Marshal(a.RepositorySet)
	if err != nil {
		return fmt.Errorf("marshal repository_set: %w", err)
	}
	releaseJSON, err := json.Marshal(a.ReleaseSettings)
	if err != nil {
		return fmt.Errorf("marshal release_settings: %w", err)
	}
	var jiraJSON []byte
	if a.JIRAInstallation != nil {
		jiraJSON, err = json.Marshal(a.JIRAInstallation)
		if err != nil {
			return fmt.Errorf("marshal jira_installation: %w", err)
		}
	}
	flagsJSON, err := json.Marshal(a.FeatureFlags)
	if err != nil {
		return fmt.Errorf("marshal feature_flags: %w", err)
	}

	return s.gw.Query(ctx, s.store, "accounts.put", func(ctx context.Context) error {
		return s.store.WithWriteLock(func() error {
			_, err := s.store.DB.ExecContext(ctx, `
				INSERT INTO accounts (id, name, repository_set, release_settings, jira_installation, feature_flags, expires_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					repository_set = excluded.repository_set,
					release_settings = excluded.release_settings,
					jira_installation = excluded.jira_installation,
					feature_flags = excluded.feature_flags,
					expires_at = excluded.expires_at
			`, fmt.Sprintf("%d", a.ID), a.Name, repoSetJSON, releaseJSON, nullableJSON(jiraJSON), flagsJSON, a.ExpiresAt)
			return err
		})
	})
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}

func (s *SQLStore) Get(ctx context.Context, id ID) (Account, error) {
	var a Account
	err := s.gw.Query(ctx, s.store, "accounts.get", func(ctx context.Context) error {
		row := s.store.DB.QueryRowContext(ctx, `
			SELECT id, name, repository_set, release_settings, jira_installation, feature_flags, expires_at
			FROM accounts WHERE id = ?
		`, fmt.Sprintf("%d", id))
		got, scanErr := scanAccount(row)
		if scanErr != nil {
			return scanErr
		}
		a = got
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *SQLStore) Active(ctx context.Context) ([]Account, error) {
	var out []Account
	err := s.gw.Query(ctx, s.store, "accounts.active", func(ctx context.Context) error {
		rows, queryErr := s.store.DB.QueryContext(ctx, `
			SELECT id, name, repository_set, release_settings, jira_installation, feature_flags, expires_at
			FROM accounts WHERE expires_at > ?
		`, time.Now())
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			a, scanErr := scanAccountRows(rows)
			if scanErr != nil {
				return scanErr
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLStore) MarkPrecomputed(ctx context.Context, id ID) error {
	return s.gw.Query(ctx, s.store, "accounts.mark_precomputed", func(ctx context.Context) error {
		return s.store.WithWriteLock(func() error {
			a, err := s.getLocked(ctx, id)
			if err != nil {
				return err
			}
			a.RepositorySet.Precomputed = true
			a.RepositorySet.UpdatesCount++
			repoSetJSON, err := json.Marshal(a.RepositorySet)
			if err != nil {
				return fmt.Errorf("marshal repository_set: %w", err)
			}
			res, err := s.store.DB.ExecContext(ctx, `UPDATE accounts SET repository_set = ? WHERE id = ?`, repoSetJSON, fmt.Sprintf("%d", id))
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return apierr.NotFound("account not found")
			}
			return nil
		})
	})
}

// getLocked re-reads an account's current row, used under WithWriteLock
// by MarkPrecomputed's read-modify-write so it observes the freshest
// repository_set even if two heater goroutines somehow raced (the
// storage gateway's single-writer lock already serializes them, but this
// keeps the invariant obvious at the call site rather than implicit in
// locking order).
func (s *SQLStore) getLocked(ctx context.Context, id ID) (Account, error) {
	row := s.store.DB.QueryRowContext(ctx, `
		SELECT id, name, repository_set, release_settings, jira_installation, feature_flags, expires_at
		FROM accounts WHERE id = ?
	`, fmt.Sprintf("%d", id))
	return scanAccount(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row *sql.Row) (Account, error) {
	return scanAccountRow(row)
}

func scanAccountRows(rows *sql.Rows) (Account, error) {
	return scanAccountRow(rows)
}

func scanAccountRow(row rowScanner) (Account, error) {
	var (
		idStr, name                                string
		repoSetJSON, releaseJSON, flagsJSON         []byte
		jiraJSON                                    sql.NullString
		expiresAt                                   time.Time
	)
	if err := row.Scan(&idStr, &name, &repoSetJSON, &releaseJSON, &jiraJSON, &flagsJSON, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return Account{}, apierr.NotFound("account not found")
		}
		return Account{}, err
	}

	var id int64
	if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
		return Account{}, fmt.Errorf("parse account id %q: %w", idStr, err)
	}

	a := Account{ID: ID(id), Name: name, ExpiresAt: expiresAt}
	if err := json.Unmarshal(repoSetJSON, &a.RepositorySet); err != nil {
		return Account{}, fmt.Errorf("unmarshal repository_set: %w", err)
	}
	if err := json.Unmarshal(releaseJSON, &a.ReleaseSettings); err != nil {
		return Account{}, fmt.Errorf("unmarshal release_settings: %w", err)
	}
	if jiraJSON.Valid {
		var jira JIRAInstallation
		if err := json.Unmarshal([]byte(jiraJSON.String), &jira); err != nil {
			return Account{}, fmt.Errorf("unmarshal jira_installation: %w", err)
		}
		a.JIRAInstallation = &jira
	}
	if err := json.Unmarshal(flagsJSON, &a.FeatureFlags); err != nil {
		return Account{}, fmt.Errorf("unmarshal feature_flags: %w", err)
	}
	return a, nil
}
