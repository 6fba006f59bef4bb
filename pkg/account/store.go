package account

import (
	"context"
	"sync"
	"time"

	"github.com/catherinevee/prodflow/pkg/apierr"
)

// Store resolves accounts by id. Production wiring backs this with the
// tenant-state store (SQLStore, in sqlstore.go); tests and the heater's
// dry-run mode use the in-memory Registry below, grounded on the teacher's
// sync.RWMutex-guarded map in internal/tenant/manager.go.
type Store interface {
	Get(ctx context.Context, id ID) (Account, error)
	// Active lists every account with ExpiresAt in the future, the set the
	// heater iterates.
	Active(ctx context.Context) ([]Account, error)
	// MarkPrecomputed sets RepositorySet.Precomputed=true and bumps
	// UpdatesCount atomically, satisfying the "first heater success"
	// invariant.
	MarkPrecomputed(ctx context.Context, id ID) error
}

// Registry is an in-memory Store, safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	accounts map[ID]Account
}

// NewRegistry builds an empty in-memory account registry.
func NewRegistry() *Registry {
	return &Registry{accounts: make(map[ID]Account)}
}

// Put inserts or replaces an account. Test/seed helper, not part of Store.
func (r *Registry) Put(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

func (r *Registry) Get(_ context.Context, id ID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, apierr.NotFound("account not found")
	}
	return a, nil
}

func (r *Registry) Active(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if !a.Expired(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Registry) MarkPrecomputed(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return apierr.NotFound("account not found")
	}
	a.RepositorySet.Precomputed = true
	a.RepositorySet.UpdatesCount++
	r.accounts[id] = a
	return nil
}
