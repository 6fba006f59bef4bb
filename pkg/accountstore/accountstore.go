// Package accountstore resolves the per-account secret material the
// mining pipeline needs to reach external collaborators (a GitHub App
// installation, a JIRA OAuth client) and mints the short-lived signed
// JWT a GitHub App uses to request an installation access token.
// Adapted from the teacher's internal/infrastructure/secrets.VaultManager:
// same KV-v2 path convention, TTL cache, and circuit-breaker-guarded
// reads, generalized from cloud-provider credentials to per-account
// application secrets.
package accountstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/kubernetes"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/obslog"
	"github.com/catherinevee/prodflow/pkg/resilience"
)

// Secrets is the application-level credential bundle one account needs:
// a GitHub App installation id plus its private key (to mint installation
// JWTs) and an optional JIRA OAuth client secret.
type Secrets struct {
	GitHubAppID          int64
	GitHubInstallationID int64
	GitHubPrivateKeyPEM  []byte
	JIRAClientSecret     string
}

// Store resolves an account's Secrets. The heater and any future
// transport layer depend on this interface rather than on Vault
// directly, matching the indirection account.Store already gives
// callers over the tenant-state store.
type Store interface {
	GetSecrets(ctx context.Context, accountID account.ID) (Secrets, error)
}

// Config configures the Vault-backed Store, mirroring the teacher's
// secrets.Config field-for-field for the fields this domain needs
// (cloud-provider fields like RoleID/SecretID AppRole auth are dropped
// since this pipeline authenticates with a single long-lived token or
// Kubernetes service account, never AppRole).
type Config struct {
	Address          string
	Token            string
	MountPath        string
	Namespace        string
	KubernetesRole   string
	KubernetesSAPath string
	CacheTTL         time.Duration
}

// DefaultConfig mirrors the teacher's secrets.DefaultConfig: a 5 minute
// secret cache and the conventional KV-v2 mount name.
func DefaultConfig() Config {
	return Config{MountPath: "secret", CacheTTL: 5 * time.Minute}
}

type cachedSecret struct {
	data      map[string]interface{}
	expiresAt time.Time
}

// VaultStore is the Config-driven Store, backed by a HashiCorp Vault
// client with the same cache-before-fetch, circuit-breaker-guarded read
// path as the teacher's VaultManager.
type VaultStore struct {
	client    *vault.Client
	mountPath string
	cacheTTL  time.Duration

	mu    sync.RWMutex
	cache map[account.ID]cachedSecret

	breaker *resilience.CircuitBreaker
	logger  obslog.Logger
}

// NewVaultStore authenticates against Vault (token auth if cfg.Token is
// set, Kubernetes service-account auth otherwise) and returns a ready
// Store.
func NewVaultStore(cfg Config) (*VaultStore, error) {
	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("accountstore: build vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticate(client, cfg); err != nil {
		return nil, fmt.Errorf("accountstore: vault auth: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultConfig().CacheTTL
	}
	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}

	return &VaultStore{
		client:    client,
		mountPath: mount,
		cacheTTL:  ttl,
		cache:     make(map[account.ID]cachedSecret),
		breaker:   resilience.NewCircuitBreaker("vault", resilience.DefaultCircuitBreakerConfig()),
		logger:    obslog.New("accountstore"),
	}, nil
}

func authenticate(client *vault.Client, cfg Config) error {
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
		return nil
	}
	if cfg.KubernetesRole != "" {
		auth, err := kubernetes.NewKubernetesAuth(cfg.KubernetesRole)
		if err != nil {
			return err
		}
		if _, err := client.Auth().Login(context.Background(), auth); err != nil {
			return err
		}
		return nil
	}
	return apierr.Invalid(".vault", "no vault authentication method configured: set Token or KubernetesRole")
}

// GetSecrets reads an account's secret bundle from
// "<mountPath>/data/accounts/<id>", caching the decoded result for
// cfg.CacheTTL the same way the teacher's GetSecret caches a cloud
// credential path, and wrapping a Vault outage in a circuit breaker so a
// sustained auth-service incident fails fast instead of stacking retries.
func (s *VaultStore) GetSecrets(ctx context.Context, accountID account.ID) (Secrets, error) {
	if data, ok := s.fromCache(accountID); ok {
		return decodeSecrets(data), nil
	}

	path := fmt.Sprintf("%s/data/accounts/%d", s.mountPath, accountID)
	var secret *vault.Secret
	err := s.breaker.Execute(func() error {
		var readErr error
		secret, readErr = s.client.Logical().ReadWithContext(ctx, path)
		return readErr
	})
	if err != nil {
		return Secrets{}, apierr.Upstreamf(err, "read account secrets from vault")
	}
	if secret == nil || secret.Data == nil {
		return Secrets{}, apierr.NotFound(fmt.Sprintf("no secrets stored for account %d", accountID))
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}
	s.toCache(accountID, data)
	return decodeSecrets(data), nil
}

func (s *VaultStore) fromCache(accountID account.ID) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.cache[accountID]
	if !ok || time.Now().After(cached.expiresAt) {
		return nil, false
	}
	return cached.data, true
}

func (s *VaultStore) toCache(accountID account.ID, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[accountID] = cachedSecret{data: data, expiresAt: time.Now().Add(s.cacheTTL)}
}

// Invalidate drops a cached entry, forcing the next GetSecrets to re-read
// Vault. Callers use this after rotating an account's stored secrets.
func (s *VaultStore) Invalidate(accountID account.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, accountID)
}

func decodeSecrets(data map[string]interface{}) Secrets {
	return Secrets{
		GitHubAppID:          int64(asFloat(data["github_app_id"])),
		GitHubInstallationID: int64(asFloat(data["github_installation_id"])),
		GitHubPrivateKeyPEM:  []byte(asString(data["github_private_key_pem"])),
		JIRAClientSecret:     asString(data["jira_client_secret"]),
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// StaticStore is a fixed-table Store, used by tests and by local
// development configs where secrets are injected through config rather
// than Vault.
type StaticStore map[account.ID]Secrets

// GetSecrets returns the table entry for accountID, or a not_found error
// if none is configured.
func (s StaticStore) GetSecrets(_ context.Context, accountID account.ID) (Secrets, error) {
	secrets, ok := s[accountID]
	if !ok {
		return Secrets{}, apierr.NotFound(fmt.Sprintf("no secrets configured for account %d", accountID))
	}
	return secrets, nil
}
