// Command heater runs one batch pre-heating pass over every active
// account: mining releases and pull-request facts, marking repository
// sets precomputed, and optionally announcing completion via webhook
// and/or email.
// Grounded on cmd/server/main.go's flag/signal/graceful-shutdown shape,
// generalized from a long-running HTTP server to a batch job that also
// happens to expose an admin listener while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/catherinevee/prodflow/pkg/account"
	"github.com/catherinevee/prodflow/pkg/accountstore"
	"github.com/catherinevee/prodflow/pkg/config"
	"github.com/catherinevee/prodflow/pkg/factcache"
	"github.com/catherinevee/prodflow/pkg/heater"
	"github.com/catherinevee/prodflow/pkg/obslog"
	"github.com/catherinevee/prodflow/pkg/storage"
	"github.com/catherinevee/prodflow/pkg/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML configuration file")
		adminAddr  = flag.String("admin-addr", "", "address for the healthz/metrics admin listener, e.g. :9090 (disabled if empty)")
		dryRun     = flag.Bool("dry-run", false, "heat an in-memory seed account instead of the durable account store")
	)
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	obslog.Initialize(obslog.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: true})
	logger := obslog.New("cmd/heater")

	tel := telemetry.New(telemetry.Config{ServiceName: "prodflow-heater"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress := newProgressBroadcasterHub(logger)
	if *adminAddr != "" {
		go serveAdmin(*adminAddr, tel, progress, logger)
	}

	report, err := run(ctx, cfg, tel, logger, progress, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heater: %v\n", err)
		os.Exit(1)
	}

	printReport(report)

	if len(report.Failures()) > 0 {
		os.Exit(1)
	}
}

// run wires storage, caches, the account store, and the notifier, then
// executes a single Heater.Run pass. Separated from main so its error
// path can return instead of os.Exit, keeping it testable in principle
// (no test here exercises it directly since it requires real Vault/DSN
// infrastructure, matching the teacher's own untested main() bodies).
func run(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger obslog.Logger, progress *progressBroadcaster, dryRun bool) (heater.Report, error) {
	gw, err := storage.Open(storage.Config{
		StateDSN:          stateDSNOrDefault(cfg, dryRun),
		MetadataDSN:       cfg.Stores.MetadataDSN,
		PrecomputedDSN:    cfg.Stores.PrecomputedDSN,
		PersistentDataDSN: cfg.Stores.PersistentDataDSN,
	}, tel)
	if err != nil {
		return heater.Report{}, fmt.Errorf("open storage gateway: %w", err)
	}
	defer gw.Close()

	var etcdClient *clientv3.Client
	if len(cfg.Cache.EtcdEndpoints) > 0 {
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Cache.EtcdEndpoints,
			DialTimeout: cfg.Cache.EtcdDialTimeout,
		})
		if err != nil {
			logger.Warn("heater: etcd client unavailable, builds coalesce in-process only", obslog.Any("error", err.Error()))
		} else {
			etcdClient = client
			defer client.Close()
		}
	}

	cache := factcache.New(factcache.Config{
		LocalTTL:      cfg.Cache.LocalTTL,
		LocalMaxSize:  cfg.Cache.LocalMaxSize,
		FormatVersion: cfg.Cache.FormatVersion,
		Etcd:          etcdClient,
		EtcdLockTTL:   cfg.Cache.EtcdLockTTL,
	}, tel)

	prFacts, err := factcache.NewPRFactsRepo(ctx, gw)
	if err != nil {
		return heater.Report{}, fmt.Errorf("open pr facts repo: %w", err)
	}

	accounts, err := openAccountStore(ctx, gw, dryRun)
	if err != nil {
		return heater.Report{}, fmt.Errorf("open account store: %w", err)
	}
	active, err := accounts.Active(ctx)
	if err != nil {
		return heater.Report{}, fmt.Errorf("list active accounts: %w", err)
	}

	var notifiers []heater.Notifier
	if cfg.Heater.SlackWebhookURL != "" {
		notifiers = append(notifiers, heater.NewWebhookNotifier(cfg.Heater.SlackWebhookURL, nil))
	}
	if cfg.Heater.Email.SMTPHost != "" && len(cfg.Heater.Email.To) > 0 {
		notifiers = append(notifiers, heater.NewEmailNotifier(
			cfg.Heater.Email.SMTPHost, cfg.Heater.Email.SMTPPort,
			cfg.Heater.Email.Username, cfg.Heater.Email.Password,
			cfg.Heater.Email.From, cfg.Heater.Email.To,
		))
	}
	var notifier heater.Notifier
	if len(notifiers) > 0 {
		notifier = heater.MultiNotifier{Notifiers: notifiers}
	}

	var secrets accountstore.Store
	if !dryRun && cfg.Vault.Address != "" {
		vaultStore, err := openSecretsStore(cfg)
		if err != nil {
			logger.Warn("heater: vault-backed secret store unavailable, skipping credential checks", obslog.Any("error", err.Error()))
		} else {
			secrets = vaultStore
		}
	}

	bar := newRunProgressBar(len(active))
	onProgress := func(outcome heater.AccountOutcome) {
		progress.Send(outcome)
		_ = bar.Add(1)
	}

	h := heater.New(heater.Config{
		Concurrency:     cfg.Heater.Concurrency,
		LookbackYears:   cfg.Heater.LookbackYears,
		FullHistoryInCI: cfg.Heater.FullHistoryInCI,
		CreateBotsTeam:  cfg.Heater.CreateBotsTeam,
		LabelSyncBatch:  cfg.Heater.LabelSyncBatch,
		FormatVersion:   cfg.Cache.FormatVersion,
	}, heater.Dependencies{
		Accounts: accounts,
		Storage:  gw,
		Cache:    cache,
		PRFacts:  prFacts,
		Notifier: notifier,
		Secrets:  secrets,
		Logger:   logger,
		Progress: onProgress,
	})

	report, err := h.Run(ctx)
	if err != nil {
		return report, err
	}

	if err := syncOpenLabels(ctx, gw, prFacts, cfg.Heater.LabelSyncBatch, logger); err != nil {
		logger.Warn("heater: label sync failed", obslog.Any("error", err.Error()))
	}

	return report, nil
}

// syncOpenLabels re-checks open and merged PRs (the two categories whose
// labels can still change upstream; "done" PRs are closed and archival) for
// label drift against the metadata store, per spec §4.10's label-sync step.
func syncOpenLabels(ctx context.Context, gw *storage.Gateway, prFacts *factcache.PRFactsRepo, batchSize int, logger obslog.Logger) error {
	source := heater.MetadataLabelSource{Storage: gw}
	for _, category := range []factcache.PRCategory{factcache.CategoryOpen, factcache.CategoryMerged} {
		updated, err := heater.SyncLabels(ctx, prFacts, category, source, batchSize, logger)
		if err != nil {
			return fmt.Errorf("sync labels for category %s: %w", category, err)
		}
		logger.Info("heater: label sync complete", obslog.String("category", string(category)), obslog.Any("updated", updated))
	}
	return nil
}

// stateDSNOrDefault lets --dry-run run against an isolated in-memory
// state store even when a config file points StateDSN at a real file,
// so a dry run never touches durable account records.
func stateDSNOrDefault(cfg *config.Config, dryRun bool) string {
	if dryRun {
		return "file:heater_dry_run_state?mode=memory&cache=shared"
	}
	return cfg.Stores.StateDSN
}

// openSecretsStore builds the Vault-backed accountstore.Store from the
// loaded config, overlaying DefaultConfig so an operator only needs to
// set the fields their deployment actually uses.
func openSecretsStore(cfg *config.Config) (*accountstore.VaultStore, error) {
	vaultCfg := accountstore.DefaultConfig()
	vaultCfg.Address = cfg.Vault.Address
	vaultCfg.Token = cfg.Vault.Token
	vaultCfg.Namespace = cfg.Vault.Namespace
	vaultCfg.KubernetesRole = cfg.Vault.KubernetesRole
	vaultCfg.KubernetesSAPath = cfg.Vault.KubernetesSAPath
	if cfg.Vault.MountPath != "" {
		vaultCfg.MountPath = cfg.Vault.MountPath
	}
	if cfg.Vault.CacheTTL > 0 {
		vaultCfg.CacheTTL = cfg.Vault.CacheTTL
	}
	return accountstore.NewVaultStore(vaultCfg)
}

// openAccountStore returns the durable SQL-backed account store, or, in
// --dry-run mode, an in-memory Registry seeded with one placeholder
// account so the rest of the pipeline has something to iterate without
// requiring a provisioned tenant.
func openAccountStore(ctx context.Context, gw *storage.Gateway, dryRun bool) (account.Store, error) {
	if dryRun {
		reg := account.NewRegistry()
		reg.Put(account.Account{
			ID:        1,
			Name:      "dry-run",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		})
		return reg, nil
	}
	return account.NewSQLStore(ctx, gw)
}

// serveAdmin exposes /healthz, /metrics, and the /progress websocket feed
// behind permissive CORS, the same admin-surface shape as the teacher's
// internal/api health routes, narrowed to the endpoints an operator needs
// to supervise a batch job (no auth/business routes belong on a CLI's
// side-channel listener).
func serveAdmin(addr string, tel *telemetry.Telemetry, progress *progressBroadcaster, logger obslog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(tel.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/progress", progress)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	srv := &http.Server{Addr: addr, Handler: handler, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
	logger.Info("heater: admin listener starting", obslog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("heater: admin listener stopped", obslog.Any("error", err.Error()))
	}
}
