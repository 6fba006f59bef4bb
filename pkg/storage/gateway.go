// Package storage is the uniform access layer over the pipeline's four
// logical stores (tenant-state, metadata ingestion, precomputed facts,
// persistentdata events). Adapted from the teacher's internal/database/db.go
// (sqlite connection pool + schema bootstrap) and internal/resilience's
// retry/circuit-breaker pair, generalized from a single embedded database
// to four named stores behind one Gateway.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/time/rate"

	"github.com/catherinevee/prodflow/pkg/apierr"
	"github.com/catherinevee/prodflow/pkg/obslog"
	"github.com/catherinevee/prodflow/pkg/resilience"
	"github.com/catherinevee/prodflow/pkg/telemetry"
)

// StoreName identifies one of the four logical stores for latency
// accounting and single-writer serialization.
type StoreName string

const (
	StoreState          StoreName = "state"
	StoreMetadata       StoreName = "metadata"
	StorePrecomputed    StoreName = "precomputed"
	StorePersistentData StoreName = "persistentdata"
)

// Store wraps one *sql.DB with the name used for telemetry and the
// single-writer lock the embedded engine needs under concurrent writes.
type Store struct {
	Name StoreName
	DB   *sql.DB
	// writeMu serializes writes on embedded engines that forbid concurrent
	// writers; concurrent reads are unrestricted.
	writeMu sync.Mutex
}

// WithWriteLock runs fn while holding the store's single-writer lock.
func (s *Store) WithWriteLock(fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return fn()
}

// Gateway federates the four logical stores behind retry-on-error and
// per-query latency accounting, the substrate every miner and the
// planner call through.
type Gateway struct {
	State          *Store
	Metadata       *Store
	Precomputed    *Store
	PersistentData *Store

	retry     *resilience.Config
	limiter   *rate.Limiter // protects the metadata store's upstream API quota
	telemetry *telemetry.Telemetry
	log       obslog.Logger
}

// Config carries the four DSNs (sqlite file paths in this deployment
// shape; a real deployment would point these at Postgres, unchanged at the
// Gateway's call surface).
type Config struct {
	StateDSN          string
	MetadataDSN       string
	PrecomputedDSN    string
	PersistentDataDSN string
	// MetadataRPS bounds outbound calls to the metadata store to respect
	// upstream API quotas (spec's storage gateway responsibility).
	MetadataRPS   float64
	MetadataBurst int
}

// Open opens all four stores and wires retry/rate-limit/telemetry.
func Open(cfg Config, tel *telemetry.Telemetry) (*Gateway, error) {
	state, err := openSQLite(cfg.StateDSN)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	metadata, err := openSQLite(cfg.MetadataDSN)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	precomputed, err := openSQLite(cfg.PrecomputedDSN)
	if err != nil {
		return nil, fmt.Errorf("open precomputed store: %w", err)
	}
	persistentData, err := openSQLite(cfg.PersistentDataDSN)
	if err != nil {
		return nil, fmt.Errorf("open persistentdata store: %w", err)
	}

	rps := cfg.MetadataRPS
	if rps <= 0 {
		rps = 50
	}
	burst := cfg.MetadataBurst
	if burst <= 0 {
		burst = 10
	}

	return &Gateway{
		State:          &Store{Name: StoreState, DB: state},
		Metadata:       &Store{Name: StoreMetadata, DB: metadata},
		Precomputed:    &Store{Name: StorePrecomputed, DB: precomputed},
		PersistentData: &Store{Name: StorePersistentData, DB: persistentData},
		retry:          resilience.DefaultConfig(),
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
		telemetry:      tel,
		log:            obslog.New("storage"),
	}, nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Close closes all four store handles.
func (g *Gateway) Close() error {
	var firstErr error
	for _, s := range []*Store{g.State, g.Metadata, g.Precomputed, g.PersistentData} {
		if err := s.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Query runs fn against store, retrying any failed attempt per the
// pipeline's {100ms, 500ms, 1400ms} schedule and recording per-query
// latency. metadata reads additionally respect the outbound rate limiter.
func (g *Gateway) Query(ctx context.Context, store *Store, op string, fn func(ctx context.Context) error) error {
	if store.Name == StoreMetadata {
		if err := g.limiter.Wait(ctx); err != nil {
			return apierr.Upstreamf(err, "metadata store rate limiter: %v", err)
		}
	}

	start := time.Now()
	result, err := resilience.Retry(ctx, g.retry, fn)
	if g.telemetry != nil {
		g.telemetry.StoreLatency.WithLabelValues(string(store.Name), op).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		g.log.Error("store query failed", obslog.String("store", string(store.Name)), obslog.String("op", op), obslog.String("error", err.Error()), obslog.Int("attempts", result.Attempts))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierr.Upstreamf(err, "%s.%s failed after %d attempts", store.Name, op, result.Attempts)
	}
	return nil
}
