package icelift

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/icelift/icelift/catalog"
	"github.com/icelift/icelift/migrate"
	"github.com/icelift/icelift/state"
	"github.com/icelift/icelift/store"
)

// FieldLogger is the structured logger accepted by all components.
type FieldLogger = log.FieldLogger

// CatalogClient is the table discovery surface. See catalog.Client.
type CatalogClient = catalog.Client

// ObjectStore is an object store handle. See store.Store.
type ObjectStore = store.Store

// RunOptions control one migration run. See migrate.RunOptions.
type RunOptions = migrate.RunOptions

// Summary aggregates a run's outcome. See migrate.Summary.
type Summary = migrate.Summary

// SyncResult is the outcome of syncing one table. See migrate.SyncResult.
type SyncResult = migrate.SyncResult

// Migrator wires the catalog, the two store handles, the state store, and
// the migration engine into one entry point.
type Migrator struct {
	cfg         *Config
	logger      FieldLogger
	catalog     CatalogClient
	source      ObjectStore
	destination ObjectStore
	state       *state.Store
	runner      *migrate.Runner
}

// New builds a Migrator from the configuration. The destination store's
// identity is verified immediately (one STS call); a failure there is
// fatal before any data movement starts. Injected components from options
// take precedence over their configuration sections.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Migrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	src := o.source
	if src == nil {
		src = store.NewSource(store.SourceConfig{
			Endpoint:        cfg.Source.Endpoint,
			Bucket:          cfg.Source.Bucket,
			AccessKeyID:     cfg.Source.AccessKeyID,
			SecretAccessKey: cfg.Source.SecretAccessKey,
			Region:          cfg.Source.Region,
		}, logger)
	}

	dst := o.destination
	var accountID string
	if dst == nil {
		s3dst, err := store.NewDestination(ctx, store.DestinationConfig{
			Bucket:  cfg.Destination.Bucket,
			Region:  cfg.Destination.Region,
			Profile: cfg.Destination.Profile,
		}, logger)
		if err != nil {
			return nil, errors.Join(ErrDestinationUnavailable, err)
		}
		accountID = s3dst.AccountID()
		dst = s3dst
	}

	cat := o.catalog
	if cat == nil {
		cat = catalog.NewRESTCatalog(cfg.Catalog.URL, cfg.Catalog.Name,
			catalog.WithCredential(cfg.Catalog.ClientID, cfg.Catalog.ClientSecret),
			catalog.WithRealm(cfg.Catalog.Realm),
			catalog.WithScope(cfg.Catalog.Scope),
		)
	}

	st := state.NewStore(cfg.StatePath, logger)
	if err := st.Load(); err != nil {
		return nil, err
	}
	if err := st.SetConnections(
		&state.SourceInfo{Endpoint: cfg.Source.Endpoint, Bucket: cfg.Source.Bucket},
		&state.DestinationInfo{
			Bucket:    cfg.Destination.Bucket,
			Region:    cfg.Destination.Region,
			Profile:   cfg.Destination.Profile,
			AccountID: accountID,
		},
	); err != nil {
		return nil, err
	}

	syncer := &migrate.Syncer{
		Source:      src,
		Destination: dst,
		Retries:     cfg.Transfer.Retries,
		Backoff:     cfg.Transfer.Backoff,
		Workers:     cfg.Transfer.Workers,
		Logger:      logger,
	}
	rewriter := &migrate.Rewriter{
		Store:             dst,
		SourcePrefix:      cfg.Prefix.Source,
		DestinationPrefix: cfg.Prefix.Destination,
		Logger:            logger,
	}

	return &Migrator{
		cfg:         cfg,
		logger:      logger,
		catalog:     cat,
		source:      src,
		destination: dst,
		state:       st,
		runner: &migrate.Runner{
			Catalog:  cat,
			Syncer:   syncer,
			Rewriter: rewriter,
			State:    st,
			Logger:   logger,
		},
	}, nil
}

// Syncer returns the underlying sync engine, e.g. to attach progress
// callbacks before a run.
func (m *Migrator) Syncer() *migrate.Syncer {
	return m.runner.Syncer
}

// State returns the migration state store.
func (m *Migrator) State() *state.Store {
	return m.state
}

// Status returns the per-table migration records, sorted by table key.
func (m *Migrator) Status() []*state.TableRecord {
	return m.state.Records()
}

// Close releases the Migrator. No long-lived connections are held, so it
// never fails; it exists for callers managing the Migrator as a Closer.
func (m *Migrator) Close() error {
	return nil
}

// Verify checks that the source store is reachable by listing its bucket.
// The destination was already verified when the Migrator was built.
func (m *Migrator) Verify(ctx context.Context) error {
	if _, err := m.source.List(ctx, ""); err != nil {
		return errors.Join(ErrSourceUnavailable, err)
	}
	return nil
}

// Run executes one migration run: discover tables, sync the eligible
// ones, and rewrite their metadata. An empty catalog returns ErrNoTables
// alongside the (empty) summary.
func (m *Migrator) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	summary, err := m.runner.Run(ctx, opts)
	if err != nil {
		return summary, err
	}
	if summary.Discovered == 0 {
		return summary, ErrNoTables
	}
	return summary, nil
}

// Rewrite re-runs the metadata path rewrite for synced tables, optionally
// restricted to the given fully qualified names.
func (m *Migrator) Rewrite(ctx context.Context, tables []string) (*Summary, error) {
	return m.runner.Rewrite(ctx, tables)
}

// SyncTable syncs a single table by name, bypassing catalog discovery and
// eligibility checks, and records the outcome.
func (m *Migrator) SyncTable(ctx context.Context, namespace, table string, force bool) (*SyncResult, error) {
	if err := m.state.SetInProgress(namespace, table); err != nil {
		return nil, err
	}
	result, err := m.runner.Syncer.SyncTable(ctx, namespace, table, force, false)
	if err != nil {
		status := state.SyncStatus{
			Status:   state.SyncFailed,
			LastSync: time.Now().UTC().Format(time.RFC3339),
			Error:    err.Error(),
		}
		if serr := m.state.SetSyncResult(namespace, table, status); serr != nil {
			return nil, serr
		}
		return nil, err
	}
	status := state.SyncStatus{
		Status:      result.Status,
		ObjectCount: result.ObjectCount,
		TotalBytes:  result.TotalBytes,
		LastSync:    time.Now().UTC().Format(time.RFC3339),
		Error:       result.Error,
	}
	if err := m.state.SetSyncResult(namespace, table, status); err != nil {
		return nil, err
	}
	return result, nil
}

// RewriteTable rewrites a single table's metadata and records the outcome.
func (m *Migrator) RewriteTable(ctx context.Context, namespace, table string) (int, error) {
	n, err := m.runner.Rewriter.RewriteTable(ctx, namespace, table)
	if serr := m.state.SetRewriteResult(namespace, table, n, err); serr != nil {
		return n, serr
	}
	return n, err
}

// Inventory discovers every table in the catalog with its location and
// schema. Tables whose metadata cannot be loaded are reported with the
// error inline.
func (m *Migrator) Inventory(ctx context.Context) ([]catalog.Entry, error) {
	entries, err := catalog.Discover(ctx, m.catalog)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoTables
	}
	return entries, nil
}

// ClearResult reports what a Clear call removed (or would remove).
type ClearResult struct {
	// Objects maps each cleared table's fully qualified name to the
	// number of destination objects removed.
	Objects map[string]int
}

// Clear deletes migrated objects from the destination for every table in
// the state store (or the given fully qualified names) and resets their
// state to pending. With dryRun, nothing is deleted and the result
// reports what would go.
func (m *Migrator) Clear(ctx context.Context, tables []string, dryRun bool) (*ClearResult, error) {
	result := &ClearResult{Objects: make(map[string]int)}

	for _, rec := range m.state.Records() {
		fqn := rec.Namespace + "." + rec.Table
		if !selectedTable(fqn, tables) {
			continue
		}

		prefix := rec.Namespace + "/" + rec.Table + "/"
		objects, err := m.destination.List(ctx, prefix)
		if err != nil {
			return result, fmt.Errorf("failed to list %s: %w", prefix, err)
		}

		keys := make([]string, 0, len(objects))
		for k := range objects {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		result.Objects[fqn] = len(keys)

		if dryRun {
			continue
		}

		if len(keys) > 0 {
			if err := m.destination.Delete(ctx, keys); err != nil {
				return result, fmt.Errorf("failed to delete objects of %s: %w", fqn, err)
			}
		}
		if err := m.state.ResetTable(rec.Namespace, rec.Table); err != nil {
			return result, err
		}

		m.logger.WithFields(log.Fields{
			"table":   fqn,
			"objects": len(keys),
		}).Info("table cleared")
	}

	return result, nil
}

func selectedTable(fqn string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.EqualFold(f, fqn) {
			return true
		}
	}
	return false
}
