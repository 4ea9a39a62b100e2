package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/icelift/icelift/catalog"
	"github.com/icelift/icelift/state"
)

// RunOptions control one migration run.
type RunOptions struct {
	// Force re-syncs every table and re-uploads every object, ignoring
	// previous state and the destination diff.
	Force bool

	// SkipRewrite leaves metadata paths untouched after sync.
	SkipRewrite bool

	// DryRun plans transfers without executing them or touching state.
	DryRun bool

	// Tables restricts the run to the given fully qualified names
	// (namespace.table). Empty means all discovered tables.
	Tables []string
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Discovered    int
	Eligible      int
	Synced        int
	Failed        int
	SkippedSynced int
	Rewritten     int
	RewriteFailed int

	// Planned totals, only populated on dry runs.
	PlannedObjects int
	PlannedBytes   int64
}

// Runner drives a migration across all tables of a catalog: discover,
// sync eligible tables, rewrite their metadata, and record each outcome.
type Runner struct {
	Catalog  catalog.Client
	Syncer   *Syncer
	Rewriter *Rewriter
	State    *state.Store
	Logger   log.FieldLogger
}

func (r *Runner) logger() log.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

// eligible reports whether a table should be processed this run. Tables
// already synced are skipped unless forced; pending, in-progress (likely a
// crashed run), and failed tables are picked up again.
func (r *Runner) eligible(namespace, table string, force bool) bool {
	if force {
		return true
	}
	rec, ok := r.State.Get(namespace, table)
	if !ok {
		return true
	}
	switch rec.Sync.Status {
	case state.SyncPending, state.SyncInProgress, state.SyncFailed:
		return true
	default:
		return false
	}
}

// selected reports whether an entry passes the run's table filter.
func selected(entry catalog.Entry, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.EqualFold(f, entry.FQN) {
			return true
		}
	}
	return false
}

// Run executes one migration run and returns its summary. Discovery
// failures abort the run; per-table sync failures are recorded and the run
// continues with the remaining tables.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	runID := uuid.NewString()[:8]
	logger := r.logger().WithField("run_id", runID)

	entries, err := catalog.Discover(ctx, r.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tables: %w", err)
	}

	summary := &Summary{Discovered: len(entries)}
	if len(entries) == 0 {
		logger.Info("no tables found in catalog")
		return summary, nil
	}

	for _, e := range entries {
		if e.Err != "" {
			// Sync still proceeds on namespace/table alone; the prefix
			// layout does not depend on the metadata we failed to load.
			logger.WithFields(log.Fields{
				"table": e.FQN,
				"error": e.Err,
			}).Warn("table metadata unavailable, syncing by prefix only")
		}
	}

	for _, e := range entries {
		if !selected(e, opts.Tables) {
			continue
		}
		if !r.eligible(e.Namespace, e.Table, opts.Force) {
			summary.SkippedSynced++
			continue
		}
		summary.Eligible++

		if err := r.runTable(ctx, logger, e, opts, summary); err != nil {
			return summary, err
		}
	}

	logger.WithFields(log.Fields{
		"synced":  summary.Synced,
		"failed":  summary.Failed,
		"skipped": summary.SkippedSynced,
	}).Info("run complete")

	return summary, nil
}

// runTable syncs and rewrites a single table, recording the outcome.
// Returned errors are infrastructure failures (listing, state persistence)
// that abort the run; transfer failures end up in the summary instead.
func (r *Runner) runTable(ctx context.Context, logger log.FieldLogger, e catalog.Entry, opts RunOptions, summary *Summary) error {
	if opts.DryRun {
		result, err := r.Syncer.SyncTable(ctx, e.Namespace, e.Table, opts.Force, true)
		if err != nil {
			return err
		}
		summary.PlannedObjects += result.ObjectCount
		summary.PlannedBytes += result.TotalBytes
		return nil
	}

	if err := r.State.SetInProgress(e.Namespace, e.Table); err != nil {
		return err
	}

	result, err := r.Syncer.SyncTable(ctx, e.Namespace, e.Table, opts.Force, false)
	if err != nil {
		status := state.SyncStatus{
			Status:   state.SyncFailed,
			LastSync: nowISO(),
			Error:    err.Error(),
		}
		if serr := r.State.SetSyncResult(e.Namespace, e.Table, status); serr != nil {
			return serr
		}
		summary.Failed++
		logger.WithError(err).WithField("table", e.FQN).Error("table sync failed")
		return nil
	}

	status := state.SyncStatus{
		Status:      result.Status,
		ObjectCount: result.ObjectCount,
		TotalBytes:  result.TotalBytes,
		LastSync:    nowISO(),
		Error:       result.Error,
	}

	if result.Status == state.SyncSynced && !opts.SkipRewrite {
		n, rerr := r.Rewriter.RewriteTable(ctx, e.Namespace, e.Table)
		if rerr != nil {
			// The table's objects are in place; only its metadata still
			// points at the source. Recorded so a later rewrite can fix it.
			logger.WithError(rerr).WithField("table", e.FQN).Warn("metadata rewrite failed, table synced but paths not updated")
			status.RewriteError = rerr.Error()
			summary.RewriteFailed++
		} else {
			status.RewriteCount = n
			summary.Rewritten++
		}
	}

	if err := r.State.SetSyncResult(e.Namespace, e.Table, status); err != nil {
		return err
	}

	if result.Status == state.SyncSynced {
		summary.Synced++
	} else {
		summary.Failed++
	}
	return nil
}

// Rewrite re-runs the metadata path rewrite for every synced table in the
// state store, or for the given fully qualified names. Used to repair
// tables whose sync succeeded but whose rewrite failed.
func (r *Runner) Rewrite(ctx context.Context, tables []string) (*Summary, error) {
	summary := &Summary{}

	for _, rec := range r.State.Records() {
		fqn := rec.Namespace + "." + rec.Table
		if !selected(catalog.Entry{FQN: fqn}, tables) {
			continue
		}
		if rec.Sync.Status != state.SyncSynced {
			summary.SkippedSynced++
			continue
		}
		summary.Eligible++

		n, err := r.Rewriter.RewriteTable(ctx, rec.Namespace, rec.Table)
		if serr := r.State.SetRewriteResult(rec.Namespace, rec.Table, n, err); serr != nil {
			return summary, serr
		}
		if err != nil {
			r.logger().WithError(err).WithField("table", fqn).Error("metadata rewrite failed")
			summary.RewriteFailed++
			continue
		}
		summary.Rewritten++
	}

	return summary, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
