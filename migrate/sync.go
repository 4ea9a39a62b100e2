package migrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/icelift/icelift/state"
	"github.com/icelift/icelift/store"
)

// TransferError reports the object that exhausted its transfer attempts.
type TransferError struct {
	Key string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// SyncResult is the outcome of syncing one table's objects.
type SyncResult struct {
	// Status is synced, failed, or pending (dry run).
	Status state.SyncState

	// ObjectCount is the number of objects transferred.
	ObjectCount int

	// TotalBytes is the number of bytes transferred.
	TotalBytes int64

	// Skipped is the number of source objects already present at the
	// destination with matching size.
	Skipped int

	// Error describes the first transfer failure, "key: cause".
	Error string
}

// Syncer copies a table's objects from a source store to a destination
// store. The diff is computed on key and size; transfers retry with
// exponential backoff, and the first exhausted object fails the table.
type Syncer struct {
	Source      store.Store
	Destination store.Store

	// Retries is the total number of attempts per object. Zero means
	// the default of 3.
	Retries int

	// Backoff is the delay before the first retry, doubling per attempt.
	// Zero means the default of one second.
	Backoff time.Duration

	// Workers bounds concurrent transfers within one table. Zero or one
	// means sequential.
	Workers int

	Logger log.FieldLogger

	// OnPlan, when set, is called once per table after the transfer plan
	// is computed.
	OnPlan func(namespace, table string, planned int, plannedBytes int64)

	// OnTransfer, when set, is called after each transferred object.
	OnTransfer func(key string, n int64)
}

func (s *Syncer) retries() int {
	if s.Retries > 0 {
		return s.Retries
	}
	return 3
}

func (s *Syncer) backoff() time.Duration {
	if s.Backoff > 0 {
		return s.Backoff
	}
	return time.Second
}

func (s *Syncer) logger() log.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

// SyncTable syncs one table's objects. A table with no source objects is
// trivially synced. List failures return an error; a transfer failure is
// reported in the result's status instead, so callers can isolate it to
// this table. In dry-run mode nothing is transferred and the result
// carries the plan size with status pending.
func (s *Syncer) SyncTable(ctx context.Context, namespace, table string, force, dryRun bool) (*SyncResult, error) {
	prefix := namespace + "/" + table + "/"
	logger := s.logger().WithFields(log.Fields{
		"namespace": namespace,
		"table":     table,
	})

	srcObjects, err := s.Source.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list source objects: %w", err)
	}
	if len(srcObjects) == 0 {
		logger.WithField("prefix", prefix).Info("no source objects")
		return &SyncResult{Status: state.SyncSynced}, nil
	}

	// Force and dry-run modes plan against an empty destination: force
	// re-uploads everything, dry run previews the full upload.
	dstObjects := map[string]int64{}
	if !force && !dryRun {
		dstObjects, err = s.Destination.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list destination objects: %w", err)
		}
	}

	plan := Plan(srcObjects, dstObjects, force || dryRun)
	var plannedBytes int64
	for _, k := range plan {
		plannedBytes += srcObjects[k]
	}
	skipped := len(srcObjects) - len(plan)

	logger.WithFields(log.Fields{
		"source_objects": len(srcObjects),
		"to_transfer":    len(plan),
		"skipped":        skipped,
		"bytes":          plannedBytes,
	}).Info("transfer plan computed")

	if s.OnPlan != nil {
		s.OnPlan(namespace, table, len(plan), plannedBytes)
	}

	if dryRun {
		return &SyncResult{
			Status:      state.SyncPending,
			ObjectCount: len(plan),
			TotalBytes:  plannedBytes,
			Skipped:     skipped,
		}, nil
	}

	if len(plan) == 0 {
		logger.Info("up to date")
		return &SyncResult{Status: state.SyncSynced, Skipped: skipped}, nil
	}

	transferred, totalBytes, terr := s.transferAll(ctx, plan)
	if terr != nil {
		logger.WithError(terr).Error("table sync failed")
		return &SyncResult{
			Status:      state.SyncFailed,
			ObjectCount: transferred,
			TotalBytes:  totalBytes,
			Skipped:     skipped,
			Error:       terr.Error(),
		}, nil
	}

	logger.WithFields(log.Fields{
		"objects": transferred,
		"bytes":   totalBytes,
	}).Info("table synced")

	return &SyncResult{
		Status:      state.SyncSynced,
		ObjectCount: transferred,
		TotalBytes:  totalBytes,
		Skipped:     skipped,
	}, nil
}

// transferAll moves the planned keys, sequentially or through a bounded
// worker pool. It returns the completed object and byte counts alongside
// the first failure, if any.
func (s *Syncer) transferAll(ctx context.Context, plan []string) (int, int64, error) {
	if s.Workers <= 1 {
		var transferred int
		var totalBytes int64
		for _, key := range plan {
			n, err := s.transferObject(ctx, key)
			if err != nil {
				return transferred, totalBytes, err
			}
			transferred++
			totalBytes += n
			if s.OnTransfer != nil {
				s.OnTransfer(key, n)
			}
		}
		return transferred, totalBytes, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan string)
	var (
		mu          sync.Mutex
		transferred int
		totalBytes  int64
		firstErr    error
	)

	var wg sync.WaitGroup
	for i := 0; i < s.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range keys {
				n, err := s.transferObject(ctx, key)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					return
				}
				transferred++
				totalBytes += n
				mu.Unlock()
				if s.OnTransfer != nil {
					s.OnTransfer(key, n)
				}
			}
		}()
	}

feed:
	for _, key := range plan {
		select {
		case keys <- key:
		case <-ctx.Done():
			break feed
		}
	}
	close(keys)
	wg.Wait()

	return transferred, totalBytes, firstErr
}

// transferObject copies one object with exponential backoff retry. The
// returned error wraps the final attempt's cause in a TransferError.
func (s *Syncer) transferObject(ctx context.Context, key string) (int64, error) {
	retries := s.retries()
	delay := s.backoff()

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			s.logger().WithFields(log.Fields{
				"key":     key,
				"attempt": attempt + 1,
				"delay":   delay.String(),
			}).Warn("retrying transfer")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, &TransferError{Key: key, Err: ctx.Err()}
			}
			delay *= 2
		}

		n, err := store.Copy(ctx, s.Source, s.Destination, key)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return 0, &TransferError{Key: key, Err: lastErr}
}
