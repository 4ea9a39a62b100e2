// Package state persists per-table migration progress as a single JSON
// document, rewritten atomically after every state transition so an
// interrupted run can resume exactly where it stopped.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNotSynced is returned when a register transition is attempted on a
// table whose sync has not completed.
var ErrNotSynced = errors.New("table is not synced")

// SyncState enumerates the sync lifecycle of a table.
type SyncState string

// Sync lifecycle states.
const (
	SyncPending    SyncState = "pending"
	SyncInProgress SyncState = "in_progress"
	SyncSynced     SyncState = "synced"
	SyncFailed     SyncState = "failed"
)

// RegisterState enumerates the downstream registration lifecycle of a
// table. Registration itself happens outside this system; the slot is
// stored here so one document describes the whole migration.
type RegisterState string

// Register lifecycle states.
const (
	RegisterPending RegisterState = "pending"
	RegisterDone    RegisterState = "done"
	RegisterFailed  RegisterState = "failed"
)

// SyncStatus records the outcome of a table's object sync and, once the
// sync has succeeded, its metadata rewrite.
type SyncStatus struct {
	Status       SyncState `json:"status"`
	ObjectCount  int       `json:"object_count"`
	TotalBytes   int64     `json:"total_bytes"`
	LastSync     string    `json:"last_sync,omitempty"`
	Error        string    `json:"error,omitempty"`
	RewriteCount int       `json:"rewrite_count,omitempty"`
	RewriteError string    `json:"rewrite_error,omitempty"`
}

// RegisterStatus records the outcome of the downstream registration step.
type RegisterStatus struct {
	Status       RegisterState `json:"status"`
	TargetTable  string        `json:"target_table,omitempty"`
	MetadataPath string        `json:"metadata_path,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// TableRecord is the per-table migration record. Namespace and Table are
// set once at discovery and never change.
type TableRecord struct {
	Namespace string         `json:"namespace"`
	Table     string         `json:"table"`
	Sync      SyncStatus     `json:"sync"`
	Register  RegisterStatus `json:"register"`
}

// SourceInfo holds source store connection facts.
type SourceInfo struct {
	Endpoint string `json:"endpoint,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
}

// DestinationInfo holds destination store connection facts, including the
// account identity verified at setup.
type DestinationInfo struct {
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	Profile   string `json:"profile,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// Document is the root persisted record. The catalog and snowflake
// sections belong to external collaborators and round-trip untouched.
type Document struct {
	AWS       *DestinationInfo        `json:"aws,omitempty"`
	Source    *SourceInfo             `json:"source,omitempty"`
	Catalog   json.RawMessage         `json:"catalog,omitempty"`
	Snowflake json.RawMessage         `json:"snowflake,omitempty"`
	Tables    map[string]*TableRecord `json:"tables"`
}

// Key derives the stable table key used in the document: namespace and
// table joined with an underscore, uppercased, hyphens replaced by
// underscores.
func Key(namespace, table string) string {
	return strings.ToUpper(strings.ReplaceAll(namespace+"_"+table, "-", "_"))
}

// Store is a file-backed migration state store. It serializes its own
// callers; concurrent writer processes on the same file are out of
// contract.
type Store struct {
	mu     sync.Mutex
	path   string
	doc    *Document
	logger log.FieldLogger
}

// NewStore creates a state store persisting to the given path. Nothing is
// read until Load is called.
func NewStore(path string, logger log.FieldLogger) *Store {
	return &Store{
		path:   path,
		doc:    emptyDocument(),
		logger: logger.WithField("component", "state"),
	}
}

func emptyDocument() *Document {
	return &Document{Tables: make(map[string]*TableRecord)}
}

// Path returns the file path backing this store.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk. A missing file yields an empty
// document, not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.doc = emptyDocument()
			return nil
		}
		return fmt.Errorf("failed to read state %s: %w", s.path, err)
	}

	doc := emptyDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to parse state %s: %w", s.path, err)
	}
	if doc.Tables == nil {
		doc.Tables = make(map[string]*TableRecord)
	}
	s.doc = doc
	return nil
}

// Save rewrites the whole document atomically: marshal, write a temporary
// file with owner-only permissions in the same directory, then rename over
// the target.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString()[:8])
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save state file: %w", err)
	}

	s.logger.WithField("path", s.path).Debug("state saved")
	return nil
}

// Table returns the record for the given table, creating and seeding it
// if absent. The caller must persist with Save (or use the Set helpers).
func (s *Store) Table(namespace, table string) *TableRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table(namespace, table)
}

func (s *Store) table(namespace, table string) *TableRecord {
	key := Key(namespace, table)
	rec, ok := s.doc.Tables[key]
	if !ok {
		rec = &TableRecord{
			Namespace: namespace,
			Table:     table,
			Sync:      SyncStatus{Status: SyncPending},
			Register:  RegisterStatus{Status: RegisterPending},
		}
		s.doc.Tables[key] = rec
	}
	return rec
}

// Get returns the record for the given table without creating it.
func (s *Store) Get(namespace, table string) (*TableRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Tables[Key(namespace, table)]
	return rec, ok
}

// Records returns the table records sorted by key.
func (s *Store) Records() []*TableRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.doc.Tables))
	for k := range s.doc.Tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]*TableRecord, 0, len(keys))
	for _, k := range keys {
		records = append(records, s.doc.Tables[k])
	}
	return records
}

// SetConnections records the store connection facts and persists.
func (s *Store) SetConnections(src *SourceInfo, dst *DestinationInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src != nil {
		s.doc.Source = src
	}
	if dst != nil {
		s.doc.AWS = dst
	}
	return s.save()
}

// SetInProgress marks a table's sync as in progress and persists. A crash
// after this point leaves the table eligible for re-processing on the
// next run.
func (s *Store) SetInProgress(namespace, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.table(namespace, table)
	rec.Sync = SyncStatus{Status: SyncInProgress, LastSync: nowISO()}
	return s.save()
}

// SetSyncResult replaces a table's sync status and persists.
func (s *Store) SetSyncResult(namespace, table string, status SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.table(namespace, table)
	rec.Sync = status
	return s.save()
}

// SetRewriteResult records the metadata rewrite outcome on a table's sync
// status and persists. The sync status itself is left untouched.
func (s *Store) SetRewriteResult(namespace, table string, count int, rewriteErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.table(namespace, table)
	rec.Sync.RewriteCount = count
	if rewriteErr != nil {
		rec.Sync.RewriteError = rewriteErr.Error()
	} else {
		rec.Sync.RewriteError = ""
	}
	return s.save()
}

// SetRegister replaces a table's register status and persists. The status
// may only advance past pending once the table's sync has succeeded.
func (s *Store) SetRegister(namespace, table string, status RegisterStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.table(namespace, table)
	if status.Status != RegisterPending && rec.Sync.Status != SyncSynced {
		return fmt.Errorf("cannot register %s.%s: %w", namespace, table, ErrNotSynced)
	}
	rec.Register = status
	return s.save()
}

// ResetTable returns a table's sync and register states to pending and
// persists. Used by the clear operation before a re-sync.
func (s *Store) ResetTable(namespace, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.table(namespace, table)
	rec.Sync = SyncStatus{Status: SyncPending}
	rec.Register = RegisterStatus{Status: RegisterPending}
	return s.save()
}

// Reset truncates the table map to empty and persists. Connection facts
// and collaborator sections are kept.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Tables = make(map[string]*TableRecord)
	return s.save()
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
