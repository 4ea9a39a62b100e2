package spec

import (
	"strconv"
	"time"
)

// Operation represents the type of operation that produced a snapshot.
type Operation string

const (
	OpAppend    Operation = "append"
	OpReplace   Operation = "replace"
	OpOverwrite Operation = "overwrite"
	OpDelete    Operation = "delete"
)

// Summary contains snapshot summary information. Iceberg serializes every
// summary value as a string; the map form round-trips all keys losslessly,
// including engine-specific extras.
type Summary map[string]string

// Operation returns the operation that produced the snapshot.
func (s Summary) Operation() Operation {
	return Operation(s["operation"])
}

// Int64 returns a numeric summary value, 0 when absent or malformed.
func (s Summary) Int64(key string) int64 {
	v, err := strconv.ParseInt(s[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Snapshot represents an Iceberg table snapshot.
type Snapshot struct {
	SnapshotID       int64   `json:"snapshot-id"`
	ParentSnapshotID *int64  `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64   `json:"sequence-number"`
	TimestampMs      int64   `json:"timestamp-ms"`
	ManifestList     string  `json:"manifest-list,omitempty"`
	Summary          Summary `json:"summary,omitempty"`
	SchemaID         *int    `json:"schema-id,omitempty"`
}

// Timestamp returns the snapshot timestamp as a time.Time.
func (s *Snapshot) Timestamp() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

// HasParent returns true if this snapshot has a parent.
func (s *Snapshot) HasParent() bool {
	return s.ParentSnapshotID != nil
}

// SnapshotRef represents a reference to a snapshot (branch or tag).
type SnapshotRef struct {
	SnapshotID         int64  `json:"snapshot-id"`
	Type               string `json:"type"` // "branch" or "tag"
	MinSnapshotsToKeep *int   `json:"min-snapshots-to-keep,omitempty"`
	MaxSnapshotAgeMs   *int64 `json:"max-snapshot-age-ms,omitempty"`
	MaxRefAgeMs        *int64 `json:"max-ref-age-ms,omitempty"`
}

// SnapshotLog represents an entry in the snapshot log.
type SnapshotLog struct {
	SnapshotID  int64 `json:"snapshot-id"`
	TimestampMs int64 `json:"timestamp-ms"`
}

// Timestamp returns the log entry timestamp as a time.Time.
func (l *SnapshotLog) Timestamp() time.Time {
	return time.UnixMilli(l.TimestampMs)
}
