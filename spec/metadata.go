package spec

import (
	"encoding/json"
	"fmt"
)

// FormatVersion represents the Iceberg format version.
type FormatVersion int

const (
	FormatVersionV1 FormatVersion = 1
	FormatVersionV2 FormatVersion = 2
)

// SortDirection represents the sort direction.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// NullOrder represents the null ordering.
type NullOrder string

const (
	NullsFirst NullOrder = "nulls-first"
	NullsLast  NullOrder = "nulls-last"
)

// SortField represents a field in a sort order.
type SortField struct {
	Transform string        `json:"transform"`
	SourceID  int           `json:"source-id"`
	Direction SortDirection `json:"direction"`
	NullOrder NullOrder     `json:"null-order"`
}

// SortOrder represents a sort order for a table.
type SortOrder struct {
	OrderID int         `json:"order-id"`
	Fields  []SortField `json:"fields"`
}

// TableMetadata represents the metadata of an Iceberg table. It is the root
// of the metadata tree: snapshots reference manifest lists, which reference
// manifests, which reference data files.
type TableMetadata struct {
	FormatVersion      FormatVersion          `json:"format-version"`
	TableUUID          string                 `json:"table-uuid"`
	Location           string                 `json:"location"`
	LastUpdatedMs      int64                  `json:"last-updated-ms"`
	LastColumnID       int                    `json:"last-column-id"`
	Schemas            []*Schema              `json:"schemas"`
	CurrentSchemaID    int                    `json:"current-schema-id"`
	PartitionSpecs     []PartitionSpec        `json:"partition-specs"`
	DefaultSpecID      int                    `json:"default-spec-id"`
	LastPartitionID    int                    `json:"last-partition-id"`
	Properties         map[string]string      `json:"properties,omitempty"`
	CurrentSnapshotID  *int64                 `json:"current-snapshot-id,omitempty"`
	Snapshots          []Snapshot             `json:"snapshots,omitempty"`
	SnapshotLog        []SnapshotLog          `json:"snapshot-log,omitempty"`
	MetadataLog        []MetadataLogEntry     `json:"metadata-log,omitempty"`
	SortOrders         []SortOrder            `json:"sort-orders"`
	DefaultSortOrderID int                    `json:"default-sort-order-id"`
	Refs               map[string]SnapshotRef `json:"refs,omitempty"`

	// V1 compatibility fields (deprecated in V2)
	Schema        *Schema          `json:"schema,omitempty"`         // V1 only
	PartitionSpec []PartitionField `json:"partition-spec,omitempty"` // V1 only
}

// MetadataLogEntry represents an entry in the metadata log.
type MetadataLogEntry struct {
	TimestampMs  int64  `json:"timestamp-ms"`
	MetadataFile string `json:"metadata-file"`
}

// CurrentSchema returns the current schema.
func (m *TableMetadata) CurrentSchema() *Schema {
	for _, s := range m.Schemas {
		if s.SchemaID == m.CurrentSchemaID {
			return s
		}
	}
	// Fallback to V1 schema
	if m.Schema != nil {
		return m.Schema
	}
	return nil
}

// DefaultPartitionSpec returns the default partition spec.
func (m *TableMetadata) DefaultPartitionSpec() *PartitionSpec {
	for i := range m.PartitionSpecs {
		if m.PartitionSpecs[i].SpecID == m.DefaultSpecID {
			return &m.PartitionSpecs[i]
		}
	}
	return nil
}

// CurrentSnapshot returns the current snapshot.
func (m *TableMetadata) CurrentSnapshot() *Snapshot {
	if m.CurrentSnapshotID == nil {
		return nil
	}
	for i := range m.Snapshots {
		if m.Snapshots[i].SnapshotID == *m.CurrentSnapshotID {
			return &m.Snapshots[i]
		}
	}
	return nil
}

// SnapshotByID returns a snapshot by its ID.
func (m *TableMetadata) SnapshotByID(id int64) *Snapshot {
	for i := range m.Snapshots {
		if m.Snapshots[i].SnapshotID == id {
			return &m.Snapshots[i]
		}
	}
	return nil
}

// ManifestListURIs returns the manifest-list URI of every snapshot, in
// snapshot order. Snapshots without a manifest list contribute nothing.
func (m *TableMetadata) ManifestListURIs() []string {
	var uris []string
	for i := range m.Snapshots {
		if m.Snapshots[i].ManifestList != "" {
			uris = append(uris, m.Snapshots[i].ManifestList)
		}
	}
	return uris
}

// ParseTableMetadata parses table metadata from JSON.
func ParseTableMetadata(data []byte) (*TableMetadata, error) {
	var meta TableMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse table metadata: %w", err)
	}

	// Normalize V1 documents to the V2 shape.
	if meta.FormatVersion == FormatVersionV1 {
		if meta.Schema != nil && len(meta.Schemas) == 0 {
			meta.Schemas = []*Schema{meta.Schema}
			meta.CurrentSchemaID = meta.Schema.SchemaID
		}
		if len(meta.PartitionSpec) > 0 && len(meta.PartitionSpecs) == 0 {
			meta.PartitionSpecs = []PartitionSpec{
				{
					SpecID: 0,
					Fields: meta.PartitionSpec,
				},
			}
			meta.DefaultSpecID = 0
		}
	}

	return &meta, nil
}

// ToJSON serializes the metadata to JSON.
func (m *TableMetadata) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
