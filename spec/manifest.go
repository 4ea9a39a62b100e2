package spec

// ManifestContent represents the content type of a manifest.
type ManifestContent int

const (
	ManifestContentData   ManifestContent = 0
	ManifestContentDelete ManifestContent = 1
)

// String returns the string representation.
func (c ManifestContent) String() string {
	switch c {
	case ManifestContentData:
		return "data"
	case ManifestContentDelete:
		return "deletes"
	default:
		return "unknown"
	}
}

// FileContent represents the content type of a data file.
type FileContent int

const (
	FileContentData            FileContent = 0
	FileContentPositionDeletes FileContent = 1
	FileContentEqualityDeletes FileContent = 2
)

// FileFormat represents the format of a data file.
type FileFormat string

const (
	FileFormatParquet FileFormat = "PARQUET"
	FileFormatAvro    FileFormat = "AVRO"
	FileFormatORC     FileFormat = "ORC"
)

// EntryStatus represents the status of a manifest entry.
type EntryStatus int

const (
	EntryStatusExisting EntryStatus = 0
	EntryStatusAdded    EntryStatus = 1
	EntryStatusDeleted  EntryStatus = 2
)

// ManifestEntry represents an entry in a manifest file.
type ManifestEntry struct {
	// Status indicates whether the file is added, deleted, or existing
	Status EntryStatus `avro:"status"`

	// SnapshotID is the snapshot that added this file
	SnapshotID *int64 `avro:"snapshot_id"`

	// SequenceNumber is the data sequence number
	SequenceNumber *int64 `avro:"sequence_number"`

	// FileSequenceNumber is the file sequence number
	FileSequenceNumber *int64 `avro:"file_sequence_number"`

	// DataFile contains the data file information
	DataFile DataFile `avro:"data_file"`
}

// DataFile represents a data file in a manifest.
type DataFile struct {
	// Content type (data, position deletes, equality deletes)
	Content FileContent `avro:"content"`

	// FilePath is the full URI path to the file
	FilePath string `avro:"file_path"`

	// FileFormat is the file format (parquet, avro, orc)
	FileFormat FileFormat `avro:"file_format"`

	// PartitionData contains partition tuple data
	PartitionData map[string]any `avro:"partition"`

	// RecordCount is the number of records in the file
	RecordCount int64 `avro:"record_count"`

	// FileSizeInBytes is the size of the file in bytes
	FileSizeInBytes int64 `avro:"file_size_in_bytes"`

	// ColumnSizes maps column ID to size in bytes
	ColumnSizes map[int]int64 `avro:"column_sizes"`

	// ValueCounts maps column ID to count of values
	ValueCounts map[int]int64 `avro:"value_counts"`

	// NullValueCounts maps column ID to count of null values
	NullValueCounts map[int]int64 `avro:"null_value_counts"`

	// NaNValueCounts maps column ID to count of NaN values (for floating point)
	NaNValueCounts map[int]int64 `avro:"nan_value_counts"`

	// LowerBounds maps column ID to lower bound value
	LowerBounds map[int][]byte `avro:"lower_bounds"`

	// UpperBounds maps column ID to upper bound value
	UpperBounds map[int][]byte `avro:"upper_bounds"`

	// KeyMetadata is implementation-specific key metadata
	KeyMetadata []byte `avro:"key_metadata"`

	// SplitOffsets is a list of split offsets for the file
	SplitOffsets []int64 `avro:"split_offsets"`

	// EqualityIDs is the list of field IDs for equality deletes
	EqualityIDs []int `avro:"equality_ids"`

	// SortOrderID is the sort order ID
	SortOrderID *int `avro:"sort_order_id"`

	// ReferencedDataFile is the data file a position delete file applies
	// to, empty for plain data files
	ReferencedDataFile string `avro:"referenced_data_file"`
}

// ManifestFile represents a manifest file entry in a manifest list.
type ManifestFile struct {
	// ManifestPath is the location of the manifest file
	ManifestPath string `avro:"manifest_path"`

	// ManifestLength is the length of the manifest file
	ManifestLength int64 `avro:"manifest_length"`

	// PartitionSpecID is the spec ID for partition data
	PartitionSpecID int `avro:"partition_spec_id"`

	// Content indicates if this manifest contains data or delete files
	Content ManifestContent `avro:"content"`

	// SequenceNumber is the sequence number when the manifest was added
	SequenceNumber int64 `avro:"sequence_number"`

	// MinSequenceNumber is the minimum data sequence number in this manifest
	MinSequenceNumber int64 `avro:"min_sequence_number"`

	// AddedSnapshotID is the snapshot ID that added this manifest
	AddedSnapshotID int64 `avro:"added_snapshot_id"`

	// AddedFilesCount is the count of files added
	AddedFilesCount int `avro:"added_files_count"`

	// ExistingFilesCount is the count of existing files
	ExistingFilesCount int `avro:"existing_files_count"`

	// DeletedFilesCount is the count of deleted files
	DeletedFilesCount int `avro:"deleted_files_count"`

	// AddedRowsCount is the count of rows added
	AddedRowsCount int64 `avro:"added_rows_count"`

	// ExistingRowsCount is the count of existing rows
	ExistingRowsCount int64 `avro:"existing_rows_count"`

	// DeletedRowsCount is the count of deleted rows
	DeletedRowsCount int64 `avro:"deleted_rows_count"`

	// Partitions is a summary of partitions in this manifest
	Partitions []PartitionFieldSummary `avro:"partitions"`

	// KeyMetadata is implementation-specific key metadata
	KeyMetadata []byte `avro:"key_metadata"`
}

// PartitionFieldSummary summarizes partition values in a manifest.
type PartitionFieldSummary struct {
	ContainsNull bool   `avro:"contains_null"`
	ContainsNaN  *bool  `avro:"contains_nan"`
	LowerBound   []byte `avro:"lower_bound"`
	UpperBound   []byte `avro:"upper_bound"`
}
