package spec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/linkedin/goavro/v2"
)

// AvroSchemaManifestListV2 is the Avro schema for manifest list files (V2).
const AvroSchemaManifestListV2 = `{
  "type": "record",
  "name": "manifest_file",
  "fields": [
    {"name": "manifest_path", "type": "string"},
    {"name": "manifest_length", "type": "long"},
    {"name": "partition_spec_id", "type": "int"},
    {"name": "content", "type": "int", "default": 0},
    {"name": "sequence_number", "type": "long", "default": 0},
    {"name": "min_sequence_number", "type": "long", "default": 0},
    {"name": "added_snapshot_id", "type": "long"},
    {"name": "added_files_count", "type": "int", "default": 0},
    {"name": "existing_files_count", "type": "int", "default": 0},
    {"name": "deleted_files_count", "type": "int", "default": 0},
    {"name": "added_rows_count", "type": "long", "default": 0},
    {"name": "existing_rows_count", "type": "long", "default": 0},
    {"name": "deleted_rows_count", "type": "long", "default": 0},
    {"name": "partitions", "type": {
      "type": "array",
      "items": {
        "type": "record",
        "name": "field_summary",
        "fields": [
          {"name": "contains_null", "type": "boolean"},
          {"name": "contains_nan", "type": ["null", "boolean"], "default": null},
          {"name": "lower_bound", "type": ["null", "bytes"], "default": null},
          {"name": "upper_bound", "type": ["null", "bytes"], "default": null}
        ]
      }
    }, "default": []},
    {"name": "key_metadata", "type": ["null", "bytes"], "default": null}
  ]
}`

// AvroSchemaManifestEntryV2Template is the Avro schema for manifest entries
// (V2). The partition record type depends on the table's partition spec and
// is substituted in by the writer.
const AvroSchemaManifestEntryV2Template = `{
  "type": "record",
  "name": "manifest_entry",
  "fields": [
    {"name": "status", "type": "int"},
    {"name": "snapshot_id", "type": ["null", "long"], "default": null},
    {"name": "sequence_number", "type": ["null", "long"], "default": null},
    {"name": "file_sequence_number", "type": ["null", "long"], "default": null},
    {"name": "data_file", "type": {
      "type": "record",
      "name": "data_file",
      "fields": [
        {"name": "content", "type": "int", "default": 0},
        {"name": "file_path", "type": "string"},
        {"name": "file_format", "type": "string"},
        {"name": "partition", "type": %s},
        {"name": "record_count", "type": "long"},
        {"name": "file_size_in_bytes", "type": "long"},
        {"name": "column_sizes", "type": ["null", {"type": "map", "values": "long"}], "default": null},
        {"name": "value_counts", "type": ["null", {"type": "map", "values": "long"}], "default": null},
        {"name": "null_value_counts", "type": ["null", {"type": "map", "values": "long"}], "default": null},
        {"name": "nan_value_counts", "type": ["null", {"type": "map", "values": "long"}], "default": null},
        {"name": "lower_bounds", "type": ["null", {"type": "map", "values": "bytes"}], "default": null},
        {"name": "upper_bounds", "type": ["null", {"type": "map", "values": "bytes"}], "default": null},
        {"name": "key_metadata", "type": ["null", "bytes"], "default": null},
        {"name": "split_offsets", "type": ["null", {"type": "array", "items": "long"}], "default": null},
        {"name": "equality_ids", "type": ["null", {"type": "array", "items": "int"}], "default": null},
        {"name": "sort_order_id", "type": ["null", "int"], "default": null},
        {"name": "referenced_data_file", "type": ["null", "string"], "default": null}
      ]
    }}
  ]
}`

// OCFFile is a decoded Avro object container file. It keeps the writer
// schema, the compression codec, and the application metadata exactly as
// read, so a file can be re-encoded after mutating record values without
// any structural change. Records are goavro's native representation
// (map[string]any per record, unions as single-key maps).
type OCFFile struct {
	Schema      string
	Compression string
	Metadata    map[string][]byte
	Records     []map[string]any
}

// ReadOCF decodes an Avro object container file, preserving its writer
// schema, compression codec, and application metadata.
func ReadOCF(r io.Reader) (*OCFFile, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open avro file: %w", err)
	}

	meta := ocf.MetaData()
	f := &OCFFile{
		Schema:      string(meta["avro.schema"]),
		Compression: "null",
		Metadata:    make(map[string][]byte),
	}
	if c, ok := meta["avro.codec"]; ok && len(c) > 0 {
		f.Compression = string(c)
	}
	for k, v := range meta {
		if strings.HasPrefix(k, "avro.") {
			continue
		}
		f.Metadata[k] = v
	}

	for ocf.Scan() {
		record, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read avro record: %w", err)
		}
		m, ok := record.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected avro record type %T", record)
		}
		f.Records = append(f.Records, m)
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("error reading avro file: %w", err)
	}

	return f, nil
}

// Encode re-serializes the file with its original writer schema,
// compression codec, and application metadata.
func (f *OCFFile) Encode() ([]byte, error) {
	codec, err := goavro.NewCodec(f.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	buf := new(bytes.Buffer)
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               buf,
		Codec:           codec,
		CompressionName: f.Compression,
		MetaData:        f.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	records := make([]any, len(f.Records))
	for i, rec := range f.Records {
		records[i] = rec
	}
	if err := ocf.Append(records); err != nil {
		return nil, fmt.Errorf("failed to write avro records: %w", err)
	}

	return buf.Bytes(), nil
}

// ManifestPaths returns every manifest_path value in a manifest list's
// records, in record order.
func (f *OCFFile) ManifestPaths() []string {
	var paths []string
	for _, rec := range f.Records {
		if p, ok := rec["manifest_path"].(string); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// RewriteManifestPaths applies rewrite to each manifest_path in a manifest
// list's records. No other field is touched.
func (f *OCFFile) RewriteManifestPaths(rewrite func(string) string) {
	for _, rec := range f.Records {
		if p, ok := rec["manifest_path"].(string); ok {
			rec["manifest_path"] = rewrite(p)
		}
	}
}

// RewriteDataFilePaths applies rewrite to data_file.file_path and, when
// present and non-empty, data_file.referenced_data_file in a manifest's
// records. All other fields (partition values, statistics, bounds) are
// left untouched.
func (f *OCFFile) RewriteDataFilePaths(rewrite func(string) string) {
	for _, rec := range f.Records {
		df, ok := rec["data_file"].(map[string]any)
		if !ok {
			continue
		}
		if p, ok := df["file_path"].(string); ok {
			df["file_path"] = rewrite(p)
		}
		switch v := df["referenced_data_file"].(type) {
		case string:
			if v != "" {
				df["referenced_data_file"] = rewrite(v)
			}
		case map[string]any:
			// Union-wrapped optional string.
			if s, ok := v["string"].(string); ok && s != "" {
				v["string"] = rewrite(s)
			}
		}
	}
}

// ManifestListWriter writes manifest list files in Avro format.
type ManifestListWriter struct {
	codec  *goavro.Codec
	buffer *bytes.Buffer
	ocf    *goavro.OCFWriter
}

// NewManifestListWriter creates a new manifest list writer.
func NewManifestListWriter() (*ManifestListWriter, error) {
	codec, err := goavro.NewCodec(AvroSchemaManifestListV2)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	buf := new(bytes.Buffer)
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               buf,
		Codec:           codec,
		CompressionName: "deflate",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	return &ManifestListWriter{
		codec:  codec,
		buffer: buf,
		ocf:    ocf,
	}, nil
}

// Append appends a manifest file entry.
func (w *ManifestListWriter) Append(mf ManifestFile) error {
	record := map[string]any{
		"manifest_path":        mf.ManifestPath,
		"manifest_length":      mf.ManifestLength,
		"partition_spec_id":    mf.PartitionSpecID,
		"content":              int(mf.Content),
		"sequence_number":      mf.SequenceNumber,
		"min_sequence_number":  mf.MinSequenceNumber,
		"added_snapshot_id":    mf.AddedSnapshotID,
		"added_files_count":    mf.AddedFilesCount,
		"existing_files_count": mf.ExistingFilesCount,
		"deleted_files_count":  mf.DeletedFilesCount,
		"added_rows_count":     mf.AddedRowsCount,
		"existing_rows_count":  mf.ExistingRowsCount,
		"deleted_rows_count":   mf.DeletedRowsCount,
	}

	partitions := make([]any, len(mf.Partitions))
	for i, p := range mf.Partitions {
		ps := map[string]any{
			"contains_null": p.ContainsNull,
		}
		if p.ContainsNaN != nil {
			ps["contains_nan"] = goavro.Union("boolean", *p.ContainsNaN)
		} else {
			ps["contains_nan"] = nil
		}
		if p.LowerBound != nil {
			ps["lower_bound"] = goavro.Union("bytes", p.LowerBound)
		} else {
			ps["lower_bound"] = nil
		}
		if p.UpperBound != nil {
			ps["upper_bound"] = goavro.Union("bytes", p.UpperBound)
		} else {
			ps["upper_bound"] = nil
		}
		partitions[i] = ps
	}
	record["partitions"] = partitions

	if mf.KeyMetadata != nil {
		record["key_metadata"] = goavro.Union("bytes", mf.KeyMetadata)
	} else {
		record["key_metadata"] = nil
	}

	return w.ocf.Append([]any{record})
}

// Bytes returns the written Avro data.
func (w *ManifestListWriter) Bytes() []byte {
	return w.buffer.Bytes()
}

// ManifestWriter writes manifest files in Avro format.
type ManifestWriter struct {
	codec  *goavro.Codec
	buffer *bytes.Buffer
	ocf    *goavro.OCFWriter
}

// NewManifestWriter creates a new manifest writer. The schema and
// partition-spec identifiers are embedded as OCF application metadata the
// way Iceberg readers expect.
func NewManifestWriter(schemaID, specID int, content ManifestContent, partitionSpec *PartitionSpec) (*ManifestWriter, error) {
	partitionSchema := buildPartitionAvroSchema(partitionSpec)
	avroSchema := fmt.Sprintf(AvroSchemaManifestEntryV2Template, partitionSchema)

	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	metadata := map[string][]byte{
		"schema":         []byte(fmt.Sprintf(`{"schema-id": %d}`, schemaID)),
		"partition-spec": []byte(fmt.Sprintf(`{"spec-id": %d}`, specID)),
		"content":        []byte(fmt.Sprintf("%d", content)),
		"format-version": []byte("2"),
	}

	buf := new(bytes.Buffer)
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               buf,
		Codec:           codec,
		CompressionName: "deflate",
		MetaData:        metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	return &ManifestWriter{
		codec:  codec,
		buffer: buf,
		ocf:    ocf,
	}, nil
}

// buildPartitionAvroSchema builds the Avro schema for partition data.
func buildPartitionAvroSchema(spec *PartitionSpec) string {
	if spec == nil || len(spec.Fields) == 0 {
		return `{"type": "record", "name": "partition_data", "fields": []}`
	}

	var sb strings.Builder
	sb.WriteString(`{"type": "record", "name": "partition_data", "fields": [`)
	for i, f := range spec.Fields {
		avroType := `["null", "string"]`
		switch f.Transform {
		case TransformYear, TransformMonth, TransformDay, TransformHour:
			avroType = `["null", "int"]`
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, `{"name": %q, "type": %s, "default": null}`, f.Name, avroType)
	}
	sb.WriteString("]}")
	return sb.String()
}

// Append appends a manifest entry.
func (w *ManifestWriter) Append(entry ManifestEntry) error {
	record := map[string]any{
		"status": int(entry.Status),
	}

	if entry.SnapshotID != nil {
		record["snapshot_id"] = goavro.Union("long", *entry.SnapshotID)
	} else {
		record["snapshot_id"] = nil
	}
	if entry.SequenceNumber != nil {
		record["sequence_number"] = goavro.Union("long", *entry.SequenceNumber)
	} else {
		record["sequence_number"] = nil
	}
	if entry.FileSequenceNumber != nil {
		record["file_sequence_number"] = goavro.Union("long", *entry.FileSequenceNumber)
	} else {
		record["file_sequence_number"] = nil
	}

	df := entry.DataFile
	dataFile := map[string]any{
		"content":            int(df.Content),
		"file_path":          df.FilePath,
		"file_format":        string(df.FileFormat),
		"record_count":       df.RecordCount,
		"file_size_in_bytes": df.FileSizeInBytes,
	}

	if df.PartitionData != nil {
		dataFile["partition"] = df.PartitionData
	} else {
		dataFile["partition"] = map[string]any{}
	}

	dataFile["column_sizes"] = optionalIntMap(df.ColumnSizes)
	dataFile["value_counts"] = optionalIntMap(df.ValueCounts)
	dataFile["null_value_counts"] = optionalIntMap(df.NullValueCounts)
	dataFile["nan_value_counts"] = optionalIntMap(df.NaNValueCounts)
	dataFile["lower_bounds"] = optionalBytesMap(df.LowerBounds)
	dataFile["upper_bounds"] = optionalBytesMap(df.UpperBounds)

	if df.KeyMetadata != nil {
		dataFile["key_metadata"] = goavro.Union("bytes", df.KeyMetadata)
	} else {
		dataFile["key_metadata"] = nil
	}

	if len(df.SplitOffsets) > 0 {
		offsets := make([]any, len(df.SplitOffsets))
		for i, o := range df.SplitOffsets {
			offsets[i] = o
		}
		dataFile["split_offsets"] = goavro.Union("array", offsets)
	} else {
		dataFile["split_offsets"] = nil
	}

	if len(df.EqualityIDs) > 0 {
		ids := make([]any, len(df.EqualityIDs))
		for i, id := range df.EqualityIDs {
			ids[i] = id
		}
		dataFile["equality_ids"] = goavro.Union("array", ids)
	} else {
		dataFile["equality_ids"] = nil
	}

	if df.SortOrderID != nil {
		dataFile["sort_order_id"] = goavro.Union("int", *df.SortOrderID)
	} else {
		dataFile["sort_order_id"] = nil
	}

	if df.ReferencedDataFile != "" {
		dataFile["referenced_data_file"] = goavro.Union("string", df.ReferencedDataFile)
	} else {
		dataFile["referenced_data_file"] = nil
	}

	record["data_file"] = dataFile

	return w.ocf.Append([]any{record})
}

// Bytes returns the written Avro data.
func (w *ManifestWriter) Bytes() []byte {
	return w.buffer.Bytes()
}

// optionalIntMap wraps a field-ID keyed count map as an optional Avro map.
func optionalIntMap(m map[int]int64) any {
	if len(m) == 0 {
		return nil
	}
	result := make(map[string]any)
	for k, v := range m {
		result[fmt.Sprintf("%d", k)] = v
	}
	return goavro.Union("map", result)
}

// optionalBytesMap wraps a field-ID keyed bounds map as an optional Avro map.
func optionalBytesMap(m map[int][]byte) any {
	if len(m) == 0 {
		return nil
	}
	result := make(map[string]any)
	for k, v := range m {
		result[fmt.Sprintf("%d", k)] = v
	}
	return goavro.Union("map", result)
}
