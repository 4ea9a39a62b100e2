package spec

// Transform represents a partition transform function.
type Transform string

const (
	TransformIdentity Transform = "identity"
	TransformYear     Transform = "year"
	TransformMonth    Transform = "month"
	TransformDay      Transform = "day"
	TransformHour     Transform = "hour"
	TransformVoid     Transform = "void"
	// Bucket and truncate transforms carry parameters, e.g. "bucket[16]".
)

// PartitionField represents a field in a partition spec.
type PartitionField struct {
	SourceID  int       `json:"source-id"`
	FieldID   int       `json:"field-id"`
	Name      string    `json:"name"`
	Transform Transform `json:"transform"`
}

// PartitionSpec represents a partition specification.
type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// UnpartitionedSpec returns an unpartitioned spec.
func UnpartitionedSpec() *PartitionSpec {
	return &PartitionSpec{
		SpecID: 0,
		Fields: []PartitionField{},
	}
}

// IsUnpartitioned returns true if this is an unpartitioned spec.
func (p *PartitionSpec) IsUnpartitioned() bool {
	return len(p.Fields) == 0
}

// NumFields returns the number of partition fields.
func (p *PartitionSpec) NumFields() int {
	return len(p.Fields)
}
