package spec

import (
	"encoding/json"
	"testing"
)

const penguinsSchemaJSON = `{
  "schema-id": 0,
  "type": "struct",
  "fields": [
    {"id": 1, "name": "species", "required": true, "type": "string"},
    {"id": 2, "name": "island", "required": false, "type": "string"},
    {"id": 3, "name": "body_mass_g", "required": false, "type": "long"},
    {"id": 4, "name": "measurements", "required": false, "type": {
      "type": "struct",
      "fields": [
        {"id": 5, "name": "bill_length_mm", "required": false, "type": "double"},
        {"id": 6, "name": "flipper_length_mm", "required": false, "type": "double"}
      ]
    }},
    {"id": 7, "name": "tags", "required": false, "type": {
      "type": "list",
      "element-id": 8,
      "element": "string",
      "element-required": false
    }},
    {"id": 9, "name": "counts", "required": false, "type": {
      "type": "map",
      "key-id": 10,
      "key": "string",
      "value-id": 11,
      "value": "long",
      "value-required": false
    }}
  ]
}`

func TestSchemaUnmarshalJSON(t *testing.T) {
	var s Schema
	if err := json.Unmarshal([]byte(penguinsSchemaJSON), &s); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	if s.SchemaID != 0 {
		t.Errorf("SchemaID = %d, want 0", s.SchemaID)
	}
	if s.NumFields() != 6 {
		t.Fatalf("NumFields() = %d, want 6", s.NumFields())
	}

	species := s.FieldByName("species")
	if species == nil {
		t.Fatal("species field not found")
	}
	if !species.Required {
		t.Error("species should be required")
	}
	if !species.Type.Equals(StringType) {
		t.Errorf("species type = %v, want string", species.Type)
	}

	mass := s.Field(3)
	if mass == nil || mass.Name != "body_mass_g" {
		t.Fatalf("Field(3) = %v, want body_mass_g", mass)
	}
	if !mass.Type.Equals(LongType) {
		t.Errorf("body_mass_g type = %v, want long", mass.Type)
	}

	meas, ok := s.FieldByName("measurements").Type.(StructType)
	if !ok {
		t.Fatal("measurements should be a struct")
	}
	if len(meas.Fields) != 2 {
		t.Errorf("measurements fields = %d, want 2", len(meas.Fields))
	}

	tags, ok := s.FieldByName("tags").Type.(ListType)
	if !ok {
		t.Fatal("tags should be a list")
	}
	if tags.ElementID != 8 || !tags.Element.Equals(StringType) {
		t.Errorf("tags list = %+v", tags)
	}

	counts, ok := s.FieldByName("counts").Type.(MapType)
	if !ok {
		t.Fatal("counts should be a map")
	}
	if !counts.Key.Equals(StringType) || !counts.Value.Equals(LongType) {
		t.Errorf("counts map = %+v", counts)
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	var s Schema
	if err := json.Unmarshal([]byte(penguinsSchemaJSON), &s); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	data, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var again Schema
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatalf("Unmarshal(re-marshaled) error = %v", err)
	}

	if again.NumFields() != s.NumFields() {
		t.Fatalf("NumFields() = %d, want %d", again.NumFields(), s.NumFields())
	}
	for i, f := range s.Fields {
		g := again.Fields[i]
		if g.ID != f.ID || g.Name != f.Name || g.Required != f.Required {
			t.Errorf("field %d = %+v, want %+v", i, g, f)
		}
		if !g.Type.Equals(f.Type) {
			t.Errorf("field %s type = %v, want %v", f.Name, g.Type, f.Type)
		}
	}
}

func TestSchemaMarshalDecimalAndFixed(t *testing.T) {
	s := Schema{
		SchemaID: 1,
		Fields: []NestedField{
			{ID: 1, Name: "amount", Type: DecimalType{Precision: 12, Scale: 2}, Required: true},
			{ID: 2, Name: "digest", Type: FixedType{Length: 32}},
		},
	}

	data, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var again Schema
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if !again.Fields[0].Type.Equals(DecimalType{Precision: 12, Scale: 2}) {
		t.Errorf("amount type = %v", again.Fields[0].Type)
	}
	if !again.Fields[1].Type.Equals(FixedType{Length: 32}) {
		t.Errorf("digest type = %v", again.Fields[1].Type)
	}
}

func TestSchemaUnmarshalBadFieldType(t *testing.T) {
	raw := `{"schema-id": 0, "type": "struct", "fields": [
		{"id": 1, "name": "x", "required": true, "type": "varchar"}
	]}`

	var s Schema
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		t.Error("expected error for unknown field type")
	}
}
