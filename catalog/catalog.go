// Package catalog provides an Iceberg REST catalog client used to discover
// tables for migration.
package catalog

import (
	"context"
	"strings"

	"github.com/icelift/icelift/spec"
)

// Client is the catalog surface the migration engine needs: enumerate
// namespaces and tables, and load a table's metadata to find its location.
type Client interface {
	// ListNamespaces lists all namespaces in the catalog.
	ListNamespaces(ctx context.Context) ([]Namespace, error)

	// ListTables lists all tables in a namespace.
	ListTables(ctx context.Context, namespace Namespace) ([]TableIdentifier, error)

	// LoadTable loads a table's current metadata.
	LoadTable(ctx context.Context, identifier TableIdentifier) (*TableInfo, error)
}

// Namespace represents a multi-level namespace (e.g. ["wildlife"] or
// ["prod", "wildlife"]).
type Namespace []string

// String returns the namespace as a dot-separated string.
func (n Namespace) String() string {
	return strings.Join(n, ".")
}

// ParseNamespace parses a dot-separated namespace string.
func ParseNamespace(s string) Namespace {
	if s == "" {
		return nil
	}
	return Namespace(strings.Split(s, "."))
}

// TableIdentifier identifies a table within a catalog.
type TableIdentifier struct {
	Namespace Namespace
	Name      string
}

// String returns the fully qualified table name.
func (t TableIdentifier) String() string {
	if len(t.Namespace) == 0 {
		return t.Name
	}
	return t.Namespace.String() + "." + t.Name
}

// TableInfo is the result of loading a table from the catalog.
type TableInfo struct {
	// Metadata is the table's current metadata document.
	Metadata *spec.TableMetadata

	// MetadataLocation is the URI of the current metadata.json.
	MetadataLocation string
}

// Column describes one column of a discovered table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Entry is one discovered table. When loading the table's metadata failed,
// Err carries the failure and Location and Columns are empty; discovery
// continues with the remaining tables.
type Entry struct {
	Namespace string   `json:"namespace"`
	Table     string   `json:"table"`
	FQN       string   `json:"fqn"`
	Location  string   `json:"location,omitempty"`
	Columns   []Column `json:"schema,omitempty"`
	Err       string   `json:"error,omitempty"`
}

// Discover walks every namespace in the catalog and returns an entry per
// table. A table whose metadata cannot be loaded produces an entry with Err
// set rather than failing the walk.
func Discover(ctx context.Context, client Client) ([]Entry, error) {
	namespaces, err := client.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, ns := range namespaces {
		tables, err := client.ListTables(ctx, ns)
		if err != nil {
			return nil, err
		}
		for _, id := range tables {
			entry := Entry{
				Namespace: ns.String(),
				Table:     id.Name,
				FQN:       id.String(),
			}
			info, err := client.LoadTable(ctx, id)
			if err != nil {
				entry.Err = err.Error()
			} else {
				entry.Location = info.Metadata.Location
				entry.Columns = columnsOf(info.Metadata)
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// columnsOf flattens the current schema's top-level fields.
func columnsOf(meta *spec.TableMetadata) []Column {
	schema := meta.CurrentSchema()
	if schema == nil {
		return nil
	}
	columns := make([]Column, 0, schema.NumFields())
	for _, f := range schema.Fields {
		columns = append(columns, Column{
			Name:     f.Name,
			Type:     f.Type.String(),
			Required: f.Required,
		})
	}
	return columns
}
