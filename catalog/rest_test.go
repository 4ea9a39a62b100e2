package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakePolaris(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/catalog/v1/oauth/tokens", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("grant_type") != "client_credentials" {
			http.Error(w, "bad grant type", http.StatusBadRequest)
			return
		}
		if r.FormValue("client_id") != "root" || r.FormValue("client_secret") != "s3cr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error": {"message": "invalid credentials", "type": "NotAuthorizedException", "code": 401}}`)
			return
		}
		if r.Header.Get("Polaris-Realm") != "POLARIS" {
			http.Error(w, "missing realm", http.StatusBadRequest)
			return
		}
		if r.FormValue("scope") != DefaultScope {
			http.Error(w, "bad scope", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"access_token": "tok-123", "token_type": "bearer", "expires_in": 3600}`)
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error": {"message": "unauthorized", "type": "NotAuthorizedException", "code": 401}}`)
				return
			}
			next(w, r)
		}
	}

	mux.Handle("/api/catalog/v1/lakehouse/namespaces", authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"namespaces": [["wildlife"]]}`)
	}))
	mux.Handle("/api/catalog/v1/lakehouse/namespaces/wildlife/tables", authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"identifiers": [
			{"namespace": ["wildlife"], "name": "penguins"},
			{"namespace": ["wildlife"], "name": "corrupt"}
		]}`)
	}))
	mux.Handle("/api/catalog/v1/lakehouse/namespaces/wildlife/tables/penguins", authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"metadata-location": "s3://warehouse/wildlife/penguins/metadata/v2.metadata.json",
			"metadata": {
				"format-version": 2,
				"table-uuid": "9c12d441-03fe-4693-9a96-a0705ddf69c1",
				"location": "s3://warehouse/wildlife/penguins",
				"last-updated-ms": 1700000000000,
				"last-column-id": 2,
				"current-schema-id": 0,
				"schemas": [
					{"schema-id": 0, "type": "struct", "fields": [
						{"id": 1, "name": "species", "required": true, "type": "string"},
						{"id": 2, "name": "body_mass_g", "required": false, "type": "long"}
					]}
				],
				"default-spec-id": 0,
				"partition-specs": [{"spec-id": 0, "fields": []}],
				"last-partition-id": 999,
				"default-sort-order-id": 0,
				"sort-orders": [{"order-id": 0, "fields": []}]
			}
		}`)
	}))
	mux.Handle("/api/catalog/v1/lakehouse/namespaces/wildlife/tables/corrupt", authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"message": "table not found", "type": "NoSuchTableException", "code": 404}}`)
	}))

	return httptest.NewServer(mux)
}

func newTestCatalog(srv *httptest.Server) *RESTCatalog {
	return NewRESTCatalog(srv.URL, "lakehouse",
		WithCredential("root", "s3cr3t"),
		WithRealm("POLARIS"),
		WithHTTPClient(srv.Client()),
	)
}

func TestRESTCatalogListNamespaces(t *testing.T) {
	srv := fakePolaris(t)
	defer srv.Close()

	c := newTestCatalog(srv)
	namespaces, err := c.ListNamespaces(context.Background())
	if err != nil {
		t.Fatalf("ListNamespaces() error = %v", err)
	}
	if len(namespaces) != 1 || namespaces[0].String() != "wildlife" {
		t.Errorf("namespaces = %v, want [wildlife]", namespaces)
	}
}

func TestRESTCatalogListTables(t *testing.T) {
	srv := fakePolaris(t)
	defer srv.Close()

	c := newTestCatalog(srv)
	tables, err := c.ListTables(context.Background(), Namespace{"wildlife"})
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables = %v, want 2 entries", tables)
	}
	if tables[0].String() != "wildlife.penguins" {
		t.Errorf("tables[0] = %q, want wildlife.penguins", tables[0])
	}
}

func TestRESTCatalogLoadTable(t *testing.T) {
	srv := fakePolaris(t)
	defer srv.Close()

	c := newTestCatalog(srv)
	info, err := c.LoadTable(context.Background(), TableIdentifier{
		Namespace: Namespace{"wildlife"},
		Name:      "penguins",
	})
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}

	if info.Metadata.Location != "s3://warehouse/wildlife/penguins" {
		t.Errorf("Location = %q", info.Metadata.Location)
	}
	if info.MetadataLocation != "s3://warehouse/wildlife/penguins/metadata/v2.metadata.json" {
		t.Errorf("MetadataLocation = %q", info.MetadataLocation)
	}
	if info.Metadata.CurrentSchema() == nil {
		t.Error("CurrentSchema() = nil")
	}
}

func TestRESTCatalogBadCredentials(t *testing.T) {
	srv := fakePolaris(t)
	defer srv.Close()

	c := NewRESTCatalog(srv.URL, "lakehouse",
		WithCredential("root", "wrong"),
		WithRealm("POLARIS"),
		WithHTTPClient(srv.Client()),
	)
	if _, err := c.ListNamespaces(context.Background()); err == nil {
		t.Error("expected error with bad credentials")
	}
}

func TestDiscover(t *testing.T) {
	srv := fakePolaris(t)
	defer srv.Close()

	entries, err := Discover(context.Background(), newTestCatalog(srv))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	penguins := entries[0]
	if penguins.FQN != "wildlife.penguins" {
		t.Errorf("FQN = %q", penguins.FQN)
	}
	if penguins.Location != "s3://warehouse/wildlife/penguins" {
		t.Errorf("Location = %q", penguins.Location)
	}
	if len(penguins.Columns) != 2 || penguins.Columns[0].Name != "species" {
		t.Errorf("Columns = %+v", penguins.Columns)
	}
	if penguins.Err != "" {
		t.Errorf("Err = %q, want empty", penguins.Err)
	}

	// Load failures stay local to the table.
	corrupt := entries[1]
	if corrupt.Err == "" {
		t.Error("corrupt table should carry an error")
	}
	if corrupt.Location != "" {
		t.Errorf("corrupt Location = %q, want empty", corrupt.Location)
	}
}

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"wildlife", 1},
		{"prod.wildlife", 2},
	}
	for _, tt := range tests {
		if got := len(ParseNamespace(tt.raw)); got != tt.want {
			t.Errorf("ParseNamespace(%q) levels = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
