package icelift

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/icelift/icelift/catalog"
	"github.com/icelift/icelift/spec"
	"github.com/icelift/icelift/state"
	"github.com/icelift/icelift/store"
)

type fakeCatalog struct {
	namespace string
	tables    []string
}

func (f *fakeCatalog) ListNamespaces(ctx context.Context) ([]catalog.Namespace, error) {
	if f.namespace == "" {
		return nil, nil
	}
	return []catalog.Namespace{catalog.ParseNamespace(f.namespace)}, nil
}

func (f *fakeCatalog) ListTables(ctx context.Context, ns catalog.Namespace) ([]catalog.TableIdentifier, error) {
	ids := make([]catalog.TableIdentifier, len(f.tables))
	for i, t := range f.tables {
		ids[i] = catalog.TableIdentifier{Namespace: ns, Name: t}
	}
	return ids, nil
}

func (f *fakeCatalog) LoadTable(ctx context.Context, id catalog.TableIdentifier) (*catalog.TableInfo, error) {
	return &catalog.TableInfo{
		Metadata: &spec.TableMetadata{Location: "s3://srcbkt/" + id.Namespace.String() + "/" + id.Name},
	}, nil
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Source: SourceConfig{
			Endpoint:        "http://localhost:9000",
			Bucket:          "srcbkt",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		},
		Destination: DestinationConfig{
			Bucket:  "dstbkt",
			Profile: "default",
		},
		StatePath: filepath.Join(t.TempDir(), "state.json"),
	}
}

func newTestMigrator(t *testing.T, cat catalog.Client) (*Migrator, *store.MemStore, *store.MemStore) {
	t.Helper()
	src := store.NewMemStore("srcbkt")
	dst := store.NewMemStore("dstbkt")
	m, err := New(context.Background(), testConfig(t),
		WithLogger(quietLogger()),
		WithCatalog(cat),
		WithSourceStore(src),
		WithDestinationStore(dst),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, src, dst
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Bucket = ""

	_, err := New(context.Background(), cfg, WithLogger(quietLogger()))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestMigratorRun(t *testing.T) {
	cat := &fakeCatalog{namespace: "wildlife", tables: []string{"penguins"}}
	m, src, dst := newTestMigrator(t, cat)

	src.Seed("wildlife/penguins/data/00000-0.parquet", []byte("parquet-a"))
	src.Seed("wildlife/penguins/data/00001-0.parquet", []byte("parquet-b"))

	summary, err := m.Run(context.Background(), RunOptions{SkipRewrite: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Synced != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 synced", summary)
	}

	if _, ok := dst.Object("wildlife/penguins/data/00000-0.parquet"); !ok {
		t.Error("object missing from destination after run")
	}

	rec, ok := m.State().Get("wildlife", "penguins")
	if !ok {
		t.Fatal("state record missing")
	}
	if rec.Sync.Status != state.SyncSynced {
		t.Errorf("sync status = %q, want synced", rec.Sync.Status)
	}
	if rec.Sync.ObjectCount != 2 {
		t.Errorf("object count = %d, want 2", rec.Sync.ObjectCount)
	}

	if records := m.Status(); len(records) != 1 {
		t.Errorf("Status() returned %d records, want 1", len(records))
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMigratorRunEmptyCatalog(t *testing.T) {
	m, _, _ := newTestMigrator(t, &fakeCatalog{})

	_, err := m.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrNoTables) {
		t.Fatalf("Run() error = %v, want ErrNoTables", err)
	}
}

func TestMigratorSyncTable(t *testing.T) {
	m, src, _ := newTestMigrator(t, &fakeCatalog{})
	src.Seed("wildlife/orcas/data/00000-0.parquet", []byte("pod"))

	result, err := m.SyncTable(context.Background(), "wildlife", "orcas", false)
	if err != nil {
		t.Fatalf("SyncTable() error = %v", err)
	}
	if result.Status != state.SyncSynced || result.ObjectCount != 1 {
		t.Errorf("result = %+v, want 1 object synced", result)
	}

	rec, ok := m.State().Get("wildlife", "orcas")
	if !ok || rec.Sync.Status != state.SyncSynced {
		t.Errorf("state record = %+v, want synced", rec)
	}
}

func TestMigratorInventory(t *testing.T) {
	cat := &fakeCatalog{namespace: "wildlife", tables: []string{"penguins", "orcas"}}
	m, _, _ := newTestMigrator(t, cat)

	entries, err := m.Inventory(context.Background())
	if err != nil {
		t.Fatalf("Inventory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	m, _, _ = newTestMigrator(t, &fakeCatalog{})
	if _, err := m.Inventory(context.Background()); !errors.Is(err, ErrNoTables) {
		t.Errorf("Inventory() error = %v, want ErrNoTables", err)
	}
}

func TestMigratorClear(t *testing.T) {
	cat := &fakeCatalog{namespace: "wildlife", tables: []string{"penguins"}}
	m, src, dst := newTestMigrator(t, cat)
	src.Seed("wildlife/penguins/data/00000-0.parquet", []byte("parquet-a"))

	if _, err := m.Run(context.Background(), RunOptions{SkipRewrite: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Dry run reports the object but leaves it in place.
	result, err := m.Clear(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("Clear(dry run) error = %v", err)
	}
	if result.Objects["wildlife.penguins"] != 1 {
		t.Errorf("dry run objects = %+v, want 1 for wildlife.penguins", result.Objects)
	}
	if _, ok := dst.Object("wildlife/penguins/data/00000-0.parquet"); !ok {
		t.Fatal("dry run deleted the object")
	}

	result, err = m.Clear(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if result.Objects["wildlife.penguins"] != 1 {
		t.Errorf("cleared objects = %+v, want 1 for wildlife.penguins", result.Objects)
	}
	if _, ok := dst.Object("wildlife/penguins/data/00000-0.parquet"); ok {
		t.Error("object still present after clear")
	}

	rec, ok := m.State().Get("wildlife", "penguins")
	if !ok || rec.Sync.Status != state.SyncPending {
		t.Errorf("state after clear = %+v, want pending", rec)
	}
}

func TestMigratorClearFilters(t *testing.T) {
	cat := &fakeCatalog{namespace: "wildlife", tables: []string{"penguins", "orcas"}}
	m, src, dst := newTestMigrator(t, cat)
	src.Seed("wildlife/penguins/data/00000-0.parquet", []byte("parquet-a"))
	src.Seed("wildlife/orcas/data/00000-0.parquet", []byte("pod"))

	if _, err := m.Run(context.Background(), RunOptions{SkipRewrite: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := m.Clear(context.Background(), []string{"wildlife.penguins"}, false); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, ok := dst.Object("wildlife/penguins/data/00000-0.parquet"); ok {
		t.Error("filtered table not cleared")
	}
	if _, ok := dst.Object("wildlife/orcas/data/00000-0.parquet"); !ok {
		t.Error("unfiltered table was cleared")
	}
}

type unreachableStore struct {
	store.Store
}

func (s *unreachableStore) List(ctx context.Context, prefix string) (map[string]int64, error) {
	return nil, errors.New("connection refused")
}

func TestMigratorVerify(t *testing.T) {
	m, _, _ := newTestMigrator(t, &fakeCatalog{})
	if err := m.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	bad, err := New(context.Background(), testConfig(t),
		WithLogger(quietLogger()),
		WithCatalog(&fakeCatalog{}),
		WithSourceStore(&unreachableStore{Store: store.NewMemStore("srcbkt")}),
		WithDestinationStore(store.NewMemStore("dstbkt")),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := bad.Verify(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Verify() error = %v, want ErrSourceUnavailable", err)
	}
}
