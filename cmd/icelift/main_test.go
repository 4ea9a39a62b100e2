package main

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/icelift/icelift/state"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

// Reading state must not need destination credentials or a reachable
// catalog: a config carrying only the state path is enough.
func TestOpenStateStoreWorksOffline(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")

	seed := state.NewStore(statePath, quietLogger())
	if err := seed.Load(); err != nil {
		t.Fatalf("state Load() error = %v", err)
	}
	err := seed.SetSyncResult("wildlife", "penguins", state.SyncStatus{
		Status:      state.SyncSynced,
		ObjectCount: 3,
	})
	if err != nil {
		t.Fatalf("SetSyncResult() error = %v", err)
	}

	configPath := filepath.Join(dir, "icelift.yaml")
	if err := os.WriteFile(configPath, []byte("state: "+statePath+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	st, err := openStateStore(configPath, "", quietLogger())
	if err != nil {
		t.Fatalf("openStateStore() error = %v", err)
	}
	records := st.Records()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Table != "penguins" || records[0].Sync.ObjectCount != 3 {
		t.Errorf("record = %+v, want penguins with 3 objects", records[0])
	}
}

func TestOpenStateStoreOverride(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "other-state.json")

	seed := state.NewStore(override, quietLogger())
	if err := seed.Load(); err != nil {
		t.Fatalf("state Load() error = %v", err)
	}
	if err := seed.Save(); err != nil {
		t.Fatalf("state Save() error = %v", err)
	}

	configPath := filepath.Join(dir, "icelift.yaml")
	if err := os.WriteFile(configPath, []byte("state: /nowhere/state.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	st, err := openStateStore(configPath, override, quietLogger())
	if err != nil {
		t.Fatalf("openStateStore() error = %v", err)
	}
	if st.Path() != override {
		t.Errorf("Path() = %q, want %q", st.Path(), override)
	}
}
