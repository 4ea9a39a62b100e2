package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemStorePutAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore("test")
	content := []byte("Hello, Iceberg!")

	if err := m.Put(ctx, "wildlife/penguins/data/00000.parquet", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	body, size, err := m.Get(ctx, "wildlife/penguins/data/00000.parquet")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer body.Close()

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestMemStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore("test")

	_, _, err := m.Get(ctx, "absent")
	if err == nil {
		t.Fatal("Get on missing key succeeded, want error")
	}
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error type = %T, want *OpError", err)
	}
	if opErr.Op != "get" || opErr.Key != "absent" {
		t.Errorf("OpError = %q on %q, want get on absent", opErr.Op, opErr.Key)
	}
}

func TestMemStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore("test")
	m.Seed("wildlife/penguins/metadata/v1.metadata.json", []byte("aa"))
	m.Seed("wildlife/penguins/data/00000.parquet", []byte("bbbb"))
	m.Seed("wildlife/seals/data/00000.parquet", []byte("cc"))

	listing, err := m.List(ctx, "wildlife/penguins/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("List returned %d keys, want 2", len(listing))
	}
	if size := listing["wildlife/penguins/data/00000.parquet"]; size != 4 {
		t.Errorf("data file size = %d, want 4", size)
	}
	if _, ok := listing["wildlife/seals/data/00000.parquet"]; ok {
		t.Error("listing leaked key outside prefix")
	}
}

func TestMemStoreDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore("test")
	m.Seed("a", []byte("1"))
	m.Seed("b", []byte("2"))

	if err := m.Delete(ctx, []string{"a", "absent"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := m.Object("a"); ok {
		t.Error("deleted key still present")
	}
	if _, ok := m.Object("b"); !ok {
		t.Error("unrelated key removed")
	}
}

func TestMemStoreWriteLog(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore("test")
	m.Seed("seeded", []byte("x"))

	for _, key := range []string{"first", "second", "third"} {
		if err := m.Put(ctx, key, strings.NewReader(key), int64(len(key))); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	writes := m.Writes()
	want := []string{"first", "second", "third"}
	if len(writes) != len(want) {
		t.Fatalf("write log length = %d, want %d (seeded objects must not be logged)", len(writes), len(want))
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("writes[%d] = %q, want %q", i, writes[i], want[i])
		}
	}
}

func TestMemStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore("test")
	m.Seed("flaky", []byte("data"))
	m.SetGetError("flaky", errors.New("connection reset"))

	if _, _, err := m.Get(ctx, "flaky"); err == nil {
		t.Fatal("Get succeeded despite injected failure")
	}
	if calls := m.GetCalls("flaky"); calls != 1 {
		t.Errorf("GetCalls = %d, want 1", calls)
	}

	m.SetGetError("flaky", nil)
	if _, _, err := m.Get(ctx, "flaky"); err != nil {
		t.Fatalf("Get after clearing failure: %v", err)
	}
}

func TestCopyStreamsObject(t *testing.T) {
	ctx := context.Background()
	src := NewMemStore("src")
	dst := NewMemStore("dst")
	content := []byte("parquet bytes")
	src.Seed("wildlife/penguins/data/00000.parquet", content)

	n, err := Copy(ctx, src, dst, "wildlife/penguins/data/00000.parquet")
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("bytes transferred = %d, want %d", n, len(content))
	}
	got, ok := dst.Object("wildlife/penguins/data/00000.parquet")
	if !ok {
		t.Fatal("object missing at destination")
	}
	if !bytes.Equal(got, content) {
		t.Errorf("destination content = %q, want %q", got, content)
	}
}

func TestCopyPropagatesGetError(t *testing.T) {
	ctx := context.Background()
	src := NewMemStore("src")
	dst := NewMemStore("dst")
	src.Seed("key", []byte("data"))
	src.SetGetError("key", errors.New("timeout"))

	if _, err := Copy(ctx, src, dst, "key"); err == nil {
		t.Fatal("Copy succeeded despite source failure")
	}
	if len(dst.Writes()) != 0 {
		t.Error("destination written despite source failure")
	}
}
