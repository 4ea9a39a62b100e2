package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store. It records the order of writes and
// supports per-key failure injection, which makes it the test double for
// transfer retry, resumability, and rewrite write-ordering behavior. Dry
// runs use it as a sink as well.
type MemStore struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string][]byte
	writeLog []string
	getErr   map[string]error
	putErr   map[string]error
	getCalls map[string]int
}

// NewMemStore creates an empty in-memory store bound to the given bucket
// name.
func NewMemStore(bucket string) *MemStore {
	return &MemStore{
		bucket:   bucket,
		objects:  make(map[string][]byte),
		getErr:   make(map[string]error),
		putErr:   make(map[string]error),
		getCalls: make(map[string]int),
	}
}

// Bucket returns the bucket name this store is bound to.
func (m *MemStore) Bucket() string {
	return m.bucket
}

// List returns every object key under the prefix mapped to its size.
func (m *MemStore) List(ctx context.Context, prefix string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects := make(map[string]int64)
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects[key] = int64(len(data))
		}
	}
	return objects, nil
}

// Get opens an object for reading.
func (m *MemStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls[key]++
	if err := m.getErr[key]; err != nil {
		return nil, 0, &OpError{Op: "get", Bucket: m.bucket, Key: key, Cause: err}
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, 0, &OpError{Op: "get", Bucket: m.bucket, Key: key, Cause: fmt.Errorf("no such key")}
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Put writes an object and appends its key to the write log.
func (m *MemStore) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return &OpError{Op: "put", Bucket: m.bucket, Key: key, Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.putErr[key]; err != nil {
		return &OpError{Op: "put", Bucket: m.bucket, Key: key, Cause: err}
	}
	m.objects[key] = data
	m.writeLog = append(m.writeLog, key)
	return nil
}

// Delete removes the given objects. Missing keys are ignored, matching
// the S3 semantics.
func (m *MemStore) Delete(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

// Seed inserts an object directly, without recording it in the write log.
func (m *MemStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Object returns a stored object's bytes.
func (m *MemStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns all stored keys, sorted.
func (m *MemStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Writes returns every Put key in order.
func (m *MemStore) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writeLog...)
}

// SetGetError makes Get fail for the given key until cleared with a nil
// error.
func (m *MemStore) SetGetError(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.getErr, key)
		return
	}
	m.getErr[key] = err
}

// SetPutError makes Put fail for the given key until cleared with a nil
// error.
func (m *MemStore) SetPutError(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.putErr, key)
		return
	}
	m.putErr[key] = err
}

// GetCalls returns how many times Get was called for the key.
func (m *MemStore) GetCalls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls[key]
}
