// Package store provides object store access for table migration.
//
// Two handles are used per migration: a source handle built solely from
// explicit static configuration, and a destination handle built from
// profile-resolved credentials. They never share ambient configuration.
package store

import (
	"context"
	"fmt"
	"io"
)

// Store is the object store surface the migration engine needs. Keys are
// relative to the bucket root. Handles are stateless per request and safe
// for reuse across sequential calls.
type Store interface {
	// Bucket returns the bucket name this handle is bound to.
	Bucket() string

	// List returns every object key under the prefix mapped to its size
	// in bytes.
	List(ctx context.Context, prefix string) (map[string]int64, error)

	// Get opens an object for reading and reports its content length.
	// The caller closes the returned body.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Put writes an object of the given size.
	Put(ctx context.Context, key string, body io.Reader, size int64) error

	// Delete removes the given objects, batching where the API allows.
	Delete(ctx context.Context, keys []string) error
}

// OpError describes a failed store operation.
type OpError struct {
	Op     string
	Bucket string
	Key    string
	Cause  error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s s3://%s: %v", e.Op, e.Bucket, e.Cause)
	}
	return fmt.Sprintf("store %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Cause
}

// Copy streams one object from src to dst under the same key and returns
// the number of bytes transferred. The object is not buffered wholesale;
// the source body feeds the destination write directly.
func Copy(ctx context.Context, src, dst Store, key string) (int64, error) {
	body, size, err := src.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := dst.Put(ctx, key, body, size); err != nil {
		return 0, err
	}
	return size, nil
}
