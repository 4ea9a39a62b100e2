package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/icelift/icelift/spec"
	"github.com/icelift/icelift/store"
)

// RewriteError reports a metadata rewrite failure for one table.
type RewriteError struct {
	Namespace string
	Table     string
	Err       error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite %s.%s: %v", e.Namespace, e.Table, e.Err)
}

func (e *RewriteError) Unwrap() error {
	return e.Err
}

// ReplacePrefix substitutes src with dst at the start of value. Values not
// starting with src pass through unchanged, which makes the rewrite
// idempotent: already-rewritten paths no longer match the source prefix.
func ReplacePrefix(value, src, dst string) string {
	if value != "" && strings.HasPrefix(value, src) {
		return dst + value[len(src):]
	}
	return value
}

// keyFromURI extracts the object key from an s3:// or s3a:// URI on the
// given bucket. Other values pass through unchanged.
func keyFromURI(uri, bucket string) string {
	for _, scheme := range []string{"s3://", "s3a://"} {
		prefix := scheme + bucket + "/"
		if strings.HasPrefix(uri, prefix) {
			return uri[len(prefix):]
		}
	}
	return uri
}

// metadataVersion extracts the numeric version from a metadata.json file
// name. Both "v<N>.metadata.json" and "<N>-<uuid>.metadata.json" forms are
// recognized; anything else yields ok=false.
func metadataVersion(name string) (int, bool) {
	base := strings.TrimSuffix(name, ".metadata.json")
	if base == name {
		return 0, false
	}
	if strings.HasPrefix(base, "v") {
		if n, err := strconv.Atoi(base[1:]); err == nil {
			return n, true
		}
		return 0, false
	}
	if i := strings.Index(base, "-"); i > 0 {
		if n, err := strconv.Atoi(base[:i]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// latestMetadataKey finds the current metadata.json for a table by listing
// the table's metadata directory and picking the highest version. Files
// without a parseable version are considered last, lexicographically.
func latestMetadataKey(ctx context.Context, st store.Store, namespace, table string) (string, error) {
	prefix := namespace + "/" + table + "/metadata/"
	objects, err := st.List(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	var candidates []string
	for key := range objects {
		if strings.HasSuffix(key, ".metadata.json") {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		vi, oki := metadataVersion(candidates[i][len(prefix):])
		vj, okj := metadataVersion(candidates[j][len(prefix):])
		if oki && okj && vi != vj {
			return vi < vj
		}
		if oki != okj {
			return !oki
		}
		return candidates[i] < candidates[j]
	})

	return candidates[len(candidates)-1], nil
}

// Rewriter rewrites absolute path references inside a migrated table's
// Iceberg metadata, in place on the destination store. All three layers of
// the metadata tree are handled: metadata.json, manifest lists, and
// manifests. The rewritten metadata.json is written last so a partially
// rewritten table still points at consistent (unrewritten) files through
// its old metadata.
type Rewriter struct {
	Store store.Store

	// SourcePrefix and DestinationPrefix are the absolute URI prefixes
	// being swapped, e.g. "s3://polardb/" and "s3://prod-polardb/".
	SourcePrefix      string
	DestinationPrefix string

	Logger log.FieldLogger
}

func (r *Rewriter) logger() log.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

// RewriteTable rewrites one table's metadata tree and returns the number
// of files rewritten. A table with no metadata.json is a no-op. Manifest
// lists or manifests that cannot be read are skipped with a warning; write
// failures abort the rewrite.
func (r *Rewriter) RewriteTable(ctx context.Context, namespace, table string) (int, error) {
	logger := r.logger().WithFields(log.Fields{
		"namespace": namespace,
		"table":     table,
	})

	metadataKey, err := latestMetadataKey(ctx, r.Store, namespace, table)
	if err != nil {
		return 0, &RewriteError{Namespace: namespace, Table: table, Err: err}
	}
	if metadataKey == "" {
		logger.Warn("no metadata.json found, nothing to rewrite")
		return 0, nil
	}

	logger.WithField("key", metadataKey).Info("rewriting table metadata")

	metadata, err := r.getJSON(ctx, metadataKey)
	if err != nil {
		return 0, &RewriteError{Namespace: namespace, Table: table, Err: err}
	}

	// The metadata.json itself counts as the first rewritten file.
	count := 1

	// Collect manifest list URIs before mutation so the tree can still be
	// located through the original paths.
	manifestListURIs := snapshotManifestLists(metadata)

	rewriteMetadataJSON(metadata, r.SourcePrefix, r.DestinationPrefix)

	for _, uri := range manifestListURIs {
		mlKey := keyFromURI(ReplacePrefix(uri, r.SourcePrefix, r.DestinationPrefix), r.Store.Bucket())

		ml, err := r.getOCF(ctx, mlKey)
		if err != nil {
			logger.WithError(err).WithField("key", mlKey).Warn("cannot read manifest list, skipping")
			continue
		}

		manifestURIs := ml.ManifestPaths()

		ml.RewriteManifestPaths(func(p string) string {
			return ReplacePrefix(p, r.SourcePrefix, r.DestinationPrefix)
		})
		if err := r.putOCF(ctx, mlKey, ml); err != nil {
			return count, &RewriteError{Namespace: namespace, Table: table, Err: err}
		}
		count++

		for _, mURI := range manifestURIs {
			mKey := keyFromURI(ReplacePrefix(mURI, r.SourcePrefix, r.DestinationPrefix), r.Store.Bucket())

			m, err := r.getOCF(ctx, mKey)
			if err != nil {
				logger.WithError(err).WithField("key", mKey).Warn("cannot read manifest, skipping")
				continue
			}

			m.RewriteDataFilePaths(func(p string) string {
				return ReplacePrefix(p, r.SourcePrefix, r.DestinationPrefix)
			})
			if err := r.putOCF(ctx, mKey, m); err != nil {
				return count, &RewriteError{Namespace: namespace, Table: table, Err: err}
			}
			count++
		}
	}

	// metadata.json goes last: readers following the old document keep
	// seeing a consistent tree until this final write lands.
	if err := r.putJSON(ctx, metadataKey, metadata); err != nil {
		return count, &RewriteError{Namespace: namespace, Table: table, Err: err}
	}

	logger.WithFields(log.Fields{
		"files": count,
		"from":  r.SourcePrefix,
		"to":    r.DestinationPrefix,
	}).Info("metadata rewrite complete")

	return count, nil
}

// snapshotManifestLists returns every snapshots[].manifest-list value of a
// raw metadata document.
func snapshotManifestLists(metadata map[string]any) []string {
	snapshots, _ := metadata["snapshots"].([]any)
	var uris []string
	for _, s := range snapshots {
		snap, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if ml, ok := snap["manifest-list"].(string); ok {
			uris = append(uris, ml)
		}
	}
	return uris
}

// rewriteMetadataJSON rewrites the path fields of a raw metadata document:
// location, snapshots[].manifest-list, and metadata-log[].metadata-file.
// Working on the raw map keeps fields this tool does not model (statistics,
// refs, engine properties) byte-exact on round trip.
func rewriteMetadataJSON(metadata map[string]any, src, dst string) {
	if loc, ok := metadata["location"].(string); ok {
		metadata["location"] = ReplacePrefix(loc, src, dst)
	}

	if snapshots, ok := metadata["snapshots"].([]any); ok {
		for _, s := range snapshots {
			snap, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if ml, ok := snap["manifest-list"].(string); ok {
				snap["manifest-list"] = ReplacePrefix(ml, src, dst)
			}
		}
	}

	if entries, ok := metadata["metadata-log"].([]any); ok {
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if mf, ok := entry["metadata-file"].(string); ok {
				entry["metadata-file"] = ReplacePrefix(mf, src, dst)
			}
		}
	}
}

func (r *Rewriter) getJSON(ctx context.Context, key string) (map[string]any, error) {
	body, _, err := r.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// Snapshot ids and sequence numbers are int64s that can exceed what
	// float64 represents exactly; UseNumber keeps them verbatim so the
	// round trip only changes path values.
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return metadata, nil
}

func (r *Rewriter) putJSON(ctx context.Context, key string, metadata map[string]any) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
}

func (r *Rewriter) getOCF(ctx context.Context, key string) (*spec.OCFFile, error) {
	body, _, err := r.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return spec.ReadOCF(body)
}

func (r *Rewriter) putOCF(ctx context.Context, key string, f *spec.OCFFile) error {
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
}
