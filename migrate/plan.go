// Package migrate implements the table migration engine: a diff-based
// object sync between two stores, the Iceberg metadata path rewriter that
// follows it, and the runner that drives both across a catalog's tables
// with persistent per-table state.
package migrate

import "sort"

// Plan returns the keys that need transferring, sorted. In the default
// diff mode a key is transferred when it is absent from the destination or
// its size differs. Force mode transfers every source key.
func Plan(src, dst map[string]int64, force bool) []string {
	keys := make([]string, 0, len(src))
	for k, size := range src {
		if force {
			keys = append(keys, k)
			continue
		}
		if dstSize, ok := dst[k]; !ok || dstSize != size {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
