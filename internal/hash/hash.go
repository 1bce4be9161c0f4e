// Package hash computes the content fingerprints recorded in the artifact
// registry. All digests are SHA-256 hex strings.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// File returns the SHA-256 hex digest of the file at path.
// The file is streamed through the hash so memory use stays bounded
// regardless of file size.
func File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the registry or the caller
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// keyedRow pairs a row with its precomputed sort key so sorting cannot
// disturb the key/row association.
type keyedRow struct {
	key []string
	row map[string]any
}

// Rows returns a digest of tabular data that is independent of row order.
// Rows are sorted by the values of sortKeys before serialization, and each
// row is serialized to canonical JSON (encoding/json emits map keys in
// sorted order), so neither row order nor map iteration order can leak
// into the digest. Two row-permuted but logically identical tables hash
// identically.
func Rows(rows []map[string]any, sortKeys []string) (string, error) {
	keyed := make([]keyedRow, len(rows))
	for i, row := range rows {
		key := make([]string, len(sortKeys))
		for j, k := range sortKeys {
			key[j] = fmt.Sprintf("%v", row[k])
		}
		keyed[i] = keyedRow{key: key, row: row}
	}

	sort.SliceStable(keyed, func(a, b int) bool {
		return lessKey(keyed[a].key, keyed[b].key)
	})

	h := sha256.New()
	for _, kr := range keyed {
		blob, err := json.Marshal(kr.row)
		if err != nil {
			return "", fmt.Errorf("serializing row for hashing: %w", err)
		}
		h.Write(blob)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func lessKey(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
