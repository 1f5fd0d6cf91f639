// Package fileid derives stable article IDs from document paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const prefix = "article:"

// ArticleID returns a stable ID for the document at path. Relative paths are
// made absolute first, so a document gets the same ID whether it was found
// by a corpus build or by the watcher.
func ArticleID(path string) string {
	normalized := filepath.Clean(path)
	if abs, err := filepath.Abs(normalized); err == nil {
		normalized = abs
	}
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// Valid reports whether id has the shape produced by ArticleID.
func Valid(id string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}
