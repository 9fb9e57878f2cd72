package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashUserKey returns a filesystem-safe identifier for a user ID.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns a digest of document text that is stable across
// whitespace and casing differences. Used as the analysis cache key.
func ContentHash(text string, version string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(version + "\n\n" + normalized))
	return hex.EncodeToString(sum[:])
}
