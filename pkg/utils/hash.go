package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns the hex sha256 digest of input.
func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// CacheKey joins namespace parts with ':' and appends the digest of input,
// e.g. "verdict:relevance:<sha256>".
func CacheKey(input string, namespace ...string) string {
	parts := append(append([]string{}, namespace...), HashString(input))
	return strings.Join(parts, ":")
}
