package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// CalculateStringSHA256 computes the SHA-256 hash of a string.
// Used as the content hash for change detection between refreshes.
func CalculateStringSHA256(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
