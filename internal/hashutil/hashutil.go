package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the number of hex characters kept by Short.
const ShortLen = 16

// HashStrings returns a SHA256 hash of the provided strings with newline separators.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Short returns the first ShortLen hex characters of the SHA256 of s.
func Short(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:ShortLen]
}

// ShortStrings is HashStrings truncated to ShortLen.
func ShortStrings(parts ...string) string {
	return HashStrings(parts...)[:ShortLen]
}
