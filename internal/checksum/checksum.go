// Package checksum computes the content digests used for change detection
// and optimistic concurrency (ETag / If-Match).
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortLen is the length of Short digests in hex characters.
const shortLen = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns a 64-bit prefix of Sum, for fingerprints that are compared
// but never exposed as content checksums.
func Short(data []byte) string {
	return Sum(data)[:shortLen]
}

// Matches reports whether want is empty or equals the digest of data. It is
// used for If-Match preconditions.
func Matches(want string, data []byte) bool {
	return want == "" || want == Sum(data)
}
