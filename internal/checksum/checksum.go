// Package checksum fingerprints canonical note files. The index stores the
// checksum of the file each row was derived from, which is how drift between
// vault and index is detected.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns an abbreviated digest for log output.
func Short(cs string) string {
	if len(cs) <= 12 {
		return cs
	}
	return cs[:12]
}
