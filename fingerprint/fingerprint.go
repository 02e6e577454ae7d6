// Package fingerprint provides the two content identities used by the
// probe: an exact sha256 identity for content-addressed artifact storage
// and a SimHash for flagging near-duplicate recoveries across channels.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the sha256 hex fingerprint of raw content bytes. Identical
// bytes always map to the same fingerprint, which is the whole point:
// two channels recovering the same content address one artifact.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Short returns the leading 12 hex chars of a fingerprint, used in
// stable finding ids and log lines.
func Short(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
