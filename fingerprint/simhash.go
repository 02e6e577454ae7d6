package fingerprint

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// SimHash computes a 64-bit SimHash of the given text using FNV-64a on
// word-level tokens with bit vector accumulation. Two recoveries of the
// same article through different channels (one with ads stripped, one
// with a trailing share widget) hash to nearby fingerprints even though
// their sha256 identities differ.
func SimHash(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}

	return fp
}

// Distance returns the Hamming distance between two SimHash values.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// NearDuplicateThreshold is the Hamming distance at or below which two
// recoveries are reported as the same underlying article.
const NearDuplicateThreshold = 6

// NearDuplicate reports whether two SimHash values are within the
// near-duplicate threshold.
func NearDuplicate(a, b uint64) bool {
	return Distance(a, b) <= NearDuplicateThreshold
}
