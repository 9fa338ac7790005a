package utils

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// NodeID returns the identity of a function node as the hex-encoded 128-bit
// xxh3 digest of its name and source. Symbol names never contain NUL, so it
// separates the two fields unambiguously.
func NodeID(name, source string) string {
	h := xxh3.HashString128(name + "\x00" + source)

	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// Hash32 folds the 64-bit xxh3 digest of s to 32 bits, as required by LRU
// hash callbacks.
func Hash32(s string) uint32 {
	h := xxh3.HashString(s)

	return uint32(h ^ (h >> 32))
}
