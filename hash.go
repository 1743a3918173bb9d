package taproot

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ContentHash returns the lowercase hex SHA-256 of content. Every hash in a
// DependencyMap comes from this function, so external cache keys built on
// taproot output stay comparable across builds and machines.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Fingerprint hashes a build configuration: the source root plus the include
// paths and filter prefixes, order-insensitively. Persisted alongside a map,
// it lets later runs detect that a stored index was built with different
// settings and must be rebuilt.
func Fingerprint(sourceRoot string, includePaths, filterPrefixes []string) string {
	h := sha256.New()
	h.Write([]byte(sourceRoot))
	h.Write([]byte{0})
	for _, p := range sortedCopy(includePaths) {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	h.Write([]byte{0})
	for _, p := range sortedCopy(filterPrefixes) {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
