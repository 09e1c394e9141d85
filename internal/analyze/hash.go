// Package analyze turns batches of raw terminal commands into validated
// snippet candidates via a generative AI provider, with digest-keyed
// caching of results.
package analyze

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// BatchDigest computes a content digest over a set of commands. The input
// is sorted first so the digest identifies the set, not the ordering.
func BatchDigest(commands []string) string {
	sorted := make([]string, len(commands))
	copy(sorted, commands)
	sort.Strings(sorted)

	h := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(h[:])
}
