package store

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// KeyPrefix prefixes every key written by the store.
const KeyPrefix = "unitools"

// Key identifies one task within a namespace.
type Key struct {
	// Namespace groups the tasks of one batch (e.g. "nightly-crawl")
	Namespace string

	// Task is the task string
	Task string
}

// String generates a deterministic key string.
// Format: unitools:<namespace>:<sha1(task)>
func (k Key) String() string {
	sum := sha1.Sum([]byte(k.Task))

	parts := []string{KeyPrefix}
	if ns := strings.Trim(k.Namespace, ":"); ns != "" {
		parts = append(parts, ns)
	}
	parts = append(parts, hex.EncodeToString(sum[:]))

	return strings.Join(parts, ":")
}
