package store

import (
	"time"
)

// Entry is the stored outcome of one task.
type Entry struct {
	// Task is the task string the entry was recorded for
	Task string `json:"task"`

	// Success reports whether the task succeeded
	Success bool `json:"success"`

	// Payload is the worker's result on success
	Payload []byte `json:"payload,omitempty"`

	// Trace is the failure description
	Trace string `json:"trace,omitempty"`

	// StoredAt is when the outcome was recorded
	StoredAt time.Time `json:"stored_at"`

	// Expires is when the entry stops counting as recorded
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
