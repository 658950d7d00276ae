// Package storage implements the tenant-isolated key-value store that fronts
// a capacity-constrained local backend with a bounded in-memory fallback.
package storage

import "errors"

// ErrQuotaExceeded is reported by a Backend when a write would exceed its
// total capacity.
var ErrQuotaExceeded = errors.New("storage: quota exceeded")

// Backend is the underlying persistent store primitive: a synchronous string
// key-value surface with a fixed total capacity. Implementations report
// ErrQuotaExceeded from SetItem when full.
type Backend interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(key string) (string, bool, error)
	// SetItem stores value under key, replacing any prior value.
	SetItem(key, value string) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(key string) error
	// Keys returns all stored keys with the given prefix, sorted.
	Keys(prefix string) ([]string, error)
}
