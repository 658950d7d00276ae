package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrUnitNotFound     = errors.New("unit not found")
	ErrSnapshotNotFound = errors.New("archive snapshot not found")
)

// ValidationError is returned when a payload fails schema or business-rule
// validation. Nothing is written when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ConflictError is returned when a mutation would violate a domain invariant,
// e.g. assigning an already-occupied unit. Nothing is written when it is
// returned.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// OccupancyError is returned when an occupancy event is not allowed from the
// current state.
type OccupancyError struct {
	Event   OccupancyEvent
	Current string
}

func (e *OccupancyError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// CapacityError is returned when a local write was rejected: either the value
// exceeds the per-item ceiling, or the store's quota recovery and the memory
// fallback are both exhausted. The write is lost.
type CapacityError struct {
	Key    string
	Reason string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("local store capacity exhausted writing %q: %s", e.Key, e.Reason)
}
