package domain

import "context"

// Action classifies a mutation for replication purposes.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// PayloadValidator is the external validation-schema collaborator. Validate
// checks a full create payload; ValidatePartial checks an update patch where
// only the present fields are validated. Both return *ValidationError on
// violation.
type PayloadValidator interface {
	Validate(kind Kind, payload any) error
	ValidatePartial(kind Kind, patch map[string]any) error
}

// OccupancyGuard validates occupancy state flips for properties and units and
// returns the destination state. Returns *OccupancyError when the event is
// not allowed from the current state.
type OccupancyGuard interface {
	Property(ctx context.Context, current PropertyStatus, event OccupancyEvent) (PropertyStatus, error)
	Unit(ctx context.Context, current UnitStatus, event OccupancyEvent) (UnitStatus, error)
}

// ReplicationQueue accepts local mutations for asynchronous, best-effort
// mirroring to the remote document store. Push enqueues only; it must not
// perform network I/O. Pushing with an empty namespace is a no-op.
type ReplicationQueue interface {
	Push(ctx context.Context, namespace string, kind Kind, action Action, id string, payload any) error
}

// DocumentStore is the remote document store collaborator. Errors are opaque
// to the core beyond succeeded/failed.
type DocumentStore interface {
	AddDocument(ctx context.Context, namespace, collection, id string, doc map[string]any) error
	UpdateDocument(ctx context.Context, namespace, collection, id string, patch map[string]any) error
	DeleteDocument(ctx context.Context, namespace, collection, id string) error
}
