// Package river implements the replication outbox on riverqueue/river over
// SQLite. Local mutations are enqueued as jobs and pushed to the remote
// document store by a background worker with bounded retries.
package river

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/propiq/propiq/internal/domain"
)

// Compile-time check: Replicator implements domain.ReplicationQueue.
var _ domain.ReplicationQueue = (*Replicator)(nil)

// maxPushAttempts bounds retries per push before the mutation is dropped.
const maxPushAttempts = 5

// ReplicationJobArgs carries one local mutation to the push worker. River
// serializes this as JSON into its job table, so the payload is a snapshot
// taken at mutation time; the worker never reads local state.
type ReplicationJobArgs struct {
	Namespace  string          `json:"namespace"`
	EntityKind string          `json:"entity_kind"`
	Collection string          `json:"collection"`
	Action     string          `json:"action"`
	DocumentID string          `json:"document_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ReplicationJobArgs) Kind() string { return "replication.push" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Replicator implements domain.ReplicationQueue by enqueuing River jobs.
// Push only writes to the local job table; network I/O happens in the worker.
type Replicator struct {
	client *Client
}

// NewReplicator creates a replicator backed by the given River client.
func NewReplicator(client *Client) *Replicator {
	return &Replicator{client: client}
}

// Push enqueues a mutation for asynchronous mirroring. An empty namespace
// means no remote isolation scope exists yet and the push is skipped.
func (r *Replicator) Push(ctx context.Context, namespace string, kind domain.Kind, action domain.Action, id string, payload any) error {
	if namespace == "" {
		return nil
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding push payload: %w", err)
		}
		raw = data
	}

	_, err := r.client.Insert(ctx, ReplicationJobArgs{
		Namespace:  namespace,
		EntityKind: string(kind),
		Collection: domain.Kinds[kind].Collection,
		Action:     string(action),
		DocumentID: id,
		Payload:    raw,
	}, &river.InsertOpts{MaxAttempts: maxPushAttempts})
	if err != nil {
		return fmt.Errorf("enqueuing push job: %w", err)
	}
	return nil
}
