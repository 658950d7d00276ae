package river

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/propiq/propiq/internal/domain"
)

// PushWorker delivers replication jobs to the remote document store.
// Failures are retried by River up to the job's MaxAttempts; after the last
// attempt the mutation is dropped with an error log. Replication is
// best-effort and local state stays authoritative either way.
type PushWorker struct {
	river.WorkerDefaults[ReplicationJobArgs]

	store domain.DocumentStore
}

// NewPushWorker creates a worker pushing to the given document store.
func NewPushWorker(store domain.DocumentStore) *PushWorker {
	return &PushWorker{store: store}
}

// Work processes a single push job.
func (w *PushWorker) Work(ctx context.Context, job *river.Job[ReplicationJobArgs]) error {
	args := job.Args

	err := w.push(ctx, args)
	if err == nil {
		return nil
	}

	if job.Attempt >= job.MaxAttempts {
		slog.ErrorContext(ctx, "replication push dropped after final attempt",
			"namespace", args.Namespace,
			"collection", args.Collection,
			"action", args.Action,
			"document_id", args.DocumentID,
			"attempt", job.Attempt,
			"error", err,
		)
		return nil
	}
	return fmt.Errorf("pushing %s %s/%s: %w", args.Action, args.Collection, args.DocumentID, err)
}

func (w *PushWorker) push(ctx context.Context, args ReplicationJobArgs) error {
	switch domain.Action(args.Action) {
	case domain.ActionDelete:
		return w.store.DeleteDocument(ctx, args.Namespace, args.Collection, args.DocumentID)
	case domain.ActionAdd, domain.ActionUpdate:
		doc, err := decodeDocument(args.Payload)
		if err != nil {
			return err
		}
		if domain.Action(args.Action) == domain.ActionAdd {
			return w.store.AddDocument(ctx, args.Namespace, args.Collection, args.DocumentID, doc)
		}
		return w.store.UpdateDocument(ctx, args.Namespace, args.Collection, args.DocumentID, doc)
	default:
		return fmt.Errorf("unknown push action %q", args.Action)
	}
}

func decodeDocument(payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("push payload missing")
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decoding push payload: %w", err)
	}
	return cleanDocument(doc), nil
}

// cleanDocument strips nil values recursively. The remote store treats an
// explicit null as a field write; absent fields stay untouched.
func cleanDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = cleanDocument(val)
		case []any:
			out[k] = cleanList(val)
		default:
			out[k] = v
		}
	}
	return out
}

func cleanList(list []any) []any {
	out := make([]any, 0, len(list))
	for _, v := range list {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out = append(out, cleanDocument(val))
		case []any:
			out = append(out, cleanList(val))
		default:
			out = append(out, v)
		}
	}
	return out
}
