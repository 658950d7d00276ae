package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/propiq/propiq/internal/domain"
)

const tracerName = "github.com/propiq/propiq/internal/adapter/otel"

// TracingDocumentStore wraps a domain.DocumentStore with OpenTelemetry
// tracing. Each push creates a span with semantic attributes and records
// errors, so dropped replications are visible in traces.
type TracingDocumentStore struct {
	next   domain.DocumentStore
	tracer trace.Tracer
}

// Compile-time check: TracingDocumentStore implements domain.DocumentStore.
var _ domain.DocumentStore = (*TracingDocumentStore)(nil)

// NewTracingDocumentStore creates a tracing decorator around the given store.
func NewTracingDocumentStore(next domain.DocumentStore) *TracingDocumentStore {
	return &TracingDocumentStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingDocumentStore) AddDocument(ctx context.Context, namespace, collection, id string, doc map[string]any) error {
	ctx, span := s.tracer.Start(ctx, "DocumentStore.AddDocument",
		trace.WithAttributes(
			attribute.String("replication.namespace", namespace),
			attribute.String("replication.collection", collection),
			attribute.String("replication.document_id", id),
		),
	)
	defer span.End()

	err := s.next.AddDocument(ctx, namespace, collection, id, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingDocumentStore) UpdateDocument(ctx context.Context, namespace, collection, id string, patch map[string]any) error {
	ctx, span := s.tracer.Start(ctx, "DocumentStore.UpdateDocument",
		trace.WithAttributes(
			attribute.String("replication.namespace", namespace),
			attribute.String("replication.collection", collection),
			attribute.String("replication.document_id", id),
			attribute.Int("replication.patch_fields", len(patch)),
		),
	)
	defer span.End()

	err := s.next.UpdateDocument(ctx, namespace, collection, id, patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingDocumentStore) DeleteDocument(ctx context.Context, namespace, collection, id string) error {
	ctx, span := s.tracer.Start(ctx, "DocumentStore.DeleteDocument",
		trace.WithAttributes(
			attribute.String("replication.namespace", namespace),
			attribute.String("replication.collection", collection),
			attribute.String("replication.document_id", id),
		),
	)
	defer span.End()

	err := s.next.DeleteDocument(ctx, namespace, collection, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
