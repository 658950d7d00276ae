package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/riandyrn/otelchi"

	handler "github.com/propiq/propiq/internal/adapter/http"
	otelx "github.com/propiq/propiq/internal/adapter/otel"
	riverx "github.com/propiq/propiq/internal/adapter/river"
	"github.com/propiq/propiq/internal/adapter/s3"
	"github.com/propiq/propiq/internal/adapter/sqlite"
	"github.com/propiq/propiq/internal/adapter/validate"
	"github.com/propiq/propiq/internal/app"
	"github.com/propiq/propiq/internal/archive"
	"github.com/propiq/propiq/internal/cache"
	"github.com/propiq/propiq/internal/domain"
	"github.com/propiq/propiq/internal/storage"

	"github.com/propiq/propiq/internal/adapter/fsm"
)

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	ctx := context.Background()

	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "propiq.db")
	namespace := os.Getenv("NAMESPACE")

	providers, err := otelx.Setup(ctx, otelx.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelx.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	backend, err := sqlite.NewFromDB(db, storeCapacity())
	if err != nil {
		return fmt.Errorf("storage backend: %w", err)
	}

	store := storage.New(backend, storage.Config{})
	if store.MemoryOnly() {
		slog.Warn("running on the in-memory fallback; local data will not survive restarts")
	}

	docStore := newDocumentStore(ctx)

	queueClient, err := riverx.Setup(ctx, db, otelx.NewTracingDocumentStore(docStore))
	if err != nil {
		return fmt.Errorf("replication queue: %w", err)
	}
	if err := queueClient.Start(ctx); err != nil {
		return fmt.Errorf("starting replication queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queueClient.Stop(stopCtx); err != nil {
			slog.Error("replication queue stop", "error", err)
		}
	}()

	// --- Application ---
	svc := app.NewEstateService(store, cache.New(0), validate.New(), fsm.New(), riverx.NewReplicator(queueClient))
	if namespace != "" {
		svc.SetNamespace(namespace)
	}

	if err := archive.New(svc).Run(ctx); err != nil {
		// Archival is retried at the next start; the repository stays usable.
		slog.Error("archival pass failed", "error", err)
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(otelchi.Middleware("propiq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("propiq", "0.1.0"))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("propiq listening", "port", port, "namespace", namespace)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}

	slog.Info("stopped")
	return nil
}

// newDocumentStore builds the remote document store. Without a configured
// bucket the pushes land in a logging stand-in, so the outbox stays exercised
// in development.
func newDocumentStore(ctx context.Context) domain.DocumentStore {
	bucket := os.Getenv("REPLICA_BUCKET")
	if bucket == "" {
		slog.Info("REPLICA_BUCKET not set, replication pushes will be logged only")
		return &logDocStore{}
	}

	docStore, err := s3.New(ctx, s3.Config{
		Bucket:    bucket,
		Region:    os.Getenv("REPLICA_REGION"),
		Endpoint:  os.Getenv("REPLICA_ENDPOINT"),
		PathStyle: os.Getenv("REPLICA_PATH_STYLE") == "true",
	})
	if err != nil {
		slog.Error("remote document store unavailable, replication pushes will be logged only", "error", err)
		return &logDocStore{}
	}
	return docStore
}

func storeCapacity() int64 {
	raw := os.Getenv("STORE_CAPACITY_BYTES")
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Warn("invalid STORE_CAPACITY_BYTES, using default", "value", raw)
		return 0
	}
	return n
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logDocStore stands in for the remote document store when none is
// configured.
type logDocStore struct{}

func (s *logDocStore) AddDocument(ctx context.Context, namespace, collection, id string, _ map[string]any) error {
	slog.InfoContext(ctx, "replication push (no remote configured)", "action", "add", "namespace", namespace, "collection", collection, "id", id)
	return nil
}

func (s *logDocStore) UpdateDocument(ctx context.Context, namespace, collection, id string, _ map[string]any) error {
	slog.InfoContext(ctx, "replication push (no remote configured)", "action", "update", "namespace", namespace, "collection", collection, "id", id)
	return nil
}

func (s *logDocStore) DeleteDocument(ctx context.Context, namespace, collection, id string) error {
	slog.InfoContext(ctx, "replication push (no remote configured)", "action", "delete", "namespace", namespace, "collection", collection, "id", id)
	return nil
}
