package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/propiq/propiq/internal/domain"
)

const (
	// DefaultItemCeiling is the per-item serialized size limit.
	DefaultItemCeiling = 256 << 10
	// DefaultFallbackBudget caps the in-memory fallback map.
	DefaultFallbackBudget = 2 << 20
	// DefaultArchiveRetention is how long archive snapshots survive quota
	// pruning.
	DefaultArchiveRetention = 2 * 365 * 24 * time.Hour

	// SnapshotKeyPrefix is where archive snapshots live, one logical key per
	// period. Quota recovery prunes under this prefix only.
	SnapshotKeyPrefix = "archives/"

	probeKey = "__propiq_probe__"
)

// envelope wraps values of sensitive collections before serialization. It
// marks intent only; the data field is plain JSON, not ciphertext.
type envelope struct {
	Sealed   bool            `json:"__sealed"`
	Version  int             `json:"version"`
	StoredAt time.Time       `json:"storedAt"`
	Data     json.RawMessage `json:"data"`
}

// Config tunes a Store. Zero fields take the package defaults.
type Config struct {
	ItemCeiling      int
	FallbackBudget   int
	ArchiveRetention time.Duration
	// Now is the clock used for envelope timestamps and archive pruning.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.ItemCeiling <= 0 {
		c.ItemCeiling = DefaultItemCeiling
	}
	if c.FallbackBudget <= 0 {
		c.FallbackBudget = DefaultFallbackBudget
	}
	if c.ArchiveRetention <= 0 {
		c.ArchiveRetention = DefaultArchiveRetention
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Store is the key-value store abstraction: it prefixes keys with the active
// tenant namespace, wraps sensitive values in a sealed envelope, enforces a
// per-item size ceiling, and recovers from backend quota exhaustion by
// pruning stale archive snapshots and spilling to a bounded memory fallback.
//
// All state is instance state; multiple isolated stores can coexist in one
// process.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	fallback   *MemoryBackend
	cfg        Config
	namespace  string
	memoryOnly bool
	sensitive  map[string]bool
}

// New creates a Store over the given backend. Availability is probed once
// with a write/delete round-trip; when the probe fails the store runs on the
// memory fallback for the rest of the process lifetime.
func New(backend Backend, cfg Config) *Store {
	cfg = cfg.withDefaults()

	sensitive := make(map[string]bool)
	for _, spec := range domain.Kinds {
		if spec.Sensitive {
			sensitive[spec.StorageKey] = true
		}
	}

	s := &Store{
		backend:   backend,
		fallback:  NewMemoryBackend(cfg.FallbackBudget),
		cfg:       cfg,
		sensitive: sensitive,
	}

	if err := s.probe(); err != nil {
		slog.Warn("local store unavailable, falling back to memory for the process lifetime", "error", err)
		s.memoryOnly = true
	}

	return s
}

func (s *Store) probe() error {
	if s.backend == nil {
		return errors.New("no backend configured")
	}
	if err := s.backend.SetItem(probeKey, "1"); err != nil {
		return err
	}
	return s.backend.RemoveItem(probeKey)
}

// SetNamespace switches the active tenant namespace. The caller must treat
// the switch as a barrier: no operation from the old namespace may be in
// flight across it, and any read-through cache must be reset alongside.
func (s *Store) SetNamespace(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespace = namespace
}

// Namespace returns the active tenant namespace; empty means no isolation.
func (s *Store) Namespace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespace
}

// MemoryOnly reports whether the store runs permanently on the fallback.
func (s *Store) MemoryOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryOnly
}

func (s *Store) prefixed(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + "/" + key
}

// isSensitive matches the key's first path segment against the collections
// declared sensitive in the domain registry.
func (s *Store) isSensitive(key string) bool {
	base := key
	if i := strings.IndexByte(key, '/'); i >= 0 {
		base = key[:i]
	}
	return s.sensitive[base]
}

// Get reads the value stored under key into out and reports whether the key
// exists. Sealed envelopes are unwrapped transparently. The memory fallback
// shadows the backend so spilled writes stay visible.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.prefixed(key)

	raw, ok, err := s.fallback.GetItem(full)
	if err != nil {
		return false, fmt.Errorf("reading %q from fallback: %w", key, err)
	}
	if !ok && !s.memoryOnly {
		raw, ok, err = s.backend.GetItem(full)
		if err != nil {
			return false, fmt.Errorf("reading %q: %w", key, err)
		}
	}
	if !ok {
		return false, nil
	}

	data := unwrap([]byte(raw))
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

func unwrap(raw []byte) []byte {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Sealed {
		return env.Data
	}
	return raw
}

// Set serializes value and stores it under key. Oversized values and values
// that cannot be serialized (reference cycles) are rejected without touching
// the stored state. On backend quota exhaustion the store prunes archive
// snapshots older than the retention window, retries exactly once, and then
// spills to the memory fallback; a *domain.CapacityError is returned only
// when the fallback is exhausted too.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		// Covers reference cycles (json.UnsupportedValueError) and other
		// unserializable shapes; nothing was written.
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	if s.isSensitive(key) {
		env := envelope{Sealed: true, Version: 1, StoredAt: s.cfg.Now().UTC(), Data: data}
		if data, err = json.Marshal(env); err != nil {
			return fmt.Errorf("sealing %q: %w", key, err)
		}
	}

	if len(data) > s.cfg.ItemCeiling {
		return &domain.CapacityError{
			Key:    key,
			Reason: fmt.Sprintf("serialized value is %d bytes, ceiling is %d", len(data), s.cfg.ItemCeiling),
		}
	}

	full := s.prefixed(key)
	payload := string(data)

	if s.memoryOnly {
		if err := s.fallback.SetItem(full, payload); err != nil {
			return &domain.CapacityError{Key: key, Reason: "memory fallback exhausted"}
		}
		return nil
	}

	err = s.backend.SetItem(full, payload)
	if errors.Is(err, ErrQuotaExceeded) {
		pruned := s.pruneArchives()
		slog.Warn("local store quota exceeded, pruned stale archive snapshots",
			"key", key, "pruned", pruned)
		err = s.backend.SetItem(full, payload)
	}
	if err == nil {
		// Drop any stale spilled copy so the backend value wins on reads.
		_ = s.fallback.RemoveItem(full)
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return fmt.Errorf("writing %q: %w", key, err)
	}

	if ferr := s.fallback.SetItem(full, payload); ferr != nil {
		return &domain.CapacityError{Key: key, Reason: "quota recovery and memory fallback exhausted"}
	}
	slog.Warn("write spilled to memory fallback after quota recovery failed", "key", key)
	return nil
}

// pruneArchives removes archive snapshots whose archivedAt is older than the
// retention window. Only keys under the snapshot prefix of the active
// namespace are touched.
func (s *Store) pruneArchives() int {
	keys, err := s.backend.Keys(s.prefixed(SnapshotKeyPrefix))
	if err != nil {
		return 0
	}

	cutoff := s.cfg.Now().UTC().Add(-s.cfg.ArchiveRetention)
	pruned := 0
	for _, full := range keys {
		raw, ok, err := s.backend.GetItem(full)
		if err != nil || !ok {
			continue
		}
		var snap struct {
			ArchivedAt time.Time `json:"archivedAt"`
		}
		if err := json.Unmarshal(unwrap([]byte(raw)), &snap); err != nil {
			continue
		}
		if !snap.ArchivedAt.IsZero() && snap.ArchivedAt.Before(cutoff) {
			if err := s.backend.RemoveItem(full); err == nil {
				pruned++
			}
		}
	}
	return pruned
}

// Remove deletes the value stored under key.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.prefixed(key)
	if err := s.fallback.RemoveItem(full); err != nil {
		return fmt.Errorf("removing %q from fallback: %w", key, err)
	}
	if s.memoryOnly {
		return nil
	}
	if err := s.backend.RemoveItem(full); err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

// Keys lists the logical (namespace-stripped) keys with the given prefix,
// merged across the backend and the fallback.
func (s *Store) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.prefixed(prefix)
	seen := make(map[string]bool)

	fkeys, err := s.fallback.Keys(full)
	if err != nil {
		return nil, fmt.Errorf("listing fallback keys: %w", err)
	}
	for _, k := range fkeys {
		seen[k] = true
	}
	if !s.memoryOnly {
		bkeys, err := s.backend.Keys(full)
		if err != nil {
			return nil, fmt.Errorf("listing keys: %w", err)
		}
		for _, k := range bkeys {
			seen[k] = true
		}
	}

	strip := ""
	if s.namespace != "" {
		strip = s.namespace + "/"
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, strings.TrimPrefix(k, strip))
	}
	sort.Strings(out)
	return out, nil
}

// ClearNamespace removes every key stored under the active namespace.
func (s *Store) ClearNamespace() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.prefixed("")
	fkeys, _ := s.fallback.Keys(full)
	for _, k := range fkeys {
		_ = s.fallback.RemoveItem(k)
	}
	if s.memoryOnly {
		return nil
	}
	bkeys, err := s.backend.Keys(full)
	if err != nil {
		return fmt.Errorf("listing namespace keys: %w", err)
	}
	for _, k := range bkeys {
		if err := s.backend.RemoveItem(k); err != nil {
			return fmt.Errorf("removing %q: %w", k, err)
		}
	}
	return nil
}
