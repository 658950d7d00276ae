package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/propiq/propiq/internal/domain"
	"github.com/propiq/propiq/internal/storage"
)

// markerKey stores the timestamp of the last completed archival run, one per
// namespace.
const markerKey = "archive-last-run"

type archiveMarker struct {
	LastRun time.Time `json:"lastRun"`
}

// LastArchiveRun returns when the archival pass last completed for the active
// namespace, or the zero time when it never ran.
func (s *EstateService) LastArchiveRun(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marker archiveMarker
	if _, err := s.store.Get(markerKey, &marker); err != nil {
		return time.Time{}, fmt.Errorf("loading archive marker: %w", err)
	}
	return marker.LastRun, nil
}

// SetLastArchiveRun records the completion time of an archival pass.
func (s *EstateService) SetLastArchiveRun(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(markerKey, archiveMarker{LastRun: at.UTC()}); err != nil {
		return fmt.Errorf("storing archive marker: %w", err)
	}
	return nil
}

// Snapshot returns the archive snapshot for one period key ("2025-07").
func (s *EstateService) Snapshot(ctx context.Context, periodKey string) (domain.ArchiveSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap domain.ArchiveSnapshot
	found, err := s.store.Get(storage.SnapshotKeyPrefix+periodKey, &snap)
	if err != nil {
		return domain.ArchiveSnapshot{}, fmt.Errorf("loading snapshot %s: %w", periodKey, err)
	}
	if !found {
		return domain.ArchiveSnapshot{}, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

// SaveSnapshot stores an archive snapshot under its period key, overwriting
// any prior snapshot for the same period.
func (s *EstateService) SaveSnapshot(ctx context.Context, snap domain.ArchiveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Invalidate(domain.KindArchive)
	if err := s.store.Set(storage.SnapshotKeyPrefix+snap.PeriodKey, snap); err != nil {
		return fmt.Errorf("storing snapshot %s: %w", snap.PeriodKey, err)
	}
	s.replicate(ctx, domain.KindArchive, domain.ActionAdd, snap.ID, snap)
	return nil
}

// Snapshots returns every archive snapshot in the active namespace, ordered by
// period key.
func (s *EstateService) Snapshots(ctx context.Context) ([]domain.ArchiveSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.store.Keys(storage.SnapshotKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	sort.Strings(keys)

	out := make([]domain.ArchiveSnapshot, 0, len(keys))
	for _, key := range keys {
		var snap domain.ArchiveSnapshot
		found, err := s.store.Get(key, &snap)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot %s: %w", key, err)
		}
		if found {
			out = append(out, snap)
		}
	}
	return out, nil
}
