// Package archive implements the monthly payment archival pass: on the first
// day of each month the previous month's payments are rolled up into an
// immutable snapshot.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/propiq/propiq/internal/domain"
)

// Repository is the slice of the entity repository the scheduler needs.
type Repository interface {
	LastArchiveRun(ctx context.Context) (time.Time, error)
	SetLastArchiveRun(ctx context.Context, at time.Time) error
	PaymentsForPeriod(ctx context.Context, year, month int) ([]domain.Payment, error)
	SaveSnapshot(ctx context.Context, snap domain.ArchiveSnapshot) error
}

// Scheduler runs the archival pass. Run is called at process start and is
// idempotent within a month: the run marker makes repeated starts on the same
// day a no-op, and the snapshot ID equals the period key so a re-derived
// snapshot overwrites the prior one instead of duplicating it.
type Scheduler struct {
	repo Repository
	now  func() time.Time
}

// New creates a scheduler on the system clock.
func New(repo Repository) *Scheduler {
	return NewWithClock(repo, time.Now)
}

// NewWithClock creates a scheduler with an injectable clock for tests.
func NewWithClock(repo Repository, now func() time.Time) *Scheduler {
	return &Scheduler{repo: repo, now: now}
}

// Run archives the previous month when due. Outside the first day of the
// month, or when this month's pass already completed, it returns without
// touching anything.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.now().UTC()
	if now.Day() != 1 {
		return nil
	}

	last, err := s.repo.LastArchiveRun(ctx)
	if err != nil {
		return fmt.Errorf("loading archive marker: %w", err)
	}
	if last.Year() == now.Year() && last.Month() == now.Month() {
		return nil
	}

	prev := now.AddDate(0, 0, -1)
	periodKey := domain.FormatPeriodKey(prev.Year(), int(prev.Month()))

	payments, err := s.repo.PaymentsForPeriod(ctx, prev.Year(), int(prev.Month()))
	if err != nil {
		return fmt.Errorf("loading payments for %s: %w", periodKey, err)
	}

	if len(payments) > 0 {
		snap := buildSnapshot(periodKey, payments, now)
		if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("storing snapshot %s: %w", periodKey, err)
		}
		slog.InfoContext(ctx, "archived payment period",
			"period", periodKey, "records", len(snap.Records), "total", snap.TotalAmount)
	}

	if err := s.repo.SetLastArchiveRun(ctx, now); err != nil {
		return fmt.Errorf("storing archive marker: %w", err)
	}
	return nil
}

// buildSnapshot rolls payments up into a snapshot. Payments sharing a group
// each carry the full group amount, so the total counts every group exactly
// once; ungrouped payments count individually.
func buildSnapshot(periodKey string, payments []domain.Payment, archivedAt time.Time) domain.ArchiveSnapshot {
	records := make([]domain.Payment, len(payments))
	copy(records, payments)
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	var total int64
	counted := make(map[string]bool)
	for _, p := range records {
		if p.GroupID != "" {
			if counted[p.GroupID] {
				continue
			}
			counted[p.GroupID] = true
		}
		total += p.AmountPaid
	}

	return domain.ArchiveSnapshot{
		ID:          periodKey,
		PeriodKey:   periodKey,
		Records:     records,
		ArchivedAt:  archivedAt,
		TotalAmount: total,
	}
}
