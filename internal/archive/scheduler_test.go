package archive_test

import (
	"context"
	"testing"
	"time"

	"github.com/propiq/propiq/internal/archive"
	"github.com/propiq/propiq/internal/domain"
)

// fakeRepo is a hand-rolled repository double backed by maps.
type fakeRepo struct {
	lastRun   time.Time
	payments  map[string][]domain.Payment
	snapshots map[string]domain.ArchiveSnapshot
	saves     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments:  make(map[string][]domain.Payment),
		snapshots: make(map[string]domain.ArchiveSnapshot),
	}
}

func (r *fakeRepo) LastArchiveRun(ctx context.Context) (time.Time, error) {
	return r.lastRun, nil
}

func (r *fakeRepo) SetLastArchiveRun(ctx context.Context, at time.Time) error {
	r.lastRun = at
	return nil
}

func (r *fakeRepo) PaymentsForPeriod(ctx context.Context, year, month int) ([]domain.Payment, error) {
	return r.payments[domain.FormatPeriodKey(year, month)], nil
}

func (r *fakeRepo) SaveSnapshot(ctx context.Context, snap domain.ArchiveSnapshot) error {
	r.snapshots[snap.PeriodKey] = snap
	r.saves++
	return nil
}

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func payment(id, groupID string, amount int64) domain.Payment {
	return domain.Payment{
		ID:         id,
		TenantID:   "t-1",
		PropertyID: "p-1",
		Month:      7,
		Year:       2025,
		AmountPaid: amount,
		Method:     "cash",
		GroupID:    groupID,
	}
}

func TestRun_ArchivesPreviousMonth(t *testing.T) {
	repo := newFakeRepo()
	repo.payments["2025-07"] = []domain.Payment{
		payment("b", "", 50000),
		payment("a", "", 100000),
	}

	sched := archive.NewWithClock(repo, clock(time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)))
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, ok := repo.snapshots["2025-07"]
	if !ok {
		t.Fatalf("no snapshot for 2025-07, have %v", repo.snapshots)
	}
	if snap.ID != "2025-07" {
		t.Errorf("snapshot ID = %q, want period key", snap.ID)
	}
	if snap.TotalAmount != 150000 {
		t.Errorf("total = %d, want 150000", snap.TotalAmount)
	}
	if len(snap.Records) != 2 || snap.Records[0].ID != "a" || snap.Records[1].ID != "b" {
		t.Errorf("records not sorted by ID: %v", snap.Records)
	}
	if repo.lastRun.IsZero() {
		t.Error("run marker not set")
	}
}

func TestRun_GroupedPaymentsCountOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.payments["2025-07"] = []domain.Payment{
		payment("a", "g-1", 90000),
		payment("b", "g-1", 90000),
		payment("c", "g-1", 90000),
		payment("d", "", 50000),
	}

	sched := archive.NewWithClock(repo, clock(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := repo.snapshots["2025-07"]
	if snap.TotalAmount != 140000 {
		t.Errorf("total = %d, want 140000 (group counted once)", snap.TotalAmount)
	}
	if len(snap.Records) != 4 {
		t.Errorf("record count = %d, want all 4 retained", len(snap.Records))
	}
}

func TestRun_SkipsOutsideFirstOfMonth(t *testing.T) {
	repo := newFakeRepo()
	repo.payments["2025-07"] = []domain.Payment{payment("a", "", 50000)}

	sched := archive.NewWithClock(repo, clock(time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)))
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0", repo.saves)
	}
	if !repo.lastRun.IsZero() {
		t.Error("marker set on a non-archival day")
	}
}

func TestRun_SecondRunSameMonthIsNoop(t *testing.T) {
	repo := newFakeRepo()
	repo.payments["2025-07"] = []domain.Payment{payment("a", "", 50000)}

	at := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	sched := archive.NewWithClock(repo, clock(at))
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if repo.saves != 1 {
		t.Errorf("saves = %d, want 1 (second run must be a no-op)", repo.saves)
	}
}

func TestRun_NoPaymentsStillAdvancesMarker(t *testing.T) {
	repo := newFakeRepo()

	sched := archive.NewWithClock(repo, clock(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0 for an empty month", repo.saves)
	}
	if repo.lastRun.IsZero() {
		t.Error("marker not advanced for an empty month")
	}
}

func TestRun_JanuaryArchivesDecember(t *testing.T) {
	repo := newFakeRepo()
	repo.payments["2025-12"] = []domain.Payment{{
		ID: "a", TenantID: "t-1", PropertyID: "p-1",
		Month: 12, Year: 2025, AmountPaid: 50000, Method: "cash",
	}}

	sched := archive.NewWithClock(repo, clock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := repo.snapshots["2025-12"]; !ok {
		t.Errorf("december not archived across the year boundary, have %v", repo.snapshots)
	}
}
