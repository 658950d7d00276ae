package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/propiq/propiq/internal/adapter/fsm"
	"github.com/propiq/propiq/internal/adapter/validate"
	"github.com/propiq/propiq/internal/app"
	"github.com/propiq/propiq/internal/cache"
	"github.com/propiq/propiq/internal/domain"
	"github.com/propiq/propiq/internal/storage"
)

// countingBackend wraps the in-memory backend and counts reads per key, so
// tests can assert the cache actually absorbs repeated loads.
type countingBackend struct {
	*storage.MemoryBackend
	gets map[string]int
}

func newCountingBackend() *countingBackend {
	return &countingBackend{
		MemoryBackend: storage.NewMemoryBackend(1 << 20),
		gets:          make(map[string]int),
	}
}

func (b *countingBackend) GetItem(key string) (string, bool, error) {
	b.gets[key]++
	return b.MemoryBackend.GetItem(key)
}

// recordingQueue captures every replication push.
type recordingQueue struct {
	pushes []pushedRecord
}

type pushedRecord struct {
	namespace string
	kind      domain.Kind
	action    domain.Action
	id        string
}

func (q *recordingQueue) Push(ctx context.Context, namespace string, kind domain.Kind, action domain.Action, id string, payload any) error {
	q.pushes = append(q.pushes, pushedRecord{namespace: namespace, kind: kind, action: action, id: id})
	return nil
}

type fixture struct {
	svc     *app.EstateService
	backend *countingBackend
	queue   *recordingQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := newCountingBackend()
	store := storage.New(backend, storage.Config{})
	queue := &recordingQueue{}
	svc := app.NewEstateService(store, cache.New(0), validate.New(), fsm.New(), queue)
	svc.SetNamespace("agency-a")
	return &fixture{svc: svc, backend: backend, queue: queue}
}

func (f *fixture) addOwner(t *testing.T) domain.Owner {
	t.Helper()
	owner, err := f.svc.AddOwner(context.Background(), domain.OwnerInput{Name: "Karim Osei"})
	if err != nil {
		t.Fatalf("AddOwner: %v", err)
	}
	return owner
}

func (f *fixture) addSharedYard(t *testing.T, ownerID string, units int) domain.Property {
	t.Helper()
	property, err := f.svc.AddProperty(context.Background(), domain.PropertyInput{
		OwnerID:    ownerID,
		Kind:       domain.PropertySharedYard,
		RentAmount: 50000,
		UnitCount:  units,
	})
	if err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	return property
}

func (f *fixture) addTenant(t *testing.T, propertyID string, unit *int) domain.Tenant {
	t.Helper()
	tenant, err := f.svc.AddTenant(context.Background(), domain.TenantInput{
		PropertyID: propertyID,
		UnitNumber: unit,
		Name:       "Awa Diallo",
		RentAmount: 50000,
		EntryDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddTenant: %v", err)
	}
	return tenant
}

func intp(n int) *int { return &n }

func TestAddTenant_SharedYardUnitAssignment(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 3)

	tenant := f.addTenant(t, property.ID, intp(2))

	got, err := f.svc.GetProperty(context.Background(), property.ID)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	unit, ok := got.Unit(2)
	if !ok {
		t.Fatal("unit 2 missing")
	}
	if unit.Status != domain.UnitOccupied || unit.TenantID != tenant.ID {
		t.Errorf("unit 2 = %+v, want occupied by %s", unit, tenant.ID)
	}
	for _, n := range []int{1, 3} {
		u, _ := got.Unit(n)
		if u.Status != domain.UnitFree {
			t.Errorf("unit %d = %s, want free", n, u.Status)
		}
	}
}

func TestAddTenant_OccupiedUnitConflicts(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 3)
	f.addTenant(t, property.ID, intp(2))

	_, err := f.svc.AddTenant(context.Background(), domain.TenantInput{
		PropertyID: property.ID,
		UnitNumber: intp(2),
		Name:       "Second Tenant",
		EntryDate:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	})

	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	tenants, err := f.svc.Tenants(context.Background())
	if err != nil {
		t.Fatalf("Tenants: %v", err)
	}
	if len(tenants) != 1 {
		t.Errorf("tenant count = %d, want 1 (rejected add must not persist)", len(tenants))
	}
}

func TestAddTenant_SimplePropertyOccupancy(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property, err := f.svc.AddProperty(context.Background(), domain.PropertyInput{
		OwnerID: owner.ID,
		Kind:    domain.PropertySingleUnit,
	})
	if err != nil {
		t.Fatalf("AddProperty: %v", err)
	}

	f.addTenant(t, property.ID, nil)

	got, _ := f.svc.GetProperty(context.Background(), property.ID)
	if got.Status != domain.PropertyOccupied {
		t.Errorf("property status = %s, want occupied", got.Status)
	}

	_, err = f.svc.AddTenant(context.Background(), domain.TenantInput{
		PropertyID: property.ID,
		Name:       "Second Tenant",
		EntryDate:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError for occupied property, got %v", err)
	}
}

func TestDeleteProperty_CascadesTenants(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 2)
	tenant := f.addTenant(t, property.ID, intp(1))

	if err := f.svc.DeleteProperty(context.Background(), property.ID); err != nil {
		t.Fatalf("DeleteProperty: %v", err)
	}

	if _, err := f.svc.GetProperty(context.Background(), property.ID); !errors.Is(err, domain.ErrPropertyNotFound) {
		t.Errorf("GetProperty after delete = %v, want ErrPropertyNotFound", err)
	}
	if _, err := f.svc.GetTenant(context.Background(), tenant.ID); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("GetTenant after cascade = %v, want ErrTenantNotFound", err)
	}

	var sawTenantDelete bool
	for _, p := range f.queue.pushes {
		if p.kind == domain.KindTenant && p.action == domain.ActionDelete && p.id == tenant.ID {
			sawTenantDelete = true
		}
	}
	if !sawTenantDelete {
		t.Error("cascade did not enqueue a tenant delete push")
	}
}

func TestDeleteTenant_ReleasesUnit(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 2)
	tenant := f.addTenant(t, property.ID, intp(1))

	if err := f.svc.DeleteTenant(context.Background(), tenant.ID); err != nil {
		t.Fatalf("DeleteTenant: %v", err)
	}

	got, _ := f.svc.GetProperty(context.Background(), property.ID)
	unit, _ := got.Unit(1)
	if unit.Status != domain.UnitFree || unit.TenantID != "" {
		t.Errorf("unit 1 after release = %+v, want free and unassigned", unit)
	}
}

func TestUpdateTenant_MovesBetweenUnits(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 3)
	tenant := f.addTenant(t, property.ID, intp(1))

	moved, err := f.svc.UpdateTenant(context.Background(), tenant.ID, map[string]any{"unitNumber": 3})
	if err != nil {
		t.Fatalf("UpdateTenant: %v", err)
	}
	if moved.UnitNumber == nil || *moved.UnitNumber != 3 {
		t.Fatalf("tenant unit = %v, want 3", moved.UnitNumber)
	}

	got, _ := f.svc.GetProperty(context.Background(), property.ID)
	src, _ := got.Unit(1)
	dst, _ := got.Unit(3)
	if src.Status != domain.UnitFree || src.TenantID != "" {
		t.Errorf("source unit = %+v, want released", src)
	}
	if dst.Status != domain.UnitOccupied || dst.TenantID != tenant.ID {
		t.Errorf("destination unit = %+v, want occupied by %s", dst, tenant.ID)
	}
}

func TestUpdateTenant_PropertyIsImmutable(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 2)
	tenant := f.addTenant(t, property.ID, intp(1))

	_, err := f.svc.UpdateTenant(context.Background(), tenant.ID, map[string]any{"propertyId": "other"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateProperty_ResizePreservesOccupancy(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 2)
	tenant := f.addTenant(t, property.ID, intp(2))

	resized, err := f.svc.UpdateProperty(context.Background(), property.ID, map[string]any{"unitCount": 4})
	if err != nil {
		t.Fatalf("UpdateProperty: %v", err)
	}
	if len(resized.Units) != 4 {
		t.Fatalf("unit count = %d, want 4", len(resized.Units))
	}
	unit, _ := resized.Unit(2)
	if unit.Status != domain.UnitOccupied || unit.TenantID != tenant.ID {
		t.Errorf("unit 2 after resize = %+v, want occupancy preserved", unit)
	}
	for _, n := range []int{3, 4} {
		u, ok := resized.Unit(n)
		if !ok || u.Status != domain.UnitFree {
			t.Errorf("new unit %d = %+v, want free", n, u)
		}
	}
}

func TestAddProperty_UnknownOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddProperty(context.Background(), domain.PropertyInput{
		OwnerID: "missing",
		Kind:    domain.PropertyShop,
	})
	if !errors.Is(err, domain.ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}

func TestAddOwner_ValidationAbortsBeforeWrite(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddOwner(context.Background(), domain.OwnerInput{Email: "not-an-email"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(f.queue.pushes) != 0 {
		t.Errorf("rejected add enqueued %d pushes, want 0", len(f.queue.pushes))
	}

	owners, err := f.svc.Owners(context.Background())
	if err != nil {
		t.Fatalf("Owners: %v", err)
	}
	if len(owners) != 0 {
		t.Errorf("owner count = %d, want 0", len(owners))
	}
}

func TestCollectionReads_AreCached(t *testing.T) {
	f := newFixture(t)
	f.addOwner(t)

	key := "agency-a/owners"
	before := f.backend.gets[key]
	if _, err := f.svc.Owners(context.Background()); err != nil {
		t.Fatalf("Owners: %v", err)
	}
	afterFirst := f.backend.gets[key]
	if _, err := f.svc.Owners(context.Background()); err != nil {
		t.Fatalf("Owners: %v", err)
	}
	afterSecond := f.backend.gets[key]

	if afterFirst == before {
		t.Fatal("first read did not reach the backend")
	}
	if afterSecond != afterFirst {
		t.Errorf("second read reached the backend (%d -> %d), want cache hit", afterFirst, afterSecond)
	}
}

func TestNamespaceSwitch_IsolatesCollections(t *testing.T) {
	f := newFixture(t)
	f.addOwner(t)

	f.svc.SetNamespace("agency-b")
	owners, err := f.svc.Owners(context.Background())
	if err != nil {
		t.Fatalf("Owners: %v", err)
	}
	if len(owners) != 0 {
		t.Errorf("agency-b sees %d owners from agency-a, want 0", len(owners))
	}

	f.svc.SetNamespace("agency-a")
	owners, err = f.svc.Owners(context.Background())
	if err != nil {
		t.Fatalf("Owners: %v", err)
	}
	if len(owners) != 1 {
		t.Errorf("agency-a owner count after switch back = %d, want 1", len(owners))
	}
}

func TestPayments_ArchivedPeriodIsImmutable(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 1)
	tenant := f.addTenant(t, property.ID, intp(1))

	payment, err := f.svc.AddPayment(context.Background(), domain.PaymentInput{
		TenantID:   tenant.ID,
		PropertyID: property.ID,
		Month:      7,
		Year:       2025,
		AmountPaid: 50000,
		Method:     "cash",
		Date:       time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}

	snap := domain.ArchiveSnapshot{
		ID:          "2025-07",
		PeriodKey:   "2025-07",
		Records:     []domain.Payment{payment},
		ArchivedAt:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount: 50000,
	}
	if err := f.svc.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	var cerr *domain.ConflictError
	if _, err := f.svc.UpdatePayment(context.Background(), payment.ID, map[string]any{"amountPaid": 60000}); !errors.As(err, &cerr) {
		t.Errorf("UpdatePayment on archived period = %v, want ConflictError", err)
	}
	if err := f.svc.DeletePayment(context.Background(), payment.ID); !errors.As(err, &cerr) {
		t.Errorf("DeletePayment on archived period = %v, want ConflictError", err)
	}

	// Late entries for an archived period are still accepted.
	if _, err := f.svc.AddPayment(context.Background(), domain.PaymentInput{
		TenantID:   tenant.ID,
		PropertyID: property.ID,
		Month:      7,
		Year:       2025,
		AmountPaid: 25000,
		Method:     "transfer",
		Date:       time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Errorf("AddPayment for archived period = %v, want accepted", err)
	}
}

func TestPaymentsForPeriod_FiltersByMonth(t *testing.T) {
	f := newFixture(t)
	owner := f.addOwner(t)
	property := f.addSharedYard(t, owner.ID, 1)
	tenant := f.addTenant(t, property.ID, intp(1))

	for _, month := range []int{6, 7, 7} {
		if _, err := f.svc.AddPayment(context.Background(), domain.PaymentInput{
			TenantID:   tenant.ID,
			PropertyID: property.ID,
			Month:      month,
			Year:       2025,
			AmountPaid: 50000,
			Method:     "cash",
			Date:       time.Date(2025, time.Month(month), 3, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("AddPayment: %v", err)
		}
	}

	july, err := f.svc.PaymentsForPeriod(context.Background(), 2025, 7)
	if err != nil {
		t.Fatalf("PaymentsForPeriod: %v", err)
	}
	if len(july) != 2 {
		t.Errorf("july payment count = %d, want 2", len(july))
	}
}

func TestSnapshots_ListsByPeriod(t *testing.T) {
	f := newFixture(t)

	for _, period := range []string{"2025-07", "2025-06"} {
		snap := domain.ArchiveSnapshot{
			ID:         period,
			PeriodKey:  period,
			Records:    []domain.Payment{},
			ArchivedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := f.svc.SaveSnapshot(context.Background(), snap); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	snaps, err := f.svc.Snapshots(context.Background())
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshot count = %d, want 2", len(snaps))
	}
	if snaps[0].PeriodKey != "2025-06" || snaps[1].PeriodKey != "2025-07" {
		t.Errorf("snapshot order = [%s %s], want period order", snaps[0].PeriodKey, snaps[1].PeriodKey)
	}
}

func TestArchiveMarker_RoundTrip(t *testing.T) {
	f := newFixture(t)

	last, err := f.svc.LastArchiveRun(context.Background())
	if err != nil {
		t.Fatalf("LastArchiveRun: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("initial marker = %v, want zero", last)
	}

	at := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
	if err := f.svc.SetLastArchiveRun(context.Background(), at); err != nil {
		t.Fatalf("SetLastArchiveRun: %v", err)
	}
	last, err = f.svc.LastArchiveRun(context.Background())
	if err != nil {
		t.Fatalf("LastArchiveRun: %v", err)
	}
	if !last.Equal(at) {
		t.Errorf("marker = %v, want %v", last, at)
	}
}
