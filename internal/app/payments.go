package app

import (
	"context"
	"fmt"

	"github.com/propiq/propiq/internal/domain"
	"github.com/propiq/propiq/internal/storage"
)

// AddPayment validates and persists a new payment. The referenced tenant and
// property must exist; the period may already be archived, since late entries
// are picked up by the next archival pass.
func (s *EstateService) AddPayment(ctx context.Context, input domain.PaymentInput) (domain.Payment, error) {
	if err := s.validator.Validate(domain.KindPayment, input); err != nil {
		return domain.Payment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return domain.Payment{}, err
	}
	if !tenantExists(tenants, input.TenantID) {
		return domain.Payment{}, domain.ErrTenantNotFound
	}
	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return domain.Payment{}, err
	}
	if !propertyExists(properties, input.PropertyID) {
		return domain.Payment{}, domain.ErrPropertyNotFound
	}

	payments, err := collection[domain.Payment](s, domain.KindPayment)
	if err != nil {
		return domain.Payment{}, err
	}

	payment := domain.Payment{
		ID:         newID(),
		TenantID:   input.TenantID,
		PropertyID: input.PropertyID,
		Month:      input.Month,
		Year:       input.Year,
		AmountPaid: input.AmountPaid,
		Method:     input.Method,
		Date:       input.Date,
		GroupID:    input.GroupID,
	}
	payments = append(payments, payment)

	if err := persist(s, domain.KindPayment, payments); err != nil {
		return domain.Payment{}, err
	}
	s.replicate(ctx, domain.KindPayment, domain.ActionAdd, payment.ID, payment)

	return payment, nil
}

// Payments returns all payments in the active namespace.
func (s *EstateService) Payments(ctx context.Context) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection[domain.Payment](s, domain.KindPayment)
}

// GetPayment returns a payment by ID.
func (s *EstateService) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments, err := collection[domain.Payment](s, domain.KindPayment)
	if err != nil {
		return domain.Payment{}, err
	}
	for _, p := range payments {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// PaymentsForPeriod returns the payments recorded for one calendar month.
func (s *EstateService) PaymentsForPeriod(ctx context.Context, year, month int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments, err := collection[domain.Payment](s, domain.KindPayment)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0)
	for _, p := range payments {
		if p.Year == year && p.Month == month {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdatePayment merges a partial payload into an existing payment. Payments
// belonging to an already-archived period are immutable, and so is the period
// the merge would move the payment into.
func (s *EstateService) UpdatePayment(ctx context.Context, id string, patch map[string]any) (domain.Payment, error) {
	if err := s.validator.ValidatePartial(domain.KindPayment, patch); err != nil {
		return domain.Payment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payments, err := collection[domain.Payment](s, domain.KindPayment)
	if err != nil {
		return domain.Payment{}, err
	}

	for i, p := range payments {
		if p.ID != id {
			continue
		}
		if err := s.requireUnarchived(p.PeriodKey()); err != nil {
			return domain.Payment{}, err
		}

		merged, err := mergePatch(p, patch)
		if err != nil {
			return domain.Payment{}, err
		}
		if merged.PeriodKey() != p.PeriodKey() {
			if err := s.requireUnarchived(merged.PeriodKey()); err != nil {
				return domain.Payment{}, err
			}
		}
		payments[i] = merged

		if err := persist(s, domain.KindPayment, payments); err != nil {
			return domain.Payment{}, err
		}
		s.replicate(ctx, domain.KindPayment, domain.ActionUpdate, id, merged)
		return merged, nil
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// DeletePayment removes a payment. Payments in an archived period are
// immutable.
func (s *EstateService) DeletePayment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments, err := collection[domain.Payment](s, domain.KindPayment)
	if err != nil {
		return err
	}

	kept := make([]domain.Payment, 0, len(payments))
	found := false
	for _, p := range payments {
		if p.ID == id {
			if err := s.requireUnarchived(p.PeriodKey()); err != nil {
				return err
			}
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return domain.ErrPaymentNotFound
	}

	if err := persist(s, domain.KindPayment, kept); err != nil {
		return err
	}
	s.replicate(ctx, domain.KindPayment, domain.ActionDelete, id, nil)
	return nil
}

// requireUnarchived returns a ConflictError when a snapshot already exists for
// the period.
func (s *EstateService) requireUnarchived(periodKey string) error {
	var snap domain.ArchiveSnapshot
	found, err := s.store.Get(storage.SnapshotKeyPrefix+periodKey, &snap)
	if err != nil {
		return fmt.Errorf("checking archive for %s: %w", periodKey, err)
	}
	if found {
		return &domain.ConflictError{
			Reason: fmt.Sprintf("period %s is archived and its payments are immutable", periodKey),
		}
	}
	return nil
}

func tenantExists(tenants []domain.Tenant, id string) bool {
	for _, t := range tenants {
		if t.ID == id {
			return true
		}
	}
	return false
}

func propertyExists(properties []domain.Property, id string) bool {
	for _, p := range properties {
		if p.ID == id {
			return true
		}
	}
	return false
}
