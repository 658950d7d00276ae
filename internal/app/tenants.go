package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/propiq/propiq/internal/domain"
)

// AddTenant validates and persists a new tenant, assigning it to the target
// property or unit. The occupancy guard decides whether the assignment is
// legal; an occupied target surfaces as a ConflictError.
func (s *EstateService) AddTenant(ctx context.Context, input domain.TenantInput) (domain.Tenant, error) {
	if err := s.validator.Validate(domain.KindTenant, input); err != nil {
		return domain.Tenant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return domain.Tenant{}, err
	}

	propIdx := -1
	for i, p := range properties {
		if p.ID == input.PropertyID {
			propIdx = i
			break
		}
	}
	if propIdx < 0 {
		return domain.Tenant{}, domain.ErrPropertyNotFound
	}
	property := properties[propIdx]

	// The occupancy flip below mutates the loaded slice in place; drop the
	// cached copy so a failed persist cannot serve the mutated state.
	s.cache.Invalidate(domain.KindProperty)

	tenant := domain.Tenant{
		ID:         newID(),
		PropertyID: input.PropertyID,
		UnitNumber: input.UnitNumber,
		Name:       input.Name,
		Phone:      input.Phone,
		RentAmount: input.RentAmount,
		EntryDate:  input.EntryDate,
		Status:     domain.TenantActive,
		CreatedAt:  nowUTC(),
	}

	if property.Kind == domain.PropertySharedYard {
		if input.UnitNumber == nil {
			return domain.Tenant{}, domain.NewValidationError("unitNumber", "required for shared-yard properties")
		}
		unit, ok := property.Unit(*input.UnitNumber)
		if !ok {
			return domain.Tenant{}, domain.ErrUnitNotFound
		}
		next, err := s.guard.Unit(ctx, unit.Status, domain.EventAssign)
		if err != nil {
			var oerr *domain.OccupancyError
			if errors.As(err, &oerr) {
				return domain.Tenant{}, &domain.ConflictError{
					Reason: fmt.Sprintf("unit %d on property %s is already occupied", *input.UnitNumber, property.ID),
				}
			}
			return domain.Tenant{}, err
		}
		unit.Status = next
		unit.TenantID = tenant.ID
	} else {
		next, err := s.guard.Property(ctx, property.Status, domain.EventAssign)
		if err != nil {
			var oerr *domain.OccupancyError
			if errors.As(err, &oerr) {
				return domain.Tenant{}, &domain.ConflictError{
					Reason: fmt.Sprintf("property %s is not available for assignment", property.ID),
				}
			}
			return domain.Tenant{}, err
		}
		property.Status = next
	}
	properties[propIdx] = property

	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return domain.Tenant{}, err
	}
	tenants = append(tenants, tenant)

	if err := persist(s, domain.KindTenant, tenants); err != nil {
		return domain.Tenant{}, err
	}
	if err := persist(s, domain.KindProperty, properties); err != nil {
		return domain.Tenant{}, fmt.Errorf("updating property occupancy: %w", err)
	}

	s.replicate(ctx, domain.KindTenant, domain.ActionAdd, tenant.ID, tenant)
	s.replicate(ctx, domain.KindProperty, domain.ActionUpdate, property.ID, property)

	return tenant, nil
}

// Tenants returns all tenants in the active namespace.
func (s *EstateService) Tenants(ctx context.Context) ([]domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection[domain.Tenant](s, domain.KindTenant)
}

// GetTenant returns a tenant by ID.
func (s *EstateService) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return domain.Tenant{}, err
	}
	for _, t := range tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

// TenantsForProperty returns the tenants assigned to the given property.
func (s *EstateService) TenantsForProperty(ctx context.Context, propertyID string) ([]domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tenant, 0)
	for _, t := range tenants {
		if t.PropertyID == propertyID {
			out = append(out, t)
		}
	}
	return out, nil
}

// UpdateTenant merges a partial payload into an existing tenant. The property
// reference is immutable; a unitNumber change moves the tenant between units
// of the same property, releasing the old unit and assigning the new one.
func (s *EstateService) UpdateTenant(ctx context.Context, id string, patch map[string]any) (domain.Tenant, error) {
	if err := s.validator.ValidatePartial(domain.KindTenant, patch); err != nil {
		return domain.Tenant{}, err
	}
	if _, ok := patch["propertyId"]; ok {
		return domain.Tenant{}, domain.NewValidationError("propertyId", "cannot be changed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return domain.Tenant{}, err
	}

	for i, t := range tenants {
		if t.ID != id {
			continue
		}

		moveTo := -1
		if raw, ok := patch["unitNumber"]; ok {
			n, ok := patchInt(raw)
			if !ok {
				return domain.Tenant{}, domain.NewValidationError("unitNumber", "must be a number")
			}
			moveTo = n
			delete(patch, "unitNumber")
		}

		merged, err := mergePatch(t, patch)
		if err != nil {
			return domain.Tenant{}, err
		}

		var movedProperty *domain.Property
		var properties []domain.Property
		if moveTo >= 0 && (t.UnitNumber == nil || *t.UnitNumber != moveTo) {
			properties, err = collection[domain.Property](s, domain.KindProperty)
			if err != nil {
				return domain.Tenant{}, err
			}
			s.cache.Invalidate(domain.KindProperty)
			moved, err := s.moveTenantUnit(ctx, properties, t, moveTo)
			if err != nil {
				return domain.Tenant{}, err
			}
			movedProperty = moved
			merged.UnitNumber = &moveTo
		}
		tenants[i] = merged

		if err := persist(s, domain.KindTenant, tenants); err != nil {
			return domain.Tenant{}, err
		}
		if movedProperty != nil {
			if err := persist(s, domain.KindProperty, properties); err != nil {
				return domain.Tenant{}, fmt.Errorf("updating property occupancy: %w", err)
			}
		}

		s.replicate(ctx, domain.KindTenant, domain.ActionUpdate, id, merged)
		if movedProperty != nil {
			s.replicate(ctx, domain.KindProperty, domain.ActionUpdate, movedProperty.ID, *movedProperty)
		}
		return merged, nil
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

// moveTenantUnit releases the tenant's current unit and assigns the target
// unit, mutating the property in place. Returns the mutated property.
func (s *EstateService) moveTenantUnit(ctx context.Context, properties []domain.Property, t domain.Tenant, target int) (*domain.Property, error) {
	var property *domain.Property
	for i := range properties {
		if properties[i].ID == t.PropertyID {
			property = &properties[i]
			break
		}
	}
	if property == nil {
		return nil, domain.ErrPropertyNotFound
	}
	if property.Kind != domain.PropertySharedYard {
		return nil, domain.NewValidationError("unitNumber", "only shared-yard properties have units")
	}

	dest, ok := property.Unit(target)
	if !ok {
		return nil, domain.ErrUnitNotFound
	}
	next, err := s.guard.Unit(ctx, dest.Status, domain.EventAssign)
	if err != nil {
		var oerr *domain.OccupancyError
		if errors.As(err, &oerr) {
			return nil, &domain.ConflictError{
				Reason: fmt.Sprintf("unit %d on property %s is already occupied", target, property.ID),
			}
		}
		return nil, err
	}

	if t.UnitNumber != nil {
		if src, ok := property.Unit(*t.UnitNumber); ok && src.TenantID == t.ID {
			src.Status = domain.UnitFree
			src.TenantID = ""
		}
	}
	dest.Status = next
	dest.TenantID = t.ID
	return property, nil
}

// DeleteTenant removes a tenant and releases its property or unit.
func (s *EstateService) DeleteTenant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return err
	}

	kept := make([]domain.Tenant, 0, len(tenants))
	var removed *domain.Tenant
	for _, t := range tenants {
		if t.ID == id {
			t := t
			removed = &t
			continue
		}
		kept = append(kept, t)
	}
	if removed == nil {
		return domain.ErrTenantNotFound
	}

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return err
	}
	s.cache.Invalidate(domain.KindProperty)
	released := s.releaseTenant(properties, *removed)

	if err := persist(s, domain.KindTenant, kept); err != nil {
		return err
	}
	if released != nil {
		if err := persist(s, domain.KindProperty, properties); err != nil {
			return fmt.Errorf("updating property occupancy: %w", err)
		}
	}

	s.replicate(ctx, domain.KindTenant, domain.ActionDelete, id, nil)
	if released != nil {
		s.replicate(ctx, domain.KindProperty, domain.ActionUpdate, released.ID, *released)
	}
	return nil
}

// releaseTenant frees the unit or property the tenant occupied, mutating the
// slice in place. Already-free targets are left alone: release on delete is
// an effect, not an invariant check. Returns the mutated property, or nil when
// nothing changed.
func (s *EstateService) releaseTenant(properties []domain.Property, t domain.Tenant) *domain.Property {
	for i := range properties {
		p := &properties[i]
		if p.ID != t.PropertyID {
			continue
		}
		if p.Kind == domain.PropertySharedYard {
			if t.UnitNumber == nil {
				return nil
			}
			unit, ok := p.Unit(*t.UnitNumber)
			if !ok || unit.TenantID != t.ID {
				return nil
			}
			unit.Status = domain.UnitFree
			unit.TenantID = ""
			return p
		}
		if p.Status != domain.PropertyOccupied {
			return nil
		}
		p.Status = domain.PropertyFree
		return p
	}
	return nil
}
