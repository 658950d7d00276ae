package app

import (
	"context"
	"fmt"

	"github.com/propiq/propiq/internal/domain"
)

// AddProperty validates and persists a new property. Shared-yard properties
// get their ordered unit list generated here, all units free.
func (s *EstateService) AddProperty(ctx context.Context, input domain.PropertyInput) (domain.Property, error) {
	if err := s.validator.Validate(domain.KindProperty, input); err != nil {
		return domain.Property{}, err
	}
	if input.Kind == domain.PropertySharedYard && input.UnitCount < 1 {
		return domain.Property{}, domain.NewValidationError("unitCount", "required for shared-yard properties")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := collection[domain.Owner](s, domain.KindOwner)
	if err != nil {
		return domain.Property{}, err
	}
	if !ownerExists(owners, input.OwnerID) {
		return domain.Property{}, domain.ErrOwnerNotFound
	}

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return domain.Property{}, err
	}

	property := domain.Property{
		ID:         newID(),
		OwnerID:    input.OwnerID,
		Kind:       input.Kind,
		Status:     domain.PropertyFree,
		Address:    input.Address,
		RentAmount: input.RentAmount,
		CreatedAt:  nowUTC(),
	}
	if input.Kind == domain.PropertySharedYard {
		property.Units = newUnits(input.UnitCount)
	}
	properties = append(properties, property)

	if err := persist(s, domain.KindProperty, properties); err != nil {
		return domain.Property{}, err
	}
	s.replicate(ctx, domain.KindProperty, domain.ActionAdd, property.ID, property)

	return property, nil
}

// Properties returns all properties in the active namespace.
func (s *EstateService) Properties(ctx context.Context) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection[domain.Property](s, domain.KindProperty)
}

// GetProperty returns a property by ID.
func (s *EstateService) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return domain.Property{}, err
	}
	for _, p := range properties {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrPropertyNotFound
}

// PropertiesForOwner returns the properties referencing the given owner.
func (s *EstateService) PropertiesForOwner(ctx context.Context, ownerID string) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Property, 0)
	for _, p := range properties {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdateProperty merges a partial payload into an existing property. A
// unitCount change regenerates the unit list, preserving existing unit
// identity and occupancy by position.
func (s *EstateService) UpdateProperty(ctx context.Context, id string, patch map[string]any) (domain.Property, error) {
	if err := s.validator.ValidatePartial(domain.KindProperty, patch); err != nil {
		return domain.Property{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return domain.Property{}, err
	}

	for i, p := range properties {
		if p.ID != id {
			continue
		}

		unitCount := -1
		if raw, ok := patch["unitCount"]; ok {
			n, ok := patchInt(raw)
			if !ok {
				return domain.Property{}, domain.NewValidationError("unitCount", "must be a number")
			}
			if p.Kind != domain.PropertySharedYard {
				return domain.Property{}, domain.NewValidationError("unitCount", "only shared-yard properties have units")
			}
			unitCount = n
			delete(patch, "unitCount")
		}

		merged, err := mergePatch(p, patch)
		if err != nil {
			return domain.Property{}, err
		}
		if unitCount >= 0 {
			merged.Units = resizeUnits(p.Units, unitCount)
		}
		properties[i] = merged

		if err := persist(s, domain.KindProperty, properties); err != nil {
			return domain.Property{}, err
		}
		s.replicate(ctx, domain.KindProperty, domain.ActionUpdate, id, merged)
		return merged, nil
	}
	return domain.Property{}, domain.ErrPropertyNotFound
}

// DeleteProperty removes a property and cascades to every tenant referencing
// it. Both collections are consistent before the call returns.
func (s *EstateService) DeleteProperty(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	properties, err := collection[domain.Property](s, domain.KindProperty)
	if err != nil {
		return err
	}
	tenants, err := collection[domain.Tenant](s, domain.KindTenant)
	if err != nil {
		return err
	}

	keptProps := make([]domain.Property, 0, len(properties))
	found := false
	for _, p := range properties {
		if p.ID == id {
			found = true
			continue
		}
		keptProps = append(keptProps, p)
	}
	if !found {
		return domain.ErrPropertyNotFound
	}

	keptTenants := make([]domain.Tenant, 0, len(tenants))
	var evicted []string
	for _, t := range tenants {
		if t.PropertyID == id {
			evicted = append(evicted, t.ID)
			continue
		}
		keptTenants = append(keptTenants, t)
	}

	if err := persist(s, domain.KindProperty, keptProps); err != nil {
		return err
	}
	if err := persist(s, domain.KindTenant, keptTenants); err != nil {
		return fmt.Errorf("cascading tenant deletion: %w", err)
	}

	s.replicate(ctx, domain.KindProperty, domain.ActionDelete, id, nil)
	for _, tid := range evicted {
		s.replicate(ctx, domain.KindTenant, domain.ActionDelete, tid, nil)
	}
	return nil
}

func ownerExists(owners []domain.Owner, id string) bool {
	for _, o := range owners {
		if o.ID == id {
			return true
		}
	}
	return false
}

func newUnits(count int) []domain.Unit {
	units := make([]domain.Unit, count)
	for i := range units {
		units[i] = domain.Unit{ID: newID(), UnitNumber: i + 1, Status: domain.UnitFree}
	}
	return units
}

// resizeUnits regenerates a unit list to the new count: positions that exist
// in both lists keep their identity and occupancy, new positions start free.
func resizeUnits(existing []domain.Unit, count int) []domain.Unit {
	units := make([]domain.Unit, 0, count)
	for i := 0; i < count && i < len(existing); i++ {
		units = append(units, existing[i])
	}
	for i := len(units); i < count; i++ {
		units = append(units, domain.Unit{ID: newID(), UnitNumber: i + 1, Status: domain.UnitFree})
	}
	return units
}
