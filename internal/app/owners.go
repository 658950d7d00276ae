package app

import (
	"context"

	"github.com/propiq/propiq/internal/domain"
)

// AddOwner validates and persists a new owner.
func (s *EstateService) AddOwner(ctx context.Context, input domain.OwnerInput) (domain.Owner, error) {
	if err := s.validator.Validate(domain.KindOwner, input); err != nil {
		return domain.Owner{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := collection[domain.Owner](s, domain.KindOwner)
	if err != nil {
		return domain.Owner{}, err
	}

	owner := domain.Owner{
		ID:        newID(),
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     input.Email,
		Address:   input.Address,
		CreatedAt: nowUTC(),
	}
	owners = append(owners, owner)

	if err := persist(s, domain.KindOwner, owners); err != nil {
		return domain.Owner{}, err
	}
	s.replicate(ctx, domain.KindOwner, domain.ActionAdd, owner.ID, owner)

	return owner, nil
}

// Owners returns all owners in the active namespace.
func (s *EstateService) Owners(ctx context.Context) ([]domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection[domain.Owner](s, domain.KindOwner)
}

// GetOwner returns an owner by ID.
func (s *EstateService) GetOwner(ctx context.Context, id string) (domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := collection[domain.Owner](s, domain.KindOwner)
	if err != nil {
		return domain.Owner{}, err
	}
	for _, o := range owners {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Owner{}, domain.ErrOwnerNotFound
}

// UpdateOwner merges a partial payload into an existing owner.
func (s *EstateService) UpdateOwner(ctx context.Context, id string, patch map[string]any) (domain.Owner, error) {
	if err := s.validator.ValidatePartial(domain.KindOwner, patch); err != nil {
		return domain.Owner{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := collection[domain.Owner](s, domain.KindOwner)
	if err != nil {
		return domain.Owner{}, err
	}

	for i, o := range owners {
		if o.ID != id {
			continue
		}
		merged, err := mergePatch(o, patch)
		if err != nil {
			return domain.Owner{}, err
		}
		owners[i] = merged

		if err := persist(s, domain.KindOwner, owners); err != nil {
			return domain.Owner{}, err
		}
		s.replicate(ctx, domain.KindOwner, domain.ActionUpdate, id, merged)
		return merged, nil
	}
	return domain.Owner{}, domain.ErrOwnerNotFound
}

// DeleteOwner removes an owner. References from properties are not cascaded;
// the UI prevents deleting a referenced owner.
func (s *EstateService) DeleteOwner(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners, err := collection[domain.Owner](s, domain.KindOwner)
	if err != nil {
		return err
	}

	kept := make([]domain.Owner, 0, len(owners))
	found := false
	for _, o := range owners {
		if o.ID == id {
			found = true
			continue
		}
		kept = append(kept, o)
	}
	if !found {
		return domain.ErrOwnerNotFound
	}

	if err := persist(s, domain.KindOwner, kept); err != nil {
		return err
	}
	s.replicate(ctx, domain.KindOwner, domain.ActionDelete, id, nil)
	return nil
}
