package domain

import "time"

// Input payloads accepted by the repository's add operations. Validation
// rules live in the struct tags; the validator adapter resolves them.

// OwnerInput is the create payload for an owner.
type OwnerInput struct {
	Name    string `json:"name" validate:"required,min=1,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"omitempty,max=512"`
}

// PropertyInput is the create payload for a property. UnitCount is required
// for shared-yard properties and ignored otherwise; the repository enforces
// that rule because it spans two fields.
type PropertyInput struct {
	OwnerID    string       `json:"ownerId" validate:"required"`
	Kind       PropertyKind `json:"kind" validate:"required,oneof=single-unit shared-yard shop"`
	Address    string       `json:"address" validate:"omitempty,max=512"`
	RentAmount int64        `json:"rentAmount" validate:"gte=0"`
	UnitCount  int          `json:"unitCount" validate:"omitempty,gte=1,lte=64"`
}

// TenantInput is the create payload for a tenant. UnitNumber is required when
// the target property is shared-yard.
type TenantInput struct {
	PropertyID string    `json:"propertyId" validate:"required"`
	UnitNumber *int      `json:"unitNumber" validate:"omitempty,gte=1"`
	Name       string    `json:"name" validate:"required,min=1,max=255"`
	Phone      string    `json:"phone" validate:"omitempty,max=32"`
	RentAmount int64     `json:"rentAmount" validate:"gte=0"`
	EntryDate  time.Time `json:"entryDate" validate:"required"`
}

// PaymentInput is the create payload for a payment.
type PaymentInput struct {
	TenantID   string    `json:"tenantId" validate:"required"`
	PropertyID string    `json:"propertyId" validate:"required"`
	Month      int       `json:"month" validate:"required,gte=1,lte=12"`
	Year       int       `json:"year" validate:"required,gte=2000,lte=2100"`
	AmountPaid int64     `json:"amountPaid" validate:"required,gt=0"`
	Method     string    `json:"method" validate:"required,oneof=cash card cheque transfer"`
	Date       time.Time `json:"date" validate:"required"`
	GroupID    string    `json:"groupId" validate:"omitempty,max=64"`
}
