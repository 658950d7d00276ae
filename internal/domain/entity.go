package domain

import (
	"fmt"
	"time"
)

// Kind identifies one of the persisted entity collections.
type Kind string

const (
	KindOwner    Kind = "owner"
	KindProperty Kind = "property"
	KindTenant   Kind = "tenant"
	KindPayment  Kind = "payment"
	KindArchive  Kind = "archive"
)

// KindSpec declares per-kind storage capabilities. The Sensitive flag marks
// collections whose stored value is wrapped in a sealed envelope; it is
// declared here, next to the schema, instead of being derived from key
// substrings at runtime.
type KindSpec struct {
	// StorageKey is the logical key the collection lives under in the
	// key-value store, before namespace prefixing.
	StorageKey string
	// Collection is the remote document store collection name.
	Collection string
	// Sensitive marks collections carrying personal or financial data.
	Sensitive bool
}

// Kinds is the registry of persisted collections consumed by the storage
// layer and the replicator.
var Kinds = map[Kind]KindSpec{
	KindOwner:    {StorageKey: "owners", Collection: "owners", Sensitive: true},
	KindProperty: {StorageKey: "properties", Collection: "properties"},
	KindTenant:   {StorageKey: "tenants", Collection: "tenants", Sensitive: true},
	KindPayment:  {StorageKey: "payments", Collection: "payments", Sensitive: true},
	KindArchive:  {StorageKey: "archives", Collection: "archives"},
}

// PropertyKind classifies a property by its physical layout.
type PropertyKind string

const (
	PropertySingleUnit PropertyKind = "single-unit"
	PropertySharedYard PropertyKind = "shared-yard"
	PropertyShop       PropertyKind = "shop"
)

// PropertyStatus is the occupancy state of a whole property.
type PropertyStatus string

const (
	PropertyFree       PropertyStatus = "free"
	PropertyOccupied   PropertyStatus = "occupied"
	PropertyRenovation PropertyStatus = "renovation"
)

// UnitStatus is the occupancy state of a single sub-unit.
type UnitStatus string

const (
	UnitFree     UnitStatus = "free"
	UnitOccupied UnitStatus = "occupied"
)

// TenantStatus is the lifecycle state of a renting tenant.
type TenantStatus string

const (
	TenantActive TenantStatus = "active"
	TenantFormer TenantStatus = "former"
)

// OccupancyEvent is an action that flips an occupancy state.
type OccupancyEvent string

const (
	EventAssign          OccupancyEvent = "assign"
	EventRelease         OccupancyEvent = "release"
	EventStartRenovation OccupancyEvent = "start_renovation"
	EventEndRenovation   OccupancyEvent = "end_renovation"
)

// OccupancyTransition defines a valid occupancy change: an event moves a
// property or unit from Src to Dst. Statuses are kept as plain strings so the
// same table format serves both state machines.
type OccupancyTransition struct {
	Event OccupancyEvent
	Src   string
	Dst   string
}

// PropertyTransitions defines all valid occupancy changes for a whole
// property. This is domain knowledge consumed by the FSM adapter.
var PropertyTransitions = []OccupancyTransition{
	{Event: EventAssign, Src: string(PropertyFree), Dst: string(PropertyOccupied)},
	{Event: EventRelease, Src: string(PropertyOccupied), Dst: string(PropertyFree)},
	{Event: EventStartRenovation, Src: string(PropertyFree), Dst: string(PropertyRenovation)},
	{Event: EventEndRenovation, Src: string(PropertyRenovation), Dst: string(PropertyFree)},
}

// UnitTransitions defines all valid occupancy changes for a sub-unit.
var UnitTransitions = []OccupancyTransition{
	{Event: EventAssign, Src: string(UnitFree), Dst: string(UnitOccupied)},
	{Event: EventRelease, Src: string(UnitOccupied), Dst: string(UnitFree)},
}

// Owner is a landlord whose properties the agency manages.
type Owner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Unit is a sub-dwelling inside a shared-yard property, individually
// assignable to one tenant. Invariant: TenantID is non-empty iff Status is
// occupied.
type Unit struct {
	ID         string     `json:"id"`
	UnitNumber int        `json:"unitNumber"`
	Status     UnitStatus `json:"status"`
	TenantID   string     `json:"tenantId,omitempty"`
}

// Property is a managed building or shop. Shared-yard properties own an
// ordered list of units generated at creation time.
type Property struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"ownerId"`
	Kind       PropertyKind   `json:"kind"`
	Status     PropertyStatus `json:"status"`
	Address    string         `json:"address,omitempty"`
	RentAmount int64          `json:"rentAmount"`
	Units      []Unit         `json:"units,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Unit returns the unit with the given number, or false when the property has
// no such unit.
func (p *Property) Unit(number int) (*Unit, bool) {
	for i := range p.Units {
		if p.Units[i].UnitNumber == number {
			return &p.Units[i], true
		}
	}
	return nil, false
}

// Tenant is a renting party occupying a property or one of its units.
type Tenant struct {
	ID         string       `json:"id"`
	PropertyID string       `json:"propertyId"`
	UnitNumber *int         `json:"unitNumber,omitempty"`
	Name       string       `json:"name"`
	Phone      string       `json:"phone,omitempty"`
	RentAmount int64        `json:"rentAmount"`
	EntryDate  time.Time    `json:"entryDate"`
	Status     TenantStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Payment records a rent payment for one calendar month. Payments that belong
// to a multi-month group share a GroupID and each carry the group's full
// amount; totals must count each group exactly once.
type Payment struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	PropertyID string    `json:"propertyId"`
	Month      int       `json:"month"`
	Year       int       `json:"year"`
	AmountPaid int64     `json:"amountPaid"`
	Method     string    `json:"method"`
	Date       time.Time `json:"date"`
	GroupID    string    `json:"groupId,omitempty"`
}

// PeriodKey returns the calendar-month key ("2025-07") the payment belongs to.
func (p Payment) PeriodKey() string {
	return FormatPeriodKey(p.Year, p.Month)
}

// FormatPeriodKey builds the canonical calendar-month key used for archive
// snapshots.
func FormatPeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ArchiveSnapshot is an immutable roll-up of one calendar month's payments.
// Re-deriving a snapshot for the same period overwrites the prior one; the ID
// equals the period key so the overwrite is structural.
type ArchiveSnapshot struct {
	ID          string    `json:"id"`
	PeriodKey   string    `json:"periodKey"`
	Records     []Payment `json:"records"`
	ArchivedAt  time.Time `json:"archivedAt"`
	TotalAmount int64     `json:"totalAmount"`
}
