// Package http exposes the repository over a Huma REST API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/propiq/propiq/internal/app"
	"github.com/propiq/propiq/internal/domain"
)

// OwnerResponse is the API representation of an owner.
type OwnerResponse struct {
	ID        string `json:"id" doc:"Unique identifier"`
	Name      string `json:"name" doc:"Display name"`
	Phone     string `json:"phone,omitempty" doc:"Contact phone"`
	Email     string `json:"email,omitempty" doc:"Contact email"`
	Address   string `json:"address,omitempty" doc:"Postal address"`
	CreatedAt string `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
}

func toOwnerResponse(o domain.Owner) OwnerResponse {
	return OwnerResponse{
		ID:        o.ID,
		Name:      o.Name,
		Phone:     o.Phone,
		Email:     o.Email,
		Address:   o.Address,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
}

// UnitResponse is the API representation of a sub-unit.
type UnitResponse struct {
	ID         string `json:"id" doc:"Unique identifier"`
	UnitNumber int    `json:"unitNumber" doc:"Position within the property, starting at 1"`
	Status     string `json:"status" doc:"Occupancy state"`
	TenantID   string `json:"tenantId,omitempty" doc:"Occupying tenant, if any"`
}

// PropertyResponse is the API representation of a property.
type PropertyResponse struct {
	ID         string         `json:"id" doc:"Unique identifier"`
	OwnerID    string         `json:"ownerId" doc:"Owning landlord"`
	Kind       string         `json:"kind" doc:"Physical layout"`
	Status     string         `json:"status" doc:"Occupancy state"`
	Address    string         `json:"address,omitempty" doc:"Postal address"`
	RentAmount int64          `json:"rentAmount" doc:"Monthly rent"`
	Units      []UnitResponse `json:"units,omitempty" doc:"Sub-units (shared-yard only)"`
	CreatedAt  string         `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
}

func toPropertyResponse(p domain.Property) PropertyResponse {
	units := make([]UnitResponse, len(p.Units))
	for i, u := range p.Units {
		units[i] = UnitResponse{ID: u.ID, UnitNumber: u.UnitNumber, Status: string(u.Status), TenantID: u.TenantID}
	}
	if len(units) == 0 {
		units = nil
	}
	return PropertyResponse{
		ID:         p.ID,
		OwnerID:    p.OwnerID,
		Kind:       string(p.Kind),
		Status:     string(p.Status),
		Address:    p.Address,
		RentAmount: p.RentAmount,
		Units:      units,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID         string `json:"id" doc:"Unique identifier"`
	PropertyID string `json:"propertyId" doc:"Occupied property"`
	UnitNumber *int   `json:"unitNumber,omitempty" doc:"Occupied unit (shared-yard only)"`
	Name       string `json:"name" doc:"Display name"`
	Phone      string `json:"phone,omitempty" doc:"Contact phone"`
	RentAmount int64  `json:"rentAmount" doc:"Agreed monthly rent"`
	EntryDate  string `json:"entryDate" doc:"Move-in date (ISO 8601)"`
	Status     string `json:"status" doc:"Lifecycle state"`
	CreatedAt  string `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:         t.ID,
		PropertyID: t.PropertyID,
		UnitNumber: t.UnitNumber,
		Name:       t.Name,
		Phone:      t.Phone,
		RentAmount: t.RentAmount,
		EntryDate:  t.EntryDate.Format(time.RFC3339),
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
}

// PaymentResponse is the API representation of a payment.
type PaymentResponse struct {
	ID         string `json:"id" doc:"Unique identifier"`
	TenantID   string `json:"tenantId" doc:"Paying tenant"`
	PropertyID string `json:"propertyId" doc:"Property the rent covers"`
	Month      int    `json:"month" doc:"Covered month (1-12)"`
	Year       int    `json:"year" doc:"Covered year"`
	AmountPaid int64  `json:"amountPaid" doc:"Amount in minor units"`
	Method     string `json:"method" doc:"Payment method"`
	Date       string `json:"date" doc:"Payment date (ISO 8601)"`
	GroupID    string `json:"groupId,omitempty" doc:"Multi-month group, if any"`
}

func toPaymentResponse(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		TenantID:   p.TenantID,
		PropertyID: p.PropertyID,
		Month:      p.Month,
		Year:       p.Year,
		AmountPaid: p.AmountPaid,
		Method:     p.Method,
		Date:       p.Date.Format(time.RFC3339),
		GroupID:    p.GroupID,
	}
}

// SnapshotResponse is the API representation of an archive snapshot.
type SnapshotResponse struct {
	ID          string            `json:"id" doc:"Snapshot identifier (equals the period key)"`
	PeriodKey   string            `json:"periodKey" doc:"Archived calendar month (YYYY-MM)"`
	Records     []PaymentResponse `json:"records" doc:"Archived payments"`
	ArchivedAt  string            `json:"archivedAt" doc:"Archival timestamp (ISO 8601)"`
	TotalAmount int64             `json:"totalAmount" doc:"Period total, payment groups counted once"`
}

func toSnapshotResponse(s domain.ArchiveSnapshot) SnapshotResponse {
	records := make([]PaymentResponse, len(s.Records))
	for i, p := range s.Records {
		records[i] = toPaymentResponse(p)
	}
	return SnapshotResponse{
		ID:          s.ID,
		PeriodKey:   s.PeriodKey,
		Records:     records,
		ArchivedAt:  s.ArchivedAt.Format(time.RFC3339),
		TotalAmount: s.TotalAmount,
	}
}

type idInput struct {
	ID string `path:"id" doc:"Entity ID"`
}

type patchInput struct {
	ID   string         `path:"id" doc:"Entity ID"`
	Body map[string]any `doc:"Fields to update"`
}

// Register adds all API routes to the Huma API.
func Register(api huma.API, svc *app.EstateService) {
	registerOwners(api, svc)
	registerProperties(api, svc)
	registerTenants(api, svc)
	registerPayments(api, svc)
	registerArchives(api, svc)
}

func registerOwners(api huma.API, svc *app.EstateService) {
	type createOwnerInput struct {
		Body struct {
			Name    string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
			Phone   string `json:"phone,omitempty" maxLength:"32" doc:"Contact phone"`
			Email   string `json:"email,omitempty" format:"email" doc:"Contact email"`
			Address string `json:"address,omitempty" maxLength:"512" doc:"Postal address"`
		}
	}
	type ownerOutput struct {
		Body OwnerResponse
	}
	type listOutput struct {
		Body []OwnerResponse
	}

	huma.Register(api, huma.Operation{
		OperationID: "create-owner",
		Method:      http.MethodPost,
		Path:        "/api/v1/owners",
		Summary:     "Create a new owner",
		Tags:        []string{"Owners"},
	}, func(ctx context.Context, input *createOwnerInput) (*ownerOutput, error) {
		owner, err := svc.AddOwner(ctx, domain.OwnerInput{
			Name:    input.Body.Name,
			Phone:   input.Body.Phone,
			Email:   input.Body.Email,
			Address: input.Body.Address,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ownerOutput{Body: toOwnerResponse(owner)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-owners",
		Method:      http.MethodGet,
		Path:        "/api/v1/owners",
		Summary:     "List owners",
		Tags:        []string{"Owners"},
	}, func(ctx context.Context, _ *struct{}) (*listOutput, error) {
		owners, err := svc.Owners(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]OwnerResponse, len(owners))
		for i, o := range owners {
			resp[i] = toOwnerResponse(o)
		}
		return &listOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-owner",
		Method:      http.MethodGet,
		Path:        "/api/v1/owners/{id}",
		Summary:     "Get an owner by ID",
		Tags:        []string{"Owners"},
	}, func(ctx context.Context, input *idInput) (*ownerOutput, error) {
		owner, err := svc.GetOwner(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ownerOutput{Body: toOwnerResponse(owner)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-owner",
		Method:      http.MethodPatch,
		Path:        "/api/v1/owners/{id}",
		Summary:     "Update an owner",
		Tags:        []string{"Owners"},
	}, func(ctx context.Context, input *patchInput) (*ownerOutput, error) {
		owner, err := svc.UpdateOwner(ctx, input.ID, input.Body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ownerOutput{Body: toOwnerResponse(owner)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-owner",
		Method:      http.MethodDelete,
		Path:        "/api/v1/owners/{id}",
		Summary:     "Delete an owner",
		Tags:        []string{"Owners"},
	}, func(ctx context.Context, input *idInput) (*struct{}, error) {
		if err := svc.DeleteOwner(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProperties(api huma.API, svc *app.EstateService) {
	type createPropertyInput struct {
		Body struct {
			OwnerID    string `json:"ownerId" minLength:"1" doc:"Owning landlord"`
			Kind       string `json:"kind" enum:"single-unit,shared-yard,shop" doc:"Physical layout"`
			Address    string `json:"address,omitempty" maxLength:"512" doc:"Postal address"`
			RentAmount int64  `json:"rentAmount,omitempty" minimum:"0" doc:"Monthly rent"`
			UnitCount  int    `json:"unitCount,omitempty" minimum:"1" maximum:"64" doc:"Sub-unit count (shared-yard only)"`
		}
	}
	type propertyOutput struct {
		Body PropertyResponse
	}
	type listInput struct {
		OwnerID string `query:"ownerId" required:"false" doc:"Filter by owner"`
	}
	type listOutput struct {
		Body []PropertyResponse
	}

	huma.Register(api, huma.Operation{
		OperationID: "create-property",
		Method:      http.MethodPost,
		Path:        "/api/v1/properties",
		Summary:     "Create a new property",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *createPropertyInput) (*propertyOutput, error) {
		property, err := svc.AddProperty(ctx, domain.PropertyInput{
			OwnerID:    input.Body.OwnerID,
			Kind:       domain.PropertyKind(input.Body.Kind),
			Address:    input.Body.Address,
			RentAmount: input.Body.RentAmount,
			UnitCount:  input.Body.UnitCount,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &propertyOutput{Body: toPropertyResponse(property)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-properties",
		Method:      http.MethodGet,
		Path:        "/api/v1/properties",
		Summary:     "List properties",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *listInput) (*listOutput, error) {
		var properties []domain.Property
		var err error
		if input.OwnerID != "" {
			properties, err = svc.PropertiesForOwner(ctx, input.OwnerID)
		} else {
			properties, err = svc.Properties(ctx)
		}
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]PropertyResponse, len(properties))
		for i, p := range properties {
			resp[i] = toPropertyResponse(p)
		}
		return &listOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-property",
		Method:      http.MethodGet,
		Path:        "/api/v1/properties/{id}",
		Summary:     "Get a property by ID",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *idInput) (*propertyOutput, error) {
		property, err := svc.GetProperty(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &propertyOutput{Body: toPropertyResponse(property)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-property",
		Method:      http.MethodPatch,
		Path:        "/api/v1/properties/{id}",
		Summary:     "Update a property",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *patchInput) (*propertyOutput, error) {
		property, err := svc.UpdateProperty(ctx, input.ID, input.Body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &propertyOutput{Body: toPropertyResponse(property)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-property",
		Method:      http.MethodDelete,
		Path:        "/api/v1/properties/{id}",
		Summary:     "Delete a property and its tenants",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *idInput) (*struct{}, error) {
		if err := svc.DeleteProperty(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTenants(api huma.API, svc *app.EstateService) {
	type createTenantInput struct {
		Body struct {
			PropertyID string    `json:"propertyId" minLength:"1" doc:"Target property"`
			UnitNumber *int      `json:"unitNumber,omitempty" minimum:"1" doc:"Target unit (shared-yard only)"`
			Name       string    `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
			Phone      string    `json:"phone,omitempty" maxLength:"32" doc:"Contact phone"`
			RentAmount int64     `json:"rentAmount,omitempty" minimum:"0" doc:"Agreed monthly rent"`
			EntryDate  time.Time `json:"entryDate" doc:"Move-in date"`
		}
	}
	type tenantOutput struct {
		Body TenantResponse
	}
	type listInput struct {
		PropertyID string `query:"propertyId" required:"false" doc:"Filter by property"`
	}
	type listOutput struct {
		Body []TenantResponse
	}

	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Create a new tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *createTenantInput) (*tenantOutput, error) {
		tenant, err := svc.AddTenant(ctx, domain.TenantInput{
			PropertyID: input.Body.PropertyID,
			UnitNumber: input.Body.UnitNumber,
			Name:       input.Body.Name,
			Phone:      input.Body.Phone,
			RentAmount: input.Body.RentAmount,
			EntryDate:  input.Body.EntryDate,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &tenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *listInput) (*listOutput, error) {
		var tenants []domain.Tenant
		var err error
		if input.PropertyID != "" {
			tenants, err = svc.TenantsForProperty(ctx, input.PropertyID)
		} else {
			tenants, err = svc.Tenants(ctx)
		}
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &listOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *idInput) (*tenantOutput, error) {
		tenant, err := svc.GetTenant(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &tenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Update a tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *patchInput) (*tenantOutput, error) {
		tenant, err := svc.UpdateTenant(ctx, input.ID, input.Body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &tenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Delete a tenant and release its unit",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *idInput) (*struct{}, error) {
		if err := svc.DeleteTenant(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})
}

func registerPayments(api huma.API, svc *app.EstateService) {
	type createPaymentInput struct {
		Body struct {
			TenantID   string    `json:"tenantId" minLength:"1" doc:"Paying tenant"`
			PropertyID string    `json:"propertyId" minLength:"1" doc:"Property the rent covers"`
			Month      int       `json:"month" minimum:"1" maximum:"12" doc:"Covered month"`
			Year       int       `json:"year" minimum:"2000" maximum:"2100" doc:"Covered year"`
			AmountPaid int64     `json:"amountPaid" minimum:"1" doc:"Amount in minor units"`
			Method     string    `json:"method" enum:"cash,card,cheque,transfer" doc:"Payment method"`
			Date       time.Time `json:"date" doc:"Payment date"`
			GroupID    string    `json:"groupId,omitempty" maxLength:"64" doc:"Multi-month group"`
		}
	}
	type paymentOutput struct {
		Body PaymentResponse
	}
	type listInput struct {
		Year  int `query:"year" required:"false" doc:"Filter by year (requires month)"`
		Month int `query:"month" required:"false" doc:"Filter by month (requires year)"`
	}
	type listOutput struct {
		Body []PaymentResponse
	}

	huma.Register(api, huma.Operation{
		OperationID: "create-payment",
		Method:      http.MethodPost,
		Path:        "/api/v1/payments",
		Summary:     "Record a rent payment",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *createPaymentInput) (*paymentOutput, error) {
		payment, err := svc.AddPayment(ctx, domain.PaymentInput{
			TenantID:   input.Body.TenantID,
			PropertyID: input.Body.PropertyID,
			Month:      input.Body.Month,
			Year:       input.Body.Year,
			AmountPaid: input.Body.AmountPaid,
			Method:     input.Body.Method,
			Date:       input.Body.Date,
			GroupID:    input.Body.GroupID,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &paymentOutput{Body: toPaymentResponse(payment)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-payments",
		Method:      http.MethodGet,
		Path:        "/api/v1/payments",
		Summary:     "List payments",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *listInput) (*listOutput, error) {
		var payments []domain.Payment
		var err error
		if input.Year != 0 && input.Month != 0 {
			payments, err = svc.PaymentsForPeriod(ctx, input.Year, input.Month)
		} else {
			payments, err = svc.Payments(ctx)
		}
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]PaymentResponse, len(payments))
		for i, p := range payments {
			resp[i] = toPaymentResponse(p)
		}
		return &listOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-payment",
		Method:      http.MethodGet,
		Path:        "/api/v1/payments/{id}",
		Summary:     "Get a payment by ID",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *idInput) (*paymentOutput, error) {
		payment, err := svc.GetPayment(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &paymentOutput{Body: toPaymentResponse(payment)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-payment",
		Method:      http.MethodPatch,
		Path:        "/api/v1/payments/{id}",
		Summary:     "Update a payment",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *patchInput) (*paymentOutput, error) {
		payment, err := svc.UpdatePayment(ctx, input.ID, input.Body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &paymentOutput{Body: toPaymentResponse(payment)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-payment",
		Method:      http.MethodDelete,
		Path:        "/api/v1/payments/{id}",
		Summary:     "Delete a payment",
		Tags:        []string{"Payments"},
	}, func(ctx context.Context, input *idInput) (*struct{}, error) {
		if err := svc.DeletePayment(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})
}

func registerArchives(api huma.API, svc *app.EstateService) {
	type getInput struct {
		Period string `path:"period" doc:"Period key (YYYY-MM)"`
	}
	type snapshotOutput struct {
		Body SnapshotResponse
	}
	type listOutput struct {
		Body []SnapshotResponse
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-archives",
		Method:      http.MethodGet,
		Path:        "/api/v1/archives",
		Summary:     "List archive snapshots",
		Tags:        []string{"Archives"},
	}, func(ctx context.Context, _ *struct{}) (*listOutput, error) {
		snaps, err := svc.Snapshots(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]SnapshotResponse, len(snaps))
		for i, s := range snaps {
			resp[i] = toSnapshotResponse(s)
		}
		return &listOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-archive",
		Method:      http.MethodGet,
		Path:        "/api/v1/archives/{period}",
		Summary:     "Get an archive snapshot by period",
		Tags:        []string{"Archives"},
	}, func(ctx context.Context, input *getInput) (*snapshotOutput, error) {
		snap, err := svc.Snapshot(ctx, input.Period)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &snapshotOutput{Body: toSnapshotResponse(snap)}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrOwnerNotFound),
		errors.Is(err, domain.ErrPropertyNotFound),
		errors.Is(err, domain.ErrTenantNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrUnitNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound):
		return huma.Error404NotFound(err.Error())
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return huma.Error422UnprocessableEntity(verr.Error())
	}

	var cerr *domain.ConflictError
	if errors.As(err, &cerr) {
		return huma.Error409Conflict(cerr.Error())
	}

	var caperr *domain.CapacityError
	if errors.As(err, &caperr) {
		return huma.NewError(http.StatusInsufficientStorage, caperr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
