// Package validate binds the external validation-schema collaborator to
// go-playground/validator. The repository only sees the domain.PayloadValidator
// contract.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/propiq/propiq/internal/domain"
)

// Compile-time check: Validator implements domain.PayloadValidator.
var _ domain.PayloadValidator = (*Validator)(nil)

// partialRules is the per-kind update schema: only fields listed here may
// appear in a patch, and present fields are validated against their rule.
var partialRules = map[domain.Kind]map[string]string{
	domain.KindOwner: {
		"name":    "min=1,max=255",
		"phone":   "max=32",
		"email":   "omitempty,email",
		"address": "max=512",
	},
	domain.KindProperty: {
		"ownerId":    "min=1",
		"kind":       "oneof=single-unit shared-yard shop",
		"address":    "max=512",
		"rentAmount": "gte=0",
		"unitCount":  "gte=1,lte=64",
		"status":     "oneof=free occupied renovation",
	},
	domain.KindTenant: {
		"propertyId": "min=1",
		"unitNumber": "gte=1",
		"name":       "min=1,max=255",
		"phone":      "max=32",
		"rentAmount": "gte=0",
		"status":     "oneof=active former",
	},
	domain.KindPayment: {
		"month":      "gte=1,lte=12",
		"year":       "gte=2000,lte=2100",
		"amountPaid": "gt=0",
		"method":     "oneof=cash card cheque transfer",
		"groupId":    "max=64",
	},
}

// Validator implements domain.PayloadValidator.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports field names from json tags, matching
// the wire representation the UI layer works with.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks a full create payload against its struct schema.
func (va *Validator) Validate(kind domain.Kind, payload any) error {
	err := va.v.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating %s payload: %w", kind, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

// ValidatePartial checks an update patch: unknown fields and explicit nulls
// are rejected, present fields are validated against the kind's partial
// rules.
func (va *Validator) ValidatePartial(kind domain.Kind, patch map[string]any) error {
	rules, ok := partialRules[kind]
	if !ok {
		return fmt.Errorf("no partial schema for kind %q", kind)
	}
	if len(patch) == 0 {
		return domain.NewValidationError("patch", "no fields to update")
	}

	fields := make(map[string]string)
	data := make(map[string]any)
	ruleSet := make(map[string]any)
	for field, value := range patch {
		rule, known := rules[field]
		if !known {
			fields[field] = "unknown field"
			continue
		}
		if value == nil {
			fields[field] = "must not be null"
			continue
		}
		data[field] = value
		ruleSet[field] = rule
	}

	for field, res := range va.v.ValidateMap(data, ruleSet) {
		fields[field] = mapMessage(res)
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func mapMessage(res any) string {
	err, ok := res.(error)
	if !ok {
		return "is invalid"
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return message(verrs[0])
	}
	return "is invalid"
}

// message renders one field violation for end users; the UI surfaces these
// verbatim.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
