package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleResident   = "resident"
)

const (
	ObjectPrice   = "price"
	ObjectInvoice = "invoice"
	ObjectPayment = "payment"
)

const (
	ActionPriceView   = "price.view"
	ActionPriceManage = "price.manage"

	ActionInvoiceView   = "invoice.view"
	ActionInvoiceList   = "invoice.list"
	ActionInvoiceCreate = "invoice.create"

	ActionPaymentView     = "payment.view"
	ActionPaymentRecord   = "payment.record"
	ActionPaymentCheckout = "payment.checkout"
)

// Principal is the caller as asserted by the upstream identity provider.
// HouseholdID is only meaningful for residents.
type Principal struct {
	ID          string
	Role        string
	HouseholdID snowflake.ID
}

// Subject is the casbin subject of the principal.
func (p Principal) Subject() string {
	return "user:" + p.ID
}

// Restricted reports whether the principal may only see its own household.
func (p Principal) Restricted() bool {
	return p.Role == RoleResident
}

// CanAccessHousehold is the ownership check applied after Authorize for
// household-scoped resources.
func (p Principal) CanAccessHousehold(householdID snowflake.ID) bool {
	if !p.Restricted() {
		return true
	}
	return p.HouseholdID != 0 && p.HouseholdID == householdID
}

type Service interface {
	Authorize(ctx context.Context, principal Principal, object, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
