package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/condofee/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(dbtest.Open(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{RoleAdmin, ObjectPrice, ActionPriceManage, true},
		{RoleAdmin, ObjectInvoice, ActionInvoiceCreate, true},
		{RoleAccountant, ObjectPrice, ActionPriceView, true},
		{RoleAccountant, ObjectPrice, ActionPriceManage, false},
		{RoleAccountant, ObjectInvoice, ActionInvoiceCreate, false},
		{RoleAccountant, ObjectPayment, ActionPaymentRecord, true},
		{RoleResident, ObjectInvoice, ActionInvoiceView, true},
		{RoleResident, ObjectInvoice, ActionInvoiceList, false},
		{RoleResident, ObjectPayment, ActionPaymentCheckout, true},
		{RoleResident, ObjectPayment, ActionPaymentRecord, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.action, func(t *testing.T) {
			err := svc.Authorize(ctx, Principal{ID: "u-" + tt.role, Role: tt.role}, tt.object, tt.action)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeFollowsAssertedRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Principal{ID: "42", Role: RoleAdmin}, ObjectPrice, ActionPriceManage))
	err := svc.Authorize(ctx, Principal{ID: "42", Role: "Resident"}, ObjectPrice, ActionPriceManage)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Principal{Role: RoleAdmin}, ObjectPrice, ActionPriceView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Principal{ID: "1", Role: "janitor"}, ObjectPrice, ActionPriceView), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, Principal{ID: "1", Role: RoleAdmin}, "", ActionPriceView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Principal{ID: "1", Role: RoleAdmin}, ObjectPrice, " "), ErrInvalidAction)
}

func TestNewEnforcerIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	_, err := NewEnforcer(db)
	require.NoError(t, err)
	_, err = NewEnforcer(db)
	require.NoError(t, err)
	assert.Equal(t, int64(10), dbtest.Count(t, db, "casbin_rule", "ptype = ?", "p"))
}

func TestPrincipalHouseholdScope(t *testing.T) {
	resident := Principal{ID: "1", Role: RoleResident, HouseholdID: 7}
	assert.True(t, resident.CanAccessHousehold(7))
	assert.False(t, resident.CanAccessHousehold(8))
	assert.False(t, Principal{ID: "1", Role: RoleResident}.CanAccessHousehold(0))
	assert.True(t, Principal{ID: "2", Role: RoleAccountant}.CanAccessHousehold(8))
}
