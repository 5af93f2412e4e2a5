package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condofee/internal/clock"
	"github.com/smallbiznis/condofee/internal/events"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	"github.com/smallbiznis/condofee/internal/invoice/render"
	"github.com/smallbiznis/condofee/internal/invoice/repository"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	pricerepository "github.com/smallbiznis/condofee/internal/price/repository"
	priceservice "github.com/smallbiznis/condofee/internal/price/service"
	"github.com/smallbiznis/condofee/internal/reference"
	"github.com/smallbiznis/condofee/pkg/db/dbtest"
	"github.com/smallbiznis/condofee/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderPDF(doc render.Document) ([]byte, error) {
	args := m.Called(doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type env struct {
	db       *gorm.DB
	fx       *dbtest.Fixtures
	svc      invoicedomain.Service
	priceSvc pricedomain.Service
	renderer *mockRenderer
	period   snowflake.ID
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 10, 5, 3, 0, 0, 0, time.UTC))
	refRepo := reference.NewRepository(db)
	priceSvc := priceservice.New(priceservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    pricerepository.Provide(),
		RefRepo: refRepo,
	})
	renderer := &mockRenderer{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		RefRepo:  refRepo,
		PriceSvc: priceSvc,
		Renderer: renderer,
		Outbox:   events.NewOutbox(events.Params{GenID: node, Clock: clk}),
	})
	fx := dbtest.NewFixtures(t, db)
	period := fx.Period("October 2026",
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	return env{db: db, fx: fx, svc: svc, priceSvc: priceSvc, renderer: renderer, period: period}
}

func TestCreateInvoiceUsesDefaultPrice(t *testing.T) {
	e := newEnv(t)
	building := e.fx.Building("B2")
	service := e.fx.FeeType("Service", "m2", 5000)
	household := e.fx.Household("A101", building, 60)
	e.fx.Quota(household, service, decimal.NewFromInt(60))

	inv, err := e.svc.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, inv.Status)
	assert.True(t, inv.TotalPaid.IsZero())
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Lines[0].UnitPrice.Equal(decimal.NewFromInt(5000)))
	assert.True(t, inv.Lines[0].LineTotal.Equal(decimal.NewFromInt(300000)))
	assert.True(t, inv.TotalDue.Equal(decimal.NewFromInt(300000)))
	assert.Equal(t, int64(1), dbtest.Count(t, e.db, "event_outbox", "event_type = ?", events.EventInvoiceCreated))
}

func TestCreateInvoiceUsesBuildingOverride(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	building := e.fx.Building("B1")
	service := e.fx.FeeType("Service", "m2", 5000)
	household := e.fx.Household("B101", building, 60)
	e.fx.Quota(household, service, decimal.NewFromInt(60))

	_, err := e.priceSvc.UpsertOverride(ctx, pricedomain.UpsertRequest{FeeTypeID: service, BuildingID: building, UnitPrice: decimal.NewFromInt(4500)})
	require.NoError(t, err)

	inv, err := e.svc.CreateInvoice(ctx, invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period})
	require.NoError(t, err)
	assert.True(t, inv.TotalDue.Equal(decimal.NewFromInt(270000)), "got %s", inv.TotalDue)

	// Later price changes leave the stored snapshot alone.
	e.fx.SetDefaultPrice(service, 9000)
	_, err = e.priceSvc.UpsertOverride(ctx, pricedomain.UpsertRequest{FeeTypeID: service, BuildingID: building, UnitPrice: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	stored, err := e.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Lines[0].UnitPrice.Equal(decimal.NewFromInt(4500)))
	assert.True(t, stored.TotalDue.Equal(decimal.NewFromInt(270000)))
}

func TestCreateInvoiceConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	building := e.fx.Building("B1")
	service := e.fx.FeeType("Service", "m2", 5000)
	household := e.fx.Household("A101", building, 60)
	e.fx.Quota(household, service, decimal.NewFromInt(60))

	req := invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period}
	_, err := e.svc.CreateInvoice(ctx, req)
	require.NoError(t, err)

	_, err = e.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceExists)
	assert.Equal(t, int64(1), dbtest.Count(t, e.db, "invoices", ""))
	assert.Equal(t, int64(1), dbtest.Count(t, e.db, "invoice_lines", ""))
}

func TestCreateInvoiceSkipsInactiveAndEmptyQuotas(t *testing.T) {
	e := newEnv(t)
	building := e.fx.Building("B1")
	service := e.fx.FeeType("Service", "m2", 5000)
	parking := e.fx.FeeType("Parking", "slot", 100000)
	water := e.fx.FeeType("Water", "m3", 8000)
	household := e.fx.Household("A101", building, 60)
	e.fx.Quota(household, service, decimal.NewFromInt(60))
	e.fx.Quota(household, parking, decimal.NewFromInt(1))
	e.fx.Quota(household, water, decimal.Zero)
	e.fx.DeactivateFeeType(parking)

	inv, err := e.svc.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, service, inv.Lines[0].FeeTypeID)
}

func TestCreateInvoiceWithoutQuotasIsSettled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	building := e.fx.Building("B1")
	household := e.fx.Household("A102", building, 45)

	inv, err := e.svc.CreateInvoice(ctx, invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period})
	require.NoError(t, err)
	assert.Empty(t, inv.Lines)
	assert.True(t, inv.TotalDue.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, invoicedomain.DeriveStatus(inv.TotalDue, inv.TotalPaid), inv.Status)

	stored, err := e.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, stored.Status)
}

func TestCreateInvoiceMissingReferences(t *testing.T) {
	e := newEnv(t)
	building := e.fx.Building("B1")
	household := e.fx.Household("A101", building, 60)

	_, err := e.svc.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{HouseholdID: 123, PeriodID: e.period})
	assert.ErrorIs(t, err, invoicedomain.ErrHouseholdNotFound)

	_, err = e.svc.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: 123})
	assert.ErrorIs(t, err, invoicedomain.ErrPeriodNotFound)

	_, err = e.svc.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{PeriodID: e.period})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidHousehold)

	_, err = e.svc.GetInvoice(context.Background(), 55)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestListInvoicesPages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	building := e.fx.Building("B1")
	service := e.fx.FeeType("Service", "m2", 5000)
	for _, code := range []string{"A101", "A102", "A103"} {
		household := e.fx.Household(code, building, 60)
		e.fx.Quota(household, service, decimal.NewFromInt(60))
		_, err := e.svc.CreateInvoice(ctx, invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period})
		require.NoError(t, err)
	}

	first, err := e.svc.ListInvoices(ctx, invoicedomain.ListInvoicesRequest{
		Pagination: pagination.Pagination{PageSize: 2},
		PeriodID:   e.period.String(),
	})
	require.NoError(t, err)
	assert.Len(t, first.Invoices, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := e.svc.ListInvoices(ctx, invoicedomain.ListInvoicesRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		PeriodID:   e.period.String(),
	})
	require.NoError(t, err)
	require.Len(t, second.Invoices, 1)
	assert.False(t, second.HasMore)
	assert.Less(t, int64(second.Invoices[0].ID), int64(first.Invoices[1].ID))

	_, err = e.svc.ListInvoices(ctx, invoicedomain.ListInvoicesRequest{Status: "void"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStatus)

	paid, err := e.svc.ListInvoices(ctx, invoicedomain.ListInvoicesRequest{Status: "paid"})
	require.NoError(t, err)
	assert.Empty(t, paid.Invoices)
}

func TestRenderPDFBuildsDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	building := e.fx.Building("B1")
	service := e.fx.FeeType("Service", "m2", 5000)
	household := e.fx.Household("A101", building, 60)
	e.fx.Quota(household, service, decimal.NewFromInt(60))

	inv, err := e.svc.CreateInvoice(ctx, invoicedomain.CreateInvoiceRequest{HouseholdID: household, PeriodID: e.period})
	require.NoError(t, err)

	e.renderer.On("RenderPDF", mock.MatchedBy(func(doc render.Document) bool {
		return doc.InvoiceID == inv.ID.String() &&
			doc.BuildingName == "B1" &&
			doc.HouseholdCode == "A101" &&
			len(doc.Lines) == 1 &&
			doc.Debt.Equal(decimal.NewFromInt(300000))
	})).Return([]byte("%PDF-1.3"), nil).Once()

	out, err := e.svc.RenderPDF(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3"), out)
	e.renderer.AssertExpectations(t)
}
