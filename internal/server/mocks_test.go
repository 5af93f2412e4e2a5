package server

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	"github.com/stretchr/testify/mock"
)

type mockPriceService struct{ mock.Mock }

func (m *mockPriceService) ResolvePrice(ctx context.Context, feeTypeID, buildingID snowflake.ID) (decimal.Decimal, error) {
	args := m.Called(feeTypeID, buildingID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockPriceService) GetPrice(ctx context.Context, feeTypeID, buildingID snowflake.ID) (*pricedomain.ResolvedPrice, error) {
	args := m.Called(feeTypeID, buildingID)
	resolved, _ := args.Get(0).(*pricedomain.ResolvedPrice)
	return resolved, args.Error(1)
}

func (m *mockPriceService) UpsertOverride(ctx context.Context, req pricedomain.UpsertRequest) (*pricedomain.PriceOverride, error) {
	args := m.Called(req)
	override, _ := args.Get(0).(*pricedomain.PriceOverride)
	return override, args.Error(1)
}

func (m *mockPriceService) BulkUpsert(ctx context.Context, req pricedomain.BulkUpsertRequest) (int, error) {
	args := m.Called(req)
	return args.Int(0), args.Error(1)
}

func (m *mockPriceService) ListOverrides(ctx context.Context, filter pricedomain.ListFilter) ([]pricedomain.PriceOverride, error) {
	args := m.Called(filter)
	items, _ := args.Get(0).([]pricedomain.PriceOverride)
	return items, args.Error(1)
}

func (m *mockPriceService) PriceTable(ctx context.Context, buildingID snowflake.ID) ([]pricedomain.PriceTableRow, error) {
	args := m.Called(buildingID)
	rows, _ := args.Get(0).([]pricedomain.PriceTableRow)
	return rows, args.Error(1)
}

func (m *mockPriceService) DeleteOverride(ctx context.Context, id snowflake.ID) error {
	return m.Called(id).Error(0)
}

func (m *mockPriceService) DeleteOverrideFor(ctx context.Context, feeTypeID, buildingID snowflake.ID) error {
	return m.Called(feeTypeID, buildingID).Error(0)
}

func (m *mockPriceService) ResetBuilding(ctx context.Context, buildingID snowflake.ID) (int64, error) {
	args := m.Called(buildingID)
	return args.Get(0).(int64), args.Error(1)
}

type mockInvoiceService struct{ mock.Mock }

func (m *mockInvoiceService) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(req)
	invoice, _ := args.Get(0).(*invoicedomain.Invoice)
	return invoice, args.Error(1)
}

func (m *mockInvoiceService) GetInvoice(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	args := m.Called(id)
	invoice, _ := args.Get(0).(*invoicedomain.Invoice)
	return invoice, args.Error(1)
}

func (m *mockInvoiceService) ListInvoices(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	args := m.Called(req)
	return args.Get(0).(invoicedomain.ListInvoicesResponse), args.Error(1)
}

func (m *mockInvoiceService) RenderPDF(ctx context.Context, id snowflake.ID) ([]byte, error) {
	args := m.Called(id)
	doc, _ := args.Get(0).([]byte)
	return doc, args.Error(1)
}

type mockLedgerService struct{ mock.Mock }

func (m *mockLedgerService) ApplyPayment(ctx context.Context, req ledgerdomain.ApplyPaymentRequest) (*ledgerdomain.PaymentEvent, error) {
	args := m.Called(req)
	event, _ := args.Get(0).(*ledgerdomain.PaymentEvent)
	return event, args.Error(1)
}

func (m *mockLedgerService) GetDebt(ctx context.Context, invoiceID snowflake.ID) (*ledgerdomain.Debt, error) {
	args := m.Called(invoiceID)
	debt, _ := args.Get(0).(*ledgerdomain.Debt)
	return debt, args.Error(1)
}

func (m *mockLedgerService) ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]ledgerdomain.PaymentEvent, error) {
	args := m.Called(invoiceID)
	events, _ := args.Get(0).([]ledgerdomain.PaymentEvent)
	return events, args.Error(1)
}

func (m *mockLedgerService) FindByExternalID(ctx context.Context, externalTxnID string) (*ledgerdomain.PaymentEvent, error) {
	args := m.Called(externalTxnID)
	event, _ := args.Get(0).(*ledgerdomain.PaymentEvent)
	return event, args.Error(1)
}

type mockPaymentService struct{ mock.Mock }

func (m *mockPaymentService) CreatePaymentURL(ctx context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.CreatePaymentResponse, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*paymentdomain.CreatePaymentResponse)
	return resp, args.Error(1)
}

func (m *mockPaymentService) Reconcile(ctx context.Context, params map[string]string) (*paymentdomain.Outcome, error) {
	args := m.Called(params)
	outcome, _ := args.Get(0).(*paymentdomain.Outcome)
	return outcome, args.Error(1)
}

func (m *mockPaymentService) PaymentStatus(ctx context.Context, invoiceID snowflake.ID) (*paymentdomain.PaymentStatus, error) {
	args := m.Called(invoiceID)
	status, _ := args.Get(0).(*paymentdomain.PaymentStatus)
	return status, args.Error(1)
}
