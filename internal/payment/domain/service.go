package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
)

type Service interface {
	CreatePaymentURL(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	Reconcile(ctx context.Context, params map[string]string) (*Outcome, error)
	PaymentStatus(ctx context.Context, invoiceID snowflake.ID) (*PaymentStatus, error)
}

type CreatePaymentRequest struct {
	InvoiceID snowflake.ID `json:"-"`
	// Amount defaults to the remaining debt when omitted.
	Amount    *decimal.Decimal `json:"amount"`
	BankCode  string           `json:"bank_code"`
	OrderInfo string           `json:"order_info"`
	ClientIP  string           `json:"-"`
}

type CreatePaymentResponse struct {
	PaymentURL string          `json:"payment_url"`
	TxnRef     string          `json:"txn_ref"`
	Amount     decimal.Decimal `json:"amount"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

type PaymentStatus struct {
	InvoiceID   snowflake.ID                `json:"invoice_id"`
	Status      invoicedomain.InvoiceStatus `json:"status"`
	TotalDue    decimal.Decimal             `json:"total_due"`
	TotalPaid   decimal.Decimal             `json:"total_paid"`
	Debt        decimal.Decimal             `json:"debt"`
	Paid        bool                        `json:"paid"`
	LastPayment *ledgerdomain.PaymentEvent  `json:"last_payment,omitempty"`
}

var (
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrProviderNotFound    = errors.New("provider_not_found")
	ErrInvalidConfig       = errors.New("invalid_gateway_config")
	ErrInvalidInvoice      = errors.New("invalid_invoice")
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrInvoiceAlreadyPaid  = errors.New("invoice_already_paid")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrPeriodNotOpen       = errors.New("period_not_open")
	ErrPeriodClosed        = errors.New("period_closed")
	ErrGatewayDeclined     = errors.New("gateway_declined")
	ErrUnknownResponseCode = errors.New("unknown_response_code")
	ErrCallbackInProgress  = errors.New("callback_in_progress")
	ErrInvalidTxnReference = errors.New("invalid_txn_reference")
)
