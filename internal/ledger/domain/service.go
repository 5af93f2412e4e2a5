package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentEvent, error)
	GetDebt(ctx context.Context, invoiceID snowflake.ID) (*Debt, error)
	ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]PaymentEvent, error)
	FindByExternalID(ctx context.Context, externalTxnID string) (*PaymentEvent, error)
}

type ApplyPaymentRequest struct {
	InvoiceID snowflake.ID    `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" binding:"required"`
	Payer     string          `json:"payer"`
	Note      string          `json:"note"`

	// Set by gateway reconciliation only.
	ExternalTxnID string            `json:"-"`
	ResponseCode  string            `json:"-"`
	BankCode      string            `json:"-"`
	RawParams     map[string]string `json:"-"`
}

var (
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrInvalidInvoice       = errors.New("invalid_invoice")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidMethod        = errors.New("invalid_method")
	ErrDuplicateTransaction = errors.New("duplicate_transaction")
)
