package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodVNPay        PaymentMethod = "vnpay"
)

// PaymentEvent is one accepted money movement against an invoice. Rows are
// append-only; external_txn_id is unique when present.
type PaymentEvent struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	InvoiceID     snowflake.ID      `json:"invoice_id" gorm:"not null;index"`
	Amount        decimal.Decimal   `json:"amount" gorm:"type:numeric(18,0);not null"`
	Method        PaymentMethod     `json:"method" gorm:"type:text;not null"`
	Payer         string            `json:"payer" gorm:"type:text;not null"`
	Note          *string           `json:"note,omitempty" gorm:"type:text"`
	ExternalTxnID *string           `json:"external_txn_id,omitempty" gorm:"type:text;uniqueIndex"`
	ResponseCode  *string           `json:"response_code,omitempty" gorm:"type:text"`
	BankCode      *string           `json:"bank_code,omitempty" gorm:"type:text"`
	RawParams     datatypes.JSONMap `json:"-" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
}

func (PaymentEvent) TableName() string { return "payment_events" }

// Debt summarises what is left to pay on an invoice.
type Debt struct {
	InvoiceID snowflake.ID                `json:"invoice_id"`
	TotalDue  decimal.Decimal             `json:"total_due"`
	TotalPaid decimal.Decimal             `json:"total_paid"`
	Debt      decimal.Decimal             `json:"debt"`
	Status    invoicedomain.InvoiceStatus `json:"status"`
}
