package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert appends the event. It reports false when another event already
	// carries the same external transaction id.
	Insert(ctx context.Context, tx *gorm.DB, event *PaymentEvent) (bool, error)
	SumByInvoice(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]PaymentEvent, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalTxnID string) (*PaymentEvent, error)
}
