package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	HouseholdID snowflake.ID
	PeriodID    snowflake.ID
	Status      InvoiceStatus
	// AfterID continues a newest-first listing below this id.
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []InvoiceLine) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindForUpdate reads the invoice holding a row lock until tx ends.
	FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLine, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	UpdatePayment(ctx context.Context, tx *gorm.DB, id snowflake.ID, totalPaid decimal.Decimal, status InvoiceStatus, at time.Time) error
}
