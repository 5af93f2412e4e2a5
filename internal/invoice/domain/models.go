// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from the ledger; it is never set directly.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
)

// Invoice is the bill of one household for one billing period.
type Invoice struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	HouseholdID snowflake.ID    `json:"household_id" gorm:"not null;uniqueIndex:ux_invoices_household_period,priority:1"`
	PeriodID    snowflake.ID    `json:"period_id" gorm:"not null;uniqueIndex:ux_invoices_household_period,priority:2"`
	TotalDue    decimal.Decimal `json:"total_due" gorm:"type:numeric(18,0);not null"`
	TotalPaid   decimal.Decimal `json:"total_paid" gorm:"type:numeric(18,0);not null;default:0"`
	Status      InvoiceStatus   `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
	Lines       []InvoiceLine   `json:"lines,omitempty" gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Debt is the unpaid remainder, never negative.
func (i Invoice) Debt() decimal.Decimal {
	debt := i.TotalDue.Sub(i.TotalPaid)
	if debt.IsNegative() {
		return decimal.Zero
	}
	return debt
}

// InvoiceLine snapshots the price applied to one fee type at creation time.
type InvoiceLine struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `json:"invoice_id" gorm:"not null;index"`
	FeeTypeID   snowflake.ID    `json:"fee_type_id" gorm:"not null"`
	FeeTypeName string          `json:"fee_type_name" gorm:"type:text;not null"`
	Unit        string          `json:"unit" gorm:"type:text;not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(18,4);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(18,0);not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:numeric(18,0);not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }

// LineTotal multiplies price by quantity and rounds once, half up, to whole
// currency units.
func LineTotal(unitPrice, quantity decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(quantity).Round(0)
}

// DeriveStatus maps the paid amount against the amount due.
func DeriveStatus(totalDue, totalPaid decimal.Decimal) InvoiceStatus {
	switch {
	case totalPaid.GreaterThanOrEqual(totalDue):
		return InvoiceStatusPaid
	case totalPaid.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusUnpaid
	}
}
