package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, household_id, period_id, total_due, total_paid, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.HouseholdID,
		inv.PeriodID,
		inv.TotalDue,
		inv.TotalPaid,
		inv.Status,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []invoicedomain.InvoiceLine) error {
	for _, line := range lines {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_lines (
				id, invoice_id, fee_type_id, fee_type_name, unit, quantity, unit_price, line_total, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID,
			line.InvoiceID,
			line.FeeTypeID,
			line.FeeTypeName,
			line.Unit,
			line.Quantity,
			line.UnitPrice,
			line.LineTotal,
			line.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

const invoiceColumns = `id, household_id, period_id, total_due, total_paid, status, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var item invoicedomain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var item invoicedomain.Invoice
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLine, error) {
	var items []invoicedomain.InvoiceLine
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, fee_type_id, fee_type_name, unit, quantity, unit_price, line_total, created_at
		 FROM invoice_lines WHERE invoice_id = ? ORDER BY fee_type_name ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1 = 1`
	args := []any{}
	if filter.HouseholdID != 0 {
		query += ` AND household_id = ?`
		args = append(args, filter.HouseholdID)
	}
	if filter.PeriodID != 0 {
		query += ` AND period_id = ?`
		args = append(args, filter.PeriodID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.AfterID != 0 {
		query += ` AND id < ?`
		args = append(args, filter.AfterID)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []invoicedomain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePayment(ctx context.Context, tx *gorm.DB, id snowflake.ID, totalPaid decimal.Decimal, status invoicedomain.InvoiceStatus, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET total_paid = ?, status = ?, updated_at = ? WHERE id = ?`,
		totalPaid,
		status,
		at,
		id,
	).Error
}
