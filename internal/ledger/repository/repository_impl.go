package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

// Insert appends e unless its external transaction id is already booked.
// It reports whether a row was written.
func (r *repo) Insert(ctx context.Context, tx *gorm.DB, e *ledgerdomain.PaymentEvent) (bool, error) {
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_txn_id"}},
			DoNothing: true,
		}).
		Create(e)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SumByInvoice(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error) {
	type row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}

	var out row
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total FROM payment_events WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&out).Error
	if err != nil {
		return decimal.Zero, err
	}
	return out.Total, nil
}

const eventColumns = `id, invoice_id, amount, method, payer, note, external_txn_id, response_code, bank_code, raw_params, created_at`

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]ledgerdomain.PaymentEvent, error) {
	var items []ledgerdomain.PaymentEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+` FROM payment_events WHERE invoice_id = ? ORDER BY created_at DESC, id DESC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalTxnID string) (*ledgerdomain.PaymentEvent, error) {
	var item ledgerdomain.PaymentEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+` FROM payment_events WHERE external_txn_id = ?`,
		externalTxnID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
