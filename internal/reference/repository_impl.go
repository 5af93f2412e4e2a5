package reference

import (
	"context"
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condofee/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) FindBuilding(ctx context.Context, id snowflake.ID) (*domain.Building, error) {
	var item domain.Building
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, name, description, created_at FROM buildings WHERE id = ?`, id).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

const feeTypeColumns = `id, name, unit, default_price, category, description, active, created_at, updated_at`

func (r *repository) FindFeeType(ctx context.Context, id snowflake.ID) (*domain.FeeType, error) {
	var item domain.FeeType
	err := r.db.WithContext(ctx).
		Raw(`SELECT `+feeTypeColumns+` FROM fee_types WHERE id = ?`, id).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repository) FindFeeTypes(ctx context.Context, ids []snowflake.ID) ([]domain.FeeType, error) {
	if len(ids) == 0 {
		return []domain.FeeType{}, nil
	}
	var items []domain.FeeType
	err := r.db.WithContext(ctx).
		Raw(`SELECT `+feeTypeColumns+` FROM fee_types WHERE id IN ? ORDER BY id`, ids).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListActiveFeeTypes(ctx context.Context) ([]domain.FeeType, error) {
	var items []domain.FeeType
	err := r.db.WithContext(ctx).
		Raw(`SELECT ` + feeTypeColumns + ` FROM fee_types WHERE active = true ORDER BY name, id`).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindHousehold(ctx context.Context, id snowflake.ID) (*domain.Household, error) {
	type row struct {
		ID           snowflake.ID        `gorm:"column:id"`
		Code         string              `gorm:"column:code"`
		OwnerName    string              `gorm:"column:owner_name"`
		BuildingID   snowflake.ID        `gorm:"column:building_id"`
		ApartmentNo  string              `gorm:"column:apartment_no"`
		Area         decimal.NullDecimal `gorm:"column:area"`
		ContactEmail sql.NullString      `gorm:"column:contact_email"`
		CreatedAt    time.Time           `gorm:"column:created_at"`
	}

	var item row
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, owner_name, building_id, apartment_no, area, contact_email, created_at
			FROM households WHERE id = ?`, id).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}

	var email *string
	if item.ContactEmail.Valid {
		value := item.ContactEmail.String
		email = &value
	}
	return &domain.Household{
		ID:           item.ID,
		Code:         item.Code,
		OwnerName:    item.OwnerName,
		BuildingID:   item.BuildingID,
		ApartmentNo:  item.ApartmentNo,
		Area:         item.Area,
		ContactEmail: email,
		CreatedAt:    item.CreatedAt,
	}, nil
}

func (r *repository) ListActiveQuotas(ctx context.Context, householdID snowflake.ID) ([]domain.QuotaLine, error) {
	type row struct {
		FeeTypeID   snowflake.ID    `gorm:"column:fee_type_id"`
		FeeTypeName string          `gorm:"column:fee_type_name"`
		Unit        string          `gorm:"column:unit"`
		Category    string          `gorm:"column:category"`
		Quantity    decimal.Decimal `gorm:"column:quantity"`
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Raw(`SELECT q.fee_type_id, f.name AS fee_type_name, f.unit, f.category, q.quantity
			FROM fee_quotas q
			JOIN fee_types f ON f.id = q.fee_type_id
			WHERE q.household_id = ? AND q.active = true AND f.active = true
			ORDER BY f.name, f.id`, householdID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	lines := make([]domain.QuotaLine, 0, len(rows))
	for _, item := range rows {
		lines = append(lines, domain.QuotaLine{
			FeeTypeID:   item.FeeTypeID,
			FeeTypeName: item.FeeTypeName,
			Unit:        item.Unit,
			Category:    domain.FeeCategory(item.Category),
			Quantity:    item.Quantity,
		})
	}
	return lines, nil
}

func (r *repository) FindPeriod(ctx context.Context, id snowflake.ID) (*domain.BillingPeriod, error) {
	var item domain.BillingPeriod
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, name, kind, starts_on, ends_on, created_at FROM billing_periods WHERE id = ?`, id).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
