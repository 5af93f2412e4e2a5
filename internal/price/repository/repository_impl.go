package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() pricedomain.Repository {
	return &repo{}
}

// Upsert inserts the override or, when the (fee type, building) pair already
// has one, replaces its price, note and applied time in the same statement.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, o *pricedomain.PriceOverride) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fee_type_id"}, {Name: "building_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"unit_price", "note", "applied_at"}),
		}).
		Create(o).Error
}

const overrideColumns = `id, fee_type_id, building_id, unit_price, note, applied_at`

func (r *repo) Find(ctx context.Context, db *gorm.DB, feeTypeID, buildingID snowflake.ID) (*pricedomain.PriceOverride, error) {
	var item pricedomain.PriceOverride
	err := db.WithContext(ctx).Raw(
		`SELECT `+overrideColumns+` FROM price_overrides WHERE fee_type_id = ? AND building_id = ?`,
		feeTypeID,
		buildingID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*pricedomain.PriceOverride, error) {
	var item pricedomain.PriceOverride
	err := db.WithContext(ctx).Raw(
		`SELECT `+overrideColumns+` FROM price_overrides WHERE id = ?`,
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

func (r *repo) List(ctx context.Context, db *gorm.DB, filter pricedomain.ListFilter) ([]pricedomain.PriceOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM price_overrides WHERE 1 = 1`
	args := []any{}
	if filter.BuildingID != 0 {
		query += ` AND building_id = ?`
		args = append(args, filter.BuildingID)
	}
	if filter.FeeTypeID != 0 {
		query += ` AND fee_type_id = ?`
		args = append(args, filter.FeeTypeID)
	}
	query += ` ORDER BY building_id ASC, fee_type_id ASC`

	var items []pricedomain.PriceOverride
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM price_overrides WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteFor(ctx context.Context, db *gorm.DB, feeTypeID, buildingID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM price_overrides WHERE fee_type_id = ? AND building_id = ?`,
		feeTypeID,
		buildingID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteByBuilding(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM price_overrides WHERE building_id = ?`, buildingID)
	return result.RowsAffected, result.Error
}
