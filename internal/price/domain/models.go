package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PriceOverride is the per-building unit price of a fee type. At most one row
// exists per (fee type, building) pair.
type PriceOverride struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	FeeTypeID  snowflake.ID    `json:"fee_type_id" gorm:"not null;uniqueIndex:ux_price_overrides_fee_type_building,priority:1"`
	BuildingID snowflake.ID    `json:"building_id" gorm:"not null;uniqueIndex:ux_price_overrides_fee_type_building,priority:2"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:numeric(18,0);not null"`
	Note       *string         `json:"note,omitempty" gorm:"type:text"`
	AppliedAt  time.Time       `json:"applied_at" gorm:"not null"`
}

func (PriceOverride) TableName() string { return "price_overrides" }

type ResolvedPrice struct {
	FeeTypeID  snowflake.ID    `json:"fee_type_id"`
	BuildingID snowflake.ID    `json:"building_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	IsCustom   bool            `json:"is_custom"`
}

// PriceTableRow describes one active fee type as billed in a building.
type PriceTableRow struct {
	FeeTypeID    snowflake.ID     `json:"fee_type_id"`
	FeeTypeName  string           `json:"fee_type_name"`
	Unit         string           `json:"unit"`
	Category     string           `json:"category"`
	DefaultPrice decimal.Decimal  `json:"default_price"`
	CustomPrice  *decimal.Decimal `json:"custom_price,omitempty"`
	AppliedPrice decimal.Decimal  `json:"applied_price"`
	IsCustom     bool             `json:"is_custom"`
	OverrideID   *snowflake.ID    `json:"override_id,omitempty"`
	Note         *string          `json:"note,omitempty"`
}
