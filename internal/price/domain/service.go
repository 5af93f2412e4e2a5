package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// ResolvePrice returns the override for the pair when one exists and the
	// fee type default otherwise.
	ResolvePrice(ctx context.Context, feeTypeID, buildingID snowflake.ID) (decimal.Decimal, error)
	GetPrice(ctx context.Context, feeTypeID, buildingID snowflake.ID) (*ResolvedPrice, error)
	UpsertOverride(ctx context.Context, req UpsertRequest) (*PriceOverride, error)
	BulkUpsert(ctx context.Context, req BulkUpsertRequest) (int, error)
	ListOverrides(ctx context.Context, filter ListFilter) ([]PriceOverride, error)
	PriceTable(ctx context.Context, buildingID snowflake.ID) ([]PriceTableRow, error)
	DeleteOverride(ctx context.Context, id snowflake.ID) error
	DeleteOverrideFor(ctx context.Context, feeTypeID, buildingID snowflake.ID) error
	ResetBuilding(ctx context.Context, buildingID snowflake.ID) (int64, error)
}

type UpsertRequest struct {
	FeeTypeID  snowflake.ID    `json:"fee_type_id"`
	BuildingID snowflake.ID    `json:"building_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Note       string          `json:"note"`
}

type BulkItem struct {
	FeeTypeID snowflake.ID    `json:"fee_type_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Note      string          `json:"note"`
}

// BulkUpsertRequest sets several fee type prices for one building. The items
// are applied all together or not at all.
type BulkUpsertRequest struct {
	BuildingID snowflake.ID `json:"-"`
	Items      []BulkItem   `json:"items" binding:"required,min=1"`
}

var (
	ErrNotFound         = errors.New("override_not_found")
	ErrFeeTypeNotFound  = errors.New("fee_type_not_found")
	ErrBuildingNotFound = errors.New("building_not_found")
	ErrInvalidFeeType   = errors.New("invalid_fee_type")
	ErrInvalidBuilding  = errors.New("invalid_building")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrInvalidItems     = errors.New("invalid_items")
	ErrDuplicateFeeType = errors.New("invalid_duplicate_fee_type")
)
