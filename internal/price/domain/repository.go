package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	BuildingID snowflake.ID
	FeeTypeID  snowflake.ID
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, override *PriceOverride) error
	Find(ctx context.Context, db *gorm.DB, feeTypeID, buildingID snowflake.ID) (*PriceOverride, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PriceOverride, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]PriceOverride, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	DeleteFor(ctx context.Context, db *gorm.DB, feeTypeID, buildingID snowflake.ID) (int64, error)
	DeleteByBuilding(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) (int64, error)
}
