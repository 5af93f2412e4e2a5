package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository reads the registries owned by other parts of the system.
// Lookups return nil, nil when the row does not exist.
type Repository interface {
	FindBuilding(ctx context.Context, id snowflake.ID) (*Building, error)
	FindFeeType(ctx context.Context, id snowflake.ID) (*FeeType, error)
	FindFeeTypes(ctx context.Context, ids []snowflake.ID) ([]FeeType, error)
	ListActiveFeeTypes(ctx context.Context) ([]FeeType, error)
	FindHousehold(ctx context.Context, id snowflake.ID) (*Household, error)
	ListActiveQuotas(ctx context.Context, householdID snowflake.ID) ([]QuotaLine, error)
	FindPeriod(ctx context.Context, id snowflake.ID) (*BillingPeriod, error)
}
