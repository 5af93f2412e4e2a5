package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condofee/internal/clock"
	obsmetrics "github.com/smallbiznis/condofee/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	refdomain "github.com/smallbiznis/condofee/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       pricedomain.Repository
	RefRepo    refdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       pricedomain.Repository
	refRepo    refdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) pricedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("price.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		refRepo:    p.RefRepo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ResolvePrice(ctx context.Context, feeTypeID, buildingID snowflake.ID) (decimal.Decimal, error) {
	resolved, err := s.GetPrice(ctx, feeTypeID, buildingID)
	if err != nil {
		return decimal.Zero, err
	}
	return resolved.UnitPrice, nil
}

func (s *Service) GetPrice(ctx context.Context, feeTypeID, buildingID snowflake.ID) (*pricedomain.ResolvedPrice, error) {
	if feeTypeID == 0 {
		return nil, pricedomain.ErrInvalidFeeType
	}
	if buildingID == 0 {
		return nil, pricedomain.ErrInvalidBuilding
	}

	override, err := s.repo.Find(ctx, s.db, feeTypeID, buildingID)
	if err != nil {
		return nil, err
	}
	if override != nil {
		return &pricedomain.ResolvedPrice{
			FeeTypeID:  feeTypeID,
			BuildingID: buildingID,
			UnitPrice:  override.UnitPrice,
			IsCustom:   true,
		}, nil
	}

	feeType, err := s.refRepo.FindFeeType(ctx, feeTypeID)
	if err != nil {
		return nil, err
	}
	if feeType == nil {
		return nil, pricedomain.ErrFeeTypeNotFound
	}
	return &pricedomain.ResolvedPrice{
		FeeTypeID:  feeTypeID,
		BuildingID: buildingID,
		UnitPrice:  feeType.DefaultPrice,
	}, nil
}

func (s *Service) UpsertOverride(ctx context.Context, req pricedomain.UpsertRequest) (*pricedomain.PriceOverride, error) {
	if req.FeeTypeID == 0 {
		return nil, pricedomain.ErrInvalidFeeType
	}
	if req.BuildingID == 0 {
		return nil, pricedomain.ErrInvalidBuilding
	}
	if err := validatePrice(req.UnitPrice); err != nil {
		return nil, err
	}
	if err := s.ensureBuilding(ctx, req.BuildingID); err != nil {
		return nil, err
	}
	if err := s.ensureFeeTypes(ctx, []snowflake.ID{req.FeeTypeID}); err != nil {
		return nil, err
	}

	var saved *pricedomain.PriceOverride
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity := s.newOverride(req.FeeTypeID, req.BuildingID, req.UnitPrice, req.Note)
		if err := s.repo.Upsert(ctx, tx, entity); err != nil {
			return err
		}
		found, err := s.repo.Find(ctx, tx, req.FeeTypeID, req.BuildingID)
		if err != nil {
			return err
		}
		saved = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordOverridesUpserted(ctx, 1)
	s.log.Info("price override saved",
		zap.String("fee_type_id", req.FeeTypeID.String()),
		zap.String("building_id", req.BuildingID.String()),
		zap.String("unit_price", req.UnitPrice.String()),
	)
	return saved, nil
}

// BulkUpsert validates every item before writing any of them, then applies
// them in one transaction.
func (s *Service) BulkUpsert(ctx context.Context, req pricedomain.BulkUpsertRequest) (int, error) {
	if req.BuildingID == 0 {
		return 0, pricedomain.ErrInvalidBuilding
	}
	if len(req.Items) == 0 {
		return 0, pricedomain.ErrInvalidItems
	}

	seen := make(map[snowflake.ID]struct{}, len(req.Items))
	ids := make([]snowflake.ID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.FeeTypeID == 0 {
			return 0, pricedomain.ErrInvalidFeeType
		}
		if err := validatePrice(item.UnitPrice); err != nil {
			return 0, err
		}
		if _, dup := seen[item.FeeTypeID]; dup {
			return 0, pricedomain.ErrDuplicateFeeType
		}
		seen[item.FeeTypeID] = struct{}{}
		ids = append(ids, item.FeeTypeID)
	}

	if err := s.ensureBuilding(ctx, req.BuildingID); err != nil {
		return 0, err
	}
	if err := s.ensureFeeTypes(ctx, ids); err != nil {
		return 0, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range req.Items {
			entity := s.newOverride(item.FeeTypeID, req.BuildingID, item.UnitPrice, item.Note)
			if err := s.repo.Upsert(ctx, tx, entity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.obsMetrics.RecordOverridesUpserted(ctx, len(req.Items))
	s.log.Info("price overrides saved",
		zap.String("building_id", req.BuildingID.String()),
		zap.Int("count", len(req.Items)),
	)
	return len(req.Items), nil
}

func (s *Service) ListOverrides(ctx context.Context, filter pricedomain.ListFilter) ([]pricedomain.PriceOverride, error) {
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []pricedomain.PriceOverride{}
	}
	return items, nil
}

func (s *Service) PriceTable(ctx context.Context, buildingID snowflake.ID) ([]pricedomain.PriceTableRow, error) {
	if buildingID == 0 {
		return nil, pricedomain.ErrInvalidBuilding
	}
	if err := s.ensureBuilding(ctx, buildingID); err != nil {
		return nil, err
	}

	feeTypes, err := s.refRepo.ListActiveFeeTypes(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.List(ctx, s.db, pricedomain.ListFilter{BuildingID: buildingID})
	if err != nil {
		return nil, err
	}
	byFeeType := make(map[snowflake.ID]pricedomain.PriceOverride, len(overrides))
	for _, o := range overrides {
		byFeeType[o.FeeTypeID] = o
	}

	rows := make([]pricedomain.PriceTableRow, 0, len(feeTypes))
	for _, ft := range feeTypes {
		row := pricedomain.PriceTableRow{
			FeeTypeID:    ft.ID,
			FeeTypeName:  ft.Name,
			Unit:         ft.Unit,
			Category:     string(ft.Category),
			DefaultPrice: ft.DefaultPrice,
			AppliedPrice: ft.DefaultPrice,
		}
		if o, ok := byFeeType[ft.ID]; ok {
			custom := o.UnitPrice
			overrideID := o.ID
			row.CustomPrice = &custom
			row.AppliedPrice = custom
			row.IsCustom = true
			row.OverrideID = &overrideID
			row.Note = o.Note
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Service) DeleteOverride(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return pricedomain.ErrInvalidID
	}
	affected, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pricedomain.ErrNotFound
	}
	s.log.Info("price override deleted", zap.String("override_id", id.String()))
	return nil
}

func (s *Service) DeleteOverrideFor(ctx context.Context, feeTypeID, buildingID snowflake.ID) error {
	if feeTypeID == 0 {
		return pricedomain.ErrInvalidFeeType
	}
	if buildingID == 0 {
		return pricedomain.ErrInvalidBuilding
	}
	affected, err := s.repo.DeleteFor(ctx, s.db, feeTypeID, buildingID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pricedomain.ErrNotFound
	}
	s.log.Info("price override deleted",
		zap.String("fee_type_id", feeTypeID.String()),
		zap.String("building_id", buildingID.String()),
	)
	return nil
}

// ResetBuilding drops every override of the building so its fee types fall
// back to their default prices.
func (s *Service) ResetBuilding(ctx context.Context, buildingID snowflake.ID) (int64, error) {
	if buildingID == 0 {
		return 0, pricedomain.ErrInvalidBuilding
	}
	if err := s.ensureBuilding(ctx, buildingID); err != nil {
		return 0, err
	}
	affected, err := s.repo.DeleteByBuilding(ctx, s.db, buildingID)
	if err != nil {
		return 0, err
	}
	s.log.Info("building prices reset",
		zap.String("building_id", buildingID.String()),
		zap.Int64("removed", affected),
	)
	return affected, nil
}

func (s *Service) newOverride(feeTypeID, buildingID snowflake.ID, price decimal.Decimal, note string) *pricedomain.PriceOverride {
	return &pricedomain.PriceOverride{
		ID:         s.genID.Generate(),
		FeeTypeID:  feeTypeID,
		BuildingID: buildingID,
		UnitPrice:  price,
		Note:       optionalString(note),
		AppliedAt:  s.clock.Now().UTC(),
	}
}

func (s *Service) ensureBuilding(ctx context.Context, id snowflake.ID) error {
	building, err := s.refRepo.FindBuilding(ctx, id)
	if err != nil {
		return err
	}
	if building == nil {
		return pricedomain.ErrBuildingNotFound
	}
	return nil
}

func (s *Service) ensureFeeTypes(ctx context.Context, ids []snowflake.ID) error {
	found, err := s.refRepo.FindFeeTypes(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return pricedomain.ErrFeeTypeNotFound
	}
	return nil
}

// Prices are whole currency units.
func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() || !price.Equal(price.Truncate(0)) {
		return pricedomain.ErrInvalidPrice
	}
	return nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
