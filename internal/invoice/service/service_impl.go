package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condofee/internal/clock"
	"github.com/smallbiznis/condofee/internal/events"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	"github.com/smallbiznis/condofee/internal/invoice/render"
	obsmetrics "github.com/smallbiznis/condofee/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	refdomain "github.com/smallbiznis/condofee/internal/reference/domain"
	pkgdb "github.com/smallbiznis/condofee/pkg/db"
	"github.com/smallbiznis/condofee/pkg/db/pagination"
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
	Repo       invoicedomain.Repository
	RefRepo    refdomain.Repository
	PriceSvc   pricedomain.Service
	Renderer   render.Renderer
	Outbox     *events.Outbox      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       invoicedomain.Repository
	refRepo    refdomain.Repository
	priceSvc   pricedomain.Service
	renderer   render.Renderer
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		refRepo:    p.RefRepo,
		priceSvc:   p.PriceSvc,
		renderer:   p.Renderer,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateInvoice prices every active quota of the household and stores the
// invoice with its lines. The (household, period) unique constraint decides
// between concurrent creators.
func (s *Service) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	if req.HouseholdID == 0 {
		return nil, invoicedomain.ErrInvalidHousehold
	}
	if req.PeriodID == 0 {
		return nil, invoicedomain.ErrInvalidPeriod
	}

	household, err := s.refRepo.FindHousehold(ctx, req.HouseholdID)
	if err != nil {
		return nil, err
	}
	if household == nil {
		return nil, invoicedomain.ErrHouseholdNotFound
	}
	period, err := s.refRepo.FindPeriod(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, invoicedomain.ErrPeriodNotFound
	}

	existing, err := s.repo.List(ctx, s.db, invoicedomain.ListFilter{
		HouseholdID: household.ID,
		PeriodID:    period.ID,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, invoicedomain.ErrInvoiceExists
	}

	quotas, err := s.refRepo.ListActiveQuotas(ctx, household.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	invoiceID := s.genID.Generate()
	total := decimal.Zero
	lines := make([]invoicedomain.InvoiceLine, 0, len(quotas))
	for _, quota := range quotas {
		if !quota.Quantity.IsPositive() {
			continue
		}
		unitPrice, err := s.priceSvc.ResolvePrice(ctx, quota.FeeTypeID, household.BuildingID)
		if err != nil {
			return nil, err
		}
		lineTotal := invoicedomain.LineTotal(unitPrice, quota.Quantity)
		total = total.Add(lineTotal)
		lines = append(lines, invoicedomain.InvoiceLine{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			FeeTypeID:   quota.FeeTypeID,
			FeeTypeName: quota.FeeTypeName,
			Unit:        quota.Unit,
			Quantity:    quota.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
			CreatedAt:   now,
		})
	}

	inv := &invoicedomain.Invoice{
		ID:          invoiceID,
		HouseholdID: household.ID,
		PeriodID:    period.ID,
		TotalDue:    total,
		TotalPaid:   decimal.Zero,
		Status:      invoicedomain.DeriveStatus(total, decimal.Zero),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, inv); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrInvoiceExists
			}
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:        events.EventInvoiceCreated,
			AggregateID: inv.ID,
			Payload: map[string]any{
				"invoice_id":   inv.ID.String(),
				"household_id": household.ID.String(),
				"period_id":    period.ID.String(),
				"total_due":    total.String(),
			},
			DedupeKey: "invoice_created:" + inv.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordInvoiceCreated(ctx, len(lines))
	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("household_id", household.ID.String()),
		zap.String("period_id", period.ID.String()),
		zap.String("total_due", total.String()),
		zap.Int("lines", len(lines)),
	)

	inv.Lines = lines
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	if id == 0 {
		return nil, invoicedomain.ErrInvalidID
	}
	inv, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, inv.ID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []invoicedomain.InvoiceLine{}
	}
	inv.Lines = lines
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	filter := invoicedomain.ListFilter{}

	if v := strings.TrimSpace(req.HouseholdID); v != "" {
		id, err := snowflake.ParseString(v)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, invoicedomain.ErrInvalidHousehold
		}
		filter.HouseholdID = id
	}
	if v := strings.TrimSpace(req.PeriodID); v != "" {
		id, err := snowflake.ParseString(v)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, invoicedomain.ErrInvalidPeriod
		}
		filter.PeriodID = id
	}
	if v := strings.TrimSpace(req.Status); v != "" {
		status, err := parseStatus(v)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, err
		}
		filter.Status = status
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}
	if cursor != nil && cursor.ID != "" {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	limit := req.Limit()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}
	page, info, err := pagination.Page(items, limit, func(inv invoicedomain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: inv.ID.String()}
	})
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}
	if page == nil {
		page = []invoicedomain.Invoice{}
	}
	return invoicedomain.ListInvoicesResponse{PageInfo: info, Invoices: page}, nil
}

func (s *Service) RenderPDF(ctx context.Context, id snowflake.ID) ([]byte, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	household, err := s.refRepo.FindHousehold(ctx, inv.HouseholdID)
	if err != nil {
		return nil, err
	}
	if household == nil {
		return nil, invoicedomain.ErrHouseholdNotFound
	}
	period, err := s.refRepo.FindPeriod(ctx, inv.PeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, invoicedomain.ErrPeriodNotFound
	}
	building, err := s.refRepo.FindBuilding(ctx, household.BuildingID)
	if err != nil {
		return nil, err
	}

	doc := render.Document{
		InvoiceID:     inv.ID.String(),
		Status:        string(inv.Status),
		IssuedOn:      inv.CreatedAt.Format(time.DateOnly),
		PeriodName:    period.Name,
		PeriodRange:   period.StartsOn.Format(time.DateOnly) + " - " + period.EndsOn.Format(time.DateOnly),
		HouseholdCode: household.Code,
		OwnerName:     household.OwnerName,
		ApartmentNo:   household.ApartmentNo,
		TotalDue:      inv.TotalDue,
		TotalPaid:     inv.TotalPaid,
		Debt:          inv.Debt(),
	}
	if building != nil {
		doc.BuildingName = building.Name
	}
	for _, line := range inv.Lines {
		doc.Lines = append(doc.Lines, render.Line{
			FeeTypeName: line.FeeTypeName,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}

	out, err := s.renderer.RenderPDF(doc)
	if err != nil {
		s.log.Error("failed to render invoice pdf", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func parseStatus(value string) (invoicedomain.InvoiceStatus, error) {
	switch invoicedomain.InvoiceStatus(strings.ToLower(value)) {
	case invoicedomain.InvoiceStatusUnpaid:
		return invoicedomain.InvoiceStatusUnpaid, nil
	case invoicedomain.InvoiceStatusPartiallyPaid:
		return invoicedomain.InvoiceStatusPartiallyPaid, nil
	case invoicedomain.InvoiceStatusPaid:
		return invoicedomain.InvoiceStatusPaid, nil
	default:
		return "", invoicedomain.ErrInvalidStatus
	}
}
