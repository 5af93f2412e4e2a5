package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condofee/internal/clock"
	"github.com/smallbiznis/condofee/internal/events"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/condofee/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/condofee/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        ledgerdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Outbox      *events.Outbox      `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        ledgerdomain.Repository
	invoiceRepo invoicedomain.Repository
	outbox      *events.Outbox
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		outbox:      p.Outbox,
		obsMetrics:  p.ObsMetrics,
	}
}

// ApplyPayment appends a payment event and recomputes the invoice's paid
// amount and status from the full event sum. The invoice row stays locked
// for the whole transaction so concurrent payments serialise on it.
func (s *Service) ApplyPayment(ctx context.Context, req ledgerdomain.ApplyPaymentRequest) (*ledgerdomain.PaymentEvent, error) {
	if req.InvoiceID == 0 {
		return nil, ledgerdomain.ErrInvalidInvoice
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	method, err := normalizeMethod(req.Method)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	event := &ledgerdomain.PaymentEvent{
		ID:            s.genID.Generate(),
		InvoiceID:     req.InvoiceID,
		Amount:        req.Amount,
		Method:        method,
		Payer:         strings.TrimSpace(req.Payer),
		Note:          optionalString(req.Note),
		ExternalTxnID: optionalString(req.ExternalTxnID),
		ResponseCode:  optionalString(req.ResponseCode),
		BankCode:      optionalString(req.BankCode),
		CreatedAt:     now,
	}
	if len(req.RawParams) > 0 {
		raw := make(datatypes.JSONMap, len(req.RawParams))
		for k, v := range req.RawParams {
			raw[k] = v
		}
		event.RawParams = raw
	}

	var updated *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.invoiceRepo.FindForUpdate(ctx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ledgerdomain.ErrInvoiceNotFound
		}

		inserted, err := s.repo.Insert(ctx, tx, event)
		if err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return ledgerdomain.ErrDuplicateTransaction
			}
			return err
		}
		if !inserted {
			return ledgerdomain.ErrDuplicateTransaction
		}

		paid, err := s.repo.SumByInvoice(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		status := invoicedomain.DeriveStatus(inv.TotalDue, paid)
		if err := s.invoiceRepo.UpdatePayment(ctx, tx, inv.ID, paid, status, now); err != nil {
			return err
		}
		inv.TotalPaid = paid
		inv.Status = status
		inv.UpdatedAt = now
		updated = inv

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:        events.EventPaymentConfirmed,
			AggregateID: inv.ID,
			Payload: map[string]any{
				"invoice_id":       inv.ID.String(),
				"payment_event_id": event.ID.String(),
				"amount":           event.Amount.String(),
				"method":           string(event.Method),
				"total_paid":       paid.String(),
				"status":           string(status),
			},
			DedupeKey: "payment:" + event.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPaymentApplied(ctx, string(method))
	s.log.Info("payment applied",
		zap.String("invoice_id", updated.ID.String()),
		zap.String("payment_event_id", event.ID.String()),
		zap.String("amount", event.Amount.String()),
		zap.String("method", string(method)),
		zap.String("total_paid", updated.TotalPaid.String()),
		zap.String("status", string(updated.Status)),
	)
	return event, nil
}

func (s *Service) GetDebt(ctx context.Context, invoiceID snowflake.ID) (*ledgerdomain.Debt, error) {
	if invoiceID == 0 {
		return nil, ledgerdomain.ErrInvalidInvoice
	}
	inv, err := s.invoiceRepo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ledgerdomain.ErrInvoiceNotFound
	}
	return &ledgerdomain.Debt{
		InvoiceID: inv.ID,
		TotalDue:  inv.TotalDue,
		TotalPaid: inv.TotalPaid,
		Debt:      inv.Debt(),
		Status:    inv.Status,
	}, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]ledgerdomain.PaymentEvent, error) {
	if invoiceID == 0 {
		return nil, ledgerdomain.ErrInvalidInvoice
	}
	inv, err := s.invoiceRepo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ledgerdomain.ErrInvoiceNotFound
	}
	items, err := s.repo.ListByInvoice(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ledgerdomain.PaymentEvent{}
	}
	return items, nil
}

func (s *Service) FindByExternalID(ctx context.Context, externalTxnID string) (*ledgerdomain.PaymentEvent, error) {
	externalTxnID = strings.TrimSpace(externalTxnID)
	if externalTxnID == "" {
		return nil, nil
	}
	return s.repo.FindByExternalID(ctx, s.db, externalTxnID)
}

func normalizeMethod(value string) (ledgerdomain.PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case string(ledgerdomain.MethodCash):
		return ledgerdomain.MethodCash, nil
	case string(ledgerdomain.MethodBankTransfer):
		return ledgerdomain.MethodBankTransfer, nil
	case string(ledgerdomain.MethodVNPay):
		return ledgerdomain.MethodVNPay, nil
	default:
		return "", ledgerdomain.ErrInvalidMethod
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
