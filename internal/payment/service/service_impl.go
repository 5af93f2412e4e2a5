package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condofee/internal/clock"
	"github.com/smallbiznis/condofee/internal/config"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	"github.com/smallbiznis/condofee/internal/locks"
	obsmetrics "github.com/smallbiznis/condofee/internal/observability/metrics"
	"github.com/smallbiznis/condofee/internal/payment/adapters"
	"github.com/smallbiznis/condofee/internal/payment/adapters/vnpay"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
	refdomain "github.com/smallbiznis/condofee/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockWait = 2 * time.Second

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Registry    *adapters.Registry
	Gateway     config.GatewayConfig
	Policy      *config.PolicyHolder
	LedgerSvc   ledgerdomain.Service
	InvoiceRepo invoicedomain.Repository
	RefRepo     refdomain.Repository
	Locker      *locks.Locker       `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	adapter     paymentdomain.GatewayAdapter
	adapterErr  error
	policy      *config.PolicyHolder
	ledgerSvc   ledgerdomain.Service
	invoiceRepo invoicedomain.Repository
	refRepo     refdomain.Repository
	locker      *locks.Locker
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	log := p.Log.Named("payment.service")
	adapter, err := p.Registry.NewAdapter(vnpay.Provider, paymentdomain.AdapterConfig{
		TmnCode:    p.Gateway.TmnCode,
		HashSecret: p.Gateway.HashSecret,
		PayURL:     p.Gateway.PayURL,
		ReturnURL:  p.Gateway.ReturnURL,
	})
	if err != nil {
		log.Warn("payment gateway unavailable", zap.String("provider", vnpay.Provider), zap.Error(err))
	}
	return &Service{
		db:          p.DB,
		log:         log,
		clock:       p.Clock,
		adapter:     adapter,
		adapterErr:  err,
		policy:      p.Policy,
		ledgerSvc:   p.LedgerSvc,
		invoiceRepo: p.InvoiceRepo,
		refRepo:     p.RefRepo,
		locker:      p.Locker,
		obsMetrics:  p.ObsMetrics,
	}
}

// CreatePaymentURL signs a checkout redirect for the invoice's debt, or
// for a part of it when an amount is given.
func (s *Service) CreatePaymentURL(ctx context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.CreatePaymentResponse, error) {
	if s.adapterErr != nil {
		return nil, s.adapterErr
	}
	if req.InvoiceID == 0 {
		return nil, paymentdomain.ErrInvalidInvoice
	}

	inv, err := s.invoiceRepo.FindByID(ctx, s.db, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, paymentdomain.ErrInvoiceNotFound
	}

	policy := s.policy.Get()
	loc := policy.Location()
	now := s.clock.Now()

	if policy.EnforcePeriodWindow {
		period, err := s.refRepo.FindPeriod(ctx, inv.PeriodID)
		if err != nil {
			return nil, err
		}
		if period != nil {
			if period.NotOpenAt(now, loc) {
				return nil, paymentdomain.ErrPeriodNotOpen
			}
			if period.ClosedAt(now, loc) {
				return nil, paymentdomain.ErrPeriodClosed
			}
		}
	}

	debt := inv.Debt()
	if !debt.IsPositive() {
		return nil, paymentdomain.ErrInvoiceAlreadyPaid
	}
	amount := debt
	if req.Amount != nil {
		amount = *req.Amount
		if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) || amount.GreaterThan(debt) {
			return nil, paymentdomain.ErrInvalidAmount
		}
	}

	orderInfo := strings.TrimSpace(req.OrderInfo)
	if orderInfo == "" {
		orderInfo, err = s.defaultOrderInfo(ctx, inv)
		if err != nil {
			return nil, err
		}
	}

	clientIP := strings.TrimSpace(req.ClientIP)
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	created := now.In(loc)
	expires := created.Add(policy.Expiry())
	txnRef := s.adapter.NewTxnRef(inv.ID, now)
	paymentURL, err := s.adapter.BuildPaymentURL(paymentdomain.CheckoutRequest{
		TxnRef:    txnRef,
		Amount:    amount,
		OrderInfo: orderInfo,
		ClientIP:  clientIP,
		BankCode:  req.BankCode,
		CreatedAt: created,
		ExpiresAt: expires,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment url created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("txn_ref", txnRef),
		zap.String("amount", amount.String()),
		zap.Time("expires_at", expires),
	)
	return &paymentdomain.CreatePaymentResponse{
		PaymentURL: paymentURL,
		TxnRef:     txnRef,
		Amount:     amount,
		ExpiresAt:  expires,
	}, nil
}

func (s *Service) defaultOrderInfo(ctx context.Context, inv *invoicedomain.Invoice) (string, error) {
	household, err := s.refRepo.FindHousehold(ctx, inv.HouseholdID)
	if err != nil {
		return "", err
	}
	if household == nil {
		return fmt.Sprintf("Thanh toan hoa don %s", inv.ID), nil
	}
	return fmt.Sprintf("Thanh toan hoa don %s can ho %s", inv.ID, household.Code), nil
}

// Reconcile runs one gateway callback through verify, deduplicate, classify
// and apply. Terminal business outcomes come back as an Outcome; the error
// is reserved for infrastructure failures.
func (s *Service) Reconcile(ctx context.Context, params map[string]string) (*paymentdomain.Outcome, error) {
	if s.adapterErr != nil {
		return nil, s.adapterErr
	}
	provider := s.adapter.Provider()

	if err := s.adapter.Verify(params); err != nil {
		outcome := &paymentdomain.Outcome{
			Kind:    paymentdomain.OutcomeRejectedSignature,
			TxnRef:  params["vnp_TxnRef"],
			Message: "Chữ ký không hợp lệ",
			Reason:  paymentdomain.ErrInvalidSignature,
		}
		s.finish(ctx, provider, outcome)
		return outcome, nil
	}

	cb := s.adapter.ParseCallback(params)
	outcome := &paymentdomain.Outcome{
		InvoiceID:     cb.InvoiceID,
		TxnRef:        cb.TxnRef,
		TransactionNo: cb.TransactionNo,
		Amount:        cb.Amount,
		ResponseCode:  cb.ResponseCode,
	}

	unlock, err := s.lock(ctx, provider, cb.TxnRef)
	if err != nil {
		return nil, err
	}
	defer unlock()

	externalID := cb.ExternalID()
	if externalID != "" {
		existing, err := s.ledgerSvc.FindByExternalID(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			outcome.Kind = paymentdomain.OutcomeAlreadyProcessed
			outcome.InvoiceID = existing.InvoiceID
			outcome.Amount = existing.Amount
			outcome.Message = "Giao dịch đã được xử lý trước đó"
			s.finish(ctx, provider, outcome)
			return outcome, nil
		}
	}

	status := s.adapter.Classify(cb.ResponseCode)
	outcome.Message = status.Message
	if !status.Known {
		outcome.Kind = paymentdomain.OutcomeUnknownCode
		outcome.Reason = paymentdomain.ErrUnknownResponseCode
		s.finish(ctx, provider, outcome)
		return outcome, nil
	}
	if !status.Success {
		outcome.Kind = paymentdomain.OutcomeFailed
		outcome.Reason = paymentdomain.ErrGatewayDeclined
		s.finish(ctx, provider, outcome)
		return outcome, nil
	}
	if cb.InvoiceID == 0 {
		s.fail(ctx, provider, outcome, paymentdomain.ErrInvoiceNotFound)
		return outcome, nil
	}
	if !cb.Amount.IsPositive() {
		s.fail(ctx, provider, outcome, paymentdomain.ErrInvalidAmount)
		return outcome, nil
	}

	_, err = s.ledgerSvc.ApplyPayment(ctx, ledgerdomain.ApplyPaymentRequest{
		InvoiceID:     cb.InvoiceID,
		Amount:        cb.Amount,
		Method:        provider,
		Note:          cb.OrderInfo,
		ExternalTxnID: externalID,
		ResponseCode:  cb.ResponseCode,
		BankCode:      cb.BankCode,
		RawParams:     cb.Raw,
	})
	switch {
	case err == nil:
		outcome.Kind = paymentdomain.OutcomeApplied
	case errors.Is(err, ledgerdomain.ErrDuplicateTransaction):
		outcome.Kind = paymentdomain.OutcomeAlreadyProcessed
		outcome.Message = "Giao dịch đã được xử lý trước đó"
	case errors.Is(err, ledgerdomain.ErrInvoiceNotFound):
		s.fail(ctx, provider, outcome, paymentdomain.ErrInvoiceNotFound)
		return outcome, nil
	case errors.Is(err, ledgerdomain.ErrInvalidAmount):
		s.fail(ctx, provider, outcome, paymentdomain.ErrInvalidAmount)
		return outcome, nil
	default:
		return nil, err
	}

	s.finish(ctx, provider, outcome)
	return outcome, nil
}

func (s *Service) fail(ctx context.Context, provider string, outcome *paymentdomain.Outcome, reason error) {
	outcome.Kind = paymentdomain.OutcomeFailed
	outcome.Reason = reason
	switch {
	case errors.Is(reason, paymentdomain.ErrInvoiceNotFound):
		outcome.Message = "Không tìm thấy hóa đơn"
	case errors.Is(reason, paymentdomain.ErrInvalidAmount):
		outcome.Message = "Số tiền không hợp lệ"
	}
	s.finish(ctx, provider, outcome)
}

func (s *Service) finish(ctx context.Context, provider string, outcome *paymentdomain.Outcome) {
	s.obsMetrics.RecordGatewayCallback(ctx, provider, string(outcome.Kind))

	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("txn_ref", outcome.TxnRef),
		zap.String("transaction_no", outcome.TransactionNo),
		zap.String("response_code", outcome.ResponseCode),
	}
	if outcome.InvoiceID != 0 {
		fields = append(fields, zap.String("invoice_id", outcome.InvoiceID.String()))
	}
	if outcome.Reason != nil {
		fields = append(fields, zap.String("reason", outcome.Reason.Error()))
	}

	switch outcome.Kind {
	case paymentdomain.OutcomeRejectedSignature:
		s.log.Warn("gateway callback rejected", fields...)
	case paymentdomain.OutcomeFailed:
		s.log.Info("gateway callback failed", fields...)
	case paymentdomain.OutcomeUnknownCode:
		s.log.Warn("gateway callback carried unknown response code", fields...)
	default:
		s.log.Info("gateway callback reconciled", fields...)
	}
}

// lock serialises deliveries of one transaction reference when redis is
// configured. The unique external id still decides on its own.
func (s *Service) lock(ctx context.Context, provider, txnRef string) (func(), error) {
	if s.locker == nil || txnRef == "" {
		return func() {}, nil
	}
	key := "callback:" + provider + ":" + txnRef
	token, err := s.locker.Acquire(ctx, key, s.policy.Get().CallbackLockTTL(), lockWait)
	if err != nil {
		if errors.Is(err, locks.ErrLockHeld) {
			return nil, paymentdomain.ErrCallbackInProgress
		}
		return nil, err
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("release callback lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) PaymentStatus(ctx context.Context, invoiceID snowflake.ID) (*paymentdomain.PaymentStatus, error) {
	if invoiceID == 0 {
		return nil, paymentdomain.ErrInvalidInvoice
	}
	debt, err := s.ledgerSvc.GetDebt(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrInvoiceNotFound) {
			return nil, paymentdomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	payments, err := s.ledgerSvc.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	status := &paymentdomain.PaymentStatus{
		InvoiceID: debt.InvoiceID,
		Status:    debt.Status,
		TotalDue:  debt.TotalDue,
		TotalPaid: debt.TotalPaid,
		Debt:      debt.Debt,
		Paid:      debt.Status == invoicedomain.InvoiceStatusPaid,
	}
	if len(payments) > 0 {
		last := payments[0]
		status.LastPayment = &last
	}
	return status, nil
}
