package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/condofee/internal/clock"
	"github.com/smallbiznis/condofee/internal/config"
	"github.com/smallbiznis/condofee/internal/events"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/condofee/internal/invoice/repository"
	ledgerrepository "github.com/smallbiznis/condofee/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/condofee/internal/ledger/service"
	"github.com/smallbiznis/condofee/internal/locks"
	"github.com/smallbiznis/condofee/internal/payment/adapters"
	"github.com/smallbiznis/condofee/internal/payment/adapters/vnpay"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
	"github.com/smallbiznis/condofee/internal/reference"
	"github.com/smallbiznis/condofee/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const hashSecret = "TESTSECRET"

var gateway = config.GatewayConfig{
	TmnCode:    "CONDO01",
	HashSecret: hashSecret,
	PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
	ReturnURL:  "http://localhost:8080/api/payment/vnpay-return",
}

type env struct {
	db      *gorm.DB
	svc     paymentdomain.Service
	clk     *clock.FakeClock
	invoice snowflake.ID
	period  snowflake.ID
	fix     *dbtest.Fixtures
}

type option func(*Params)

func withLocker(l *locks.Locker) option {
	return func(p *Params) { p.Locker = l }
}

func newEnv(t *testing.T, totalDue int64, opts ...option) env {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	// 09:00 on 10 October in Hanoi.
	clk := clock.NewFakeClock(time.Date(2026, 10, 10, 2, 0, 0, 0, time.UTC))

	fix := dbtest.NewFixtures(t, db)
	building := fix.Building("B1")
	household := fix.Household("A101", building, 60)
	period := fix.Period("Tháng 10/2026",
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	invoiceID := fix.Invoice(household, period, totalDue)

	invoiceRepo := invoicerepository.Provide()
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        ledgerrepository.Provide(),
		InvoiceRepo: invoiceRepo,
		Outbox:      events.NewOutbox(events.Params{GenID: node, Clock: clk}),
	})

	p := Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clk,
		Registry:    adapters.NewRegistry(vnpay.NewFactory()),
		Gateway:     gateway,
		Policy:      config.NewStaticPolicyHolder(config.DefaultPaymentPolicy()),
		LedgerSvc:   ledgerSvc,
		InvoiceRepo: invoiceRepo,
		RefRepo:     reference.NewRepository(db),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return env{db: db, svc: NewService(p), clk: clk, invoice: invoiceID, period: period, fix: fix}
}

func signed(params map[string]string) map[string]string {
	out := make(map[string]string, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	out[vnpay.ParamSecureHash] = vnpay.NewSigner(hashSecret).Sign(out)
	out[vnpay.ParamSecureHashType] = "HmacSHA512"
	return out
}

func callback(invoiceID snowflake.ID, amount int64, code, txnNo string) map[string]string {
	return signed(map[string]string{
		"vnp_TmnCode":       gateway.TmnCode,
		"vnp_TxnRef":        invoiceID.String() + "_1791597600000",
		"vnp_Amount":        decimal.NewFromInt(amount * vnpay.AmountScale).String(),
		"vnp_ResponseCode":  code,
		"vnp_TransactionNo": txnNo,
		"vnp_BankCode":      "NCB",
		"vnp_OrderInfo":     "Thanh toan hoa don",
		"vnp_PayDate":       "20261010091500",
	})
}

func loadInvoice(t *testing.T, db *gorm.DB, id snowflake.ID) *invoicedomain.Invoice {
	t.Helper()
	inv, err := invoicerepository.Provide().FindByID(context.Background(), db, id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

func TestCreatePaymentURLDefaultsToDebt(t *testing.T) {
	e := newEnv(t, 300000)

	res, err := e.svc.CreatePaymentURL(context.Background(), paymentdomain.CreatePaymentRequest{
		InvoiceID: e.invoice,
		ClientIP:  "10.0.0.7",
	})
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(300000)))
	assert.Equal(t, e.invoice.String()+"_"+"1791597600000", res.TxnRef)
	assert.True(t, res.ExpiresAt.Equal(e.clk.Now().Add(15*time.Minute)))

	u, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "30000000", q.Get("vnp_Amount"))
	assert.Equal(t, "10.0.0.7", q.Get("vnp_IpAddr"))
	assert.Equal(t, "20261010090000", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20261010091500", q.Get("vnp_ExpireDate"))
	assert.Contains(t, q.Get("vnp_OrderInfo"), "A101")
	assert.NotEmpty(t, q.Get(vnpay.ParamSecureHash))
}

func TestCreatePaymentURLPartialAmount(t *testing.T) {
	e := newEnv(t, 300000)
	amount := decimal.NewFromInt(100000)

	res, err := e.svc.CreatePaymentURL(context.Background(), paymentdomain.CreatePaymentRequest{
		InvoiceID: e.invoice,
		Amount:    &amount,
	})
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(amount))
}

func TestCreatePaymentURLRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("amount above debt", func(t *testing.T) {
		e := newEnv(t, 300000)
		amount := decimal.NewFromInt(300001)
		_, err := e.svc.CreatePaymentURL(ctx, paymentdomain.CreatePaymentRequest{InvoiceID: e.invoice, Amount: &amount})
		assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
	})

	t.Run("non positive amount", func(t *testing.T) {
		e := newEnv(t, 300000)
		amount := decimal.Zero
		_, err := e.svc.CreatePaymentURL(ctx, paymentdomain.CreatePaymentRequest{InvoiceID: e.invoice, Amount: &amount})
		assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		e := newEnv(t, 300000)
		_, err := e.svc.CreatePaymentURL(ctx, paymentdomain.CreatePaymentRequest{InvoiceID: 999})
		assert.ErrorIs(t, err, paymentdomain.ErrInvoiceNotFound)
	})

	t.Run("already paid", func(t *testing.T) {
		e := newEnv(t, 300000)
		outcome, err := e.svc.Reconcile(ctx, callback(e.invoice, 300000, "00", "14000001"))
		require.NoError(t, err)
		require.Equal(t, paymentdomain.OutcomeApplied, outcome.Kind)

		_, err = e.svc.CreatePaymentURL(ctx, paymentdomain.CreatePaymentRequest{InvoiceID: e.invoice})
		assert.ErrorIs(t, err, paymentdomain.ErrInvoiceAlreadyPaid)
	})

	t.Run("period not open", func(t *testing.T) {
		e := newEnv(t, 300000)
		e.clk.Advance(-20 * 24 * time.Hour)
		_, err := e.svc.CreatePaymentURL(ctx, paymentdomain.CreatePaymentRequest{InvoiceID: e.invoice})
		assert.ErrorIs(t, err, paymentdomain.ErrPeriodNotOpen)
	})

	t.Run("period closed", func(t *testing.T) {
		e := newEnv(t, 300000)
		// 00:30 on 1 November in Hanoi, still 31 October in UTC.
		e.clk.Set(time.Date(2026, 10, 31, 17, 30, 0, 0, time.UTC))
		_, err := e.svc.CreatePaymentURL(ctx, paymentdomain.CreatePaymentRequest{InvoiceID: e.invoice})
		assert.ErrorIs(t, err, paymentdomain.ErrPeriodClosed)
	})
}

func TestCreatePaymentURLWithoutGatewayConfig(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Now()),
		Registry: adapters.NewRegistry(vnpay.NewFactory()),
		Policy:   config.NewStaticPolicyHolder(config.DefaultPaymentPolicy()),
	})
	_, err := svc.CreatePaymentURL(context.Background(), paymentdomain.CreatePaymentRequest{InvoiceID: 1})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
	_, err = svc.Reconcile(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestReconcileDeclinedLeavesInvoiceUntouched(t *testing.T) {
	e := newEnv(t, 300000)

	outcome, err := e.svc.Reconcile(context.Background(), callback(e.invoice, 300000, "24", "0"))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeFailed, outcome.Kind)
	assert.Equal(t, "24", outcome.ResponseCode)
	assert.Equal(t, "Khách hàng hủy giao dịch", outcome.Message)
	assert.ErrorIs(t, outcome.Reason, paymentdomain.ErrGatewayDeclined)
	assert.Equal(t, e.invoice, outcome.InvoiceID)

	assert.Zero(t, dbtest.Count(t, e.db, "payment_events", ""))
	inv := loadInvoice(t, e.db, e.invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, inv.Status)
	assert.True(t, inv.TotalPaid.IsZero())
}

func TestReconcileUnknownCodeIsSurfaced(t *testing.T) {
	e := newEnv(t, 300000)
	ctx := context.Background()

	unknown, err := e.svc.Reconcile(ctx, callback(e.invoice, 300000, "42", "14000009"))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeUnknownCode, unknown.Kind)
	assert.ErrorIs(t, unknown.Reason, paymentdomain.ErrUnknownResponseCode)
	assert.Equal(t, "42", unknown.ResponseCode)
	assert.Contains(t, unknown.Message, "42")
	assert.False(t, unknown.Succeeded())

	declined, err := e.svc.Reconcile(ctx, callback(e.invoice, 300000, "24", "14000010"))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeFailed, declined.Kind)
	assert.ErrorIs(t, declined.Reason, paymentdomain.ErrGatewayDeclined)

	assert.Zero(t, dbtest.Count(t, e.db, "payment_events", ""))
	inv := loadInvoice(t, e.db, e.invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, inv.Status)
}

func TestReconcileRedeliveryIsIdempotent(t *testing.T) {
	e := newEnv(t, 300000)
	ctx := context.Background()
	params := callback(e.invoice, 300000, "00", "14123456")

	first, err := e.svc.Reconcile(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, first.Kind)
	assert.Equal(t, e.invoice, first.InvoiceID)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(300000)))

	second, err := e.svc.Reconcile(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeAlreadyProcessed, second.Kind)
	assert.True(t, second.Succeeded())

	assert.Equal(t, int64(1), dbtest.Count(t, e.db, "payment_events", "external_txn_id = ?", "14123456"))
	inv := loadInvoice(t, e.db, e.invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.TotalPaid.Equal(decimal.NewFromInt(300000)))
}

func TestReconcilePartialThenRest(t *testing.T) {
	e := newEnv(t, 300000)
	ctx := context.Background()

	outcome, err := e.svc.Reconcile(ctx, callback(e.invoice, 100000, "00", "14000001"))
	require.NoError(t, err)
	require.Equal(t, paymentdomain.OutcomeApplied, outcome.Kind)

	status, err := e.svc.PaymentStatus(ctx, e.invoice)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, status.Status)
	assert.True(t, status.Debt.Equal(decimal.NewFromInt(200000)))
	assert.False(t, status.Paid)
	require.NotNil(t, status.LastPayment)
	assert.Equal(t, "14000001", *status.LastPayment.ExternalTxnID)
	assert.Equal(t, "NCB", *status.LastPayment.BankCode)

	e.clk.Advance(time.Minute)
	outcome, err = e.svc.Reconcile(ctx, callback(e.invoice, 200000, "00", "14000002"))
	require.NoError(t, err)
	require.Equal(t, paymentdomain.OutcomeApplied, outcome.Kind)

	status, err = e.svc.PaymentStatus(ctx, e.invoice)
	require.NoError(t, err)
	assert.True(t, status.Paid)
	assert.True(t, status.Debt.IsZero())
}

func TestReconcileRejectsBadSignature(t *testing.T) {
	e := newEnv(t, 300000)
	params := callback(e.invoice, 300000, "00", "14123456")
	params["vnp_Amount"] = "99900000000"

	outcome, err := e.svc.Reconcile(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeRejectedSignature, outcome.Kind)
	assert.ErrorIs(t, outcome.Reason, paymentdomain.ErrInvalidSignature)
	assert.Zero(t, dbtest.Count(t, e.db, "payment_events", ""))

	delete(params, vnpay.ParamSecureHash)
	outcome, err = e.svc.Reconcile(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeRejectedSignature, outcome.Kind)
}

func TestReconcileUnresolvableInvoice(t *testing.T) {
	e := newEnv(t, 300000)
	ctx := context.Background()

	outcome, err := e.svc.Reconcile(ctx, callback(snowflake.ID(777), 1000, "00", "14000003"))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeFailed, outcome.Kind)
	assert.ErrorIs(t, outcome.Reason, paymentdomain.ErrInvoiceNotFound)

	params := signed(map[string]string{
		"vnp_TxnRef":        "garbage",
		"vnp_Amount":        "100000",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14000004",
	})
	outcome, err = e.svc.Reconcile(ctx, params)
	require.NoError(t, err)
	assert.ErrorIs(t, outcome.Reason, paymentdomain.ErrInvoiceNotFound)
	assert.Zero(t, dbtest.Count(t, e.db, "payment_events", ""))
}

func TestReconcileInvalidAmount(t *testing.T) {
	e := newEnv(t, 300000)
	params := signed(map[string]string{
		"vnp_TxnRef":        e.invoice.String() + "_1",
		"vnp_Amount":        "150",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14000005",
	})

	outcome, err := e.svc.Reconcile(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeFailed, outcome.Kind)
	assert.ErrorIs(t, outcome.Reason, paymentdomain.ErrInvalidAmount)
	assert.Zero(t, dbtest.Count(t, e.db, "payment_events", ""))
}

func TestReconcileUnderRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newEnv(t, 300000, withLocker(locks.NewLocker(client)))
	params := callback(e.invoice, 300000, "00", "14123456")

	outcome, err := e.svc.Reconcile(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, outcome.Kind)
	assert.Empty(t, mr.Keys(), "lock released after reconcile")
}

func TestReconcileWhileLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newEnv(t, 300000, withLocker(locks.NewLocker(client)))
	params := callback(e.invoice, 300000, "00", "14123456")
	require.NoError(t, mr.Set("callback:vnpay:"+params["vnp_TxnRef"], "other"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := e.svc.Reconcile(ctx, params)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, dbtest.Count(t, e.db, "payment_events", ""))
}

func TestPaymentStatusUnknownInvoice(t *testing.T) {
	e := newEnv(t, 300000)
	_, err := e.svc.PaymentStatus(context.Background(), 999)
	assert.ErrorIs(t, err, paymentdomain.ErrInvoiceNotFound)
	_, err = e.svc.PaymentStatus(context.Background(), 0)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidInvoice)
}

func TestConcurrentReconcileWithoutLockerAppliesOnce(t *testing.T) {
	e := newEnv(t, 300000)
	dbtest.SingleConn(t, e.db)
	ctx := context.Background()
	params := callback(e.invoice, 300000, "00", "14777777")

	const deliveries = 6
	var wg sync.WaitGroup
	outcomes := make(chan *paymentdomain.Outcome, deliveries)
	errs := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := e.svc.Reconcile(ctx, params)
			if err != nil {
				errs <- err
				return
			}
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	kinds := map[paymentdomain.OutcomeKind]int{}
	for outcome := range outcomes {
		kinds[outcome.Kind]++
	}
	assert.Equal(t, 1, kinds[paymentdomain.OutcomeApplied])
	assert.Equal(t, deliveries-1, kinds[paymentdomain.OutcomeAlreadyProcessed])

	assert.Equal(t, int64(1), dbtest.Count(t, e.db, "payment_events", "external_txn_id = ?", "14777777"))
	sum, err := ledgerrepository.Provide().SumByInvoice(ctx, e.db, e.invoice)
	require.NoError(t, err)
	inv := loadInvoice(t, e.db, e.invoice)
	assert.True(t, inv.TotalPaid.Equal(sum))
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, inv.Status)
}
