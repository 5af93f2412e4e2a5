package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/condofee/internal/authorization"
	"github.com/smallbiznis/condofee/internal/config"
	"github.com/smallbiznis/condofee/internal/events"
	"github.com/smallbiznis/condofee/internal/invoice"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	"github.com/smallbiznis/condofee/internal/ledger"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	"github.com/smallbiznis/condofee/internal/locks"
	"github.com/smallbiznis/condofee/internal/observability"
	obsmiddleware "github.com/smallbiznis/condofee/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/condofee/internal/observability/metrics"
	obstracing "github.com/smallbiznis/condofee/internal/observability/tracing"
	"github.com/smallbiznis/condofee/internal/payment"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
	"github.com/smallbiznis/condofee/internal/price"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	"github.com/smallbiznis/condofee/internal/reference"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	events.Module,
	reference.Module,
	locks.Module,
	price.Module,
	invoice.Module,
	ledger.Module,
	payment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
	}

	r := gin.New()
	// No proxy is trusted until configured, so ClientIP is the socket peer.
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	r := NewEngine(obsCfg, httpMetrics)
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	return r, nil
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	gateway    config.GatewayConfig
	log        *zap.Logger
	authzSvc   authorization.Service
	priceSvc   pricedomain.Service
	invoiceSvc invoicedomain.Service
	ledgerSvc  ledgerdomain.Service
	paymentSvc paymentdomain.Service
	limiter    *locks.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Gateway    config.GatewayConfig
	Log        *zap.Logger
	AuthzSvc   authorization.Service
	PriceSvc   pricedomain.Service
	InvoiceSvc invoicedomain.Service
	LedgerSvc  ledgerdomain.Service
	PaymentSvc paymentdomain.Service
	Limiter    *locks.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		gateway:    p.Gateway,
		log:        p.Log.Named("http.server"),
		authzSvc:   p.AuthzSvc,
		priceSvc:   p.PriceSvc,
		invoiceSvc: p.InvoiceSvc,
		ledgerSvc:  p.LedgerSvc,
		paymentSvc: p.PaymentSvc,
		limiter:    p.Limiter,
	}

	svc.registerPriceRoutes()
	svc.registerInvoiceRoutes()
	svc.registerPaymentRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPriceRoutes() {
	prices := s.engine.Group("/api/prices", s.principalRequired())

	view := s.authorize(authorization.ObjectPrice, authorization.ActionPriceView)
	manage := s.authorize(authorization.ObjectPrice, authorization.ActionPriceManage)

	prices.GET("/resolve", view, s.ResolvePrice)
	prices.GET("/overrides", view, s.ListPriceOverrides)
	prices.PUT("/overrides", manage, s.UpsertPriceOverride)
	prices.DELETE("/overrides/:id", manage, s.DeletePriceOverride)

	prices.GET("/buildings/:buildingId", view, s.GetPriceTable)
	prices.POST("/buildings/:buildingId/overrides", manage, s.BulkUpsertPriceOverrides)
	prices.DELETE("/buildings/:buildingId/overrides", manage, s.ResetBuildingPrices)
	prices.DELETE("/buildings/:buildingId/fee-types/:feeTypeId", manage, s.DeletePriceOverrideFor)
}

func (s *Server) registerInvoiceRoutes() {
	invoices := s.engine.Group("/api/invoices", s.principalRequired())

	invoices.POST("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceCreate), s.CreateInvoice)
	invoices.GET("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceList), s.ListInvoices)
	invoices.GET("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoice)
	invoices.GET("/:id/pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoicePDF)

	// -------- Ledger --------
	invoices.GET("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListInvoicePayments)
	invoices.POST("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.RecordPayment)
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/api/payment")

	payments.POST("/vnpay/create/:invoiceId",
		s.principalRequired(),
		s.authorize(authorization.ObjectPayment, authorization.ActionPaymentCheckout),
		s.CreateVNPayPayment,
	)
	payments.GET("/vnpay/status/:invoiceId",
		s.principalRequired(),
		s.authorize(authorization.ObjectPayment, authorization.ActionPaymentView),
		s.GetPaymentStatus,
	)

	// Gateway facing, authenticated by the callback signature.
	payments.GET("/vnpay-return", s.ReturnRateLimit(), s.VNPayReturn)
	payments.GET("/vnpay-ipn", s.VNPayIPN)
}
