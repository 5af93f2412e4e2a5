package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/condofee/internal/observability/logger"
	"github.com/smallbiznis/condofee/internal/payment/adapters/vnpay"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	resultSuccess = "success"
	resultFailed  = "failed"
	resultError   = "error"

	paymentResultPath = "/payment-result"

	systemErrorMessage = "Lỗi hệ thống, vui lòng thử lại sau"
)

func (s *Server) CreateVNPayPayment(c *gin.Context) {
	invoice, ok := s.loadInvoice(c, "invoiceId")
	if !ok {
		return
	}

	var req paymentdomain.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, bindingError(err))
		return
	}
	req.InvoiceID = invoice.ID
	req.ClientIP = clientIP(c)

	resp, err := s.paymentSvc.CreatePaymentURL(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("txn_ref", resp.TxnRef)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentStatus(c *gin.Context) {
	invoice, ok := s.loadInvoice(c, "invoiceId")
	if !ok {
		return
	}

	status, err := s.paymentSvc.PaymentStatus(c.Request.Context(), invoice.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

// VNPayReturn handles the browser redirect back from the gateway and sends
// the payer on to the frontend result page.
func (s *Server) VNPayReturn(c *gin.Context) {
	ctx := c.Request.Context()
	params := callbackParams(c)
	c.Set("txn_ref", params["vnp_TxnRef"])

	outcome, err := s.paymentSvc.Reconcile(ctx, params)
	if err != nil {
		logger.FromContext(ctx).Error("vnpay return reconciliation failed",
			zap.String("txn_ref", params["vnp_TxnRef"]),
			zap.Error(err),
		)
	}

	c.Redirect(http.StatusFound, s.paymentResultURL(outcome, err))
}

// VNPayIPN answers the gateway's server-to-server notification. The response
// is always 200; the outcome travels in RspCode.
func (s *Server) VNPayIPN(c *gin.Context) {
	ctx := c.Request.Context()
	params := callbackParams(c)
	c.Set("txn_ref", params["vnp_TxnRef"])

	outcome, err := s.paymentSvc.Reconcile(ctx, params)
	ack := vnpay.Acknowledge(outcome, err)

	fields := []zap.Field{
		zap.String("txn_ref", params["vnp_TxnRef"]),
		zap.String("rsp_code", ack.RspCode),
	}
	if outcome != nil {
		fields = append(fields, zap.String("outcome", string(outcome.Kind)))
	}
	if err != nil {
		logger.FromContext(ctx).Error("vnpay ipn reconciliation failed", append(fields, zap.Error(err))...)
	} else {
		logger.FromContext(ctx).Info("vnpay ipn acknowledged", fields...)
	}

	c.JSON(http.StatusOK, ack)
}

func (s *Server) paymentResultURL(outcome *paymentdomain.Outcome, err error) string {
	query := url.Values{}
	switch {
	case err != nil || outcome == nil:
		query.Set("status", resultError)
		query.Set("message", systemErrorMessage)
	default:
		query.Set("status", resultStatus(outcome))
		if outcome.InvoiceID != 0 {
			query.Set("invoiceId", outcome.InvoiceID.String())
		}
		if outcome.Amount.IsPositive() {
			query.Set("amount", outcome.Amount.String())
		}
		if outcome.ResponseCode != "" {
			query.Set("code", outcome.ResponseCode)
		}
		query.Set("message", outcome.Message)
	}
	return s.gateway.FrontendURL + paymentResultPath + "?" + query.Encode()
}

func resultStatus(outcome *paymentdomain.Outcome) string {
	switch outcome.Kind {
	case paymentdomain.OutcomeApplied, paymentdomain.OutcomeAlreadyProcessed:
		return resultSuccess
	case paymentdomain.OutcomeFailed, paymentdomain.OutcomeUnknownCode:
		return resultFailed
	default:
		return resultError
	}
}
