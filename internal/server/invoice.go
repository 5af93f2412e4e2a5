package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	invoice, err := s.invoiceSvc.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("invoice_id", invoice.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.invoiceSvc.ListInvoices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	invoice, ok := s.loadInvoice(c, "id")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) GetInvoicePDF(c *gin.Context) {
	invoice, ok := s.loadInvoice(c, "id")
	if !ok {
		return
	}

	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), invoice.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := slug.Make("hoa don "+invoice.ID.String()) + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	invoice, ok := s.loadInvoice(c, "id")
	if !ok {
		return
	}

	payments, err := s.ledgerSvc.ListPayments(c.Request.Context(), invoice.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// RecordPayment books a manual payment (cash or bank transfer) taken by an
// accountant.
func (s *Server) RecordPayment(c *gin.Context) {
	invoiceID, err := pathID(c, "id", "invoice_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ledgerdomain.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	req.InvoiceID = invoiceID
	if strings.TrimSpace(req.Payer) == "" {
		if principal, ok := principalFromContext(c); ok {
			req.Payer = principal.ID
		}
	}

	c.Set("invoice_id", invoiceID.String())
	event, err := s.ledgerSvc.ApplyPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": event})
}

// loadInvoice fetches the invoice named by the path param and applies the
// household ownership check. It aborts the request on failure.
func (s *Server) loadInvoice(c *gin.Context, param string) (*invoicedomain.Invoice, bool) {
	id, err := pathID(c, param, "invoice_id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	c.Set("invoice_id", id.String())

	invoice, err := s.invoiceSvc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if invoice == nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return nil, false
	}
	if err := authorizeHousehold(c, invoice.HouseholdID); err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return invoice, true
}
