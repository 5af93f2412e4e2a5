package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condofee/pkg/db/pagination"
)

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	RenderPDF(ctx context.Context, id snowflake.ID) ([]byte, error)
}

type CreateInvoiceRequest struct {
	HouseholdID snowflake.ID `json:"household_id"`
	PeriodID    snowflake.ID `json:"period_id"`
}

type ListInvoicesRequest struct {
	pagination.Pagination
	HouseholdID string `form:"household_id"`
	PeriodID    string `form:"period_id"`
	Status      string `form:"status"`
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

var (
	ErrNotFound          = errors.New("invoice_not_found")
	ErrInvoiceExists     = errors.New("invoice_already_exists")
	ErrHouseholdNotFound = errors.New("household_not_found")
	ErrPeriodNotFound    = errors.New("period_not_found")
	ErrInvalidHousehold  = errors.New("invalid_household")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidID         = errors.New("invalid_id")
)
