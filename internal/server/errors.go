package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/condofee/internal/authorization"
	invoicedomain "github.com/smallbiznis/condofee/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/condofee/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
	pricedomain "github.com/smallbiznis/condofee/internal/price/domain"
	"github.com/smallbiznis/condofee/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationSentinels are domain errors reported as 400 with a field entry.
var validationSentinels = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,

	pricedomain.ErrInvalidFeeType,
	pricedomain.ErrInvalidBuilding,
	pricedomain.ErrInvalidID,
	pricedomain.ErrInvalidPrice,
	pricedomain.ErrInvalidItems,
	pricedomain.ErrDuplicateFeeType,

	invoicedomain.ErrInvalidHousehold,
	invoicedomain.ErrInvalidPeriod,
	invoicedomain.ErrInvalidStatus,
	invoicedomain.ErrInvalidID,

	ledgerdomain.ErrInvalidInvoice,
	ledgerdomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidMethod,

	paymentdomain.ErrInvalidInvoice,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidTxnReference,
	paymentdomain.ErrInvoiceAlreadyPaid,
	paymentdomain.ErrPeriodNotOpen,
	paymentdomain.ErrPeriodClosed,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindingError turns a gin binding failure into field level errors.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}

	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: bindingMessage(fe),
		})
	}
	return out
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return "invalid value"
	}
}

// fieldName reports struct fields under their wire name in validation errors.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			continue
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := validationSentinel(err); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, invoicedomain.ErrInvoiceExists),
		errors.Is(err, ledgerdomain.ErrDuplicateTransaction):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrInvalidConfig),
		errors.Is(err, paymentdomain.ErrCallbackInProgress):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the mapped error type and
// a stable code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationSentinel(err error) error {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, pricedomain.ErrNotFound),
		errors.Is(err, pricedomain.ErrFeeTypeNotFound),
		errors.Is(err, pricedomain.ErrBuildingNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrHouseholdNotFound),
		errors.Is(err, invoicedomain.ErrPeriodNotFound),
		errors.Is(err, ledgerdomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	for _, sentinel := range []error{
		pricedomain.ErrNotFound,
		pricedomain.ErrFeeTypeNotFound,
		pricedomain.ErrBuildingNotFound,
		invoicedomain.ErrNotFound,
		invoicedomain.ErrHouseholdNotFound,
		invoicedomain.ErrPeriodNotFound,
		ledgerdomain.ErrInvoiceNotFound,
		paymentdomain.ErrInvoiceNotFound,
	} {
		if errors.Is(err, sentinel) {
			return strings.ReplaceAll(sentinel.Error(), "_", " ")
		}
	}
	return "not found"
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrInvoiceExists):
		return "invoice already exists for this household and period"
	case errors.Is(err, ledgerdomain.ErrDuplicateTransaction):
		return "transaction already recorded"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case paymentdomain.ErrPeriodNotOpen.Error(), paymentdomain.ErrPeriodClosed.Error():
		return "period"
	case paymentdomain.ErrInvoiceAlreadyPaid.Error():
		return "invoice"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case paymentdomain.ErrPeriodNotOpen.Error():
		return "billing period has not started"
	case paymentdomain.ErrPeriodClosed.Error():
		return "billing period has ended"
	case paymentdomain.ErrInvoiceAlreadyPaid.Error():
		return "invoice is already paid"
	default:
		return "invalid value"
	}
}
