package vnpay

import (
	"errors"

	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
)

// IPNResponse is the JSON body the gateway expects back from the IPN URL.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var (
	ipnConfirmed        = IPNResponse{RspCode: "00", Message: "Confirm Success"}
	ipnOrderNotFound    = IPNResponse{RspCode: "01", Message: "Order not found"}
	ipnAlreadyConfirmed = IPNResponse{RspCode: "02", Message: "Order already confirmed"}
	ipnInvalidAmount    = IPNResponse{RspCode: "04", Message: "Invalid amount"}
	ipnInvalidChecksum  = IPNResponse{RspCode: "97", Message: "Invalid Checksum"}
	ipnUnknownError     = IPNResponse{RspCode: "99", Message: "Unknown error"}
)

// Acknowledge maps a reconciliation result onto the IPN acknowledgement.
// A declined payment is still acknowledged with 00: the notification was
// received and recorded, and the gateway must not redeliver it. The same
// holds for a response code outside the gateway's table.
func Acknowledge(outcome *paymentdomain.Outcome, err error) IPNResponse {
	if err != nil || outcome == nil {
		return ipnUnknownError
	}
	switch outcome.Kind {
	case paymentdomain.OutcomeApplied:
		return ipnConfirmed
	case paymentdomain.OutcomeAlreadyProcessed:
		return ipnAlreadyConfirmed
	case paymentdomain.OutcomeRejectedSignature:
		return ipnInvalidChecksum
	case paymentdomain.OutcomeUnknownCode:
		return ipnConfirmed
	case paymentdomain.OutcomeFailed:
		switch {
		case errors.Is(outcome.Reason, paymentdomain.ErrInvoiceNotFound):
			return ipnOrderNotFound
		case errors.Is(outcome.Reason, paymentdomain.ErrInvalidAmount):
			return ipnInvalidAmount
		case errors.Is(outcome.Reason, paymentdomain.ErrGatewayDeclined):
			return ipnConfirmed
		}
	}
	return ipnUnknownError
}
