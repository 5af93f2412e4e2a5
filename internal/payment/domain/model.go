package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AdapterConfig carries the merchant credentials a gateway adapter is built from.
type AdapterConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (GatewayAdapter, error)
}

// GatewayAdapter signs outbound checkout redirects and verifies inbound
// callbacks for one payment gateway. Implementations must use the same
// canonicalization in both directions.
type GatewayAdapter interface {
	Provider() string
	NewTxnRef(invoiceID snowflake.ID, at time.Time) string
	BuildPaymentURL(req CheckoutRequest) (string, error)
	Verify(params map[string]string) error
	ParseCallback(params map[string]string) *Callback
	Classify(responseCode string) GatewayStatus
}

// CheckoutRequest is the gateway-neutral input of a signed redirect.
// Timestamps are rendered in their own location.
type CheckoutRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
	BankCode  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Callback is a verified gateway notification reduced to the fields the
// reconciliation flow needs. InvoiceID is zero when the reference does not
// resolve; Amount is zero when the reported amount is unusable.
type Callback struct {
	Provider      string
	TxnRef        string
	TransactionNo string
	ResponseCode  string
	BankCode      string
	OrderInfo     string
	InvoiceID     snowflake.ID
	Amount        decimal.Decimal
	Raw           map[string]string
}

// ExternalID is the identifier a payment is deduplicated on.
func (c Callback) ExternalID() string {
	no := strings.TrimSpace(c.TransactionNo)
	if no == "" || no == "0" {
		return strings.TrimSpace(c.TxnRef)
	}
	return no
}

// GatewayStatus is a classified response code. Known is false for codes
// missing from the gateway's table.
type GatewayStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Known   bool   `json:"known"`
	Success bool   `json:"success"`
}

type OutcomeKind string

const (
	OutcomeApplied           OutcomeKind = "applied"
	OutcomeAlreadyProcessed  OutcomeKind = "already_processed"
	OutcomeFailed            OutcomeKind = "failed"
	OutcomeRejectedSignature OutcomeKind = "rejected_signature"
	// OutcomeUnknownCode carries a response code missing from the gateway's
	// table. Nothing is applied.
	OutcomeUnknownCode OutcomeKind = "unknown_code"
)

// Outcome is the terminal result of reconciling one callback.
type Outcome struct {
	Kind          OutcomeKind     `json:"kind"`
	InvoiceID     snowflake.ID    `json:"invoice_id,omitempty"`
	TxnRef        string          `json:"txn_ref,omitempty"`
	TransactionNo string          `json:"transaction_no,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	ResponseCode  string          `json:"response_code,omitempty"`
	Message       string          `json:"message"`
	// Reason is set on Failed, UnknownCode and RejectedSignature outcomes.
	Reason error `json:"-"`
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeApplied || o.Kind == OutcomeAlreadyProcessed
}
